package device

import (
	"strings"

	"github.com/muesli/reflow/truncate"
)

// Buffer is an in-memory cell grid. Backends embed it and override Flush to
// push Lines to their output.
type Buffer struct {
	width  int
	height int
	rows   []string
}

// NewBuffer allocates a blank width x height grid.
func NewBuffer(width, height int) *Buffer {
	b := &Buffer{width: width, height: height}
	b.Clear()
	return b
}

func (b *Buffer) Width() int  { return b.width }
func (b *Buffer) Height() int { return b.height }

func (b *Buffer) Clear() {
	b.rows = make([]string, b.height)
	blank := strings.Repeat(" ", b.width)
	for i := range b.rows {
		b.rows[i] = blank
	}
}

// DrawText writes text at column x of row y, clipping at the right edge.
// Rows outside the grid are ignored.
func (b *Buffer) DrawText(x, y int, text string) {
	if y < 0 || y >= b.height || x >= b.width {
		return
	}
	if x < 0 {
		x = 0
	}
	room := b.width - x
	text = truncate.String(text, uint(room))
	row := []rune(b.rows[y])
	for i, r := range []rune(text) {
		if x+i >= len(row) {
			break
		}
		row[x+i] = r
	}
	b.rows[y] = string(row)
}

// Lines returns the grid rows with trailing blanks trimmed.
func (b *Buffer) Lines() []string {
	out := make([]string, len(b.rows))
	for i, row := range b.rows {
		out[i] = strings.TrimRight(row, " ")
	}
	return out
}

// String joins Lines, dropping trailing empty rows.
func (b *Buffer) String() string {
	lines := b.Lines()
	end := len(lines)
	for end > 0 && lines[end-1] == "" {
		end--
	}
	return strings.Join(lines[:end], "\n")
}

// Flush is a no-op for a bare buffer.
func (b *Buffer) Flush() error {
	return nil
}

// Default panel geometry in character cells, used by the host backends.
const (
	PanelWidth  = 40
	PanelHeight = 12
)
