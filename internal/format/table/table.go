package table

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

type Alignment int

const (
	AlignLeft Alignment = iota
	AlignRight
)

// Format returns the rows padded according to the widest entry in each column.
// Trailing padding on the last column is dropped. Single-cell rows in a
// multi-column table span the row and do not widen the first column.
func Format(rows [][]string, alignments []Alignment) []string {
	if len(rows) == 0 {
		return nil
	}
	colCount := 0
	for _, row := range rows {
		if len(row) > colCount {
			colCount = len(row)
		}
	}
	widths := make([]int, colCount)
	for _, row := range rows {
		if len(row) == 1 && colCount > 1 {
			continue
		}
		for c, cell := range row {
			if w := runewidth.StringWidth(cell); w > widths[c] {
				widths[c] = w
			}
		}
	}
	out := make([]string, len(rows))
	for i, row := range rows {
		var b strings.Builder
		for c, cell := range row {
			if c > 0 {
				b.WriteString("  ")
			}
			pad := widths[c] - runewidth.StringWidth(cell)
			if c < len(alignments) && alignments[c] == AlignRight {
				b.WriteString(strings.Repeat(" ", max(pad, 0)))
				b.WriteString(cell)
			} else {
				b.WriteString(cell)
				if c < len(row)-1 {
					b.WriteString(strings.Repeat(" ", max(pad, 0)))
				}
			}
		}
		out[i] = b.String()
	}
	return out
}

// KeyValue splits "key: value" lines into two aligned columns. Lines without
// a separator span the row on their own.
func KeyValue(lines []string) []string {
	rows := make([][]string, 0, len(lines))
	for _, line := range lines {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			rows = append(rows, []string{strings.TrimSpace(line)})
			continue
		}
		rows = append(rows, []string{strings.TrimSpace(key), strings.TrimSpace(value)})
	}
	return Format(rows, []Alignment{AlignRight, AlignLeft})
}
