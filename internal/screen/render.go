package screen

import (
	"fmt"
	"strings"

	"github.com/atomicstack/inkd/internal/format/table"
	"github.com/atomicstack/inkd/internal/theme"
	"github.com/charmbracelet/lipgloss"
)

// Content carries the data a render pass shows that does not live in the
// page value itself.
type Content struct {
	Status    string
	StatusErr error
	RPCAddr   string
	SSHPort   int
}

// Render draws page onto the surface held by slot and flushes it. Without a
// surface it returns ErrNoSurface and draws nothing.
func Render(slot *Slot, page Page, content Content) error {
	surface, ok := slot.Get()
	if !ok {
		return ErrNoSurface
	}
	surface.Clear()
	for y, line := range Compose(page, surface.Width(), surface.Height(), content) {
		surface.DrawText(0, y, line)
	}
	if err := surface.Flush(); err != nil {
		return fmt.Errorf("flush surface: %w", err)
	}
	return nil
}

// Compose lays page out as width x height plain-text rows.
func Compose(page Page, width, height int, content Content) []string {
	styles := theme.Plain()
	frame := styles.Frame
	innerWidth := width - frame.GetHorizontalFrameSize()
	innerHeight := height - frame.GetVerticalFrameSize()
	if innerWidth < 1 || innerHeight < 1 {
		return nil
	}

	indicator := fmt.Sprintf("%d/%d", page.Index()+1, len(Pages))
	titleWidth := innerWidth - lipgloss.Width(indicator)
	if titleWidth < 0 {
		titleWidth = 0
	}
	header := lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Title.Width(titleWidth).MaxWidth(titleWidth).Render(page.Title()),
		styles.Indicator.Render(indicator),
	)
	rule := styles.Rule.Render(strings.Repeat("─", innerWidth))

	body := styles.Body.Width(innerWidth).Render(strings.Join(pageBody(page, content), "\n"))
	inner := lipgloss.JoinVertical(lipgloss.Left, header, rule, body)
	inner = lipgloss.NewStyle().MaxHeight(innerHeight).Render(inner)

	out := frame.Width(innerWidth).Height(innerHeight).Render(inner)
	return strings.Split(out, "\n")
}

func pageBody(page Page, content Content) []string {
	switch page {
	case PageGreet:
		return []string{
			"",
			"Hello from inkd.",
			"",
			"Use the page keys to switch views.",
		}
	case PageStatus:
		lines := []string{""}
		var rows []string
		if content.RPCAddr != "" {
			rows = append(rows, "rpc: "+content.RPCAddr)
		}
		if content.SSHPort > 0 {
			rows = append(rows, fmt.Sprintf("ssh: %d", content.SSHPort))
		}
		if content.StatusErr != nil {
			rows = append(rows, "error: "+content.StatusErr.Error())
		} else if content.Status != "" {
			rows = append(rows, strings.Split(content.Status, "\n")...)
		}
		return append(lines, table.KeyValue(rows)...)
	}
	return nil
}
