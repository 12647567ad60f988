package sim

import (
	"strings"

	"github.com/atomicstack/inkd/internal/device"
	"github.com/atomicstack/inkd/internal/logging/events"
	"github.com/atomicstack/inkd/internal/theme"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// frameMsg carries a flushed surface into the program.
type frameMsg struct {
	lines []string
}

// hourglassMsg toggles the busy indicator.
type hourglassMsg bool

var styles = theme.Default()

// Model implements the Bubble Tea model for the simulated panel. It turns
// key presses into device events and shows whatever the daemon last flushed.
type Model struct {
	keys    KeyMap
	handler device.Handler
	width   int
	height  int
	frame   []string
	busy    bool
	exiting bool
}

// NewModel returns a model for a width x height panel that reports events to
// handler.
func NewModel(width, height int, handler device.Handler) *Model {
	return &Model{
		keys:    DefaultKeyMap,
		handler: handler,
		width:   width,
		height:  height,
	}
}

func (m *Model) emit(evt device.Event) {
	events.Device.Event(evt.Type.String(), evt.Key.String())
	if m.handler != nil {
		m.handler(evt)
	}
}

func (m *Model) emitCmd(evt device.Event) tea.Cmd {
	return func() tea.Msg {
		m.emit(evt)
		return nil
	}
}

func (m *Model) Init() tea.Cmd {
	return m.emitCmd(device.Event{Type: device.EventInit})
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case frameMsg:
		m.frame = msg.lines
	case hourglassMsg:
		m.busy = bool(msg)
	case tea.FocusMsg:
		m.emit(device.Event{Type: device.EventForeground})
	case tea.BlurMsg:
		m.emit(device.Event{Type: device.EventBackground})
	case tea.KeyMsg:
		return m, m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Quit):
		// The daemon closes the program once it has seen Exit. A second
		// quit gets out even if nothing is listening any more.
		if m.exiting {
			return tea.Quit
		}
		m.exiting = true
		m.emit(device.Event{Type: device.EventExit})
		return nil
	case key.Matches(msg, m.keys.Repaint):
		m.emit(device.Event{Type: device.EventRepaint})
		return nil
	}
	for _, p := range m.keys.physical() {
		if key.Matches(msg, p.binding) {
			m.emit(device.Press(p.key))
			return nil
		}
	}
	return nil
}

func (m *Model) View() string {
	var panel string
	if len(m.frame) == 0 {
		panel = styles.Hint.Width(m.width).Height(m.height).Render("waiting for first frame")
	} else {
		rows := make([]string, m.height)
		for i := range rows {
			if i < len(m.frame) {
				rows[i] = m.frame[i]
			}
		}
		panel = strings.Join(rows, "\n")
	}
	var b strings.Builder
	b.WriteString(styles.Chrome.Render(panel))
	b.WriteString("\n")
	if m.busy {
		b.WriteString(styles.Indicator.Render("⧗ connecting"))
		b.WriteString("\n")
	}
	if m.exiting {
		b.WriteString(styles.Hint.Render("closing, press q again to force"))
		b.WriteString("\n")
	}
	b.WriteString(styles.Hint.Render(m.helpLine()))
	return b.String()
}

func (m *Model) helpLine() string {
	var parts []string
	for _, binding := range m.keys.Help() {
		h := binding.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return strings.Join(parts, " · ")
}
