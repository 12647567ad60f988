package sim

import tea "github.com/charmbracelet/bubbletea"

// Harness runs the simulator model without a terminal. Commands are executed
// inline, batches are flattened, and a quit is recorded instead of stopping
// anything.
type Harness struct {
	model *Model
	quit  bool
}

func NewHarness(model *Model) *Harness {
	return &Harness{model: model}
}

// Start runs the model's Init command, which emits the device Init event.
func (h *Harness) Start() {
	h.run(h.model.Init())
}

// Send delivers msg as if it came from the terminal.
func (h *Harness) Send(msg tea.Msg) {
	if h.model == nil {
		return
	}
	h.update(msg)
}

// Press sends a key by name: a single rune, or a special key such as
// "left", "pgdown" or "ctrl+c".
func (h *Harness) Press(name string) {
	h.Send(keyMsg(name))
}

// Frame pushes a flushed surface into the model.
func (h *Harness) Frame(lines ...string) {
	h.Send(frameMsg{lines: lines})
}

// Quit reports whether the model asked the program to stop.
func (h *Harness) Quit() bool {
	return h.quit
}

func (h *Harness) update(msg tea.Msg) {
	mdl, cmd := h.model.Update(msg)
	if m, ok := mdl.(*Model); ok {
		h.model = m
	}
	h.run(cmd)
}

func (h *Harness) run(cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	switch msg := cmd().(type) {
	case nil:
	case tea.QuitMsg:
		h.quit = true
	case tea.BatchMsg:
		for _, c := range msg {
			h.run(c)
		}
	default:
		h.update(msg)
	}
}

func (h *Harness) View() string {
	if h.model == nil {
		return ""
	}
	return h.model.View()
}

func (h *Harness) Model() *Model {
	return h.model
}

var namedKeys = map[string]tea.KeyType{
	"left":      tea.KeyLeft,
	"right":     tea.KeyRight,
	"up":        tea.KeyUp,
	"down":      tea.KeyDown,
	"pgup":      tea.KeyPgUp,
	"pgdown":    tea.KeyPgDown,
	"enter":     tea.KeyEnter,
	"esc":       tea.KeyEsc,
	"backspace": tea.KeyBackspace,
	"ctrl+c":    tea.KeyCtrlC,
}

func keyMsg(name string) tea.KeyMsg {
	if t, ok := namedKeys[name]; ok {
		return tea.KeyMsg{Type: t}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(name)}
}
