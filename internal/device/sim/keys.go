package sim

import (
	"github.com/atomicstack/inkd/internal/device"
	"github.com/charmbracelet/bubbles/key"
)

// KeyMap binds terminal keys to the device's physical keys.
type KeyMap struct {
	Left    key.Binding
	Right   key.Binding
	Up      key.Binding
	Down    key.Binding
	Prev    key.Binding
	Next    key.Binding
	OK      key.Binding
	Menu    key.Binding
	Back    key.Binding
	Repaint key.Binding
	Quit    key.Binding
}

// DefaultKeyMap mirrors the panel layout: arrows for the d-pad, page keys
// for the side rockers.
var DefaultKeyMap = KeyMap{
	Left: key.NewBinding(
		key.WithKeys("left", "h"),
		key.WithHelp("←/h", "prev page"),
	),
	Right: key.NewBinding(
		key.WithKeys("right", "l"),
		key.WithHelp("→/l", "next page"),
	),
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
	),
	Prev: key.NewBinding(
		key.WithKeys("pgup"),
		key.WithHelp("pgup", "rocker up"),
	),
	Next: key.NewBinding(
		key.WithKeys("pgdown"),
		key.WithHelp("pgdn", "rocker down"),
	),
	OK: key.NewBinding(
		key.WithKeys("enter"),
	),
	Menu: key.NewBinding(
		key.WithKeys("m"),
	),
	Back: key.NewBinding(
		key.WithKeys("esc", "backspace"),
	),
	Repaint: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "repaint"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// Help lists the bindings shown under the panel.
func (k KeyMap) Help() []key.Binding {
	return []key.Binding{k.Left, k.Right, k.Prev, k.Next, k.Repaint, k.Quit}
}

// physical pairs each key binding with the device key it presses.
func (k KeyMap) physical() []struct {
	binding key.Binding
	key     device.Key
} {
	return []struct {
		binding key.Binding
		key     device.Key
	}{
		{k.Left, device.KeyLeft},
		{k.Right, device.KeyRight},
		{k.Up, device.KeyUp},
		{k.Down, device.KeyDown},
		{k.Prev, device.KeyPrev},
		{k.Next, device.KeyNext},
		{k.OK, device.KeyOK},
		{k.Menu, device.KeyMenu},
		{k.Back, device.KeyBack},
	}
}
