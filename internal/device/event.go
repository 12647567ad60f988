package device

import "fmt"

// EventType enumerates the hardware events the SDK delivers.
type EventType int

const (
	EventInit EventType = iota
	EventShow
	EventRepaint
	EventKeyPress
	EventKeyRelease
	EventKeyRepeat
	EventForeground
	EventBackground
	EventExit
)

var eventNames = map[EventType]string{
	EventInit:       "init",
	EventShow:       "show",
	EventRepaint:    "repaint",
	EventKeyPress:   "key-press",
	EventKeyRelease: "key-release",
	EventKeyRepeat:  "key-repeat",
	EventForeground: "foreground",
	EventBackground: "background",
	EventExit:       "exit",
}

func (t EventType) String() string {
	if name, ok := eventNames[t]; ok {
		return name
	}
	return fmt.Sprintf("event(%d)", int(t))
}

// Key identifies a physical key on the device.
type Key int

const (
	KeyNone Key = iota
	KeyLeft
	KeyRight
	KeyUp
	KeyDown
	KeyPrev
	KeyNext
	KeyOK
	KeyMenu
	KeyBack
)

var keyNames = map[Key]string{
	KeyNone:  "",
	KeyLeft:  "left",
	KeyRight: "right",
	KeyUp:    "up",
	KeyDown:  "down",
	KeyPrev:  "prev",
	KeyNext:  "next",
	KeyOK:    "ok",
	KeyMenu:  "menu",
	KeyBack:  "back",
}

func (k Key) String() string {
	if name, ok := keyNames[k]; ok {
		return name
	}
	return fmt.Sprintf("key(%d)", int(k))
}

// Event is a single hardware event. Key is only meaningful for the key
// event types.
type Event struct {
	Type EventType
	Key  Key
}

// Press builds a key-press event.
func Press(k Key) Event {
	return Event{Type: EventKeyPress, Key: k}
}

func (e Event) String() string {
	if e.Key == KeyNone {
		return e.Type.String()
	}
	return e.Type.String() + ":" + e.Key.String()
}
