package device

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/atomicstack/inkd/internal/logging/events"
)

// HostNetwork implements Network on a regular Linux host. Activation is
// tracked in memory and the status report lists the host's live interfaces.
type HostNetwork struct {
	mu         sync.Mutex
	active     bool
	lastAlive  time.Time
	now        func() time.Time
	interfaces func() ([]net.Interface, error)
	// Hourglass is invoked around activation when the caller asked for the
	// busy indicator. Backends with a display set it.
	Hourglass func(visible bool)
}

// NewHostNetwork returns an inactive HostNetwork.
func NewHostNetwork() *HostNetwork {
	return &HostNetwork{now: time.Now, interfaces: net.Interfaces}
}

// Activate connects unless already connected. The hourglass is only shown
// while a connection is actually being made.
func (n *HostNetwork) Activate(ctx context.Context, showHourglass bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.mu.Lock()
	if n.active {
		n.lastAlive = n.now()
		n.mu.Unlock()
		return nil
	}
	n.mu.Unlock()

	events.Network.Activate(showHourglass)
	if showHourglass && n.Hourglass != nil {
		n.Hourglass(true)
		defer n.Hourglass(false)
	}
	n.mu.Lock()
	n.active = true
	n.lastAlive = n.now()
	n.mu.Unlock()
	return nil
}

func (n *HostNetwork) Deactivate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	events.Network.Deactivate()
	n.mu.Lock()
	n.active = false
	n.mu.Unlock()
	return nil
}

// KeepAlive is a quiet Activate: a dropped connection is brought back up
// without the hourglass.
func (n *HostNetwork) KeepAlive(ctx context.Context) error {
	err := n.Activate(ctx, false)
	events.Network.KeepAlive(err)
	return err
}

func (n *HostNetwork) Status(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	n.mu.Lock()
	active := n.active
	last := n.lastAlive
	n.mu.Unlock()

	ifaces, err := n.interfaces()
	if err != nil {
		return "", fmt.Errorf("list interfaces: %w", err)
	}
	state := "down"
	if active {
		state = "up"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "network: %s", state)
	if active && !last.IsZero() {
		fmt.Fprintf(&b, " (keepalive %s)", last.UTC().Format(time.RFC3339))
	}
	addrs := describeInterfaces(ifaces)
	if len(addrs) == 0 {
		b.WriteString("\ninterfaces: none")
	}
	for _, line := range addrs {
		b.WriteString("\n")
		b.WriteString(line)
	}
	return b.String(), nil
}

func describeInterfaces(ifaces []net.Interface) []string {
	var lines []string
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil || len(addrs) == 0 {
			lines = append(lines, iface.Name+": no address")
			continue
		}
		values := make([]string, 0, len(addrs))
		for _, a := range addrs {
			values = append(values, a.String())
		}
		lines = append(lines, iface.Name+": "+strings.Join(values, ", "))
	}
	sort.Strings(lines)
	return lines
}
