package screen

import (
	"errors"

	"github.com/atomicstack/inkd/internal/device"
)

var (
	// ErrSurfaceInitialized is returned by Slot.Init once a surface is held.
	ErrSurfaceInitialized = errors.New("surface already initialized")
	// ErrNoSurface is returned when rendering before Init.
	ErrNoSurface = errors.New("surface not initialized")
)

// Slot holds the drawable surface. It is filled at most once.
type Slot struct {
	surface device.Surface
	set     bool
}

// Init calls open and stores its surface. A second call returns
// ErrSurfaceInitialized without calling open.
func (s *Slot) Init(open func() (device.Surface, error)) error {
	if s.set {
		return ErrSurfaceInitialized
	}
	surface, err := open()
	if err != nil {
		return err
	}
	s.surface = surface
	s.set = true
	return nil
}

// Get returns the surface and whether it has been initialized.
func (s *Slot) Get() (device.Surface, bool) {
	return s.surface, s.set
}
