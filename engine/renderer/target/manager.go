package target

import (
	"fmt"
	"log"

	"github.com/hucancode/mjolnir/engine/handle"
	"github.com/hucancode/mjolnir/engine/light"
)

// Invalidator is notified when target images are destroyed and recreated so
// dependent state (the barrier tracker's resource map) can be dropped.
type Invalidator interface {
	Reset()
}

// Manager owns one target Set per frame slot. Size-dependent targets
// (G-buffer, depth, final color, post-process ping) are recreated on resize;
// shadow maps have a fixed resolution and persist across resizes.
type Manager struct {
	factory     Factory
	invalidator Invalidator

	sets             []Set
	width, height    int
	shadowResolution int
}

// ManagerOption is a functional option for configuring a Manager.
type ManagerOption func(*Manager)

// WithInvalidator registers state to reset whenever targets are recreated.
//
// Parameters:
//   - inv: the state to reset on recreate
//
// Returns:
//   - ManagerOption: option function to apply
func WithInvalidator(inv Invalidator) ManagerOption {
	return func(m *Manager) {
		m.invalidator = inv
	}
}

// WithShadowResolution overrides the shadow map resolution.
//
// Parameters:
//   - resolution: the per-face extent in texels
//
// Returns:
//   - ManagerOption: option function to apply
func WithShadowResolution(resolution int) ManagerOption {
	return func(m *Manager) {
		m.shadowResolution = resolution
	}
}

// NewManager creates a target manager with slotCount sets, allocating the
// fixed-resolution shadow targets immediately. Size-dependent targets are
// created by the first Resize call.
//
// Parameters:
//   - factory: the image factory (must not be nil)
//   - slotCount: the number of frame slots
//   - options: functional options
//
// Returns:
//   - *Manager: the new manager
//   - error: error if shadow target allocation fails
func NewManager(factory Factory, slotCount int, options ...ManagerOption) (*Manager, error) {
	if factory == nil {
		panic("target: NewManager requires a non-nil Factory")
	}
	m := &Manager{
		factory:          factory,
		sets:             make([]Set, slotCount),
		shadowResolution: light.ShadowMapResolution,
	}
	for _, option := range options {
		option(m)
	}

	for i := range m.sets {
		set := &m.sets[i]
		for s := 0; s < light.MaxShadowMaps; s++ {
			h, err := factory.CreateShadowMap(m.shadowResolution)
			if err != nil {
				m.Destroy()
				return nil, fmt.Errorf("target: shadow map %d/%d: %w", i, s, err)
			}
			set.ShadowMaps[s] = h

			h, err = factory.CreateShadowCube(m.shadowResolution)
			if err != nil {
				m.Destroy()
				return nil, fmt.Errorf("target: shadow cube %d/%d: %w", i, s, err)
			}
			set.ShadowCubes[s] = h
		}
	}
	return m, nil
}

// Set returns the target set for a frame slot.
//
// Parameters:
//   - slot: the frame slot index
//
// Returns:
//   - *Set: the slot's targets
func (m *Manager) Set(slot int) *Set {
	return &m.sets[slot]
}

// Extent returns the current size-dependent target extent, (0, 0) before the
// first Resize.
//
// Returns:
//   - int: width in texels
//   - int: height in texels
func (m *Manager) Extent() (int, int) {
	return m.width, m.height
}

// Resize recreates the size-dependent targets for every slot at the new
// extent. A call with the current extent is a no-op, so callers may invoke it
// unconditionally on every window event. Old images are destroyed before new
// ones are created and the invalidator is reset, keeping the live image count
// stable across any number of resizes.
//
// Parameters:
//   - width, height: the new extent in texels
//
// Returns:
//   - error: error if any allocation fails
func (m *Manager) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("target: invalid extent %dx%d", width, height)
	}
	if width == m.width && height == m.height {
		return nil
	}

	m.destroySized()
	if m.invalidator != nil {
		m.invalidator.Reset()
	}

	for i := range m.sets {
		set := &m.sets[i]
		for c := Channel(0); c < ChannelCount; c++ {
			h, err := m.factory.CreateColorTarget(width, height)
			if err != nil {
				return fmt.Errorf("target: gbuffer %s: %w", c, err)
			}
			set.GBuffer[c] = h
		}
		var err error
		if set.Depth, err = m.factory.CreateDepthTarget(width, height); err != nil {
			return fmt.Errorf("target: depth: %w", err)
		}
		if set.FinalColor, err = m.factory.CreateColorTarget(width, height); err != nil {
			return fmt.Errorf("target: final color: %w", err)
		}
		if set.PostPing, err = m.factory.CreateColorTarget(width, height); err != nil {
			return fmt.Errorf("target: post ping: %w", err)
		}
	}

	m.width, m.height = width, height
	log.Printf("[Target] recreated %d target sets at %dx%d", len(m.sets), width, height)
	return nil
}

// Destroy releases every target image. The manager is unusable afterwards.
func (m *Manager) Destroy() {
	m.destroySized()
	for i := range m.sets {
		set := &m.sets[i]
		for s := range set.ShadowMaps {
			m.factory.DestroyTarget(set.ShadowMaps[s])
			set.ShadowMaps[s] = handle.Nil
			m.factory.DestroyTarget(set.ShadowCubes[s])
			set.ShadowCubes[s] = handle.Nil
		}
	}
	if m.invalidator != nil {
		m.invalidator.Reset()
	}
	m.width, m.height = 0, 0
}

func (m *Manager) destroySized() {
	for i := range m.sets {
		set := &m.sets[i]
		for c := range set.GBuffer {
			m.factory.DestroyTarget(set.GBuffer[c])
			set.GBuffer[c] = handle.Nil
		}
		m.factory.DestroyTarget(set.Depth)
		set.Depth = handle.Nil
		m.factory.DestroyTarget(set.FinalColor)
		set.FinalColor = handle.Nil
		m.factory.DestroyTarget(set.PostPing)
		set.PostPing = handle.Nil
	}
}
