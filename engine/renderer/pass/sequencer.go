// Package pass enforces the fixed per-frame pass order of the deferred
// pipeline. The sequencer is a pure state machine: the renderer asks to
// begin/end each pass in turn and the sequencer rejects anything out of
// order, which is a programming defect, not a runtime condition.
package pass

import (
	"errors"
	"fmt"
)

// Kind identifies one pass in the per-frame state machine.
type Kind int

const (
	Idle Kind = iota
	Culling
	Shadow
	DepthPrepass
	GBuffer
	Ambient
	Lighting
	Particles
	Transparent
	PostProcess
	UI
	Present
)

var kindNames = [...]string{
	Idle:         "Idle",
	Culling:      "Culling",
	Shadow:       "Shadow",
	DepthPrepass: "DepthPrepass",
	GBuffer:      "GBuffer",
	Ambient:      "Ambient",
	Lighting:     "Lighting",
	Particles:    "Particles",
	Transparent:  "Transparent",
	PostProcess:  "PostProcess",
	UI:           "UI",
	Present:      "Present",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ErrOutOfOrder reports a pass begun or ended outside the fixed frame order.
var ErrOutOfOrder = errors.New("pass: out-of-order transition")

// allowedNext encodes the frame state machine:
// Idle → Culling → Shadow(0..L×6) → DepthPrepass → GBuffer → Ambient →
// Lighting → Particles → Transparent → PostProcess → UI → Present → Idle.
// Shadow repeats once per shadow-casting light face and may be skipped
// entirely on frames with no shadow casters.
var allowedNext = map[Kind][]Kind{
	Idle:         {Culling},
	Culling:      {Shadow, DepthPrepass},
	Shadow:       {Shadow, DepthPrepass},
	DepthPrepass: {GBuffer},
	GBuffer:      {Ambient},
	Ambient:      {Lighting},
	Lighting:     {Particles},
	Particles:    {Transparent},
	Transparent:  {PostProcess},
	PostProcess:  {UI},
	UI:           {Present},
	Present:      {Idle},
}

// Sequencer tracks the current pass and validates every transition. It does
// not record GPU work itself; the renderer performs resource transitions and
// backend recording between Begin and End.
type Sequencer struct {
	current  Kind
	inPass   bool
	validate bool
}

// SequencerBuilderOption is a functional option for configuring a Sequencer.
type SequencerBuilderOption func(*Sequencer)

// WithValidation makes ordering violations panic instead of returning
// ErrOutOfOrder, for debug builds where a violated invariant should stop the
// process at the fault.
//
// Returns:
//   - SequencerBuilderOption: option function to apply
func WithValidation() SequencerBuilderOption {
	return func(s *Sequencer) {
		s.validate = true
	}
}

// NewSequencer creates a sequencer in the Idle state.
func NewSequencer(options ...SequencerBuilderOption) *Sequencer {
	s := &Sequencer{current: Idle}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Current returns the pass most recently begun (or, between passes, the one
// most recently ended).
func (s *Sequencer) Current() Kind {
	return s.current
}

// InPass reports whether a pass is currently open.
func (s *Sequencer) InPass() bool {
	return s.inPass
}

// Begin opens the next pass. The requested kind must be a legal successor of
// the current one and no other pass may be open.
//
// Parameters:
//   - k: the pass to open
//
// Returns:
//   - error: ErrOutOfOrder on an illegal transition
func (s *Sequencer) Begin(k Kind) error {
	if s.inPass {
		return s.violation(fmt.Errorf("%w: begin %v while %v is open", ErrOutOfOrder, k, s.current))
	}
	for _, next := range allowedNext[s.current] {
		if next == k {
			s.current = k
			s.inPass = true
			return nil
		}
	}
	return s.violation(fmt.Errorf("%w: %v cannot follow %v", ErrOutOfOrder, k, s.current))
}

// End closes the currently open pass.
//
// Parameters:
//   - k: the pass being closed, which must match the open one
//
// Returns:
//   - error: ErrOutOfOrder when no pass is open or the kind mismatches
func (s *Sequencer) End(k Kind) error {
	if !s.inPass || s.current != k {
		return s.violation(fmt.Errorf("%w: end %v while in %v", ErrOutOfOrder, k, s.current))
	}
	s.inPass = false
	if k == Present {
		s.current = Idle
	}
	return nil
}

// Reset forces the sequencer back to Idle, used when a frame is abandoned
// before submission (swapchain out-of-date).
func (s *Sequencer) Reset() {
	s.current = Idle
	s.inPass = false
}

func (s *Sequencer) violation(err error) error {
	if s.validate {
		panic(err)
	}
	return err
}
