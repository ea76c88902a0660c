package barrier

// Tracker owns the state bookkeeping for every resource shared between
// passes. It is a recorder, not a scheduler: callers must request
// transitions in the exact order their GPU work will execute, and the
// tracker emits a barrier only when the target state differs from the
// recorded one.
//
// Tracker is confined to the frame-recording thread (the engine records a
// single command stream per frame) and performs no locking.
type Tracker struct {
	states map[Resource]State

	// scratch slices reused across transitions to avoid per-pass allocation
	imgScratch []ImageTransition
	bufScratch []BufferTransition
}

// NewTracker creates a Tracker with no recorded state. Every resource's
// first transition starts from the implicit Initial (undefined) state.
func NewTracker() *Tracker {
	return &Tracker{
		states: make(map[Resource]State),
	}
}

// StateOf returns the recorded state of a resource and whether it has been
// seen before. Unseen resources report Initial.
func (t *Tracker) StateOf(res Resource) (State, bool) {
	s, ok := t.states[res]
	if !ok {
		return Initial, false
	}
	return s, true
}

// Transition moves one resource to the target state, emitting at most one
// barrier through the recorder. A transition to the already-recorded state
// is a no-op: barriers guard read-after-write, write-after-write, and
// write-after-read hazards only.
//
// Parameters:
//   - rec: the barrier recorder for the current command stream
//   - res: the resource being handed to the next pass
//   - target: the stage/access/layout the next pass requires
func (t *Tracker) Transition(rec Recorder, res Resource, target State) {
	current, ok := t.states[res]
	if !ok {
		current = Initial
	}
	if current == target {
		return
	}

	switch res.Kind {
	case KindImage:
		rec.PipelineBarrier(current.Stage, target.Stage,
			[]ImageTransition{{
				Resource:  res,
				SrcAccess: current.Access,
				DstAccess: target.Access,
				OldLayout: current.Layout,
				NewLayout: target.Layout,
			}}, nil)
	case KindBuffer:
		rec.PipelineBarrier(current.Stage, target.Stage, nil,
			[]BufferTransition{{
				Resource:  res,
				SrcAccess: current.Access,
				DstAccess: target.Access,
			}})
	}

	t.states[res] = target
}

// TransitionBatch moves N resources sharing the same source/destination
// stage pair to the target state with a single batched barrier call, rather
// than N separate pipeline stalls. Resources already in the target state are
// skipped; if every resource already matches, no barrier is emitted.
//
// All pending resources must share one source stage (e.g. all five G-buffer
// channels leaving color-attachment output together). Resources recorded at
// a different source stage fall back to individual Transition calls so the
// barrier span stays correct for each of them.
//
// Parameters:
//   - rec: the barrier recorder for the current command stream
//   - resources: the resources moving together
//   - target: the shared stage/access/layout the next pass requires
func (t *Tracker) TransitionBatch(rec Recorder, resources []Resource, target State) {
	t.imgScratch = t.imgScratch[:0]
	t.bufScratch = t.bufScratch[:0]

	var srcStage Stage
	var haveSrc bool
	var stragglers []Resource

	for _, res := range resources {
		current, ok := t.states[res]
		if !ok {
			current = Initial
		}
		if current == target {
			continue
		}
		if !haveSrc {
			srcStage = current.Stage
			haveSrc = true
		} else if current.Stage != srcStage {
			stragglers = append(stragglers, res)
			continue
		}

		switch res.Kind {
		case KindImage:
			t.imgScratch = append(t.imgScratch, ImageTransition{
				Resource:  res,
				SrcAccess: current.Access,
				DstAccess: target.Access,
				OldLayout: current.Layout,
				NewLayout: target.Layout,
			})
		case KindBuffer:
			t.bufScratch = append(t.bufScratch, BufferTransition{
				Resource:  res,
				SrcAccess: current.Access,
				DstAccess: target.Access,
			})
		}
		t.states[res] = target
	}

	if len(t.imgScratch) > 0 || len(t.bufScratch) > 0 {
		rec.PipelineBarrier(srcStage, target.Stage, t.imgScratch, t.bufScratch)
	}

	for _, res := range stragglers {
		t.Transition(rec, res, target)
	}
}

// Forget drops the recorded state of one resource. Called when the backend
// destroys the resource; a recreated resource at the same handle starts
// from the implicit Initial state again.
func (t *Tracker) Forget(res Resource) {
	delete(t.states, res)
}

// Reset drops all recorded state. Called when every size-dependent resource
// is torn down on a surface resize.
func (t *Tracker) Reset() {
	clear(t.states)
}

// Tracked returns the number of resources with recorded state.
func (t *Tracker) Tracked() int {
	return len(t.states)
}
