package barrier

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hucancode/mjolnir/engine/handle"
)

// recordedBarrier is one captured PipelineBarrier call.
type recordedBarrier struct {
	src, dst Stage
	images   []ImageTransition
	buffers  []BufferTransition
}

// mockRecorder captures barrier calls for assertions.
type mockRecorder struct {
	calls []recordedBarrier
}

func (m *mockRecorder) PipelineBarrier(src, dst Stage, images []ImageTransition, buffers []BufferTransition) {
	m.calls = append(m.calls, recordedBarrier{
		src:     src,
		dst:     dst,
		images:  append([]ImageTransition(nil), images...),
		buffers: append([]BufferTransition(nil), buffers...),
	})
}

func imageRes(i uint32) Resource {
	return Resource{ID: handle.Handle{Index: i, Generation: 1}, Kind: KindImage}
}

func bufferRes(i uint32) Resource {
	return Resource{ID: handle.Handle{Index: i, Generation: 1}, Kind: KindBuffer}
}

var colorTarget = State{
	Stage:  StageColorAttachmentOutput,
	Access: AccessColorAttachmentWrite,
	Layout: LayoutColorAttachment,
}

var shaderRead = State{
	Stage:  StageFragmentShader,
	Access: AccessShaderRead,
	Layout: LayoutShaderReadOnly,
}

func TestFirstUseStartsUndefined(t *testing.T) {
	tr := NewTracker()
	rec := &mockRecorder{}

	res := imageRes(1)
	tr.Transition(rec, res, colorTarget)

	require.Len(t, rec.calls, 1)
	require.Len(t, rec.calls[0].images, 1)
	img := rec.calls[0].images[0]
	assert.Equal(t, LayoutUndefined, img.OldLayout, "fresh image must not attempt to preserve prior content")
	assert.Equal(t, AccessNone, img.SrcAccess)
	assert.Equal(t, StageTopOfPipe, rec.calls[0].src)
	assert.Equal(t, LayoutColorAttachment, img.NewLayout)
}

func TestIdempotentTransition(t *testing.T) {
	tr := NewTracker()
	rec := &mockRecorder{}

	res := imageRes(1)
	tr.Transition(rec, res, colorTarget)
	tr.Transition(rec, res, colorTarget)
	tr.Transition(rec, res, colorTarget)

	assert.Len(t, rec.calls, 1, "matching target state must not emit a barrier")
}

func TestBarrierSpansWriterToReader(t *testing.T) {
	tr := NewTracker()
	rec := &mockRecorder{}

	res := imageRes(3)
	tr.Transition(rec, res, colorTarget)
	tr.Transition(rec, res, shaderRead)

	require.Len(t, rec.calls, 2)
	second := rec.calls[1]
	assert.Equal(t, StageColorAttachmentOutput, second.src, "source must be the previous writer's stage")
	assert.Equal(t, StageFragmentShader, second.dst, "destination must be the next reader's stage")
	assert.Equal(t, AccessColorAttachmentWrite, second.images[0].SrcAccess)
	assert.Equal(t, AccessShaderRead, second.images[0].DstAccess)

	state, seen := tr.StateOf(res)
	require.True(t, seen)
	assert.Equal(t, shaderRead, state)
}

func TestBufferTransition(t *testing.T) {
	tr := NewTracker()
	rec := &mockRecorder{}

	res := bufferRes(9)
	write := State{Stage: StageComputeShader, Access: AccessShaderWrite}
	read := State{Stage: StageDrawIndirect, Access: AccessIndirectCommandRead}

	tr.Transition(rec, res, write)
	tr.Transition(rec, res, read)

	require.Len(t, rec.calls, 2)
	require.Len(t, rec.calls[1].buffers, 1)
	assert.Empty(t, rec.calls[1].images)
	assert.Equal(t, AccessShaderWrite, rec.calls[1].buffers[0].SrcAccess)
	assert.Equal(t, AccessIndirectCommandRead, rec.calls[1].buffers[0].DstAccess)
}

func TestBatchEmitsSingleCall(t *testing.T) {
	tr := NewTracker()
	rec := &mockRecorder{}

	// All five G-buffer channels written by the geometry pass.
	gbuffer := []Resource{imageRes(1), imageRes(2), imageRes(3), imageRes(4), imageRes(5)}
	tr.TransitionBatch(rec, gbuffer, colorTarget)
	require.Len(t, rec.calls, 1)
	assert.Len(t, rec.calls[0].images, 5)

	// Then handed to the ambient pass as shader inputs: one more call, not five.
	tr.TransitionBatch(rec, gbuffer, shaderRead)
	require.Len(t, rec.calls, 2)
	assert.Len(t, rec.calls[1].images, 5)
	assert.Equal(t, StageColorAttachmentOutput, rec.calls[1].src)
	assert.Equal(t, StageFragmentShader, rec.calls[1].dst)
}

func TestBatchSkipsMatchingResources(t *testing.T) {
	tr := NewTracker()
	rec := &mockRecorder{}

	a, b := imageRes(1), imageRes(2)
	tr.Transition(rec, a, shaderRead)
	rec.calls = nil

	// a already matches; only b needs the barrier. Both share the target but
	// not the source, and a is filtered before source grouping applies.
	tr.TransitionBatch(rec, []Resource{a, b}, shaderRead)
	require.Len(t, rec.calls, 1)
	assert.Len(t, rec.calls[0].images, 1)
	assert.Equal(t, b, rec.calls[0].images[0].Resource)

	// Fully matching batch emits nothing.
	rec.calls = nil
	tr.TransitionBatch(rec, []Resource{a, b}, shaderRead)
	assert.Empty(t, rec.calls)
}

func TestBatchSplitsMismatchedSourceStages(t *testing.T) {
	tr := NewTracker()
	rec := &mockRecorder{}

	a, b := imageRes(1), imageRes(2)
	tr.Transition(rec, a, colorTarget)
	tr.Transition(rec, b, State{
		Stage:  StageComputeShader,
		Access: AccessShaderWrite,
		Layout: LayoutGeneral,
	})
	rec.calls = nil

	tr.TransitionBatch(rec, []Resource{a, b}, shaderRead)
	require.Len(t, rec.calls, 2, "different source stages need separate spans")
	assert.Equal(t, StageColorAttachmentOutput, rec.calls[0].src)
	assert.Equal(t, StageComputeShader, rec.calls[1].src)
}

func TestForgetResetsToInitial(t *testing.T) {
	tr := NewTracker()
	rec := &mockRecorder{}

	res := imageRes(1)
	tr.Transition(rec, res, shaderRead)
	tr.Forget(res)

	state, seen := tr.StateOf(res)
	assert.False(t, seen)
	assert.Equal(t, Initial, state)

	rec.calls = nil
	tr.Transition(rec, res, colorTarget)
	require.Len(t, rec.calls, 1)
	assert.Equal(t, LayoutUndefined, rec.calls[0].images[0].OldLayout)
}

func TestResetDropsEverything(t *testing.T) {
	tr := NewTracker()
	rec := &mockRecorder{}

	for i := uint32(0); i < 8; i++ {
		tr.Transition(rec, imageRes(i), colorTarget)
	}
	assert.Equal(t, 8, tr.Tracked())
	tr.Reset()
	assert.Equal(t, 0, tr.Tracked())
}

// TestHazardReplay replays randomized but dependency-valid pass orders over a
// set of resources and asserts the tracker never lets a read begin without
// the preceding writer's barrier: whenever a transition into a read state is
// requested after a write, a barrier must have been emitted whose source
// covers that writer's stage and access.
func TestHazardReplay(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	writeStates := []State{
		{Stage: StageColorAttachmentOutput, Access: AccessColorAttachmentWrite, Layout: LayoutColorAttachment},
		{Stage: StageComputeShader, Access: AccessShaderWrite, Layout: LayoutGeneral},
		{Stage: StageLateFragmentTests, Access: AccessDepthStencilWrite, Layout: LayoutDepthStencilAttachment},
	}
	readStates := []State{
		{Stage: StageFragmentShader, Access: AccessShaderRead, Layout: LayoutShaderReadOnly},
		{Stage: StageVertexShader, Access: AccessShaderRead, Layout: LayoutShaderReadOnly},
	}

	for trial := 0; trial < 100; trial++ {
		tr := NewTracker()
		rec := &mockRecorder{}
		resources := []Resource{imageRes(1), imageRes(2), imageRes(3)}
		lastState := map[Resource]State{}

		// A valid pass order always writes a resource before reading it.
		for step := 0; step < 20; step++ {
			res := resources[rng.Intn(len(resources))]
			var target State
			if _, written := lastState[res]; !written || rng.Intn(2) == 0 {
				target = writeStates[rng.Intn(len(writeStates))]
			} else {
				target = readStates[rng.Intn(len(readStates))]
			}

			before := len(rec.calls)
			tr.Transition(rec, res, target)

			prev, had := lastState[res]
			if had && prev != target {
				// A state change after a prior use must emit exactly one
				// barrier spanning the previous stage to the new one.
				require.Equal(t, before+1, len(rec.calls))
				call := rec.calls[len(rec.calls)-1]
				assert.Equal(t, prev.Stage, call.src)
				assert.Equal(t, target.Stage, call.dst)
				assert.Equal(t, prev.Access, call.images[0].SrcAccess)
			}
			if had && prev == target {
				assert.Equal(t, before, len(rec.calls), "idempotent transition emitted a barrier")
			}
			lastState[res] = target
		}
	}
}
