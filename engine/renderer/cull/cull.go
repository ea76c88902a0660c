package cull

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"

	"github.com/hucancode/mjolnir/common"
)

// Dispatcher is the GPU compute path for one culling invocation. The backend
// dispatches the frustum-test shader over the instance bounds buffer, inserts
// the completion barrier, submits, and waits for the GPU (one synchronous
// round-trip per invocation, trading throughput for simplicity), then copies
// the packed visibility words into out.
type Dispatcher interface {
	Dispatch(slotIndex, viewSlot int, frustum common.Frustum, bounds []common.AABB, out *Result) error
}

// Stage runs visibility culling once per viewpoint per frame: the main
// camera plus one invocation per shadow-casting light face. Results are
// double-buffered per frame slot so the GPU never reads a bitmap the CPU is
// rewriting for the next frame.
type Stage struct {
	dispatcher Dispatcher
	gpuEnabled bool

	// results[frameSlot][viewSlot]
	results [][]*Result

	// CPU fallback fan-out
	pool        worker.DynamicWorkerPool
	workerCount int
}

// StageBuilderOption is a functional option for configuring a Stage.
type StageBuilderOption func(*Stage)

// WithDispatcher enables the GPU compute path using the given dispatcher.
//
// Parameters:
//   - d: the backend compute dispatcher
//
// Returns:
//   - StageBuilderOption: option function to apply
func WithDispatcher(d Dispatcher) StageBuilderOption {
	return func(s *Stage) {
		s.dispatcher = d
		s.gpuEnabled = d != nil
	}
}

// WithComputeDisabled forces the CPU fallback path even when a dispatcher is
// configured.
//
// Returns:
//   - StageBuilderOption: option function to apply
func WithComputeDisabled() StageBuilderOption {
	return func(s *Stage) {
		s.gpuEnabled = false
	}
}

// WithCullWorkers sets the goroutine count for the CPU fallback fan-out.
// Values <= 0 keep the default (NumCPU-1, minimum 1).
//
// Parameters:
//   - n: worker goroutine count
//
// Returns:
//   - StageBuilderOption: option function to apply
func WithCullWorkers(n int) StageBuilderOption {
	return func(s *Stage) {
		if n > 0 {
			s.workerCount = n
		}
	}
}

// NewStage creates a culling stage with double-buffered results for
// slotCount frame slots and viewSlots viewpoints per slot.
//
// Parameters:
//   - slotCount: frames in flight
//   - viewSlots: viewpoints per frame (main camera + shadow faces)
//   - options: variadic list of StageBuilderOption functions
//
// Returns:
//   - *Stage: the configured stage
func NewStage(slotCount, viewSlots int, options ...StageBuilderOption) *Stage {
	s := &Stage{
		workerCount: max(runtime.NumCPU()-1, 1),
	}
	for _, opt := range options {
		opt(s)
	}

	s.results = make([][]*Result, slotCount)
	for i := range s.results {
		s.results[i] = make([]*Result, viewSlots)
		for j := range s.results[i] {
			s.results[i][j] = NewResult(0)
		}
	}

	s.pool = worker.NewDynamicWorkerPool(s.workerCount, 256, 1*time.Second)
	return s
}

// Result returns the double-buffered bitmap for one frame slot and viewpoint.
func (s *Stage) Result(slotIndex, viewSlot int) *Result {
	return s.results[slotIndex][viewSlot]
}

// Cull runs one culling invocation and returns the visibility bitmap owned
// by (slotIndex, viewSlot). The GPU path submits and waits before returning
// so downstream passes can record draws against a fully written bitmap; the
// CPU fallback produces identical conservative-visible semantics on the
// draw-submission thread.
//
// Parameters:
//   - slotIndex: the frame slot whose buffered result to fill
//   - viewSlot: the viewpoint slot (0 = main camera, then light faces)
//   - frustum: the viewpoint's frustum, planes facing inward
//   - bounds: world-space bounding boxes, indexed by instance
//
// Returns:
//   - *Result: the filled bitmap
//   - error: a GPU dispatch failure (fatal for the frame)
func (s *Stage) Cull(slotIndex, viewSlot int, frustum common.Frustum, bounds []common.AABB) (*Result, error) {
	out := s.results[slotIndex][viewSlot]
	out.Resize(len(bounds))

	if s.gpuEnabled {
		if err := s.dispatcher.Dispatch(slotIndex, viewSlot, frustum, bounds, out); err != nil {
			return nil, fmt.Errorf("cull: view slot %d dispatch: %w", viewSlot, err)
		}
		return out, nil
	}

	s.cullCPU(frustum, bounds, out)
	return out, nil
}

// cullCPU fans the plane tests out over the worker pool. Instances are
// partitioned in word-aligned chunks so each task owns whole bitmap words
// and no two goroutines touch the same word.
func (s *Stage) cullCPU(frustum common.Frustum, bounds []common.AABB, out *Result) {
	const chunk = 1024 // multiple of 32

	if len(bounds) <= chunk {
		cullRange(frustum, bounds, 0, len(bounds), out)
		return
	}

	var wg sync.WaitGroup
	taskID := 0
	for start := 0; start < len(bounds); start += chunk {
		end := min(start+chunk, len(bounds))
		wg.Add(1)
		lo, hi := start, end
		id := taskID
		taskID++
		s.pool.SubmitTask(worker.Task{
			ID: id,
			Do: func() (any, error) {
				defer wg.Done()
				cullRange(frustum, bounds, lo, hi, out)
				return nil, nil
			},
		})
	}
	wg.Wait()
}

func cullRange(frustum common.Frustum, bounds []common.AABB, lo, hi int, out *Result) {
	for i := lo; i < hi; i++ {
		if frustum.IntersectsAABB(bounds[i]) {
			out.SetVisible(i)
		}
	}
}
