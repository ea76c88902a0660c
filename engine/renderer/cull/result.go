// Package cull implements the per-viewpoint visibility stage: a GPU compute
// dispatch (or a CPU fallback on the submission thread) that tests every
// scene instance's world-space bounds against the six planes of the active
// view frustum and records one bit per instance. Straddling instances are
// conservatively visible: false positives only cost overdraw, false
// negatives are forbidden.
package cull

import "math/bits"

const wordBits = 32

// Result is a packed per-instance visibility bitmap, keyed by scene-instance
// index. Produced once per frame per culling viewpoint and consumed
// read-only by the batching step of subsequent passes.
type Result struct {
	words []uint32
	count int
}

// NewResult creates a bitmap sized for instanceCount instances, all hidden.
func NewResult(instanceCount int) *Result {
	r := &Result{}
	r.Resize(instanceCount)
	return r
}

// Resize adjusts the bitmap capacity and clears it.
func (r *Result) Resize(instanceCount int) {
	wordCount := (instanceCount + wordBits - 1) / wordBits
	if cap(r.words) < wordCount {
		r.words = make([]uint32, wordCount)
	}
	r.words = r.words[:wordCount]
	r.count = instanceCount
	r.Clear()
}

// Count returns the number of instances the bitmap covers.
func (r *Result) Count() int {
	return r.count
}

// Clear hides every instance.
func (r *Result) Clear() {
	clear(r.words)
}

// MarkAll marks every instance visible, the degenerate no-culling result.
func (r *Result) MarkAll() {
	for i := range r.words {
		r.words[i] = ^uint32(0)
	}
	if rem := r.count % wordBits; rem != 0 && len(r.words) > 0 {
		r.words[len(r.words)-1] = (1 << rem) - 1
	}
}

// SetVisible marks one instance visible. Out-of-range indices are ignored.
func (r *Result) SetVisible(index int) {
	if index < 0 || index >= r.count {
		return
	}
	r.words[index/wordBits] |= 1 << (index % wordBits)
}

// Visible reports whether the instance passed the frustum test.
func (r *Result) Visible(index int) bool {
	if index < 0 || index >= r.count {
		return false
	}
	return r.words[index/wordBits]&(1<<(index%wordBits)) != 0
}

// VisibleCount returns the number of visible instances.
func (r *Result) VisibleCount() int {
	total := 0
	for _, w := range r.words {
		total += bits.OnesCount32(w)
	}
	return total
}

// Words exposes the packed bitmap, e.g. for comparison against a GPU-written
// visibility buffer.
func (r *Result) Words() []uint32 {
	return r.words
}

// CopyFrom replaces this bitmap's contents with another of the same size.
func (r *Result) CopyFrom(other *Result) {
	r.Resize(other.count)
	copy(r.words, other.words)
}
