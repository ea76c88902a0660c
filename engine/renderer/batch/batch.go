package batch

import (
	"log"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/hucancode/mjolnir/engine/handle"
	"github.com/hucancode/mjolnir/engine/renderer/cull"
	"github.com/hucancode/mjolnir/engine/renderer/material"
	"github.com/hucancode/mjolnir/engine/renderer/pass"
	"github.com/hucancode/mjolnir/engine/renderer/pipeline"
	"github.com/hucancode/mjolnir/engine/scene"
)

// Draw is one draw record inside a group: a mesh and its world transform.
type Draw struct {
	// Mesh is the GPU mesh handle.
	Mesh handle.Handle

	// Transform is the instance's world transform.
	Transform mgl32.Mat4
}

// Group is an ordered run of draws sharing a pipeline variant and material,
// recorded with one pipeline bind and one material descriptor bind.
type Group struct {
	// Key is the normalized pipeline variant key.
	Key pipeline.Key

	// Material is the shared material handle.
	Material handle.Handle

	// Draws are the group's draw records in submission order.
	Draws []Draw
}

// Resolver answers handle liveness questions during batch building. The
// renderer backs it with its resource tables.
type Resolver interface {
	// Material returns the material behind a handle, or false if the handle
	// is stale or nil.
	//
	// Parameters:
	//   - h: the material handle
	//
	// Returns:
	//   - material.Material: the material
	//   - bool: false if the handle does not resolve
	Material(h handle.Handle) (material.Material, bool)

	// MeshLive reports whether a mesh handle resolves to a live GPU mesh.
	//
	// Parameters:
	//   - h: the mesh handle
	//
	// Returns:
	//   - bool: true if the mesh is live
	MeshLive(h handle.Handle) bool
}

type groupID struct {
	key      pipeline.Key
	material handle.Handle
}

// Builder builds per-frame draw groups from instances and visibility. The
// backing slices and map are reused across frames; a Builder belongs to one
// frame slot and must not be shared.
type Builder struct {
	resolver Resolver

	groups []Group
	lookup map[groupID]int

	// stash of retired draw slices, reused to avoid per-frame allocation
	// once group counts stabilize.
	spare [][]Draw

	skipped int
}

// NewBuilder creates a batch builder using the given resolver.
//
// Parameters:
//   - resolver: the handle resolver (must not be nil)
//
// Returns:
//   - *Builder: the new builder
func NewBuilder(resolver Resolver) *Builder {
	if resolver == nil {
		panic("batch: NewBuilder requires a non-nil Resolver")
	}
	return &Builder{
		resolver: resolver,
		lookup:   make(map[groupID]int),
	}
}

// Build groups the visible instances routed to the given pass by
// (pipeline variant, material) and returns the groups in first-seen order.
// Opaque instances route to every pass except Transparent; transparent
// instances route only to Transparent. Instances whose mesh or material
// handle does not resolve are skipped with a log line; a missing asset never
// aborts the frame. The returned slice is valid until the next Build call.
//
// Parameters:
//   - kind: the pass the groups will record into
//   - instances: the frame's instances in scene order
//   - visible: the culling bitmap for this viewpoint, nil to include all
//
// Returns:
//   - []Group: the draw groups in first-seen order
func (b *Builder) Build(kind pass.Kind, instances []scene.Instance, visible *cull.Result) []Group {
	b.reset()

	for i := range instances {
		inst := &instances[i]
		if visible != nil && !visible.Visible(i) {
			continue
		}
		if inst.Transparent != (kind == pass.Transparent) {
			continue
		}
		mat, ok := b.resolver.Material(inst.Material)
		if !ok {
			b.skipped++
			log.Printf("[Batch] skipping node %d: material handle %v does not resolve", inst.NodeID, inst.Material)
			continue
		}
		if !b.resolver.MeshLive(inst.Mesh) {
			b.skipped++
			log.Printf("[Batch] skipping node %d: mesh handle %v does not resolve", inst.NodeID, inst.Mesh)
			continue
		}

		id := groupID{
			key:      pipeline.Key{Pass: kind, Features: mat.Features()}.Normalize(),
			material: inst.Material,
		}
		gi, ok := b.lookup[id]
		if !ok {
			gi = len(b.groups)
			b.lookup[id] = gi
			b.groups = append(b.groups, Group{
				Key:      id.key,
				Material: id.material,
				Draws:    b.takeDraws(),
			})
		}
		b.groups[gi].Draws = append(b.groups[gi].Draws, Draw{
			Mesh:      inst.Mesh,
			Transform: inst.Transform,
		})
	}

	return b.groups
}

// Skipped returns the number of instances dropped for unresolvable handles
// during the last Build.
//
// Returns:
//   - int: the skip count
func (b *Builder) Skipped() int {
	return b.skipped
}

func (b *Builder) reset() {
	for i := range b.groups {
		b.spare = append(b.spare, b.groups[i].Draws[:0])
	}
	b.groups = b.groups[:0]
	clear(b.lookup)
	b.skipped = 0
}

func (b *Builder) takeDraws() []Draw {
	if n := len(b.spare); n > 0 {
		d := b.spare[n-1]
		b.spare = b.spare[:n-1]
		return d
	}
	return nil
}
