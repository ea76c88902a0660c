package common

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// AABB is an axis-aligned bounding box in world or local space.
type AABB struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

// NewAABB constructs a bounding box from two corner points, ordering the
// components so that Min <= Max on every axis.
//
// Parameters:
//   - a, b: opposite corners in any order
//
// Returns:
//   - AABB: the normalized bounding box
func NewAABB(a, b mgl32.Vec3) AABB {
	var box AABB
	for i := 0; i < 3; i++ {
		box.Min[i] = min(a[i], b[i])
		box.Max[i] = max(a[i], b[i])
	}
	return box
}

// Center returns the midpoint of the box.
func (b AABB) Center() mgl32.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Extents returns the half-size of the box along each axis.
func (b AABB) Extents() mgl32.Vec3 {
	return b.Max.Sub(b.Min).Mul(0.5)
}

// Transformed returns the tightest axis-aligned box enclosing this box after
// applying the given transform. Uses the Arvo method: the new center is the
// transformed center, and the new extents are the absolute rotation/scale
// part applied to the old extents.
//
// Parameters:
//   - m: the transform to apply (column-major)
//
// Returns:
//   - AABB: the transformed bounding box
func (b AABB) Transformed(m mgl32.Mat4) AABB {
	c := b.Center()
	e := b.Extents()

	tc := mgl32.TransformCoordinate(c, m)

	var te mgl32.Vec3
	for row := 0; row < 3; row++ {
		te[row] = abs32(m.At(row, 0))*e.X() + abs32(m.At(row, 1))*e.Y() + abs32(m.At(row, 2))*e.Z()
	}

	return AABB{Min: tc.Sub(te), Max: tc.Add(te)}
}

// Union returns the smallest box containing both boxes.
func (b AABB) Union(other AABB) AABB {
	var out AABB
	for i := 0; i < 3; i++ {
		out.Min[i] = min(b.Min[i], other.Min[i])
		out.Max[i] = max(b.Max[i], other.Max[i])
	}
	return out
}

func abs32(v float32) float32 {
	return float32(math.Abs(float64(v)))
}
