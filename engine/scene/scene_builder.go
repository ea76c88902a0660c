package scene

import (
	"github.com/go-gl/mathgl/mgl32"
)

// SceneBuilderOption is a functional option for configuring a Scene.
// Use the With* functions to create options.
type SceneBuilderOption func(s *sceneImpl)

// WithAmbientColor sets the scene's ambient light color.
//
// Parameters:
//   - color: the ambient RGB color
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithAmbientColor(color mgl32.Vec3) SceneBuilderOption {
	return func(s *sceneImpl) {
		s.ambientColor = color
	}
}
