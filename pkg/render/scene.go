package render

import (
	"github.com/taigrr/helmet/pkg/math3d"
)

// MeshObject is a mesh placed in the scene with its materials.
type MeshObject struct {
	Mesh      MeshRenderer
	Materials []*Material
	Transform math3d.Mat4
	Wireframe bool
}

// WireColor is used when drawing objects in wireframe mode.
var WireColor = RGB(120, 220, 255)

// Scene is everything a RenderPass draws: a background, lighting and an
// optional object.
type Scene struct {
	Background Color
	Lighting   Lighting
	Object     *MeshObject // nil until a model is loaded
}

// NewScene creates an empty scene with default lighting.
func NewScene(background Color) *Scene {
	return &Scene{
		Background: background,
		Lighting:   DefaultLighting(),
	}
}

// SetEnvironment switches the scene to image-based lighting from env.
func (s *Scene) SetEnvironment(env *Environment) {
	s.Lighting.Environment = env
}

// Draw clears r's target to the background and draws the object, if any.
func (s *Scene) Draw(r *Rasterizer) {
	fb := r.Target()
	if fb == nil {
		return
	}
	fb.Clear(s.Background)
	r.ClearDepth()
	r.ResetStats()

	obj := s.Object
	if obj == nil || obj.Mesh == nil {
		return
	}
	if obj.Wireframe {
		r.DrawMeshWireframe(obj.Mesh, obj.Transform, WireColor)
		return
	}
	r.DrawMesh(obj.Mesh, obj.Transform, obj.Materials, &s.Lighting)
}
