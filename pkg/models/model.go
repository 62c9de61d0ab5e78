package models

import (
	"fmt"
	"image"

	"github.com/taigrr/helmet/pkg/math3d"
)

// Material is a glTF metallic-roughness material. Texture images are kept
// as decoded; BaseMap and EmissiveMap hold sRGB data, the others are linear.
type Material struct {
	Name      string
	BaseColor [4]float64 // RGBA factor in 0-1 range
	Metallic  float64    // 0 = dielectric, 1 = metal
	Roughness float64    // 0 = smooth, 1 = rough
	Emissive  [3]float64 // Emissive factor

	BaseMap       image.Image // Base colour (sRGB)
	MetalRoughMap image.Image // G = roughness, B = metalness
	OcclusionMap  image.Image // R = ambient occlusion
	EmissiveMap   image.Image // Emission (sRGB)
}

// DefaultMaterial is used for primitives that reference no material.
func DefaultMaterial() Material {
	return Material{
		Name:      "default",
		BaseColor: [4]float64{1, 1, 1, 1},
		Metallic:  1,
		Roughness: 1,
	}
}

// Model is a loaded scene node: geometry with its node transforms baked in,
// its materials, and the rotation applied when it is drawn.
type Model struct {
	Name      string
	Mesh      *Mesh
	Materials []Material

	// Rotation holds Euler angles in radians (X = pitch, Y = yaw, Z = roll).
	Rotation math3d.Vec3
}

// Matrix returns the model's world transform.
func (m *Model) Matrix() math3d.Mat4 {
	return math3d.EulerXYZ(m.Rotation.X, m.Rotation.Y, m.Rotation.Z)
}

// Material returns material i, or nil if i is out of range.
func (m *Model) Material(i int) *Material {
	if i < 0 || i >= len(m.Materials) {
		return nil
	}
	return &m.Materials[i]
}

// Summary describes the model for logs and the HUD.
func (m *Model) Summary() string {
	if m.Mesh == nil {
		return m.Name
	}
	return fmt.Sprintf("%s (%d vertices, %d triangles, %d materials)",
		m.Name, m.Mesh.VertexCount(), m.Mesh.TriangleCount(), len(m.Materials))
}
