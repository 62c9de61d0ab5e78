package render

import (
	"math"

	"github.com/taigrr/helmet/pkg/math3d"
)

// Material is a metallic-roughness surface description. Colour factors are
// linear; texture channels follow glTF (metal-rough: G roughness, B metalness;
// occlusion: R).
type Material struct {
	BaseColor math3d.Vec3
	Metallic  float64
	Roughness float64
	Emissive  math3d.Vec3

	BaseMap       *Texture
	MetalRoughMap *Texture
	OcclusionMap  *Texture
	EmissiveMap   *Texture
}

// DefaultMaterial is used for faces without a material.
var DefaultMaterial = Material{
	BaseColor: math3d.Splat3(1),
	Roughness: 1,
}

// Lighting describes how meshes are lit. With an Environment, lighting is
// image based; otherwise an ambient term plus one directional light is used.
type Lighting struct {
	Environment *Environment

	LightDir   math3d.Vec3 // Direction towards the light
	LightColor math3d.Vec3
	Ambient    math3d.Vec3

	Exposure float64
}

// DefaultLighting returns a neutral key light used until an environment is
// available.
func DefaultLighting() Lighting {
	return Lighting{
		LightDir:   math3d.V3(0.5, 1, 0.8).Normalize(),
		LightColor: math3d.Splat3(2.5),
		Ambient:    math3d.Splat3(0.25),
		Exposure:   1,
	}
}

// Roughness levels sampled per vertex; per-pixel roughness blends between them.
const (
	sharpRoughness = 0.15
	broadRoughness = 0.85
)

// vertexLight holds lighting terms evaluated at a vertex and interpolated
// across the triangle.
type vertexLight struct {
	diffuse math3d.Vec3
	sharp   math3d.Vec3 // Specular radiance for a smooth surface
	broad   math3d.Vec3 // Specular radiance for a rough surface
	fresnel float64     // Schlick (1 - n·v)^5
}

// lightVertex evaluates lighting for world-space position p and unit normal n.
func (l *Lighting) lightVertex(p, n, eye math3d.Vec3) vertexLight {
	view := eye.Sub(p).Normalize()
	ndv := math.Max(0, n.Dot(view))
	refl := view.Negate().Reflect(n)

	out := vertexLight{fresnel: math.Pow(1-ndv, 5)}
	if env := l.Environment; env != nil {
		out.diffuse = env.Irradiance(n)
		out.sharp = env.Radiance(refl, sharpRoughness)
		out.broad = env.Radiance(refl, broadRoughness)
		return out
	}

	ndl := math.Max(0, n.Dot(l.LightDir))
	rdl := math.Max(0, refl.Dot(l.LightDir))
	out.diffuse = l.Ambient.Add(l.LightColor.Scale(ndl))
	out.sharp = l.Ambient.Add(l.LightColor.Scale(math.Pow(rdl, 48)))
	out.broad = l.Ambient.Add(l.LightColor.Scale(0.3 * math.Pow(rdl, 4)))
	return out
}

// lerpLight interpolates three vertex terms with weights w (summing to 1).
func lerpLight(a, b, c *vertexLight, w0, w1, w2 float64) vertexLight {
	mix := func(x, y, z math3d.Vec3) math3d.Vec3 {
		return math3d.V3(
			x.X*w0+y.X*w1+z.X*w2,
			x.Y*w0+y.Y*w1+z.Y*w2,
			x.Z*w0+y.Z*w1+z.Z*w2,
		)
	}
	return vertexLight{
		diffuse: mix(a.diffuse, b.diffuse, c.diffuse),
		sharp:   mix(a.sharp, b.sharp, c.sharp),
		broad:   mix(a.broad, b.broad, c.broad),
		fresnel: a.fresnel*w0 + b.fresnel*w1 + c.fresnel*w2,
	}
}

// shade returns the linear radiance leaving the surface at texture
// coordinate (u, v) under the interpolated lighting terms.
func (m *Material) shade(u, v float64, lt vertexLight) math3d.Vec3 {
	albedo := m.BaseColor
	if m.BaseMap != nil {
		albedo = albedo.Mul(m.BaseMap.SampleLinear(u, v))
	}

	roughness, metallic := m.Roughness, m.Metallic
	if m.MetalRoughMap != nil {
		s := m.MetalRoughMap.SampleLinear(u, v)
		roughness *= s.Y
		metallic *= s.Z
	}
	roughness, metallic = clamp01(roughness), clamp01(metallic)

	ao := 1.0
	if m.OcclusionMap != nil {
		ao = m.OcclusionMap.SampleLinear(u, v).X
	}

	emissive := m.Emissive
	if m.EmissiveMap != nil {
		emissive = emissive.Mul(m.EmissiveMap.SampleLinear(u, v))
	}

	f0 := math3d.Splat3(0.04).Lerp(albedo, metallic)
	fresnel := f0.Add(math3d.Splat3(1).Sub(f0).Scale(lt.fresnel * (1 - roughness)))
	spec := lt.sharp.Lerp(lt.broad, roughness).Mul(fresnel)
	diffuse := albedo.Scale(1 - metallic).Mul(lt.diffuse)

	return diffuse.Add(spec).Scale(ao).Add(emissive)
}
