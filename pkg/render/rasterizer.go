package render

import (
	"math"

	"github.com/taigrr/helmet/pkg/math3d"
)

// MeshRenderer allows drawing meshes without importing the models package.
type MeshRenderer interface {
	VertexCount() int
	TriangleCount() int
	GetVertex(i int) (pos, normal math3d.Vec3, uv math3d.Vec2)
	GetFace(i int) [3]int
}

// BoundedMeshRenderer extends MeshRenderer with bounding box support for frustum culling.
type BoundedMeshRenderer interface {
	MeshRenderer
	GetBounds() (min, max math3d.Vec3)
}

// MaterialMeshRenderer extends MeshRenderer with per-face material indices.
type MaterialMeshRenderer interface {
	MeshRenderer
	GetFaceMaterial(i int) int
}

// Stats counts work done since the last ResetStats.
type Stats struct {
	MeshesTested int // Meshes tested for culling
	MeshesCulled int // Meshes culled (not rendered)
	Triangles    int // Triangles that reached the pixel loop
}

// Rasterizer handles software triangle rasterization into a framebuffer.
type Rasterizer struct {
	camera  *Camera
	fb      *Framebuffer
	zbuffer []float64 // Depth buffer (1D array, row-major)
	zw, zh  int

	Stats                  Stats
	DisableBackfaceCulling bool // If true, render both sides of triangles

	// scratch, reused between draws
	verts []shadedVertex
}

// NewRasterizer creates a rasterizer drawing into fb (which may be nil
// until a target is bound).
func NewRasterizer(camera *Camera, fb *Framebuffer) *Rasterizer {
	r := &Rasterizer{camera: camera}
	r.SetTarget(fb)
	return r
}

// SetTarget binds the rasterizer to fb, resizing the depth buffer when the
// dimensions differ from the previous target.
func (r *Rasterizer) SetTarget(fb *Framebuffer) {
	r.fb = fb
	if fb != nil {
		r.ResizeDepth(fb.Width, fb.Height)
	}
}

// ResizeDepth reallocates the depth buffer if its size differs.
func (r *Rasterizer) ResizeDepth(w, h int) {
	if w == r.zw && h == r.zh && r.zbuffer != nil {
		return
	}
	r.zw, r.zh = w, h
	r.zbuffer = make([]float64, w*h)
	r.ClearDepth()
}

// Target returns the bound framebuffer.
func (r *Rasterizer) Target() *Framebuffer {
	return r.fb
}

// DepthSize returns the dimensions of the depth buffer.
func (r *Rasterizer) DepthSize() (w, h int) {
	return r.zw, r.zh
}

// Camera returns the camera used for projection.
func (r *Rasterizer) Camera() *Camera {
	return r.camera
}

// Width returns the framebuffer width.
func (r *Rasterizer) Width() int {
	if r.fb == nil {
		return 0
	}
	return r.fb.Width
}

// Height returns the framebuffer height.
func (r *Rasterizer) Height() int {
	if r.fb == nil {
		return 0
	}
	return r.fb.Height
}

// ClearDepth clears the Z-buffer (call before each frame).
func (r *Rasterizer) ClearDepth() {
	// Use copy-doubling for faster clearing
	n := len(r.zbuffer)
	if n == 0 {
		return
	}
	r.zbuffer[0] = math.MaxFloat64
	for i := 1; i < n; i *= 2 {
		copy(r.zbuffer[i:], r.zbuffer[:i])
	}
}

// ResetStats resets the per-frame statistics.
func (r *Rasterizer) ResetStats() {
	r.Stats = Stats{}
}

// culled reports whether the mesh's bounds, if it has any, lie outside the
// view frustum.
func (r *Rasterizer) culled(mesh MeshRenderer, transform math3d.Mat4) bool {
	bounded, ok := mesh.(BoundedMeshRenderer)
	if !ok {
		return false
	}
	r.Stats.MeshesTested++

	lo, hi := bounded.GetBounds()
	world := AABB{Min: lo, Max: hi}.Transform(transform)
	if !ExtractFrustum(r.camera.ViewProjectionMatrix()).IntersectAABB(world) {
		r.Stats.MeshesCulled++
		return true
	}
	return false
}

// shadedVertex is a vertex projected to screen space with its lighting terms.
type shadedVertex struct {
	X, Y, Z float64 // Screen coordinates and NDC depth
	W       float64 // Clip W, for perspective-correct interpolation
	UV      math3d.Vec2
	light   vertexLight
}

// project converts a world position to screen space. ok is false when the
// point is at or behind the eye.
func (r *Rasterizer) project(viewProj math3d.Mat4, p math3d.Vec3) (sv shadedVertex, ok bool) {
	clip := viewProj.MulVec4(math3d.V4FromV3(p, 1))
	if clip.W <= 0 {
		return sv, false
	}
	invW := 1 / clip.W
	sv.X = (clip.X*invW + 1) * 0.5 * float64(r.Width())
	sv.Y = (1 - clip.Y*invW) * 0.5 * float64(r.Height()) // Y flipped
	sv.Z = clip.Z * invW
	sv.W = clip.W
	return sv, true
}

// DrawMesh renders a mesh lit by lighting, with per-face materials taken
// from materials (faces without one use DefaultMaterial). Lighting terms are
// evaluated once per vertex and interpolated; textures are sampled per pixel.
func (r *Rasterizer) DrawMesh(mesh MeshRenderer, transform math3d.Mat4, materials []*Material, lighting *Lighting) {
	if r.fb == nil || r.culled(mesh, transform) {
		return
	}

	viewProj := r.camera.ViewProjectionMatrix()
	normalMat := transform.NormalMatrix()
	eye := r.camera.Position

	n := mesh.VertexCount()
	if cap(r.verts) < n {
		r.verts = make([]shadedVertex, n)
	}
	verts := r.verts[:n]
	visible := make([]bool, n)

	for i := range verts {
		p, nrm, uv := mesh.GetVertex(i)
		wp := transform.MulVec3(p)
		sv, ok := r.project(viewProj, wp)
		visible[i] = ok
		if !ok {
			continue
		}
		sv.UV = uv
		sv.light = lighting.lightVertex(wp, normalMat.MulVec3Dir(nrm).Normalize(), eye)
		verts[i] = sv
	}

	withMaterials, _ := mesh.(MaterialMeshRenderer)
	exposure := lighting.Exposure

	for i := range mesh.TriangleCount() {
		face := mesh.GetFace(i)
		// No near-plane clipping; triangles crossing the eye plane are dropped.
		if !visible[face[0]] || !visible[face[1]] || !visible[face[2]] {
			continue
		}

		mat := &DefaultMaterial
		if withMaterials != nil {
			if idx := withMaterials.GetFaceMaterial(i); idx >= 0 && idx < len(materials) && materials[idx] != nil {
				mat = materials[idx]
			}
		}
		r.drawTriangle(&verts[face[0]], &verts[face[1]], &verts[face[2]], mat, exposure)
	}
}

// drawTriangle rasterizes one triangle using edge functions with
// incremental updates and perspective-correct attribute interpolation.
func (r *Rasterizer) drawTriangle(v0, v1, v2 *shadedVertex, mat *Material, exposure float64) {
	// Backface culling (using screen-space winding)
	area2 := (v1.X-v0.X)*(v2.Y-v0.Y) - (v1.Y-v0.Y)*(v2.X-v0.X)
	if area2 < 0 && !r.DisableBackfaceCulling {
		return
	}
	if area2 == 0 {
		return
	}

	// Bounding box (clamped to screen)
	minX := int(math.Max(0, math.Floor(min(v0.X, v1.X, v2.X))))
	maxX := int(math.Min(float64(r.Width()-1), math.Ceil(max(v0.X, v1.X, v2.X))))
	minY := int(math.Max(0, math.Floor(min(v0.Y, v1.Y, v2.Y))))
	maxY := int(math.Min(float64(r.Height()-1), math.Ceil(max(v0.Y, v1.Y, v2.Y))))
	if minX > maxX || minY > maxY {
		return
	}
	r.Stats.Triangles++

	// Edge 0: v1 -> v2, Edge 1: v2 -> v0, Edge 2: v0 -> v1
	a0, b0, c0 := edgeCoeffs(v1.X, v1.Y, v2.X, v2.Y)
	a1, b1, c1 := edgeCoeffs(v2.X, v2.Y, v0.X, v0.Y)
	a2, b2, c2 := edgeCoeffs(v0.X, v0.Y, v1.X, v1.Y)

	// Back faces drawn double-sided have negative area; flip so inside is positive.
	sign := 1.0
	if area2 < 0 {
		sign = -1
	}
	invArea := 1 / area2

	iw0, iw1, iw2 := 1/v0.W, 1/v1.W, 1/v2.W

	px := float64(minX) + 0.5
	py := float64(minY) + 0.5
	e0Row := a0*px + b0*py + c0
	e1Row := a1*px + b1*py + c1
	e2Row := a2*px + b2*py + c2

	width := r.Width()
	for y := minY; y <= maxY; y++ {
		e0, e1, e2 := e0Row, e1Row, e2Row
		row := y * width

		for x := minX; x <= maxX; x++ {
			if e0*sign >= 0 && e1*sign >= 0 && e2*sign >= 0 {
				bc0, bc1, bc2 := e0*invArea, e1*invArea, e2*invArea

				z := bc0*v0.Z + bc1*v1.Z + bc2*v2.Z
				idx := row + x
				if z < r.zbuffer[idx] {
					// Perspective-correct weights
					w0, w1, w2 := bc0*iw0, bc1*iw1, bc2*iw2
					norm := 1 / (w0 + w1 + w2)
					w0, w1, w2 = w0*norm, w1*norm, w2*norm

					u := w0*v0.UV.X + w1*v1.UV.X + w2*v2.UV.X
					v := w0*v0.UV.Y + w1*v1.UV.Y + w2*v2.UV.Y
					lt := lerpLight(&v0.light, &v1.light, &v2.light, w0, w1, w2)

					r.zbuffer[idx] = z
					r.fb.Pixels[idx] = ToneMap(mat.shade(u, v, lt), exposure)
				}
			}
			e0 += a0
			e1 += a1
			e2 += a2
		}
		e0Row += b0
		e1Row += b1
		e2Row += b2
	}
}

// edgeCoeffs returns A, B, C for the edge function A*x + B*y + C, which is
// positive to the left of the edge (x0,y0)->(x1,y1) in screen space.
func edgeCoeffs(x0, y0, x1, y1 float64) (a, b, c float64) {
	a = y0 - y1
	b = x1 - x0
	c = x0*y1 - x1*y0
	return
}

// DrawMeshWireframe renders a mesh's triangle edges, ignoring depth.
func (r *Rasterizer) DrawMeshWireframe(mesh MeshRenderer, transform math3d.Mat4, color Color) {
	if r.fb == nil || r.culled(mesh, transform) {
		return
	}

	viewProj := r.camera.ViewProjectionMatrix()
	for i := range mesh.TriangleCount() {
		face := mesh.GetFace(i)

		p0, _, _ := mesh.GetVertex(face[0])
		p1, _, _ := mesh.GetVertex(face[1])
		p2, _, _ := mesh.GetVertex(face[2])

		v0 := transform.MulVec3(p0)
		v1 := transform.MulVec3(p1)
		v2 := transform.MulVec3(p2)

		r.drawLine3D(viewProj, v0, v1, color)
		r.drawLine3D(viewProj, v1, v2, color)
		r.drawLine3D(viewProj, v2, v0, color)
	}
}

// drawLine3D draws a 3D line (projected to screen). Lines with an endpoint
// behind the eye are skipped.
func (r *Rasterizer) drawLine3D(viewProj math3d.Mat4, a, b math3d.Vec3, color Color) {
	sa, okA := r.project(viewProj, a)
	sb, okB := r.project(viewProj, b)
	if !okA || !okB {
		return
	}
	r.fb.DrawLine(int(sa.X), int(sa.Y), int(sb.X), int(sb.Y), color)
}
