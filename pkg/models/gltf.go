package models

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"net/url"
	"os"
	"path/filepath"

	"github.com/nfnt/resize"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"github.com/taigrr/helmet/pkg/math3d"
)

// DefaultMaxTextureSize bounds decoded textures. A terminal framebuffer is a
// few hundred pixels wide, so larger maps only cost memory and aliasing.
const DefaultMaxTextureSize = 512

// GLTFLoader loads .gltf and .glb files into a Model.
type GLTFLoader struct {
	// Options
	CalculateNormals bool
	SmoothNormals    bool
	MaxTextureSize   uint    // 0 keeps textures at full size
	FitSize          float64 // if > 0, center the model and scale its largest extent to FitSize

	// Progress, if set, is called after each primitive is read.
	Progress func(done, total int)
}

// NewGLTFLoader creates a new glTF loader with default options.
func NewGLTFLoader() *GLTFLoader {
	return &GLTFLoader{
		CalculateNormals: true,
		SmoothNormals:    true,
		MaxTextureSize:   DefaultMaxTextureSize,
	}
}

// LoadGLTF loads a .gltf or .glb file with default options.
func LoadGLTF(path string) (*Model, error) {
	return NewGLTFLoader().Load(path)
}

// Load reads the document at path. Geometry of every mesh instanced by the
// default scene is baked into one Mesh in world space.
func (l *GLTFLoader) Load(path string) (*Model, error) {
	return l.LoadContext(context.Background(), path)
}

// LoadContext is Load with cancellation, checked between textures and
// between primitives.
func (l *GLTFLoader) LoadContext(ctx context.Context, path string) (*Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open gltf: %w", err)
	}

	model := &Model{
		Name: filepath.Base(path),
		Mesh: NewMesh(filepath.Base(path)),
	}

	textures, err := l.loadTextures(ctx, doc, filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	model.Materials = loadMaterials(doc, textures)

	instances := sceneInstances(doc)
	total := 0
	for _, inst := range instances {
		total += len(doc.Meshes[inst.mesh].Primitives)
	}

	done := 0
	for _, inst := range instances {
		m := doc.Meshes[inst.mesh]
		for _, prim := range m.Primitives {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := l.processPrimitive(doc, prim, inst.world, model.Mesh); err != nil {
				return nil, fmt.Errorf("process mesh %q: %w", m.Name, err)
			}
			done++
			if l.Progress != nil {
				l.Progress(done, total)
			}
		}
	}

	if len(model.Mesh.Faces) == 0 {
		return nil, fmt.Errorf("gltf %s: no triangle geometry", filepath.Base(path))
	}

	if l.CalculateNormals && !model.Mesh.HasNormals() {
		if l.SmoothNormals {
			model.Mesh.CalculateSmoothNormals()
		} else {
			model.Mesh.CalculateNormals()
		}
	}

	model.Mesh.CalculateBounds()

	if l.FitSize > 0 {
		fitMesh(model.Mesh, l.FitSize)
	}

	return model, nil
}

// fitMesh centers the mesh on the origin and scales its largest extent to size.
func fitMesh(mesh *Mesh, size float64) {
	maxDim := mesh.Size().MaxComponent()
	if maxDim <= 0 {
		return
	}
	s := size / maxDim
	mesh.Transform(math3d.Scale(math3d.Splat3(s)).Mul(math3d.Translate(mesh.Center().Negate())))
}

// meshInstance is one node's reference to a mesh, with its world transform.
type meshInstance struct {
	mesh  int
	world math3d.Mat4
}

// sceneInstances walks the default scene (or the first scene, or every root
// node when the document has no scenes) and collects mesh instances.
func sceneInstances(doc *gltf.Document) []meshInstance {
	var roots []int
	switch {
	case doc.Scene != nil && *doc.Scene < len(doc.Scenes):
		roots = doc.Scenes[*doc.Scene].Nodes
	case len(doc.Scenes) > 0:
		roots = doc.Scenes[0].Nodes
	default:
		hasParent := make([]bool, len(doc.Nodes))
		for _, n := range doc.Nodes {
			for _, c := range n.Children {
				if c < len(hasParent) {
					hasParent[c] = true
				}
			}
		}
		for i := range doc.Nodes {
			if !hasParent[i] {
				roots = append(roots, i)
			}
		}
	}

	var out []meshInstance
	var walk func(idx int, parent math3d.Mat4, depth int)
	walk = func(idx int, parent math3d.Mat4, depth int) {
		// Malformed files can contain cycles.
		if idx < 0 || idx >= len(doc.Nodes) || depth > len(doc.Nodes) {
			return
		}
		n := doc.Nodes[idx]
		world := parent.Mul(nodeMatrix(n))
		if n.Mesh != nil && *n.Mesh >= 0 && *n.Mesh < len(doc.Meshes) {
			out = append(out, meshInstance{mesh: *n.Mesh, world: world})
		}
		for _, c := range n.Children {
			walk(c, world, depth+1)
		}
	}
	for _, r := range roots {
		walk(r, math3d.Identity(), 0)
	}

	// Documents with meshes but no nodes still deserve to be shown.
	if len(out) == 0 && len(doc.Nodes) == 0 {
		for i := range doc.Meshes {
			out = append(out, meshInstance{mesh: i, world: math3d.Identity()})
		}
	}
	return out
}

// nodeMatrix returns a node's local transform. glTF nodes carry either a
// matrix or TRS properties, never both.
func nodeMatrix(n *gltf.Node) math3d.Mat4 {
	m := math3d.Mat4(n.MatrixOrDefault())
	if m != math3d.Identity() {
		return m
	}
	return math3d.TRS(n.TranslationOrDefault(), n.RotationOrDefault(), n.ScaleOrDefault())
}

// processPrimitive appends one primitive's geometry to mesh, transformed by world.
func (l *GLTFLoader) processPrimitive(doc *gltf.Document, prim *gltf.Primitive, world math3d.Mat4, mesh *Mesh) error {
	if prim.Mode != gltf.PrimitiveTriangles && prim.Mode != 0 {
		// Skip non-triangle primitives (lines, points, etc)
		return nil
	}

	posIdx, ok := prim.Attributes[gltf.POSITION]
	if !ok {
		return nil
	}

	acr, err := accessor(doc, posIdx)
	if err != nil {
		return fmt.Errorf("positions: %w", err)
	}
	positions, err := modeler.ReadPosition(doc, acr, nil)
	if err != nil {
		return fmt.Errorf("read positions: %w", err)
	}

	var normals [][3]float32
	if idx, ok := prim.Attributes[gltf.NORMAL]; ok {
		acr, err := accessor(doc, idx)
		if err != nil {
			return fmt.Errorf("normals: %w", err)
		}
		normals, err = modeler.ReadNormal(doc, acr, nil)
		if err != nil {
			return fmt.Errorf("read normals: %w", err)
		}
	}

	var uvs [][2]float32
	if idx, ok := prim.Attributes[gltf.TEXCOORD_0]; ok {
		acr, err := accessor(doc, idx)
		if err != nil {
			return fmt.Errorf("uvs: %w", err)
		}
		uvs, err = modeler.ReadTextureCoord(doc, acr, nil)
		if err != nil {
			return fmt.Errorf("read uvs: %w", err)
		}
	}

	material := -1
	if prim.Material != nil && *prim.Material >= 0 && *prim.Material < len(doc.Materials) {
		material = *prim.Material
	}

	normalMat := world.NormalMatrix()
	baseVertex := len(mesh.Vertices)

	for i, p := range positions {
		v := MeshVertex{
			Position: world.MulVec3(math3d.V3(float64(p[0]), float64(p[1]), float64(p[2]))),
		}
		if i < len(normals) {
			n := normals[i]
			v.Normal = normalMat.MulVec3Dir(math3d.V3(float64(n[0]), float64(n[1]), float64(n[2]))).Normalize()
		}
		if i < len(uvs) {
			// glTF uses a top-left UV origin; flip V for bottom-left sampling
			v.UV = math3d.V2(float64(uvs[i][0]), 1.0-float64(uvs[i][1]))
		}
		mesh.Vertices = append(mesh.Vertices, v)
	}

	var indices []uint32
	if prim.Indices != nil {
		acr, err := accessor(doc, *prim.Indices)
		if err != nil {
			return fmt.Errorf("indices: %w", err)
		}
		indices, err = modeler.ReadIndices(doc, acr, nil)
		if err != nil {
			return fmt.Errorf("read indices: %w", err)
		}
	} else {
		indices = make([]uint32, len(positions))
		for i := range indices {
			indices[i] = uint32(i)
		}
	}

	// glTF front faces are CCW; the rasterizer expects CW after the
	// screen-space Y flip, so the last two indices are swapped.
	for i := 0; i+2 < len(indices); i += 3 {
		a, b, c := int(indices[i]), int(indices[i+1]), int(indices[i+2])
		if a >= len(positions) || b >= len(positions) || c >= len(positions) {
			return fmt.Errorf("index out of range in triangle %d", i/3)
		}
		mesh.Faces = append(mesh.Faces, Face{
			V:        [3]int{baseVertex + a, baseVertex + c, baseVertex + b},
			Material: material,
		})
	}

	return nil
}

// accessor returns doc.Accessors[idx] after checking that it and the buffer
// view and buffer it reads from exist. modeler indexes them unchecked.
func accessor(doc *gltf.Document, idx int) (*gltf.Accessor, error) {
	if idx < 0 || idx >= len(doc.Accessors) {
		return nil, fmt.Errorf("accessor %d out of range (%d accessors)", idx, len(doc.Accessors))
	}
	acr := doc.Accessors[idx]
	if acr.BufferView != nil {
		if _, err := bufferView(doc, *acr.BufferView); err != nil {
			return nil, fmt.Errorf("accessor %d: %w", idx, err)
		}
	}
	return acr, nil
}

// bufferView returns doc.BufferViews[idx] after checking that it and its
// buffer exist.
func bufferView(doc *gltf.Document, idx int) (*gltf.BufferView, error) {
	if idx < 0 || idx >= len(doc.BufferViews) {
		return nil, fmt.Errorf("buffer view %d out of range (%d views)", idx, len(doc.BufferViews))
	}
	bv := doc.BufferViews[idx]
	if bv.Buffer < 0 || bv.Buffer >= len(doc.Buffers) {
		return nil, fmt.Errorf("buffer view %d: buffer %d out of range", idx, bv.Buffer)
	}
	return bv, nil
}

// loadMaterials converts glTF PBR materials. Missing textures are left nil.
func loadMaterials(doc *gltf.Document, textures []image.Image) []Material {
	texture := func(idx int) image.Image {
		if idx < 0 || idx >= len(textures) {
			return nil
		}
		return textures[idx]
	}

	out := make([]Material, len(doc.Materials))
	for i, gm := range doc.Materials {
		mat := DefaultMaterial()
		mat.Name = gm.Name

		if pbr := gm.PBRMetallicRoughness; pbr != nil {
			mat.BaseColor = pbr.BaseColorFactorOrDefault()
			mat.Metallic = pbr.MetallicFactorOrDefault()
			mat.Roughness = pbr.RoughnessFactorOrDefault()
			if pbr.BaseColorTexture != nil {
				mat.BaseMap = texture(pbr.BaseColorTexture.Index)
			}
			if pbr.MetallicRoughnessTexture != nil {
				mat.MetalRoughMap = texture(pbr.MetallicRoughnessTexture.Index)
			}
		}
		if gm.OcclusionTexture != nil && gm.OcclusionTexture.Index != nil {
			mat.OcclusionMap = texture(*gm.OcclusionTexture.Index)
		}
		if gm.EmissiveTexture != nil {
			mat.EmissiveMap = texture(gm.EmissiveTexture.Index)
		}
		mat.Emissive = gm.EmissiveFactor

		out[i] = mat
	}
	return out
}

// loadTextures decodes every texture's source image, indexed by texture.
// Undecodable images are skipped so a bad texture never fails the model;
// only cancellation does.
func (l *GLTFLoader) loadTextures(ctx context.Context, doc *gltf.Document, dir string) ([]image.Image, error) {
	decoded := make(map[int]image.Image)
	out := make([]image.Image, len(doc.Textures))

	for i, tex := range doc.Textures {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if tex.Source == nil || *tex.Source < 0 || *tex.Source >= len(doc.Images) {
			continue
		}
		src := *tex.Source
		if img, ok := decoded[src]; ok {
			out[i] = img
			continue
		}

		data, err := imageBytes(doc, doc.Images[src], dir)
		if err != nil {
			continue
		}
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			continue
		}
		if l.MaxTextureSize > 0 {
			img = resize.Thumbnail(l.MaxTextureSize, l.MaxTextureSize, img, resize.Bilinear)
		}
		decoded[src] = img
		out[i] = img
	}
	return out, nil
}

// imageBytes returns the encoded bytes of a glTF image from a buffer view,
// a data URI or an external file next to the document.
func imageBytes(doc *gltf.Document, img *gltf.Image, dir string) ([]byte, error) {
	switch {
	case img.BufferView != nil:
		bv, err := bufferView(doc, *img.BufferView)
		if err != nil {
			return nil, err
		}
		return modeler.ReadBufferView(doc, bv)
	case img.IsEmbeddedResource():
		return img.MarshalData()
	case img.URI != "":
		name, err := url.PathUnescape(img.URI)
		if err != nil {
			name = img.URI
		}
		return os.ReadFile(filepath.Join(dir, filepath.FromSlash(name)))
	default:
		return nil, fmt.Errorf("image %q has no data", img.Name)
	}
}
