// Package viewer holds the application state: camera, scene, post chain
// and the pointer-follow animation. It is not safe for concurrent use; the
// caller applies events, loaded assets and frames from one goroutine.
package viewer

import (
	"math"

	"github.com/charmbracelet/log"
	"github.com/taigrr/helmet/pkg/anim"
	"github.com/taigrr/helmet/pkg/math3d"
	"github.com/taigrr/helmet/pkg/models"
	"github.com/taigrr/helmet/pkg/render"
)

// Camera and framing defaults.
const (
	FOV     = 35.0 // degrees
	Near    = 0.1
	Far     = 100.0
	CameraZ = 4.0

	// MaxAngle bounds the pointer-driven rotation on each axis.
	MaxAngle = 0.15 * math.Pi
)

// Config configures a Viewer. Zero values select the defaults.
type Config struct {
	Width, Height int // framebuffer pixels
	Background    render.Color
	ShiftAmount   float64
	Exposure      float64
	Smoothing     anim.Smoothing
	Logger        *log.Logger
}

// Point is a position in viewport pixels.
type Point struct {
	X, Y float64
}

// Stats summarizes the viewer for a status display.
type Stats struct {
	Model       string
	Triangles   int // drawn last frame
	Culled      bool
	ModelLoaded bool
	EnvLoaded   bool
	Shift       bool
	Wireframe   bool
	Pitch, Yaw  float64
}

// Viewer renders one model and turns it toward the pointer.
type Viewer struct {
	camera     *render.Camera
	scene      *render.Scene
	composer   *render.Composer
	renderPass *render.RenderPass
	shiftPass  *render.ShaderPass
	shift      *render.RGBShift
	follower   anim.Follower
	log        *log.Logger

	width, height int

	model     *models.Model
	object    *render.MeshObject
	envLoaded bool
	wireframe bool
}

// New creates a viewer with no model loaded.
func New(cfg Config) (*Viewer, error) {
	if cfg.Width <= 0 {
		cfg.Width = 160
	}
	if cfg.Height <= 0 {
		cfg.Height = 90
	}
	if cfg.ShiftAmount == 0 {
		cfg.ShiftAmount = render.DefaultShiftAmount
	}
	if cfg.Exposure == 0 {
		cfg.Exposure = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.Background == (render.Color{}) {
		cfg.Background = render.RGB(0, 0, 0)
	}

	follower, err := anim.NewFollower(cfg.Smoothing)
	if err != nil {
		return nil, err
	}

	camera := render.NewCamera(FOV, float64(cfg.Width)/float64(cfg.Height), Near, Far)
	camera.SetPosition(math3d.V3(0, 0, CameraZ))

	scene := render.NewScene(cfg.Background)
	scene.Lighting.Exposure = cfg.Exposure

	v := &Viewer{
		camera:   camera,
		scene:    scene,
		composer: render.NewComposer(cfg.Width, cfg.Height),
		shift:    render.NewRGBShift(),
		follower: follower,
		log:      cfg.Logger,
		width:    cfg.Width,
		height:   cfg.Height,
	}
	v.shift.Amount = cfg.ShiftAmount
	v.renderPass = render.NewRenderPass(scene, camera)
	v.shiftPass = render.NewShaderPass(v.shift)
	v.composer.AddPass(v.renderPass)
	v.composer.AddPass(v.shiftPass)
	return v, nil
}

// RotationTarget maps a viewport position to model (pitch, yaw). The
// horizontal position drives yaw and the vertical position drives pitch;
// the viewport center maps to zero and the edges to ±MaxAngle.
func RotationTarget(x, y, width, height float64) (pitch, yaw float64) {
	if width <= 0 || height <= 0 {
		return 0, 0
	}
	yaw = (x/width - 0.5) * 0.3 * math.Pi
	pitch = (y/height - 0.5) * 0.3 * math.Pi
	return pitch, yaw
}

// PointerMove retargets the rotation toward (x, y). It does nothing until a
// model is loaded.
func (v *Viewer) PointerMove(x, y float64) {
	if v.model == nil {
		return
	}
	pitch, yaw := RotationTarget(x, y, float64(v.width), float64(v.height))
	v.follower.Retarget(pitch, yaw)
}

// TouchMove behaves like PointerMove for exactly one touch; multi-touch
// gestures are ignored.
func (v *Viewer) TouchMove(touches []Point) {
	if len(touches) != 1 {
		return
	}
	v.PointerMove(touches[0].X, touches[0].Y)
}

// Resize sets the viewport, updates the camera aspect and resizes every
// render target.
func (v *Viewer) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	v.width, v.height = width, height
	v.camera.SetAspectRatio(float64(width) / float64(height))
	v.composer.SetSize(width, height)
	v.log.Debug("resize", "width", width, "height", height)
}

// Step advances the rotation animation by dt seconds.
func (v *Viewer) Step(dt float64) {
	v.follower.Step(dt)
	if v.model == nil {
		return
	}
	pitch, yaw := v.follower.Current()
	v.model.Rotation.X = pitch
	v.model.Rotation.Y = yaw
	v.object.Transform = v.model.Matrix()
}

// Render draws a frame through the post chain and returns it. The buffer is
// owned by the viewer and reused by the next Render.
func (v *Viewer) Render() *render.Framebuffer {
	return v.composer.Render()
}

// SetModel places a loaded model in the scene and reports whether it was
// accepted. A nil model, or one without triangles, is ignored.
func (v *Viewer) SetModel(m *models.Model) bool {
	if m == nil || m.Mesh == nil || len(m.Mesh.Faces) == 0 {
		return false
	}
	mats := make([]*render.Material, len(m.Materials))
	for i := range m.Materials {
		mats[i] = convertMaterial(&m.Materials[i])
	}
	v.model = m
	v.object = &render.MeshObject{
		Mesh:      m.Mesh,
		Materials: mats,
		Transform: m.Matrix(),
		Wireframe: v.wireframe,
	}
	v.scene.Object = v.object
	v.log.Info("model ready", "model", m.Summary())
	return true
}

// SetEnvironment lights the scene with env and uses it for reflections.
func (v *Viewer) SetEnvironment(env *render.Environment) {
	if env == nil {
		return
	}
	v.scene.SetEnvironment(env)
	v.envLoaded = true
	w, h := env.Size()
	v.log.Info("environment ready", "width", w, "height", h, "levels", env.Levels())
}

// ToggleShift turns the RGB-shift pass on or off and reports the new state.
func (v *Viewer) ToggleShift() bool {
	on := !v.shiftPass.Enabled()
	v.shiftPass.SetEnabled(on)
	return on
}

// ToggleWireframe switches between shaded and wireframe drawing.
func (v *Viewer) ToggleWireframe() bool {
	v.wireframe = !v.wireframe
	if v.object != nil {
		v.object.Wireframe = v.wireframe
	}
	return v.wireframe
}

// Reset eases the model back to facing the camera.
func (v *Viewer) Reset() {
	v.follower.Retarget(0, 0)
}

// Loaded reports whether a model has been set.
func (v *Viewer) Loaded() bool { return v.model != nil }

// Model returns the loaded model, or nil.
func (v *Viewer) Model() *models.Model { return v.model }

// Camera returns the viewer's camera.
func (v *Viewer) Camera() *render.Camera { return v.camera }

// Composer returns the post-processing chain.
func (v *Viewer) Composer() *render.Composer { return v.composer }

// Rasterizer returns the rasterizer used by the render pass.
func (v *Viewer) Rasterizer() *render.Rasterizer { return v.renderPass.Rasterizer }

// Size returns the viewport size in framebuffer pixels.
func (v *Viewer) Size() (width, height int) { return v.width, v.height }

// Settled reports whether the rotation has come to rest.
func (v *Viewer) Settled() bool { return v.follower.Settled() }

func (v *Viewer) Stats() Stats {
	rs := v.renderPass.Rasterizer.Stats
	pitch, yaw := v.follower.Current()
	s := Stats{
		Triangles:   rs.Triangles,
		Culled:      rs.MeshesCulled > 0,
		ModelLoaded: v.model != nil,
		EnvLoaded:   v.envLoaded,
		Shift:       v.shiftPass.Enabled(),
		Wireframe:   v.wireframe,
		Pitch:       pitch,
		Yaw:         yaw,
	}
	if v.model != nil {
		s.Model = v.model.Name
	}
	return s
}

// convertMaterial maps a glTF material onto the shader's. Colour factors are
// already linear; colour textures are sRGB and data textures are linear.
func convertMaterial(m *models.Material) *render.Material {
	return &render.Material{
		BaseColor:     math3d.V3(m.BaseColor[0], m.BaseColor[1], m.BaseColor[2]),
		Metallic:      m.Metallic,
		Roughness:     m.Roughness,
		Emissive:      math3d.V3(m.Emissive[0], m.Emissive[1], m.Emissive[2]),
		BaseMap:       render.TextureFromImage(m.BaseMap, true),
		MetalRoughMap: render.TextureFromImage(m.MetalRoughMap, false),
		OcclusionMap:  render.TextureFromImage(m.OcclusionMap, false),
		EmissiveMap:   render.TextureFromImage(m.EmissiveMap, true),
	}
}
