package render

import (
	"github.com/taigrr/helmet/pkg/math3d"
)

// Pass is one stage of a Composer chain. A pass reads the previous result
// from read and writes its own into write; passes that draw in place report
// NeedsSwap false.
type Pass interface {
	Render(write, read *Framebuffer)
	SetSize(width, height int)
	NeedsSwap() bool
	Enabled() bool
}

// Composer runs an ordered chain of passes over a pair of ping-pong
// framebuffers.
type Composer struct {
	read, write *Framebuffer
	passes      []Pass
	width       int
	height      int
}

// NewComposer creates a composer with targets of the given size.
func NewComposer(width, height int) *Composer {
	c := &Composer{
		read:  NewFramebuffer(width, height),
		write: NewFramebuffer(width, height),
	}
	c.width, c.height = c.read.Width, c.read.Height
	return c
}

// AddPass appends a pass and sizes it to the current targets.
func (c *Composer) AddPass(p Pass) {
	p.SetSize(c.width, c.height)
	c.passes = append(c.passes, p)
}

// Passes returns the chain in order.
func (c *Composer) Passes() []Pass {
	return c.passes
}

// SetSize resizes both targets and every pass.
func (c *Composer) SetSize(width, height int) {
	c.read.Resize(width, height)
	c.write.Resize(width, height)
	c.width, c.height = c.read.Width, c.read.Height
	for _, p := range c.passes {
		p.SetSize(c.width, c.height)
	}
}

// Size returns the size of the render targets.
func (c *Composer) Size() (width, height int) {
	return c.width, c.height
}

// Render runs every enabled pass and returns the final image.
func (c *Composer) Render() *Framebuffer {
	for _, p := range c.passes {
		if !p.Enabled() {
			continue
		}
		p.Render(c.write, c.read)
		if p.NeedsSwap() {
			c.read, c.write = c.write, c.read
		}
	}
	return c.read
}

// Output returns the result of the last Render.
func (c *Composer) Output() *Framebuffer {
	return c.read
}

// RenderPass draws a Scene into the composer's read buffer.
type RenderPass struct {
	Scene      *Scene
	Rasterizer *Rasterizer
	enabled    bool
}

// NewRenderPass creates a pass that draws scene with camera.
func NewRenderPass(scene *Scene, camera *Camera) *RenderPass {
	return &RenderPass{
		Scene:      scene,
		Rasterizer: NewRasterizer(camera, nil),
		enabled:    true,
	}
}

// Render draws the scene into read. The rasterizer follows whichever target
// it is handed, so its depth buffer always matches the composer.
func (p *RenderPass) Render(_, read *Framebuffer) {
	p.Rasterizer.SetTarget(read)
	p.Scene.Draw(p.Rasterizer)
}

// SetSize resizes the depth buffer to match the composer targets.
func (p *RenderPass) SetSize(width, height int) {
	p.Rasterizer.ResizeDepth(width, height)
}

func (p *RenderPass) NeedsSwap() bool { return false }
func (p *RenderPass) Enabled() bool   { return p.enabled }

// SetEnabled turns the pass on or off.
func (p *RenderPass) SetEnabled(on bool) { p.enabled = on }

// PostShader is a screen-space effect applied by a ShaderPass.
type PostShader interface {
	Apply(dst, src *Framebuffer)
}

// ShaderPass applies a PostShader from read into write.
type ShaderPass struct {
	Shader  PostShader
	enabled bool
}

// NewShaderPass wraps shader in a pass.
func NewShaderPass(shader PostShader) *ShaderPass {
	return &ShaderPass{Shader: shader, enabled: true}
}

func (p *ShaderPass) Render(write, read *Framebuffer) {
	p.Shader.Apply(write, read)
}

func (p *ShaderPass) SetSize(int, int) {}
func (p *ShaderPass) NeedsSwap() bool  { return true }
func (p *ShaderPass) Enabled() bool    { return p.enabled }

// SetEnabled turns the pass on or off.
func (p *ShaderPass) SetEnabled(on bool) { p.enabled = on }

// DefaultShiftAmount is the RGB shift offset in UV units.
const DefaultShiftAmount = 0.0005

// RGBShift separates colour channels: red is sampled at uv+offset, green at
// uv and blue at uv-offset, with offset = Amount*(cos Angle, sin Angle) in
// UV space (v up).
type RGBShift struct {
	Amount float64
	Angle  float64
}

// NewRGBShift returns a shift with the default amount and angle 0.
func NewRGBShift() *RGBShift {
	return &RGBShift{Amount: DefaultShiftAmount}
}

// Offset returns the shift in pixels for a w×h target. Framebuffer rows
// grow downwards, so the UV v component is negated.
func (s *RGBShift) Offset(w, h int) (dx, dy float64) {
	o := math3d.Polar(s.Amount, s.Angle)
	return o.X * float64(w), -o.Y * float64(h)
}

// Apply writes the shifted image of src into dst. dst must have src's size.
func (s *RGBShift) Apply(dst, src *Framebuffer) {
	dx, dy := s.Offset(src.Width, src.Height)
	for y := range src.Height {
		cy := float64(y) + 0.5
		for x := range src.Width {
			cx := float64(x) + 0.5
			center := src.Pixels[y*src.Width+x]
			red := src.SampleBilinear(cx+dx, cy+dy)
			blue := src.SampleBilinear(cx-dx, cy-dy)
			dst.Pixels[y*dst.Width+x] = Color{R: red.R, G: center.G, B: blue.B, A: center.A}
		}
	}
}
