package render

import (
	"math"
	"testing"

	"github.com/taigrr/helmet/pkg/math3d"
)

// fillPass draws a solid colour into the read buffer, like a RenderPass.
type fillPass struct {
	color   Color
	sizes   [][2]int
	enabled bool
}

func (p *fillPass) Render(_, read *Framebuffer) { read.Clear(p.color) }
func (p *fillPass) SetSize(w, h int)            { p.sizes = append(p.sizes, [2]int{w, h}) }
func (p *fillPass) NeedsSwap() bool             { return false }
func (p *fillPass) Enabled() bool               { return p.enabled }

// invert is a PostShader that inverts RGB.
type invert struct{}

func (invert) Apply(dst, src *Framebuffer) {
	for i, c := range src.Pixels {
		dst.Pixels[i] = Color{R: 255 - c.R, G: 255 - c.G, B: 255 - c.B, A: c.A}
	}
}

func TestComposerPingPong(t *testing.T) {
	c := NewComposer(4, 2)
	c.AddPass(&fillPass{color: RGB(10, 20, 30), enabled: true})
	c.AddPass(NewShaderPass(invert{}))

	out := c.Render()
	if got := out.GetPixel(0, 0); got != RGB(245, 235, 225) {
		t.Errorf("output: got %v, want inverted fill", got)
	}
	if out != c.Output() {
		t.Error("Output should return the last result")
	}

	// Rendering again must produce the same image, not a double inversion.
	out = c.Render()
	if got := out.GetPixel(3, 1); got != RGB(245, 235, 225) {
		t.Errorf("second render: got %v", got)
	}
}

func TestComposerSkipsDisabledPasses(t *testing.T) {
	c := NewComposer(2, 2)
	c.AddPass(&fillPass{color: RGB(10, 20, 30), enabled: true})
	shader := NewShaderPass(invert{})
	shader.SetEnabled(false)
	c.AddPass(shader)

	if got := c.Render().GetPixel(0, 0); got != RGB(10, 20, 30) {
		t.Errorf("disabled shader pass ran: got %v", got)
	}
}

func TestComposerSetSize(t *testing.T) {
	c := NewComposer(8, 4)
	fill := &fillPass{enabled: true}
	c.AddPass(fill)
	c.AddPass(NewShaderPass(invert{}))

	c.SetSize(20, 10)
	if w, h := c.Size(); w != 20 || h != 10 {
		t.Errorf("Size: got %dx%d", w, h)
	}
	for _, fb := range []*Framebuffer{c.read, c.write} {
		if fb.Width != 20 || fb.Height != 10 || len(fb.Pixels) != 200 {
			t.Errorf("target: got %dx%d (%d pixels)", fb.Width, fb.Height, len(fb.Pixels))
		}
	}
	want := [][2]int{{8, 4}, {20, 10}}
	if len(fill.sizes) != 2 || fill.sizes[0] != want[0] || fill.sizes[1] != want[1] {
		t.Errorf("pass sizes: got %v, want %v", fill.sizes, want)
	}
}

func TestRenderPassFollowsComposerSize(t *testing.T) {
	camera := NewCamera(35, 1, 0.1, 100)
	scene := NewScene(RGB(1, 2, 3))
	pass := NewRenderPass(scene, camera)

	c := NewComposer(8, 8)
	c.AddPass(pass)
	c.SetSize(30, 12)

	if w, h := pass.Rasterizer.DepthSize(); w != 30 || h != 12 {
		t.Errorf("depth after SetSize: got %dx%d", w, h)
	}
	out := c.Render()
	if got := out.GetPixel(29, 11); got != RGB(1, 2, 3) {
		t.Errorf("background: got %v", got)
	}
}

func TestRGBShiftZeroIsIdentity(t *testing.T) {
	src := NewFramebuffer(5, 3)
	for i := range src.Pixels {
		src.Pixels[i] = RGB(uint8(i*10), uint8(i*7), uint8(i*3))
	}
	dst := NewFramebuffer(5, 3)
	(&RGBShift{}).Apply(dst, src)
	for i := range src.Pixels {
		if dst.Pixels[i] != src.Pixels[i] {
			t.Fatalf("pixel %d: got %v, want %v", i, dst.Pixels[i], src.Pixels[i])
		}
	}
}

// gradient returns a w×h buffer whose channels all equal 10*x (or 10*y).
func gradient(w, h int, vertical bool) *Framebuffer {
	fb := NewFramebuffer(w, h)
	for y := range h {
		for x := range w {
			v := uint8(10 * x)
			if vertical {
				v = uint8(10 * y)
			}
			fb.SetPixel(x, y, RGB(v, v, v))
		}
	}
	return fb
}

func TestRGBShiftHorizontal(t *testing.T) {
	// 0.1 of a 10 pixel width is exactly one pixel.
	src := gradient(10, 2, false)
	dst := NewFramebuffer(10, 2)
	(&RGBShift{Amount: 0.1}).Apply(dst, src)

	tests := []struct {
		x       int
		r, g, b uint8
	}{
		{4, 50, 40, 30},
		{0, 10, 0, 0},   // blue clamps at the left edge
		{9, 90, 90, 80}, // red clamps at the right edge
	}
	for _, tc := range tests {
		got := dst.GetPixel(tc.x, 0)
		if got.R != tc.r || got.G != tc.g || got.B != tc.b {
			t.Errorf("x=%d: got %v, want (%d,%d,%d)", tc.x, got, tc.r, tc.g, tc.b)
		}
	}
}

func TestRGBShiftVertical(t *testing.T) {
	// Angle π/2 shifts along +v, which is up the framebuffer.
	src := gradient(2, 10, true)
	dst := NewFramebuffer(2, 10)
	(&RGBShift{Amount: 0.1, Angle: math.Pi / 2}).Apply(dst, src)

	got := dst.GetPixel(0, 5)
	if got.R != 40 || got.G != 50 || got.B != 60 {
		t.Errorf("got %v, want red from the row above and blue from below", got)
	}
}

func TestRGBShiftDefaultOffset(t *testing.T) {
	s := NewRGBShift()
	if s.Amount != DefaultShiftAmount {
		t.Errorf("Amount: got %v", s.Amount)
	}
	dx, dy := s.Offset(2000, 1000)
	if math.Abs(dx-1) > 1e-9 || math.Abs(dy) > 1e-9 {
		t.Errorf("Offset: got (%v, %v), want (1, 0)", dx, dy)
	}
}

func TestSceneDrawsObject(t *testing.T) {
	camera := NewCamera(60, 1, 0.1, 100)
	camera.SetPosition(math3d.V3(0, 0, 10))
	scene := NewScene(RGB(0, 0, 0))

	fb := NewFramebuffer(32, 32)
	r := NewRasterizer(camera, fb)
	scene.Draw(r)
	if got := fb.GetPixel(16, 16); got != scene.Background {
		t.Errorf("empty scene: got %v", got)
	}

	mesh := &mockMesh{}
	mesh.addTriangle(0, -1)
	scene.Object = &MeshObject{Mesh: mesh, Transform: math3d.Identity()}
	scene.Draw(r)
	if got := fb.GetPixel(16, 16); got == scene.Background {
		t.Error("object should be drawn")
	}

	scene.Object.Wireframe = true
	scene.Draw(r)
	if got := fb.GetPixel(16, 20); got != scene.Background {
		t.Errorf("wireframe interior: got %v", got)
	}
}
