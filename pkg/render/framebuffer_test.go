package render

import (
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/taigrr/helmet/pkg/math3d"
)

func TestFramebufferResize(t *testing.T) {
	fb := NewFramebuffer(10, 10)
	fb.Clear(RGB(1, 2, 3))

	fb.Resize(4, 5)
	if fb.Width != 4 || fb.Height != 5 || len(fb.Pixels) != 20 {
		t.Fatalf("got %dx%d with %d pixels", fb.Width, fb.Height, len(fb.Pixels))
	}
	if fb.GetPixel(0, 0) != (Color{}) {
		t.Error("shrinking should clear reused storage")
	}

	fb.Resize(30, 20)
	if len(fb.Pixels) != 600 {
		t.Errorf("grow: got %d pixels", len(fb.Pixels))
	}

	fb.Resize(-3, 2)
	if fb.Width != 0 || len(fb.Pixels) != 0 {
		t.Errorf("negative size: got %dx%d", fb.Width, fb.Height)
	}
	fb.Clear(RGB(1, 1, 1)) // must not panic on empty buffers
}

func TestFramebufferSampleBilinear(t *testing.T) {
	fb := NewFramebuffer(2, 1)
	fb.SetPixel(0, 0, RGB(0, 0, 0))
	fb.SetPixel(1, 0, RGB(200, 100, 50))

	tests := []struct {
		name string
		x    float64
		want Color
	}{
		{"left center", 0.5, RGB(0, 0, 0)},
		{"right center", 1.5, RGB(200, 100, 50)},
		{"midway", 1.0, RGB(100, 50, 25)},
		{"clamped left", -4, RGB(0, 0, 0)},
		{"clamped right", 9, RGB(200, 100, 50)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := fb.SampleBilinear(tc.x, 0.5); got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestFramebufferSavePNG(t *testing.T) {
	fb := NewFramebuffer(3, 2)
	fb.Clear(RGB(9, 8, 7))
	path := filepath.Join(t.TempDir(), "out.png")
	if err := fb.SavePNG(path); err != nil {
		t.Fatalf("SavePNG: %v", err)
	}
	if info, err := os.Stat(path); err != nil || info.Size() == 0 {
		t.Errorf("png not written: %v", err)
	}

	if err := fb.SavePNG(filepath.Join(t.TempDir(), "missing", "out.png")); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestTextureFromImage(t *testing.T) {
	if TextureFromImage(nil, true) != nil {
		t.Error("nil image should give a nil texture")
	}

	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{255, 0, 0, 255}) // top-left
	img.Set(0, 1, color.RGBA{0, 255, 0, 255}) // bottom-left
	tex := TextureFromImage(img, false)
	tex.FilterMode = FilterNearest

	// V is up: v near 1 is the top row.
	if got := tex.Sample(0.1, 0.9); got.R != 255 {
		t.Errorf("top-left: got %v", got)
	}
	if got := tex.Sample(0.1, 0.1); got.G != 255 {
		t.Errorf("bottom-left: got %v", got)
	}
	// Repeat wrapping.
	if got := tex.Sample(1.1, 1.9); got.R != 255 {
		t.Errorf("wrapped: got %v", got)
	}
}

func TestTextureSampleLinear(t *testing.T) {
	srgb := NewSolidTexture(RGB(128, 128, 128), true)
	raw := NewSolidTexture(RGB(128, 128, 128), false)

	if got := srgb.SampleLinear(0.5, 0.5).X; math.Abs(got-0.2159) > 1e-3 {
		t.Errorf("sRGB texture: got %v", got)
	}
	if got := raw.SampleLinear(0.5, 0.5).X; math.Abs(got-128.0/255) > 1e-9 {
		t.Errorf("linear texture: got %v", got)
	}
}

func TestFrustumIntersectAABB(t *testing.T) {
	camera := NewCamera(60, 1, 0.1, 100)
	camera.SetPosition(math3d.V3(0, 0, 5))
	f := ExtractFrustum(camera.ViewProjectionMatrix())

	tests := []struct {
		name string
		box  AABB
		want bool
	}{
		{"origin", AABB{Min: math3d.Splat3(-1), Max: math3d.Splat3(1)}, true},
		{"behind camera", AABB{Min: math3d.V3(-1, -1, 10), Max: math3d.V3(1, 1, 12)}, false},
		{"beyond far", AABB{Min: math3d.V3(-1, -1, -200), Max: math3d.V3(1, 1, -150)}, false},
		{"far left", AABB{Min: math3d.V3(-100, -1, -1), Max: math3d.V3(-90, 1, 1)}, false},
		{"straddling edge", AABB{Min: math3d.V3(2, -1, -1), Max: math3d.V3(10, 1, 1)}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := f.IntersectAABB(tc.box); got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestAABBTransform(t *testing.T) {
	box := AABB{Min: math3d.V3(-1, -2, -3), Max: math3d.V3(1, 2, 3)}
	got := box.Transform(math3d.RotateY(math.Pi / 2))
	// A quarter turn about Y swaps the X and Z extents.
	if math.Abs(got.Max.X-3) > 1e-9 || math.Abs(got.Max.Z-1) > 1e-9 || math.Abs(got.Max.Y-2) > 1e-9 {
		t.Errorf("got %+v", got)
	}
}
