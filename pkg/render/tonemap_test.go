package render

import (
	"math"
	"testing"

	"github.com/taigrr/helmet/pkg/math3d"
)

func TestSRGBRoundTrip(t *testing.T) {
	for i := range 256 {
		c := float64(i) / 255
		if got := LinearToSRGB(SRGBToLinear(c)); math.Abs(got-c) > 1e-9 {
			t.Fatalf("round trip %v: got %v", c, got)
		}
	}
}

func TestEncodeChannel(t *testing.T) {
	tests := []struct {
		in   float64
		want uint8
	}{
		{-1, 0},
		{math.NaN(), 0},
		{0, 0},
		{1, 255},
		{7, 255},
		{0.2159, 128},
	}
	for _, tc := range tests {
		if got := encodeChannel(tc.in); got != tc.want {
			t.Errorf("encodeChannel(%v) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestACESFilmic(t *testing.T) {
	if got := ACESFilmic(math3d.Zero3(), 1); got.Len() > 1e-3 {
		t.Errorf("black: got %v", got)
	}

	// Monotonic and bounded.
	prev := -1.0
	for _, v := range []float64{0.01, 0.1, 0.5, 1, 2, 8, 100} {
		got := ACESFilmic(math3d.Splat3(v), 1)
		if got.X <= prev {
			t.Errorf("not increasing at %v: %v <= %v", v, got.X, prev)
		}
		if got.X > 1 || got.Y > 1 || got.Z > 1 {
			t.Errorf("out of range at %v: %v", v, got)
		}
		prev = got.X
	}

	// Exposure scales the input.
	a := ACESFilmic(math3d.Splat3(0.5), 2)
	b := ACESFilmic(math3d.Splat3(1), 1)
	if a.Sub(b).Len() > 1e-12 {
		t.Errorf("exposure: %v != %v", a, b)
	}
}

func TestToneMapOpaque(t *testing.T) {
	c := ToneMap(math3d.V3(0.3, 0.2, 0.1), 1)
	if c.A != 255 {
		t.Errorf("alpha: got %d", c.A)
	}
	if !(c.R > c.G && c.G > c.B) {
		t.Errorf("channel order lost: %v", c)
	}
}

func TestLinearColor(t *testing.T) {
	got := LinearColor(RGB(255, 0, 128))
	if got.X != 1 || got.Y != 0 || math.Abs(got.Z-0.2159) > 1e-3 {
		t.Errorf("got %v", got)
	}
}

func BenchmarkToneMap(b *testing.B) {
	c := math3d.V3(0.8, 0.4, 0.2)
	for b.Loop() {
		_ = ToneMap(c, 1)
	}
}
