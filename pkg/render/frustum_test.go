package render

import (
	"math"
	"testing"

	"github.com/taigrr/helmet/pkg/math3d"
)

func TestPlaneDistanceToPoint(t *testing.T) {
	// Plane at Z=0, normal pointing +Z
	plane := Plane{Normal: math3d.V3(0, 0, 1), D: 0}

	tests := []struct {
		name     string
		point    math3d.Vec3
		expected float64
	}{
		{"origin", math3d.V3(0, 0, 0), 0},
		{"in front", math3d.V3(0, 0, 5), 5},
		{"behind", math3d.V3(0, 0, -3), -3},
		{"offset XY", math3d.V3(10, -5, 2), 2},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if dist := plane.DistanceToPoint(tc.point); math.Abs(dist-tc.expected) > 1e-9 {
				t.Errorf("got %v, want %v", dist, tc.expected)
			}
		})
	}
}

func TestPlaneNormalize(t *testing.T) {
	plane := Plane{Normal: math3d.V3(0, 3, 4), D: 10}
	plane.Normalize()

	if l := plane.Normal.Len(); math.Abs(l-1) > 1e-9 {
		t.Errorf("normal length = %v, want 1", l)
	}
	if math.Abs(plane.Normal.Y-0.6) > 1e-9 || math.Abs(plane.Normal.Z-0.8) > 1e-9 {
		t.Errorf("normal = %v, want (0, 0.6, 0.8)", plane.Normal)
	}
	if math.Abs(plane.D-2) > 1e-9 {
		t.Errorf("D = %v, want 2", plane.D)
	}

	degenerate := Plane{D: 3}
	degenerate.Normalize()
	if degenerate.D != 3 {
		t.Error("zero normal should be left alone")
	}
}

func TestFrustumFollowsCameraAspect(t *testing.T) {
	// A box just off the right edge of a square view comes into view once
	// the viewport is widened.
	camera := NewCamera(35, 1, 0.1, 100)
	camera.SetPosition(math3d.V3(0, 0, 4))
	box := AABB{Min: math3d.V3(1.5, -0.1, -0.1), Max: math3d.V3(1.7, 0.1, 0.1)}

	if ExtractFrustum(camera.ViewProjectionMatrix()).IntersectAABB(box) {
		t.Fatal("box should be outside the square frustum")
	}
	camera.SetAspectRatio(2)
	if !ExtractFrustum(camera.ViewProjectionMatrix()).IntersectAABB(box) {
		t.Error("box should be inside the wide frustum")
	}
}

func TestFrustumWithTurnedCamera(t *testing.T) {
	camera := NewCamera(60, 1, 1, 100)
	camera.LookAt(math3d.V3(10, 0, 0))
	f := ExtractFrustum(camera.ViewProjectionMatrix())

	ahead := AABB{Min: math3d.V3(9, -1, -1), Max: math3d.V3(11, 1, 1)}
	behind := AABB{Min: math3d.V3(-11, -1, -1), Max: math3d.V3(-9, 1, 1)}
	if !f.IntersectAABB(ahead) {
		t.Error("box along +X should be visible")
	}
	if f.IntersectAABB(behind) {
		t.Error("box along -X should be culled")
	}
}

func BenchmarkFrustumIntersectAABB(b *testing.B) {
	camera := NewCamera(35, 16.0/9, 0.1, 100)
	camera.SetPosition(math3d.V3(0, 0, 4))
	f := ExtractFrustum(camera.ViewProjectionMatrix())
	box := AABB{Min: math3d.Splat3(-1), Max: math3d.Splat3(1)}
	for b.Loop() {
		_ = f.IntersectAABB(box)
	}
}
