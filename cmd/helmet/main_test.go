package main

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	uv "github.com/charmbracelet/ultraviolet"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"github.com/taigrr/helmet/pkg/anim"
	"github.com/taigrr/helmet/pkg/math3d"
	"github.com/taigrr/helmet/pkg/models"
	"github.com/taigrr/helmet/pkg/render"
	"github.com/taigrr/helmet/pkg/viewer"
)

func TestParseBackground(t *testing.T) {
	tests := []struct {
		in      string
		want    render.Color
		wantErr bool
	}{
		{"30,30,40", render.RGB(30, 30, 40), false},
		{" 1, 2 ,3", render.RGB(1, 2, 3), false},
		{"0,0,0", render.RGB(0, 0, 0), false},
		{"256,0,0", render.Color{}, true},
		{"1,2", render.Color{}, true},
		{"red", render.Color{}, true},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := parseBackground(tc.in)
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v", err)
			}
			if got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestParsePointer(t *testing.T) {
	x, y, err := parsePointer("0.25, 1")
	if err != nil || x != 0.25 || y != 1 {
		t.Errorf("got (%v, %v, %v)", x, y, err)
	}
	for _, in := range []string{"", "0.5", "a,b", "1.5,0", "0,-0.1"} {
		if _, _, err := parsePointer(in); err == nil {
			t.Errorf("parsePointer(%q): expected error", in)
		}
	}
}

func TestCellToPixel(t *testing.T) {
	x, y := cellToPixel(0, 0)
	if x != 0.5 || y != 1 {
		t.Errorf("origin: got (%v, %v)", x, y)
	}
	x, y = cellToPixel(79, 23)
	if x != 79.5 || y != 47 {
		t.Errorf("last cell: got (%v, %v)", x, y)
	}
}

func TestModelArg(t *testing.T) {
	if got := modelArg(nil); got != "./DamagedHelmet.gltf" {
		t.Errorf("default: got %q", got)
	}
	if got := modelArg([]string{"x.glb"}); got != "x.glb" {
		t.Errorf("got %q", got)
	}
}

func TestNewLogger(t *testing.T) {
	if _, _, err := newLogger(&options{logLevel: "loud"}, false); err == nil {
		t.Error("bad level should fail")
	}

	path := filepath.Join(t.TempDir(), "helmet.log")
	logger, flush, err := newLogger(&options{logLevel: "debug", logFile: path}, true)
	if err != nil {
		t.Fatalf("newLogger: %v", err)
	}
	logger.Debug("hello", "k", 1)
	flush()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "hello") {
		t.Errorf("log file: %q", data)
	}
}

func TestProgressLogger(t *testing.T) {
	var sb strings.Builder
	// Progress is visible at the default level.
	logger := log.NewWithOptions(&sb, log.Options{Level: log.InfoLevel})
	var pcts []int
	fn := progressLogger(logger, "model", func(p int) { pcts = append(pcts, p) })
	for _, f := range []float64{-1, 0.01, 0.02, 0.5, 1} {
		fn(f)
	}
	if len(pcts) != 4 || pcts[3] != 100 {
		t.Errorf("reported: %v", pcts)
	}
	// 0.01 and 0.02 share a 10% step.
	if n := strings.Count(sb.String(), "loading model"); n != 3 {
		t.Errorf("logged %d lines:\n%s", n, sb.String())
	}
}

func TestHUDLines(t *testing.T) {
	loads := &loadState{}
	h := NewHUD(loads)

	top, bottom := h.Lines(80, viewer.Stats{})
	if top != "" || !strings.Contains(bottom, "loading model") {
		t.Errorf("loading: top=%q bottom=%q", top, bottom)
	}

	loads.modelErr.Store(true)
	if _, bottom := h.Lines(80, viewer.Stats{}); !strings.Contains(bottom, "failed") {
		t.Errorf("failed: %q", bottom)
	}

	s := viewer.Stats{Model: "DamagedHelmet.gltf", Triangles: 46356, ModelLoaded: true, EnvLoaded: true, Shift: true}
	h.Visible = true
	top, bottom = h.Lines(100, s)
	for _, want := range []string{"FPS", "DamagedHelmet.gltf", "46356 tris"} {
		if !strings.Contains(top, want) {
			t.Errorf("top row missing %q: %q", want, top)
		}
	}
	if !strings.Contains(bottom, "[✓] RGB shift") || !strings.Contains(bottom, "[ ] X-Ray") {
		t.Errorf("bottom row: %q", bottom)
	}

	h.Visible = false
	h.Message = "saved x.png"
	top, bottom = h.Lines(100, s)
	if top != "" || !strings.Contains(bottom, "saved x.png") {
		t.Errorf("message: top=%q bottom=%q", top, bottom)
	}
}

// newTestLoop returns a frame loop without a terminal around an 80x48 viewer
// holding a single triangle.
func newTestLoop(t *testing.T) *frameLoop {
	t.Helper()
	logger := log.New(io.Discard)
	v, err := viewer.New(viewer.Config{Width: 80, Height: 48, Logger: logger})
	if err != nil {
		t.Fatalf("viewer.New: %v", err)
	}

	mesh := models.NewMesh("tri")
	for _, p := range []math3d.Vec3{{X: -1, Y: -1}, {X: 0, Y: 1}, {X: 1, Y: -1}} {
		mesh.Vertices = append(mesh.Vertices, models.MeshVertex{Position: p, Normal: math3d.V3(0, 0, 1)})
	}
	mesh.Faces = []models.Face{{V: [3]int{0, 1, 2}}}
	mesh.CalculateBounds()
	if !v.SetModel(&models.Model{Name: "tri.glb", Mesh: mesh, Materials: []models.Material{models.DefaultMaterial()}}) {
		t.Fatal("model rejected")
	}

	loads := &loadState{}
	return &frameLoop{viewer: v, hud: NewHUD(loads), loads: loads, log: logger}
}

func TestHandleMouseMotion(t *testing.T) {
	tests := []struct {
		name     string
		ev       uv.MouseMotionEvent
		col, row int
	}{
		{"hover", uv.MouseMotionEvent{X: 79, Y: 23}, 79, 23},
		{"drag", uv.MouseMotionEvent{X: 0, Y: 0, Button: uv.MouseLeft}, 0, 0},
		{"right drag", uv.MouseMotionEvent{X: 40, Y: 5, Button: uv.MouseRight}, 40, 5},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newTestLoop(t)
			if f.handle(tc.ev) {
				t.Fatal("motion should not quit")
			}
			f.viewer.Step(anim.DefaultDuration)

			x, y := cellToPixel(tc.col, tc.row)
			wantPitch, wantYaw := viewer.RotationTarget(x, y, 80, 48)
			s := f.viewer.Stats()
			if math.Abs(s.Pitch-wantPitch) > 1e-12 || math.Abs(s.Yaw-wantYaw) > 1e-12 {
				t.Errorf("got pitch=%v yaw=%v, want pitch=%v yaw=%v", s.Pitch, s.Yaw, wantPitch, wantYaw)
			}
			if s.Pitch == 0 || s.Yaw == 0 {
				t.Error("motion away from the center should rotate both axes")
			}
		})
	}
}

func TestHandleResize(t *testing.T) {
	f := newTestLoop(t)
	if f.handle(uv.WindowSizeEvent{Width: 100, Height: 30}) {
		t.Fatal("resize should not quit")
	}
	if w, h := f.viewer.Size(); w != 100 || h != 30*pixelsPerRow {
		t.Errorf("viewer size: got %dx%d, want 100x%d", w, h, 30*pixelsPerRow)
	}
	if got := f.viewer.Camera().AspectRatio; math.Abs(got-100.0/60) > 1e-12 {
		t.Errorf("aspect: got %v", got)
	}
}

func TestHandleKeys(t *testing.T) {
	quitKeys := map[string]uv.KeyPressEvent{
		"esc":    {Code: uv.KeyEscape},
		"q":      {Code: 'q', Text: "q"},
		"ctrl+c": {Code: 'c', Mod: uv.ModCtrl},
	}
	for name, ev := range quitKeys {
		if !newTestLoop(t).handle(ev) {
			t.Errorf("%s should quit", name)
		}
	}

	f := newTestLoop(t)
	before := f.viewer.Stats()
	for _, ev := range []uv.KeyPressEvent{
		{Code: 's', Text: "s"},
		{Code: 'x', Text: "x"},
		{Code: '?', Text: "?"},
	} {
		if f.handle(ev) {
			t.Fatalf("%q should not quit", ev.Text)
		}
	}
	after := f.viewer.Stats()
	if after.Shift == before.Shift {
		t.Error("s should toggle the RGB shift")
	}
	if after.Wireframe == before.Wireframe {
		t.Error("x should toggle x-ray")
	}
	if !f.hud.Visible {
		t.Error("? should show the help overlay")
	}
	if !strings.HasPrefix(f.hud.Message, "x-ray") {
		t.Errorf("message: got %q", f.hud.Message)
	}
}

func TestApplyModelRejectsEmptyMesh(t *testing.T) {
	logger := log.New(io.Discard)
	v, err := viewer.New(viewer.Config{Width: 8, Height: 8, Logger: logger})
	if err != nil {
		t.Fatal(err)
	}
	loads := &loadState{}
	loads.modelPct.Store(100)
	f := &frameLoop{viewer: v, hud: NewHUD(loads), loads: loads, log: logger}

	f.applyModel(&models.Model{Name: "empty.glb", Mesh: models.NewMesh("empty")})
	if v.Loaded() {
		t.Fatal("a mesh without triangles should be rejected")
	}
	if !loads.modelErr.Load() {
		t.Error("a rejected model should mark the load as failed")
	}
	if _, bottom := f.hud.Lines(80, v.Stats()); !strings.Contains(bottom, "failed") {
		t.Errorf("HUD should report the failure, got %q", bottom)
	}
}

// writeScene writes a one-triangle model facing +Z and a flat grey
// environment map into dir.
func writeScene(t *testing.T, dir string) (modelPath, envPath string) {
	t.Helper()

	doc := gltf.NewDocument()
	pos := modeler.WritePosition(doc, [][3]float32{{-1, -1, 0}, {1, -1, 0}, {0, 1, 0}})
	nrm := modeler.WriteNormal(doc, [][3]float32{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}})
	idx := modeler.WriteIndices(doc, []uint16{0, 1, 2})
	doc.Meshes = []*gltf.Mesh{{
		Name: "tri",
		Primitives: []*gltf.Primitive{{
			Indices:    gltf.Index(idx),
			Attributes: map[string]int{gltf.POSITION: pos, gltf.NORMAL: nrm},
		}},
	}}
	doc.Nodes = []*gltf.Node{{Name: "tri", Mesh: gltf.Index(0)}}
	doc.Scenes = []*gltf.Scene{{Nodes: []int{0}}}
	doc.Scene = gltf.Index(0)
	modelPath = filepath.Join(dir, "tri.glb")
	if err := gltf.SaveBinary(doc, modelPath); err != nil {
		t.Fatalf("save glb: %v", err)
	}

	img := image.NewRGBA(image.Rect(0, 0, 16, 8))
	for y := range 8 {
		for x := range 16 {
			img.Set(x, y, color.RGBA{R: 180, G: 180, B: 180, A: 255})
		}
	}
	envPath = filepath.Join(dir, "env.png")
	f, err := os.Create(envPath)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	return modelPath, envPath
}

func testOptions(hdri string) *options {
	return &options{
		hdri:      hdri,
		bg:        "0,0,0",
		shift:     render.DefaultShiftAmount,
		exposure:  1,
		smoothing: "ease",
		logLevel:  "error",
	}
}

func readPNG(t *testing.T, path string) image.Image {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open snapshot: %v", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	return img
}

func TestSnapshot(t *testing.T) {
	dir := t.TempDir()
	modelPath, envPath := writeScene(t, dir)
	out := filepath.Join(dir, "out.png")

	snap := &snapshotOptions{out: out, width: 64, height: 48, pointer: "0.5,0.5"}
	if err := runSnapshot(context.Background(), testOptions(envPath), snap, modelPath); err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	img := readPNG(t, out)
	if b := img.Bounds(); b.Dx() != 64 || b.Dy() != 48 {
		t.Fatalf("size: got %v", b)
	}
	if r, g, b, _ := img.At(32, 24).RGBA(); r == 0 && g == 0 && b == 0 {
		t.Error("center should show the model")
	}
	if r, g, b, _ := img.At(0, 0).RGBA(); r != 0 || g != 0 || b != 0 {
		t.Error("corner should be background")
	}
}

func TestSnapshotMissingAssetsStillRenders(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.png")

	snap := &snapshotOptions{out: out, width: 16, height: 8, pointer: "1,1"}
	opts := testOptions(filepath.Join(dir, "missing.hdr"))
	opts.logLevel = "fatal"
	if err := runSnapshot(context.Background(), opts, snap, filepath.Join(dir, "missing.glb")); err != nil {
		t.Fatalf("load errors should not be fatal: %v", err)
	}
	if r, g, b, _ := readPNG(t, out).At(8, 4).RGBA(); r != 0 || g != 0 || b != 0 {
		t.Error("empty scene should be background")
	}
}

func TestSnapshotRejectsBadInput(t *testing.T) {
	opts := testOptions("")
	tests := []*snapshotOptions{
		{width: 0, height: 10, pointer: "0.5,0.5"},
		{width: 10, height: 10, pointer: "nope"},
	}
	for _, snap := range tests {
		if err := runSnapshot(context.Background(), opts, snap, "x.glb"); err == nil {
			t.Errorf("%+v: expected error", snap)
		}
	}
}
