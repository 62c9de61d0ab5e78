package render

import (
	"bufio"
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"io"
	"math"

	"github.com/mdouchement/hdr/codec/rgbe"
	"github.com/mdouchement/hdr/hdrcolor"
	"github.com/taigrr/helmet/pkg/math3d"
)

// Environment is an equirectangular radiance map used for image-based
// lighting. Directions map to texture space the way an equirectangular
// reflection mapping does: +Y is the top row, and the seam lies along -X.
//
// The map is stored as a box-filtered mip pyramid. Blurrier levels stand in
// for rough reflections; the smallest level approximates diffuse irradiance.
type Environment struct {
	levels []envLevel

	// Intensity scales every sample (1 = as authored).
	Intensity float64
}

type envLevel struct {
	w, h int
	pix  []math3d.Vec3
}

// minEnvWidth stops the pyramid; an 8x4 map is already close to irradiance.
const minEnvWidth = 8

// NewEnvironment builds an environment from linear RGB pixels in row-major
// order. It panics if len(pix) != w*h.
func NewEnvironment(w, h int, pix []math3d.Vec3) *Environment {
	if len(pix) != w*h {
		panic(fmt.Sprintf("render: environment has %d pixels, want %dx%d", len(pix), w, h))
	}
	env := &Environment{Intensity: 1}
	lvl := envLevel{w: w, h: h, pix: pix}
	env.levels = append(env.levels, lvl)
	for lvl.w > minEnvWidth && lvl.h > 1 {
		lvl = lvl.downsample()
		env.levels = append(env.levels, lvl)
	}
	return env
}

// Size returns the dimensions of the base level.
func (e *Environment) Size() (w, h int) {
	return e.levels[0].w, e.levels[0].h
}

// Levels returns the number of mip levels.
func (e *Environment) Levels() int {
	return len(e.levels)
}

// Sample returns the radiance seen along dir at a fractional mip level.
func (e *Environment) Sample(dir math3d.Vec3, lod float64) math3d.Vec3 {
	u, v := EquirectUV(dir)
	maxLod := float64(len(e.levels) - 1)
	lod = math.Max(0, math.Min(maxLod, lod))

	l0 := int(lod)
	c := e.levels[l0].sample(u, v)
	if t := lod - float64(l0); t > 0 && l0+1 < len(e.levels) {
		c = c.Lerp(e.levels[l0+1].sample(u, v), t)
	}
	return c.Scale(e.Intensity)
}

// Radiance returns specular radiance along reflection direction r for a
// surface of the given roughness in [0,1].
func (e *Environment) Radiance(r math3d.Vec3, roughness float64) math3d.Vec3 {
	return e.Sample(r, clamp01(roughness)*float64(len(e.levels)-1))
}

// Irradiance returns the diffuse light arriving at a surface with normal n.
func (e *Environment) Irradiance(n math3d.Vec3) math3d.Vec3 {
	return e.Sample(n, float64(len(e.levels)-1))
}

// EquirectUV maps a direction to equirectangular texture coordinates,
// with v = 0 at the bottom of the image.
func EquirectUV(dir math3d.Vec3) (u, v float64) {
	dir = dir.Normalize()
	u = math.Atan2(dir.Z, dir.X)/(2*math.Pi) + 0.5
	v = math.Asin(math.Max(-1, math.Min(1, dir.Y)))/math.Pi + 0.5
	return u, v
}

// sample bilinearly filters the level, wrapping horizontally and clamping
// vertically.
func (l envLevel) sample(u, v float64) math3d.Vec3 {
	fx := u*float64(l.w) - 0.5
	fy := (1-v)*float64(l.h) - 0.5

	x0 := int(math.Floor(fx))
	y0 := int(math.Floor(fy))
	tx := fx - float64(x0)
	ty := fy - float64(y0)

	x1 := wrapPixelCoord(x0+1, l.w, WrapRepeat)
	y1 := wrapPixelCoord(y0+1, l.h, WrapClamp)
	x0 = wrapPixelCoord(x0, l.w, WrapRepeat)
	y0 = wrapPixelCoord(y0, l.h, WrapClamp)

	top := l.pix[y0*l.w+x0].Lerp(l.pix[y0*l.w+x1], tx)
	bot := l.pix[y1*l.w+x0].Lerp(l.pix[y1*l.w+x1], tx)
	return top.Lerp(bot, ty)
}

// downsample halves the level with a 2x2 box filter.
func (l envLevel) downsample() envLevel {
	w, h := max(l.w/2, 1), max(l.h/2, 1)
	out := envLevel{w: w, h: h, pix: make([]math3d.Vec3, w*h)}
	for y := range h {
		sy0 := min(2*y, l.h-1)
		sy1 := min(2*y+1, l.h-1)
		for x := range w {
			sx0 := min(2*x, l.w-1)
			sx1 := min(2*x+1, l.w-1)
			sum := l.pix[sy0*l.w+sx0].
				Add(l.pix[sy0*l.w+sx1]).
				Add(l.pix[sy1*l.w+sx0]).
				Add(l.pix[sy1*l.w+sx1])
			out.pix[y*w+x] = sum.Scale(0.25)
		}
	}
	return out
}

// hdrImage is the subset of hdr.Image used here.
type hdrImage interface {
	image.Image
	HDRAt(x, y int) hdrcolor.Color
}

// radianceMagic prefixes Radiance RGBE (.hdr) files.
var radianceMagic = []byte("#?")

// LoadEnvironment decodes an environment map. Radiance .hdr input keeps its
// full dynamic range; PNG and JPEG input is treated as sRGB and linearised.
func LoadEnvironment(r io.Reader) (*Environment, error) {
	br := bufio.NewReader(r)
	head, _ := br.Peek(len(radianceMagic))

	if bytes.Equal(head, radianceMagic) {
		img, err := rgbe.Decode(br)
		if err != nil {
			return nil, fmt.Errorf("decode hdr: %w", err)
		}
		hi, ok := img.(hdrImage)
		if !ok {
			return nil, fmt.Errorf("decode hdr: unexpected image type %T", img)
		}
		return environmentFromHDR(hi), nil
	}

	img, _, err := image.Decode(br)
	if err != nil {
		return nil, fmt.Errorf("decode environment image: %w", err)
	}
	return EnvironmentFromImage(img), nil
}

func environmentFromHDR(img hdrImage) *Environment {
	b := img.Bounds()
	pix := make([]math3d.Vec3, b.Dx()*b.Dy())
	for y := range b.Dy() {
		for x := range b.Dx() {
			r, g, bl, _ := img.HDRAt(b.Min.X+x, b.Min.Y+y).HDRRGBA()
			pix[y*b.Dx()+x] = math3d.V3(r, g, bl)
		}
	}
	return NewEnvironment(b.Dx(), b.Dy(), pix)
}

// EnvironmentFromImage builds an environment from a low dynamic range,
// sRGB-encoded equirectangular image.
func EnvironmentFromImage(img image.Image) *Environment {
	b := img.Bounds()
	pix := make([]math3d.Vec3, b.Dx()*b.Dy())
	for y := range b.Dy() {
		for x := range b.Dx() {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			pix[y*b.Dx()+x] = LinearColor(Color{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(bl >> 8), A: 255})
		}
	}
	return NewEnvironment(b.Dx(), b.Dy(), pix)
}

// NewUniformEnvironment returns an environment that is c in every direction.
func NewUniformEnvironment(c math3d.Vec3) *Environment {
	pix := make([]math3d.Vec3, 2*minEnvWidth*minEnvWidth)
	for i := range pix {
		pix[i] = c
	}
	return NewEnvironment(2*minEnvWidth, minEnvWidth, pix)
}
