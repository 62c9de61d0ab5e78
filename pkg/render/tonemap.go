package render

import (
	"math"

	"github.com/taigrr/helmet/pkg/math3d"
)

// srgbDecodeLUT maps 8-bit sRGB values to linear light.
var srgbDecodeLUT = func() [256]float64 {
	var lut [256]float64
	for i := range lut {
		lut[i] = SRGBToLinear(float64(i) / 255)
	}
	return lut
}()

// srgbEncodeLUT maps linear [0,1] (quantised to lutSize steps) to 8-bit sRGB.
const lutSize = 4096

var srgbEncodeLUT = func() [lutSize + 1]uint8 {
	var lut [lutSize + 1]uint8
	for i := range lut {
		lut[i] = uint8(math.Round(LinearToSRGB(float64(i)/lutSize) * 255))
	}
	return lut
}()

// SRGBToLinear decodes one sRGB channel in [0,1].
func SRGBToLinear(c float64) float64 {
	if c <= 0.04045 {
		return c / 12.92
	}
	return math.Pow((c+0.055)/1.055, 2.4)
}

// LinearToSRGB encodes one linear channel in [0,1].
func LinearToSRGB(c float64) float64 {
	if c <= 0.0031308 {
		return c * 12.92
	}
	return 1.055*math.Pow(c, 1/2.4) - 0.055
}

// encodeChannel clamps a linear channel and converts it to 8-bit sRGB.
func encodeChannel(c float64) uint8 {
	if !(c > 0) {
		return 0
	}
	if c >= 1 {
		return 255
	}
	return srgbEncodeLUT[int(c*lutSize+0.5)]
}

// rrtAndODTFit is the RRT+ODT curve fit by Stephen Hill.
func rrtAndODTFit(v float64) float64 {
	a := v*(v+0.0245786) - 0.000090537
	b := v*(0.983729*v+0.4329510) + 0.238081
	return a / b
}

// ACESFilmic tone maps linear HDR colour to [0,1] with the fitted ACES
// curve, at the given exposure.
func ACESFilmic(c math3d.Vec3, exposure float64) math3d.Vec3 {
	c = c.Scale(exposure / 0.6)

	// sRGB => XYZ => D65_2_D60 => AP1 => RRT_SAT
	in := math3d.V3(
		0.59719*c.X+0.35458*c.Y+0.04823*c.Z,
		0.07600*c.X+0.90834*c.Y+0.01566*c.Z,
		0.02840*c.X+0.13383*c.Y+0.83777*c.Z,
	)
	in = math3d.V3(rrtAndODTFit(in.X), rrtAndODTFit(in.Y), rrtAndODTFit(in.Z))

	// ODT_SAT => XYZ => D60_2_D65 => sRGB
	out := math3d.V3(
		1.60475*in.X-0.53108*in.Y-0.07367*in.Z,
		-0.10208*in.X+1.10813*in.Y-0.00605*in.Z,
		-0.00327*in.X-0.07276*in.Y+1.07602*in.Z,
	)
	return math3d.V3(clamp01(out.X), clamp01(out.Y), clamp01(out.Z))
}

// ToneMap converts linear HDR radiance to a displayable 8-bit sRGB colour.
func ToneMap(c math3d.Vec3, exposure float64) Color {
	m := ACESFilmic(c, exposure)
	return Color{R: encodeChannel(m.X), G: encodeChannel(m.Y), B: encodeChannel(m.Z), A: 255}
}

// LinearColor returns the linear-light value of an 8-bit sRGB colour.
func LinearColor(c Color) math3d.Vec3 {
	return math3d.V3(srgbDecodeLUT[c.R], srgbDecodeLUT[c.G], srgbDecodeLUT[c.B])
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
