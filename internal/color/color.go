// Package color converts between the colour representations used by the
// Hue bridge (CIE xy, mirek) and the home controller (packed RGB, kelvin,
// hex strings).
//
// All functions are pure. Rounding is half-up to match the values the
// controller side has always received.
package color

import (
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// Mirek bounds assumed when a light does not report its own schema.
const (
	DefaultMirekMin = 153
	DefaultMirekMax = 500

	// kelvinFloor is the coldest input still converted. Anything below maps
	// to DefaultMirekMax.
	kelvinFloor = 2000
)

// XY is a CIE 1931 chromaticity coordinate.
type XY struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// round is half-up rounding (round(-0.5) == 0).
func round(v float64) float64 {
	return math.Floor(v + 0.5)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// KelvinToMirek converts a colour temperature in kelvin to mirek.
func KelvinToMirek(kelvin int) int {
	if kelvin < kelvinFloor {
		return DefaultMirekMax
	}
	return int(round(1e6 / float64(kelvin)))
}

// MapRange linearly rescales v from [inMin,inMax] to [outMin,outMax].
// The result is not clamped.
func MapRange(v, inMin, inMax, outMin, outMax float64) float64 {
	return (v-inMin)*(outMax-outMin)/(inMax-inMin) + outMin
}

// RGBToXY converts an RGB triple on a 0-100 scale to xy, rounded to four
// decimals. Black yields {0,0}.
func RGBToXY(r, g, b float64) XY {
	red := expand(r / 100)
	green := expand(g / 100)
	blue := expand(b / 100)

	x := red*0.664511 + green*0.154324 + blue*0.162028
	y := red*0.283881 + green*0.729798 + blue*0.065885
	z := red*0.000088 + green*0.077053 + blue*0.950255

	sum := x + y + z
	if sum == 0 {
		return XY{}
	}

	return XY{
		X: round4(x / sum),
		Y: round4(y / sum),
	}
}

// expand removes sRGB gamma from a 0-1 channel.
func expand(c float64) float64 {
	if c > 0.04045 {
		return math.Pow((c+0.055)/1.055, 2.4)
	}
	return c / 12.92
}

// compress applies sRGB gamma to a linear channel.
func compress(c float64) float64 {
	if c <= 0.0031308 {
		return 12.92 * c
	}
	return 1.055*math.Pow(c, 1/2.4) - 0.055
}

func round4(v float64) float64 {
	return round(v*1e4) / 1e4
}

// XYToHex converts an xy coordinate at the given relative brightness
// (1.0 for full) to a "#rrggbb" string.
func XYToHex(x, y, bri float64) string {
	z := 1.0 - x - y
	Y := bri
	X := (Y / y) * x
	Z := (Y / y) * z

	r := X*1.656492 - Y*0.354851 - Z*0.255038
	g := -X*0.707196 + Y*1.655397 + Z*0.036152
	b := X*0.051713 - Y*0.121364 + Z*1.011530

	return toHex(compress(r)*255, compress(g)*255, compress(b)*255)
}

// MirekToHex approximates the RGB appearance of a colour temperature.
func MirekToHex(mirek int) string {
	if mirek <= 0 {
		return toHex(0, 0, 0)
	}

	temp := 1e6 / float64(mirek) / 100

	var r, g, b float64
	if temp <= 66 {
		r = 255
		g = 99.4708025861*math.Log(temp) - 161.1195681661
		if temp <= 19 {
			b = 0
		} else {
			b = 138.5177312231*math.Log(temp-10) - 305.0447927307
		}
	} else {
		r = 329.698727446 * math.Pow(temp-60, -0.1332047592)
		g = 288.1221695283 * math.Pow(temp-60, -0.0755148492)
		b = 255
	}

	return toHex(r, g, b)
}

// RGBToMirekFallback picks a colour temperature for lights without colour
// support: the share of red against blue decides how warm the result is.
func RGBToMirekFallback(r, g, b, mirekMin, mirekMax int) int {
	if r+b == 0 {
		return int(round(float64(mirekMin+mirekMax) / 2))
	}
	warmth := float64(r) / float64(r+b)
	return int(round(float64(mirekMin) + warmth*float64(mirekMax-mirekMin)))
}

// LuxFromRaw converts a Hue light_level reading (10000*log10(lux)+1) to lux.
func LuxFromRaw(v float64) int {
	return int(round(math.Pow(10, (v-1)/10000)))
}

// toHex formats 0-255 channels, clamping out of range values first.
// NaN channels (from degenerate xy input) collapse to 0.
func toHex(r, g, b float64) string {
	c := colorful.Color{
		R: channel(r),
		G: channel(g),
		B: channel(b),
	}
	return c.Hex()
}

func channel(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return clamp(v, 0, 255) / 255
}
