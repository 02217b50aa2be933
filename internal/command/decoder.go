package command

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/nerrad567/loxhue-core/internal/color"
	"github.com/nerrad567/loxhue-core/internal/hue"
	"github.com/nerrad567/loxhue-core/internal/mapping"
)

// The controller's colour temperature slider spans this mirek range.
const (
	controllerMirekMin = 153
	controllerMirekMax = 370
)

const (
	ctPrefix    = "20"
	ctMinLength = 9
)

// CapabilitySource looks up what a light can render.
// mapping.Capabilities satisfies it.
type CapabilitySource interface {
	Lookup(resourceID string) (mapping.Capability, bool)
}

// Decoder converts controller values into light updates.
type Decoder struct {
	caps CapabilitySource
}

// NewDecoder creates a decoder. caps may be nil, in which case every light
// is assumed to support colour.
func NewDecoder(caps CapabilitySource) *Decoder {
	return &Decoder{caps: caps}
}

// Decode converts value into an update for the resource.
//
// Parameters:
//   - resourceID: Light or grouped_light id, used for the capability lookup
//   - value: Raw value as received, e.g. "55" or "201003000"
//
// Returns:
//   - hue.LightUpdate: the state change to send
//   - error: ErrInvalidValue when the number does not fit in 64 bits
func (d *Decoder) Decode(resourceID, value string) (hue.LightUpdate, error) {
	s := strings.TrimSpace(value)

	n, err := leadingInt(s)
	if err != nil {
		return hue.LightUpdate{}, fmt.Errorf("%w: %q: %w", ErrInvalidValue, value, err)
	}

	switch {
	case n <= 0:
		return hue.PowerOff(), nil
	case n == 1:
		return hue.PowerOn(), nil
	case n <= 100:
		return brightness(float64(n)), nil
	}

	capability, hasCaps := d.lookup(resourceID)

	if strings.HasPrefix(s, ctPrefix) && len(s) >= ctMinLength {
		return decodeColorTemperature(s, capability, hasCaps), nil
	}
	return decodeRGB(n, capability, hasCaps), nil
}

func (d *Decoder) lookup(resourceID string) (mapping.Capability, bool) {
	if d.caps == nil {
		return mapping.Capability{}, false
	}
	return d.caps.Lookup(resourceID)
}

// decodeColorTemperature handles "20" + 3 digit brightness + kelvin.
func decodeColorTemperature(s string, c mapping.Capability, hasCaps bool) hue.LightUpdate {
	bri, _ := leadingInt(s[2:5])
	kelvin, _ := leadingInt(s[5:])

	if bri == 0 {
		return hue.PowerOff()
	}

	mirek := color.KelvinToMirek(int(kelvin))
	if hasCaps && c.MirekMin > 0 && c.MirekMax > 0 {
		scaled := int(math.Round(color.MapRange(float64(mirek),
			controllerMirekMin, controllerMirekMax,
			float64(c.MirekMin), float64(c.MirekMax))))
		mirek = min(max(scaled, c.MirekMin), c.MirekMax)
	}

	upd := brightness(float64(bri))
	upd.ColorTemperature = &hue.ColorTemperature{Mirek: &mirek}
	return upd
}

// decodeRGB handles BBBGGGRRR with channels on a 0-100 scale.
func decodeRGB(n int64, c mapping.Capability, hasCaps bool) hue.LightUpdate {
	blue := int(n / 1_000_000)
	rem := n % 1_000_000
	green := int(rem / 1000)
	red := int(rem % 1000)

	peak := max(red, green, blue)
	if peak == 0 {
		return hue.PowerOff()
	}

	upd := brightness(float64(peak))

	supportsColor := !hasCaps || c.SupportsColor
	if !supportsColor && c.SupportsColorTemperature {
		lo, hi := c.MirekMin, c.MirekMax
		if lo <= 0 {
			lo = color.DefaultMirekMin
		}
		if hi <= 0 {
			hi = color.DefaultMirekMax
		}
		mirek := color.RGBToMirekFallback(red, green, blue, lo, hi)
		upd.ColorTemperature = &hue.ColorTemperature{Mirek: &mirek}
		return upd
	}

	xy := color.RGBToXY(float64(red), float64(green), float64(blue))
	upd.Color = &hue.Color{XY: &xy}
	return upd
}

func brightness(b float64) hue.LightUpdate {
	upd := hue.PowerOn()
	upd.Dimming = &hue.Dimming{Brightness: b}
	return upd
}

// leadingInt parses an optional sign and the digits that follow it,
// ignoring anything after. A string without leading digits is 0.
func leadingInt(s string) (int64, error) {
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	start := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == start {
		return 0, nil
	}
	return strconv.ParseInt(s[:end], 10, 64)
}
