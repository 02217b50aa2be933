package mapping

import (
	"github.com/nerrad567/loxhue-core/internal/color"
	"github.com/nerrad567/loxhue-core/internal/hue"
)

// Capability describes what a light can render.
type Capability struct {
	SupportsColor            bool `json:"supportsColor"`
	SupportsColorTemperature bool `json:"supportsCt"`
	MirekMin                 int  `json:"min"`
	MirekMax                 int  `json:"max"`
}

// Capabilities is keyed by light resource id.
type Capabilities map[string]Capability

// Lookup returns the capability of a light.
func (c Capabilities) Lookup(resourceID string) (Capability, bool) {
	capability, ok := c[resourceID]
	return capability, ok
}

// CapabilitiesFromLights derives capabilities from a light listing.
// Lights without a mirek schema get the 153-500 default range.
func CapabilitiesFromLights(lights []hue.Resource) Capabilities {
	caps := make(Capabilities, len(lights))
	for _, l := range lights {
		c := Capability{
			SupportsColor:            l.Color != nil,
			SupportsColorTemperature: l.ColorTemperature != nil,
			MirekMin:                 color.DefaultMirekMin,
			MirekMax:                 color.DefaultMirekMax,
		}
		if ct := l.ColorTemperature; ct != nil && ct.MirekSchema != nil {
			if ct.MirekSchema.MirekMinimum > 0 {
				c.MirekMin = ct.MirekSchema.MirekMinimum
			}
			if ct.MirekSchema.MirekMaximum > 0 {
				c.MirekMax = ct.MirekSchema.MirekMaximum
			}
		}
		caps[l.ID] = c
	}
	return caps
}

// ServiceOwners maps every service id of the given devices to its device id.
func ServiceOwners(devices []hue.Resource) map[string]string {
	owners := make(map[string]string)
	for _, d := range devices {
		for _, s := range d.Services {
			owners[s.RID] = d.ID
		}
	}
	return owners
}
