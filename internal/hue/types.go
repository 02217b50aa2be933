package hue

import "github.com/nerrad567/loxhue-core/internal/color"

// ResourceType is a CLIP v2 resource type name.
type ResourceType string

// Resource types read or written by the bridge.
const (
	TypeDevice         ResourceType = "device"
	TypeLight          ResourceType = "light"
	TypeGroupedLight   ResourceType = "grouped_light"
	TypeRoom           ResourceType = "room"
	TypeZone           ResourceType = "zone"
	TypeMotion         ResourceType = "motion"
	TypeContact        ResourceType = "contact"
	TypeTemperature    ResourceType = "temperature"
	TypeLightLevel     ResourceType = "light_level"
	TypeDevicePower    ResourceType = "device_power"
	TypeButton         ResourceType = "button"
	TypeRelativeRotary ResourceType = "relative_rotary"
)

// ResourceRef points at another resource.
type ResourceRef struct {
	RID   string       `json:"rid"`
	RType ResourceType `json:"rtype"`
}

// Metadata is the user-facing part of a device, room or zone.
type Metadata struct {
	Name      string `json:"name"`
	Archetype string `json:"archetype,omitempty"`
}

// Resource is the union of every field the bridge reads from CLIP v2
// resources and event deltas. Deltas carry only the fields that changed,
// so everything is optional.
type Resource struct {
	ID       string        `json:"id"`
	Type     ResourceType  `json:"type,omitempty"`
	Owner    *ResourceRef  `json:"owner,omitempty"`
	Metadata *Metadata     `json:"metadata,omitempty"`
	Services []ResourceRef `json:"services,omitempty"`

	On               *On               `json:"on,omitempty"`
	Dimming          *Dimming          `json:"dimming,omitempty"`
	Color            *Color            `json:"color,omitempty"`
	ColorTemperature *ColorTemperature `json:"color_temperature,omitempty"`

	Motion         *Motion         `json:"motion,omitempty"`
	ContactReport  *ContactReport  `json:"contact_report,omitempty"`
	Temperature    *Temperature    `json:"temperature,omitempty"`
	Light          *LightLevel     `json:"light,omitempty"`
	Button         *Button         `json:"button,omitempty"`
	RelativeRotary *RelativeRotary `json:"relative_rotary,omitempty"`
	PowerState     *PowerState     `json:"power_state,omitempty"`
}

// On is the power state of a light or group.
type On struct {
	On bool `json:"on"`
}

// Dimming carries brightness in percent.
type Dimming struct {
	Brightness float64 `json:"brightness"`
}

// Color carries the xy colour point.
type Color struct {
	XY *color.XY `json:"xy,omitempty"`
}

// ColorTemperature carries mirek. Mirek is null while a light is in xy mode.
type ColorTemperature struct {
	Mirek       *int         `json:"mirek,omitempty"`
	MirekSchema *MirekSchema `json:"mirek_schema,omitempty"`
}

// MirekSchema is the supported colour temperature range of a light.
type MirekSchema struct {
	MirekMinimum int `json:"mirek_minimum"`
	MirekMaximum int `json:"mirek_maximum"`
}

// Motion is a motion sensor reading.
type Motion struct {
	Motion *bool `json:"motion,omitempty"`
}

// ContactReport is a door/window contact reading.
type ContactReport struct {
	State string `json:"state"`
}

// Contact states.
const (
	ContactClosed = "contact"
	ContactOpen   = "no_contact"
)

// Temperature is a temperature sensor reading in degrees Celsius.
type Temperature struct {
	Temperature *float64 `json:"temperature,omitempty"`
}

// LightLevel is a raw light sensor reading (10000*log10(lux)+1).
type LightLevel struct {
	LightLevel *float64 `json:"light_level,omitempty"`
}

// Button carries the last button event.
type Button struct {
	LastEvent string `json:"last_event,omitempty"`
}

// Button events forwarded to the controller.
const (
	ButtonShortRelease = "short_release"
	ButtonLongPress    = "long_press"
)

// RelativeRotary is a dial event. Depending on firmware the rotation is
// nested under rotary_report, last_event or sits at the top level.
type RelativeRotary struct {
	RotaryReport *RotaryReport `json:"rotary_report,omitempty"`
	LastEvent    *RotaryReport `json:"last_event,omitempty"`
	Rotation     *Rotation     `json:"rotation,omitempty"`
}

// RotaryReport wraps a rotation.
type RotaryReport struct {
	Rotation *Rotation `json:"rotation,omitempty"`
}

// Rotation is the direction of a dial step.
type Rotation struct {
	Direction string `json:"direction"`
}

// DirectionClockwise is the clockwise rotation direction.
const DirectionClockwise = "clock_wise"

// Direction returns the rotation direction from whichever shape the
// firmware used, or "" when none is present.
func (r *RelativeRotary) Direction() string {
	switch {
	case r.RotaryReport != nil:
		if r.RotaryReport.Rotation != nil {
			return r.RotaryReport.Rotation.Direction
		}
	case r.LastEvent != nil:
		if r.LastEvent.Rotation != nil {
			return r.LastEvent.Rotation.Direction
		}
	case r.Rotation != nil:
		return r.Rotation.Direction
	}
	return ""
}

// PowerState is a battery reading.
type PowerState struct {
	BatteryLevel *int `json:"battery_level,omitempty"`
}

// ServiceOf returns the first service of the given type, if any.
func (r Resource) ServiceOf(t ResourceType) (ResourceRef, bool) {
	for _, s := range r.Services {
		if s.RType == t {
			return s, true
		}
	}
	return ResourceRef{}, false
}

// Name returns the metadata name or "" when absent.
func (r Resource) Name() string {
	if r.Metadata == nil {
		return ""
	}
	return r.Metadata.Name
}

// Event is one envelope of the event stream.
type Event struct {
	ID           string     `json:"id,omitempty"`
	Type         string     `json:"type"`
	CreationTime string     `json:"creationtime,omitempty"`
	Data         []Resource `json:"data"`
}

// Event types that carry state.
const (
	EventUpdate = "update"
	EventAdd    = "add"
)

// Dynamics controls the transition of a state change.
type Dynamics struct {
	Duration int `json:"duration"`
}

// LightUpdate is the body of a light or grouped_light PUT.
type LightUpdate struct {
	On               *On               `json:"on,omitempty"`
	Dimming          *Dimming          `json:"dimming,omitempty"`
	Color            *Color            `json:"color,omitempty"`
	ColorTemperature *ColorTemperature `json:"color_temperature,omitempty"`
	Dynamics         *Dynamics         `json:"dynamics,omitempty"`
}

// IsPowerOnOnly reports whether the update only switches the light on.
func (u LightUpdate) IsPowerOnOnly() bool {
	return u.On != nil && u.On.On &&
		u.Dimming == nil && u.Color == nil && u.ColorTemperature == nil && u.Dynamics == nil
}

// PowerOff returns an update switching the target off.
func PowerOff() LightUpdate {
	return LightUpdate{On: &On{On: false}}
}

// PowerOn returns an update switching the target on.
func PowerOn() LightUpdate {
	return LightUpdate{On: &On{On: true}}
}
