package bridge

import (
	"github.com/nerrad567/loxhue-core/internal/color"
	"github.com/nerrad567/loxhue-core/internal/hue"
	"github.com/nerrad567/loxhue-core/internal/infrastructure/logging"
	"github.com/nerrad567/loxhue-core/internal/mapping"
	"github.com/nerrad567/loxhue-core/internal/status"
)

// Rotary directions as sent to the controller.
const (
	rotaryClockwise        = "cw"
	rotaryCounterClockwise = "ccw"
)

type attribute struct {
	key   string
	value any
}

// handleEvents applies update and add envelopes from the event stream.
func (b *Bridge) handleEvents(events []hue.Event) {
	for _, ev := range events {
		if ev.Type != hue.EventUpdate && ev.Type != hue.EventAdd {
			continue
		}
		for _, res := range ev.Data {
			b.applyResource(res, true)
		}
	}
}

// applyResource matches a resource (or delta) to a mapping entry and feeds
// its attributes into the cache. Unmatched stream resources are recorded
// in the detected list when record is set.
func (b *Bridge) applyResource(res hue.Resource, record bool) {
	entry, ok := b.Table().Match(res.ID)
	if !ok {
		if record && res.ID != "" {
			b.detected.RecordResource(res.ID, string(res.Type))
		}
		return
	}

	for _, attr := range extract(res) {
		if b.cache.Update(entry.Name, attr.key, attr.value) {
			b.logEvent(entry, attr)
		}
	}
}

func (b *Bridge) logEvent(entry mapping.Entry, attr attribute) {
	switch attr.key {
	case status.KeyMotion, status.KeyContact, status.KeyOn, status.KeyButton, status.KeyRotary:
		b.logger.Debug("event", "name", entry.Name, attr.key, attr.value, logging.CategoryKey, status.Category(entry.Type))
	}
}

// extract pulls controller attributes out of a resource in a fixed order.
// A colour temperature overrides an xy hex in the same delta.
func extract(r hue.Resource) []attribute {
	var out []attribute
	add := func(key string, value any) {
		out = append(out, attribute{key: key, value: value})
	}

	if r.Motion != nil && r.Motion.Motion != nil {
		add(status.KeyMotion, *r.Motion.Motion)
	}
	if r.Temperature != nil && r.Temperature.Temperature != nil {
		add(status.KeyTemperature, *r.Temperature.Temperature)
	}
	if r.Light != nil && r.Light.LightLevel != nil {
		add(status.KeyLux, color.LuxFromRaw(*r.Light.LightLevel))
	}
	if r.ContactReport != nil && r.ContactReport.State != "" {
		add(status.KeyContact, r.ContactReport.State == hue.ContactOpen)
	}
	if r.On != nil {
		add(status.KeyOn, r.On.On)
	}
	if r.Dimming != nil {
		add(status.KeyBrightness, r.Dimming.Brightness)
	}
	if r.Button != nil {
		switch r.Button.LastEvent {
		case hue.ButtonShortRelease, hue.ButtonLongPress:
			add(status.KeyButton, r.Button.LastEvent)
		}
	}
	if r.PowerState != nil && r.PowerState.BatteryLevel != nil {
		add(status.KeyBattery, *r.PowerState.BatteryLevel)
	}
	if r.RelativeRotary != nil {
		if dir := r.RelativeRotary.Direction(); dir != "" {
			if dir == hue.DirectionClockwise {
				add(status.KeyRotary, rotaryClockwise)
			} else {
				add(status.KeyRotary, rotaryCounterClockwise)
			}
		}
	}
	if r.Color != nil && r.Color.XY != nil {
		add(status.KeyHex, color.XYToHex(r.Color.XY.X, r.Color.XY.Y, 1))
	}
	if ct := r.ColorTemperature; ct != nil && ct.Mirek != nil && *ct.Mirek > 0 {
		add(status.KeyHex, color.MirekToHex(*ct.Mirek))
		add(status.KeyMirek, *ct.Mirek)
	}
	return out
}
