package bridge

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/nerrad567/loxhue-core/internal/color"
	"github.com/nerrad567/loxhue-core/internal/hue"
	"github.com/nerrad567/loxhue-core/internal/mapping"
	"github.com/nerrad567/loxhue-core/internal/status"
)

func update(resources ...hue.Resource) []hue.Event {
	return []hue.Event{{Type: hue.EventUpdate, Data: resources}}
}

// ===== Attribute extraction =====

func TestExtract(t *testing.T) {
	keys := func(attrs []attribute) string {
		var out []string
		for _, a := range attrs {
			out = append(out, a.key)
		}
		return strings.Join(out, ",")
	}

	tests := []struct {
		name     string
		resource hue.Resource
		wantKeys string
		last     any
	}{
		{
			name: "light with colour temperature",
			resource: hue.Resource{
				On:               &hue.On{On: true},
				Dimming:          &hue.Dimming{Brightness: 40},
				Color:            &hue.Color{XY: &color.XY{X: 0.3, Y: 0.3}},
				ColorTemperature: &hue.ColorTemperature{Mirek: ptr(250)},
			},
			wantKeys: "on,bri,hex,hex,mirek",
			last:     250,
		},
		{
			name:     "xy mode light has null mirek",
			resource: hue.Resource{Color: &hue.Color{XY: &color.XY{X: 0.7, Y: 0.3}}, ColorTemperature: &hue.ColorTemperature{}},
			wantKeys: "hex",
			last:     color.XYToHex(0.7, 0.3, 1),
		},
		{
			name:     "contact open",
			resource: hue.Resource{ContactReport: &hue.ContactReport{State: hue.ContactOpen}},
			wantKeys: "contact",
			last:     true,
		},
		{
			name:     "contact closed",
			resource: hue.Resource{ContactReport: &hue.ContactReport{State: hue.ContactClosed}},
			wantKeys: "contact",
			last:     false,
		},
		{
			name:     "initial press ignored",
			resource: hue.Resource{Button: &hue.Button{LastEvent: "initial_press"}},
			wantKeys: "",
		},
		{
			name:     "long press",
			resource: hue.Resource{Button: &hue.Button{LastEvent: hue.ButtonLongPress}},
			wantKeys: "button",
			last:     hue.ButtonLongPress,
		},
		{
			name: "rotary under last_event",
			resource: hue.Resource{RelativeRotary: &hue.RelativeRotary{
				LastEvent: &hue.RotaryReport{Rotation: &hue.Rotation{Direction: hue.DirectionClockwise}},
			}},
			wantKeys: "rotary",
			last:     "cw",
		},
		{
			name: "rotary at top level",
			resource: hue.Resource{RelativeRotary: &hue.RelativeRotary{
				Rotation: &hue.Rotation{Direction: "counter_clock_wise"},
			}},
			wantKeys: "rotary",
			last:     "ccw",
		},
		{
			name: "sensor readings in order",
			resource: hue.Resource{
				PowerState:  &hue.PowerState{BatteryLevel: ptr(80)},
				Light:       &hue.LightLevel{LightLevel: ptr(10001.0)},
				Temperature: &hue.Temperature{Temperature: ptr(18.5)},
				Motion:      &hue.Motion{Motion: ptr(true)},
			},
			wantKeys: "motion,temp,lux,bat",
			last:     80,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attrs := extract(tt.resource)
			if got := keys(attrs); got != tt.wantKeys {
				t.Fatalf("keys = %q, want %q", got, tt.wantKeys)
			}
			if len(attrs) > 0 && attrs[len(attrs)-1].value != tt.last {
				t.Errorf("last value = %v, want %v", attrs[len(attrs)-1].value, tt.last)
			}
		})
	}
}

func TestExtractLux(t *testing.T) {
	attrs := extract(hue.Resource{Light: &hue.LightLevel{LightLevel: ptr(10001.0)}})
	if len(attrs) != 1 || attrs[0].value != 10 {
		t.Errorf("lux attrs = %+v, want 10", attrs)
	}
}

// ===== Matching =====

func TestHandleEventsMatchesThroughDevice(t *testing.T) {
	sink := &recordingSink{}
	b := newLoadedBridge(t, newFakeHue(fixture()), sink)

	b.handleEvents(update(
		hue.Resource{ID: "temp-1", Type: hue.TypeTemperature, Temperature: &hue.Temperature{Temperature: ptr(18.5)}},
		hue.Resource{ID: "power-1", Type: hue.TypeDevicePower, PowerState: &hue.PowerState{BatteryLevel: ptr(80)}},
		hue.Resource{ID: "rot-1", Type: hue.TypeRelativeRotary, RelativeRotary: &hue.RelativeRotary{
			RotaryReport: &hue.RotaryReport{Rotation: &hue.Rotation{Direction: "counter_clock_wise"}},
		}},
	))

	if v, _ := b.cache.Get("porch", status.KeyTemperature); v != 18.5 {
		t.Errorf("porch temp = %v, want 18.5", v)
	}
	if v, _ := b.cache.Get("porch", status.KeyBattery); v != 80 {
		t.Errorf("porch bat = %v, want 80", v)
	}
	if v, _ := b.cache.Get("dial", status.KeyRotary); v != "ccw" {
		t.Errorf("dial rotary = %v, want ccw", v)
	}

	emissions := sink.all()
	if len(emissions) != 3 {
		t.Fatalf("emissions = %d, want 3", len(emissions))
	}
	if emissions[0].Entry.Type != mapping.KindSensor {
		t.Errorf("emission entry = %+v", emissions[0].Entry)
	}
}

func TestHandleEventsDeduplicatesStates(t *testing.T) {
	sink := &recordingSink{}
	b := newLoadedBridge(t, newFakeHue(fixture()), sink)

	motion := hue.Resource{ID: "motion-1", Motion: &hue.Motion{Motion: ptr(true)}}
	press := hue.Resource{ID: "btn-1", Button: &hue.Button{LastEvent: hue.ButtonShortRelease}}

	b.handleEvents(update(motion, press))
	b.handleEvents(update(motion, press))

	if got := sink.count("porch", status.KeyMotion); got != 1 {
		t.Errorf("motion emissions = %d, want 1", got)
	}
	if got := sink.count("dial", status.KeyButton); got != 2 {
		t.Errorf("button emissions = %d, want 2", got)
	}
}

func TestHandleEventsRecordsUnmatched(t *testing.T) {
	b := newLoadedBridge(t, newFakeHue(fixture()))

	b.handleEvents(update(hue.Resource{ID: "light-9", Type: hue.TypeLight, On: &hue.On{On: true}}))
	b.handleEvents([]hue.Event{{Type: "delete", Data: []hue.Resource{{ID: "light-8", Type: hue.TypeLight}}}})

	detected := b.Detected()
	if len(detected) != 1 {
		t.Fatalf("Detected() = %+v, want one item", detected)
	}
	if detected[0].ID != "light-9" || detected[0].Type != mapping.DetectedResource || detected[0].Name != "light" {
		t.Errorf("detected = %+v", detected[0])
	}
	if _, ok := b.cache.Get("light-9", status.KeyOn); ok {
		t.Error("unmatched resource reached the cache")
	}
}

// ===== Initial sync =====

func TestSyncInitialStates(t *testing.T) {
	fh := newFakeHue(fixture())
	fh.setResources(hue.TypeMotion, []hue.Resource{{ID: "motion-1", Motion: &hue.Motion{Motion: ptr(true)}}})
	fh.setResources(hue.TypeContact, []hue.Resource{{ID: "contact-1", ContactReport: &hue.ContactReport{State: hue.ContactOpen}}})
	fh.setResources(hue.TypeGroupedLight, []hue.Resource{{ID: "grouped-1", On: &hue.On{On: true}, Dimming: &hue.Dimming{Brightness: 70}}})
	fh.setResources(hue.TypeDevicePower, []hue.Resource{
		{ID: "power-2", Owner: &hue.ResourceRef{RID: "dev-dial", RType: hue.TypeDevice}, PowerState: &hue.PowerState{BatteryLevel: ptr(55)}},
	})
	fh.setResources(hue.TypeTemperature, []hue.Resource{{ID: "unmapped-temp", Temperature: &hue.Temperature{Temperature: ptr(20.0)}}})

	sink := &recordingSink{}
	b := newLoadedBridge(t, fh, sink)

	if err := b.SyncInitialStates(context.Background()); err != nil {
		t.Fatalf("SyncInitialStates() error = %v", err)
	}

	checks := []struct {
		name, key string
		want      any
	}{
		{"porch", status.KeyMotion, 1},
		{"door", status.KeyContact, 1},
		{"living", status.KeyOn, 1},
		{"living", status.KeyBrightness, 70.0},
		{"dial", status.KeyBattery, 55},
	}
	for _, c := range checks {
		if v, ok := b.cache.Get(c.name, c.key); !ok || v != c.want {
			t.Errorf("%s.%s = %v (%v), want %v", c.name, c.key, v, ok, c.want)
		}
	}
	if len(b.Detected()) != 0 {
		t.Errorf("initial sync recorded detected items: %+v", b.Detected())
	}

	before := len(sink.all())
	if err := b.SyncInitialStates(context.Background()); err != nil {
		t.Fatalf("second SyncInitialStates() error = %v", err)
	}
	if after := len(sink.all()); after != before {
		t.Errorf("resync emitted %d unchanged values", after-before)
	}
}

func TestSyncInitialStatesFailure(t *testing.T) {
	fh := newFakeHue(fixture())
	b := newLoadedBridge(t, fh)
	fh.listErr[hue.TypeContact] = errors.New("boom")

	if err := b.SyncInitialStates(context.Background()); err == nil {
		t.Fatal("SyncInitialStates() succeeded with a failing list")
	}
}

func TestRebuildSnapshotCapabilities(t *testing.T) {
	b := newLoadedBridge(t, newFakeHue(fixture()))

	caps := b.Capabilities()
	kitchen, ok := caps.Lookup("light-1")
	if !ok || !kitchen.SupportsColor || kitchen.MirekMax != 454 {
		t.Errorf("light-1 caps = %+v", kitchen)
	}
	desk, ok := caps.Lookup("light-2")
	if !ok || desk.SupportsColor || desk.MirekMin != 200 {
		t.Errorf("light-2 caps = %+v", desk)
	}

	if device, ok := b.Table().DeviceOf("lux-1"); !ok || device != "dev-porch" {
		t.Errorf("DeviceOf(lux-1) = %q, %v", device, ok)
	}
}

func TestRebuildSnapshotNotConfigured(t *testing.T) {
	b := New(Options{})
	if err := b.RebuildSnapshot(context.Background()); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("RebuildSnapshot() error = %v, want ErrNotConfigured", err)
	}
}
