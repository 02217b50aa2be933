package bridge

import (
	"context"
	"errors"
	"testing"

	"github.com/nerrad567/loxhue-core/internal/hue"
	"github.com/nerrad567/loxhue-core/internal/mapping"
)

func TestTargets(t *testing.T) {
	b := New(Options{Hue: newFakeHue(fixture())})

	targets, err := b.Targets(context.Background())
	if err != nil {
		t.Fatalf("Targets() error = %v", err)
	}

	want := []struct {
		id   string
		name string
		kind mapping.Kind
	}{
		{"light-2", "Desk lamp", mapping.KindLight},
		{"grouped-2", "Downstairs", mapping.KindGroup},
		{"contact-1", "Front door", mapping.KindSensor},
		{"btn-1", "Hall dial (Button 1)", mapping.KindButton},
		{"btn-2", "Hall dial (Button 2)", mapping.KindButton},
		{"rot-1", "Hall dial (Dial)", mapping.KindButton},
		{"light-1", "Kitchen ceiling", mapping.KindLight},
		{"grouped-1", "Living room", mapping.KindGroup},
		{"motion-1", "Porch sensor", mapping.KindSensor},
	}
	if len(targets) != len(want) {
		t.Fatalf("Targets() returned %d, want %d: %+v", len(targets), len(want), targets)
	}
	for i, w := range want {
		got := targets[i]
		if got.ResourceID != w.id || got.Name != w.name || got.Type != w.kind {
			t.Errorf("target %d = %+v, want %s %q %s", i, got, w.id, w.name, w.kind)
		}
	}

	if targets[0].Capabilities == nil || targets[0].Capabilities.MirekMin != 200 {
		t.Errorf("desk capabilities = %+v", targets[0].Capabilities)
	}
	if targets[1].Capabilities != nil {
		t.Error("group carries capabilities")
	}
}

func TestDeviceTargetsSingleButton(t *testing.T) {
	d := hue.Resource{
		ID:       "dev-switch",
		Metadata: named("Bedside switch"),
		Services: []hue.ResourceRef{ref("btn-9", hue.TypeButton)},
	}

	targets := deviceTargets(d)
	if len(targets) != 1 || targets[0].Name != "Bedside switch" {
		t.Errorf("deviceTargets() = %+v", targets)
	}
}

func TestTargetsErrors(t *testing.T) {
	if _, err := New(Options{}).Targets(context.Background()); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("unconfigured Targets() error = %v", err)
	}

	fh := newFakeHue(fixture())
	fh.listErr[hue.TypeZone] = errors.New("bridge busy")
	if _, err := New(Options{Hue: fh}).Targets(context.Background()); err == nil {
		t.Error("Targets() succeeded with a failing zone list")
	}
}
