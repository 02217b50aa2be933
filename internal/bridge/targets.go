package bridge

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/loxhue-core/internal/hue"
	"github.com/nerrad567/loxhue-core/internal/mapping"
)

// Target is a Hue resource that can be mapped to a controller name.
type Target struct {
	ResourceID   string              `json:"uuid"`
	Name         string              `json:"name"`
	Type         mapping.Kind        `json:"type"`
	Capabilities *mapping.Capability `json:"capabilities,omitempty"`
}

// Targets lists everything mappable on the bridge, sorted by name: lights,
// rooms and zones (through their grouped_light), motion and contact
// sensors, buttons and dials. The snapshot is rebuilt first so light
// capabilities are current.
func (b *Bridge) Targets(ctx context.Context) ([]Target, error) {
	if b.hue == nil {
		return nil, ErrNotConfigured
	}

	if err := b.RebuildSnapshot(ctx); err != nil {
		return nil, err
	}

	types := []hue.ResourceType{hue.TypeLight, hue.TypeRoom, hue.TypeZone, hue.TypeDevice}
	results := make([][]hue.Resource, len(types))

	g, gctx := errgroup.WithContext(ctx)
	for i, rtype := range types {
		g.Go(func() error {
			res, err := b.hue.List(gctx, rtype)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("listing targets: %w", err)
	}

	caps := b.Capabilities()
	lights, rooms, zones, devices := results[0], results[1], results[2], results[3]

	var out []Target
	for _, l := range lights {
		t := Target{ResourceID: l.ID, Name: l.Name(), Type: mapping.KindLight}
		if c, ok := caps.Lookup(l.ID); ok {
			t.Capabilities = &c
		}
		out = append(out, t)
	}

	for _, group := range append(rooms, zones...) {
		if s, ok := group.ServiceOf(hue.TypeGroupedLight); ok {
			out = append(out, Target{ResourceID: s.RID, Name: group.Name(), Type: mapping.KindGroup})
		}
	}

	for _, d := range devices {
		out = append(out, deviceTargets(d)...)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

// deviceTargets lists the sensor, button and dial services of a device.
func deviceTargets(d hue.Resource) []Target {
	var out []Target
	name := d.Name()

	if s, ok := d.ServiceOf(hue.TypeMotion); ok {
		out = append(out, Target{ResourceID: s.RID, Name: name, Type: mapping.KindSensor})
	}
	if s, ok := d.ServiceOf(hue.TypeContact); ok {
		out = append(out, Target{ResourceID: s.RID, Name: name, Type: mapping.KindSensor})
	}

	var buttons []hue.ResourceRef
	for _, s := range d.Services {
		if s.RType == hue.TypeButton {
			buttons = append(buttons, s)
		}
	}
	for i, s := range buttons {
		label := name
		if len(buttons) > 1 {
			label = fmt.Sprintf("%s (Button %d)", name, i+1)
		}
		out = append(out, Target{ResourceID: s.RID, Name: label, Type: mapping.KindButton})
	}

	if s, ok := d.ServiceOf(hue.TypeRelativeRotary); ok {
		out = append(out, Target{ResourceID: s.RID, Name: name + " (Dial)", Type: mapping.KindButton})
	}
	return out
}
