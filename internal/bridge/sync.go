package bridge

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/loxhue-core/internal/hue"
	"github.com/nerrad567/loxhue-core/internal/infrastructure/logging"
	"github.com/nerrad567/loxhue-core/internal/mapping"
	"github.com/nerrad567/loxhue-core/internal/status"
)

// syncTimeout bounds the snapshot rebuild and the initial state sync.
const syncTimeout = 30 * time.Second

// syncTypes are read before the stream opens so the cache starts current.
var syncTypes = []hue.ResourceType{
	hue.TypeLight,
	hue.TypeGroupedLight,
	hue.TypeMotion,
	hue.TypeContact,
	hue.TypeTemperature,
	hue.TypeLightLevel,
	hue.TypeDevicePower,
}

// prepareStream runs before every stream connection. Failures are logged
// and the stream is opened anyway.
func (b *Bridge) prepareStream(ctx context.Context) {
	if err := b.RebuildSnapshot(ctx); err != nil {
		b.logger.Error("snapshot rebuild failed", "error", err, logging.CategoryKey, logging.CategorySystem)
	}
	if err := b.SyncInitialStates(ctx); err != nil {
		b.logger.Warn("initial sync failed", "error", err, logging.CategoryKey, logging.CategorySystem)
	}
}

// RebuildSnapshot reads devices and lights and replaces the service
// ownership index and the capability snapshot.
func (b *Bridge) RebuildSnapshot(ctx context.Context) error {
	if b.hue == nil {
		return ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, syncTimeout)
	defer cancel()

	var devices, lights []hue.Resource
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		devices, err = b.hue.List(gctx, hue.TypeDevice)
		return err
	})
	g.Go(func() error {
		var err error
		lights, err = b.hue.List(gctx, hue.TypeLight)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("rebuilding snapshot: %w", err)
	}

	caps := mapping.CapabilitiesFromLights(lights)
	b.caps.Store(&caps)

	b.tableMu.Lock()
	b.table.Store(b.Table().WithOwners(mapping.ServiceOwners(devices)))
	b.tableMu.Unlock()

	b.logger.Debug("snapshot rebuilt", "devices", len(devices), "lights", len(lights), logging.CategoryKey, logging.CategorySystem)
	return nil
}

// SyncInitialStates reads the current state of every resource type the
// controller cares about and feeds it through the cache, so only values
// that differ from the cache are emitted.
func (b *Bridge) SyncInitialStates(ctx context.Context) error {
	if b.hue == nil {
		return ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, syncTimeout)
	defer cancel()

	results := make([][]hue.Resource, len(syncTypes))
	g, gctx := errgroup.WithContext(ctx)
	for i, rtype := range syncTypes {
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
		return fmt.Errorf("initial sync: %w", err)
	}

	b.logger.Info("loading initial state", logging.CategoryKey, logging.CategorySystem)
	table := b.Table()
	for i, rtype := range syncTypes {
		for _, res := range results[i] {
			if rtype == hue.TypeDevicePower {
				b.applyBattery(table, res)
				continue
			}
			b.applyResource(res, false)
		}
	}
	b.logger.Info("initial sync complete", logging.CategoryKey, logging.CategorySystem)
	return nil
}

// applyBattery copies a device_power reading to every entry on the device.
func (b *Bridge) applyBattery(table *mapping.Table, res hue.Resource) {
	if res.Owner == nil || res.PowerState == nil || res.PowerState.BatteryLevel == nil {
		return
	}
	for _, e := range table.OnDevice(res.Owner.RID) {
		b.cache.Update(e.Name, status.KeyBattery, *res.PowerState.BatteryLevel)
	}
}
