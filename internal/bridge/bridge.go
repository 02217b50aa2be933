package bridge

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/loxhue-core/internal/command"
	"github.com/nerrad567/loxhue-core/internal/dispatch"
	"github.com/nerrad567/loxhue-core/internal/hue"
	"github.com/nerrad567/loxhue-core/internal/infrastructure/config"
	"github.com/nerrad567/loxhue-core/internal/infrastructure/logging"
	"github.com/nerrad567/loxhue-core/internal/mapping"
	"github.com/nerrad567/loxhue-core/internal/status"
)

// storeTimeout bounds mapping reads and writes.
const storeTimeout = 10 * time.Second

// HueAPI is the subset of the Hue client the engine uses.
// *hue.Client satisfies it.
type HueAPI interface {
	UpdateLight(ctx context.Context, rtype hue.ResourceType, id string, update hue.LightUpdate) error
	List(ctx context.Context, rtype hue.ResourceType) ([]hue.Resource, error)
	OpenEventStream(ctx context.Context) (io.ReadCloser, error)
}

// MappingStore persists the mapping. *mapping.SQLiteRepository satisfies it.
type MappingStore interface {
	List(ctx context.Context) ([]mapping.Entry, error)
	ReplaceAll(ctx context.Context, entries []mapping.Entry) error
}

// Options holds everything needed to build a Bridge.
type Options struct {
	// Hue is the bridge client. Nil leaves the engine unconfigured: the
	// status cache and mapping work, commands answer ErrNotConfigured.
	Hue HueAPI

	// Store persists the mapping. Optional.
	Store MappingStore

	// Sync holds transition and pacing settings.
	Sync config.SyncConfig

	// Sinks receive every status change of a mapped name.
	Sinks []status.Sink

	// Logger is optional.
	Logger Logger

	// DetectedLimit caps the detected list. Zero means 10.
	DetectedLimit int
}

// Bridge is the engine context.
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	hue    HueAPI
	store  MappingStore
	sync   config.SyncConfig
	logger Logger

	// tableMu serialises table writers; readers use the atomic pointer.
	tableMu sync.Mutex
	table   atomic.Pointer[mapping.Table]
	caps    atomic.Pointer[mapping.Capabilities]

	cache      *status.Cache
	detected   *mapping.Detected
	decoder    *command.Decoder
	coalescer  *dispatch.Coalescer
	supervisor *Supervisor

	ctx      context.Context //nolint:containedctx // engine lifetime, used by async sequences
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New builds an engine. Nothing runs until Start.
func New(opts Options) *Bridge {
	logger := opts.Logger
	if logger == nil {
		logger = nopLogger{}
	}

	b := &Bridge{
		hue:      opts.Hue,
		store:    opts.Store,
		sync:     opts.Sync,
		logger:   logger,
		detected: mapping.NewDetected(opts.DetectedLimit),
	}
	b.table.Store(mapping.NewTable(nil, nil))
	b.caps.Store(&mapping.Capabilities{})

	b.cache = status.NewCache(b.lookupName, opts.Sinks...)
	b.decoder = command.NewDecoder(capabilityView{b})
	b.coalescer = dispatch.NewCoalescer(dispatch.Config{
		Sender:     opts.Hue,
		Transition: opts.Sync.Transition(),
		LightDelay: opts.Sync.Throttle(),
		OnSuccess:  b.echo,
		Logger:     withCategory(logger, logging.CategoryLight),
	})

	if opts.Hue != nil {
		b.supervisor = NewSupervisor(SupervisorConfig{
			Open:    opts.Hue.OpenEventStream,
			Prepare: b.prepareStream,
			Handle:  b.handleEvents,
			Logger:  withCategory(logger, logging.CategorySystem),
		})
	}
	return b
}

// Start loads the mapping, starts the dispatch workers and, when the Hue
// bridge is configured, the event stream supervisor.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.loadMapping(ctx); err != nil {
		return err
	}

	b.ctx, b.cancel = context.WithCancel(ctx)
	b.coalescer.Start(b.ctx)

	if b.supervisor == nil {
		b.logger.Warn("hue bridge not configured, event stream disabled", logging.CategoryKey, logging.CategorySystem)
		return nil
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.supervisor.Run(b.ctx)
	}()
	return nil
}

// Stop cancels the stream, sequences and dispatch workers and waits for
// them to exit. Safe to call multiple times.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		if b.cancel != nil {
			b.cancel()
		}
		b.wg.Wait()
		b.coalescer.Stop()
	})
}

func (b *Bridge) loadMapping(ctx context.Context) error {
	if b.store == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	entries, err := b.store.List(ctx)
	if err != nil {
		return fmt.Errorf("loading mapping: %w", err)
	}
	b.tableMu.Lock()
	b.table.Store(b.Table().WithEntries(entries))
	b.tableMu.Unlock()

	b.logger.Info("mapping loaded", "entries", len(entries), logging.CategoryKey, logging.CategorySystem)
	return nil
}

// Configured reports whether a Hue bridge client is present.
func (b *Bridge) Configured() bool {
	return b.hue != nil
}

// Table returns the current mapping snapshot.
func (b *Bridge) Table() *mapping.Table {
	return b.table.Load()
}

// Mapping returns the mapping entries in order.
func (b *Bridge) Mapping() []mapping.Entry {
	return b.Table().Entries()
}

// Capabilities returns the current capability snapshot. Do not modify it.
func (b *Bridge) Capabilities() mapping.Capabilities {
	return *b.caps.Load()
}

// Cache exposes the status cache, mainly for registering late sinks.
func (b *Bridge) Cache() *status.Cache {
	return b.cache
}

// Status returns a copy of every cached value.
func (b *Bridge) Status() map[string]map[string]any {
	return b.cache.Snapshot()
}

// Detected returns unmapped commands and resources, newest first.
func (b *Bridge) Detected() []mapping.DetectedItem {
	return b.detected.List()
}

// SaveMapping validates, persists and activates a new mapping. Detected
// items the new mapping covers are dropped.
func (b *Bridge) SaveMapping(ctx context.Context, entries []mapping.Entry) ([]mapping.Entry, error) {
	prepared, err := mapping.Prepare(entries)
	if err != nil {
		return nil, err
	}

	if b.store != nil {
		storeCtx, cancel := context.WithTimeout(ctx, storeTimeout)
		defer cancel()
		if err := b.store.ReplaceAll(storeCtx, prepared); err != nil {
			return nil, fmt.Errorf("saving mapping: %w", err)
		}
	}

	b.tableMu.Lock()
	table := b.Table().WithEntries(prepared)
	b.table.Store(table)
	b.tableMu.Unlock()

	b.detected.Prune(table)

	b.logger.Info("mapping saved", "entries", len(prepared), logging.CategoryKey, logging.CategorySystem)
	return prepared, nil
}

// Stats is a point-in-time view of the engine for health reporting.
type Stats struct {
	Stream      string         `json:"stream"`
	Restarts    int64          `json:"restarts"`
	InFlight    int            `json:"in_flight"`
	QueueDepths map[string]int `json:"queue_depths"`
	CacheSize   int            `json:"cache_size"`
	Mappings    int            `json:"mappings"`
	Configured  bool           `json:"configured"`
}

// Stats collects the current engine counters.
func (b *Bridge) Stats() Stats {
	s := Stats{
		Stream:      StateIdle.String(),
		InFlight:    b.coalescer.InFlight(),
		QueueDepths: b.coalescer.QueueDepths(),
		CacheSize:   b.cache.Len(),
		Mappings:    b.Table().Len(),
		Configured:  b.Configured(),
	}
	if b.supervisor != nil {
		s.Stream = b.supervisor.State().String()
		s.Restarts = b.supervisor.Restarts()
	}
	return s
}

// lookupName resolves cache names against the live table.
func (b *Bridge) lookupName(name string) (mapping.Entry, bool) {
	return b.Table().ByName(name)
}

// echo mirrors an accepted command into the cache so the controller sees
// the new state before the event stream confirms it.
func (b *Bridge) echo(req dispatch.Request) {
	on := req.Update.On != nil && req.Update.On.On
	b.cache.Update(req.Name, status.KeyOn, on)
	if req.Update.Dimming != nil {
		b.cache.Update(req.Name, status.KeyBrightness, req.Update.Dimming.Brightness)
	}
}

// capabilityView lets the decoder read the live capability snapshot.
type capabilityView struct{ b *Bridge }

func (v capabilityView) Lookup(resourceID string) (mapping.Capability, bool) {
	return v.b.Capabilities().Lookup(resourceID)
}
