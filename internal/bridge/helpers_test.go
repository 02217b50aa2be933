package bridge

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/loxhue-core/internal/hue"
	"github.com/nerrad567/loxhue-core/internal/infrastructure/config"
	"github.com/nerrad567/loxhue-core/internal/mapping"
	"github.com/nerrad567/loxhue-core/internal/status"
)

// ===== Fake Hue bridge =====

type sentUpdate struct {
	rtype  hue.ResourceType
	id     string
	update hue.LightUpdate
}

type fakeHue struct {
	mu        sync.Mutex
	resources map[hue.ResourceType][]hue.Resource
	listErr   map[hue.ResourceType]error
	updates   []sentUpdate
	opens     int
}

func newFakeHue(resources map[hue.ResourceType][]hue.Resource) *fakeHue {
	return &fakeHue{resources: resources, listErr: map[hue.ResourceType]error{}}
}

func (f *fakeHue) UpdateLight(_ context.Context, rtype hue.ResourceType, id string, update hue.LightUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, sentUpdate{rtype: rtype, id: id, update: update})
	return nil
}

func (f *fakeHue) List(_ context.Context, rtype hue.ResourceType) ([]hue.Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.listErr[rtype]; err != nil {
		return nil, err
	}
	return f.resources[rtype], nil
}

// OpenEventStream returns a stream that stays silent until ctx ends.
func (f *fakeHue) OpenEventStream(ctx context.Context) (io.ReadCloser, error) {
	f.mu.Lock()
	f.opens++
	f.mu.Unlock()
	return silentStream(ctx), nil
}

func (f *fakeHue) sent() []sentUpdate {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentUpdate(nil), f.updates...)
}

func (f *fakeHue) setResources(rtype hue.ResourceType, res []hue.Resource) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resources[rtype] = res
}

// silentStream blocks reads until ctx is cancelled or it is closed.
func silentStream(ctx context.Context) io.ReadCloser {
	r, _ := io.Pipe()
	go func() {
		<-ctx.Done()
		_ = r.Close()
	}()
	return r
}

// ===== Fixtures =====

func ref(id string, rtype hue.ResourceType) hue.ResourceRef {
	return hue.ResourceRef{RID: id, RType: rtype}
}

func named(name string) *hue.Metadata {
	return &hue.Metadata{Name: name}
}

func fixture() map[hue.ResourceType][]hue.Resource {
	return map[hue.ResourceType][]hue.Resource{
		hue.TypeDevice: {
			{ID: "dev-kitchen", Metadata: named("Kitchen ceiling"), Services: []hue.ResourceRef{ref("light-1", hue.TypeLight)}},
			{ID: "dev-porch", Metadata: named("Porch sensor"), Services: []hue.ResourceRef{
				ref("motion-1", hue.TypeMotion),
				ref("temp-1", hue.TypeTemperature),
				ref("lux-1", hue.TypeLightLevel),
				ref("power-1", hue.TypeDevicePower),
			}},
			{ID: "dev-dial", Metadata: named("Hall dial"), Services: []hue.ResourceRef{
				ref("btn-1", hue.TypeButton),
				ref("btn-2", hue.TypeButton),
				ref("rot-1", hue.TypeRelativeRotary),
				ref("power-2", hue.TypeDevicePower),
			}},
			{ID: "dev-door", Metadata: named("Front door"), Services: []hue.ResourceRef{ref("contact-1", hue.TypeContact)}},
		},
		hue.TypeLight: {
			{ID: "light-1", Metadata: named("Kitchen ceiling"), Color: &hue.Color{},
				ColorTemperature: &hue.ColorTemperature{MirekSchema: &hue.MirekSchema{MirekMinimum: 153, MirekMaximum: 454}}},
			{ID: "light-2", Metadata: named("Desk lamp"),
				ColorTemperature: &hue.ColorTemperature{MirekSchema: &hue.MirekSchema{MirekMinimum: 200, MirekMaximum: 454}}},
		},
		hue.TypeRoom: {
			{ID: "room-1", Metadata: named("Living room"), Services: []hue.ResourceRef{ref("grouped-1", hue.TypeGroupedLight)}},
		},
		hue.TypeZone: {
			{ID: "zone-1", Metadata: named("Downstairs"), Services: []hue.ResourceRef{ref("grouped-2", hue.TypeGroupedLight)}},
		},
	}
}

func fixtureEntries() []mapping.Entry {
	return []mapping.Entry{
		{Name: "kitchen", ResourceID: "light-1", Type: mapping.KindLight},
		{Name: "desk", ResourceID: "light-2", Type: mapping.KindLight},
		{Name: "living", ResourceID: "grouped-1", Type: mapping.KindGroup},
		{Name: "porch", ResourceID: "motion-1", Type: mapping.KindSensor},
		{Name: "door", ResourceID: "contact-1", Type: mapping.KindSensor},
		{Name: "dial", ResourceID: "btn-1", Type: mapping.KindButton},
		{Name: "everything", ResourceID: mapping.AllResourceID, Type: mapping.KindLight},
	}
}

// ===== Mapping store =====

type memStore struct {
	mu      sync.Mutex
	entries []mapping.Entry
	saves   int
	err     error
}

func (m *memStore) List(context.Context) ([]mapping.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mapping.Entry(nil), m.entries...), m.err
}

func (m *memStore) ReplaceAll(_ context.Context, entries []mapping.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.entries = append([]mapping.Entry(nil), entries...)
	m.saves++
	return nil
}

// ===== Sinks and loggers =====

type recordingSink struct {
	mu        sync.Mutex
	emissions []status.Emission
}

func (r *recordingSink) Emit(e status.Emission) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emissions = append(r.emissions, e)
}

func (r *recordingSink) all() []status.Emission {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]status.Emission(nil), r.emissions...)
}

func (r *recordingSink) count(name, key string) int {
	n := 0
	for _, e := range r.all() {
		if e.Entry.Name == name && e.Key == key {
			n++
		}
	}
	return n
}

type recordingLogger struct {
	mu      sync.Mutex
	entries []string
}

func (l *recordingLogger) record(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, level+": "+msg)
}

func (l *recordingLogger) Debug(msg string, _ ...any) { l.record("DEBUG", msg) }
func (l *recordingLogger) Info(msg string, _ ...any)  { l.record("INFO", msg) }
func (l *recordingLogger) Warn(msg string, _ ...any)  { l.record("WARN", msg) }
func (l *recordingLogger) Error(msg string, _ ...any) { l.record("ERROR", msg) }

func (l *recordingLogger) has(entry string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e == entry {
			return true
		}
	}
	return false
}

// ===== Helpers =====

func testSync() config.SyncConfig {
	return config.SyncConfig{TransitionMs: 400, ThrottleMs: 1, SequenceSpacingMs: 1}
}

// newLoadedBridge builds an engine with the fixture mapping and snapshot
// loaded but nothing started.
func newLoadedBridge(t *testing.T, fh *fakeHue, sinks ...status.Sink) *Bridge {
	t.Helper()

	b := New(Options{
		Hue:   fh,
		Store: &memStore{entries: fixtureEntries()},
		Sync:  testSync(),
		Sinks: sinks,
	})
	if err := b.loadMapping(context.Background()); err != nil {
		t.Fatalf("loadMapping() error = %v", err)
	}
	if err := b.RebuildSnapshot(context.Background()); err != nil {
		t.Fatalf("RebuildSnapshot() error = %v", err)
	}
	return b
}

// newRunningBridge starts an engine and stops it at cleanup.
func newRunningBridge(t *testing.T, fh *fakeHue, sinks ...status.Sink) *Bridge {
	t.Helper()

	b := newLoadedBridge(t, fh, sinks...)
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(b.Stop)
	return b
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func ptr[T any](v T) *T {
	return &v
}
