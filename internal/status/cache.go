package status

import (
	"sync"

	"github.com/nerrad567/loxhue-core/internal/mapping"
)

// Attribute keys as they appear on the wire.
const (
	KeyOn          = "on"
	KeyBrightness  = "bri"
	KeyMirek       = "mirek"
	KeyHex         = "hex"
	KeyMotion      = "motion"
	KeyContact     = "contact"
	KeyTemperature = "temp"
	KeyLux         = "lux"
	KeyBattery     = "bat"
	KeyButton      = "button"
	KeyRotary      = "rotary"
)

// Momentary reports whether key describes an event rather than a state.
func Momentary(key string) bool {
	return key == KeyButton || key == KeyRotary
}

// Emission is one value change delivered to sinks.
type Emission struct {
	Entry mapping.Entry
	Key   string
	Value any
}

// Sink receives emissions one at a time, in the order values were stored.
// Emit must not block for long: it holds up every other update.
type Sink interface {
	Emit(e Emission)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Emission)

// Emit calls f(e).
func (f SinkFunc) Emit(e Emission) { f(e) }

// Resolver finds the current mapping entry for a controller name.
type Resolver func(name string) (mapping.Entry, bool)

// Cache holds name -> key -> value.
//
// Thread Safety: All methods are safe for concurrent use. Updates are
// serialised through emitMu so sinks see changes in store order; readers
// only take mu and are never held up by a slow sink.
type Cache struct {
	resolve Resolver

	emitMu sync.Mutex

	mu     sync.RWMutex
	values map[string]map[string]any

	sinkMu sync.RWMutex
	sinks  []Sink
}

// NewCache creates an empty cache. resolve may be nil, in which case
// values are stored but never emitted.
func NewCache(resolve Resolver, sinks ...Sink) *Cache {
	return &Cache{
		resolve: resolve,
		values:  make(map[string]map[string]any),
		sinks:   sinks,
	}
}

// AddSink registers another sink.
func (c *Cache) AddSink(s Sink) {
	c.sinkMu.Lock()
	c.sinks = append(c.sinks, s)
	c.sinkMu.Unlock()
}

// Update stores value and notifies sinks if it changed or key is
// momentary. Values for names without a mapping entry are stored but not
// emitted. It returns whether the value was emitted.
func (c *Cache) Update(name, key string, value any) bool {
	value = Normalize(value)

	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	c.mu.Lock()
	attrs, ok := c.values[name]
	if !ok {
		attrs = make(map[string]any)
		c.values[name] = attrs
	}
	if prev, seen := attrs[key]; seen && !Momentary(key) && prev == value {
		c.mu.Unlock()
		return false
	}
	attrs[key] = value
	c.mu.Unlock()

	if c.resolve == nil {
		return false
	}
	entry, ok := c.resolve(name)
	if !ok {
		return false
	}

	e := Emission{Entry: entry, Key: key, Value: value}

	c.sinkMu.RLock()
	sinks := c.sinks
	c.sinkMu.RUnlock()

	for _, s := range sinks {
		s.Emit(e)
	}
	return true
}

// Get returns one cached value.
func (c *Cache) Get(name, key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[name][key]
	return v, ok
}

// Snapshot returns a deep copy of the cache.
func (c *Cache) Snapshot() map[string]map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]map[string]any, len(c.values))
	for name, attrs := range c.values {
		cp := make(map[string]any, len(attrs))
		for k, v := range attrs {
			cp[k] = v
		}
		out[name] = cp
	}
	return out
}

// Len returns the number of names with at least one value.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.values)
}
