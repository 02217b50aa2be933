package api

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/loxhue-core/internal/infrastructure/config"
	"github.com/nerrad567/loxhue-core/internal/infrastructure/logging"
	"github.com/nerrad567/loxhue-core/internal/status"
)

// Broadcast channels.
const (
	// ChannelStatus carries every status change as a StatusEvent.
	ChannelStatus = "status.changed"

	// ChannelSnapshot is sent once to a client right after it subscribes
	// to ChannelStatus, carrying the cached values it asked for.
	ChannelSnapshot = "status.snapshot"

	// ChannelHealth carries periodic health reports.
	ChannelHealth = "system.health"
)

// StatusEvent is the payload of a ChannelStatus event.
type StatusEvent struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// SnapshotFunc returns the status cache: name -> key -> value.
type SnapshotFunc func() map[string]map[string]any

// Hub fans status changes and health reports out to WebSocket clients.
// It is a status.Sink.
type Hub struct {
	cfg      config.WebSocketConfig
	logger   *logging.Logger
	snapshot SnapshotFunc

	mu      sync.RWMutex
	clients map[*wsClient]struct{}

	dropped atomic.Int64
}

// NewHub creates a hub with no clients.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger.Category(logging.CategorySystem),
		clients: make(map[*wsClient]struct{}),
	}
}

// SetSnapshot sets the source used to greet new status subscribers.
// Without one, subscribers only see changes.
func (h *Hub) SetSnapshot(fn SnapshotFunc) {
	h.mu.Lock()
	h.snapshot = fn
	h.mu.Unlock()
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*wsClient]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.shutdown()
	}
}

// Emit relays a status change to ChannelStatus subscribers whose name
// filter admits the entry.
func (h *Hub) Emit(e status.Emission) {
	h.publish(ChannelStatus, e.Entry.Name, StatusEvent{
		Name:  e.Entry.Name,
		Type:  string(e.Entry.Type),
		Key:   e.Key,
		Value: e.Value,
	})
}

// Broadcast sends payload to every client subscribed to channel.
func (h *Hub) Broadcast(channel string, payload any) {
	h.publish(channel, "", payload)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many messages were discarded for slow clients.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

func (h *Hub) publish(channel, name string, payload any) {
	data, err := encodeEvent(channel, payload)
	if err != nil {
		h.logger.Error("failed to encode websocket event", "channel", channel, "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		if c.wants(channel, name) {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if !c.enqueue(data) {
			h.dropped.Add(1)
		}
	}
}

func (h *Hub) register(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", n)
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	c.shutdown()
	h.logger.Debug("websocket client disconnected", "clients", n)
}

// snapshotFor returns the cached values for names, or everything when
// names is empty.
func (h *Hub) snapshotFor(names map[string]struct{}) map[string]map[string]any {
	h.mu.RLock()
	fn := h.snapshot
	h.mu.RUnlock()
	if fn == nil {
		return map[string]map[string]any{}
	}

	all := fn()
	if len(names) == 0 {
		return all
	}
	out := make(map[string]map[string]any, len(names))
	for name := range names {
		if values, ok := all[name]; ok {
			out[name] = values
		}
	}
	return out
}

func encodeEvent(channel string, payload any) ([]byte, error) {
	return json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
}
