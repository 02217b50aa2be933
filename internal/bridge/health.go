package bridge

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/nerrad567/loxhue-core/internal/infrastructure/logging"
)

// HealthStatus is the overall state reported on the health topic.
type HealthStatus string

// Health states.
const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthStarting HealthStatus = "starting"
	HealthStopping HealthStatus = "stopping"
)

// DefaultHealthInterval is how often health is published.
const DefaultHealthInterval = 30 * time.Second

// HealthMessage is published retained on <prefix>/system/health.
type HealthMessage struct {
	Status        HealthStatus `json:"status"`
	Timestamp     time.Time    `json:"timestamp"`
	Version       string       `json:"version"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	Stats         Stats        `json:"stats"`
	Reason        string       `json:"reason,omitempty"`
}

// HealthPublisher publishes health messages. *mqtt.Client satisfies it.
type HealthPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// HealthConfig wires a HealthReporter.
type HealthConfig struct {
	// Topic is the retained health topic.
	Topic string

	// Version is reported in every message.
	Version string

	// Interval between reports. Zero means 30s.
	Interval time.Duration

	// Publisher is optional; without it reports are only recorded.
	Publisher HealthPublisher

	// Record receives every report, e.g. to write a history sample. Optional.
	Record func(HealthMessage)

	// Logger is optional.
	Logger Logger
}

// HealthReporter periodically publishes the engine's health.
type HealthReporter struct {
	bridge    *Bridge
	topic     string
	version   string
	interval  time.Duration
	publisher HealthPublisher
	record    func(HealthMessage)
	logger    Logger
	startTime time.Time

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewHealthReporter creates a reporter for b. Call Start to begin.
func NewHealthReporter(b *Bridge, cfg HealthConfig) *HealthReporter {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultHealthInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = nopLogger{}
	}

	return &HealthReporter{
		bridge:    b,
		topic:     cfg.Topic,
		version:   cfg.Version,
		interval:  interval,
		publisher: cfg.Publisher,
		record:    cfg.Record,
		logger:    withCategory(logger, logging.CategorySystem),
		startTime: time.Now(),
		done:      make(chan struct{}),
	}
}

// Start begins periodic reporting until ctx is cancelled or Stop is called.
func (h *HealthReporter) Start(ctx context.Context) {
	h.wg.Add(1)
	go h.reportLoop(ctx)
}

// Stop ends reporting and publishes a final "stopping" message.
// Safe to call multiple times.
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()

		//nolint:errcheck // best-effort during shutdown
		h.publish(h.message(HealthStopping, "shutting down"))
	})
}

// Current evaluates the health of the engine now.
func (h *HealthReporter) Current() HealthMessage {
	status, reason := h.determineStatus()
	return h.message(status, reason)
}

// PublishNow publishes and records the current health immediately.
func (h *HealthReporter) PublishNow() error {
	msg := h.Current()
	if h.record != nil {
		h.record(msg)
	}
	return h.publish(msg)
}

func (h *HealthReporter) reportLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	if err := h.PublishNow(); err != nil {
		h.logger.Error("failed to publish initial health", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			if err := h.PublishNow(); err != nil {
				h.logger.Error("failed to publish health", "error", err)
			}
		}
	}
}

func (h *HealthReporter) determineStatus() (HealthStatus, string) {
	if !h.bridge.Configured() {
		return HealthDegraded, "hue bridge not configured"
	}
	if state := h.bridge.Stats().Stream; state != StateStreaming.String() {
		return HealthDegraded, "event stream " + state
	}
	return HealthHealthy, ""
}

func (h *HealthReporter) message(status HealthStatus, reason string) HealthMessage {
	return HealthMessage{
		Status:        status,
		Timestamp:     time.Now().UTC(),
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Stats:         h.bridge.Stats(),
		Reason:        reason,
	}
}

func (h *HealthReporter) publish(msg HealthMessage) error {
	if h.publisher == nil || h.topic == "" || !h.publisher.IsConnected() {
		return nil
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return h.publisher.Publish(h.topic, payload, 1, true)
}
