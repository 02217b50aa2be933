package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nerrad567/loxhue-core/internal/hue"
)

// Defaults for settings that have no config key.
const (
	DefaultGroupDelay = 1100 * time.Millisecond

	DefaultTransition = 400 * time.Millisecond
)

// Sender performs a single state change on the bridge.
// *hue.Client satisfies it.
type Sender interface {
	UpdateLight(ctx context.Context, rtype hue.ResourceType, id string, update hue.LightUpdate) error
}

// Logger is the logging interface used by the dispatcher.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Request is a state change for one light or group.
type Request struct {
	// ResourceID is the light or grouped_light id.
	ResourceID string

	// Category selects the queue: hue.TypeLight or hue.TypeGroupedLight.
	Category hue.ResourceType

	// Name is the controller name, used for logs and the success callback.
	Name string

	// Update is the decoded state change without dynamics.
	Update hue.LightUpdate

	// Transition overrides the configured transition when set.
	Transition *time.Duration
}

// Config holds the coalescer settings.
type Config struct {
	// Sender performs the requests.
	Sender Sender

	// Transition is the default fade applied to updates. Zero disables it.
	Transition time.Duration

	// LightDelay is the pause after each light request. Zero sends
	// back to back.
	LightDelay time.Duration

	// GroupDelay is the pause after each group request. Zero means 1100ms.
	GroupDelay time.Duration

	// OnSuccess is called after the bridge accepted a request.
	OnSuccess func(Request)

	// Logger receives send results. Optional.
	Logger Logger
}

// Coalescer keeps at most one request per resource outstanding and routes
// requests through the per-category queues.
//
// Thread Safety: All methods are safe for concurrent use.
type Coalescer struct {
	sender     Sender
	transition time.Duration
	onSuccess  func(Request)
	logger     Logger

	queues map[hue.ResourceType]*Queue

	mu    sync.Mutex
	slots map[string]slot
	ctx   context.Context //nolint:containedctx // run context shared by drain loops

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewCoalescer creates a coalescer. Call Start before submitting.
func NewCoalescer(cfg Config) *Coalescer {
	lightDelay := max(cfg.LightDelay, 0)
	groupDelay := cfg.GroupDelay
	if groupDelay <= 0 {
		groupDelay = DefaultGroupDelay
	}

	return &Coalescer{
		sender:     cfg.Sender,
		transition: cfg.Transition,
		onSuccess:  cfg.OnSuccess,
		logger:     cfg.Logger,
		queues: map[hue.ResourceType]*Queue{
			hue.TypeLight:        NewQueue(string(hue.TypeLight), lightDelay),
			hue.TypeGroupedLight: NewQueue(string(hue.TypeGroupedLight), groupDelay),
		},
		slots: make(map[string]slot),
	}
}

// Start launches one worker per queue. The workers stop when ctx is
// cancelled or Stop is called.
func (c *Coalescer) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	c.ctx = runCtx
	c.cancel = cancel
	c.mu.Unlock()

	for _, q := range c.queues {
		c.wg.Add(1)
		go func(q *Queue) {
			defer c.wg.Done()
			q.Run(runCtx)
		}(q)
	}
}

// Stop cancels pending work and waits for workers and drain loops to exit.
// Safe to call multiple times.
func (c *Coalescer) Stop() {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		cancel := c.cancel
		c.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		c.wg.Wait()
	})
}

// Submit hands a request to the resource's slot. If nothing is in flight
// for the resource a drain loop starts; otherwise the request replaces any
// pending one and is sent once the current request resolves.
//
// Returns:
//   - error: ctx.Err() if ctx is done, ErrNotRunning outside Start/Stop
func (c *Coalescer) Submit(ctx context.Context, req Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	req = c.withTransition(req)

	c.mu.Lock()
	if c.ctx == nil || c.ctx.Err() != nil {
		c.mu.Unlock()
		return ErrNotRunning
	}

	next, start := c.slots[req.ResourceID].submit(req)
	c.slots[req.ResourceID] = next
	var done <-chan struct{}
	if start {
		// Enqueue while holding mu so tasks reach a category queue in
		// submission order.
		done = c.enqueue(req)
		c.wg.Add(1)
	}
	runCtx := c.ctx
	c.mu.Unlock()

	if start {
		go c.drain(runCtx, req.ResourceID, done)
	} else {
		c.debug("command coalesced", "name", req.Name, "resource", req.ResourceID)
	}
	return nil
}

// InFlight returns how many resources currently have a request outstanding.
func (c *Coalescer) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.slots)
}

// QueueDepths returns the number of waiting tasks per category.
func (c *Coalescer) QueueDepths() map[string]int {
	depths := make(map[string]int, len(c.queues))
	for rtype, q := range c.queues {
		depths[string(rtype)] = q.Len()
	}
	return depths
}

// drain waits for the resource's in-flight request and then sends every
// successor left in the slot, one at a time.
func (c *Coalescer) drain(ctx context.Context, resourceID string, done <-chan struct{}) {
	defer c.wg.Done()

	for done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			c.mu.Lock()
			delete(c.slots, resourceID)
			c.mu.Unlock()
			return
		}

		c.mu.Lock()
		next, send := c.slots[resourceID].resolve()
		if next.state == slotIdle {
			delete(c.slots, resourceID)
		} else {
			c.slots[resourceID] = next
		}
		done = nil
		if send != nil {
			done = c.enqueue(*send)
		}
		c.mu.Unlock()
	}
}

// enqueue adds req to its category queue. The returned channel is closed
// once the request has been executed.
func (c *Coalescer) enqueue(req Request) <-chan struct{} {
	q, ok := c.queues[req.Category]
	if !ok {
		q = c.queues[hue.TypeLight]
	}

	done := make(chan struct{})
	q.Enqueue(func(taskCtx context.Context) {
		defer close(done)
		c.execute(taskCtx, q.Name(), req)
	})
	return done
}

func (c *Coalescer) execute(ctx context.Context, category string, req Request) {
	c.debug("sending to bridge", "name", req.Name, "resource", req.ResourceID, "queue", category)

	err := c.sender.UpdateLight(ctx, hue.ResourceType(category), req.ResourceID, req.Update)
	switch {
	case err == nil:
		if c.onSuccess != nil {
			c.onSuccess(req)
		}
	case errors.Is(err, hue.ErrRateLimited):
		c.warn("bridge rate limit hit, command dropped", "name", req.Name, "error", err)
	default:
		c.logError("command failed", "name", req.Name, "resource", req.ResourceID, "error", err)
	}
}

// withTransition applies the fade: default, none for a plain switch-on,
// or the explicit override.
func (c *Coalescer) withTransition(req Request) Request {
	d := c.transition
	if req.Update.IsPowerOnOnly() {
		d = 0
	}
	if req.Transition != nil {
		d = *req.Transition
	}
	if ms := d.Milliseconds(); ms > 0 {
		req.Update.Dynamics = &hue.Dynamics{Duration: int(ms)}
	}
	return req
}

func (c *Coalescer) debug(msg string, kv ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, kv...)
	}
}

func (c *Coalescer) warn(msg string, kv ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, kv...)
	}
}

func (c *Coalescer) logError(msg string, kv ...any) {
	if c.logger != nil {
		c.logger.Error(msg, kv...)
	}
}
