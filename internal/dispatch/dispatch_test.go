package dispatch

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/loxhue-core/internal/hue"
)

// ===== Test doubles =====

type sentCall struct {
	rtype  hue.ResourceType
	id     string
	update hue.LightUpdate
}

// fakeSender records calls. When gate is set every call blocks on it.
type fakeSender struct {
	mu      sync.Mutex
	calls   []sentCall
	gate    chan struct{}
	started chan string
	err     error
}

func (f *fakeSender) UpdateLight(_ context.Context, rtype hue.ResourceType, id string, update hue.LightUpdate) error {
	f.mu.Lock()
	f.calls = append(f.calls, sentCall{rtype: rtype, id: id, update: update})
	f.mu.Unlock()

	if f.started != nil {
		f.started <- id
	}
	if f.gate != nil {
		<-f.gate
	}
	return f.err
}

func (f *fakeSender) snapshot() []sentCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentCall(nil), f.calls...)
}

type logLine struct {
	level string
	msg   string
}

type recordingLogger struct {
	mu    sync.Mutex
	lines []logLine
}

func (l *recordingLogger) add(level, msg string) {
	l.mu.Lock()
	l.lines = append(l.lines, logLine{level, msg})
	l.mu.Unlock()
}

func (l *recordingLogger) Debug(msg string, _ ...any) { l.add("debug", msg) }
func (l *recordingLogger) Info(msg string, _ ...any)  { l.add("info", msg) }
func (l *recordingLogger) Warn(msg string, _ ...any)  { l.add("warn", msg) }
func (l *recordingLogger) Error(msg string, _ ...any) { l.add("error", msg) }

func (l *recordingLogger) count(level string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, line := range l.lines {
		if line.level == level {
			n++
		}
	}
	return n
}

func brightnessRequest(id string, bri float64) Request {
	upd := hue.PowerOn()
	upd.Dimming = &hue.Dimming{Brightness: bri}
	return Request{ResourceID: id, Category: hue.TypeLight, Name: "kitchen", Update: upd}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// ===== Queue =====

func TestQueueOrderAndSpacing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const delay = 50 * time.Millisecond
	q := NewQueue("light", delay)
	go q.Run(ctx)

	var aEnd, bStart time.Time
	var order []string
	bDone := make(chan struct{})

	q.Enqueue(func(context.Context) {
		order = append(order, "a")
		time.Sleep(10 * time.Millisecond)
		aEnd = time.Now()
	})
	q.Enqueue(func(context.Context) {
		bStart = time.Now()
		order = append(order, "b")
		close(bDone)
	})

	select {
	case <-bDone:
	case <-time.After(2 * time.Second):
		t.Fatal("second task never ran")
	}

	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Errorf("order = %v, want [a b]", order)
	}
	if gap := bStart.Sub(aEnd); gap < delay {
		t.Errorf("gap between tasks = %v, want >= %v", gap, delay)
	}
}

func TestQueueStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	q := NewQueue("light", time.Hour)

	done := make(chan struct{})
	go func() {
		q.Run(ctx)
		close(done)
	}()

	ran := make(chan struct{})
	q.Enqueue(func(context.Context) { close(ran) })
	<-ran

	// Worker is now in its post-task pause.
	q.Enqueue(func(context.Context) { t.Error("task ran after cancel") })
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if q.Len() != 1 {
		t.Errorf("Len() = %d, want 1 discarded task", q.Len())
	}
}

// ===== Slot transitions =====

func TestSlotTransitions(t *testing.T) {
	var s slot

	s, start := s.submit(Request{Name: "first"})
	if !start || s.state != slotBusy || s.pending != nil {
		t.Fatalf("idle submit = %+v start=%v", s, start)
	}

	s, start = s.submit(Request{Name: "second"})
	s, start2 := s.submit(Request{Name: "third"})
	if start || start2 || s.pending == nil || s.pending.Name != "third" {
		t.Fatalf("busy submits = %+v", s)
	}

	s, next := s.resolve()
	if next == nil || next.Name != "third" || s.state != slotBusy || s.pending != nil {
		t.Fatalf("resolve with pending = %+v next=%v", s, next)
	}

	s, next = s.resolve()
	if next != nil || s.state != slotIdle {
		t.Fatalf("resolve without pending = %+v next=%v", s, next)
	}
}

// ===== Coalescer =====

func TestCoalescerBurstSendsFirstAndLast(t *testing.T) {
	sender := &fakeSender{gate: make(chan struct{}), started: make(chan string, 10)}
	c := NewCoalescer(Config{Sender: sender, LightDelay: time.Millisecond})
	c.Start(context.Background())
	defer c.Stop()

	ctx := context.Background()
	if err := c.Submit(ctx, brightnessRequest("l1", 10)); err != nil {
		t.Fatal(err)
	}
	<-sender.started

	for _, bri := range []float64{20, 30, 40, 50} {
		if err := c.Submit(ctx, brightnessRequest("l1", bri)); err != nil {
			t.Fatal(err)
		}
	}
	close(sender.gate)

	waitFor(t, "slot to go idle", func() bool { return c.InFlight() == 0 })

	calls := sender.snapshot()
	if len(calls) != 2 {
		t.Fatalf("sends = %d, want 2", len(calls))
	}
	if got := calls[1].update.Dimming.Brightness; got != 50 {
		t.Errorf("second send brightness = %v, want 50", got)
	}
}

func TestCoalescerIndependentResources(t *testing.T) {
	sender := &fakeSender{}
	c := NewCoalescer(Config{Sender: sender, LightDelay: time.Millisecond, GroupDelay: time.Millisecond})
	c.Start(context.Background())
	defer c.Stop()

	ctx := context.Background()
	_ = c.Submit(ctx, brightnessRequest("l1", 10))
	_ = c.Submit(ctx, brightnessRequest("l2", 20))
	group := brightnessRequest("g1", 30)
	group.Category = hue.TypeGroupedLight
	_ = c.Submit(ctx, group)

	waitFor(t, "three sends", func() bool { return len(sender.snapshot()) == 3 && c.InFlight() == 0 })

	for _, call := range sender.snapshot() {
		if call.id == "g1" && call.rtype != hue.TypeGroupedLight {
			t.Errorf("group sent as %s", call.rtype)
		}
	}
}

func TestCoalescerSuccessCallback(t *testing.T) {
	var mu sync.Mutex
	var got []Request

	c := NewCoalescer(Config{
		Sender:     &fakeSender{},
		LightDelay: time.Millisecond,
		OnSuccess: func(r Request) {
			mu.Lock()
			got = append(got, r)
			mu.Unlock()
		},
	})
	c.Start(context.Background())
	defer c.Stop()

	_ = c.Submit(context.Background(), brightnessRequest("l1", 42))

	waitFor(t, "callback", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	})
	if got[0].Name != "kitchen" || got[0].Update.Dimming.Brightness != 42 {
		t.Errorf("callback request = %+v", got[0])
	}
}

func TestCoalescerRateLimitLogsWarning(t *testing.T) {
	logger := &recordingLogger{}
	called := false

	c := NewCoalescer(Config{
		Sender:     &fakeSender{err: &hue.StatusError{StatusCode: http.StatusTooManyRequests}},
		LightDelay: time.Millisecond,
		Logger:     logger,
		OnSuccess:  func(Request) { called = true },
	})
	c.Start(context.Background())
	defer c.Stop()

	_ = c.Submit(context.Background(), brightnessRequest("l1", 42))

	waitFor(t, "warning", func() bool { return logger.count("warn") == 1 })
	waitFor(t, "slot release", func() bool { return c.InFlight() == 0 })
	if called {
		t.Error("OnSuccess called for failed request")
	}
	if logger.count("error") != 0 {
		t.Error("rate limit logged as error")
	}
}

func TestCoalescerKeepsSubmissionOrderAcrossResources(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e", "f", "g", "h"}

	for trial := 0; trial < 50; trial++ {
		sender := &fakeSender{}
		c := NewCoalescer(Config{Sender: sender})
		c.Start(context.Background())

		for _, id := range ids {
			if err := c.Submit(context.Background(), brightnessRequest(id, 50)); err != nil {
				t.Fatal(err)
			}
		}
		waitFor(t, "all sends", func() bool { return len(sender.snapshot()) == len(ids) && c.InFlight() == 0 })
		c.Stop()

		for i, call := range sender.snapshot() {
			if call.id != ids[i] {
				t.Fatalf("trial %d: send %d = %q, want %q", trial, i, call.id, ids[i])
			}
		}
	}
}

func TestCoalescerZeroLightDelay(t *testing.T) {
	c := NewCoalescer(Config{Sender: &fakeSender{}})
	if got := c.queues[hue.TypeLight].delay; got != 0 {
		t.Errorf("light delay = %v, want 0", got)
	}
	if got := c.queues[hue.TypeGroupedLight].delay; got != DefaultGroupDelay {
		t.Errorf("group delay = %v, want %v", got, DefaultGroupDelay)
	}
}

func TestCoalescerNotRunning(t *testing.T) {
	c := NewCoalescer(Config{Sender: &fakeSender{}})

	if err := c.Submit(context.Background(), brightnessRequest("l1", 1)); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Submit before Start = %v, want ErrNotRunning", err)
	}

	c.Start(context.Background())
	c.Stop()
	c.Stop()

	if err := c.Submit(context.Background(), brightnessRequest("l1", 1)); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Submit after Stop = %v, want ErrNotRunning", err)
	}
}

// ===== Transitions =====

func TestWithTransition(t *testing.T) {
	c := NewCoalescer(Config{Transition: 400 * time.Millisecond})
	zero := time.Duration(0)
	long := time.Second

	tests := []struct {
		name   string
		req    Request
		wantMs int
	}{
		{"default on brightness", brightnessRequest("l", 50), 400},
		{"plain switch on has none", Request{Update: hue.PowerOn()}, 0},
		{"switch off keeps default", Request{Update: hue.PowerOff()}, 400},
		{"forced zero", Request{Update: hue.PowerOff(), Transition: &zero}, 0},
		{"forced on switch", Request{Update: hue.PowerOn(), Transition: &long}, 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.withTransition(tt.req).Update.Dynamics
			switch {
			case tt.wantMs == 0 && got != nil:
				t.Errorf("dynamics = %+v, want none", got)
			case tt.wantMs != 0 && (got == nil || got.Duration != tt.wantMs):
				t.Errorf("dynamics = %+v, want %d", got, tt.wantMs)
			}
		})
	}
}
