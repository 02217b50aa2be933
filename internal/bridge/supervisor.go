package bridge

import (
	"bufio"
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/loxhue-core/internal/hue"
)

// Supervisor timing defaults.
const (
	DefaultWatchdogInterval = 30 * time.Second
	DefaultStaleAfter       = 60 * time.Second

	DefaultWatchdogBackoff = 1 * time.Second
	DefaultClosedBackoff   = 5 * time.Second
	DefaultFailedBackoff   = 10 * time.Second

	// maxLineSize bounds one event stream line. Large "add" frames after a
	// bridge restart can exceed bufio's 64KiB default.
	maxLineSize = 1 << 20
)

// State is the lifecycle state of the event stream.
type State int32

// Stream states.
const (
	StateIdle State = iota
	StateConnecting
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	default:
		return "idle"
	}
}

// Backoff holds the delay before reconnecting, per cause.
type Backoff struct {
	// Watchdog follows a forced restart after silence.
	Watchdog time.Duration
	// Closed follows a stream the bridge ended or broke.
	Closed time.Duration
	// Failed follows a stream that could not be opened.
	Failed time.Duration
}

// SupervisorConfig wires a Supervisor.
type SupervisorConfig struct {
	// Open opens the event stream.
	Open func(ctx context.Context) (io.ReadCloser, error)

	// Prepare runs before every connection attempt (snapshot rebuild and
	// state resync). Optional.
	Prepare func(ctx context.Context)

	// Handle receives every parsed frame.
	Handle func(events []hue.Event)

	// Logger is optional.
	Logger Logger

	// Zero values select the defaults above.
	WatchdogInterval time.Duration
	StaleAfter       time.Duration
	Backoff          Backoff

	// Now is the clock used for frame timestamps. Defaults to time.Now.
	Now func() time.Time
}

// Supervisor keeps exactly one event stream open and restarts it after
// remote closes, transport errors or prolonged silence.
//
// Thread Safety: All methods are safe for concurrent use. Run must be
// called once.
type Supervisor struct {
	open    func(ctx context.Context) (io.ReadCloser, error)
	prepare func(ctx context.Context)
	handle  func(events []hue.Event)
	logger  Logger
	now     func() time.Time

	watchdogInterval time.Duration
	staleAfter       time.Duration
	backoff          Backoff

	mu        sync.Mutex
	state     State
	lastFrame time.Time
	stream    io.ReadCloser
	forced    bool

	restarts atomic.Int64
	frames   atomic.Int64
}

// NewSupervisor applies defaults to cfg.
func NewSupervisor(cfg SupervisorConfig) *Supervisor {
	s := &Supervisor{
		open:             cfg.Open,
		prepare:          cfg.Prepare,
		handle:           cfg.Handle,
		logger:           cfg.Logger,
		now:              cfg.Now,
		watchdogInterval: cfg.WatchdogInterval,
		staleAfter:       cfg.StaleAfter,
		backoff:          cfg.Backoff,
	}
	if s.logger == nil {
		s.logger = nopLogger{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.watchdogInterval <= 0 {
		s.watchdogInterval = DefaultWatchdogInterval
	}
	if s.staleAfter <= 0 {
		s.staleAfter = DefaultStaleAfter
	}
	if s.backoff.Watchdog <= 0 {
		s.backoff.Watchdog = DefaultWatchdogBackoff
	}
	if s.backoff.Closed <= 0 {
		s.backoff.Closed = DefaultClosedBackoff
	}
	if s.backoff.Failed <= 0 {
		s.backoff.Failed = DefaultFailedBackoff
	}
	return s
}

// State returns the current stream state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Restarts returns how many times the stream has been reopened.
func (s *Supervisor) Restarts() int64 {
	return s.restarts.Load()
}

// Frames returns how many data frames have been handled.
func (s *Supervisor) Frames() int64 {
	return s.frames.Load()
}

// LastFrame returns when the stream last produced a line.
func (s *Supervisor) LastFrame() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastFrame
}

// Run connects and reconnects until ctx is cancelled. The watchdog runs
// alongside for the same lifetime.
func (s *Supervisor) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.watchdog(ctx)
	}()
	defer wg.Wait()

	for {
		delay := s.session(ctx)
		if ctx.Err() != nil {
			return
		}

		s.restarts.Add(1)
		s.logger.Info("event stream reconnecting", "delay", delay)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// session runs one connect-stream cycle and returns the backoff before
// the next one.
func (s *Supervisor) session(ctx context.Context) time.Duration {
	s.setState(StateConnecting)

	if s.prepare != nil {
		s.prepare(ctx)
	}

	body, err := s.open(ctx)
	if err != nil {
		s.setState(StateIdle)
		if ctx.Err() == nil {
			s.logger.Error("event stream connection failed", "error", err)
		}
		return s.backoff.Failed
	}

	s.mu.Lock()
	s.stream = body
	s.state = StateStreaming
	s.lastFrame = s.now()
	s.forced = false
	s.mu.Unlock()
	s.logger.Info("event stream connected")

	err = s.read(body)

	s.mu.Lock()
	forced := s.forced
	s.stream = nil
	s.state = StateIdle
	s.mu.Unlock()
	_ = body.Close()

	switch {
	case ctx.Err() != nil:
		return 0
	case forced:
		return s.backoff.Watchdog
	case err != nil:
		s.logger.Error("event stream error", "error", err)
	default:
		s.logger.Warn("event stream closed by bridge")
	}
	return s.backoff.Closed
}

// read consumes lines until EOF or a transport error. Malformed frames
// are skipped.
func (s *Supervisor) read(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		s.touch()

		events, ok, err := hue.ParseLine(scanner.Text())
		if !ok {
			continue
		}
		if err != nil {
			s.logger.Debug("skipping malformed frame", "error", err)
			continue
		}
		s.frames.Add(1)
		if s.handle != nil {
			s.handle(events)
		}
	}

	return scanner.Err()
}

func (s *Supervisor) touch() {
	s.mu.Lock()
	s.lastFrame = s.now()
	s.mu.Unlock()
}

func (s *Supervisor) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Supervisor) watchdog(ctx context.Context) {
	ticker := time.NewTicker(s.watchdogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.watchdogCheck(s.now())
		}
	}
}

// watchdogCheck tears the stream down when it has been silent for longer
// than staleAfter at time now. It reports whether a restart was forced.
func (s *Supervisor) watchdogCheck(now time.Time) bool {
	s.mu.Lock()
	if s.state != StateStreaming || s.forced {
		s.mu.Unlock()
		return false
	}
	silence := now.Sub(s.lastFrame)
	if silence <= s.staleAfter {
		s.mu.Unlock()
		return false
	}
	s.forced = true
	s.state = StateIdle
	stream := s.stream
	s.mu.Unlock()

	s.logger.Warn("event stream silent, forcing restart", "silence", silence.Round(time.Second))
	if stream != nil {
		_ = stream.Close()
	}
	return true
}
