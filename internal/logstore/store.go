package logstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/loxhue-core/internal/infrastructure/config"
	"github.com/nerrad567/loxhue-core/internal/infrastructure/logging"
)

const (
	// DefaultLimit is the number of entries Query returns when no limit is given.
	DefaultLimit = 100

	// CategoryAll disables the category filter.
	CategoryAll = "ALL"

	defaultRAMSize   = 500
	defaultBatchSize = 100
	flushInterval    = time.Second
	pruneInterval    = time.Hour
	writeTimeout     = 5 * time.Second
)

// Entry is one row of log history.
type Entry struct {
	ID        int64  `json:"id"`
	Timestamp int64  `json:"timestamp"`
	Level     string `json:"level"`
	Category  string `json:"category"`
	Message   string `json:"msg"`
}

// Filter narrows a Query. Empty fields match everything.
type Filter struct {
	Category string
	Search   string
	Limit    int
}

// Store is the log history. All methods are safe for concurrent use.
type Store struct {
	db        *sql.DB
	retention time.Duration

	mu     sync.Mutex
	ring   []Entry
	next   int
	full   bool
	lastID int64
	closed bool

	batchMu sync.Mutex
	batch   []Entry

	onError func(error)
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

// New creates a store. A nil db, or cfg.DisableDisk, selects the memory ring.
// Rows older than cfg.RetentionDays are pruned immediately and then hourly.
func New(db *sql.DB, cfg config.LogStoreConfig) *Store {
	size := cfg.RAMSize
	if size <= 0 {
		size = defaultRAMSize
	}

	s := &Store{
		ring:  make([]Entry, size),
		batch: make([]Entry, 0, defaultBatchSize),
		done:  make(chan struct{}),
	}
	if !cfg.DisableDisk {
		s.db = db
	}
	if cfg.RetentionDays > 0 {
		s.retention = time.Duration(cfg.RetentionDays) * 24 * time.Hour
	}

	if s.db != nil {
		s.prune()
		s.wg.Add(1)
		go s.flushLoop()
	}
	return s
}

// OnDisk reports whether history is persisted to SQLite.
func (s *Store) OnDisk() bool {
	return s.db != nil
}

// SetOnError sets a callback for asynchronous write failures. The callback
// must not log through a logger that records into this store.
func (s *Store) SetOnError(fn func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onError = fn
}

// Record implements logging.Recorder.
func (s *Store) Record(e logging.Entry) {
	entry := Entry{
		Timestamp: e.Time.UnixMilli(),
		Level:     e.Level,
		Category:  e.Category,
		Message:   e.Message,
	}
	if entry.Timestamp <= 0 {
		entry.Timestamp = time.Now().UnixMilli()
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.db == nil {
		s.lastID++
		entry.ID = s.lastID
		s.ring[s.next] = entry
		s.next = (s.next + 1) % len(s.ring)
		if s.next == 0 {
			s.full = true
		}
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.batchMu.Lock()
	s.batch = append(s.batch, entry)
	shouldFlush := len(s.batch) >= defaultBatchSize
	s.batchMu.Unlock()

	if shouldFlush {
		s.Flush()
	}
}

// Query returns matching entries, newest first.
func (s *Store) Query(ctx context.Context, f Filter) ([]Entry, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if strings.EqualFold(f.Category, CategoryAll) {
		f.Category = ""
	}

	if s.db == nil {
		return s.queryRing(f), nil
	}

	s.Flush()
	return s.queryDB(ctx, f)
}

func (s *Store) queryRing(f Filter) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := s.next
	if s.full {
		count = len(s.ring)
	}
	search := strings.ToLower(f.Search)

	out := make([]Entry, 0, min(count, f.Limit))
	for i := 0; i < count && len(out) < f.Limit; i++ {
		idx := (s.next - 1 - i + len(s.ring)) % len(s.ring)
		e := s.ring[idx]
		if f.Category != "" && !strings.EqualFold(e.Category, f.Category) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(e.Message), search) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func (s *Store) queryDB(ctx context.Context, f Filter) ([]Entry, error) {
	var (
		where []string
		args  []any
	)
	if f.Category != "" {
		where = append(where, "category = ?")
		args = append(args, strings.ToUpper(f.Category))
	}
	if f.Search != "" {
		where = append(where, "msg LIKE ?")
		args = append(args, "%"+f.Search+"%")
	}

	query := "SELECT id, timestamp, level, category, msg FROM logs"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, f.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying logs: %w", err)
	}
	defer rows.Close()

	out := make([]Entry, 0, f.Limit)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Level, &e.Category, &e.Message); err != nil {
			return nil, fmt.Errorf("scanning log row: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating logs: %w", err)
	}
	return out, nil
}

// Flush writes pending entries to the database in one transaction.
func (s *Store) Flush() {
	if s.db == nil {
		return
	}

	s.batchMu.Lock()
	if len(s.batch) == 0 {
		s.batchMu.Unlock()
		return
	}
	entries := s.batch
	s.batch = make([]Entry, 0, defaultBatchSize)
	s.batchMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := s.insert(ctx, entries); err != nil {
		s.reportError(err)
	}
}

func (s *Store) insert(ctx context.Context, entries []Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning log insert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO logs (timestamp, level, category, msg) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("preparing log insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.Timestamp, e.Level, e.Category, e.Message); err != nil {
			return fmt.Errorf("inserting log row: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing log insert: %w", err)
	}
	return nil
}

// Prune deletes rows older than the retention window and returns the count.
func (s *Store) Prune(ctx context.Context) (int64, error) {
	if s.db == nil || s.retention <= 0 {
		return 0, nil
	}
	cutoff := time.Now().Add(-s.retention).UnixMilli()
	res, err := s.db.ExecContext(ctx, "DELETE FROM logs WHERE timestamp < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning logs: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) prune() {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if _, err := s.Prune(ctx); err != nil {
		s.reportError(err)
	}
}

func (s *Store) flushLoop() {
	defer s.wg.Done()

	flush := time.NewTicker(flushInterval)
	defer flush.Stop()
	prune := time.NewTicker(pruneInterval)
	defer prune.Stop()

	for {
		select {
		case <-flush.C:
			s.Flush()
		case <-prune.C:
			s.prune()
		case <-s.done:
			return
		}
	}
}

// Close stops the flusher and writes whatever is still pending.
// The database handle is not closed.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		close(s.done)
		s.wg.Wait()
		s.Flush()
	})
	return nil
}

func (s *Store) reportError(err error) {
	s.mu.Lock()
	fn := s.onError
	s.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}
