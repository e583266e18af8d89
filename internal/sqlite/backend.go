// Store lifecycle: open, close, transactions, record cache, index worker.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/strandlabs/loom/pkg/types"
)

// dbFileName is the SQLite database file inside DataDir.
const dbFileName = "loom.db"

// timeLayout is the stored timestamp format: fixed-width UTC nanoseconds,
// so lexicographic order on the stored string equals chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store implements types.Store on an embedded SQLite database.
//
// All primary-store writes commit in a single transaction. Derived index
// maintenance runs on a background worker goroutine and never fails the
// write that triggered it; a failed incremental update clears the index's
// ready flag so the next reader rebuilds.
type Store struct {
	mu    sync.Mutex // serializes writes and index rebuilds
	db    *sql.DB
	log   zerolog.Logger
	cache *lru.LRU[string, *types.Record]
	now   func() time.Time

	// closeMu guards closed and sends on indexCh against Close.
	closeMu sync.RWMutex
	closed  bool

	indexCh chan indexTask
	wg      sync.WaitGroup
}

var _ types.Store = (*Store)(nil)

// Open creates or opens the store in cfg.DataDir.
func Open(cfg types.Config, logger zerolog.Logger) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, dbFileName)
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// modernc.org/sqlite serializes access per connection; a single
	// connection avoids SQLITE_BUSY between the writer and index worker.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA busy_timeout = 5000;",
		"PRAGMA foreign_keys = ON;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying pragma: %w", err)
		}
	}

	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("initializing schema: %w", err)
		}
	}

	// Ready flags cover the in-memory update queue of the previous process
	// too: a crash with updates still queued leaves a flag set over an index
	// missing those writes. Start unready; the first reader rebuilds.
	if _, err := db.Exec("DELETE FROM index_meta"); err != nil {
		db.Close()
		return nil, fmt.Errorf("resetting index flags: %w", err)
	}

	cacheSize := cfg.CacheSize
	if cacheSize <= 0 {
		cacheSize = types.DefaultCacheSize
	}
	cacheTTL := cfg.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = types.DefaultCacheTTL
	}

	s := &Store{
		db:      db,
		log:     logger,
		cache:   lru.NewLRU[string, *types.Record](cacheSize, nil, cacheTTL),
		now:     time.Now,
		indexCh: make(chan indexTask, 64),
	}

	s.wg.Add(1)
	go s.indexWorker()

	return s, nil
}

// Close drains pending index work and closes the database. Idempotent.
func (s *Store) Close() error {
	s.closeMu.Lock()
	if s.closed {
		s.closeMu.Unlock()
		return nil
	}
	s.closed = true
	close(s.indexCh)
	s.closeMu.Unlock()

	s.wg.Wait()

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// withTx runs fn inside a transaction, committing on success.
func (s *Store) withTx(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// checkOpen returns ErrStoreClosed after Close.
func (s *Store) checkOpen() error {
	s.closeMu.RLock()
	defer s.closeMu.RUnlock()
	if s.closed {
		return types.ErrStoreClosed
	}
	return nil
}

// formatTime renders t in the stored timestamp format.
func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime reads a stored or imported timestamp. Accepts the native fixed
// layout and RFC 3339 variants from export documents.
func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(timeLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}
