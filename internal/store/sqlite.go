package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"TrendScope/internal/model"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLiteStore caches price tables in a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger
	mu     sync.Mutex
}

// NewSQLiteStore opens (or creates) the database at dbPath and migrates it.
func NewSQLiteStore(dbPath string, ttl time.Duration, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := newSQLStore(db, ttl, logger)
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	s.logger.Info("sqlite price cache opened", zap.String("path", dbPath))
	return s, nil
}

func newSQLStore(db *sql.DB, ttl time.Duration, logger *zap.Logger) *SQLiteStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLiteStore{db: db, ttl: ttl, now: time.Now, logger: logger}
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS bar_cache (
			symbol     TEXT    NOT NULL,
			years      INTEGER NOT NULL,
			fetched_at INTEGER NOT NULL,
			payload    BLOB    NOT NULL,
			PRIMARY KEY (symbol, years)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_bar_cache_fetched ON bar_cache(fetched_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:30], err)
		}
	}
	return nil
}

// Load returns the cached table, or ErrCacheMiss if absent or older than the TTL.
func (s *SQLiteStore) Load(ctx context.Context, symbol string, years int) (*model.RawTable, error) {
	var (
		fetchedAt int64
		data      []byte
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT fetched_at, payload FROM bar_cache WHERE symbol = ? AND years = ?`,
		symbol, years,
	).Scan(&fetchedAt, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("load %s/%d: %w", symbol, years, err)
	}
	if s.ttl > 0 && s.now().Sub(time.Unix(fetchedAt, 0)) > s.ttl {
		return nil, ErrCacheMiss
	}
	table, _, err := decodeTable(data)
	if err != nil {
		return nil, err
	}
	return table, nil
}

// Save upserts the table for symbol and years.
func (s *SQLiteStore) Save(ctx context.Context, symbol string, years int, table *model.RawTable) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	data, err := encodeTable(table, now)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO bar_cache (symbol, years, fetched_at, payload)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(symbol, years) DO UPDATE SET fetched_at = excluded.fetched_at, payload = excluded.payload`,
		symbol, years, now.Unix(), data,
	)
	if err != nil {
		return fmt.Errorf("save %s/%d: %w", symbol, years, err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing sqlite price cache")
	return s.db.Close()
}
