// Package sqlite provides the durable, bounded dictation history store.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"sync"

	"murmur/pkg/logger"

	_ "modernc.org/sqlite"
)

// HistoryStore is a SQLite-backed store of past dictation results. All
// mutations are serialized through a single mutex and run inside a
// transaction that rolls back on failure, so partial writes are never
// visible. Reads may run concurrently.
type HistoryStore struct {
	db       *sql.DB
	mu       sync.Mutex
	logger   *logger.Logger
	volatile bool
}

// NewHistoryStore opens (or creates) the history database at dbPath.
//
// Recovery policy, applied only at initialization: when the open fails, the
// on-disk database and its -wal/-shm side files are deleted and the open is
// retried once. When the retry also fails the store falls back to an
// in-memory database so the application stays usable; the fallback is
// observable through Volatile(). There is no unrecoverable initialization
// failure short of the in-memory open itself failing.
func NewHistoryStore(dbPath string, log *logger.Logger) (*HistoryStore, error) {
	storeLogger := log.Named("history")

	db, err := openAndInit(dbPath)
	if err == nil {
		storeLogger.Info("History database opened", logger.String("path", dbPath))
		return &HistoryStore{db: db, logger: storeLogger}, nil
	}

	storeLogger.Warn("History database unusable, wiping and retrying",
		logger.String("path", dbPath), logger.Error(err))
	removeDatabaseFiles(dbPath)

	db, err = openAndInit(dbPath)
	if err == nil {
		storeLogger.Warn("History database recovered after wipe", logger.String("path", dbPath))
		return &HistoryStore{db: db, logger: storeLogger}, nil
	}

	storeLogger.Error("History database unrecoverable, falling back to in-memory store",
		logger.String("path", dbPath), logger.Error(err))

	db, err = openAndInit(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory fallback store: %w", err)
	}
	return &HistoryStore{db: db, logger: storeLogger, volatile: true}, nil
}

// Volatile reports whether the store fell back to the non-durable in-memory
// database during initialization.
func (s *HistoryStore) Volatile() bool {
	return s.volatile
}

// Close closes the database connection.
func (s *HistoryStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func openAndInit(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set journal mode: %w", err)
		}
		if _, err := db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set synchronous mode: %w", err)
		}
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS history (
			id TEXT PRIMARY KEY,
			created_at TIMESTAMP NOT NULL,
			raw_transcript TEXT NOT NULL,
			final_transcript TEXT NOT NULL,
			rewrite_prompt TEXT,
			context_summary TEXT NOT NULL DEFAULT '',
			context_prompt TEXT,
			screenshot_ref TEXT,
			screenshot_status TEXT NOT NULL,
			post_processing_status TEXT NOT NULL DEFAULT '',
			debug_status TEXT NOT NULL DEFAULT '',
			custom_vocabulary TEXT NOT NULL DEFAULT '',
			audio_file TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create history table: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_history_created_at ON history(created_at)`)
	if err != nil {
		return fmt.Errorf("failed to create created_at index: %w", err)
	}

	return nil
}

// removeDatabaseFiles deletes the database and its WAL/shared-memory side
// files. Errors are ignored: a missing file is fine and anything else will
// resurface on the retry open.
func removeDatabaseFiles(dbPath string) {
	for _, path := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		os.Remove(path)
	}
}
