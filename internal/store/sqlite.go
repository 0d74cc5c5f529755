// ABOUTME: SQLite-backed event store using modernc.org/sqlite
// ABOUTME: Opens the database, creates the schema, and runs versioned migrations

package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// schemaVersion is the schema version this build targets. Opening an older
// database runs the migrations between its recorded version and this one.
const schemaVersion = 1

// Store is the persistent event store for logs, measurements, snippets, and
// the settings document.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	opt    optState
}

// New opens (or creates) the store at the given path. The schema is created
// on first open; parent directories are created if needed. SQLite's
// single-writer locking serializes concurrent schema upgrades: a connection
// holding an older version blocks a newer connection's upgrade until closed.
func New(path string, opts Options) (*Store, error) {
	logger := slog.Default().With("component", "store")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL mode for concurrent readers across processes
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:     db,
		logger: logger,
	}
	s.opt.set(opts)

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	logger.Info("store initialized", "path", path, "schema_version", schemaVersion)
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate brings the database from its recorded schema version up to
// schemaVersion. Version 0 (fresh database) creates the full schema. Each
// step is wrapped in a transaction; no destructive migration happens
// implicitly.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("creating version table: %w", err)
	}

	var current int
	err := s.db.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&current)
	if err == sql.ErrNoRows {
		current = 0
	} else if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	if current > schemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", current, schemaVersion)
	}

	for v := current + 1; v <= schemaVersion; v++ {
		step, ok := migrations[v]
		if !ok {
			return fmt.Errorf("no migration registered for version %d", v)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning migration %d: %w", v, err)
		}
		if _, err := tx.Exec(step); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", v, err)
		}
		if _, err := tx.Exec(`DELETE FROM schema_version`); err != nil {
			tx.Rollback()
			return fmt.Errorf("clearing version row: %w", err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_version (version) VALUES (?)`, v); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording version %d: %w", v, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", v, err)
		}

		s.logger.Info("applied schema migration", "version", v)
	}

	return nil
}

// migrations maps a target version to the SQL that brings the previous
// version up to it. Future bumps add entries here.
var migrations = map[int]string{
	1: `
		CREATE TABLE IF NOT EXISTS logs (
			id             TEXT PRIMARY KEY,
			timestamp      INTEGER NOT NULL,
			level          TEXT NOT NULL,
			message        TEXT NOT NULL,
			stack_trace    TEXT NOT NULL DEFAULT '',
			url            TEXT NOT NULL DEFAULT '',
			ctx_table      TEXT NOT NULL DEFAULT '',
			ctx_record_id  TEXT NOT NULL DEFAULT '',
			ctx_user       TEXT NOT NULL DEFAULT '',
			ctx_session_id TEXT NOT NULL DEFAULT ''
		);

		CREATE INDEX IF NOT EXISTS idx_logs_timestamp ON logs(timestamp);
		CREATE INDEX IF NOT EXISTS idx_logs_level ON logs(level);
		CREATE INDEX IF NOT EXISTS idx_logs_table ON logs(ctx_table);

		CREATE TABLE IF NOT EXISTS performance (
			id               TEXT PRIMARY KEY,
			timestamp        INTEGER NOT NULL,
			type             TEXT NOT NULL,
			duration         REAL NOT NULL,
			url              TEXT NOT NULL DEFAULT '',
			method           TEXT NOT NULL DEFAULT '',
			status           INTEGER NOT NULL DEFAULT 0,
			error            TEXT NOT NULL DEFAULT '',
			ctx_table        TEXT NOT NULL DEFAULT '',
			ctx_query        TEXT NOT NULL DEFAULT '',
			ctx_record_id    TEXT NOT NULL DEFAULT '',
			ctx_record_count INTEGER NOT NULL DEFAULT 0,
			stack_trace      TEXT NOT NULL DEFAULT ''
		);

		CREATE INDEX IF NOT EXISTS idx_performance_timestamp ON performance(timestamp);
		CREATE INDEX IF NOT EXISTS idx_performance_type ON performance(type);
		CREATE INDEX IF NOT EXISTS idx_performance_duration ON performance(duration);

		CREATE TABLE IF NOT EXISTS snippets (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			title       TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			code        TEXT NOT NULL,
			category    TEXT NOT NULL,
			tags        TEXT NOT NULL DEFAULT '[]',
			language    TEXT NOT NULL DEFAULT '',
			is_favorite INTEGER NOT NULL DEFAULT 0,
			created     INTEGER NOT NULL,
			updated     INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_snippets_category ON snippets(category);
		CREATE INDEX IF NOT EXISTS idx_snippets_created ON snippets(created);

		CREATE TABLE IF NOT EXISTS snippet_tags (
			snippet_id INTEGER NOT NULL,
			tag        TEXT NOT NULL,
			PRIMARY KEY (snippet_id, tag),
			FOREIGN KEY (snippet_id) REFERENCES snippets(id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_snippet_tags_tag ON snippet_tags(tag);

		CREATE TABLE IF NOT EXISTS settings (
			key     TEXT PRIMARY KEY,
			value   TEXT NOT NULL,
			updated INTEGER NOT NULL
		);
	`,
}
