package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// SQLiteFile is the database file name inside the store directory.
const SQLiteFile = "ledger.db"

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - factors/postings partitions
const currentSchemaVersion = 1

// sqliteBackend keeps each partition in its own table of one SQLite file.
// Uses WAL mode for concurrent read access.
type sqliteBackend struct {
	db *sql.DB
}

// openSQLite creates or opens the SQLite database for cfg.
// Applies required pragmas and the schema automatically.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode, FULL when SyncWrites is set
//   - 5-second busy timeout for lock contention
//
// This function is idempotent - safe to call multiple times.
func openSQLite(cfg Config) (*sqliteBackend, error) {
	dsn := ":memory:"
	if !cfg.InMemory {
		if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Dir, err)
		}
		dsn = filepath.Join(cfg.Dir, SQLiteFile)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, and an in-memory database
	// only exists on the connection that created it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db, cfg.SyncWrites); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &sqliteBackend{db: db}, nil
}

func applyPragmas(db *sql.DB, syncWrites bool) error {
	synchronous := "NORMAL"
	if syncWrites {
		synchronous = "FULL"
	}
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = " + synchronous,
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates the partition tables if they don't exist.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version < currentSchemaVersion {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
			return fmt.Errorf("set user_version: %w", err)
		}
	}

	return nil
}

// table maps a partition to its table name. Partitions are a closed set, so
// the returned name is safe to splice into SQL.
func table(p Partition) (string, error) {
	switch p {
	case Factors, Postings:
		return string(p), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPartition, p)
}

func (s *sqliteBackend) Get(ctx context.Context, p Partition, key string) ([]byte, bool, error) {
	tbl, err := table(p)
	if err != nil {
		return nil, false, err
	}

	var value string
	err = s.db.QueryRowContext(ctx, "SELECT value FROM "+tbl+" WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s/%s: %w", p, key, err)
	}
	return []byte(value), true, nil
}

func (s *sqliteBackend) Scan(ctx context.Context, p Partition, prefix string, fn func(key string, value []byte) error) error {
	tbl, err := table(p)
	if err != nil {
		return err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT key, value FROM `+tbl+`
		WHERE substr(key, 1, ?) = ?
		ORDER BY key COLLATE BINARY ASC
	`, len(prefix), prefix)
	if err != nil {
		return fmt.Errorf("scan %s: %w", p, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return fmt.Errorf("scan %s row: %w", p, err)
		}
		if err := fn(key, []byte(value)); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate %s: %w", p, err)
	}
	return nil
}

// Commit writes every staged put in one transaction.
func (s *sqliteBackend) Commit(ctx context.Context, b *Batch) error {
	if b.Len() == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("commit: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	for _, put := range b.puts {
		tbl, err := table(put.Partition)
		if err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO `+tbl+` (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value
		`, put.Key, string(put.Value))
		if err != nil {
			return fmt.Errorf("commit: put %s/%s: %w", put.Partition, put.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *sqliteBackend) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *sqliteBackend) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
