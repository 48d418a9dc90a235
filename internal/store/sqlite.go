package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/capitalize-ai/support-desk/internal/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps slots in a key/value table, mirroring browser local
// storage.
type SQLiteStore struct {
	db   *sql.DB
	slot string
}

// NewSQLiteStore opens (and migrates) <dir>/support.sqlite.
func NewSQLiteStore(ctx context.Context, dir, slot string) (*SQLiteStore, error) {
	if slot == "" {
		return nil, errors.New("sqlite store: missing slot name")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	// modernc.org/sqlite registers as "sqlite".
	db, err := sql.Open("sqlite", filepath.Join(dir, "support.sqlite"))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS slots (
		k TEXT PRIMARY KEY,
		v TEXT NOT NULL
	);`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate sqlite: %w", err)
	}
	return &SQLiteStore{db: db, slot: slot}, nil
}

// Backend implements Named.
func (s *SQLiteStore) Backend() string { return "sqlite" }

func get(ctx context.Context, q interface {
	QueryRowContext(context.Context, string, ...any) *sql.Row
}, slot string) ([]byte, error) {
	var v string
	err := q.QueryRowContext(ctx, `SELECT v FROM slots WHERE k = ?`, slot).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(v), nil
}

// Load reads the slot row. A missing row is an empty log.
func (s *SQLiteStore) Load(ctx context.Context) ([]model.Event, error) {
	v, err := get(ctx, s.db, s.slot)
	if err != nil {
		return nil, fmt.Errorf("failed to read slot %s: %w", s.slot, err)
	}
	return DecodeLog(v)
}

// Append rewrites the slot row with e added, inside one transaction.
func (s *SQLiteStore) Append(ctx context.Context, e model.Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	cur, err := get(ctx, tx, s.slot)
	if err != nil {
		return fmt.Errorf("failed to read slot %s: %w", s.slot, err)
	}
	next, err := appendEncoded(cur, e)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO slots (k, v) VALUES (?, ?) ON CONFLICT(k) DO UPDATE SET v = excluded.v`,
		s.slot, string(next),
	); err != nil {
		return fmt.Errorf("failed to write slot %s: %w", s.slot, err)
	}
	return tx.Commit()
}

// Clear deletes the slot row.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM slots WHERE k = ?`, s.slot); err != nil {
		return fmt.Errorf("failed to clear slot %s: %w", s.slot, err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// putRaw overwrites the slot verbatim. Tests use it to plant corrupt values.
func (s *SQLiteStore) putRaw(ctx context.Context, v string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO slots (k, v) VALUES (?, ?) ON CONFLICT(k) DO UPDATE SET v = excluded.v`,
		s.slot, v,
	)
	return err
}
