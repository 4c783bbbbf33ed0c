// Package sqlite provides a SQLite-backed implementation of the snapshot
// store, for deployments that prefer a single-file database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json/v2"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/readmarkapp/readmark-agent/internal/domain"
	"github.com/readmarkapp/readmark-agent/internal/id"
	"github.com/readmarkapp/readmark-agent/internal/store"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS slots (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
`

// Store provides SQLite-backed persistence for the agent.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open creates a new SQLite store at the given path.
// It configures WAL mode, sets pragmas, and bootstraps the schema.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Single writer; the agent is the only client.
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("exec schema: %w", err)
	}

	if logger != nil {
		logger.Info("snapshot database opened", "driver", "sqlite", "path", path)
	}

	return &Store{db: db, logger: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.logger != nil {
		s.logger.Info("closing snapshot database")
	}
	return s.db.Close()
}

// LoadSnapshot returns the persisted snapshot, or (nil, nil) if the slot
// has never been written.
func (s *Store) LoadSnapshot(ctx context.Context) (*domain.CachedRankSnapshot, error) {
	var snap domain.CachedRankSnapshot
	found, err := s.get(ctx, store.KeySnapshot, &snap)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &snap, nil
}

// SaveSnapshot overwrites the snapshot slot.
func (s *Store) SaveSnapshot(ctx context.Context, snap *domain.CachedRankSnapshot) error {
	if err := s.set(ctx, store.KeySnapshot, snap); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// ClearSnapshot removes the snapshot slot entirely.
func (s *Store) ClearSnapshot(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM slots WHERE key = ?`, store.KeySnapshot); err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}
	return nil
}

// DeviceID returns the persisted device identity, generating and storing
// one on first use.
func (s *Store) DeviceID(ctx context.Context) (string, error) {
	var deviceID string
	found, err := s.get(ctx, store.KeyDeviceID, &deviceID)
	if err != nil {
		return "", fmt.Errorf("load device id: %w", err)
	}
	if found {
		return deviceID, nil
	}

	deviceID, err = id.Generate("device")
	if err != nil {
		return "", err
	}
	if err := s.set(ctx, store.KeyDeviceID, deviceID); err != nil {
		return "", fmt.Errorf("save device id: %w", err)
	}
	return deviceID, nil
}

// get reads and unmarshals a slot. The second return reports whether the
// slot exists.
func (s *Store) get(ctx context.Context, key string, dest any) (bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM slots WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(value), dest); err != nil {
		return false, err
	}
	return true, nil
}

// set marshals and upserts a slot.
func (s *Store) set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO slots (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, string(data), time.Now().UTC().Format(time.RFC3339Nano))
	return err
}
