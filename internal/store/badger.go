package store

import (
	"context"
	"encoding/json/v2"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/readmarkapp/readmark-agent/internal/domain"
	"github.com/readmarkapp/readmark-agent/internal/id"
)

// BadgerStore is the default Badger-backed implementation of Store.
type BadgerStore struct {
	db     *badger.DB
	logger *slog.Logger
}

// Open creates a new BadgerStore at the given path.
func Open(path string, logger *slog.Logger) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil      // Disable Badger's internal logging
	opts.SyncWrites = true // The slot must survive an abrupt shutdown

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	if logger != nil {
		logger.Info("snapshot database opened", "driver", "badger", "path", path)
	}

	return &BadgerStore{db: db, logger: logger}, nil
}

// Close gracefully closes the database.
func (s *BadgerStore) Close() error {
	if s.logger != nil {
		s.logger.Info("closing snapshot database")
	}
	return s.db.Close()
}

// LoadSnapshot returns the persisted snapshot, or (nil, nil) if the slot
// has never been written.
func (s *BadgerStore) LoadSnapshot(ctx context.Context) (*domain.CachedRankSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var snap domain.CachedRankSnapshot
	err := s.get([]byte(KeySnapshot), &snap)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return &snap, nil
}

// SaveSnapshot overwrites the snapshot slot.
func (s *BadgerStore) SaveSnapshot(ctx context.Context, snap *domain.CachedRankSnapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.set([]byte(KeySnapshot), snap); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// ClearSnapshot removes the snapshot slot entirely.
func (s *BadgerStore) ClearSnapshot(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(KeySnapshot))
	})
	if err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}
	return nil
}

// DeviceID returns the persisted device identity, generating and storing
// one on first use.
func (s *BadgerStore) DeviceID(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var deviceID string
	err := s.get([]byte(KeyDeviceID), &deviceID)
	if err == nil {
		return deviceID, nil
	}
	if !errors.Is(err, badger.ErrKeyNotFound) {
		return "", fmt.Errorf("load device id: %w", err)
	}

	deviceID, err = id.Generate("device")
	if err != nil {
		return "", err
	}
	if err := s.set([]byte(KeyDeviceID), deviceID); err != nil {
		return "", fmt.Errorf("save device id: %w", err)
	}
	if s.logger != nil {
		s.logger.Info("generated device identity", "device_id", deviceID)
	}
	return deviceID, nil
}

// get retrieves a value by key.
func (s *BadgerStore) get(key []byte, dest any) error {
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, dest)
		})
	})
}

// set stores a value by key.
func (s *BadgerStore) set(key []byte, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
}
