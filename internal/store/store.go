// Package store defines the persistence interface for the rank agent's
// single snapshot slot.
package store

import (
	"context"

	"github.com/readmarkapp/readmark-agent/internal/domain"
)

// Slot keys. The snapshot slot is shared by all users on the device; the
// identity it belongs to lives inside the snapshot itself.
const (
	KeySnapshot = "rank"
	KeyDeviceID = "device"
)

// Store is the interface for all persistence operations.
//
// LoadSnapshot returns (nil, nil) when the slot has never been written, so
// callers can distinguish "confirmed empty" from a read failure.
type Store interface {
	// Snapshot slot
	LoadSnapshot(ctx context.Context) (*domain.CachedRankSnapshot, error)
	SaveSnapshot(ctx context.Context, snap *domain.CachedRankSnapshot) error
	ClearSnapshot(ctx context.Context) error

	// Device identity
	DeviceID(ctx context.Context) (string, error)

	// Lifecycle
	Close() error
}
