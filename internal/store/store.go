// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/ashureev/satty/internal/domain"
)

// Repository defines the interface for persisting devices and their delegated identities.
type Repository interface {
	// GetDevice retrieves a device by its device ID. Returns nil if unknown.
	GetDevice(ctx context.Context, deviceID string) (*domain.Device, error)

	// UpsertDevice creates or updates a device record.
	UpsertDevice(ctx context.Context, device *domain.Device) error

	// TouchDevice updates the last_seen_at timestamp for a device.
	TouchDevice(ctx context.Context, deviceID string, lastSeen time.Time) error

	// GetDelegation retrieves the persisted identity for a device. Returns nil if none.
	GetDelegation(ctx context.Context, deviceID string) (*domain.Delegation, error)

	// SaveDelegation stores the identity for a device, replacing any previous one.
	SaveDelegation(ctx context.Context, delegation *domain.Delegation) error

	// DeleteDelegation removes the identity for a device.
	DeleteDelegation(ctx context.Context, deviceID string) error

	// DeleteExpiredDelegations removes delegations that expired before now.
	DeleteExpiredDelegations(ctx context.Context, now time.Time) (int64, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
