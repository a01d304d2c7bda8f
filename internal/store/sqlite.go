package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/satty/internal/domain"
	"github.com/ashureev/satty/internal/shared"
	_ "modernc.org/sqlite"
)

const (
	writeRetries   = 3
	writeBaseDelay = 50 * time.Millisecond
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if dbPath == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS devices (
		device_id TEXT PRIMARY KEY,
		last_seen_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS delegations (
		device_id TEXT PRIMARY KEY,
		principal TEXT NOT NULL,
		token TEXT NOT NULL,
		expires_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_delegations_expires ON delegations(expires_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetDevice retrieves a device by its device ID.
func (s *SQLiteStore) GetDevice(ctx context.Context, deviceID string) (*domain.Device, error) {
	query := `
		SELECT device_id, last_seen_at, created_at, updated_at
		FROM devices WHERE device_id = ?`

	var device domain.Device
	var lastSeen, createdAt, updatedAt int64

	err := s.db.QueryRowContext(ctx, query, deviceID).Scan(
		&device.DeviceID, &lastSeen, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan device row: %w", err)
	}

	device.LastSeenAt = time.Unix(lastSeen, 0)
	device.CreatedAt = time.Unix(createdAt, 0)
	device.UpdatedAt = time.Unix(updatedAt, 0)

	return &device, nil
}

// UpsertDevice creates or updates a device record.
func (s *SQLiteStore) UpsertDevice(ctx context.Context, device *domain.Device) error {
	query := `
	INSERT INTO devices (device_id, last_seen_at, created_at, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(device_id) DO UPDATE SET
		last_seen_at = excluded.last_seen_at,
		updated_at = excluded.updated_at`

	return shared.RetryOnConflict(ctx, "upsert_device", writeRetries, writeBaseDelay, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, query,
			device.DeviceID, device.LastSeenAt.Unix(),
			device.CreatedAt.Unix(), device.UpdatedAt.Unix(),
		)
		if err != nil {
			return fmt.Errorf("upsert device: %w", err)
		}
		return nil
	})
}

// TouchDevice updates the last_seen_at timestamp for a device.
func (s *SQLiteStore) TouchDevice(ctx context.Context, deviceID string, lastSeen time.Time) error {
	query := `UPDATE devices SET last_seen_at = ?, updated_at = ? WHERE device_id = ?`
	result, err := s.db.ExecContext(ctx, query, lastSeen.Unix(), time.Now().Unix(), deviceID)
	if err != nil {
		return fmt.Errorf("update last_seen: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn("TouchDevice affected 0 rows", "device_id", deviceID)
	}

	return nil
}

// GetDelegation retrieves the persisted identity for a device.
func (s *SQLiteStore) GetDelegation(ctx context.Context, deviceID string) (*domain.Delegation, error) {
	query := `
		SELECT device_id, principal, token, expires_at, created_at
		FROM delegations WHERE device_id = ?`

	var d domain.Delegation
	var principal string
	var expiresAt, createdAt int64

	err := s.db.QueryRowContext(ctx, query, deviceID).Scan(
		&d.DeviceID, &principal, &d.Token, &expiresAt, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan delegation row: %w", err)
	}

	d.Principal = domain.Principal(principal)
	d.ExpiresAt = time.Unix(expiresAt, 0)
	d.CreatedAt = time.Unix(createdAt, 0)

	return &d, nil
}

// SaveDelegation stores the identity for a device.
func (s *SQLiteStore) SaveDelegation(ctx context.Context, d *domain.Delegation) error {
	query := `
	INSERT INTO delegations (device_id, principal, token, expires_at, created_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(device_id) DO UPDATE SET
		principal = excluded.principal,
		token = excluded.token,
		expires_at = excluded.expires_at,
		created_at = excluded.created_at`

	return shared.RetryOnConflict(ctx, "save_delegation", writeRetries, writeBaseDelay, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, query,
			d.DeviceID, string(d.Principal), d.Token,
			d.ExpiresAt.Unix(), d.CreatedAt.Unix(),
		)
		if err != nil {
			return fmt.Errorf("save delegation: %w", err)
		}
		return nil
	})
}

// DeleteDelegation removes the identity for a device.
func (s *SQLiteStore) DeleteDelegation(ctx context.Context, deviceID string) error {
	return shared.RetryOnConflict(ctx, "delete_delegation", writeRetries, writeBaseDelay, func(ctx context.Context) error {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM delegations WHERE device_id = ?`, deviceID); err != nil {
			return fmt.Errorf("delete delegation: %w", err)
		}
		return nil
	})
}

// DeleteExpiredDelegations removes delegations that expired before now.
func (s *SQLiteStore) DeleteExpiredDelegations(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM delegations WHERE expires_at <= ?`, now.Unix())
	if err != nil {
		return 0, fmt.Errorf("delete expired delegations: %w", err)
	}
	return result.RowsAffected()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

var _ Repository = (*SQLiteStore)(nil)
