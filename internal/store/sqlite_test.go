package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ashureev/satty/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "satty.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestDeviceRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	got, err := s.GetDevice(ctx, "dev_missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	now := time.Unix(1_700_000_000, 0)
	require.NoError(t, s.UpsertDevice(ctx, &domain.Device{
		DeviceID:   "dev_1",
		LastSeenAt: now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}))

	later := now.Add(time.Hour)
	require.NoError(t, s.TouchDevice(ctx, "dev_1", later))

	got, err = s.GetDevice(ctx, "dev_1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, later.Unix(), got.LastSeenAt.Unix())
	assert.Equal(t, now.Unix(), got.CreatedAt.Unix())
}

func TestDelegationLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)

	require.NoError(t, s.SaveDelegation(ctx, &domain.Delegation{
		DeviceID:  "dev_1",
		Principal: "rrkah-fqaaa",
		Token:     "token-1",
		ExpiresAt: now.Add(time.Hour),
		CreatedAt: now,
	}))

	// Saving again replaces the previous identity.
	require.NoError(t, s.SaveDelegation(ctx, &domain.Delegation{
		DeviceID:  "dev_1",
		Principal: "aaaaa-bbbbb",
		Token:     "token-2",
		ExpiresAt: now.Add(2 * time.Hour),
		CreatedAt: now,
	}))

	d, err := s.GetDelegation(ctx, "dev_1")
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, domain.Principal("aaaaa-bbbbb"), d.Principal)
	assert.Equal(t, "token-2", d.Token)
	assert.Equal(t, "aaaaa-bbbbb", d.Identity().Principal.String())

	require.NoError(t, s.DeleteDelegation(ctx, "dev_1"))
	d, err = s.GetDelegation(ctx, "dev_1")
	require.NoError(t, err)
	assert.Nil(t, d)
}

func TestDeleteExpiredDelegations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)

	for id, exp := range map[string]time.Time{
		"dev_old":   now.Add(-time.Minute),
		"dev_fresh": now.Add(time.Hour),
	} {
		require.NoError(t, s.SaveDelegation(ctx, &domain.Delegation{
			DeviceID:  id,
			Principal: "p-" + domain.Principal(id),
			Token:     "t",
			ExpiresAt: exp,
			CreatedAt: now,
		}))
	}

	n, err := s.DeleteExpiredDelegations(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	d, err := s.GetDelegation(ctx, "dev_fresh")
	require.NoError(t, err)
	assert.NotNil(t, d)
}

func TestPing(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Ping(context.Background()))
}
