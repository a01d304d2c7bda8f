package session

import (
	"context"
	"log/slog"
	"time"
)

// DelegationPruner removes persisted delegations that expired before now.
type DelegationPruner interface {
	DeleteExpiredDelegations(ctx context.Context, now time.Time) (int64, error)
}

// SweepConfig controls StartSweeper.
type SweepConfig struct {
	Interval time.Duration
	// PendingTTL bounds how long a login may wait for the provider callback.
	PendingTTL time.Duration
	// IdleTTL is how long an unauthenticated device stays in memory.
	IdleTTL time.Duration
}

// StartSweeper runs a background goroutine that periodically expires lapsed
// sessions, abandons stale logins, forgets idle devices and prunes persisted
// delegations. It stops when ctx is cancelled.
func StartSweeper(ctx context.Context, mgr *Manager, repo DelegationPruner, cfg SweepConfig) {
	ticker := time.NewTicker(cfg.Interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Session sweeper started", "interval", cfg.Interval, "pending_ttl", cfg.PendingTTL, "idle_ttl", cfg.IdleTTL)

		for {
			select {
			case <-ticker.C:
				SweepOnce(ctx, mgr, repo, cfg)
			case <-ctx.Done():
				slog.Info("Session sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

// SweepOnce performs a single sweep.
func SweepOnce(ctx context.Context, mgr *Manager, repo DelegationPruner, cfg SweepConfig) {
	if mgr != nil {
		expired, abandoned, forgotten := mgr.Sweep(cfg.PendingTTL, cfg.IdleTTL)
		if expired+abandoned+forgotten > 0 {
			slog.Info("Session sweep completed",
				"expired", expired,
				"abandoned_logins", abandoned,
				"forgotten_devices", forgotten)
		}
	}

	if repo == nil {
		return
	}
	deleted, err := repo.DeleteExpiredDelegations(ctx, time.Now())
	if err != nil {
		slog.Error("Session sweeper failed to prune delegations", "error", err)
		return
	}
	if deleted > 0 {
		slog.Info("Session sweeper pruned expired delegations", "count", deleted)
	}
}
