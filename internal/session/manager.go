package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/satty/internal/authclient"
	"github.com/ashureev/satty/internal/domain"
	"github.com/google/uuid"
)

var (
	// ErrLoginSuperseded rejects a pending login replaced by a newer one.
	ErrLoginSuperseded = errors.New("login superseded by a newer attempt")
	// ErrLoginCancelled rejects a pending login interrupted by logout.
	ErrLoginCancelled = errors.New("login cancelled")
	// ErrLoginExpired rejects a pending login the provider never answered.
	ErrLoginExpired = errors.New("login expired")
	// ErrStaleLogin is returned when a callback belongs to an attempt that is
	// no longer the device's pending login.
	ErrStaleLogin = errors.New("login attempt is no longer pending")
)

// ActorFactory builds a backend actor for an identity.
type ActorFactory interface {
	NewActor(identity *domain.Identity) (domain.Actor, error)
}

// Manager drives the session lifecycle of every device against the identity
// client and the actor factory. Lifecycle operations on one device are
// serialized; the store is only written through Store.update.
type Manager struct {
	client      authclient.Client
	actors      ActorFactory
	store       *Store
	redirectURI string
	logger      *slog.Logger
	now         func() time.Time

	// deviceLocks serializes lifecycle operations per device.
	deviceLocks keyedMutex
}

// NewManager creates a session manager. redirectURI is the callback URL the
// identity provider returns to.
func NewManager(client authclient.Client, actors ActorFactory, store *Store, redirectURI string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if store == nil {
		store = NewStore()
	}
	return &Manager{
		client:      client,
		actors:      actors,
		store:       store,
		redirectURI: redirectURI,
		logger:      logger,
		now:         time.Now,
	}
}

// Store returns the session store.
func (m *Manager) Store() *Store {
	return m.store
}

// Session returns the current session of deviceID.
func (m *Manager) Session(deviceID string) domain.Session {
	return m.store.Get(deviceID)
}

func (m *Manager) lock(deviceID string) func() {
	return m.deviceLocks.Lock(deviceID)
}

// Initialize restores a persisted session for deviceID the first time the
// device is seen. Later calls are no-ops. Restore failures leave the device
// unauthenticated; the error is returned for logging only.
func (m *Manager) Initialize(ctx context.Context, deviceID string) error {
	first := false
	var gen uint64
	m.store.update(deviceID, func(st *deviceState) bool {
		if !st.initialized {
			st.initialized = true
			first = true
			gen = st.generation
		}
		return false
	})
	m.store.touch(deviceID)
	if !first {
		return nil
	}

	unlock := m.lock(deviceID)
	defer unlock()

	identity, err := m.client.CreateOrRestore(ctx, deviceID)
	if err != nil {
		m.logger.Warn("Session restore failed", "device_id", deviceID, "error", err)
		return fmt.Errorf("restore session: %w", err)
	}
	if identity == nil {
		return nil
	}
	if identity.Expired(m.now()) {
		m.logger.Info("Restored identity already expired", "device_id", deviceID)
		return nil
	}

	actor, err := m.actors.NewActor(identity)
	if err != nil {
		m.logger.Warn("Failed to build actor for restored session", "device_id", deviceID, "error", err)
		return fmt.Errorf("restore session: %w", err)
	}

	published := false
	m.store.update(deviceID, func(st *deviceState) bool {
		if st.generation != gen {
			return false
		}
		st.session = domain.AuthenticatedSession(identity, actor)
		published = true
		return true
	})
	if !published {
		closeActor(m.logger, actor)
		return nil
	}

	m.logger.Info("Session restored", "device_id", deviceID, "principal", identity.Principal)
	return nil
}

// Login starts an interactive login for deviceID. The returned deferred
// result carries the provider URL to redirect to and resolves when the
// provider calls back. A login already pending for the device is superseded.
func (m *Manager) Login(ctx context.Context, deviceID, returnTo string) (*PendingLogin, error) {
	unlock := m.lock(deviceID)
	defer unlock()

	attemptID := uuid.NewString()
	redirectURL, err := m.client.BeginInteractiveLogin(ctx, authclient.LoginRequest{
		DeviceID:    deviceID,
		AttemptID:   attemptID,
		RedirectURI: m.redirectURI,
	})
	if err != nil {
		m.logger.Warn("Failed to begin login", "device_id", deviceID, "error", err)
		return nil, fmt.Errorf("begin login: %w", err)
	}

	pending := newPendingLogin(attemptID, returnTo, redirectURL, m.now())

	var previous *PendingLogin
	m.store.update(deviceID, func(st *deviceState) bool {
		previous = st.pending
		st.pending = pending
		return false
	})
	if previous != nil {
		previous.resolve(ErrLoginSuperseded)
	}

	m.logger.Info("Login started", "device_id", deviceID, "attempt_id", attemptID)
	return pending, nil
}

// Complete handles the provider callback for deviceID. On success the
// authenticated session is published and the resolved pending login is
// returned. On failure the store is unchanged and the pending login, if the
// callback belonged to it, is rejected with the same error.
func (m *Manager) Complete(ctx context.Context, deviceID string, cb authclient.Callback) (*PendingLogin, error) {
	unlock := m.lock(deviceID)
	defer unlock()

	completion, err := m.client.CompleteInteractiveLogin(ctx, deviceID, cb)
	pending := m.currentPending(deviceID, completion.AttemptID)

	if err != nil {
		m.logger.Warn("Login failed", "device_id", deviceID, "attempt_id", completion.AttemptID, "error", err)
		if pending != nil {
			m.fail(deviceID, pending, err)
		}
		return pending, err
	}
	if pending == nil {
		m.logger.Warn("Ignoring callback for stale login", "device_id", deviceID, "attempt_id", completion.AttemptID)
		return nil, ErrStaleLogin
	}

	if err := m.authenticate(ctx, deviceID, pending, completion.Identity); err != nil {
		m.fail(deviceID, pending, err)
		return pending, err
	}
	return pending, nil
}

func (m *Manager) fail(deviceID string, pending *PendingLogin, err error) {
	m.store.update(deviceID, func(st *deviceState) bool {
		if st.pending == pending {
			st.pending = nil
		}
		return false
	})
	pending.resolve(err)
}

func (m *Manager) currentPending(deviceID, attemptID string) *PendingLogin {
	if attemptID == "" {
		return nil
	}
	var pending *PendingLogin
	m.store.update(deviceID, func(st *deviceState) bool {
		if st.pending != nil && st.pending.ID == attemptID {
			pending = st.pending
		}
		return false
	})
	return pending
}

// authenticate performs the authenticated transition for a verified
// identity: actor construction, persistence, and an atomic publish guarded by
// the pending attempt.
func (m *Manager) authenticate(ctx context.Context, deviceID string, pending *PendingLogin, identity *domain.Identity) error {
	if identity == nil || identity.Principal == "" {
		return errors.New("identity provider returned no principal")
	}

	actor, err := m.actors.NewActor(identity)
	if err != nil {
		return fmt.Errorf("create actor: %w", err)
	}

	var previous domain.Actor
	published := false
	m.store.update(deviceID, func(st *deviceState) bool {
		if st.pending != pending {
			return false
		}
		previous = st.session.Actor
		st.session = domain.AuthenticatedSession(identity, actor)
		st.pending = nil
		published = true
		return true
	})
	if !published {
		closeActor(m.logger, actor)
		return ErrStaleLogin
	}

	pending.resolve(nil)
	if previous != nil {
		closeActor(m.logger, previous)
	}

	if err := m.client.Remember(ctx, deviceID, identity); err != nil {
		// The session is live; only the next restore is affected.
		m.logger.Warn("Failed to persist identity", "device_id", deviceID, "error", err)
	}

	m.logger.Info("Login completed", "device_id", deviceID, "principal", identity.Principal, "attempt_id", pending.ID)
	return nil
}

// Logout ends the session of deviceID. When the identity client fails to end
// the session the local state is left as it was.
func (m *Manager) Logout(ctx context.Context, deviceID string) error {
	unlock := m.lock(deviceID)
	defer unlock()

	if err := m.client.EndSession(ctx, deviceID); err != nil {
		m.logger.Warn("Logout failed", "device_id", deviceID, "error", err)
		return fmt.Errorf("end session: %w", err)
	}

	var (
		previous domain.Actor
		pending  *PendingLogin
	)
	m.store.update(deviceID, func(st *deviceState) bool {
		previous = st.session.Actor
		pending = st.pending
		st.session = domain.EmptySession()
		st.pending = nil
		return true
	})

	if pending != nil {
		pending.resolve(ErrLoginCancelled)
	}
	if previous != nil {
		closeActor(m.logger, previous)
	}

	m.logger.Info("Logged out", "device_id", deviceID)
	return nil
}

// Sweep expires sessions whose identity lapsed, rejects logins pending longer
// than pendingTTL, and forgets unauthenticated devices idle since idleTTL.
func (m *Manager) Sweep(pendingTTL, idleTTL time.Duration) (expired, abandoned, forgotten int) {
	now := m.now()

	var actors []domain.Actor
	var rejected []*PendingLogin
	m.store.each(func(_ string, st *deviceState) bool {
		if st.pending != nil && pendingTTL > 0 && now.Sub(st.pending.CreatedAt) > pendingTTL {
			rejected = append(rejected, st.pending)
			st.pending = nil
		}
		if st.session.Authenticated && st.session.Identity.Expired(now) {
			actors = append(actors, st.session.Actor)
			st.session = domain.EmptySession()
			return true
		}
		return false
	})

	for _, p := range rejected {
		p.resolve(ErrLoginExpired)
	}
	for _, a := range actors {
		closeActor(m.logger, a)
	}

	if idleTTL > 0 {
		cutoff := now.Add(-idleTTL)
		for _, id := range m.store.idleSince(cutoff) {
			if m.forget(id, cutoff) {
				forgotten++
			}
		}
	}

	return len(actors), len(rejected), forgotten
}

// forget drops an idle device under its lock, so a login or restore running
// for it finishes first.
func (m *Manager) forget(deviceID string, cutoff time.Time) bool {
	unlock := m.lock(deviceID)
	defer unlock()
	return m.store.Forget(deviceID, cutoff)
}

func closeActor(logger *slog.Logger, actor domain.Actor) {
	if err := actor.Close(); err != nil {
		logger.Debug("Failed to close actor", "error", err)
	}
}
