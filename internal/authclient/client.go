// Package authclient adapts an external identity provider to the capability the
// session manager needs: restore a persisted identity, start an interactive
// redirect login, finish it from the provider callback, and end the session.
package authclient

import (
	"context"
	"errors"

	"github.com/ashureev/satty/internal/domain"
)

var (
	// ErrStateMismatch is returned when a callback state is missing, forged or expired.
	ErrStateMismatch = errors.New("login callback state mismatch")
	// ErrProviderDenied is returned when the provider reports an error on callback.
	ErrProviderDenied = errors.New("identity provider rejected login")
	// ErrInvalidDelegation is returned when the provider delegation fails verification.
	ErrInvalidDelegation = errors.New("invalid delegation")
)

// LoginRequest starts one interactive login attempt.
type LoginRequest struct {
	DeviceID  string
	AttemptID string
	// RedirectURI is where the provider sends the browser back to.
	RedirectURI string
}

// Callback carries the query parameters the provider returns with.
type Callback struct {
	State            string
	Delegation       string
	Error            string
	ErrorDescription string
}

// Completion is the outcome of a provider callback. AttemptID is set whenever
// the state verified, even when the provider reported an error.
type Completion struct {
	AttemptID string
	Identity  *domain.Identity
}

// Client is the identity capability used by the session manager.
type Client interface {
	// CreateOrRestore returns the persisted identity for deviceID when it is
	// still valid, or nil when the device has to log in interactively.
	CreateOrRestore(ctx context.Context, deviceID string) (*domain.Identity, error)

	// BeginInteractiveLogin returns the provider URL the browser must be redirected to.
	BeginInteractiveLogin(ctx context.Context, req LoginRequest) (string, error)

	// CompleteInteractiveLogin verifies a provider callback for deviceID.
	CompleteInteractiveLogin(ctx context.Context, deviceID string, cb Callback) (Completion, error)

	// Remember persists identity so a later CreateOrRestore finds it.
	Remember(ctx context.Context, deviceID string, identity *domain.Identity) error

	// EndSession forgets the persisted identity for deviceID.
	EndSession(ctx context.Context, deviceID string) error
}
