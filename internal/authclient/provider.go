package authclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/ashureev/satty/internal/domain"
	"github.com/ashureev/satty/internal/store"
)

// ProviderConfig configures ProviderClient.
type ProviderConfig struct {
	// ProviderURL is the provider authorize endpoint.
	ProviderURL string
	// CanisterID identifies the provider; sent as canisterId and expected as delegation issuer.
	CanisterID  string
	ProviderKey []byte
	StateSecret []byte
	StateTTL    time.Duration
}

// ProviderClient implements Client against a redirect-based identity provider,
// persisting delegations in the repository.
type ProviderClient struct {
	cfg    ProviderConfig
	repo   store.Repository
	states *StateManager
	now    func() time.Time
}

// NewProviderClient creates a provider-backed identity client.
func NewProviderClient(cfg ProviderConfig, repo store.Repository) (*ProviderClient, error) {
	u, err := url.Parse(cfg.ProviderURL)
	if err != nil {
		return nil, fmt.Errorf("parse provider url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.New("provider url must use http or https")
	}
	if len(cfg.ProviderKey) == 0 {
		return nil, errors.New("provider key is required")
	}
	if len(cfg.StateSecret) == 0 {
		return nil, errors.New("state secret is required")
	}

	return &ProviderClient{
		cfg:    cfg,
		repo:   repo,
		states: NewStateManager(cfg.StateSecret, cfg.StateTTL),
		now:    time.Now,
	}, nil
}

// CreateOrRestore returns the persisted identity for deviceID if it still verifies.
func (c *ProviderClient) CreateOrRestore(ctx context.Context, deviceID string) (*domain.Identity, error) {
	d, err := c.repo.GetDelegation(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("load delegation: %w", err)
	}
	if d == nil {
		return nil, nil
	}

	if _, err := verifyDelegation(c.cfg.ProviderKey, c.cfg.CanisterID, d.Token, c.now); err != nil {
		slog.Info("Discarding persisted delegation", "device_id", deviceID, "error", err)
		if delErr := c.repo.DeleteDelegation(ctx, deviceID); delErr != nil {
			slog.Warn("Failed to delete stale delegation", "device_id", deviceID, "error", delErr)
		}
		return nil, nil
	}

	return d.Identity(), nil
}

// BeginInteractiveLogin builds the provider redirect URL for one attempt.
func (c *ProviderClient) BeginInteractiveLogin(_ context.Context, req LoginRequest) (string, error) {
	if req.DeviceID == "" || req.AttemptID == "" {
		return "", errors.New("device id and attempt id are required")
	}
	if req.RedirectURI == "" {
		return "", errors.New("redirect uri is required")
	}

	sessionKey, err := NewSessionKey()
	if err != nil {
		return "", err
	}
	state, err := c.states.Encode(req.DeviceID, req.AttemptID, sessionKey)
	if err != nil {
		return "", err
	}

	u, err := url.Parse(c.cfg.ProviderURL)
	if err != nil {
		return "", fmt.Errorf("parse provider url: %w", err)
	}
	q := u.Query()
	if c.cfg.CanisterID != "" {
		q.Set("canisterId", c.cfg.CanisterID)
	}
	q.Set("state", state)
	q.Set("redirect_uri", req.RedirectURI)
	q.Set("session_key", sessionKey)
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// CompleteInteractiveLogin verifies the callback and the delegation it carries.
func (c *ProviderClient) CompleteInteractiveLogin(_ context.Context, deviceID string, cb Callback) (Completion, error) {
	st, err := c.states.Decode(cb.State)
	if err != nil {
		return Completion{}, err
	}
	if st.DeviceID != deviceID {
		return Completion{}, fmt.Errorf("%w: device mismatch", ErrStateMismatch)
	}

	out := Completion{AttemptID: st.AttemptID}

	if cb.Error != "" {
		msg := cb.Error
		if cb.ErrorDescription != "" {
			msg += ": " + cb.ErrorDescription
		}
		return out, fmt.Errorf("%w: %s", ErrProviderDenied, msg)
	}

	claims, err := verifyDelegation(c.cfg.ProviderKey, c.cfg.CanisterID, cb.Delegation, c.now)
	if err != nil {
		return out, err
	}
	if hashSessionKey(claims.SessionKey) != st.SessionKeyHash {
		return out, fmt.Errorf("%w: session key mismatch", ErrInvalidDelegation)
	}

	out.Identity = &domain.Identity{
		Principal:  domain.Principal(claims.Subject),
		Delegation: cb.Delegation,
		ExpiresAt:  claims.ExpiresAt.Time,
	}
	return out, nil
}

// Remember persists the delegation of identity for deviceID.
func (c *ProviderClient) Remember(ctx context.Context, deviceID string, identity *domain.Identity) error {
	if identity == nil {
		return errors.New("remember: identity is required")
	}
	err := c.repo.SaveDelegation(ctx, &domain.Delegation{
		DeviceID:  deviceID,
		Principal: identity.Principal,
		Token:     identity.Delegation,
		ExpiresAt: identity.ExpiresAt,
		CreatedAt: c.now(),
	})
	if err != nil {
		return fmt.Errorf("persist delegation: %w", err)
	}
	return nil
}

// EndSession deletes the persisted delegation for deviceID.
func (c *ProviderClient) EndSession(ctx context.Context, deviceID string) error {
	if err := c.repo.DeleteDelegation(ctx, deviceID); err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	return nil
}

var _ Client = (*ProviderClient)(nil)
