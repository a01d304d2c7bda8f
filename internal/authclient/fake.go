package authclient

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/ashureev/satty/internal/domain"
)

// Fake is an in-memory Client. Tests script provider outcomes with Approve
// and Deny, keyed by attempt id.
type Fake struct {
	mu          sync.Mutex
	persisted   map[string]*domain.Identity
	outcomes    map[string]fakeOutcome
	BeginErr    error
	RestoreErr  error
	RememberErr error
	EndErr      error
	Ended       int
}

type fakeOutcome struct {
	identity *domain.Identity
	err      error
}

// NewFake creates an empty fake client.
func NewFake() *Fake {
	return &Fake{
		persisted: make(map[string]*domain.Identity),
		outcomes:  make(map[string]fakeOutcome),
	}
}

// Persist stores an identity as if a previous visit had logged in.
func (f *Fake) Persist(deviceID string, id *domain.Identity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.persisted[deviceID] = id
}

// Approve scripts the provider to return id for attemptID.
func (f *Fake) Approve(attemptID string, id *domain.Identity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes[attemptID] = fakeOutcome{identity: id}
}

// Deny scripts the provider to reject attemptID.
func (f *Fake) Deny(attemptID string, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes[attemptID] = fakeOutcome{err: fmt.Errorf("%w: %s", ErrProviderDenied, reason)}
}

// CreateOrRestore implements Client.
func (f *Fake) CreateOrRestore(_ context.Context, deviceID string) (*domain.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.RestoreErr != nil {
		return nil, f.RestoreErr
	}
	return f.persisted[deviceID], nil
}

// BeginInteractiveLogin implements Client. The returned URL carries the
// attempt id as state.
func (f *Fake) BeginInteractiveLogin(_ context.Context, req LoginRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.BeginErr != nil {
		return "", f.BeginErr
	}
	q := url.Values{}
	q.Set("state", req.AttemptID)
	q.Set("redirect_uri", req.RedirectURI)
	return "https://idp.test/authorize?" + q.Encode(), nil
}

// CompleteInteractiveLogin implements Client. cb.State is the attempt id.
func (f *Fake) CompleteInteractiveLogin(_ context.Context, deviceID string, cb Callback) (Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := Completion{AttemptID: cb.State}
	if cb.Error != "" {
		return out, fmt.Errorf("%w: %s", ErrProviderDenied, cb.Error)
	}
	o, ok := f.outcomes[cb.State]
	if !ok {
		return Completion{}, ErrStateMismatch
	}
	delete(f.outcomes, cb.State)
	if o.err != nil {
		return out, o.err
	}
	out.Identity = o.identity
	return out, nil
}

// Remember implements Client.
func (f *Fake) Remember(_ context.Context, deviceID string, id *domain.Identity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.RememberErr != nil {
		return f.RememberErr
	}
	f.persisted[deviceID] = id
	return nil
}

// Persisted returns the identity stored for deviceID.
func (f *Fake) Persisted(deviceID string) *domain.Identity {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.persisted[deviceID]
}

// EndSession implements Client.
func (f *Fake) EndSession(_ context.Context, deviceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.EndErr != nil {
		return f.EndErr
	}
	f.Ended++
	delete(f.persisted, deviceID)
	return nil
}

var _ Client = (*Fake)(nil)
