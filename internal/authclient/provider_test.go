package authclient

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/satty/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRepo struct {
	mu          sync.Mutex
	delegations map[string]*domain.Delegation
}

func newMemRepo() *memRepo {
	return &memRepo{delegations: make(map[string]*domain.Delegation)}
}

func (m *memRepo) GetDevice(context.Context, string) (*domain.Device, error) { return nil, nil }
func (m *memRepo) UpsertDevice(context.Context, *domain.Device) error        { return nil }
func (m *memRepo) TouchDevice(context.Context, string, time.Time) error      { return nil }

func (m *memRepo) GetDelegation(_ context.Context, id string) (*domain.Delegation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.delegations[id]
	if d == nil {
		return nil, nil
	}
	copy := *d
	return &copy, nil
}

func (m *memRepo) SaveDelegation(_ context.Context, d *domain.Delegation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *d
	m.delegations[d.DeviceID] = &copy
	return nil
}

func (m *memRepo) DeleteDelegation(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.delegations, id)
	return nil
}

func (m *memRepo) DeleteExpiredDelegations(context.Context, time.Time) (int64, error) {
	return 0, nil
}
func (m *memRepo) Ping(context.Context) error { return nil }
func (m *memRepo) Close() error               { return nil }

var (
	testProviderKey = []byte("provider-key")
	testStateSecret = []byte("0123456789abcdef0123456789abcdef")
)

func newTestClient(t *testing.T, repo *memRepo) *ProviderClient {
	t.Helper()
	c, err := NewProviderClient(ProviderConfig{
		ProviderURL: "http://localhost:4943",
		CanisterID:  "rdmx6-jaaaa-aaaaa-aaadq-cai",
		ProviderKey: testProviderKey,
		StateSecret: testStateSecret,
	}, repo)
	require.NoError(t, err)
	return c
}

// beginLogin starts an attempt and returns the query the provider would see.
func beginLogin(t *testing.T, c *ProviderClient, deviceID, attemptID string) url.Values {
	t.Helper()
	raw, err := c.BeginInteractiveLogin(context.Background(), LoginRequest{
		DeviceID:    deviceID,
		AttemptID:   attemptID,
		RedirectURI: "http://localhost:8080/auth/callback",
	})
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u.Query()
}

func TestBeginInteractiveLoginBuildsProviderURL(t *testing.T) {
	c := newTestClient(t, newMemRepo())
	q := beginLogin(t, c, "dev_1", "attempt-1")

	assert.Equal(t, "rdmx6-jaaaa-aaaaa-aaadq-cai", q.Get("canisterId"))
	assert.Equal(t, "http://localhost:8080/auth/callback", q.Get("redirect_uri"))
	assert.NotEmpty(t, q.Get("session_key"))
	assert.NotEmpty(t, q.Get("state"))
}

func TestCompleteAndRememberPersistsDelegation(t *testing.T) {
	repo := newMemRepo()
	c := newTestClient(t, repo)
	q := beginLogin(t, c, "dev_1", "attempt-1")

	token, err := MintDelegation(testProviderKey, "rdmx6-jaaaa-aaaaa-aaadq-cai", "rrkah-fqaaa-aaaaa-aaaaq-cai", q.Get("session_key"), time.Now().Add(time.Hour))
	require.NoError(t, err)

	out, err := c.CompleteInteractiveLogin(context.Background(), "dev_1", Callback{
		State:      q.Get("state"),
		Delegation: token,
	})
	require.NoError(t, err)
	assert.Equal(t, "attempt-1", out.AttemptID)
	require.NotNil(t, out.Identity)
	assert.Equal(t, domain.Principal("rrkah-fqaaa-aaaaa-aaaaq-cai"), out.Identity.Principal)

	d, _ := repo.GetDelegation(context.Background(), "dev_1")
	assert.Nil(t, d, "verification alone must not persist")

	require.NoError(t, c.Remember(context.Background(), "dev_1", out.Identity))

	restored, err := c.CreateOrRestore(context.Background(), "dev_1")
	require.NoError(t, err)
	require.NotNil(t, restored)
	assert.Equal(t, out.Identity.Principal, restored.Principal)
}

func TestCompleteInteractiveLoginRejectsForeignSessionKey(t *testing.T) {
	c := newTestClient(t, newMemRepo())
	q := beginLogin(t, c, "dev_1", "attempt-1")

	token, err := MintDelegation(testProviderKey, "rdmx6-jaaaa-aaaaa-aaadq-cai", "rrkah-fqaaa", "another-key", time.Now().Add(time.Hour))
	require.NoError(t, err)

	out, err := c.CompleteInteractiveLogin(context.Background(), "dev_1", Callback{State: q.Get("state"), Delegation: token})
	require.ErrorIs(t, err, ErrInvalidDelegation)
	assert.Equal(t, "attempt-1", out.AttemptID)
}

func TestCompleteInteractiveLoginRejectsWrongDevice(t *testing.T) {
	c := newTestClient(t, newMemRepo())
	q := beginLogin(t, c, "dev_1", "attempt-1")

	_, err := c.CompleteInteractiveLogin(context.Background(), "dev_2", Callback{State: q.Get("state")})
	require.ErrorIs(t, err, ErrStateMismatch)
}

func TestCompleteInteractiveLoginSurfacesProviderError(t *testing.T) {
	c := newTestClient(t, newMemRepo())
	q := beginLogin(t, c, "dev_1", "attempt-1")

	out, err := c.CompleteInteractiveLogin(context.Background(), "dev_1", Callback{
		State:            q.Get("state"),
		Error:            "user_denied",
		ErrorDescription: "closed window",
	})
	require.ErrorIs(t, err, ErrProviderDenied)
	assert.Contains(t, err.Error(), "closed window")
	assert.Equal(t, "attempt-1", out.AttemptID)
}

func TestCompleteInteractiveLoginRejectsTamperedState(t *testing.T) {
	c := newTestClient(t, newMemRepo())
	q := beginLogin(t, c, "dev_1", "attempt-1")

	_, err := c.CompleteInteractiveLogin(context.Background(), "dev_1", Callback{State: q.Get("state") + "x"})
	require.ErrorIs(t, err, ErrStateMismatch)
}

func TestCreateOrRestoreDiscardsExpiredDelegation(t *testing.T) {
	repo := newMemRepo()
	c := newTestClient(t, repo)

	token, err := MintDelegation(testProviderKey, "rdmx6-jaaaa-aaaaa-aaadq-cai", "rrkah-fqaaa", "k", time.Now().Add(-time.Minute))
	require.NoError(t, err)
	require.NoError(t, repo.SaveDelegation(context.Background(), &domain.Delegation{
		DeviceID:  "dev_1",
		Principal: "rrkah-fqaaa",
		Token:     token,
		ExpiresAt: time.Now().Add(-time.Minute),
	}))

	id, err := c.CreateOrRestore(context.Background(), "dev_1")
	require.NoError(t, err)
	assert.Nil(t, id)

	d, _ := repo.GetDelegation(context.Background(), "dev_1")
	assert.Nil(t, d, "expected stale delegation to be deleted")
}

func TestEndSessionDeletesDelegation(t *testing.T) {
	repo := newMemRepo()
	c := newTestClient(t, repo)
	require.NoError(t, repo.SaveDelegation(context.Background(), &domain.Delegation{DeviceID: "dev_1", Token: "t"}))

	require.NoError(t, c.EndSession(context.Background(), "dev_1"))
	d, _ := repo.GetDelegation(context.Background(), "dev_1")
	assert.Nil(t, d)
}

func TestStateManagerExpiry(t *testing.T) {
	m := NewStateManager(testStateSecret, time.Minute)
	now := time.Now()
	m.now = func() time.Time { return now }

	token, err := m.Encode("dev_1", "attempt-1", "key")
	require.NoError(t, err)

	st, err := m.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, "dev_1", st.DeviceID)
	assert.Equal(t, "attempt-1", st.AttemptID)

	m.now = func() time.Time { return now.Add(2 * time.Minute) }
	_, err = m.Decode(token)
	require.ErrorIs(t, err, ErrStateMismatch)
}
