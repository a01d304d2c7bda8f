package devidp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/satty/internal/authclient"
	"github.com/ashureev/satty/internal/store"
)

const redirect = "http://localhost:8080/auth/callback"

func newProvider(t *testing.T) *Provider {
	t.Helper()
	p, err := New(Config{
		Key:            []byte("provider-secret"),
		Issuer:         "rdmx6-jaaaa-aaaaa-aaadq-cai",
		DelegationTTL:  time.Hour,
		RedirectPrefix: "http://localhost:8080/",
	})
	require.NoError(t, err)
	return p
}

func TestAuthorizePageRendersForm(t *testing.T) {
	p := newProvider(t)
	q := url.Values{"state": {"s<1>"}, "redirect_uri": {redirect}, "session_key": {"k"}}

	w := httptest.NewRecorder()
	p.Routes().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/authorize?"+q.Encode(), nil))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `value="approve"`)
	assert.Contains(t, body, "s&lt;1&gt;")
	assert.NotContains(t, body, "s<1>")
}

func TestAuthorizeRejectsForeignRedirect(t *testing.T) {
	p := newProvider(t)
	q := url.Values{"state": {"s"}, "redirect_uri": {"https://evil.example/cb"}, "session_key": {"k"}}

	w := httptest.NewRecorder()
	p.Routes().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/authorize?"+q.Encode(), nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func post(p *Provider, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/authorize", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	p.Routes().ServeHTTP(w, req)
	return w
}

func TestDenyRedirectsWithError(t *testing.T) {
	p := newProvider(t)
	w := post(p, url.Values{
		"state": {"s"}, "redirect_uri": {redirect}, "session_key": {"k"}, "decision": {"deny"},
	})

	require.Equal(t, http.StatusFound, w.Code)
	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "user_denied", loc.Query().Get("error"))
	assert.Equal(t, "s", loc.Query().Get("state"))
	assert.Empty(t, loc.Query().Get("delegation"))
}

func TestPrincipalForAnchorIsStable(t *testing.T) {
	p := newProvider(t)
	a, err := p.PrincipalForAnchor(10000)
	require.NoError(t, err)
	b, err := p.PrincipalForAnchor(10000)
	require.NoError(t, err)
	c, err := p.PrincipalForAnchor(10001)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, strings.Split(a.String(), "-"), 11)
}

type nopRepo struct{ store.Repository }

// The provider and the redirect client agree on the wire protocol end to end.
func TestApproveCompletesProviderClientLogin(t *testing.T) {
	p := newProvider(t)
	client, err := authclient.NewProviderClient(authclient.ProviderConfig{
		ProviderURL: "http://localhost:8080/idp/authorize",
		CanisterID:  "rdmx6-jaaaa-aaaaa-aaadq-cai",
		ProviderKey: []byte("provider-secret"),
		StateSecret: []byte("0123456789abcdef0123456789abcdef"),
	}, nopRepo{})
	require.NoError(t, err)

	const device = "dev_0123456789abcdef0123456789abcdef"
	ctx := context.Background()
	authURL, err := client.BeginInteractiveLogin(ctx, authclient.LoginRequest{
		DeviceID: device, AttemptID: "attempt-1", RedirectURI: redirect,
	})
	require.NoError(t, err)

	u, err := url.Parse(authURL)
	require.NoError(t, err)
	form := u.Query()
	form.Set("decision", "approve")
	form.Set("anchor", "10000")
	w := post(p, form)
	require.Equal(t, http.StatusFound, w.Code)

	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	completion, err := client.CompleteInteractiveLogin(ctx, device, authclient.Callback{
		State:      loc.Query().Get("state"),
		Delegation: loc.Query().Get("delegation"),
	})
	require.NoError(t, err)

	want, err := p.PrincipalForAnchor(10000)
	require.NoError(t, err)
	assert.Equal(t, "attempt-1", completion.AttemptID)
	assert.Equal(t, want, completion.Identity.Principal)
}
