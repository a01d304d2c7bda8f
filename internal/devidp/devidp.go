// Package devidp is a local stand-in for the external identity provider. It
// speaks the same redirect protocol as the real provider so the login flow
// can be exercised without network access.
package devidp

import (
	"crypto/ed25519"
	"crypto/sha256"
	"crypto/x509"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"

	"github.com/ashureev/satty/internal/authclient"
	"github.com/ashureev/satty/internal/domain"
)

const defaultAnchor = 10000

// Config configures the development provider.
type Config struct {
	// Key signs delegations; it must match the client's provider key.
	Key []byte
	// Issuer is stamped on delegations; it must match the client's canister id.
	Issuer string
	// DelegationTTL is how long minted delegations stay valid.
	DelegationTTL time.Duration
	// RedirectPrefix restricts where the provider may send the browser back to.
	RedirectPrefix string
}

// Provider serves the authorize endpoint.
type Provider struct {
	cfg Config
	now func() time.Time
}

// New creates a development provider.
func New(cfg Config) (*Provider, error) {
	if len(cfg.Key) == 0 {
		return nil, errors.New("devidp: key is required")
	}
	if cfg.DelegationTTL <= 0 {
		cfg.DelegationTTL = 8 * time.Hour
	}
	return &Provider{cfg: cfg, now: time.Now}, nil
}

// Routes mounts the provider endpoints.
func (p *Provider) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/authorize", p.authorizePage)
	r.Post("/authorize", p.authorize)
	return r
}

type authorizeRequest struct {
	State       string
	RedirectURI string
	SessionKey  string
}

func (p *Provider) parseRequest(v url.Values) (authorizeRequest, error) {
	req := authorizeRequest{
		State:       v.Get("state"),
		RedirectURI: v.Get("redirect_uri"),
		SessionKey:  v.Get("session_key"),
	}
	if req.State == "" || req.RedirectURI == "" || req.SessionKey == "" {
		return req, errors.New("state, redirect_uri and session_key are required")
	}
	u, err := url.Parse(req.RedirectURI)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return req, errors.New("invalid redirect_uri")
	}
	if p.cfg.RedirectPrefix != "" && !strings.HasPrefix(req.RedirectURI, p.cfg.RedirectPrefix) {
		return req, errors.New("redirect_uri not allowed")
	}
	return req, nil
}

func (p *Provider) authorizePage(w http.ResponseWriter, r *http.Request) {
	req, err := p.parseRequest(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	templ.Handler(authorizeView(req, defaultAnchor)).ServeHTTP(w, r)
}

func (p *Provider) authorize(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	req, err := p.parseRequest(r.PostForm)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	back, _ := url.Parse(req.RedirectURI)
	q := back.Query()
	q.Set("state", req.State)

	if r.PostForm.Get("decision") != "approve" {
		q.Set("error", "user_denied")
		q.Set("error_description", "the user declined the login request")
		back.RawQuery = q.Encode()
		http.Redirect(w, r, back.String(), http.StatusFound)
		return
	}

	anchor, err := strconv.ParseUint(r.PostForm.Get("anchor"), 10, 64)
	if err != nil {
		http.Error(w, "invalid identity anchor", http.StatusBadRequest)
		return
	}

	principal, err := p.PrincipalForAnchor(anchor)
	if err != nil {
		slog.Error("Dev provider failed to derive principal", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	token, err := authclient.MintDelegation(p.cfg.Key, p.cfg.Issuer, principal, req.SessionKey, p.now().Add(p.cfg.DelegationTTL))
	if err != nil {
		slog.Error("Dev provider failed to mint delegation", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	slog.Info("Dev provider issued delegation", "anchor", anchor, "principal", principal)

	q.Set("delegation", token)
	back.RawQuery = q.Encode()
	http.Redirect(w, r, back.String(), http.StatusFound)
}

// PrincipalForAnchor derives the stable self-authenticating principal of an
// identity anchor. The same anchor always yields the same principal.
func (p *Provider) PrincipalForAnchor(anchor uint64) (domain.Principal, error) {
	h := sha256.New()
	h.Write(p.cfg.Key)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], anchor)
	h.Write(buf[:])
	seed := h.Sum(nil)

	pub := ed25519.NewKeyFromSeed(seed).Public()
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("marshal public key: %w", err)
	}
	return domain.SelfAuthenticatingPrincipal(der), nil
}
