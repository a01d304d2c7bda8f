package session

import (
	"context"
	"net/http"

	"github.com/ashureev/satty/internal/domain"
	"github.com/ashureev/satty/internal/identity"
)

type handleKey struct{}

// Handle is the request-scoped view of one device's session. It reads the
// store on every call.
type Handle struct {
	mgr      *Manager
	deviceID string
}

// NewHandle returns a handle for deviceID.
func NewHandle(mgr *Manager, deviceID string) *Handle {
	return &Handle{mgr: mgr, deviceID: deviceID}
}

// Provider attaches a session handle to every request. It must run after the
// identity middleware so the device id is known.
func Provider(mgr *Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			deviceID := identity.DeviceIDFromContext(r.Context())
			if deviceID == "" {
				next.ServeHTTP(w, r)
				return
			}

			// Restore errors are logged by the manager; the page renders unauthenticated.
			_ = mgr.Initialize(r.Context(), deviceID)

			ctx := WithHandle(r.Context(), NewHandle(mgr, deviceID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithHandle returns a context carrying h.
func WithHandle(ctx context.Context, h *Handle) context.Context {
	return context.WithValue(ctx, handleKey{}, h)
}

// Use returns the session handle attached by Provider, or nil when called
// outside it.
func Use(ctx context.Context) *Handle {
	h, _ := ctx.Value(handleKey{}).(*Handle)
	return h
}

// DeviceID returns the device the handle is bound to.
func (h *Handle) DeviceID() string { return h.deviceID }

// Session returns the current session.
func (h *Handle) Session() domain.Session { return h.mgr.Session(h.deviceID) }

// Authenticated reports whether the device is logged in.
func (h *Handle) Authenticated() bool { return h.Session().Authenticated }

// Identity returns the current identity, or nil.
func (h *Handle) Identity() *domain.Identity { return h.Session().Identity }

// Principal returns the current principal, or the empty principal.
func (h *Handle) Principal() domain.Principal { return h.Session().Principal() }

// Actor returns the current backend actor, or nil.
func (h *Handle) Actor() domain.Actor { return h.Session().Actor }

// Login starts an interactive login for the device.
func (h *Handle) Login(ctx context.Context, returnTo string) (*PendingLogin, error) {
	return h.mgr.Login(ctx, h.deviceID, returnTo)
}

// Logout ends the device's session.
func (h *Handle) Logout(ctx context.Context) error {
	return h.mgr.Logout(ctx, h.deviceID)
}
