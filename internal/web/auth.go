package web

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/satty/internal/authclient"
	"github.com/ashureev/satty/internal/identity"
	"github.com/ashureev/satty/internal/session"
)

// AuthHandler drives login, the provider callback and logout.
type AuthHandler struct {
	mgr *session.Manager
}

// NewAuthHandler creates an auth handler.
func NewAuthHandler(mgr *session.Manager) *AuthHandler {
	return &AuthHandler{mgr: mgr}
}

// RegisterRoutes registers the /auth routes.
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Get("/callback", h.Callback)
		r.Post("/logout", h.Logout)
	})
}

// safeReturnPath keeps redirects on this site.
func safeReturnPath(p string) string {
	if p == "" || !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return "/"
	}
	if strings.HasPrefix(p, "/auth/") {
		return "/"
	}
	return p
}

// Login starts an interactive login and redirects to the identity provider.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	handle := session.Use(r.Context())
	if handle == nil {
		http.Error(w, "session unavailable", http.StatusInternalServerError)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	pending, err := handle.Login(r.Context(), safeReturnPath(r.PostForm.Get("return_to")))
	if err != nil {
		render(w, r, http.StatusBadGateway, "Login failed", ErrorPage("The identity provider is unavailable. Please try again."))
		return
	}

	slog.Info("Redirecting to identity provider",
		"device_id", handle.DeviceID(),
		"attempt_id", pending.ID,
		"ip", identity.IPFromRequest(r))
	http.Redirect(w, r, pending.RedirectURL, http.StatusSeeOther)
}

// Callback completes the pending login from the provider redirect.
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	deviceID := identity.DeviceIDFromContext(r.Context())
	if deviceID == "" {
		http.Error(w, "unknown device", http.StatusBadRequest)
		return
	}

	q := r.URL.Query()
	pending, err := h.mgr.Complete(r.Context(), deviceID, authclient.Callback{
		State:            q.Get("state"),
		Delegation:       q.Get("delegation"),
		Error:            q.Get("error"),
		ErrorDescription: q.Get("error_description"),
	})

	returnTo := "/"
	if pending != nil {
		returnTo = pending.ReturnTo
	}

	switch {
	case err == nil:
	case errors.Is(err, authclient.ErrProviderDenied):
		slog.Info("Login declined at provider", "device_id", deviceID)
	case errors.Is(err, authclient.ErrStateMismatch), errors.Is(err, session.ErrStaleLogin):
		slog.Warn("Discarding login callback", "device_id", deviceID, "error", err)
	default:
		slog.Error("Login callback failed", "device_id", deviceID, "error", err)
		render(w, r, http.StatusBadGateway, "Login failed", ErrorPage("Login could not be completed. Please try again."))
		return
	}

	http.Redirect(w, r, safeReturnPath(returnTo), http.StatusSeeOther)
}

// Logout ends the session and returns to the home page.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	handle := session.Use(r.Context())
	if handle == nil {
		http.Error(w, "session unavailable", http.StatusInternalServerError)
		return
	}

	if err := handle.Logout(r.Context()); err != nil {
		render(w, r, http.StatusBadGateway, "Logout failed", ErrorPage("Logout failed. You are still signed in."))
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}
