package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ashureev/satty/internal/api"
	"github.com/ashureev/satty/internal/identity"
	"github.com/ashureev/satty/internal/live"
	"github.com/ashureev/satty/internal/middleware"
	"github.com/ashureev/satty/internal/session"
	"github.com/ashureev/satty/internal/store"
)

// RouterConfig carries the dependencies of the HTTP surface.
type RouterConfig struct {
	Manager *session.Manager
	Repo    store.Repository
	Hub     *live.Hub
	// Static serves /static/ with the prefix stripped.
	Static http.Handler
	// Provider, when set, is mounted under /idp.
	Provider      http.Handler
	FrontendURL   string
	IsDev         bool
	CallTimeout   time.Duration
	HealthTimeout time.Duration
	// Tracing wraps the router with otelhttp.
	Tracing bool
}

// NewRouter builds the full HTTP handler.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))

	if cfg.Static != nil {
		r.Handle("/static/*", http.StripPrefix("/static", cfg.Static))
	}
	if cfg.Provider != nil {
		r.Mount("/idp", cfg.Provider)
	}

	origins := []string{cfg.FrontendURL}
	if cfg.IsDev || cfg.FrontendURL == "" {
		origins = []string{"*"}
	}

	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(cfg.Repo, cfg.IsDev))
		r.Use(session.Provider(cfg.Manager))

		RegisterPages(r)
		NewAuthHandler(cfg.Manager).RegisterRoutes(r)

		api.Mount(r,
			api.NewHealthHandler(cfg.Repo, cfg.HealthTimeout),
			api.NewSessionHandler(cfg.CallTimeout),
			middleware.CORS(origins),
		)

		r.Get("/ws/session", live.NewHandler(cfg.Manager.Store(), cfg.Hub, cfg.FrontendURL, cfg.IsDev).ServeHTTP)
	})

	if cfg.Tracing {
		return otelhttp.NewHandler(r, "satty.http")
	}
	return r
}
