package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	tests := []struct {
		name            string
		allowed         []string
		origin          string
		method          string
		preflight       bool
		wantOrigin      string
		wantCredentials string
		wantMethods     string
		wantStatus      int
	}{
		{
			name:            "explicit origin",
			allowed:         []string{"https://satty.app"},
			origin:          "https://satty.app",
			method:          http.MethodGet,
			wantOrigin:      "https://satty.app",
			wantCredentials: "true",
			wantStatus:      http.StatusTeapot,
		},
		{
			name:       "wildcard never allows credentials",
			allowed:    []string{"*"},
			origin:     "https://other.example",
			method:     http.MethodGet,
			wantOrigin: "https://other.example",
			wantStatus: http.StatusTeapot,
		},
		{
			name:       "foreign origin still reaches handler",
			allowed:    []string{"https://satty.app"},
			origin:     "https://evil.example",
			method:     http.MethodGet,
			wantStatus: http.StatusTeapot,
		},
		{
			name:       "no origin",
			allowed:    []string{"https://satty.app"},
			method:     http.MethodGet,
			wantStatus: http.StatusTeapot,
		},
		{
			name:        "preflight",
			allowed:     []string{"*"},
			origin:      "https://satty.app",
			method:      http.MethodOptions,
			preflight:   true,
			wantOrigin:  "https://satty.app",
			wantMethods: "GET, POST, OPTIONS",
			wantStatus:  http.StatusNoContent,
		},
		{
			name:       "preflight from foreign origin",
			allowed:    []string{"https://satty.app"},
			origin:     "https://evil.example",
			method:     http.MethodOptions,
			preflight:  true,
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "plain options is routed",
			allowed:    []string{"*"},
			origin:     "https://satty.app",
			method:     http.MethodOptions,
			wantOrigin: "https://satty.app",
			wantStatus: http.StatusTeapot,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/session", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodGet)
			}
			w := httptest.NewRecorder()

			CORS(tt.allowed)(next).ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantOrigin, w.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.wantCredentials, w.Header().Get("Access-Control-Allow-Credentials"))
			assert.Equal(t, tt.wantMethods, w.Header().Get("Access-Control-Allow-Methods"))
			if tt.origin != "" {
				assert.Equal(t, "Origin", w.Header().Get("Vary"))
			}
		})
	}
}
