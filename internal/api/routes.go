package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures the public newsletter routes and the admin route
// group. Admin routes are gated by the shared-secret x-admin-key header.
func SetupRoutes(h *Handlers, adminKey string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	// CORS - the subscribe form is posted from the marketing site
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"https://atlasestates.io", "http://localhost:5173", "http://localhost:8080"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "x-admin-key"},
		MaxAge:         300,
	}))

	// Health check (no auth required)
	r.Get("/health", h.HealthCheck)

	r.Route("/newsletter", func(r chi.Router) {
		// Public: reached from the site form and email links
		r.Post("/subscribe", h.HandleSubscribe)
		r.Get("/confirm", h.HandleConfirm)
		r.Get("/unsubscribe", h.HandleUnsubscribe)

		// Admin: subscriber export and campaign dispatch
		r.Group(func(r chi.Router) {
			r.Use(requireAdminKey(adminKey))
			r.Get("/subscribers", h.HandleListSubscribers)
			r.Post("/send", h.HandleSend)
		})
	})

	return r
}

// requireAdminKey rejects requests whose x-admin-key header does not match
// the configured secret. The comparison is constant time so the key cannot
// be probed byte by byte.
func requireAdminKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" {
				respondError(w, http.StatusServiceUnavailable, "admin access not configured")
				return
			}
			got := r.Header.Get("x-admin-key")
			if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				respondError(w, http.StatusUnauthorized, "invalid admin key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
