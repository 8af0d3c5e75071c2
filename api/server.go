/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. Logger:     Request logging through zerolog
  4. CORS:       Cross-origin requests for the frontend

ROUTE GROUPS:
  /api/custody/*     Owners and toggles
  /api/handoffs/*    Handoff details
  /api/streak        Streak
  /api/percentages   Shares
  /api/sync          Fetch windows
  /api/lifecycle/*   Foreground/background
  /api/session/*     Logout
  /api/health        Liveness

SECURITY NOTE:
  No authentication middleware. The session lives in the backend.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/warp/custody-engine/logger"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins ...string) *chi.Mux {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(logger.RequestLogger(h.log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/custody", func(r chi.Router) {
			r.Get("/", h.ListCustody)
			r.Get("/{date}", h.GetCustody)
			r.Post("/{date}/toggle", h.ToggleCustody)
		})

		r.Get("/handoffs/{date}", h.GetHandoff)
		r.Get("/streak", h.GetStreak)
		r.Get("/percentages", h.GetPercentages)

		r.Post("/sync", h.Sync)
		r.Post("/lifecycle/{event}", h.Lifecycle)
		r.Post("/session/logout", h.Logout)

		r.Get("/health", h.Health)
	})

	return r
}
