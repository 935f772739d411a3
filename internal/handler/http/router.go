package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/vasiliy-maslov/pharmacy-marketplace/internal/identity"
	"github.com/vasiliy-maslov/pharmacy-marketplace/internal/metrics"
)

// HealthChecker reports whether a backing dependency is reachable.
type HealthChecker func(ctx context.Context) error

type RouterDeps struct {
	Orders    *OrderHandler
	Reviews   *ReviewHandler
	Catalog   *CatalogHandler
	Analytics *AnalyticsHandler
	Auth      *AuthMiddleware
	Health    HealthChecker
}

func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if deps.Health != nil {
			if err := deps.Health(r.Context()); err != nil {
				respondWithJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler())

	deps.Reviews.RegisterPublicRoutes(r)

	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)

		deps.Orders.RegisterRoutes(r)
		deps.Reviews.RegisterRoutes(r)

		r.Route("/admin", func(r chi.Router) {
			r.Use(RequireRole(identity.RoleAdmin))

			deps.Orders.RegisterAdminRoutes(r)
			deps.Reviews.RegisterAdminRoutes(r)
			deps.Catalog.RegisterAdminRoutes(r)
			deps.Analytics.RegisterAdminRoutes(r)
		})
	})

	return r
}
