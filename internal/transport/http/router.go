package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/lifelink-api/internal/config"
	"github.com/lifelink-api/internal/domain"
	"github.com/lifelink-api/internal/observability/metrics"
	"github.com/lifelink-api/internal/transport/http/handler"
	appmiddleware "github.com/lifelink-api/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

func passThrough(next http.Handler) http.Handler { return next }

// NewRouter builds and returns the application router. ctx bounds background
// goroutines such as rate-limiter cleanup.
func NewRouter(ctx context.Context, cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(appmiddleware.AccessLog(deps.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authMw := passThrough
	staffOnly := passThrough
	if deps.JWTProvider != nil {
		authMw = appmiddleware.Auth(deps.JWTProvider)
		staffOnly = appmiddleware.RequireRole(domain.RoleAdmin, domain.RoleHospital)
	} else {
		deps.Logger.Warn("no JWT public key configured; API is unauthenticated")
	}

	// 5 requests/second, burst of 10 per client IP on mutations.
	mutationRL := appmiddleware.NewRateLimiter(ctx, rate.Limit(5), 10)

	healthH := handler.NewHealthHandler(deps.Checks)
	donorH := handler.NewDonorHandler(deps.Donors)
	requestH := handler.NewBloodRequestHandler(deps.BloodRequests, deps.Donors)

	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health-check/{action}", healthH.Ping)

		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Route("/donors", func(r chi.Router) {
				r.With(mutationRL.Limit).Post("/", donorH.Register)
				r.Get("/{id}", donorH.Get)
				r.With(mutationRL.Limit).Put("/{id}", donorH.Update)
				r.With(mutationRL.Limit).Put("/{id}/availability", donorH.SetAvailability)
				r.With(mutationRL.Limit).Post("/{id}/donations", donorH.RecordDonation)
			})

			r.Route("/blood-requests", func(r chi.Router) {
				r.Get("/", requestH.ListOpen)
				r.Get("/{id}", requestH.Get)
				r.With(mutationRL.Limit).Post("/{id}/responses", requestH.Respond)

				// Hospital and admin only
				r.Group(func(r chi.Router) {
					r.Use(staffOnly)

					r.With(mutationRL.Limit).Post("/", requestH.Create)
					r.Get("/{id}/matches", requestH.Matches)
					r.Get("/{id}/attempts", requestH.Attempts)
					r.With(mutationRL.Limit).Post("/{id}/dispatch", requestH.Dispatch)
					r.With(mutationRL.Limit).Post("/{id}/fulfill", requestH.Fulfill)
					r.With(mutationRL.Limit).Post("/{id}/cancel", requestH.Cancel)
				})
			})
		})
	})

	return r
}
