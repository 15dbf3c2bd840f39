package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/spotshare/spotshare/internal/api"
	"github.com/spotshare/spotshare/internal/auth"
	"github.com/spotshare/spotshare/internal/config"
	"github.com/spotshare/spotshare/internal/http/csrf"
	"github.com/spotshare/spotshare/internal/http/ratelimit"
	"github.com/spotshare/spotshare/internal/metrics"
	"github.com/spotshare/spotshare/internal/sched"
	"github.com/spotshare/spotshare/internal/store"
)

// NewRouter wires the health, auth, and JSON API routes.
func NewRouter(cfg *config.Config, st store.Store, svc *sched.Service, authService *auth.Service) http.Handler {
	r := chi.NewRouter()

	// Auth endpoints: 5 requests per second, burst of 10
	authRateLimiter := ratelimit.NewIPRateLimiter(rate.Limit(5), 10, 5*time.Minute, cfg.TrustedProxies)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware())

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := st.HealthCheck(ctx); err != nil {
			http.Error(w, "unready", http.StatusServiceUnavailable)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if cfg.PrometheusEnabled {
		r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			metrics.Handler().ServeHTTP(w, r)
		})
	}

	r.Route("/auth", func(r chi.Router) {
		r.Use(authRateLimiter.Middleware())
		r.Get("/login", authService.BeginOAuth)
		r.Get("/callback", authService.HandleOAuthCallback)
	})
	r.With(authService.RequireAuth, csrfForSessions(cfg)).Post("/auth/logout", authService.Logout)

	apiHandler := api.NewHandler(svc, authService, st)

	r.Route("/api", func(r chi.Router) {
		r.Use(authService.RequireAuth)
		r.Use(csrfForSessions(cfg))

		r.Get("/spaces", apiHandler.ListSpaces)
		r.Get("/windows", apiHandler.ListOpenWindows)
		r.Get("/principals", apiHandler.ListPrincipals)
		r.Get("/events", apiHandler.Events)

		r.Post("/spaces/{id}/windows", apiHandler.ProposeWindow)
		r.Post("/proposals/{id}/confirm", apiHandler.ConfirmProposal)
		r.Post("/windows/{id}/claim", apiHandler.ClaimDay)
		r.Post("/windows/{id}/unclaim", apiHandler.Unclaim)
		r.Delete("/windows/{id}", apiHandler.DeleteWindow)

		r.Get("/tokens", apiHandler.ListTokens)
		r.Post("/tokens", apiHandler.MintToken)
		r.Delete("/tokens/{id}", apiHandler.RevokeToken)

		r.Group(func(r chi.Router) {
			r.Use(authService.RequireAdmin)
			r.Post("/spaces", apiHandler.CreateSpace)
			r.Delete("/spaces/{id}", apiHandler.DeleteSpace)
			r.Put("/spaces/{id}/owner", apiHandler.AssignOwner)
			r.Delete("/spaces/{id}/owner", apiHandler.ClearOwner)
		})
	})

	return r
}

// csrfForSessions applies CSRF checks to cookie-authenticated requests only;
// bearer-token clients are not CSRF-able.
func csrfForSessions(cfg *config.Config) func(http.Handler) http.Handler {
	protect := csrf.Middleware(cfg)
	return func(next http.Handler) http.Handler {
		protected := protect(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth.SessionUsesCookies(r) {
				protected.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
