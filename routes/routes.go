package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/upb/access-gate/app"
	"github.com/upb/access-gate/config"
	"github.com/upb/access-gate/handlers"
)

// Gate names used by the sample resources
const (
	GatePublic  = "public"
	GateAccount = "account"
	GateReports = "reports"
	GateEditors = "editors"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Location", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Every request carries a user from here on, anonymous or not
	r.Use(deps.Authenticator.Authenticate)

	health := handlers.NewHealthHandler(nil, deps.Logger)
	if deps.DB != nil {
		health = handlers.NewHealthHandler(deps.DB, deps.Logger)
	}
	r.Get("/health", health.HandleHealth)
	r.Get("/health/ready", health.HandleReadiness)

	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics.Handler())
	}

	limit := rateLimit(deps.Config.Server)

	login := handlers.NewLoginHandler(deps.Config.Gate.RedirectField, deps.Logger)
	r.With(limit).Get("/login/", login.HandleLogin)

	resources := handlers.NewResourceHandler(deps.Logger)
	users := handlers.NewUserHandler(deps.Logger)

	// Browser-facing resources: denied requests are redirected
	r.With(deps.Gates.Require(GatePublic)).Get("/", resources.Serve("home"))
	r.Route("/account", func(r chi.Router) {
		r.Use(deps.Gates.Require(GateAccount))
		r.Get("/", users.HandleMe)
	})
	r.Route("/reports", func(r chi.Router) {
		r.Use(deps.Gates.Require(GateReports))
		r.Get("/", resources.Serve("reports"))
	})
	r.Route("/editors", func(r chi.Router) {
		r.Use(deps.Gates.Require(GateEditors))
		r.Get("/", resources.Serve("editors"))
	})

	// API routes: denied requests get 401/403 JSON
	r.Route(apiPrefix(deps.Config.Gate.APIPrefix), func(r chi.Router) {
		r.Use(limit)
		r.With(deps.APIGates.Require(GateAccount)).Get("/me", users.HandleMe)
		r.With(deps.APIGates.Require(GateReports)).Get("/reports", resources.Serve("reports"))
		r.With(deps.APIGates.Require(GateEditors)).Get("/editors", resources.Serve("editors"))
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"endpoint not found"}`))
	})

	return r
}

// rateLimit limits requests per client IP, or does nothing when disabled
func rateLimit(cfg config.ServerConfig) func(http.Handler) http.Handler {
	if cfg.RateLimitRequests <= 0 {
		return func(next http.Handler) http.Handler {
			return next
		}
	}
	return httprate.LimitByIP(cfg.RateLimitRequests, cfg.RateLimitWindow)
}

// apiPrefix turns "/api/" into the chi mount pattern "/api"
func apiPrefix(prefix string) string {
	prefix = "/" + strings.Trim(prefix, "/")
	if prefix == "/" {
		return "/api"
	}
	return prefix
}
