package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tabulahq/tabula/internal/config"
	"github.com/tabulahq/tabula/internal/definition"
	"github.com/tabulahq/tabula/internal/engine"
	"github.com/tabulahq/tabula/internal/observability"
)

// Dependencies holds all injected dependencies for the HTTP transport layer.
type Dependencies struct {
	Config       *config.Config
	Authenticate func(http.Handler) http.Handler
	Engine       *engine.Engine
	Registry     *definition.Registry
	Metrics      *observability.Metrics
	Logger       *zap.Logger

	// Health, Ready, and MetricsHandler are optional; when nil a minimal
	// default is served so the router works in tests without the full
	// observability wiring.
	Health         http.HandlerFunc
	Ready          http.HandlerFunc
	MetricsHandler http.Handler
}

// NewRouter creates a chi.Router with the full middleware pipeline and all
// route registrations. Health, readiness, and metrics endpoints bypass the
// authentication middleware.
func NewRouter(deps Dependencies) chi.Router {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	// Global middleware: applied to all routes including health.
	r.Use(Recovery(logger))
	r.Use(CORS(deps.Config.Server.CORS))
	r.Use(RequestID)
	r.Use(SecurityHeaders)

	// Public routes — bypass authentication.
	r.Get("/health", handlerOr(deps.Health, defaultHealth))
	r.Get("/ready", handlerOr(deps.Ready, defaultHealth))

	metricsPath := deps.Config.Observability.Metrics.Path
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	if deps.MetricsHandler != nil {
		r.Handle(metricsPath, deps.MetricsHandler)
	}

	// Authenticated routes — full middleware chain.
	auth := deps.Authenticate
	if auth == nil {
		auth = func(next http.Handler) http.Handler { return next }
	}

	r.Group(func(r chi.Router) {
		r.Use(auth)
		r.Use(observability.TracingMiddleware)
		r.Use(BuildActor(deps.Config.Identity.ClaimPaths))
		r.Use(HandlerTimeout(deps.Config.Server.HandlerTimeout.Std()))
		r.Use(RequestLogging(logger))
		if deps.Metrics != nil {
			r.Use(deps.Metrics.MetricsMiddleware)
		}

		r.Route("/api/tables/{table}", func(r chi.Router) {
			r.Get("/permissions", handlePermissions(deps))
			r.Get("/escalations", handleEscalations(deps))
			r.Get("/analytics", handleAnalytics(deps))

			r.Route("/records/{id}", func(r chi.Router) {
				r.Get("/transitions", handleAvailableTransitions(deps))
				r.Post("/transitions/{name}", handleExecuteTransition(deps))
				r.Get("/history", handleHistory(deps))
			})
		})
	})

	return r
}

func handlerOr(h, fallback http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return fallback
}

func defaultHealth(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
