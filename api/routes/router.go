package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/orderflow-backend/api/controllers"
	"github.com/angelmondragon/orderflow-backend/api/middleware"
	"github.com/angelmondragon/orderflow-backend/pkg/config"
	"github.com/angelmondragon/orderflow-backend/pkg/logger"
)

// Dependencies are the resources probed by /health/ready. Redis may be nil;
// Probes adds process specific checks such as a message broker.
type Dependencies struct {
	DB       controllers.Pinger
	Redis    controllers.Pinger
	Probes   map[string]controllers.Pinger
	Registry *prometheus.Registry
}

// NewRouter builds the ops surface: liveness, readiness and Prometheus metrics.
func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	probes := map[string]controllers.Pinger{
		"database": deps.DB,
		"redis":    deps.Redis,
	}
	for name, p := range deps.Probes {
		probes[name] = p
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, probes))
	})

	registry := deps.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	return r
}
