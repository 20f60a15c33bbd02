package gateway

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/divyang-garg/astra-guardrails/internal/config"
	"github.com/divyang-garg/astra-guardrails/internal/editor"
	"github.com/divyang-garg/astra-guardrails/internal/repairdriver"
)

// NewRouter builds the gateway's chi router: RequestID and Recoverer first
// (mirroring router.go's "tracing must be first" convention, Recoverer
// standing in for the teacher's custom RecoveryMiddleware), then CORS and
// metrics, then routes. /repair is additionally guarded by a rate limiter
// since it's the one potentially expensive, iterative operation.
func NewRouter(cfg *config.Config, svc *editor.Service, driver *repairdriver.Driver, logger zerolog.Logger, m *Metrics) *chi.Mux {
	h := &Handlers{Editor: svc, Driver: driver, Logger: logger, Metrics: m}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
	}))
	if cfg.MetricsEnabled && m != nil {
		r.Use(m.Middleware)
	}

	r.Get("/health", Health)
	if cfg.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Post("/documents", h.DidOpen)
	r.Get("/diagnostics", h.Diagnostics)
	r.Get("/format", h.Format)
	r.Get("/codeActions", h.CodeActions)
	r.Post("/run", h.Run)
	r.Post("/test", h.Test)

	r.Group(func(r chi.Router) {
		r.Use(RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
		r.Post("/repair", h.Repair)
	})

	return r
}
