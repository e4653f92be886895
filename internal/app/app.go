package app

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-pricing/internal/config"
	"github.com/noah-isme/toko-pricing/internal/health"
	"github.com/noah-isme/toko-pricing/internal/obs"
	"github.com/noah-isme/toko-pricing/internal/pricing"
	"github.com/noah-isme/toko-pricing/internal/ratelimit"
	"github.com/noah-isme/toko-pricing/internal/security"
)

// Dependencies groups the shared services the HTTP surface is built from.
type Dependencies struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Redis   *redis.Client
	Tracing bool
	// Registry defaults to a fresh registry when nil.
	Registry *prometheus.Registry
}

// NewRateLimiter picks the limiter for the configured strategy. Without Redis
// every strategy except "off" falls back to process memory.
func NewRateLimiter(cfg *config.Config, rdb *redis.Client) (ratelimit.Limiter, error) {
	switch cfg.RateLimitStrategy {
	case "off":
		return nil, nil
	case "fixed":
		if rdb != nil {
			return ratelimit.NewRedisStoreLimiter(rdb, "toko:ratelimit:fixed")
		}
	case "sliding", "":
		if rdb != nil {
			return ratelimit.SlidingLimiter{Client: rdb, Prefix: "toko:ratelimit:"}, nil
		}
	default:
		return nil, fmt.Errorf("unknown rate limit strategy %q", cfg.RateLimitStrategy)
	}
	return ratelimit.NewMemoryLimiter("toko:ratelimit", cfg.RateLimitWindow), nil
}

// NewRouter assembles the middleware chain and routes.
func NewRouter(deps Dependencies) (http.Handler, error) {
	cfg := deps.Config
	reg := deps.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	limiter, err := NewRateLimiter(cfg, deps.Redis)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if deps.Tracing {
		r.Use(obs.TracingMiddleware)
	}
	var pricingMetrics *obs.PricingMetrics
	if cfg.Obs.MetricsEnabled {
		buckets := obs.ParseBucketsCSV(cfg.Obs.MetricsBuckets)
		r.Use(obs.HTTPObs{Metrics: obs.NewHTTPMetrics(cfg.Obs.MetricsNamespace, buckets, reg)}.Middleware)
		pricingMetrics = obs.NewPricingMetrics(cfg.Obs.MetricsNamespace, reg)
	}
	r.Use(obs.RequestLogger{Logger: deps.Logger}.Middleware)
	r.Use(security.Headers{Enable: cfg.SecurityHeaders, EnableHSTS: cfg.HSTSEnabled}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(cfg),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		MaxAge:         300,
	}))

	if cfg.Obs.MetricsEnabled {
		r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	}
	if cfg.Obs.PprofEnabled {
		r.Mount(pprofPrefix, protectPprof(newPprofMux(), cfg.Obs.PprofUser, cfg.Obs.PprofPass))
	}

	healthHandler := health.Handler{Probes: map[string]health.Probe{}}
	if deps.Redis != nil {
		healthHandler.Probes["redis"] = health.RedisProbe(deps.Redis)
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	pricingHandler := pricing.NewHandler(pricing.HandlerConfig{
		Logger:            deps.Logger,
		Metrics:           pricingMetrics,
		CurrencyCode:      cfg.CurrencyCode,
		CurrencyPrecision: cfg.CurrencyPrecision,
		TaxBps:            cfg.TaxRateBPS,
		MaxBatch:          cfg.MaxBatch,
		Concurrency:       cfg.BatchConcurrency,
	})

	r.Route("/api/v1/pricing", func(p chi.Router) {
		p.Use(security.BodyLimit{Max: cfg.MaxBodyBytes}.Middleware)
		if limiter != nil {
			p.Use(ratelimit.Handler{
				Limiter: limiter,
				Config:  ratelimit.Config{Key: ratelimit.ByClientIP, Window: cfg.RateLimitWindow, Max: cfg.RateLimitMax},
				OnError: func(err error) {
					deps.Logger.Warn().Err(err).Msg("rate limiter unavailable")
				},
			}.Middleware)
		}
		p.Post("/sale-amount", pricingHandler.SaleAmount)
		p.Post("/sale-amounts", pricingHandler.BatchSaleAmounts)
		p.Post("/quote", pricingHandler.Quote)
	})

	return r, nil
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}
