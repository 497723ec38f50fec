package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	limiter "github.com/ulule/limiter/v3"
	limiterstdlib "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/krishamaze/repairshop-api/internal/booking"
	"github.com/krishamaze/repairshop-api/internal/catalog"
	"github.com/krishamaze/repairshop-api/internal/config"
	"github.com/krishamaze/repairshop-api/internal/events"
	"github.com/krishamaze/repairshop-api/internal/health"
	"github.com/krishamaze/repairshop-api/internal/obs"
	"github.com/krishamaze/repairshop-api/internal/resilience"
)

const serviceName = "repairshop-api"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := zerolog.New(os.Stderr)
		fallback.Fatal().Err(err).Msg("config load failed")
	}
	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("service", serviceName).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled {
		shutdown, err := obs.InitTracer(ctx, obs.TracingConfig{
			ServiceName: serviceName,
			Endpoint:    cfg.OTLPEndpoint,
			Environment: cfg.AppEnv,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("tracer init failed")
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(shutdownCtx)
		}()
	}

	if err := runMigrations(cfg); err != nil {
		logger.Fatal().Err(err).Msg("migrations failed")
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("postgres ping failed")
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid REDIS_URL")
	}
	rdb := redis.NewClient(redisOpts)
	defer func() { _ = rdb.Close() }()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("redis ping failed")
	}
	if cfg.TracingEnabled {
		if err := redisotel.InstrumentTracing(rdb); err != nil {
			logger.Warn().Err(err).Msg("redis tracing instrumentation failed")
		}
	}

	registry := prometheus.NewRegistry()
	var httpMetrics *obs.HTTPMetrics
	var quoteMetrics *obs.QuoteMetrics
	if cfg.MetricsEnabled {
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		httpMetrics = obs.NewHTTPMetrics("repairshop", registry)
		quoteMetrics = obs.NewQuoteMetrics("repairshop", registry)
	}

	catalogClient := buildCatalogClient(cfg, rdb)

	bus := &events.Bus{
		Store:     events.PGStore{Pool: pool},
		Notifiers: []events.Notifier{events.LogNotifier{Logger: logger}},
	}

	svc := &booking.Service{
		Store:   booking.PGStore{Pool: pool},
		Catalog: catalogClient,
		Events:  bus,
		Logger:  logger,
		Metrics: quoteMetrics,
	}

	router := buildRouter(cfg, logger, httpMetrics, registry, rdb, pool, svc, catalogClient)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Str("env", cfg.AppEnv).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func runMigrations(cfg *config.Config) error {
	m, err := migrate.New("file://"+cfg.MigrationsDir, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() { _, _ = m.Close() }()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func buildCatalogClient(cfg *config.Config, rdb *redis.Client) catalog.Client {
	var client catalog.Client
	if cfg.CatalogUseMock {
		client = catalog.MockClient{}
	} else {
		client = catalog.HTTPClient{
			BaseURL: cfg.CatalogBaseURL,
			Doer: resilience.HTTPClient{
				Client:      &http.Client{Timeout: cfg.CatalogTimeout},
				Breaker:     resilience.NewBreaker(5, 30*time.Second),
				MaxAttempts: cfg.CatalogMaxAttempts,
				BaseBackoff: 100 * time.Millisecond,
				Jitter:      0.2,
			},
		}
	}
	return catalog.CachedClient{Inner: client, Cache: catalog.NewCache(rdb, cfg.CatalogCacheTTL)}
}

func buildRouter(
	cfg *config.Config,
	logger zerolog.Logger,
	httpMetrics *obs.HTTPMetrics,
	registry *prometheus.Registry,
	rdb *redis.Client,
	pool *pgxpool.Pool,
	svc *booking.Service,
	catalogClient catalog.Client,
) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if cfg.TracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	if httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSAllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	healthHandler := health.NewHandler(pool, rdb)
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)
	if cfg.MetricsEnabled {
		r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(rateLimitMiddleware(cfg, rdb, logger))
		booking.NewHandler(svc).Routes(api)
		api.Get("/spares", catalog.Handler{Client: catalogClient}.SpareOptions)
	})
	return r
}

func rateLimitMiddleware(cfg *config.Config, rdb *redis.Client, logger zerolog.Logger) func(http.Handler) http.Handler {
	store, err := limiterredis.NewStoreWithOptions(rdb, limiter.StoreOptions{Prefix: "ratelimit"})
	if err != nil {
		logger.Warn().Err(err).Msg("rate limit store unavailable, limiter disabled")
		return func(next http.Handler) http.Handler { return next }
	}
	rate := limiter.Rate{Period: time.Minute, Limit: int64(cfg.RateLimitPerMin)}
	return limiterstdlib.NewMiddleware(limiter.New(store, rate)).Handler
}
