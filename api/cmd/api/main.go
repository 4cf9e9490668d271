package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"frontdesk-queue-system/api/internal/handlers"
	"frontdesk-queue-system/api/internal/middleware"
	"frontdesk-queue-system/api/internal/repos"
	"frontdesk-queue-system/core/lifecycle"
	"frontdesk-queue-system/core/models"
	"frontdesk-queue-system/core/notify"
	"frontdesk-queue-system/core/sample"
	"frontdesk-queue-system/core/store"
	"frontdesk-queue-system/core/store/memory"
	"frontdesk-queue-system/shared/cachex"
	"frontdesk-queue-system/shared/config"
	"frontdesk-queue-system/shared/dbx"
	"frontdesk-queue-system/shared/httpx"
	"frontdesk-queue-system/shared/logx"
	"frontdesk-queue-system/shared/metricsx"
	"frontdesk-queue-system/shared/observability"
)

func main() {
	cfg, problems := config.Load("frontdesk-api", 8080)
	logger := logx.New(cfg.ServiceName, cfg.Env, cfg.Version, cfg.LogLevel)
	ctx := context.Background()

	if len(problems) > 0 {
		for _, p := range problems {
			logger.Error(ctx, "config_problem", p.Message,
				slog.String("error_code", "FAILED_PRECONDITION"),
				slog.String("field", p.Field),
			)
		}
		os.Exit(1)
	}

	shutdownTracer, err := observability.InitTracer(ctx, observability.TracerConfig{
		ServiceName: cfg.ServiceName,
		Env:         cfg.Env,
		Version:     cfg.Version,
		Endpoint:    cfg.OtelEndpoint,
		Insecure:    cfg.OtelInsecure,
		SampleRatio: cfg.OtelSampleRatio,
	})
	if err != nil {
		logger.Warn(ctx, "tracer_init_failed", "tracing disabled", slog.String("error", err.Error()))
		shutdownTracer = func(context.Context) error { return nil }
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	metricsx.Register()

	var (
		recordStore store.Store
		publisher   lifecycle.Publisher
		readiness   func(context.Context) error
		closeStore  = func() {}
	)
	switch cfg.StoreBackend {
	case config.StoreBackendPostgres:
		if cfg.DBMigrate {
			applied, err := dbx.Migrate(cfg.DatabaseURL)
			if err != nil {
				fatal(logger, "db_migrate_failed", "schema migration failed", err)
			}
			logger.Info(ctx, "db_migrated", "schema migrations checked", slog.Bool("applied", applied))
		}
		pool, err := dbx.NewPool(ctx, cfg)
		if err != nil {
			fatal(logger, "db_init_failed", "database init failed", err)
		}
		closeStore = pool.Close
		recordStore = repos.NewStore(pool, repos.WithActivityLimit(cfg.ActivityLogLimit))
		publisher = repos.NewOutboxPublisher(repos.NewOutboxRepo(pool), cfg.KafkaTicketTopic)
		readiness = func(ctx context.Context) error { return dbx.Ping(ctx, pool) }
	default:
		recordStore = memory.New(memory.WithActivityLimit(cfg.ActivityLogLimit))
	}
	defer closeStore()

	engineOpts := []lifecycle.Option{
		lifecycle.WithLogger(logger),
		lifecycle.WithSink(notify.LogSink{Logger: logger}),
		lifecycle.WithLocation(cfg.Location),
		lifecycle.WithReceptionist(models.Actor{ID: cfg.ReceptionistID, Name: cfg.ReceptionistName}),
		lifecycle.WithSuggestionLimit(cfg.SuggestionLimit),
	}
	if publisher != nil {
		engineOpts = append(engineOpts, lifecycle.WithPublisher(publisher))
	}
	engine := lifecycle.New(recordStore, engineOpts...)

	if cfg.SeedSampleData {
		res, err := sample.Seed(ctx, recordStore, engine)
		if err != nil {
			fatal(logger, "seed_failed", "sample data seeding failed", err)
		}
		logger.Info(ctx, "sample_seeded", "sample data checked",
			slog.Int("staff_added", res.StaffAdded),
			slog.Int("visitors_added", res.VisitorsAdded),
		)
	}

	handlerOpts := []handlers.Option{
		handlers.WithLocation(cfg.Location),
		handlers.WithReadiness(readiness),
	}
	if cfg.RedisAddr != "" {
		cache, err := cachex.New(cfg)
		if err != nil {
			fatal(logger, "redis_init_failed", "redis client init failed", err)
		}
		defer cache.Close()
		if err := cache.Ping(ctx); err != nil {
			logger.Warn(ctx, "redis_unreachable", "stats cache unreachable, serving live stats",
				slog.String("error", err.Error()),
			)
		}
		handlerOpts = append(handlerOpts, handlers.WithStatsCache(cache))
	}

	mux := http.NewServeMux()
	handlers.New(engine, recordStore, logger, handlerOpts...).Register(mux)
	mux.Handle("GET /metrics", metricsx.Handler())

	notFound := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteError(w, r, http.StatusNotFound, "NOT_FOUND", "route not found", nil)
	})
	probePaths := func(r *http.Request) bool {
		return r.URL.Path == "/healthz" || r.URL.Path == "/readyz" || r.URL.Path == "/metrics"
	}

	handler := httpx.WrapServeMux(mux, notFound)
	handler = middleware.StoreReadyMiddleware{
		Check:    readiness,
		Interval: 2 * time.Second,
		Skip:     probePaths,
	}.Wrap(handler)
	handler = middleware.RateLimitMiddleware{
		Limiter: middleware.NewIPRateLimiter(cfg.SubmitRateRPS, cfg.SubmitRateBurst, 10*time.Minute),
		Match: func(r *http.Request) bool {
			return r.Method == http.MethodPost && r.URL.Path == "/api/v1/tickets"
		},
	}.Wrap(handler)
	handler = middleware.CORSMiddleware{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		MaxAge:         10 * time.Minute,
		Skip:           probePaths,
	}.Wrap(handler)
	handler = metricsx.Instrument(handler)
	handler = httpx.WithTimeout(cfg.RequestTimeout, handler)
	handler = httpx.WithRequestID(handler)
	handler = httpx.WithRecover(logger, handler)
	handler = httpx.WithRequestLog(logger, httpx.RequestLogOptions{SkipPaths: map[string]bool{"/healthz": true, "/metrics": true}}, handler)
	handler = otelhttp.NewHandler(handler, "frontdesk-api")

	server := &http.Server{
		Addr:              net.JoinHostPort("", strconv.Itoa(cfg.HTTPPort)),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "service_start", "starting service",
			slog.String("addr", server.Addr),
			slog.String("store_backend", cfg.StoreBackend),
			slog.String("log_level", cfg.LogLevel),
			slog.Int("request_timeout_ms", cfg.RequestTimeoutMS),
		)
		errCh <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info(ctx, "shutdown_signal", "received signal", slog.String("signal", sig.String()))
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "server_failed", "server failed",
				slog.String("error_code", "INTERNAL_ERROR"),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeoutSec)*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "shutdown_failed", "shutdown failed",
			slog.String("error_code", "INTERNAL_ERROR"),
			slog.String("error", err.Error()),
		)
	}
	logger.Info(ctx, "service_stop", "service stopped")
}

func fatal(logger logx.Logger, event string, msg string, err error) {
	logger.Error(context.Background(), event, msg,
		slog.String("error_code", "FAILED_PRECONDITION"),
		slog.String("error", err.Error()),
	)
	os.Exit(1)
}
