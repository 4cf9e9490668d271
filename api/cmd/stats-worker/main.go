package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"frontdesk-queue-system/api/internal/repos"
	"frontdesk-queue-system/core/lifecycle"
	"frontdesk-queue-system/shared/cachex"
	"frontdesk-queue-system/shared/config"
	"frontdesk-queue-system/shared/dbx"
	"frontdesk-queue-system/shared/influxx"
	"frontdesk-queue-system/shared/logx"
	"frontdesk-queue-system/shared/metricsx"
	"frontdesk-queue-system/shared/mqx"
	"frontdesk-queue-system/shared/observability"
)

func main() {
	cfg, problems := config.Load("stats-worker", 8084)
	logger := logx.New(cfg.ServiceName, cfg.Env, cfg.Version, cfg.LogLevel)

	if cfg.DatabaseURL == "" {
		problems = append(problems, config.Problem{Field: "DATABASE_URL", Message: "DATABASE_URL is required"})
	}
	if cfg.RedisAddr == "" {
		problems = append(problems, config.Problem{Field: "REDIS_ADDR", Message: "REDIS_ADDR is required"})
	}
	if len(problems) > 0 {
		logger.Error(context.Background(), "config_invalid", "invalid config",
			slog.String("error_code", "FAILED_PRECONDITION"),
			slog.Any("problems", problems),
		)
		os.Exit(1)
	}

	if shutdown, err := observability.InitTracer(context.Background(), observability.TracerConfig{
		ServiceName: cfg.ServiceName,
		Env:         cfg.Env,
		Version:     cfg.Version,
		Endpoint:    cfg.OtelEndpoint,
		Insecure:    cfg.OtelInsecure,
		SampleRatio: cfg.OtelSampleRatio,
	}); err == nil {
		defer func() { _ = shutdown(context.Background()) }()
	}
	metricsx.Register()

	dbPool, err := dbx.NewPool(context.Background(), cfg)
	if err != nil {
		logger.Error(context.Background(), "db_init_failed", "db init failed",
			slog.String("error_code", "FAILED_PRECONDITION"),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	defer dbPool.Close()

	cacheClient, err := cachex.New(cfg)
	if err != nil {
		logger.Error(context.Background(), "redis_init_failed", "redis init failed",
			slog.String("error_code", "FAILED_PRECONDITION"),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	defer cacheClient.Close()

	s := snapshotter{
		source: lifecycle.New(repos.NewStore(dbPool),
			lifecycle.WithLogger(logger),
			lifecycle.WithLocation(cfg.Location),
		),
		cache:  cacheClient,
		ttl:    time.Duration(cfg.StatsCacheTTLSec) * time.Second,
		logger: logger,
	}

	if cfg.InfluxURL != "" {
		influxClient, err := influxx.New(cfg)
		if err != nil {
			logger.Warn(context.Background(), "influx_init_failed", "influx init failed",
				slog.String("error_code", "FAILED_PRECONDITION"),
				slog.String("error", err.Error()),
			)
		} else {
			defer influxClient.Close()
			s.points = influxClient
		}
	}
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := mqx.NewProducer(cfg)
		if err != nil {
			logger.Warn(context.Background(), "kafka_init_failed", "kafka producer init failed",
				slog.String("error_code", "FAILED_PRECONDITION"),
				slog.String("error", err.Error()),
			)
		} else {
			defer producer.Close()
			s.producer = producer
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	interval := time.Duration(cfg.StatsIntervalSec) * time.Second
	logger.Info(ctx, "worker_start", "stats worker started",
		slog.Int("interval_seconds", cfg.StatsIntervalSec),
		slog.Int("cache_ttl_seconds", cfg.StatsCacheTTLSec),
		slog.Bool("influx_enabled", s.points != nil),
		slog.Bool("kafka_enabled", s.producer != nil),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := tick(ctx, cacheClient.Client(), interval, s); err != nil && ctx.Err() == nil {
			logger.Error(ctx, "stats_snapshot_failed", "stats snapshot failed",
				slog.String("error_code", "INTERNAL_ERROR"),
				slog.String("error", err.Error()),
			)
		}
		select {
		case <-ctx.Done():
			logger.Info(context.Background(), "worker_stop", "stats worker stopped")
			return
		case <-ticker.C:
		}
	}
}
