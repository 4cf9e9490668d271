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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"frontdesk-queue-system/shared/config"
	"frontdesk-queue-system/shared/influxx"
	"frontdesk-queue-system/shared/logx"
	"frontdesk-queue-system/shared/metricsx"
	"frontdesk-queue-system/shared/mqx"
	"frontdesk-queue-system/shared/observability"
)

func main() {
	cfg, problems := config.Load("ticket-events-consumer", 8082)
	logger := logx.New(cfg.ServiceName, cfg.Env, cfg.Version, cfg.LogLevel)

	if len(cfg.KafkaBrokers) == 0 {
		problems = append(problems, config.Problem{Field: "KAFKA_BROKERS", Message: "KAFKA_BROKERS is required"})
	}
	if cfg.KafkaGroupID == "" {
		problems = append(problems, config.Problem{Field: "KAFKA_GROUP_ID", Message: "KAFKA_GROUP_ID is required"})
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

	var writer pointWriter
	if cfg.InfluxURL != "" {
		influxClient, err := influxx.New(cfg)
		if err != nil {
			logger.Error(context.Background(), "influx_init_failed", "influx client init failed",
				slog.String("error_code", "FAILED_PRECONDITION"),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
		defer influxClient.Close()
		writer = influxClient
	} else {
		logger.Warn(context.Background(), "influx_disabled", "INFLUX_URL not set, analytics points are dropped")
	}

	topic := cfg.KafkaTicketTopic
	reader, err := mqx.NewConsumer(cfg, topic, cfg.KafkaGroupID)
	if err != nil {
		logger.Error(context.Background(), "kafka_init_failed", "kafka reader init failed",
			slog.String("error_code", "FAILED_PRECONDITION"),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	defer reader.Close()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("GET /metrics", metricsx.Handler())
	metricsServer := &http.Server{
		Addr:              net.JoinHostPort("", strconv.Itoa(cfg.HTTPPort)),
		Handler:           metricsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn(context.Background(), "metrics_server_failed", "metrics listener stopped",
				slog.String("error", err.Error()),
			)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	logger.Info(ctx, "consumer_start", "ticket events consumer started",
		slog.String("topic", topic),
		slog.String("group", cfg.KafkaGroupID),
		slog.Bool("influx_enabled", writer != nil),
	)

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				break
			}
			logger.Error(ctx, "kafka_fetch_failed", "failed to fetch message",
				slog.String("error_code", "INTERNAL_ERROR"),
				slog.String("error", err.Error()),
			)
			time.Sleep(500 * time.Millisecond)
			continue
		}

		spanCtx, span := otel.Tracer("mqx").Start(ctx, "kafka.consume")
		span.SetAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", topic),
			attribute.String("event_type", mqx.HeaderValue(msg, "event_type")),
		)
		err = handleTicketEvent(spanCtx, writer, msg)
		switch {
		case errors.Is(err, errSkipped):
		case err != nil:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.End()
			logger.Error(ctx, "event_handle_failed", "failed to handle event",
				slog.String("error_code", "INTERNAL_ERROR"),
				slog.String("error", err.Error()),
				slog.Int64("offset", msg.Offset),
			)
			continue
		}
		span.End()
		if err := reader.CommitMessages(ctx, msg); err != nil {
			logger.Error(ctx, "kafka_commit_failed", "failed to commit message",
				slog.String("error_code", "INTERNAL_ERROR"),
				slog.String("error", err.Error()),
			)
		}
		stats := reader.Stats()
		metricsx.SetKafkaLag(stats.Topic, cfg.KafkaGroupID, stats.Lag)
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeoutSec)*time.Second)
	defer stop()
	_ = metricsServer.Shutdown(shutdownCtx)
	logger.Info(context.Background(), "consumer_stop", "ticket events consumer stopped")
}
