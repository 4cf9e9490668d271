package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/redis/go-redis/v9"

	"frontdesk-queue-system/api/internal/handlers"
	"frontdesk-queue-system/core/stats"
	"frontdesk-queue-system/shared/events"
	"frontdesk-queue-system/shared/influxx"
	"frontdesk-queue-system/shared/lockx"
	"frontdesk-queue-system/shared/logx"
	"frontdesk-queue-system/shared/metricsx"
)

const (
	statsChannel     = "frontdesk:stats:updates"
	statsMeasurement = "frontdesk_stats"
	statsLockKey     = "frontdesk:stats:lease"
)

type statsSource interface {
	Stats(ctx context.Context) (stats.Snapshot, error)
}

type snapshotCache interface {
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	PublishJSON(ctx context.Context, channel string, value any) (int64, error)
}

type pointWriter interface {
	WritePoints(ctx context.Context, points ...*write.Point) error
}

type rawPublisher interface {
	Publish(ctx context.Context, topic string, key []byte, value []byte, headers map[string]string) error
}

// snapshotter computes today's dashboard numbers and fans them out. Only the
// cache write is required; influx and kafka are best effort.
type snapshotter struct {
	source   statsSource
	cache    snapshotCache
	points   pointWriter
	producer rawPublisher
	ttl      time.Duration
	logger   logx.Logger
}

func (s snapshotter) run(ctx context.Context) (stats.Snapshot, error) {
	snap, err := s.source.Stats(ctx)
	if err != nil {
		return stats.Snapshot{}, fmt.Errorf("compute stats: %w", err)
	}
	if err := s.cache.SetJSON(ctx, handlers.StatsKey, snap, s.ttl); err != nil {
		return snap, fmt.Errorf("cache stats: %w", err)
	}
	if _, err := s.cache.PublishJSON(ctx, statsChannel, snap); err != nil {
		s.logger.Warn(ctx, "stats_notify_failed", "stats update notification failed",
			slog.String("error", err.Error()),
		)
	}

	if s.points != nil {
		if err := s.points.WritePoints(ctx, statsPoint(snap)); err != nil {
			metricsx.IncInfluxWriteFailure()
			s.logger.Warn(ctx, "influx_write_failed", "stats point write failed",
				slog.String("error", err.Error()),
			)
		}
	}
	if s.producer != nil {
		value, err := json.Marshal(snap)
		if err == nil {
			err = s.producer.Publish(ctx, events.TopicStats, []byte("today"), value, map[string]string{
				"generated_at": snap.GeneratedAt.UTC().Format(time.RFC3339Nano),
			})
		}
		if err != nil {
			s.logger.Warn(ctx, "stats_publish_failed", "stats snapshot publish failed",
				slog.String("error", err.Error()),
			)
		}
	}
	return snap, nil
}

// tick runs one snapshot under the shared lease so replicas do not race.
// ran is false when another replica holds the lease.
func tick(ctx context.Context, rdb redis.Cmdable, lease time.Duration, s snapshotter) (bool, error) {
	return lockx.WithLock(ctx, rdb, statsLockKey, lease, func(ctx context.Context) error {
		snap, err := s.run(ctx)
		if err != nil {
			return err
		}
		s.logger.Debug(ctx, "stats_snapshot", "stats snapshot refreshed",
			slog.Int("total", snap.Today.Total),
			slog.Int("waiting", snap.Today.Waiting),
		)
		return nil
	})
}

func statsPoint(snap stats.Snapshot) *write.Point {
	return influxx.NewPoint(statsMeasurement, map[string]string{"peak_hour": snap.PeakHour}, map[string]any{
		"total":                 snap.Today.Total,
		"waiting":               snap.Today.Waiting,
		"in_progress":           snap.Today.InProgress,
		"completed":             snap.Today.Completed,
		"cancelled":             snap.Today.Cancelled,
		"avg_wait_minutes":      snap.AvgWaitMinutes,
		"avg_service_minutes":   snap.AvgServiceMinutes,
		"customer_satisfaction": snap.CustomerSatisfaction,
		"rated_tickets":         snap.RatedTickets,
		"appointments_total":    snap.Appointments.Total,
		"appointments_pending":  snap.Appointments.Scheduled,
		"appointments_done":     snap.Appointments.Completed,
	}, snap.GeneratedAt)
}
