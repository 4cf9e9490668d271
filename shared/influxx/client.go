package influxx

import (
	"context"
	"errors"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"frontdesk-queue-system/shared/config"
)

type Client struct {
	client influxdb2.Client
	org    string
	bucket string
}

func New(cfg config.Config) (*Client, error) {
	if cfg.InfluxURL == "" || cfg.InfluxToken == "" || cfg.InfluxOrg == "" || cfg.InfluxBucket == "" {
		return nil, errors.New("INFLUX_URL/INFLUX_TOKEN/INFLUX_ORG/INFLUX_BUCKET are required")
	}
	timeoutSec := cfg.InfluxTimeoutMS / 1000
	if timeoutSec < 1 {
		timeoutSec = 1
	}
	opts := influxdb2.DefaultOptions().
		SetHTTPRequestTimeout(uint(timeoutSec))
	client := influxdb2.NewClientWithOptions(cfg.InfluxURL, cfg.InfluxToken, opts)
	return &Client{client: client, org: cfg.InfluxOrg, bucket: cfg.InfluxBucket}, nil
}

// NewPoint stamps zero times with the current UTC time.
func NewPoint(measurement string, tags map[string]string, fields map[string]any, ts time.Time) *write.Point {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return influxdb2.NewPoint(measurement, tags, fields, ts)
}

func (c *Client) WritePoint(ctx context.Context, measurement string, tags map[string]string, fields map[string]any, ts time.Time) error {
	return c.WritePoints(ctx, NewPoint(measurement, tags, fields, ts))
}

func (c *Client) WritePoints(ctx context.Context, points ...*write.Point) error {
	if c == nil || c.client == nil {
		return errors.New("influx client not initialized")
	}
	if len(points) == 0 {
		return nil
	}
	return c.client.WriteAPIBlocking(c.org, c.bucket).WritePoint(ctx, points...)
}

func (c *Client) Close() {
	if c == nil || c.client == nil {
		return
	}
	c.client.Close()
}
