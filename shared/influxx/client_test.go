package influxx

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"frontdesk-queue-system/shared/config"
)

func TestWritePointSendsLineProtocol(t *testing.T) {
	var (
		body  string
		query string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/write" {
			http.NotFound(w, r)
			return
		}
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		query = r.URL.RawQuery
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c, err := New(config.Config{InfluxURL: srv.URL, InfluxToken: "t", InfluxOrg: "desk", InfluxBucket: "tickets", InfluxTimeoutMS: 2000})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer c.Close()

	ts := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	err = c.WritePoint(context.Background(), "ticket_events", map[string]string{"event_type": "ticket_completed"}, map[string]any{"wait_seconds": 600.0}, ts)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if !strings.HasPrefix(body, "ticket_events,event_type=ticket_completed wait_seconds=600") {
		t.Fatalf("unexpected line protocol %q", body)
	}
	if !strings.Contains(query, "org=desk") || !strings.Contains(query, "bucket=tickets") {
		t.Fatalf("unexpected query %q", query)
	}
}

func TestNewRequiresSettings(t *testing.T) {
	if _, err := New(config.Config{InfluxURL: "http://localhost:8086"}); err == nil {
		t.Fatal("expected error for missing token/org/bucket")
	}
}

func TestNewPointDefaultsTime(t *testing.T) {
	p := NewPoint("m", nil, map[string]any{"v": 1}, time.Time{})
	if p.Time().IsZero() {
		t.Fatal("expected point time to be set")
	}
}

func TestNilClient(t *testing.T) {
	var c *Client
	if err := c.WritePoints(context.Background()); err == nil {
		t.Fatal("expected error from nil client")
	}
	c.Close()
}
