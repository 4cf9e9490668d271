package logx

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestLoggerWritesEventAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "frontdesk-api", "test", "v1", "info")

	logger.With(slog.String("request_id", "req-1")).Info(context.Background(), "ticket_submitted", "ticket submitted", slog.String("ticket_number", "V123456001"))

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log record: %v", err)
	}
	if rec["event"] != "ticket_submitted" {
		t.Fatalf("expected event ticket_submitted, got %v", rec["event"])
	}
	for key, want := range map[string]string{
		"service":       "frontdesk-api",
		"version":       "v1",
		"request_id":    "req-1",
		"ticket_number": "V123456001",
		"message":       "ticket submitted",
	} {
		if rec[key] != want {
			t.Fatalf("expected %s=%q, got %v", key, want, rec[key])
		}
	}
}

func TestLoggerWritesSingleEventKey(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "frontdesk-api", "test", "", "info")

	logger.Info(context.Background(), "ticket_submitted", "ticket submitted")

	if n := strings.Count(buf.String(), `"event":`); n != 1 {
		t.Fatalf("expected one event key, got %d in %s", n, buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log record: %v", err)
	}
	if rec["event"] != "ticket_submitted" || rec["message"] != "ticket submitted" {
		t.Fatalf("unexpected event/message: %v / %v", rec["event"], rec["message"])
	}
}

func TestLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "svc", "test", "", "warn")
	logger.Info(context.Background(), "noise", "dropped")
	if buf.Len() != 0 {
		t.Fatalf("expected info record to be filtered, got %s", buf.String())
	}
}

func TestZeroLoggerDoesNotPanic(t *testing.T) {
	var logger Logger
	logger.Error(context.Background(), "anything", "zero value logger")
}
