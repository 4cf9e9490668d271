package httpx

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"frontdesk-queue-system/shared/logx"
)

func TestWithRequestIDKeepsIncomingHeader(t *testing.T) {
	var seen string
	h := WithRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if seen != "abc" || rec.Header().Get(HeaderRequestID) != "abc" {
		t.Fatalf("request id not propagated: ctx=%q header=%q", seen, rec.Header().Get(HeaderRequestID))
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if len(rec.Header().Get(HeaderRequestID)) != 32 {
		t.Fatalf("expected generated id, got %q", rec.Header().Get(HeaderRequestID))
	}
}

func TestWriteErrorEnvelope(t *testing.T) {
	h := WithRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, http.StatusNotFound, "NOT_FOUND", "ticket not found", map[string]string{"id": "t1"})
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "rid-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	var env ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Error.Code != "NOT_FOUND" || env.Error.RequestID != "rid-1" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
}

func TestWithRecover(t *testing.T) {
	var buf bytes.Buffer
	l := logx.NewWithWriter(&buf, "test", "dev", "v0", "info")
	h := WithRecover(l, http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(buf.String(), `"event":"panic"`) || !strings.Contains(buf.String(), "stack") {
		t.Fatalf("panic not logged with stack: %s", buf.String())
	}
}

func TestWithTimeout(t *testing.T) {
	slow := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
		w.WriteHeader(http.StatusOK)
	})
	rec := httptest.NewRecorder()
	WithTimeout(10*time.Millisecond, slow).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("status = %d", rec.Code)
	}

	fast := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusCreated, map[string]string{"ok": "yes"})
	})
	rec = httptest.NewRecorder()
	WithTimeout(time.Second, fast).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusCreated || !strings.Contains(rec.Body.String(), "yes") {
		t.Fatalf("unexpected response %d %s", rec.Code, rec.Body.String())
	}
}

func TestDecodeJSON(t *testing.T) {
	type body struct {
		Name string `json:"name"`
	}
	cases := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{"valid", `{"name":"Jane"}`, false},
		{"empty", ``, true},
		{"unknown field", `{"name":"Jane","age":3}`, true},
		{"trailing object", `{"name":"Jane"}{"name":"Bob"}`, true},
		{"malformed", `{"name":`, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var dst body
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.payload))
			err := DecodeJSON(req, &dst)
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestDecodeJSONEmptyBody(t *testing.T) {
	var dst map[string]any
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	req.ContentLength = -1
	if err := DecodeJSON(req, &dst); !errors.Is(err, ErrEmptyBody) {
		t.Fatalf("expected ErrEmptyBody, got %v", err)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.9:5555"
	if got := ClientIP(req); got != "10.0.0.9" {
		t.Fatalf("peer ip = %q", got)
	}
	req.Header.Set("X-Real-IP", "10.0.0.2")
	if got := ClientIP(req); got != "10.0.0.2" {
		t.Fatalf("real ip = %q", got)
	}
	req.Header.Set("X-Forwarded-For", " 192.168.1.1 , 10.0.0.1")
	if got := ClientIP(req); got != "192.168.1.1" {
		t.Fatalf("forwarded ip = %q", got)
	}
}

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { order = append(order, "handler") }), mw("a"), mw("b"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if strings.Join(order, ",") != "a,b,handler" {
		t.Fatalf("order = %v", order)
	}
}
