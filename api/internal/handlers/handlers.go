// Package handlers exposes the ticket and appointment engine and the record
// store over HTTP.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"frontdesk-queue-system/core/lifecycle"
	"frontdesk-queue-system/core/stats"
	"frontdesk-queue-system/core/store"
	"frontdesk-queue-system/shared/httpx"
	"frontdesk-queue-system/shared/logx"
)

// StatsKey is where the stats worker caches the latest snapshot.
const StatsKey = "frontdesk:stats:today"

// StatsCache reads a snapshot cached by the stats worker.
type StatsCache interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
}

type Option func(*Handlers)

func WithStatsCache(c StatsCache) Option {
	return func(h *Handlers) { h.statsCache = c }
}

// WithReadiness sets the probe behind /readyz.
func WithReadiness(check func(context.Context) error) Option {
	return func(h *Handlers) { h.ready = check }
}

func WithClock(now func() time.Time) Option {
	return func(h *Handlers) { h.now = now }
}

func WithLocation(loc *time.Location) Option {
	return func(h *Handlers) {
		if loc != nil {
			h.location = loc
		}
	}
}

type Handlers struct {
	engine     *lifecycle.Engine
	store      store.Store
	logger     logx.Logger
	statsCache StatsCache
	ready      func(context.Context) error
	now        func() time.Time
	location   *time.Location
}

func New(engine *lifecycle.Engine, s store.Store, logger logx.Logger, opts ...Option) *Handlers {
	h := &Handlers{
		engine:   engine,
		store:    s,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		location: time.UTC,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.healthz)
	mux.HandleFunc("GET /readyz", h.readyz)

	mux.HandleFunc("POST /api/v1/tickets", h.submitTicket)
	mux.HandleFunc("GET /api/v1/tickets", h.listTickets)
	mux.HandleFunc("GET /api/v1/tickets/{id}", h.getTicket)
	mux.HandleFunc("GET /api/v1/tickets/{id}/status", h.ticketStatus)
	mux.HandleFunc("POST /api/v1/tickets/{id}/route", h.routeTicket)
	mux.HandleFunc("POST /api/v1/tickets/{id}/assign", h.assignTicket)
	mux.HandleFunc("POST /api/v1/tickets/{id}/handle", h.handleTicket)
	mux.HandleFunc("POST /api/v1/tickets/{id}/resolve", h.resolveTicket)
	mux.HandleFunc("POST /api/v1/tickets/{id}/cancel", h.cancelTicket)
	mux.HandleFunc("GET /api/v1/suggestions", h.suggestions)

	mux.HandleFunc("POST /api/v1/appointments", h.scheduleAppointment)
	mux.HandleFunc("GET /api/v1/appointments", h.listAppointments)
	mux.HandleFunc("GET /api/v1/appointments/{id}", h.getAppointment)
	mux.HandleFunc("PATCH /api/v1/appointments/{id}", h.updateAppointment)
	mux.HandleFunc("DELETE /api/v1/appointments/{id}", h.deleteAppointment)

	mux.HandleFunc("GET /api/v1/staff", h.listStaff)
	mux.HandleFunc("GET /api/v1/staff/available", h.listAvailableStaff)
	mux.HandleFunc("PUT /api/v1/staff/{id}/availability", h.setAvailability)

	mux.HandleFunc("GET /api/v1/notifications", h.listNotifications)
	mux.HandleFunc("POST /api/v1/notifications/{id}/read", h.markNotificationRead)

	mux.HandleFunc("GET /api/v1/activity", h.listActivity)
	mux.HandleFunc("GET /api/v1/stats", h.stats)
}

func (h *Handlers) healthz(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) readyz(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(r.Context()); err != nil {
			h.logger.Warn(r.Context(), "readiness_failed", "readiness probe failed",
				slog.String("error_code", "UNAVAILABLE"),
				slog.String("error", err.Error()),
			)
			httpx.WriteError(w, r, http.StatusServiceUnavailable, "UNAVAILABLE", "not ready", nil)
			return
		}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type listResponse[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

func writeList[T any](w http.ResponseWriter, items []T) {
	if items == nil {
		items = []T{}
	}
	httpx.WriteJSON(w, http.StatusOK, listResponse[T]{Items: items, Count: len(items)})
}

// writeErr maps engine and store errors onto the error envelope.
func (h *Handlers) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	var verr *lifecycle.ValidationError
	switch {
	case errors.As(err, &verr):
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "validation failed", verr.Fields)
	case errors.Is(err, lifecycle.ErrValidation):
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error(), nil)
	case errors.Is(err, store.ErrNotFound):
		httpx.WriteError(w, r, http.StatusNotFound, "NOT_FOUND", "resource not found", nil)
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		httpx.WriteError(w, r, http.StatusConflict, "FAILED_PRECONDITION", err.Error(), nil)
	case errors.Is(err, store.ErrConflict):
		httpx.WriteError(w, r, http.StatusConflict, "ABORTED", "record was modified concurrently, retry", nil)
	case errors.Is(err, context.DeadlineExceeded):
		httpx.WriteError(w, r, http.StatusGatewayTimeout, "TIMEOUT", "request timeout", nil)
	default:
		h.logger.Error(r.Context(), "request_failed", "request failed",
			slog.String("request_id", httpx.RequestIDFromContext(r.Context())),
			slog.String("path", r.URL.Path),
			slog.String("error_code", "INTERNAL_ERROR"),
			slog.String("error", err.Error()),
		)
		httpx.WriteError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error", nil)
	}
}

func (h *Handlers) badRequest(w http.ResponseWriter, r *http.Request, err error) {
	httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error(), nil)
}

// queryBool treats an absent parameter as false.
func queryBool(r *http.Request, key string) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, errors.New(key + " must be a boolean")
	}
	return v, nil
}

func (h *Handlers) today() time.Time {
	return h.now().In(h.location)
}

func (h *Handlers) cachedStats(ctx context.Context) (stats.Snapshot, bool) {
	if h.statsCache == nil {
		return stats.Snapshot{}, false
	}
	var snap stats.Snapshot
	found, err := h.statsCache.GetJSON(ctx, StatsKey, &snap)
	if err != nil {
		h.logger.Warn(ctx, "stats_cache_failed", "stats cache read failed",
			slog.String("error_code", "UNAVAILABLE"),
			slog.String("error", err.Error()),
		)
		return stats.Snapshot{}, false
	}
	return snap, found
}
