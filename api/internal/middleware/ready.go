package middleware

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"frontdesk-queue-system/shared/httpx"
)

// StoreReadyMiddleware answers 503 while the record store is unreachable.
// Probe results are reused for Interval. Each probe runs detached from the
// request under Timeout, and concurrent stale requests share one probe.
type StoreReadyMiddleware struct {
	Check    func(context.Context) error
	Interval time.Duration
	Timeout  time.Duration
	Skip     func(*http.Request) bool
}

const defaultProbeTimeout = 2 * time.Second

func (m StoreReadyMiddleware) Wrap(next http.Handler) http.Handler {
	if m.Check == nil {
		return next
	}
	timeout := m.Timeout
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	p := &probe{check: m.Check, interval: m.Interval, timeout: timeout, now: time.Now}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Skip != nil && m.Skip(r) {
			next.ServeHTTP(w, r)
			return
		}
		if err := p.run(r.Context()); err != nil {
			httpx.WriteError(w, r, http.StatusServiceUnavailable, "UNAVAILABLE", "record store unavailable", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type probe struct {
	mu         sync.Mutex
	flight     singleflight.Group
	check      func(context.Context) error
	interval   time.Duration
	timeout    time.Duration
	now        func() time.Time
	checked    time.Time
	err        error
	refreshing bool
}

// run never holds the lock across the check. Once a result exists, requests
// arriving during a refresh get that result instead of waiting. Context
// errors are returned but not cached.
func (p *probe) run(ctx context.Context) error {
	p.mu.Lock()
	known := !p.checked.IsZero()
	if known && (p.refreshing || p.now().Sub(p.checked) < p.interval) {
		err := p.err
		p.mu.Unlock()
		return err
	}
	p.refreshing = true
	p.mu.Unlock()

	v, _, _ := p.flight.Do("check", func() (any, error) {
		checkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
		defer cancel()
		err := p.check(checkCtx)

		p.mu.Lock()
		defer p.mu.Unlock()
		p.refreshing = false
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err, nil
		}
		p.err, p.checked = err, p.now()
		return err, nil
	})
	err, _ := v.(error)
	return err
}
