// Package health serves liveness and readiness probes.
//
// Checks run on demand when a probe arrives, concurrently and each under its
// own timeout. Readiness additionally requires the service to be marked ready.
package health

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"golang.org/x/sync/errgroup"
)

// CheckFunc reports nil when the checked dependency is usable.
type CheckFunc func(ctx context.Context) error

type check struct {
	name    string
	timeout time.Duration
	fn      CheckFunc
}

// Health is a registry of probe checks.
type Health struct {
	ready atomic.Bool

	mu     sync.RWMutex
	live   []check
	probes []check
}

// New returns a Health that is not ready yet.
func New() *Health {
	return &Health{}
}

// AddLivenessCheck registers a check failing /livez.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.live = append(h.live, check{name: name, timeout: timeout, fn: fn})
}

// AddReadinessCheck registers a check failing /readyz, e.g. database ping.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.probes = append(h.probes, check{name: name, timeout: timeout, fn: fn})
}

// SetReady flips the manual readiness gate. Set false on shutdown to drain.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// Live runs liveness checks and returns failures by check name.
func (h *Health) Live(ctx context.Context) map[string]string {
	h.mu.RLock()
	checks := append([]check(nil), h.live...)
	h.mu.RUnlock()

	return run(ctx, checks)
}

// Ready runs readiness checks and returns failures by check name.
func (h *Health) Ready(ctx context.Context) map[string]string {
	h.mu.RLock()
	checks := append([]check(nil), h.probes...)
	h.mu.RUnlock()

	failures := run(ctx, checks)
	if !h.ready.Load() {
		failures["service"] = "not ready"
	}
	return failures
}

// LiveEndpoint serves /livez.
func (h *Health) LiveEndpoint(w http.ResponseWriter, r *http.Request) {
	writeStatus(w, h.Live(r.Context()))
}

// ReadyEndpoint serves /readyz.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, r *http.Request) {
	writeStatus(w, h.Ready(r.Context()))
}

func run(ctx context.Context, checks []check) map[string]string {
	var (
		mu       sync.Mutex
		failures = make(map[string]string)
	)
	g, ctx := errgroup.WithContext(ctx)
	for _, c := range checks {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()

			err := c.fn(cctx)
			if err == nil && cctx.Err() != nil {
				err = errors.Wrap(cctx.Err(), "check")
			}
			if err != nil {
				mu.Lock()
				failures[c.name] = err.Error()
				mu.Unlock()
			}
			// Failures are collected, not propagated, so every check reports.
			return nil
		})
	}
	_ = g.Wait()
	return failures
}

// writeStatus renders {"status":"ok"} or 503 with the failing checks.
func writeStatus(w http.ResponseWriter, failures map[string]string) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	status := http.StatusOK
	e.ObjStart()
	e.FieldStart("status")
	if len(failures) == 0 {
		e.Str("ok")
	} else {
		status = http.StatusServiceUnavailable
		e.Str("unhealthy")

		names := make([]string, 0, len(failures))
		for name := range failures {
			names = append(names, name)
		}
		sort.Strings(names)

		e.FieldStart("checks")
		e.ObjStart()
		for _, name := range names {
			e.FieldStart(name)
			e.Str(failures[name])
		}
		e.ObjEnd()
	}
	e.ObjEnd()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
