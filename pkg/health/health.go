// Package health provides liveness and readiness probe support. Registered
// checks run periodically in a single background goroutine; the HTTP
// endpoints report the most recent results without re-executing checks.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// CheckFunc is a health check function. It returns nil when the checked
// component is healthy, or an error describing the problem.
type CheckFunc func(ctx context.Context) error

// kind separates liveness from readiness checks.
type kind int

const (
	liveness kind = iota
	readiness
)

type check struct {
	name    string
	kind    kind
	timeout time.Duration
	fn      CheckFunc
}

// Health manages liveness and readiness checks for a service.
type Health struct {
	ready atomic.Bool

	// mu protects checks during registration and failures afterwards.
	// Registration happens before Start; the background loop writes
	// failures, endpoints read them.
	mu       sync.RWMutex
	checks   []check
	failures [2]map[string]string

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Health instance. The service starts in a not-ready state;
// call SetReady(true) once initialization has finished.
func New() *Health {
	return &Health{
		failures: [2]map[string]string{{}, {}},
	}
}

// AddLivenessCheck registers a liveness check: is the process alive and
// functioning (goroutine count, deadlocks).
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.add(check{name: name, kind: liveness, timeout: timeout, fn: fn})
}

// AddReadinessCheck registers a readiness check: can the service take
// traffic (database connectivity, bus connection).
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.add(check{name: name, kind: readiness, timeout: timeout, fn: fn})
}

func (h *Health) add(c check) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, c)
}

// Start launches the background loop running every registered check at the
// given interval. Checks also run once immediately.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	h.done = make(chan struct{})

	go func() {
		defer close(h.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		h.runAll(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				h.runAll(ctx)
			}
		}
	}()
}

func (h *Health) runAll(ctx context.Context) {
	h.mu.RLock()
	checks := h.checks
	h.mu.RUnlock()

	results := [2]map[string]string{{}, {}}
	for _, c := range checks {
		checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
		err := c.fn(checkCtx)
		cancel()
		if err != nil {
			results[c.kind][c.name] = err.Error()
		}
	}

	h.mu.Lock()
	h.failures = results
	h.mu.Unlock()
}

// SetReady sets the manual readiness flag. It is flipped to false during
// graceful shutdown so load balancers stop routing before the drain.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the service is marked ready and all readiness
// checks pass.
func (h *Health) IsReady() bool {
	if !h.ready.Load() {
		return false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.failures[readiness]) == 0
}

// Stop cancels the background loop and waits for it to exit. Safe to call
// multiple times.
func (h *Health) Stop() {
	if h.cancel != nil {
		h.cancel()
		<-h.done
		h.cancel = nil
	}
}

// statusResponse is the JSON response body for health endpoints.
type statusResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// LiveEndpoint is an http.HandlerFunc for the /livez endpoint.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	h.mu.RLock()
	failures := copyMap(h.failures[liveness])
	h.mu.RUnlock()

	writeResponse(w, failures)
}

// ReadyEndpoint is an http.HandlerFunc for the /readyz endpoint. It reports
// unhealthy when the manual ready flag is unset, even if all checks pass.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	h.mu.RLock()
	failures := copyMap(h.failures[readiness])
	h.mu.RUnlock()

	if !h.ready.Load() {
		failures["_readiness"] = "service is not ready"
	}
	writeResponse(w, failures)
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func writeResponse(w http.ResponseWriter, failures map[string]string) {
	w.Header().Set("Content-Type", "application/json")

	resp := statusResponse{Status: "ok"}
	status := http.StatusOK
	if len(failures) > 0 {
		resp.Status = "unhealthy"
		resp.Checks = failures
		status = http.StatusServiceUnavailable
	}

	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
