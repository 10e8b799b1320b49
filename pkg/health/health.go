// Package health runs Kubernetes-style liveness and readiness probes. Each
// registered check runs on its own ticker; consecutive failure and success
// thresholds keep a single slow poll from flapping the reported state.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// CheckFunc probes one component, returning nil when it is healthy.
type CheckFunc func(ctx context.Context) error

const (
	failureThreshold = 3
	successThreshold = 1
)

// probe is one registered check plus its runtime state. The consecutive
// counters are touched only by the single loop goroutine; healthy and lastErr
// are shared with the HTTP handlers and use atomics.
type probe struct {
	name    string
	timeout time.Duration
	check   CheckFunc

	healthy atomic.Bool
	lastErr atomic.Pointer[error]

	fails int
	oks   int
}

func newProbe(name string, timeout time.Duration, check CheckFunc) *probe {
	p := &probe{name: name, timeout: timeout, check: check}
	p.healthy.Store(true) // optimistic until the first poll says otherwise
	return p
}

func (p *probe) poll(ctx context.Context) {
	pollCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.check(pollCtx)
	p.lastErr.Store(&err)

	if err != nil {
		p.oks = 0
		if p.fails++; p.fails >= failureThreshold {
			p.healthy.Store(false)
		}
		return
	}
	p.fails = 0
	if p.oks++; p.oks >= successThreshold {
		p.healthy.Store(true)
	}
}

func (p *probe) failure() (string, bool) {
	if p.healthy.Load() {
		return "", false
	}
	if errp := p.lastErr.Load(); errp != nil && *errp != nil {
		return (*errp).Error(), true
	}
	return "check is unhealthy", true
}

// Health tracks liveness and readiness for a service. The zero state is
// not-ready; call SetReady(true) once initialization finishes and
// SetReady(false) when draining.
type Health struct {
	ready atomic.Bool

	mu        sync.RWMutex
	liveness  []*probe
	readiness []*probe
	cancel    context.CancelFunc
}

// New creates an empty Health in the not-ready state.
func New() *Health {
	return &Health{}
}

// AddLivenessCheck registers a check answering "is this process functional",
// such as a goroutine leak detector.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.liveness = append(h.liveness, newProbe(name, timeout, check))
}

// AddReadinessCheck registers a check answering "can this process serve
// traffic", such as a database ping.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readiness = append(h.readiness, newProbe(name, timeout, check))
}

// Start launches one polling goroutine per registered check. Register all
// checks before calling Start.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.cancel = cancel
	probes := make([]*probe, 0, len(h.liveness)+len(h.readiness))
	probes = append(probes, h.liveness...)
	probes = append(probes, h.readiness...)
	h.mu.Unlock()

	for _, p := range probes {
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			p.poll(ctx)
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					p.poll(ctx)
				}
			}
		}()
	}
}

// Stop cancels the polling goroutines. Safe to call more than once.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// SetReady flips the manual readiness gate.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the gate is open and every readiness check passes.
func (h *Health) IsReady() bool {
	if !h.ready.Load() {
		return false
	}
	h.mu.RLock()
	probes := h.readiness
	h.mu.RUnlock()

	for _, p := range probes {
		if _, failed := p.failure(); failed {
			return false
		}
	}
	return true
}

type statusResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// LiveEndpoint serves /livez: 200 when all liveness checks pass, else 503
// with per-check failure messages.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	h.mu.RLock()
	probes := append([]*probe(nil), h.liveness...)
	h.mu.RUnlock()

	writeStatus(w, failures(probes))
}

// ReadyEndpoint serves /readyz: 200 when the service is marked ready and all
// readiness checks pass, else 503 with details.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	h.mu.RLock()
	probes := append([]*probe(nil), h.readiness...)
	h.mu.RUnlock()

	failed := failures(probes)
	if !h.ready.Load() {
		failed["_readiness"] = "service is not ready"
	}
	writeStatus(w, failed)
}

func failures(probes []*probe) map[string]string {
	out := make(map[string]string)
	for _, p := range probes {
		if msg, failed := p.failure(); failed {
			out[p.name] = msg
		}
	}
	return out
}

func writeStatus(w http.ResponseWriter, failed map[string]string) {
	w.Header().Set("Content-Type", "application/json")

	resp := statusResponse{Status: "ok"}
	code := http.StatusOK
	if len(failed) > 0 {
		resp = statusResponse{Status: "unhealthy", Checks: failed}
		code = http.StatusServiceUnavailable
	}
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}
