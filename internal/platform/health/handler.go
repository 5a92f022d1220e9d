// Package health serves liveness, readiness and build status probes.
package health

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"rollcall/pkg/platform/httputil"
)

// Version is set at build time via ldflags.
var Version = "dev"

// CheckFunc reports whether a dependency is reachable.
type CheckFunc func(ctx context.Context) error

type probe struct {
	check    CheckFunc
	optional bool
}

// Handler serves the /health routes. Dependencies are probed concurrently,
// each under its own deadline.
type Handler struct {
	started      time.Time
	environment  string
	checkTimeout time.Duration
	now          func() time.Time

	mu     sync.RWMutex
	probes map[string]probe
}

// Option configures a Handler.
type Option func(*Handler)

// WithCheckTimeout bounds each individual dependency check.
func WithCheckTimeout(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.checkTimeout = d
		}
	}
}

func New(environment string, opts ...Option) *Handler {
	h := &Handler{
		environment:  environment,
		checkTimeout: 2 * time.Second,
		now:          time.Now,
		probes:       make(map[string]probe),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.started = h.now()
	return h
}

// RegisterCheck adds a dependency the service cannot serve without.
func (h *Handler) RegisterCheck(name string, check CheckFunc) {
	h.register(name, probe{check: check})
}

// RegisterOptional adds a dependency whose outage degrades the service
// without taking it out of rotation.
func (h *Handler) RegisterOptional(name string, check CheckFunc) {
	h.register(name, probe{check: check, optional: true})
}

func (h *Handler) register(name string, p probe) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.probes[name] = p
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/health", h.HandleStatus)
	r.Get("/health/live", h.HandleLiveness)
	r.Get("/health/ready", h.HandleReadiness)
}

type LivenessResponse struct {
	Status string `json:"status"`
}

func (h *Handler) HandleLiveness(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, LivenessResponse{Status: "alive"})
}

// CheckResult is one dependency's outcome.
type CheckResult struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	Optional  bool   `json:"optional,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

// ReadinessResponse is "ready", "degraded" (an optional dependency is down)
// or "not_ready" (a required one is).
type ReadinessResponse struct {
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

func (h *Handler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	resp := h.Ready(r.Context())
	status := http.StatusOK
	if resp.Status == "not_ready" {
		status = http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, status, resp)
}

// Ready probes every registered dependency.
func (h *Handler) Ready(ctx context.Context) ReadinessResponse {
	h.mu.RLock()
	probes := make(map[string]probe, len(h.probes))
	for name, p := range h.probes {
		probes[name] = p
	}
	h.mu.RUnlock()

	var (
		mu      sync.Mutex
		results = make(map[string]CheckResult, len(probes))
	)
	// Check errors are recorded, never returned, so one slow dependency
	// cannot cancel its siblings.
	g, gctx := errgroup.WithContext(ctx)
	for name, p := range probes {
		g.Go(func() error {
			res := h.run(gctx, p)
			mu.Lock()
			results[name] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	resp := ReadinessResponse{Status: "ready", Checks: results}
	for _, res := range results {
		if res.Status == "up" {
			continue
		}
		if !res.Optional {
			resp.Status = "not_ready"
			break
		}
		resp.Status = "degraded"
	}
	return resp
}

func (h *Handler) run(ctx context.Context, p probe) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, h.checkTimeout)
	defer cancel()

	start := h.now()
	err := p.check(ctx)
	res := CheckResult{
		Status:    "up",
		Optional:  p.optional,
		LatencyMS: h.now().Sub(start).Milliseconds(),
	}
	if err != nil {
		res.Status = "down"
		res.Error = err.Error()
	}
	return res
}

type StatusResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	Environment   string `json:"environment"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Timestamp     string `json:"timestamp"`
}

func (h *Handler) HandleStatus(w http.ResponseWriter, _ *http.Request) {
	now := h.now()
	httputil.WriteJSON(w, http.StatusOK, StatusResponse{
		Status:        "healthy",
		Version:       Version,
		Environment:   h.environment,
		UptimeSeconds: int64(now.Sub(h.started).Seconds()),
		Timestamp:     now.UTC().Format(time.RFC3339),
	})
}
