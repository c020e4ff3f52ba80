// Package health implements the health monitor (spec.md §4.6): periodic
// liveness probes against every Ready/Degraded backend, with the
// consecutive-failure and slow-latency counters that drive Degraded/Failed
// transitions.
//
// Grounded on _examples/stacklok-toolhive/pkg/vmcp/health's test suite
// (monitor_test.go, circuit_breaker_test.go): the teacher's health package
// already models a per-backend consecutive-failure counter feeding a
// circuit-breaker-shaped state machine; this package narrows that to the
// three-phase Ready/Degraded/Failed mapping spec.md §4.6 specifies instead
// of a generic circuit breaker's open/half-open/closed states.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/mcpfabric/gateway/pkg/bridge"
)

// Pinger is the subset of the session contract the monitor needs: a cheap
// liveness probe. The client manager's Session(name) return value
// satisfies this directly.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Backends abstracts the client manager calls the monitor drives, so tests
// can substitute a fake without constructing a real Manager.
type Backends interface {
	Names() []string
	Session(name string) (Pinger, bool)
	Status(name string) (bridge.BackendStatus, bool)
	SetDegraded(name, reason, message string)
	SetReady(name string, latency time.Duration)
	Fail(name, reason, message string)
}

// Config is the health monitor's tunables, defaulting to spec.md §4.6's
// stated values.
type Config struct {
	Interval          time.Duration
	DegradedThreshold int
	FailedThreshold   int
	LatencyThreshold  time.Duration
}

// WithDefaults fills zero fields with spec.md §4.6's defaults.
func (c Config) WithDefaults() Config {
	if c.Interval == 0 {
		c.Interval = 30 * time.Second
	}
	if c.DegradedThreshold == 0 {
		c.DegradedThreshold = 1
	}
	if c.FailedThreshold == 0 {
		c.FailedThreshold = 3
	}
	if c.LatencyThreshold == 0 {
		c.LatencyThreshold = 5 * time.Second
	}
	return c
}

type counters struct {
	consecutiveFailures int
	slowCount           int
}

// Monitor runs one fixed-interval probe loop per tracked backend.
type Monitor struct {
	backends Backends
	cfg      Config

	mu       sync.Mutex
	counters map[string]*counters
}

// New returns a Monitor bound to backends, with cfg defaulted.
func New(backends Backends, cfg Config) *Monitor {
	return &Monitor{backends: backends, cfg: cfg.WithDefaults(), counters: make(map[string]*counters)}
}

// Run blocks, probing every Ready/Degraded backend on cfg.Interval until
// ctx is cancelled. Intended to run as one long-lived background task,
// per spec.md §5's scheduling model.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.probeAll(ctx)
		}
	}
}

func (m *Monitor) probeAll(ctx context.Context) {
	for _, name := range m.backends.Names() {
		status, ok := m.backends.Status(name)
		if !ok || !status.Phase.Routable() {
			continue
		}
		m.probeOne(ctx, name)
	}
}

func (m *Monitor) counterFor(name string) *counters {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.counters[name]
	if !ok {
		c = &counters{}
		m.counters[name] = c
	}
	return c
}

// probeOne fires one ping and applies the transition rules from spec.md
// §4.6: success resets counters and reports Ready (a Degraded backend
// returns to Ready); failure
// increments the failure counter and transitions at the configured
// thresholds; an over-threshold-latency success increments a separate
// "slow" counter that also maps to Degraded after three exceedances.
func (m *Monitor) probeOne(ctx context.Context, name string) {
	sess, ok := m.backends.Session(name)
	if !ok {
		return
	}
	c := m.counterFor(name)

	pingCtx, cancel := context.WithTimeout(ctx, m.cfg.Interval)
	defer cancel()

	start := time.Now()
	err := sess.Ping(pingCtx)
	latency := time.Since(start)

	if err != nil {
		c.consecutiveFailures++
		c.slowCount = 0
		switch {
		case c.consecutiveFailures >= m.cfg.FailedThreshold:
			m.backends.Fail(name, "HealthProbeFailed", err.Error())
		case c.consecutiveFailures >= m.cfg.DegradedThreshold:
			m.backends.SetDegraded(name, "HealthProbeFailing", err.Error())
		}
		return
	}

	c.consecutiveFailures = 0
	if latency > m.cfg.LatencyThreshold {
		c.slowCount++
		if c.slowCount >= 3 {
			m.backends.SetDegraded(name, "HealthProbeSlow", "latency exceeded threshold three consecutive probes")
		}
		return
	}
	c.slowCount = 0
	m.backends.SetReady(name, latency)
}
