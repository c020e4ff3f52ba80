// Package manager implements the client manager (spec.md §4.2): it owns
// the set of backend sessions and runs the per-backend lifecycle state
// machine (Pending -> Initializing -> Ready -> [Degraded] -> Failed ->
// ShuttingDown). It is the sole writer of backend phase; the health
// monitor and reload coordinator only request transitions through it.
//
// Grounded on _examples/stacklok-toolhive/pkg/vmcp/discovery's manager
// test suite (manager_test.go) for the start/stop/reconnect shape, and on
// pkg/vmcp/health/monitor_test.go for how phase transitions are reported
// back out. Concurrency primitives (errgroup for bounded concurrent
// start/stop, backoff for reconnect races, singleflight for reconnect
// coalescing) come from the teacher's own go.mod.
package manager

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/mcpfabric/gateway/pkg/bridge"
	bridgeerrors "github.com/mcpfabric/gateway/pkg/errors"
	"github.com/mcpfabric/gateway/pkg/bridge/session"
	"github.com/mcpfabric/gateway/pkg/logger"
)

// TransitionFunc is notified every time a backend's phase changes. A
// subscriber registers through the Manager's construction option
// (WithTransitionFunc) so phase changes flow to one place.
type TransitionFunc func(name string, status bridge.BackendStatus)

// slot is one backend's exclusively-owned runtime state. Per spec.md
// invariant 1, exactly one session object exists per descriptor at a time,
// and all transitions for a given backend are serialized by mu.
type slot struct {
	mu         sync.Mutex
	descriptor bridge.BackendDescriptor
	session    session.Session
	status     bridge.BackendStatus
}

// Manager owns {backend-name -> session + status} and serializes every
// per-backend transition. Global operations (StartAll/StopAll) acquire
// per-backend locks in deterministic (name-sorted) order to avoid deadlock,
// per spec.md §4.2.
type Manager struct {
	factory    session.Factory
	onTransition TransitionFunc

	mu    sync.RWMutex
	slots map[string]*slot

	reconnectGroup singleflight.Group
}

// Option configures a Manager at construction.
type Option func(*Manager)

// WithTransitionFunc registers fn to be called after every phase change.
func WithTransitionFunc(fn TransitionFunc) Option {
	return func(m *Manager) { m.onTransition = fn }
}

// New returns a Manager that builds sessions via factory (session.NewFactory()
// in production, a fake in tests).
func New(factory session.Factory, opts ...Option) *Manager {
	m := &Manager{factory: factory, slots: make(map[string]*slot)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) notify(name string, status bridge.BackendStatus) {
	if m.onTransition != nil {
		m.onTransition(name, status)
	}
}

// sortedNames returns descriptor names in deterministic order, used by
// every operation that must acquire more than one per-backend lock.
func sortedNames(descriptors []bridge.BackendDescriptor) []string {
	names := make([]string, len(descriptors))
	for i, d := range descriptors {
		names[i] = d.Name
	}
	sort.Strings(names)
	return names
}

// StartAll registers descriptors and launches each backend's
// initialization concurrently, per spec.md §4.2. Descriptors not
// previously known are added; errors from individual backends are
// collected but do not stop sibling backends from starting (a bridge with
// nine healthy backends and one broken one should still serve the nine).
func (m *Manager) StartAll(ctx context.Context, descriptors []bridge.BackendDescriptor) error {
	m.mu.Lock()
	for _, d := range descriptors {
		if _, exists := m.slots[d.Name]; !exists {
			m.slots[d.Name] = &slot{descriptor: d, status: bridge.BackendStatus{Name: d.Name, Phase: bridge.PhasePending}}
		}
	}
	m.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range sortedNames(descriptors) {
		name := name
		g.Go(func() error {
			m.startOne(gctx, name)
			return nil
		})
	}
	return g.Wait()
}

func (m *Manager) getSlot(name string) (*slot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.slots[name]
	return s, ok
}

// startOne drives one backend from Pending through Initializing to Ready
// or Failed. It never returns an error to the caller: failures are
// recorded in the status record's conditions instead, matching spec.md's
// "errors are values, observable via status" design note.
func (m *Manager) startOne(ctx context.Context, name string) {
	s, ok := m.getSlot(name)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status.Phase = bridge.PhaseInitializing
	s.status.LastTransitionAt = time.Now()
	m.notify(name, s.status)

	sess, err := m.factory(ctx, s.descriptor)
	if err != nil {
		m.failLocked(s, "session_create_failed", err)
		return
	}

	info, err := sess.Initialize(ctx)
	if err != nil {
		_ = sess.Close()
		m.failLocked(s, "init_failed", err)
		return
	}

	s.session = sess
	s.status.Phase = bridge.PhaseReady
	s.status.LastTransitionAt = time.Now()
	s.status.SetCondition(bridge.Condition{
		Type: "Initialized", Status: true, Reason: "HandshakeComplete",
		Message: fmt.Sprintf("connected to %s %s", info.Name, info.Version), Timestamp: time.Now(),
	})
	m.notify(name, s.status)
}

func (m *Manager) failLocked(s *slot, reason string, err error) {
	s.status.Phase = bridge.PhaseFailed
	s.status.LastTransitionAt = time.Now()
	s.status.SetCondition(bridge.Condition{
		Type: "Ready", Status: false, Reason: reason, Message: err.Error(), Timestamp: time.Now(),
	})
	logger.Warnw("backend failed", "backend", s.descriptor.Name, "reason", reason, "error", err)
	m.notify(s.descriptor.Name, s.status)
}

// Session returns the live session for routing, or ok=false if the backend
// is not currently Ready/Degraded (spec.md §4.2, invariant 2).
func (m *Manager) Session(name string) (session.Session, bool) {
	s, ok := m.getSlot(name)
	if !ok {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.status.Phase.Routable() || s.session == nil {
		return nil, false
	}
	return s.session, true
}

// Status returns the current status record for one backend.
func (m *Manager) Status(name string) (bridge.BackendStatus, bool) {
	s, ok := m.getSlot(name)
	if !ok {
		return bridge.BackendStatus{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status, true
}

// SetDegraded, SetReady and Fail let the health monitor (the other writer of
// backend phase, per spec.md §2 control flow) push a transition without
// reaching into slot internals.
func (m *Manager) SetDegraded(name, reason, message string) {
	s, ok := m.getSlot(name)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.status.Phase.Routable() {
		return
	}
	s.status.Phase = bridge.PhaseDegraded
	s.status.SetCondition(bridge.Condition{Type: "Healthy", Status: false, Reason: reason, Message: message, Timestamp: time.Now()})
	m.notify(name, s.status)
}

// SetReady restores Degraded back to Ready on a successful health probe.
func (m *Manager) SetReady(name string, latency time.Duration) {
	s, ok := m.getSlot(name)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.status.Phase.Routable() {
		return
	}
	s.status.Phase = bridge.PhaseReady
	s.status.LastLatency = latency
	s.status.SetCondition(bridge.Condition{Type: "Healthy", Status: true, Reason: "ProbeSucceeded", Timestamp: time.Now()})
	m.notify(name, s.status)
}

// SetCapabilityCounts records the most recent capability fetch result on
// the status record, used by the management API's status_snapshot.
func (m *Manager) SetCapabilityCounts(name string, tools, resources, prompts int) {
	s, ok := m.getSlot(name)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.ToolCount, s.status.ResourceCount, s.status.PromptCount = tools, resources, prompts
}

// Fail transitions a backend straight to Failed (used by the health
// monitor once the failure threshold is exceeded) and tears its session
// down. A Failed backend is never revived in place (spec.md lifecycle):
// reconnection must go through Reconnect, which starts a fresh session.
func (m *Manager) Fail(name, reason, message string) {
	s, ok := m.getSlot(name)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil {
		_ = s.session.Close()
		s.session = nil
	}
	s.status.Phase = bridge.PhaseFailed
	s.status.LastTransitionAt = time.Now()
	s.status.SetCondition(bridge.Condition{Type: "Ready", Status: false, Reason: reason, Message: message, Timestamp: time.Now()})
	m.notify(name, s.status)
}

// Reconnect atomically transitions an existing session to ShuttingDown,
// closes it, and starts a fresh Pending->Initializing cycle. Concurrent
// calls for the same name are coalesced via singleflight — spec.md's
// idempotent-reconnect property: N rapid calls produce one shutdown+start
// cycle, not N.
func (m *Manager) Reconnect(ctx context.Context, name string) error {
	_, err, _ := m.reconnectGroup.Do(name, func() (any, error) {
		s, ok := m.getSlot(name)
		if !ok {
			return nil, bridgeerrors.New(bridgeerrors.KindInvalidRequest, fmt.Sprintf("unknown backend %q", name))
		}

		s.mu.Lock()
		s.status.Phase = bridge.PhaseShuttingDown
		s.status.LastTransitionAt = time.Now()
		m.notify(name, s.status)
		if s.session != nil {
			_ = s.session.Close()
			s.session = nil
		}
		s.status.Phase = bridge.PhasePending
		s.mu.Unlock()

		// Bounded backoff guards against a Reconnect racing a backend that
		// has not fully torn down its prior resources yet (e.g. a stdio
		// subprocess still exiting); three attempts is enough headroom
		// without masking a genuinely broken backend behind silent retries.
		_, retryErr := backoff.Retry(ctx, func() (struct{}, error) {
			m.startOne(ctx, name)
			status, _ := m.Status(name)
			if status.Phase != bridge.PhaseReady && status.Phase != bridge.PhaseDegraded {
				return struct{}{}, fmt.Errorf("backend %q did not reach Ready", name)
			}
			return struct{}{}, nil
		}, backoff.WithMaxTries(3))
		return nil, retryErr
	})
	return err
}

// StopAll gracefully shuts every backend down in reverse (descending name)
// order, bounded by ctx's deadline.
func (m *Manager) StopAll(ctx context.Context) error {
	m.mu.RLock()
	names := make([]string, 0, len(m.slots))
	for name := range m.slots {
		names = append(names, name)
	}
	m.mu.RUnlock()
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	g, _ := errgroup.WithContext(ctx)
	for _, name := range names {
		name := name
		g.Go(func() error {
			s, ok := m.getSlot(name)
			if !ok {
				return nil
			}
			s.mu.Lock()
			defer s.mu.Unlock()
			s.status.Phase = bridge.PhaseShuttingDown
			m.notify(name, s.status)
			if s.session != nil {
				return s.session.Close()
			}
			return nil
		})
	}
	return g.Wait()
}

// Remove tears a backend down entirely and deletes its slot — used by the
// reload coordinator for descriptors removed from the new configuration.
func (m *Manager) Remove(name string) {
	m.mu.Lock()
	s, ok := m.slots[name]
	delete(m.slots, name)
	m.mu.Unlock()
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil {
		_ = s.session.Close()
	}
}

// Snapshot produces a point-in-time list of status records for the
// management surface, sorted by name for stable output.
func (m *Manager) Snapshot() []bridge.BackendStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]bridge.BackendStatus, 0, len(m.slots))
	for _, s := range m.slots {
		s.mu.Lock()
		out = append(out, s.status)
		s.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns every currently known backend name, sorted.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.slots))
	for name := range m.slots {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Descriptor returns the descriptor a backend was started with.
func (m *Manager) Descriptor(name string) (bridge.BackendDescriptor, bool) {
	s, ok := m.getSlot(name)
	if !ok {
		return bridge.BackendDescriptor{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.descriptor, true
}
