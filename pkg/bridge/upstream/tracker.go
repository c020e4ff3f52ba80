// Package upstream implements the upstream session tracker (spec.md
// §4.12): a record per transport-supplied session ID, created on that
// session's first authenticated MCP request, holding a frozen route-map
// snapshot so list_tools replies stay consistent across a conversation
// even while live routing (and the map behind it) keeps moving. A
// background sweep, structured the same way as the health monitor's probe
// loop, evicts sessions idle past a configurable TTL.
//
// Grounded on _examples/stacklok-toolhive/pkg/vmcp/health/monitor.go's
// ticker-driven Run(ctx) loop (reused here for time-based eviction instead
// of liveness probing) and on the teacher's per-resource sync.Mutex
// bookkeeping pattern seen throughout pkg/vmcp/session.
package upstream

import (
	"context"
	"sync"
	"time"

	"github.com/mcpfabric/gateway/pkg/bridge"
	"github.com/mcpfabric/gateway/pkg/logger"
)

// DefaultTTL is the idle duration after which a session is swept, per
// spec.md §4.12.
const DefaultTTL = 30 * time.Minute

// DefaultSweepInterval is how often the background sweep checks for
// expired sessions.
const DefaultSweepInterval = time.Minute

// Session is one upstream client's tracked state.
type Session struct {
	ID         string
	Snapshot   *bridge.RouteMap
	CreatedAt  time.Time
	lastSeenAt time.Time
}

// Tracker holds every live upstream session, keyed by transport session ID.
type Tracker struct {
	registry *bridge.Registry
	ttl      time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
}

// New returns a Tracker that freezes snapshots from registry and evicts
// sessions idle past ttl (DefaultTTL if zero).
func New(registry *bridge.Registry, ttl time.Duration) *Tracker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Tracker{registry: registry, ttl: ttl, sessions: make(map[string]*Session)}
}

// Touch returns the session for id, creating it — with a frozen snapshot
// of the registry's currently published route map — on first call. Every
// call, including the creating one, refreshes the session's idle clock.
func (t *Tracker) Touch(id string) *Session {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	sess, ok := t.sessions[id]
	if !ok {
		sess = &Session{ID: id, Snapshot: t.registry.Snapshot(), CreatedAt: now}
		t.sessions[id] = sess
	}
	sess.lastSeenAt = now
	return sess
}

// Get returns the session for id without creating or touching it, and
// whether it exists.
func (t *Tracker) Get(id string) (*Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	sess, ok := t.sessions[id]
	return sess, ok
}

// Evict removes a session immediately, regardless of its idle time.
func (t *Tracker) Evict(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, id)
}

// Count returns the number of currently tracked sessions.
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

// Run blocks, sweeping expired sessions on DefaultSweepInterval until ctx
// is cancelled. Intended to run as one long-lived background task, per
// spec.md §5's scheduling model.
func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(DefaultSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.sweep()
		}
	}
}

func (t *Tracker) sweep() {
	cutoff := time.Now().Add(-t.ttl)
	t.mu.Lock()
	var evicted int
	for id, sess := range t.sessions {
		if sess.lastSeenAt.Before(cutoff) {
			delete(t.sessions, id)
			evicted++
		}
	}
	t.mu.Unlock()
	if evicted > 0 {
		logger.Infow("swept expired upstream sessions", "count", evicted)
	}
}
