// Package toolbridge implements spec.md §4.12: a JSON-RPC 2.0 endpoint
// exposing a fixed tool vocabulary to external AI clients, with in-memory
// session bookkeeping and an idle sweep run on every incoming request
// rather than a background ticker.
package toolbridge

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/archon-iirc/archon/internal/model"
)

// DefaultSessionTimeout matches config.MCPConfig's default
// session_timeout_seconds.
const DefaultSessionTimeout = time.Hour

// SessionManager tracks ToolBridge client connections keyed by session id.
// Every method serialises on mu, matching spec.md §5's rule that the
// ToolBridge session map is a process-local mutable map all writers must
// serialise on.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*model.ToolSession
	timeout  time.Duration
}

// NewSessionManager creates a SessionManager with the given idle timeout.
// A non-positive timeout falls back to DefaultSessionTimeout.
func NewSessionManager(timeout time.Duration) *SessionManager {
	if timeout <= 0 {
		timeout = DefaultSessionTimeout
	}
	return &SessionManager{
		sessions: make(map[string]*model.ToolSession),
		timeout:  timeout,
	}
}

// Resolve validates sessionID and returns its session, sweeping every
// expired session from the map first. A blank sessionID, or one that is
// unknown or expired, allocates a fresh session for clientID instead of
// erroring — the bridge always has a session to serve the call with.
func (m *SessionManager) Resolve(sessionID, clientID string) *model.ToolSession {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	m.sweepLocked(now)

	if sessionID != "" {
		if s, ok := m.sessions[sessionID]; ok {
			s.LastActivity = now
			s.ToolsCalled++
			return s
		}
	}

	s := &model.ToolSession{
		ID:           uuid.NewString(),
		ClientID:     clientID,
		ConnectedAt:  now,
		LastActivity: now,
		ToolsCalled:  1,
	}
	m.sessions[s.ID] = s
	return s
}

// Unregister drops a session, e.g. on an explicit client disconnect.
func (m *SessionManager) Unregister(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
}

// Count returns the number of live sessions after sweeping expired ones.
func (m *SessionManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepLocked(time.Now())
	return len(m.sessions)
}

// sweepLocked removes every session idle longer than m.timeout. Called with
// mu held, on every Resolve/Count rather than from a background goroutine,
// per spec.md §4.12's "an idle sweep runs on each incoming request".
func (m *SessionManager) sweepLocked(now time.Time) {
	for id, s := range m.sessions {
		if s.Expired(m.timeout, now) {
			delete(m.sessions, id)
		}
	}
}
