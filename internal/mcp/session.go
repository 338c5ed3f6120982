// ABOUTME: In-memory session store shared by both MCP transports.
// ABOUTME: Idle sessions are swept by a background goroutine.

package mcp

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// defaultIdleTimeout is how long a session may sit unused before the
// sweeper terminates it.
const defaultIdleTimeout = 30 * time.Minute

// session tracks one active MCP client session on either transport.
type session struct {
	id              string
	protocolVersion string
	createdAt       time.Time

	mu       sync.Mutex
	lastSeen time.Time
	events   chan []byte // SSE delivery channel; nil for streamable sessions
	closed   bool
}

// touch records activity on the session.
func (s *session) touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

// send queues an encoded JSON-RPC message for SSE delivery. Returns
// false when the session has no stream or it is already closed.
func (s *session) send(msg []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.events == nil || s.closed {
		return false
	}
	select {
	case s.events <- msg:
		return true
	default:
		// Slow consumer; drop rather than block the dispatcher.
		return false
	}
}

// close tears down the SSE delivery channel. Safe to call repeatedly.
func (s *session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.events != nil {
		close(s.events)
	}
}

// sessionStore manages active sessions with idle expiry.
type sessionStore struct {
	mu          sync.RWMutex
	sessions    map[string]*session
	idleTimeout time.Duration
	done        chan struct{}
	closeOnce   sync.Once
}

func newSessionStore(idleTimeout time.Duration) *sessionStore {
	if idleTimeout <= 0 {
		idleTimeout = defaultIdleTimeout
	}
	s := &sessionStore{
		sessions:    make(map[string]*session),
		idleTimeout: idleTimeout,
		done:        make(chan struct{}),
	}
	go s.sweep()
	return s
}

// create registers a new session. withStream allocates the SSE delivery
// channel for event-stream sessions.
func (s *sessionStore) create(protocolVersion string, withStream bool) *session {
	now := time.Now()
	sess := &session{
		id:              uuid.New().String(),
		protocolVersion: protocolVersion,
		createdAt:       now,
		lastSeen:        now,
	}
	if withStream {
		sess.events = make(chan []byte, 16)
	}
	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()
	return sess
}

// get returns the session and marks it active.
func (s *sessionStore) get(id string) (*session, bool) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		sess.touch()
	}
	return sess, ok
}

// delete removes and closes a session, reporting whether it existed.
func (s *sessionStore) delete(id string) bool {
	s.mu.Lock()
	sess, existed := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if existed {
		sess.close()
	}
	return existed
}

// count returns the number of active sessions.
func (s *sessionStore) count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// close stops the sweeper and closes every session.
func (s *sessionStore) close() {
	s.closeOnce.Do(func() { close(s.done) })
	s.mu.Lock()
	for id, sess := range s.sessions {
		sess.close()
		delete(s.sessions, id)
	}
	s.mu.Unlock()
}

// sweep periodically expires idle sessions.
func (s *sessionStore) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-s.idleTimeout)
			s.mu.Lock()
			var expired []*session
			for id, sess := range s.sessions {
				sess.mu.Lock()
				idle := sess.lastSeen.Before(cutoff)
				sess.mu.Unlock()
				if idle {
					expired = append(expired, sess)
					delete(s.sessions, id)
				}
			}
			s.mu.Unlock()
			for _, sess := range expired {
				sess.close()
			}
		}
	}
}
