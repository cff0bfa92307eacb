package httpapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"listing-search/services"
)

// SessionHeader carries the client's search session id in both directions.
const SessionHeader = "X-Session-ID"

type sessionEntry struct {
	session  *services.Session
	lastSeen time.Time
}

// SessionRegistry keeps one services.Session per client session id.
type SessionRegistry struct {
	mu       sync.Mutex
	engine   *services.Engine
	pageSize int
	sessions map[string]*sessionEntry
	now      func() time.Time
}

func NewSessionRegistry(engine *services.Engine, pageSize int) *SessionRegistry {
	return &SessionRegistry{
		engine:   engine,
		pageSize: pageSize,
		sessions: make(map[string]*sessionEntry),
		now:      time.Now,
	}
}

// Get returns the session for id, creating a collapsed one on first use.
func (r *SessionRegistry) Get(id string) *services.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[id]
	if !ok {
		e = &sessionEntry{session: services.NewSession(r.engine, r.pageSize)}
		r.sessions[id] = e
	}
	e.lastSeen = r.now()
	return e.session
}

// Len returns the number of live sessions.
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep drops sessions idle for longer than maxIdle and returns how many went.
func (r *SessionRegistry) Sweep(maxIdle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-maxIdle)
	removed := 0
	for id, e := range r.sessions {
		if e.lastSeen.Before(cutoff) {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}

// sessionID reads the session id header, issuing a new UUID when it is absent
// or malformed. The id is echoed back on the response.
func sessionID(w http.ResponseWriter, req *http.Request) string {
	id := req.Header.Get(SessionHeader)
	if parsed, err := uuid.Parse(id); err == nil {
		id = parsed.String()
	} else {
		id = uuid.NewString()
	}
	w.Header().Set(SessionHeader, id)
	return id
}
