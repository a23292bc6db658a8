package bridge

import (
	"sync"

	"github.com/dialbridge/dialbridge/internal/logging"
)

// Registry tracks live media sessions so the server can report on them and
// force-close them on shutdown or emergency stop.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session // session ID → session
	log      *logging.Logger
}

// NewRegistry creates an empty session registry.
func NewRegistry(log *logging.Logger) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		log:      log,
	}
}

// Add registers a live session.
func (r *Registry) Add(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
	r.log.Info().Str("sessionId", s.ID).Msg("media session opened")
}

// Remove unregisters a session by ID.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return
	}
	delete(r.sessions, id)
	r.log.Info().Str("sessionId", id).Msg("media session removed")
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// FindByCall returns the live session bound to the given call SID, if any.
func (r *Registry) FindByCall(callSID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.sessions {
		if s.CallSID() == callSID {
			return s, true
		}
	}
	return nil, false
}

// CloseAll force-closes every live session.
func (r *Registry) CloseAll() {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	for _, s := range sessions {
		s.Close()
	}
}
