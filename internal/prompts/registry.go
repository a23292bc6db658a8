// Package prompts holds in-flight call objectives between call origination
// and media session start.
package prompts

import (
	"sync"
	"time"
)

// Entry is one registered call objective. An entry is claimed at most once;
// entries for calls that never produce a media stream stay until discarded
// or process restart.
type Entry struct {
	CallSID   string
	Text      string
	CreatedAt time.Time
	consumed  bool
}

// Registry maps call SIDs to operator objectives. Keys are disjoint per call,
// but store and claim arrive on different goroutines (HTTP handler vs. media
// session), so access is guarded.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*Entry
}

// NewRegistry creates an empty prompt registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

// Store inserts or overwrites the objective for a call.
func (r *Registry) Store(callSID, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[callSID] = &Entry{
		CallSID:   callSID,
		Text:      text,
		CreatedAt: time.Now(),
	}
}

// Claim returns the stored objective and marks it consumed. The first call
// for a SID returns (text, true); every later call, and any call for an
// unknown SID, returns ("", false).
func (r *Registry) Claim(callSID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[callSID]
	if !ok || e.consumed {
		return "", false
	}
	e.consumed = true
	return e.Text, true
}

// Discard removes the entry for a call, claimed or not.
func (r *Registry) Discard(callSID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, callSID)
}

// Len returns the number of registered entries.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
