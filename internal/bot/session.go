package bot

import (
	"sync"

	"github.com/yelena0000/fish-store/internal/domain"
)

// Session is the per-user conversation state. Events for one session are
// processed strictly one at a time; sessions never block each other.
type Session struct {
	mu sync.Mutex

	UserID string
	State  State

	// Catalog is this session's own snapshot, replaced wholesale on every
	// menu refresh. No other session ever observes it.
	Catalog domain.CatalogSnapshot

	// PendingProductID is the product awaiting a quantity, when in
	// AwaitingQuantity.
	PendingProductID string

	// MessageRef is the opaque handle of the last rendered bot message,
	// maintained by the renderer for replace-in-place updates.
	MessageRef string
}

// SessionRegistry owns every live session, keyed by user identity.
// Sessions are created on first use and live for the process lifetime.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]*Session)}
}

// Get returns the user's session, creating it at the menu on first contact.
func (r *SessionRegistry) Get(userID string) *Session {
	r.mu.RLock()
	s, ok := r.sessions[userID]
	r.mu.RUnlock()
	if ok {
		return s
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[userID]; ok {
		return s
	}
	s = &Session{UserID: userID, State: StateMenu}
	r.sessions[userID] = s
	return s
}

func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
