package auth

import (
	"errors"
	"sync"
)

// Identity is the resolved user behind a connection.
type Identity struct {
	ID        uint64 `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

var ErrNoSession = errors.New("UNAUTHENTICATED")

// Registry maps live connection ids to identities. It records who a
// connection is, nothing more; room access is checked elsewhere.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]Identity
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]Identity)}
}

// Bind associates a connection id with an identity for the lifetime of the
// connection. Called only after the handshake credential verified.
func (r *Registry) Bind(connID string, id Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[connID] = id
}

func (r *Registry) Lookup(connID string) (Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.sessions[connID]
	if !ok {
		return Identity{}, ErrNoSession
	}
	return id, nil
}

func (r *Registry) Unbind(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, connID)
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
