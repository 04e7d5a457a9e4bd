// Package registry tracks live connections and the identity and game each is
// bound to.
package registry

import (
	"errors"
	"sync"
	"time"

	"github.com/wricardo/tictactoe-arena/game/engine"
	"github.com/wricardo/tictactoe-arena/game/service"
)

var ErrUnknownConnection = errors.New("unknown connection")

// Registry is a process-wide set of connections guarded by one lock
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*service.Connection
}

// New creates an empty registry
func New() *Registry {
	return &Registry{conns: make(map[string]*service.Connection)}
}

// Add registers a connection, replacing any previous record with the same id
func (r *Registry) Add(id string) service.Connection {
	c := &service.Connection{ID: id, OpenedAt: time.Now().UTC()}

	r.mu.Lock()
	r.conns[id] = c
	r.mu.Unlock()
	return *c
}

// Bind records the identity a connection acts for
func (r *Registry) Bind(id string, p service.Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[id]
	if !ok {
		return ErrUnknownConnection
	}
	c.IdentityID = p.IdentityID
	c.Name = p.Name
	return nil
}

// Attach points a connection at a game room and the mark it plays
func (r *Registry) Attach(id, gameID, roomID string, mark engine.Mark) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[id]
	if !ok {
		return ErrUnknownConnection
	}
	c.GameID = gameID
	c.RoomID = roomID
	c.Mark = mark
	return nil
}

// Detach clears a connection's game binding, keeping its identity
func (r *Registry) Detach(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[id]
	if !ok {
		return ErrUnknownConnection
	}
	c.GameID = ""
	c.RoomID = ""
	c.Mark = engine.Empty
	return nil
}

// Get returns a copy of a connection's record
func (r *Registry) Get(id string) (service.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.conns[id]
	if !ok {
		return service.Connection{}, false
	}
	return *c, true
}

// Remove deletes a connection and returns its last record
func (r *Registry) Remove(id string) (service.Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[id]
	if !ok {
		return service.Connection{}, false
	}
	delete(r.conns, id)
	return *c, true
}

// Count returns the number of live connections
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// InGame lists the connections currently attached to gameID
func (r *Registry) InGame(gameID string) []service.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []service.Connection
	for _, c := range r.conns {
		if c.GameID == gameID {
			out = append(out, *c)
		}
	}
	return out
}
