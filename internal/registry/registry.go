// Package registry tracks live connections: which verified identity each one
// carries and which rooms it currently occupies. It is the inverse index of
// the per-room member maps held by the coordinator.
package registry

import (
	"errors"
	"sync"
)

// ErrDuplicateConnection is returned when Register is called twice for the
// same connection id.
var ErrDuplicateConnection = errors.New("connection id already registered")

type entry struct {
	name  string
	rooms map[string]struct{}
}

// Registry maps connection ids to verified display names and room sets.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*entry
}

func New() *Registry {
	return &Registry{conns: make(map[string]*entry)}
}

// Register records a connection after identity verification succeeded.
// It must be called exactly once per transport session.
func (r *Registry) Register(connID, verifiedName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.conns[connID]; exists {
		return ErrDuplicateConnection
	}
	r.conns[connID] = &entry{
		name:  verifiedName,
		rooms: make(map[string]struct{}),
	}
	return nil
}

// Name returns the verified display name for a connection.
func (r *Registry) Name(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.conns[connID]
	if !ok {
		return "", false
	}
	return e.name, true
}

// RecordJoin marks the connection as occupying room. Idempotent.
func (r *Registry) RecordJoin(connID, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.conns[connID]; ok {
		e.rooms[room] = struct{}{}
	}
}

// RecordLeave removes room from the connection's set. Leaving a room that was
// never joined is a no-op.
func (r *Registry) RecordLeave(connID, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.conns[connID]; ok {
		delete(e.rooms, room)
	}
}

// Rooms returns the rooms the connection currently occupies.
func (r *Registry) Rooms(connID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.conns[connID]
	if !ok {
		return nil
	}
	rooms := make([]string, 0, len(e.rooms))
	for room := range e.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}

// Drop erases all state for the connection and returns the rooms it occupied
// at that moment, so the caller can broadcast departure to each. Safe to call
// for ids that were never registered.
func (r *Registry) Drop(connID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.conns[connID]
	if !ok {
		return nil
	}
	rooms := make([]string, 0, len(e.rooms))
	for room := range e.rooms {
		rooms = append(rooms, room)
	}
	delete(r.conns, connID)
	return rooms
}
