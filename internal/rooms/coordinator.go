// Package rooms implements the room coordinator: the single owner of room
// membership and the only writer of room state. Presence notices, history
// replay and signal forwarding all run through it, serialized per room.
package rooms

import (
	"errors"
	"log"
	"sync"

	"github.com/mossy-p/roomrelay/internal/history"
	"github.com/mossy-p/roomrelay/internal/models"
	"github.com/mossy-p/roomrelay/internal/registry"
)

var (
	// ErrUnauthorized rejects room operations from connections that never
	// completed identity verification and registration.
	ErrUnauthorized = errors.New("connection not registered")

	// ErrNotMember rejects sends and signals from outside the room.
	ErrNotMember = errors.New("sender is not a member of the room")

	// ErrPayloadMalformed rejects events missing a required field. The
	// offending event is dropped; the sender is not additionally notified.
	ErrPayloadMalformed = errors.New("payload is missing a required field")
)

// Mirror receives best-effort membership updates, e.g. for the Redis peer
// sets kept for operational visibility. Failures never affect room state.
type Mirror interface {
	Join(room, connID string)
	Leave(room, connID string)
}

// room is the mutable membership state for one room name. History lives in
// the history store and survives the room emptying; this struct does not.
type room struct {
	name    string
	mu      sync.Mutex
	members map[string]*Peer

	// dead marks a room already reaped from the map; joins that raced the
	// reap must retry against a fresh instance.
	dead bool
}

// Coordinator orchestrates registry, history and presence for all rooms.
// Mutations within one room are serialized by that room's lock; different
// rooms proceed in parallel.
type Coordinator struct {
	registry *registry.Registry
	history  *history.Store
	mirror   Mirror // may be nil

	mu    sync.RWMutex
	rooms map[string]*room
}

func NewCoordinator(reg *registry.Registry, hist *history.Store, mirror Mirror) *Coordinator {
	return &Coordinator{
		registry: reg,
		history:  hist,
		mirror:   mirror,
		rooms:    make(map[string]*room),
	}
}

// Register admits a verified connection. It must succeed before any join,
// message or signal from that connection is accepted.
func (c *Coordinator) Register(p *Peer) error {
	return c.registry.Register(p.ID, p.Name)
}

// Join adds the peer to a room, replays history to it, sends it the roster of
// the other members and announces it to them. The whole sequence runs under
// the room lock so no other operation on the room interleaves.
func (c *Coordinator) Join(p *Peer, roomName string) error {
	if roomName == "" {
		return ErrPayloadMalformed
	}
	if _, ok := c.registry.Name(p.ID); !ok {
		return ErrUnauthorized
	}

	var r *room
	for {
		r = c.getOrCreateRoom(roomName)
		r.mu.Lock()
		if !r.dead {
			break
		}
		r.mu.Unlock()
	}

	_, rejoining := r.members[p.ID]
	r.members[p.ID] = p
	c.registry.RecordJoin(p.ID, roomName)

	// Snapshot history and roster while holding the lock: the joiner must
	// see every message appended strictly before its join completed.
	p.Enqueue(models.EventHistory, c.history.History(roomName))
	p.Enqueue(models.EventExistingUsers, models.Roster{Members: rosterExcluding(r, p.ID)})

	if !rejoining {
		notifyJoined(r, p)
	}
	r.mu.Unlock()

	if c.mirror != nil {
		c.mirror.Join(roomName, p.ID)
	}
	log.Printf("Peer %s (%s) joined room %s", p.ID, p.Name, roomName)
	return nil
}

// Leave removes the peer from a room and tells the remaining members.
// Leaving a room not joined is a no-op.
func (c *Coordinator) Leave(p *Peer, roomName string) {
	c.leaveRoom(p, roomName)
	c.registry.RecordLeave(p.ID, roomName)
}

// Disconnect is terminal: it erases the connection from the registry and
// every room it occupied, emitting user-left in each. Safe to call for
// connections that never registered.
func (c *Coordinator) Disconnect(p *Peer) {
	occupied := c.registry.Drop(p.ID)
	for _, roomName := range occupied {
		c.leaveRoom(p, roomName)
	}
	if len(occupied) > 0 {
		log.Printf("Peer %s disconnected from %d room(s)", p.ID, len(occupied))
	}
}

// Message appends a chat message to the room history and broadcasts the
// stored copy (with its server-assigned timestamp) to every member,
// including the sender.
func (c *Coordinator) Message(p *Peer, msg models.Message) error {
	if msg.Room == "" || msg.Empty() {
		return ErrPayloadMalformed
	}

	r := c.lookupRoom(msg.Room)
	if r == nil {
		return ErrNotMember
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[p.ID]; !ok {
		return ErrNotMember
	}

	msg.Sender = p.Name
	stored := c.history.Append(msg)
	for _, member := range r.members {
		member.Enqueue(models.EventMessage, stored)
	}
	return nil
}

// Snapshot returns a read-only view of a room. Unknown rooms yield an empty
// snapshot, never an error.
func (c *Coordinator) Snapshot(roomName string) models.RoomSnapshot {
	snap := models.RoomSnapshot{
		Room:       roomName,
		Members:    []models.RosterEntry{},
		HistoryLen: c.history.Len(roomName),
	}

	r := c.lookupRoom(roomName)
	if r == nil {
		return snap
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, member := range r.members {
		snap.Members = append(snap.Members, models.RosterEntry{SenderID: member.ID, User: member.Name})
	}
	snap.MemberCount = len(snap.Members)
	return snap
}

// OccupiedRooms reports the rooms a connection is currently in.
func (c *Coordinator) OccupiedRooms(connID string) []string {
	return c.registry.Rooms(connID)
}

func (c *Coordinator) getOrCreateRoom(name string) *room {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.rooms[name]
	if !ok {
		r = &room{name: name, members: make(map[string]*Peer)}
		c.rooms[name] = r
		log.Printf("Created room %s", name)
	}
	return r
}

func (c *Coordinator) lookupRoom(name string) *room {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rooms[name]
}

func (c *Coordinator) leaveRoom(p *Peer, roomName string) {
	r := c.lookupRoom(roomName)
	if r == nil {
		return
	}

	r.mu.Lock()
	if _, ok := r.members[p.ID]; !ok {
		r.mu.Unlock()
		return
	}
	delete(r.members, p.ID)
	notifyLeft(r, p)
	empty := len(r.members) == 0
	r.mu.Unlock()

	if empty {
		c.reapRoom(r)
	}
	if c.mirror != nil {
		c.mirror.Leave(roomName, p.ID)
	}
	log.Printf("Peer %s left room %s", p.ID, roomName)
}

// reapRoom drops the membership state of an emptied room. The recheck under
// both locks covers a concurrent join racing the final leave.
func (c *Coordinator) reapRoom(r *room) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.members) == 0 && c.rooms[r.name] == r {
		r.dead = true
		delete(c.rooms, r.name)
		log.Printf("Removed empty room %s", r.name)
	}
}
