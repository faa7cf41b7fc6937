// Package history keeps the per-room chat log served to late joiners.
// History is keyed by room name and outlives room membership: an emptied
// room keeps its log for the lifetime of the process (optionally capped).
package history

import (
	"sync"
	"time"

	"github.com/mossy-p/roomrelay/internal/models"
)

// Store is an append-only, in-memory message log per room.
type Store struct {
	mu    sync.Mutex
	logs  map[string][]models.Message
	limit int

	// now is swappable for tests.
	now func() time.Time
}

// New creates a store. limit caps the retained messages per room to the most
// recent N; zero means unbounded.
func New(limit int) *Store {
	return &Store{
		logs:  make(map[string][]models.Message),
		limit: limit,
		now:   time.Now,
	}
}

// Append assigns the receipt timestamp, appends the message to its room's log
// and returns the stored message for re-broadcast.
func (s *Store) Append(msg models.Message) models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg.Timestamp = s.now().UnixMilli()

	log := append(s.logs[msg.Room], msg)
	if s.limit > 0 && len(log) > s.limit {
		// Keep the tail in a fresh slice so snapshots taken earlier are
		// not aliased by the shifted window.
		trimmed := make([]models.Message, s.limit)
		copy(trimmed, log[len(log)-s.limit:])
		log = trimmed
	}
	s.logs[msg.Room] = log

	return msg
}

// History returns a snapshot of the room's log. Unknown rooms yield an empty
// slice, never an error. Later appends do not mutate a returned snapshot.
func (s *Store) History(room string) []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.logs[room]
	snapshot := make([]models.Message, len(log))
	copy(snapshot, log)
	return snapshot
}

// Len returns the current log length for a room.
func (s *Store) Len(room string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.logs[room])
}
