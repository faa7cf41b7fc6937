package rooms

import "github.com/mossy-p/roomrelay/internal/models"

// Presence notices are computed and emitted while the caller holds the room
// lock, so a join or leave is never interleaved with another operation on
// the same room.

// rosterExcluding derives the (connection id, display name) view of the
// room's members, leaving out the given connection.
func rosterExcluding(r *room, connID string) []models.RosterEntry {
	roster := make([]models.RosterEntry, 0, len(r.members))
	for _, member := range r.members {
		if member.ID == connID {
			continue
		}
		roster = append(roster, models.RosterEntry{SenderID: member.ID, User: member.Name})
	}
	return roster
}

// notifyJoined announces a new member to every other member.
func notifyJoined(r *room, joined *Peer) {
	notice := models.Presence{SenderID: joined.ID, User: joined.Name}
	for _, member := range r.members {
		if member.ID == joined.ID {
			continue
		}
		member.Enqueue(models.EventUserJoined, notice)
	}
}

// notifyLeft announces a departure to the remaining members. The departed
// peer has already been removed from r.members.
func notifyLeft(r *room, left *Peer) {
	notice := models.Presence{SenderID: left.ID, User: left.Name}
	for _, member := range r.members {
		member.Enqueue(models.EventUserLeft, notice)
	}
}
