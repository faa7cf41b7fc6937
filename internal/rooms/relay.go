package rooms

import (
	"log"

	"github.com/mossy-p/roomrelay/internal/models"
)

// Forward relays an addressed signaling payload (offer, answer or ICE
// candidate) to exactly one target connection in the stated room. The body is
// delivered verbatim; only the sender id is rewritten to the verified
// connection id, never trusting a client-declared one. A target that has
// already disconnected is a silent drop: signaling is best-effort and the
// caller's negotiation will time out on its own.
func (c *Coordinator) Forward(sender *Peer, event string, sig models.SignalMessage) error {
	if sig.Room == "" || sig.TargetID == "" {
		return ErrPayloadMalformed
	}

	r := c.lookupRoom(sig.Room)
	if r == nil {
		return ErrNotMember
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[sender.ID]; !ok {
		return ErrNotMember
	}

	sig.SenderID = sender.ID

	target, ok := r.members[sig.TargetID]
	if !ok {
		log.Printf("Dropping %s: target %s not in room %s", event, sig.TargetID, sig.Room)
		return nil
	}
	target.Enqueue(event, sig)
	return nil
}
