package rooms

import (
	"encoding/json"
	"log"

	"github.com/mossy-p/roomrelay/internal/models"
)

// sendBuffer is the outbound queue depth per connection. Delivery is
// best-effort: a slow consumer drops frames rather than blocking the room.
const sendBuffer = 256

// Peer is one live connection admitted to the coordinator. ID is assigned at
// the transport handshake and Name is the verified display name; both are
// immutable for the session.
type Peer struct {
	ID   string
	Name string

	// Send carries marshaled envelopes to the connection's write pump.
	Send chan []byte
}

func NewPeer(id, name string) *Peer {
	return &Peer{
		ID:   id,
		Name: name,
		Send: make(chan []byte, sendBuffer),
	}
}

// Enqueue marshals data into an envelope and queues it for delivery. It
// reports false when the frame was dropped (full buffer or marshal failure).
func (p *Peer) Enqueue(event string, data any) bool {
	raw, err := json.Marshal(data)
	if err != nil {
		log.Printf("Failed to marshal %s payload for peer %s: %v", event, p.ID, err)
		return false
	}
	frame, err := json.Marshal(models.Envelope{Event: event, Data: raw})
	if err != nil {
		log.Printf("Failed to marshal envelope for peer %s: %v", p.ID, err)
		return false
	}

	select {
	case p.Send <- frame:
		return true
	default:
		log.Printf("Dropping %s frame for peer %s, buffer full", event, p.ID)
		return false
	}
}
