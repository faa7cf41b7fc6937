package models

import "encoding/json"

// SignalMessage is a point-to-point WebRTC negotiation payload. Exactly one
// of Offer, Answer or Candidate is set, matching the envelope event. The
// bodies stay opaque to the relay; SenderID is always overwritten with the
// verified connection id before forwarding.
type SignalMessage struct {
	Room      string          `json:"room"`
	SenderID  string          `json:"senderId,omitempty"`
	TargetID  string          `json:"targetId,omitempty"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}
