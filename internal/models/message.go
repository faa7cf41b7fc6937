package models

import "encoding/json"

// Event names carried in the envelope, part of the wire contract with web
// clients.
const (
	EventConnected     = "connected"
	EventJoinRoom      = "joinRoom"
	EventLeaveRoom     = "leaveRoom"
	EventMessage       = "message"
	EventHistory       = "history"
	EventExistingUsers = "existing-users"
	EventUserJoined    = "user-joined"
	EventUserLeft      = "user-left"
	EventVideoOffer    = "video-offer"
	EventVideoAnswer   = "video-answer"
	EventICECandidate  = "ice-candidate"
	EventError         = "error"
)

// Envelope wraps every websocket frame in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Message is a chat entry in a room. Content and FileURL are each optional,
// but at least one must be present. Timestamp is assigned by the server at
// receipt time, in Unix milliseconds.
type Message struct {
	Room      string `json:"room"`
	Sender    string `json:"sender"`
	Content   string `json:"content,omitempty"`
	FileURL   string `json:"fileUrl,omitempty"`
	FileName  string `json:"fileName,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// Empty reports whether the message carries neither text nor a file.
func (m Message) Empty() bool {
	return m.Content == "" && m.FileURL == ""
}

// JoinRequest is the client payload for joinRoom. The user field is advisory:
// the display name used for presence is the one verified at the handshake.
type JoinRequest struct {
	Room string `json:"room"`
	User string `json:"user,omitempty"`
}

// LeaveRequest is the client payload for leaveRoom.
type LeaveRequest struct {
	Room string `json:"room"`
}

// RosterEntry identifies one current room member.
type RosterEntry struct {
	SenderID string `json:"senderId"`
	User     string `json:"user"`
}

// Roster is the existing-users payload sent to a joiner.
type Roster struct {
	Members []RosterEntry `json:"members"`
}

// Presence is the user-joined / user-left payload.
type Presence struct {
	SenderID string `json:"senderId"`
	User     string `json:"user"`
}

// ErrorPayload is sent on the error event.
type ErrorPayload struct {
	Error string `json:"error"`
}
