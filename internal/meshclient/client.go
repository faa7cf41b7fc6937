// Package meshclient is the client side of the signaling protocol: it holds
// the websocket session, relays chat both ways and drives the mesh manager
// from roster and signal events.
package meshclient

import (
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"

	"github.com/mossy-p/roomrelay/internal/mesh"
	"github.com/mossy-p/roomrelay/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 64 * 1024
	dialTimeout    = 10 * time.Second
)

// Client is one signaling session. Create it with Dial, then Run the event
// loop.
type Client struct {
	conn     *websocket.Conn
	localID  string
	room     string
	manager  *mesh.Manager
	outgoing chan models.Envelope
	done     chan struct{}

	// OnChat receives every chat message, including history replay and the
	// client's own echoes.
	OnChat func(models.Message)
}

// Dial connects and waits for the server's connected frame carrying the
// assigned connection id, then builds the mesh manager around that id.
func Dial(serverURL, token string, stunServers []string) (*Client, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = dialTimeout
	conn, _, err := dialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	c := &Client{
		conn:     conn,
		outgoing: make(chan models.Envelope, 64),
		done:     make(chan struct{}),
	}

	// The connected frame is the first thing the server sends.
	conn.SetReadDeadline(time.Now().Add(dialTimeout))
	var env models.Envelope
	if err := conn.ReadJSON(&env); err != nil {
		conn.Close()
		return nil, fmt.Errorf("reading handshake: %w", err)
	}
	var hello models.Presence
	if env.Event != models.EventConnected || json.Unmarshal(env.Data, &hello) != nil {
		conn.Close()
		return nil, fmt.Errorf("unexpected handshake frame %q", env.Event)
	}
	c.localID = hello.SenderID

	factory := mesh.PionFactory(stunServers, (*signaler)(c), func(peerID string) {
		c.manager.PeerConnected(peerID)
	})
	c.manager = mesh.NewManager(c.localID, factory, (*signaler)(c))

	go c.writePump()
	return c, nil
}

// ID returns the server-assigned connection id.
func (c *Client) ID() string {
	return c.localID
}

// Join enters a room; the server responds with history and the roster.
func (c *Client) Join(room string) {
	c.room = room
	c.send(models.EventJoinRoom, models.JoinRequest{Room: room})
}

// Leave exits the current room.
func (c *Client) Leave() {
	if c.room != "" {
		c.send(models.EventLeaveRoom, models.LeaveRequest{Room: c.room})
	}
}

// SendText sends a chat message to the current room.
func (c *Client) SendText(content string) {
	c.send(models.EventMessage, models.Message{Room: c.room, Content: content})
}

// SendFile shares an uploaded file reference with the current room.
func (c *Client) SendFile(fileURL, fileName string) {
	c.send(models.EventMessage, models.Message{Room: c.room, FileURL: fileURL, FileName: fileName})
}

// Run reads server frames until the connection drops, dispatching chat to
// OnChat and signaling into the mesh manager.
func (c *Client) Run() error {
	defer c.manager.Close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var env models.Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("connection lost: %w", err)
		}
		if err := c.handle(env); err != nil {
			log.Printf("Event %s: %v", env.Event, err)
		}
	}
}

// Close tears down the session and every mesh link.
func (c *Client) Close() {
	select {
	case <-c.done:
	default:
		close(c.done)
	}
	c.conn.Close()
	c.manager.Close()
}

func (c *Client) handle(env models.Envelope) error {
	switch env.Event {
	case models.EventHistory:
		var history []models.Message
		if err := json.Unmarshal(env.Data, &history); err != nil {
			return err
		}
		for _, msg := range history {
			c.chat(msg)
		}

	case models.EventMessage:
		var msg models.Message
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			return err
		}
		c.chat(msg)

	case models.EventExistingUsers:
		var roster models.Roster
		if err := json.Unmarshal(env.Data, &roster); err != nil {
			return err
		}
		for _, member := range roster.Members {
			if err := c.manager.EnsurePeer(member.SenderID); err != nil {
				log.Printf("Pairing with %s failed: %v", member.SenderID, err)
			}
		}

	case models.EventUserJoined:
		var notice models.Presence
		if err := json.Unmarshal(env.Data, &notice); err != nil {
			return err
		}
		return c.manager.EnsurePeer(notice.SenderID)

	case models.EventUserLeft:
		var notice models.Presence
		if err := json.Unmarshal(env.Data, &notice); err != nil {
			return err
		}
		c.manager.PeerLeft(notice.SenderID)

	case models.EventVideoOffer:
		sig, sdp, err := decodeSignal(env.Data, "offer")
		if err != nil {
			return err
		}
		return c.manager.HandleOffer(sig.SenderID, sdp)

	case models.EventVideoAnswer:
		sig, sdp, err := decodeSignal(env.Data, "answer")
		if err != nil {
			return err
		}
		return c.manager.HandleAnswer(sig.SenderID, sdp)

	case models.EventICECandidate:
		var sig models.SignalMessage
		if err := json.Unmarshal(env.Data, &sig); err != nil {
			return err
		}
		var cand webrtc.ICECandidateInit
		if err := json.Unmarshal(sig.Candidate, &cand); err != nil {
			return err
		}
		return c.manager.HandleCandidate(sig.SenderID, cand)

	case models.EventError:
		var payload models.ErrorPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return err
		}
		log.Printf("Server error: %s", payload.Error)

	default:
		log.Printf("Ignoring unknown event %q", env.Event)
	}
	return nil
}

func (c *Client) chat(msg models.Message) {
	if c.OnChat != nil {
		c.OnChat(msg)
	}
}

func (c *Client) send(event string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		log.Printf("Failed to marshal %s: %v", event, err)
		return
	}
	select {
	case c.outgoing <- models.Envelope{Event: event, Data: raw}:
	case <-c.done:
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case env := <-c.outgoing:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(env); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

func decodeSignal(data json.RawMessage, kind string) (models.SignalMessage, webrtc.SessionDescription, error) {
	var sig models.SignalMessage
	if err := json.Unmarshal(data, &sig); err != nil {
		return sig, webrtc.SessionDescription{}, err
	}
	body := sig.Offer
	if kind == "answer" {
		body = sig.Answer
	}
	var sdp webrtc.SessionDescription
	if err := json.Unmarshal(body, &sdp); err != nil {
		return sig, webrtc.SessionDescription{}, fmt.Errorf("malformed %s body: %w", kind, err)
	}
	return sig, sdp, nil
}

// signaler adapts the client into the mesh.Signaler the manager and the pion
// factory call back into.
type signaler Client

func (s *signaler) SendOffer(target string, sdp webrtc.SessionDescription) error {
	return s.signal(models.EventVideoOffer, target, "offer", sdp)
}

func (s *signaler) SendAnswer(target string, sdp webrtc.SessionDescription) error {
	return s.signal(models.EventVideoAnswer, target, "answer", sdp)
}

func (s *signaler) SendCandidate(target string, cand webrtc.ICECandidateInit) error {
	return s.signal(models.EventICECandidate, target, "candidate", cand)
}

func (s *signaler) signal(event, target, field string, body any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	sig := models.SignalMessage{Room: s.room, SenderID: s.localID, TargetID: target}
	switch field {
	case "offer":
		sig.Offer = raw
	case "answer":
		sig.Answer = raw
	case "candidate":
		sig.Candidate = raw
	}
	(*Client)(s).send(event, sig)
	return nil
}
