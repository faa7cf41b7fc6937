package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mossy-p/roomrelay/internal/middleware"
	"github.com/mossy-p/roomrelay/internal/models"
	"github.com/mossy-p/roomrelay/internal/rooms"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 64 * 1024 // enough for SDP bodies
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin checking is handled by middleware
		return true
	},
}

// Client binds one websocket connection to its coordinator peer.
type Client struct {
	peer  *rooms.Peer
	conn  *websocket.Conn
	coord *rooms.Coordinator
}

// eventHandler processes one decoded inbound envelope.
type eventHandler func(c *Client, data json.RawMessage) error

// dispatch maps event names to handlers. Every handler goes through the
// coordinator's public contract only.
var dispatch = map[string]eventHandler{
	models.EventJoinRoom:     handleJoinRoom,
	models.EventLeaveRoom:    handleLeaveRoom,
	models.EventMessage:      handleMessage,
	models.EventVideoOffer:   handleSignal(models.EventVideoOffer),
	models.EventVideoAnswer:  handleSignal(models.EventVideoAnswer),
	models.EventICECandidate: handleSignal(models.EventICECandidate),
}

// HandleSignaling upgrades the connection after verifying the bearer token.
// Verification happens before the upgrade: an unverified client never touches
// room state.
func HandleSignaling(coord *rooms.Coordinator, verifier middleware.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "token is required"})
			return
		}

		identity, err := verifier.Verify(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("Failed to upgrade connection: %v", err)
			return
		}

		peer := rooms.NewPeer(uuid.New().String(), identity.Username)
		if err := coord.Register(peer); err != nil {
			log.Printf("Rejecting connection %s: %v", peer.ID, err)
			conn.Close()
			return
		}

		log.Printf("Peer %s connected as '%s'", peer.ID, identity.Username)

		// The client needs its assigned id for the mesh tie-break.
		peer.Enqueue(models.EventConnected, models.Presence{SenderID: peer.ID, User: identity.Username})

		client := &Client{peer: peer, conn: conn, coord: coord}
		go client.writePump()
		go client.readPump()
	}
}

func handleJoinRoom(c *Client, data json.RawMessage) error {
	var req models.JoinRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return rooms.ErrPayloadMalformed
	}
	return c.coord.Join(c.peer, req.Room)
}

func handleLeaveRoom(c *Client, data json.RawMessage) error {
	var req models.LeaveRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return rooms.ErrPayloadMalformed
	}
	c.coord.Leave(c.peer, req.Room)
	return nil
}

func handleMessage(c *Client, data json.RawMessage) error {
	var msg models.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return rooms.ErrPayloadMalformed
	}
	return c.coord.Message(c.peer, msg)
}

func handleSignal(event string) eventHandler {
	return func(c *Client, data json.RawMessage) error {
		var sig models.SignalMessage
		if err := json.Unmarshal(data, &sig); err != nil {
			return rooms.ErrPayloadMalformed
		}
		return c.coord.Forward(c.peer, event, sig)
	}
}

// readPump reads envelopes off the connection and routes them through the
// dispatch table. A disconnect at any point is terminal: the deferred
// Disconnect emits user-left in every occupied room and discards the
// connection's state.
func (c *Client) readPump() {
	defer func() {
		c.coord.Disconnect(c.peer)
		c.conn.Close()
		log.Printf("Peer %s connection closed", c.peer.ID)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		var env models.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			log.Printf("Failed to parse frame from %s: %v", c.peer.ID, err)
			continue
		}

		handler, ok := dispatch[env.Event]
		if !ok {
			log.Printf("Unknown event %q from %s", env.Event, c.peer.ID)
			continue
		}

		// Per-event failures are local: the event is dropped and the
		// connection stays usable.
		if err := handler(c, env.Data); err != nil {
			log.Printf("Event %s from %s rejected: %v", env.Event, c.peer.ID, err)
		}
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
		case frame, ok := <-c.peer.Send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Printf("Failed to write frame: %v", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
