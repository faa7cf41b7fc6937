package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mossy-p/roomrelay/internal/history"
	"github.com/mossy-p/roomrelay/internal/middleware"
	"github.com/mossy-p/roomrelay/internal/models"
	"github.com/mossy-p/roomrelay/internal/registry"
	"github.com/mossy-p/roomrelay/internal/rooms"
)

// stubVerifier treats the token itself as the username.
type stubVerifier struct{}

func (stubVerifier) Verify(token string) (middleware.Identity, error) {
	if token == "bad" {
		return middleware.Identity{}, errors.New("rejected")
	}
	return middleware.Identity{Subject: "sub-" + token, Username: token}, nil
}

func signalingServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	coord := rooms.NewCoordinator(registry.New(), history.New(0), nil)

	router := gin.New()
	router.GET("/ws", HandleSignaling(coord, stubVerifier{}))

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func dialWS(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn, payload any) string {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var env models.Envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	if payload != nil {
		require.NoError(t, json.Unmarshal(env.Data, payload))
	}
	return env.Event
}

func sendEnvelope(t *testing.T, conn *websocket.Conn, event string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	frame, err := json.Marshal(models.Envelope{Event: event, Data: data})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))
}

func TestSignalingRejectsInvalidToken(t *testing.T) {
	srv := signalingServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=bad"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	url = "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	_, resp, err = websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSignalingHandshakeAssignsID(t *testing.T) {
	srv := signalingServer(t)
	conn := dialWS(t, srv, "alice")

	var hello models.Presence
	require.Equal(t, models.EventConnected, readEnvelope(t, conn, &hello))
	assert.NotEmpty(t, hello.SenderID)
	assert.Equal(t, "alice", hello.User)
}

func TestSignalingJoinAndChatFlow(t *testing.T) {
	srv := signalingServer(t)

	alice := dialWS(t, srv, "alice")
	var aliceHello models.Presence
	require.Equal(t, models.EventConnected, readEnvelope(t, alice, &aliceHello))

	sendEnvelope(t, alice, models.EventJoinRoom, models.JoinRequest{Room: "lobby", User: "alice"})

	var hist []models.Message
	require.Equal(t, models.EventHistory, readEnvelope(t, alice, &hist))
	assert.Empty(t, hist)

	var roster models.Roster
	require.Equal(t, models.EventExistingUsers, readEnvelope(t, alice, &roster))
	assert.Empty(t, roster.Members)

	// second client joins the same room
	bob := dialWS(t, srv, "bob")
	var bobHello models.Presence
	require.Equal(t, models.EventConnected, readEnvelope(t, bob, &bobHello))

	sendEnvelope(t, bob, models.EventJoinRoom, models.JoinRequest{Room: "lobby", User: "bob"})

	require.Equal(t, models.EventHistory, readEnvelope(t, bob, &hist))
	require.Equal(t, models.EventExistingUsers, readEnvelope(t, bob, &roster))
	require.Len(t, roster.Members, 1)
	assert.Equal(t, aliceHello.SenderID, roster.Members[0].SenderID)
	assert.Equal(t, "alice", roster.Members[0].User)

	var joined models.Presence
	require.Equal(t, models.EventUserJoined, readEnvelope(t, alice, &joined))
	assert.Equal(t, bobHello.SenderID, joined.SenderID)

	// chat reaches both members with the server-assigned metadata
	sendEnvelope(t, bob, models.EventMessage, models.Message{Room: "lobby", Content: "hi"})

	var got models.Message
	for _, conn := range []*websocket.Conn{alice, bob} {
		require.Equal(t, models.EventMessage, readEnvelope(t, conn, &got))
		assert.Equal(t, "bob", got.Sender)
		assert.Equal(t, "hi", got.Content)
		assert.Positive(t, got.Timestamp)
	}

	// disconnect announces the departure
	bob.Close()
	var left models.Presence
	require.Equal(t, models.EventUserLeft, readEnvelope(t, alice, &left))
	assert.Equal(t, bobHello.SenderID, left.SenderID)
}

func TestSignalingRelaysOfferPointToPoint(t *testing.T) {
	srv := signalingServer(t)

	alice := dialWS(t, srv, "alice")
	var aliceHello models.Presence
	require.Equal(t, models.EventConnected, readEnvelope(t, alice, &aliceHello))
	sendEnvelope(t, alice, models.EventJoinRoom, models.JoinRequest{Room: "lobby", User: "alice"})
	readEnvelope(t, alice, nil) // history
	readEnvelope(t, alice, nil) // existing-users

	bob := dialWS(t, srv, "bob")
	var bobHello models.Presence
	require.Equal(t, models.EventConnected, readEnvelope(t, bob, &bobHello))
	sendEnvelope(t, bob, models.EventJoinRoom, models.JoinRequest{Room: "lobby", User: "bob"})
	readEnvelope(t, bob, nil)   // history
	readEnvelope(t, bob, nil)   // existing-users
	readEnvelope(t, alice, nil) // user-joined

	sendEnvelope(t, bob, models.EventVideoOffer, models.SignalMessage{
		Room:     "lobby",
		TargetID: aliceHello.SenderID,
		Offer:    json.RawMessage(`{"type":"offer","sdp":"v=0"}`),
	})

	var sig models.SignalMessage
	require.Equal(t, models.EventVideoOffer, readEnvelope(t, alice, &sig))
	assert.Equal(t, bobHello.SenderID, sig.SenderID, "sender id comes from the verified connection")
	assert.Equal(t, aliceHello.SenderID, sig.TargetID)
	assert.JSONEq(t, `{"type":"offer","sdp":"v=0"}`, string(sig.Offer))
}
