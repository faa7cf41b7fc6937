package mesh

import (
	"log"

	"github.com/pion/webrtc/v4"
)

// DefaultSTUNServers matches the servers the web client negotiates with.
var DefaultSTUNServers = []string{"stun:stun.l.google.com:19302"}

// PionFactory builds real pion peer connections. Gathered candidates go out
// through the signaler and transport-level connects are reported through
// onConnected, which feeds Manager.PeerConnected.
func PionFactory(stunServers []string, signaler Signaler, onConnected func(peerID string)) Factory {
	if len(stunServers) == 0 {
		stunServers = DefaultSTUNServers
	}

	return func(peerID string) (PeerConnection, error) {
		pc, err := webrtc.NewPeerConnection(webrtc.Configuration{
			ICEServers: []webrtc.ICEServer{{URLs: stunServers}},
		})
		if err != nil {
			return nil, err
		}

		// A control channel gives the SDP a media line even though meshctl
		// carries no audio or video tracks.
		if _, err := pc.CreateDataChannel("control", nil); err != nil {
			pc.Close()
			return nil, err
		}

		pc.OnICECandidate(func(c *webrtc.ICECandidate) {
			if c == nil {
				return
			}
			if err := signaler.SendCandidate(peerID, c.ToJSON()); err != nil {
				log.Printf("Failed to send candidate to %s: %v", peerID, err)
			}
		})

		pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
			log.Printf("Link %s transport state: %s", peerID, state)
			if state == webrtc.PeerConnectionStateConnected {
				onConnected(peerID)
			}
		})

		return pc, nil
	}
}
