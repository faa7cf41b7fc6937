package mesh

import (
	"fmt"
	"log"
	"sync"

	"github.com/pion/webrtc/v4"
)

// Signaler sends addressed negotiation payloads to one peer via the relay.
type Signaler interface {
	SendOffer(target string, sdp webrtc.SessionDescription) error
	SendAnswer(target string, sdp webrtc.SessionDescription) error
	SendCandidate(target string, cand webrtc.ICECandidateInit) error
}

// Factory builds the transport object for a new pairwise link.
type Factory func(peerID string) (PeerConnection, error)

// Manager owns the local side of the mesh: one Link per known peer, keyed by
// peer id. The pairing set is idempotent and never contains the local id.
type Manager struct {
	localID  string
	factory  Factory
	signaler Signaler

	mu    sync.Mutex
	links map[string]*Link
}

func NewManager(localID string, factory Factory, signaler Signaler) *Manager {
	return &Manager{
		localID:  localID,
		factory:  factory,
		signaler: signaler,
		links:    make(map[string]*Link),
	}
}

// EnsurePeer establishes the pairing with a roster member. The side with the
// lower connection id sends the offer; the other side waits for it. Calling
// it again for a peer that already has a link is a no-op.
func (m *Manager) EnsurePeer(peerID string) error {
	if peerID == m.localID || peerID == "" {
		return nil
	}

	link, created, err := m.obtainLink(peerID)
	if err != nil {
		return err
	}
	if !created || !Offerer(m.localID, peerID) {
		return nil
	}

	offer, err := link.sendOffer()
	if err != nil {
		return err
	}
	return m.signaler.SendOffer(peerID, offer)
}

// HandleOffer answers a remote offer. The link may not exist yet: offers can
// outrun the roster notice that would have created it.
func (m *Manager) HandleOffer(from string, sdp webrtc.SessionDescription) error {
	link, _, err := m.obtainLink(from)
	if err != nil {
		return err
	}

	answer, err := link.acceptOffer(sdp)
	if err != nil {
		return err
	}
	return m.signaler.SendAnswer(from, answer)
}

// HandleAnswer completes the offerer side of the handshake.
func (m *Manager) HandleAnswer(from string, sdp webrtc.SessionDescription) error {
	link := m.lookup(from)
	if link == nil {
		return fmt.Errorf("answer from %s without a link", from)
	}
	return link.acceptAnswer(sdp)
}

// HandleCandidate applies a trickled ICE candidate, queueing it when it beats
// the remote description.
func (m *Manager) HandleCandidate(from string, cand webrtc.ICECandidateInit) error {
	link, _, err := m.obtainLink(from)
	if err != nil {
		return err
	}
	return link.addCandidate(cand)
}

// PeerConnected marks a link's transport as up.
func (m *Manager) PeerConnected(peerID string) {
	if link := m.lookup(peerID); link != nil {
		link.connected()
	}
}

// PeerLeft tears down the link for a departed peer.
func (m *Manager) PeerLeft(peerID string) {
	m.mu.Lock()
	link := m.links[peerID]
	delete(m.links, peerID)
	m.mu.Unlock()

	if link != nil {
		link.close()
		log.Printf("Closed link to %s", peerID)
	}
}

// LinkState reports the negotiation state for a peer.
func (m *Manager) LinkState(peerID string) (LinkState, bool) {
	link := m.lookup(peerID)
	if link == nil {
		return StateClosed, false
	}
	return link.State(), true
}

// Close tears down every link.
func (m *Manager) Close() {
	m.mu.Lock()
	links := m.links
	m.links = make(map[string]*Link)
	m.mu.Unlock()

	for _, link := range links {
		link.close()
	}
}

func (m *Manager) lookup(peerID string) *Link {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.links[peerID]
}

// obtainLink returns the link for a peer, creating it on first use.
func (m *Manager) obtainLink(peerID string) (*Link, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if link, ok := m.links[peerID]; ok {
		return link, false, nil
	}
	pc, err := m.factory(peerID)
	if err != nil {
		return nil, false, fmt.Errorf("create peer connection for %s: %w", peerID, err)
	}
	link := newLink(peerID, pc)
	m.links[peerID] = link
	return link, true, nil
}
