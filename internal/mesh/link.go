// Package mesh negotiates the full set of pairwise peer links a client keeps
// with the other members of its room. Which side initiates each link is
// decided locally and deterministically, so no coordinator hands out roles.
package mesh

import (
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
)

// Offerer reports whether the local connection initiates the link to remote.
// The lexically lower id offers; both sides compute the same answer from the
// immutable ids in the roster, so exactly one of them ever sends an offer.
func Offerer(local, remote string) bool {
	return local < remote
}

// LinkState tracks one pairwise negotiation.
type LinkState int

const (
	// StateIdle: link object exists, no description exchanged yet.
	StateIdle LinkState = iota
	// StateOfferSent: local offer out, waiting for the answer.
	StateOfferSent
	// StateOfferReceived: remote offer applied, answer not yet sent.
	StateOfferReceived
	// StateAnswerSent: answer out, waiting for transport connection.
	StateAnswerSent
	// StateAnswerReceived: remote answer applied, waiting for transport.
	StateAnswerReceived
	// StateEstablished: transport connected.
	StateEstablished
	// StateClosed is terminal, reached on peer departure or local teardown.
	StateClosed
)

func (s LinkState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOfferSent:
		return "offer-sent"
	case StateOfferReceived:
		return "offer-received"
	case StateAnswerSent:
		return "answer-sent"
	case StateAnswerReceived:
		return "answer-received"
	case StateEstablished:
		return "established"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// PeerConnection is the slice of *webrtc.PeerConnection the link machine
// drives. Tests substitute a fake.
type PeerConnection interface {
	CreateOffer(*webrtc.OfferOptions) (webrtc.SessionDescription, error)
	CreateAnswer(*webrtc.AnswerOptions) (webrtc.SessionDescription, error)
	SetLocalDescription(webrtc.SessionDescription) error
	SetRemoteDescription(webrtc.SessionDescription) error
	AddICECandidate(webrtc.ICECandidateInit) error
	Close() error
}

// Link is the state machine for one pairwise connection.
type Link struct {
	PeerID string

	mu        sync.Mutex
	state     LinkState
	pc        PeerConnection
	remoteSet bool

	// pending queues candidates that arrive before the remote description
	// is applied; they are flushed, never dropped.
	pending []webrtc.ICECandidateInit
}

func newLink(peerID string, pc PeerConnection) *Link {
	return &Link{PeerID: peerID, state: StateIdle, pc: pc}
}

func (l *Link) State() LinkState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// sendOffer creates and applies the local offer. Only the offerer side calls
// it, and only from StateIdle.
func (l *Link) sendOffer() (webrtc.SessionDescription, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != StateIdle {
		return webrtc.SessionDescription{}, fmt.Errorf("cannot offer in state %s", l.state)
	}
	offer, err := l.pc.CreateOffer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("create offer: %w", err)
	}
	if err := l.pc.SetLocalDescription(offer); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("set local description: %w", err)
	}
	l.state = StateOfferSent
	return offer, nil
}

// acceptOffer applies a remote offer and produces the answer.
func (l *Link) acceptOffer(offer webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != StateIdle {
		return webrtc.SessionDescription{}, fmt.Errorf("unexpected offer in state %s", l.state)
	}
	if err := l.applyRemoteLocked(offer); err != nil {
		return webrtc.SessionDescription{}, err
	}
	l.state = StateOfferReceived

	answer, err := l.pc.CreateAnswer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("create answer: %w", err)
	}
	if err := l.pc.SetLocalDescription(answer); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("set local description: %w", err)
	}
	l.state = StateAnswerSent
	return answer, nil
}

// acceptAnswer applies the remote answer on the offerer side.
func (l *Link) acceptAnswer(answer webrtc.SessionDescription) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != StateOfferSent {
		return fmt.Errorf("unexpected answer in state %s", l.state)
	}
	if err := l.applyRemoteLocked(answer); err != nil {
		return err
	}
	l.state = StateAnswerReceived
	return nil
}

// addCandidate applies a remote ICE candidate, queueing it if the remote
// description has not been set yet. Candidates are accepted in any
// non-closed state.
func (l *Link) addCandidate(cand webrtc.ICECandidateInit) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == StateClosed {
		return fmt.Errorf("link to %s is closed", l.PeerID)
	}
	if !l.remoteSet {
		l.pending = append(l.pending, cand)
		return nil
	}
	if err := l.pc.AddICECandidate(cand); err != nil {
		return fmt.Errorf("add candidate: %w", err)
	}
	return nil
}

// connected marks the transport as up.
func (l *Link) connected() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == StateAnswerSent || l.state == StateAnswerReceived {
		l.state = StateEstablished
	}
}

// close tears the link down. Idempotent.
func (l *Link) close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == StateClosed {
		return
	}
	l.state = StateClosed
	l.pending = nil
	l.pc.Close()
}

// applyRemoteLocked sets the remote description and flushes any candidates
// queued while it was absent. Caller holds l.mu.
func (l *Link) applyRemoteLocked(desc webrtc.SessionDescription) error {
	if err := l.pc.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	l.remoteSet = true
	for _, cand := range l.pending {
		if err := l.pc.AddICECandidate(cand); err != nil {
			return fmt.Errorf("flush queued candidate: %w", err)
		}
	}
	l.pending = nil
	return nil
}
