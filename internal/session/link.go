package session

import (
	"context"
	"time"

	"github.com/pion/webrtc/v4"
)

// Link is the handshake and channel surface the Coordinator drives. The
// production implementation wraps a pion PeerConnection (internal/transport);
// tests inject an in-process fake pair so the whole state machine runs
// without a network stack.
type Link interface {
	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(webrtc.SessionDescription) error
	SetRemoteDescription(webrtc.SessionDescription) error
	LocalDescription() *webrtc.SessionDescription

	// WaitForGathering blocks until ICE gathering completes or the timeout
	// elapses; a timeout is not an error (partial candidate sets are usable).
	WaitForGathering(ctx context.Context, timeout time.Duration) error

	OnOpen(func())
	OnClose(func())
	OnMessage(func(data []byte))
	OnConnectionStateChange(func(webrtc.PeerConnectionState))

	Send(data []byte) error
	Close() error
}

// Dialer builds a fresh Link for each session.
type Dialer func() (Link, error)
