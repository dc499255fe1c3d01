// Package transport wraps a single PeerConnection + DataChannel pair behind
// the handshake surface the session coordinator drives. All pion specifics
// live here; the coordinator only sees the Link interface.
package transport

import (
	"context"
	"errors"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/wolfden/denlink/internal/session"
)

// Compile-time interface check.
var _ session.Link = (*Transport)(nil)

// Transport owns one PeerConnection and its pre-negotiated DataChannel.
// Handshake calls (CreateOffer / SetRemoteDescription / …) are driven by the
// session coordinator; lifecycle callbacks fire on pion's goroutines.
type Transport struct {
	pc       *webrtc.PeerConnection
	dc       *webrtc.DataChannel
	gathered <-chan struct{}
}

// New creates a Transport with a fresh PeerConnection and DataChannel. The
// gathering-complete promise is captured here, before any description is
// set, so WaitForGathering observes the full gathering cycle.
func New() (*Transport, error) {
	pc, err := newPeerConnection()
	if err != nil {
		return nil, err
	}

	dc, err := newDataChannel(pc)
	if err != nil {
		pc.Close()
		return nil, err
	}

	return &Transport{
		pc:       pc,
		dc:       dc,
		gathered: webrtc.GatheringCompletePromise(pc),
	}, nil
}

// CreateOffer generates an SDP offer.
func (t *Transport) CreateOffer() (webrtc.SessionDescription, error) {
	return t.pc.CreateOffer(nil)
}

// CreateAnswer generates an SDP answer.
func (t *Transport) CreateAnswer() (webrtc.SessionDescription, error) {
	return t.pc.CreateAnswer(nil)
}

// SetLocalDescription applies the local SDP and starts ICE gathering.
func (t *Transport) SetLocalDescription(sdp webrtc.SessionDescription) error {
	return t.pc.SetLocalDescription(sdp)
}

// SetRemoteDescription applies the remote SDP.
func (t *Transport) SetRemoteDescription(sdp webrtc.SessionDescription) error {
	return t.pc.SetRemoteDescription(sdp)
}

// LocalDescription returns the current local description, which includes
// every ICE candidate gathered so far.
func (t *Transport) LocalDescription() *webrtc.SessionDescription {
	return t.pc.LocalDescription()
}

// WaitForGathering blocks until ICE candidate gathering finishes, the
// timeout elapses, or ctx is cancelled. A timeout is not an error: partial
// candidate sets still usually yield connectivity, so the handshake proceeds
// with whatever has been gathered.
func (t *Transport) WaitForGathering(ctx context.Context, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-t.gathered:
		return nil
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OnOpen registers the DataChannel open callback.
func (t *Transport) OnOpen(fn func()) { t.dc.OnOpen(fn) }

// OnClose registers the DataChannel close callback.
func (t *Transport) OnClose(fn func()) { t.dc.OnClose(fn) }

// OnMessage registers the inbound message callback.
func (t *Transport) OnMessage(fn func(data []byte)) {
	t.dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		fn(msg.Data)
	})
}

// OnConnectionStateChange registers the PeerConnection state callback.
func (t *Transport) OnConnectionStateChange(fn func(webrtc.PeerConnectionState)) {
	t.pc.OnConnectionStateChange(fn)
}

// Send writes one message to the DataChannel.
func (t *Transport) Send(data []byte) error {
	return t.dc.Send(data)
}

// Close tears down the DataChannel and the PeerConnection. Explicit teardown
// is mandatory before a new session starts — native transport resources must
// not be left to the garbage collector.
func (t *Transport) Close() error {
	return errors.Join(t.dc.Close(), t.pc.Close())
}
