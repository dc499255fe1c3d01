package transport

import (
	"github.com/pion/webrtc/v4"
)

// STUN servers for ICE candidate gathering. No TURN — the system is designed
// for direct P2P connectivity with zero infrastructure cost; when STUN alone
// cannot punch through, the handshake fails and the users are told so.
var stunServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
}

// newPeerConnection creates a PeerConnection configured with Google STUN servers.
func newPeerConnection() (*webrtc.PeerConnection, error) {
	config := webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{URLs: stunServers},
		},
	}
	return webrtc.NewPeerConnection(config)
}

// newDataChannel creates the single ordered, pre-negotiated DataChannel on
// the given PeerConnection. Negotiated mode (ID 0) lets both sides create
// the channel symmetrically without relying on OnDataChannel. Ordered and
// reliable: the channel carries game state and heartbeats, where reordering
// would show stale state after newer state.
func newDataChannel(pc *webrtc.PeerConnection) (*webrtc.DataChannel, error) {
	ordered := true
	negotiated := true
	id := uint16(0)

	return pc.CreateDataChannel("game", &webrtc.DataChannelInit{
		Ordered:    &ordered,
		Negotiated: &negotiated,
		ID:         &id,
	})
}
