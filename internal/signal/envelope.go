// Package signal defines the offer/answer envelope carried out of band
// between the two peers, and its encoding through the compression codec.
package signal

import (
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v4"

	"github.com/wolfden/denlink/internal/codec"
)

// Kind identifies which half of the handshake an envelope carries.
type Kind string

const (
	KindOffer  Kind = "offer"
	KindAnswer Kind = "answer"
)

// Envelope is the JSON payload that gets compressed and transported by hand
// (paste or QR). The SDP text is opaque to the codec.
type Envelope struct {
	Type Kind   `json:"type"`
	SDP  string `json:"sdp"`
}

// FromDescription wraps a finished local description. Call only after ICE
// gathering has completed or timed out — a partial SDP must never be shared.
func FromDescription(desc webrtc.SessionDescription) (Envelope, error) {
	switch desc.Type {
	case webrtc.SDPTypeOffer:
		return Envelope{Type: KindOffer, SDP: desc.SDP}, nil
	case webrtc.SDPTypeAnswer:
		return Envelope{Type: KindAnswer, SDP: desc.SDP}, nil
	default:
		return Envelope{}, fmt.Errorf("unsupported description type %q", desc.Type)
	}
}

// Description converts the envelope back into a session description.
func (e Envelope) Description() (webrtc.SessionDescription, error) {
	switch e.Type {
	case KindOffer:
		return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: e.SDP}, nil
	case KindAnswer:
		return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: e.SDP}, nil
	default:
		return webrtc.SessionDescription{}, fmt.Errorf("unknown envelope type %q", e.Type)
	}
}

// Encode serializes the envelope and compresses it into the share format.
func Encode(e Envelope) (string, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("marshal envelope: %w", err)
	}
	return codec.EncodeForShare(string(data)), nil
}

// Decode parses transported text back into an envelope. It accepts both
// tagged compressed payloads and legacy plain JSON. want restricts which
// envelope kind is acceptable; pass "" to accept any.
func Decode(text string, want Kind) (Envelope, error) {
	plain, err := codec.DecodeShared(text)
	if err != nil {
		return Envelope{}, fmt.Errorf("decompress payload: %w", err)
	}

	var e Envelope
	if err := json.Unmarshal([]byte(plain), &e); err != nil {
		return Envelope{}, fmt.Errorf("parse envelope: %w", err)
	}
	if e.Type != KindOffer && e.Type != KindAnswer {
		return Envelope{}, fmt.Errorf("unknown envelope type %q", e.Type)
	}
	if want != "" && e.Type != want {
		return Envelope{}, fmt.Errorf("expected %s, got %s", want, e.Type)
	}
	if e.SDP == "" {
		return Envelope{}, fmt.Errorf("envelope has no session description")
	}
	return e, nil
}
