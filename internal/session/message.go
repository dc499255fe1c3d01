package session

import (
	"encoding/json"
	"fmt"
)

// Heartbeat message types. Anything else on the channel is application
// payload and is forwarded verbatim to the collaborator.
const (
	msgPing = "ping"
	msgPong = "pong"
)

// heartbeat is the wire form of a ping or its echoed pong. T is the sender's
// clock in Unix milliseconds and travels unchanged through the echo, so the
// original sender can compute a round trip from its own clock alone.
type heartbeat struct {
	Type string `json:"type"`
	T    int64  `json:"t"`
}

type inboundKind int

const (
	inboundApp inboundKind = iota
	inboundPing
	inboundPong
)

// inbound is a channel message decoded once at the boundary.
type inbound struct {
	kind    inboundKind
	t       int64           // heartbeat timestamp, valid for ping/pong
	payload json.RawMessage // original bytes, valid for app messages
}

// decodeInbound classifies a raw channel message. Non-JSON input is an
// error; the caller logs and drops it rather than letting it propagate.
func decodeInbound(data []byte) (inbound, error) {
	var probe struct {
		Type string `json:"type"`
		T    int64  `json:"t"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return inbound{}, fmt.Errorf("malformed channel message: %w", err)
	}

	switch probe.Type {
	case msgPing:
		return inbound{kind: inboundPing, t: probe.T}, nil
	case msgPong:
		return inbound{kind: inboundPong, t: probe.T}, nil
	default:
		return inbound{kind: inboundApp, payload: data}, nil
	}
}
