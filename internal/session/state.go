package session

// Role identifies which side of the handshake this coordinator plays.
// Immutable for the lifetime of a session.
type Role string

const (
	RoleHost Role = "host"
	RolePeer Role = "peer"
)

// State is the coordinator's position in the handshake state machine.
//
// Host path:  Idle → OfferCreated → AwaitingAnswer → Connected → Closed
// Peer path:  Idle → PeerReady → AnswerCreated → Connected → Closed
//
// Failed is reachable from any in-progress state when the underlying
// transport reports failure; it is terminal — a fresh session is required.
type State int

const (
	StateIdle State = iota
	StateOfferCreated
	StateAwaitingAnswer
	StatePeerReady
	StateAnswerCreated
	StateConnected
	StateClosed
	StateFailed
)

var stateNames = map[State]string{
	StateIdle:           "idle",
	StateOfferCreated:   "offer-created",
	StateAwaitingAnswer: "awaiting-answer",
	StatePeerReady:      "peer-ready",
	StateAnswerCreated:  "answer-created",
	StateConnected:      "connected",
	StateClosed:         "closed",
	StateFailed:         "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}
