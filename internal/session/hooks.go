package session

import "time"

// Hooks is the capability set the collaborator (game/UI layer) supplies. The
// Coordinator only talks to the outside world through these; it never
// reaches into UI state directly. Every field is optional — nil hooks are
// skipped.
type Hooks struct {
	// SetStatus reports state-machine transitions.
	SetStatus func(State)

	// Log receives human-readable progress and failure messages.
	Log func(format string, args ...any)

	// SetChatEnabled fires with true once the channel opens and false when
	// it closes, gating whatever input surface the collaborator exposes.
	SetChatEnabled func(bool)

	// SetLatency reports each freshly measured heartbeat round trip.
	SetLatency func(time.Duration)

	// OnOfferReady delivers the compressed offer text for transport.
	OnOfferReady func(text string)

	// OnAnswerReady delivers the compressed answer text for transport.
	OnAnswerReady func(text string)

	// OnAnswerApplied fires on the host once the remote answer is accepted.
	OnAnswerApplied func()

	// OnAppMessage receives every non-heartbeat channel message verbatim.
	OnAppMessage func(payload []byte)

	// ResetUIForDisconnect fires when the session ends for any reason.
	ResetUIForDisconnect func()
}

func (h Hooks) setStatus(s State) {
	if h.SetStatus != nil {
		h.SetStatus(s)
	}
}

func (h Hooks) logf(format string, args ...any) {
	if h.Log != nil {
		h.Log(format, args...)
	}
}

func (h Hooks) setChatEnabled(on bool) {
	if h.SetChatEnabled != nil {
		h.SetChatEnabled(on)
	}
}

func (h Hooks) setLatency(d time.Duration) {
	if h.SetLatency != nil {
		h.SetLatency(d)
	}
}

func (h Hooks) onOfferReady(text string) {
	if h.OnOfferReady != nil {
		h.OnOfferReady(text)
	}
}

func (h Hooks) onAnswerReady(text string) {
	if h.OnAnswerReady != nil {
		h.OnAnswerReady(text)
	}
}

func (h Hooks) onAnswerApplied() {
	if h.OnAnswerApplied != nil {
		h.OnAnswerApplied()
	}
}

func (h Hooks) onAppMessage(payload []byte) {
	if h.OnAppMessage != nil {
		h.OnAppMessage(payload)
	}
}

func (h Hooks) resetUI() {
	if h.ResetUIForDisconnect != nil {
		h.ResetUIForDisconnect()
	}
}
