// Package session implements the connection coordinator: the state machine
// that drives the out-of-band offer/answer exchange, owns the data channel
// lifecycle, and measures liveness/latency with a heartbeat once connected.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/wolfden/denlink/internal/signal"
	"github.com/wolfden/denlink/internal/util"
)

// Defaults for the tunable timing parameters. Both are deliberately config
// fields rather than literals: the gathering bound trades handshake latency
// against candidate completeness, and the heartbeat cadence trades latency
// resolution against channel noise.
const (
	DefaultGatherTimeout     = 3 * time.Second
	DefaultHeartbeatInterval = 2 * time.Second
)

// Config carries the coordinator's tunables and its transport factory.
type Config struct {
	// GatherTimeout bounds the wait for ICE candidate gathering. On expiry
	// the handshake proceeds with the candidates gathered so far.
	GatherTimeout time.Duration

	// HeartbeatInterval is the ping cadence once connected.
	HeartbeatInterval time.Duration

	// Dial builds a fresh Link per session. Required.
	Dial Dialer
}

// peerSession is the state of one active connection attempt. At most one
// exists per Coordinator; starting a new one tears the old one down first.
type peerSession struct {
	role     Role
	link     Link
	open     bool
	rtt      time.Duration
	hasRTT   bool
	stopBeat context.CancelFunc
}

// Coordinator owns the peer connection lifecycle for one pairing. All
// public methods are safe for concurrent use; transport callbacks arriving
// for a torn-down session are discarded by pointer identity.
type Coordinator struct {
	cfg   Config
	hooks Hooks

	mu    sync.Mutex
	state State
	sess  *peerSession
}

// New creates an idle Coordinator. cfg.Dial must be set.
func New(cfg Config, hooks Hooks) *Coordinator {
	if cfg.Dial == nil {
		panic("session: Config.Dial is required")
	}
	if cfg.GatherTimeout <= 0 {
		cfg.GatherTimeout = DefaultGatherTimeout
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	return &Coordinator{cfg: cfg, hooks: hooks, state: StateIdle}
}

// State returns the current handshake state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Latency returns the last heartbeat round trip, if one has been measured
// in the current session.
func (c *Coordinator) Latency() (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil || !c.sess.hasRTT {
		return 0, false
	}
	return c.sess.rtt, true
}

// ---------------------------------------------------------------------------
// Handshake operations
// ---------------------------------------------------------------------------

// StartHost begins a hosting session: it creates a fresh transport, binds
// all channel handlers before the offer exists (so no early message can be
// lost), produces an offer, waits out ICE gathering within the configured
// bound, and surfaces the compressed offer text via OnOfferReady.
func (c *Coordinator) StartHost(ctx context.Context) error {
	s, err := c.begin(RoleHost)
	if err != nil {
		c.hooks.logf("start host: %v", err)
		return err
	}

	offer, err := s.link.CreateOffer()
	if err != nil {
		return c.abort("create offer: %w", err)
	}
	if err := s.link.SetLocalDescription(offer); err != nil {
		return c.abort("set local offer: %w", err)
	}
	c.transition(StateOfferCreated)

	text, err := c.finishLocalDescription(ctx, s)
	if err != nil {
		return err
	}

	c.transition(StateAwaitingAnswer)
	c.hooks.logf("offer ready — waiting for answer")
	c.hooks.onOfferReady(text)
	return nil
}

// ApplyOfferFromText runs the joining side: decode the transported offer,
// answer it, wait out ICE gathering, and surface the compressed answer text
// via OnAnswerReady. A payload that fails to decode is logged and leaves the
// session idle so the caller can retry with corrected input.
func (c *Coordinator) ApplyOfferFromText(ctx context.Context, text string) error {
	env, err := signal.Decode(text, signal.KindOffer)
	if err != nil {
		c.hooks.logf("offer rejected: %v", err)
		return err
	}
	desc, err := env.Description()
	if err != nil {
		c.hooks.logf("offer rejected: %v", err)
		return err
	}

	s, err := c.begin(RolePeer)
	if err != nil {
		c.hooks.logf("join: %v", err)
		return err
	}

	if err := s.link.SetRemoteDescription(desc); err != nil {
		return c.abort("apply remote offer: %w", err)
	}
	c.transition(StatePeerReady)

	answer, err := s.link.CreateAnswer()
	if err != nil {
		return c.abort("create answer: %w", err)
	}
	if err := s.link.SetLocalDescription(answer); err != nil {
		return c.abort("set local answer: %w", err)
	}

	out, err := c.finishLocalDescription(ctx, s)
	if err != nil {
		return err
	}

	c.transition(StateAnswerCreated)
	c.hooks.logf("answer ready — deliver it back to the host")
	c.hooks.onAnswerReady(out)
	return nil
}

// ApplyAnswerFromText completes the host side of the handshake. On success
// the data channel opens asynchronously and drives the state to Connected.
// Decode/apply failures are logged and leave the session awaiting a retry.
func (c *Coordinator) ApplyAnswerFromText(text string) error {
	env, err := signal.Decode(text, signal.KindAnswer)
	if err != nil {
		c.hooks.logf("answer rejected: %v", err)
		return err
	}
	desc, err := env.Description()
	if err != nil {
		c.hooks.logf("answer rejected: %v", err)
		return err
	}

	c.mu.Lock()
	s := c.sess
	ok := s != nil && s.role == RoleHost && c.state == StateAwaitingAnswer
	c.mu.Unlock()
	if !ok {
		err := fmt.Errorf("no offer is awaiting an answer")
		c.hooks.logf("answer rejected: %v", err)
		return err
	}

	if err := s.link.SetRemoteDescription(desc); err != nil {
		err = fmt.Errorf("apply remote answer: %w", err)
		c.hooks.logf("%v", err)
		return err
	}

	c.hooks.logf("answer applied — waiting for channel to open")
	c.hooks.onAnswerApplied()
	return nil
}

// finishLocalDescription waits out ICE gathering and encodes the finished
// local description for transport. Sharing a partial description is never
// valid, so this is the only path that produces offer/answer text.
func (c *Coordinator) finishLocalDescription(ctx context.Context, s *peerSession) (string, error) {
	if err := s.link.WaitForGathering(ctx, c.cfg.GatherTimeout); err != nil {
		return "", c.abort("gathering wait: %w", err)
	}

	desc := s.link.LocalDescription()
	if desc == nil {
		return "", c.abort("no local description after gathering")
	}
	env, err := signal.FromDescription(*desc)
	if err != nil {
		return "", c.abort("describe session: %w", err)
	}
	text, err := signal.Encode(env)
	if err != nil {
		return "", c.abort("encode %s: %w", env.Type, err)
	}
	return text, nil
}

// ---------------------------------------------------------------------------
// Channel traffic
// ---------------------------------------------------------------------------

// Send serializes v and writes it to the data channel. While the channel is
// not open the message is silently dropped — no queueing. The game layer
// re-sends state on its own cadence, so a queued message would only arrive
// stale.
func (c *Coordinator) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	c.mu.Lock()
	s := c.sess
	open := s != nil && s.open
	c.mu.Unlock()
	if !open {
		return nil
	}

	if err := s.link.Send(data); err != nil {
		return fmt.Errorf("channel send: %w", err)
	}
	util.Stats.AddSent(len(data))
	return nil
}

func (c *Coordinator) handleMessage(s *peerSession, data []byte) {
	c.mu.Lock()
	live := c.sess == s
	c.mu.Unlock()
	if !live {
		return
	}

	util.Stats.AddRecv(len(data))

	in, err := decodeInbound(data)
	if err != nil {
		c.hooks.logf("dropping message: %v", err)
		return
	}

	switch in.kind {
	case inboundPing:
		// Echo immediately so the remote's round trip measures the wire,
		// not whatever the app layer happens to be doing.
		echo, _ := json.Marshal(heartbeat{Type: msgPong, T: in.t})
		if err := s.link.Send(echo); err != nil {
			c.hooks.logf("pong send failed: %v", err)
		}

	case inboundPong:
		rtt := time.Duration(time.Now().UnixMilli()-in.t) * time.Millisecond
		if rtt < 0 {
			rtt = 0
		}
		c.mu.Lock()
		if c.sess == s {
			s.rtt, s.hasRTT = rtt, true
		}
		c.mu.Unlock()
		c.hooks.setLatency(rtt)

	case inboundApp:
		c.hooks.onAppMessage(in.payload)
	}
}

// heartbeat pings on a fixed cadence until its context is cancelled. The
// echoed pong is the only liveness/latency mechanism — there is no separate
// keep-alive.
func (c *Coordinator) heartbeat(ctx context.Context, s *peerSession) {
	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ping, _ := json.Marshal(heartbeat{Type: msgPing, T: time.Now().UnixMilli()})
			if err := s.link.Send(ping); err != nil {
				c.hooks.logf("ping send failed: %v", err)
				return
			}
			util.Stats.AddPing()
			util.Stats.AddSent(len(ping))

		case <-ctx.Done():
			return
		}
	}
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// begin tears down any previous session and dials a fresh Link with all
// lifecycle handlers bound. Teardown-before-rebuild is mandatory: two live
// native transports must never coexist in one coordinator.
func (c *Coordinator) begin(role Role) (*peerSession, error) {
	c.mu.Lock()
	c.teardownLocked()
	c.state = StateIdle
	c.mu.Unlock()

	link, err := c.cfg.Dial()
	if err != nil {
		return nil, fmt.Errorf("create transport: %w", err)
	}

	s := &peerSession{role: role, link: link}
	c.mu.Lock()
	c.sess = s
	c.mu.Unlock()

	c.bind(s)
	return s, nil
}

// bind wires the Link's lifecycle callbacks to this session. Every callback
// checks that s is still the live session before touching coordinator state,
// so events from an abandoned handshake cannot corrupt a new one.
func (c *Coordinator) bind(s *peerSession) {
	s.link.OnOpen(func() {
		c.mu.Lock()
		if c.sess != s {
			c.mu.Unlock()
			return
		}
		s.open = true
		c.state = StateConnected
		hbCtx, cancel := context.WithCancel(context.Background())
		s.stopBeat = cancel
		c.mu.Unlock()

		c.hooks.logf("data channel open (%s)", s.role)
		c.hooks.setStatus(StateConnected)
		c.hooks.setChatEnabled(true)
		go c.heartbeat(hbCtx, s)
	})

	s.link.OnClose(func() {
		c.mu.Lock()
		if c.sess != s {
			c.mu.Unlock()
			return
		}
		if s.stopBeat != nil {
			s.stopBeat()
		}
		s.open = false
		c.state = StateClosed
		c.mu.Unlock()

		c.hooks.logf("data channel closed")
		c.hooks.setStatus(StateClosed)
		c.hooks.setChatEnabled(false)
		c.hooks.resetUI()
	})

	s.link.OnMessage(func(data []byte) {
		c.handleMessage(s, data)
	})

	s.link.OnConnectionStateChange(func(st webrtc.PeerConnectionState) {
		c.hooks.logf("peer connection state: %s", st)
		if st != webrtc.PeerConnectionStateFailed {
			return
		}
		c.mu.Lock()
		if c.sess != s {
			c.mu.Unlock()
			return
		}
		if s.stopBeat != nil {
			s.stopBeat()
		}
		s.open = false
		c.state = StateFailed
		c.mu.Unlock()

		// Terminal: no automatic retry. A fresh handshake is required.
		c.hooks.setStatus(StateFailed)
		c.hooks.setChatEnabled(false)
		c.hooks.resetUI()
	})
}

// Close tears down the active session, if any. Idempotent.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	had := c.sess != nil
	err := c.teardownLocked()
	if had {
		c.state = StateClosed
	}
	c.mu.Unlock()
	return err
}

func (c *Coordinator) teardownLocked() error {
	if c.sess == nil {
		return nil
	}
	s := c.sess
	c.sess = nil
	if s.stopBeat != nil {
		s.stopBeat()
	}
	return s.link.Close()
}

// abort tears the session down after a handshake step failed, returning the
// coordinator to Idle so the caller may retry from scratch.
func (c *Coordinator) abort(format string, args ...any) error {
	err := fmt.Errorf(format, args...)

	c.mu.Lock()
	c.teardownLocked()
	c.state = StateIdle
	c.mu.Unlock()

	c.hooks.logf("%v", err)
	c.hooks.setStatus(StateIdle)
	return err
}

func (c *Coordinator) transition(st State) {
	c.mu.Lock()
	c.state = st
	c.mu.Unlock()
	c.hooks.setStatus(st)
}
