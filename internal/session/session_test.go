package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/wolfden/denlink/internal/signal"
)

// Compile-time interface check.
var _ Link = (*fakeLink)(nil)

// fakeLink implements Link for in-process testing. Two linked fakeLink
// instances simulate a bidirectional channel: data sent by one side is
// delivered asynchronously to the other side's OnMessage handler. ICE
// gathering "completes" when SetLocalDescription is called, unless the
// fake is built with stalled gathering.
type fakeLink struct {
	mu       sync.Mutex
	peer     *fakeLink
	local    *webrtc.SessionDescription
	remote   *webrtc.SessionDescription
	onOpen   func()
	onClose  func()
	onMsg    func([]byte)
	onState  func(webrtc.PeerConnectionState)
	gathered chan struct{}
	stalled  bool // never complete gathering; forces the timeout path
	closed   bool
}

// linkedFakes creates a connected pair of fakes.
func linkedFakes() (host, peer *fakeLink) {
	host = &fakeLink{gathered: make(chan struct{})}
	peer = &fakeLink{gathered: make(chan struct{})}
	host.peer = peer
	peer.peer = host
	return host, peer
}

func (f *fakeLink) CreateOffer() (webrtc.SessionDescription, error) {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0\r\no=- fake offer\r\n"}, nil
}

func (f *fakeLink) CreateAnswer() (webrtc.SessionDescription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.remote == nil {
		return webrtc.SessionDescription{}, errors.New("no remote description")
	}
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0\r\no=- fake answer\r\n"}, nil
}

func (f *fakeLink) SetLocalDescription(sdp webrtc.SessionDescription) error {
	f.mu.Lock()
	f.local = &sdp
	stalled := f.stalled
	f.mu.Unlock()
	if !stalled {
		select {
		case <-f.gathered:
		default:
			close(f.gathered)
		}
	}
	return nil
}

func (f *fakeLink) SetRemoteDescription(sdp webrtc.SessionDescription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.remote = &sdp
	return nil
}

func (f *fakeLink) LocalDescription() *webrtc.SessionDescription {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.local
}

func (f *fakeLink) WaitForGathering(ctx context.Context, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-f.gathered:
		return nil
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeLink) OnOpen(fn func()) { f.mu.Lock(); f.onOpen = fn; f.mu.Unlock() }

func (f *fakeLink) OnClose(fn func()) { f.mu.Lock(); f.onClose = fn; f.mu.Unlock() }
func (f *fakeLink) OnMessage(fn func([]byte)) {
	f.mu.Lock()
	f.onMsg = fn
	f.mu.Unlock()
}
func (f *fakeLink) OnConnectionStateChange(fn func(webrtc.PeerConnectionState)) {
	f.mu.Lock()
	f.onState = fn
	f.mu.Unlock()
}

// Send delivers data to the remote side's OnMessage handler on a separate
// goroutine, like a real DataChannel would.
func (f *fakeLink) Send(data []byte) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return errors.New("link closed")
	}
	remote := f.peer
	f.mu.Unlock()

	remote.mu.Lock()
	h := remote.onMsg
	remote.mu.Unlock()
	if h != nil {
		buf := append([]byte(nil), data...)
		go h(buf)
	}
	return nil
}

func (f *fakeLink) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// openBoth fires the channel-open callbacks on both ends, as happens when
// the SCTP association comes up after the answer is applied.
func openBoth(a, b *fakeLink) {
	for _, l := range []*fakeLink{a, b} {
		l.mu.Lock()
		h := l.onOpen
		l.mu.Unlock()
		if h != nil {
			h()
		}
	}
}

func dialer(l *fakeLink) Dialer {
	return func() (Link, error) { return l, nil }
}

// waitFor polls until cond holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func quickConfig(l *fakeLink) Config {
	return Config{
		GatherTimeout:     100 * time.Millisecond,
		HeartbeatInterval: 20 * time.Millisecond,
		Dial:              dialer(l),
	}
}

// TestHandshake drives the full offer → answer → connected exchange through
// two coordinators over a fake link pair, then sends one application
// message end to end.
func TestHandshake(t *testing.T) {
	ctx := context.Background()
	hostLink, peerLink := linkedFakes()

	offerCh := make(chan string, 1)
	answerCh := make(chan string, 1)
	appCh := make(chan []byte, 16)
	answerApplied := false

	host := New(quickConfig(hostLink), Hooks{
		OnOfferReady:    func(s string) { offerCh <- s },
		OnAnswerApplied: func() { answerApplied = true },
	})
	defer host.Close()

	peer := New(quickConfig(peerLink), Hooks{
		OnAnswerReady: func(s string) { answerCh <- s },
		OnAppMessage:  func(p []byte) { appCh <- p },
	})
	defer peer.Close()

	if err := host.StartHost(ctx); err != nil {
		t.Fatalf("StartHost failed: %v", err)
	}
	if got := host.State(); got != StateAwaitingAnswer {
		t.Fatalf("host state: got %s, want %s", got, StateAwaitingAnswer)
	}
	offer := <-offerCh

	if err := peer.ApplyOfferFromText(ctx, offer); err != nil {
		t.Fatalf("ApplyOfferFromText failed: %v", err)
	}
	if got := peer.State(); got != StateAnswerCreated {
		t.Fatalf("peer state: got %s, want %s", got, StateAnswerCreated)
	}
	answer := <-answerCh

	if err := host.ApplyAnswerFromText(answer); err != nil {
		t.Fatalf("ApplyAnswerFromText failed: %v", err)
	}
	if !answerApplied {
		t.Fatal("OnAnswerApplied did not fire")
	}

	openBoth(hostLink, peerLink)
	waitFor(t, "both connected", func() bool {
		return host.State() == StateConnected && peer.State() == StateConnected
	})

	if err := host.Send(map[string]string{"type": "chat", "text": "hello wolf"}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	waitFor(t, "app message", func() bool {
		select {
		case p := <-appCh:
			var msg struct {
				Type string `json:"type"`
				Text string `json:"text"`
			}
			if err := json.Unmarshal(p, &msg); err != nil {
				t.Fatalf("app payload is not JSON: %v", err)
			}
			return msg.Type == "chat" && msg.Text == "hello wolf"
		default:
			return false
		}
	})
}

// TestHeartbeat checks that pings are echoed as pongs carrying the original
// timestamp and yield a non-negative round trip on the sender.
func TestHeartbeat(t *testing.T) {
	ctx := context.Background()
	hostLink, peerLink := linkedFakes()

	offerCh := make(chan string, 1)
	answerCh := make(chan string, 1)
	latencyCh := make(chan time.Duration, 16)

	host := New(quickConfig(hostLink), Hooks{
		OnOfferReady: func(s string) { offerCh <- s },
		SetLatency:   func(d time.Duration) { latencyCh <- d },
	})
	defer host.Close()

	peer := New(quickConfig(peerLink), Hooks{
		OnAnswerReady: func(s string) { answerCh <- s },
	})
	defer peer.Close()

	if err := host.StartHost(ctx); err != nil {
		t.Fatalf("StartHost failed: %v", err)
	}
	if err := peer.ApplyOfferFromText(ctx, <-offerCh); err != nil {
		t.Fatalf("ApplyOfferFromText failed: %v", err)
	}
	if err := host.ApplyAnswerFromText(<-answerCh); err != nil {
		t.Fatalf("ApplyAnswerFromText failed: %v", err)
	}
	openBoth(hostLink, peerLink)

	select {
	case d := <-latencyCh:
		if d < 0 {
			t.Fatalf("negative round trip: %s", d)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no latency measurement arrived")
	}

	waitFor(t, "stored latency", func() bool {
		_, ok := host.Latency()
		return ok
	})
}

// TestGatheringTimeout: when gathering never completes, StartHost still
// resolves with an offer inside the configured bound instead of hanging.
func TestGatheringTimeout(t *testing.T) {
	hostLink, _ := linkedFakes()
	hostLink.stalled = true

	offerCh := make(chan string, 1)
	host := New(quickConfig(hostLink), Hooks{
		OnOfferReady: func(s string) { offerCh <- s },
	})
	defer host.Close()

	start := time.Now()
	if err := host.StartHost(context.Background()); err != nil {
		t.Fatalf("StartHost failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("StartHost took %s, want well under a second", elapsed)
	}

	select {
	case <-offerCh:
	default:
		t.Fatal("no offer was surfaced")
	}
}

// TestMalformedOffer: a bad paste is logged and rejected without killing the
// session — a subsequent valid offer must still succeed.
func TestMalformedOffer(t *testing.T) {
	ctx := context.Background()
	_, peerLink := linkedFakes()

	logged := 0
	answerCh := make(chan string, 1)
	peer := New(quickConfig(peerLink), Hooks{
		Log:           func(string, ...any) { logged++ },
		OnAnswerReady: func(s string) { answerCh <- s },
	})
	defer peer.Close()

	if err := peer.ApplyOfferFromText(ctx, "not json"); err == nil {
		t.Fatal("expected an error for malformed offer text")
	}
	if logged == 0 {
		t.Error("malformed offer was not logged")
	}
	if got := peer.State(); got != StateIdle {
		t.Fatalf("state after bad offer: got %s, want %s", got, StateIdle)
	}

	offer, err := signal.Encode(signal.Envelope{Type: signal.KindOffer, SDP: "v=0\r\no=- retry\r\n"})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if err := peer.ApplyOfferFromText(ctx, offer); err != nil {
		t.Fatalf("valid offer after a bad one failed: %v", err)
	}
	if got := peer.State(); got != StateAnswerCreated {
		t.Fatalf("state after retry: got %s, want %s", got, StateAnswerCreated)
	}
}

// TestAnswerWithoutOffer: applying an answer with no outstanding offer is an
// error, not a crash.
func TestAnswerWithoutOffer(t *testing.T) {
	hostLink, _ := linkedFakes()
	host := New(quickConfig(hostLink), Hooks{})
	defer host.Close()

	answer, err := signal.Encode(signal.Envelope{Type: signal.KindAnswer, SDP: "v=0\r\n"})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if err := host.ApplyAnswerFromText(answer); err == nil {
		t.Fatal("expected an error with no offer outstanding")
	}
}

// TestSendBeforeOpenDrops: messages sent before the channel opens are
// silently dropped, never queued.
func TestSendBeforeOpenDrops(t *testing.T) {
	hostLink, peerLink := linkedFakes()

	received := make(chan []byte, 1)
	peerLink.OnMessage(func(p []byte) { received <- p })

	host := New(quickConfig(hostLink), Hooks{
		OnOfferReady: func(string) {},
	})
	defer host.Close()

	if err := host.StartHost(context.Background()); err != nil {
		t.Fatalf("StartHost failed: %v", err)
	}
	if err := host.Send(map[string]string{"type": "chat", "text": "early"}); err != nil {
		t.Fatalf("Send returned an error: %v", err)
	}

	select {
	case <-received:
		t.Fatal("message was delivered before the channel opened")
	case <-time.After(50 * time.Millisecond):
	}
}

// TestTransportFailureIsTerminal: a failed PeerConnection drives the state
// machine to failed and tells the collaborator to reset.
func TestTransportFailureIsTerminal(t *testing.T) {
	hostLink, _ := linkedFakes()

	reset := make(chan struct{}, 1)
	host := New(quickConfig(hostLink), Hooks{
		OnOfferReady:         func(string) {},
		ResetUIForDisconnect: func() { reset <- struct{}{} },
	})
	defer host.Close()

	if err := host.StartHost(context.Background()); err != nil {
		t.Fatalf("StartHost failed: %v", err)
	}

	hostLink.mu.Lock()
	stateFn := hostLink.onState
	hostLink.mu.Unlock()
	if stateFn == nil {
		t.Fatal("coordinator did not register a state callback")
	}
	stateFn(webrtc.PeerConnectionStateFailed)

	if got := host.State(); got != StateFailed {
		t.Fatalf("state after failure: got %s, want %s", got, StateFailed)
	}
	select {
	case <-reset:
	default:
		t.Fatal("ResetUIForDisconnect did not fire")
	}
}

// TestRestartTearsDownPreviousSession: a second StartHost closes the first
// link before dialing the next one.
func TestRestartTearsDownPreviousSession(t *testing.T) {
	ctx := context.Background()
	first, _ := linkedFakes()
	second, _ := linkedFakes()

	links := []*fakeLink{first, second}
	i := 0
	cfg := Config{
		GatherTimeout:     100 * time.Millisecond,
		HeartbeatInterval: 20 * time.Millisecond,
		Dial: func() (Link, error) {
			l := links[i]
			i++
			return l, nil
		},
	}

	host := New(cfg, Hooks{OnOfferReady: func(string) {}})
	defer host.Close()

	if err := host.StartHost(ctx); err != nil {
		t.Fatalf("first StartHost failed: %v", err)
	}
	if err := host.StartHost(ctx); err != nil {
		t.Fatalf("second StartHost failed: %v", err)
	}

	first.mu.Lock()
	closed := first.closed
	first.mu.Unlock()
	if !closed {
		t.Fatal("first link was not closed before the second session started")
	}
}

// TestMalformedChannelMessage: non-JSON channel traffic is logged and
// dropped, never forwarded and never fatal.
func TestMalformedChannelMessage(t *testing.T) {
	ctx := context.Background()
	hostLink, peerLink := linkedFakes()

	offerCh := make(chan string, 1)
	answerCh := make(chan string, 1)
	appCh := make(chan []byte, 1)
	var mu sync.Mutex
	logged := 0

	host := New(quickConfig(hostLink), Hooks{
		OnOfferReady: func(s string) { offerCh <- s },
		OnAppMessage: func(p []byte) { appCh <- p },
		Log: func(string, ...any) {
			mu.Lock()
			logged++
			mu.Unlock()
		},
	})
	defer host.Close()

	peer := New(quickConfig(peerLink), Hooks{
		OnAnswerReady: func(s string) { answerCh <- s },
	})
	defer peer.Close()

	if err := host.StartHost(ctx); err != nil {
		t.Fatalf("StartHost failed: %v", err)
	}
	if err := peer.ApplyOfferFromText(ctx, <-offerCh); err != nil {
		t.Fatalf("ApplyOfferFromText failed: %v", err)
	}
	if err := host.ApplyAnswerFromText(<-answerCh); err != nil {
		t.Fatalf("ApplyAnswerFromText failed: %v", err)
	}
	openBoth(hostLink, peerLink)
	waitFor(t, "connected", func() bool { return host.State() == StateConnected })

	mu.Lock()
	before := logged
	mu.Unlock()

	if err := peerLink.Send([]byte("garbage{{{")); err != nil {
		t.Fatalf("fake send failed: %v", err)
	}

	waitFor(t, "malformed message log", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return logged > before
	})

	select {
	case p := <-appCh:
		t.Fatalf("malformed payload was forwarded: %q", p)
	default:
	}
}
