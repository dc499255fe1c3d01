// Denlink — CLI entry point.
//
// This tool establishes a direct P2P DataChannel between two machines with
// no signaling server: the offer and answer are compressed into short
// strings that travel by copy-paste or QR code. Once connected it runs a
// simple chat loop over the channel, with live latency from the heartbeat.
//
// It can be launched interactively (no flags) or non-interactively via CLI
// flags (-role, -qr, -scan, -gather, -heartbeat).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"github.com/pterm/pterm"

	"github.com/wolfden/denlink/internal/barcode"
	"github.com/wolfden/denlink/internal/config"
	"github.com/wolfden/denlink/internal/session"
	sig "github.com/wolfden/denlink/internal/signal"
	"github.com/wolfden/denlink/internal/transport"
	"github.com/wolfden/denlink/internal/util"
)

var version = "dev"

func main() {
	// Root context — cancelled on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// CLI flags.
	role := flag.String("role", "", "Role: host or join")
	qrFile := flag.String("qr", "", "Write the local offer/answer as a QR PNG to this path")
	scanFile := flag.String("scan", "", "Join: read the host's offer from this QR PNG")
	qrScale := flag.Int("qrscale", 4, "Pixels per QR module")
	gather := flag.Duration("gather", session.DefaultGatherTimeout, "Upper bound on the ICE gathering wait")
	heartbeat := flag.Duration("heartbeat", session.DefaultHeartbeatInterval, "Heartbeat ping interval")
	debugMode := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *debugMode {
		util.EnableDebug()
	}

	pterm.Info.Println(fmt.Sprintf("Denlink — v%s", version))
	pterm.Println()

	cfg := config.Config{
		GatherTimeout:     *gather,
		HeartbeatInterval: *heartbeat,
		QRFile:            *qrFile,
		ScanFile:          *scanFile,
		QRScale:           *qrScale,
	}

	switch *role {
	case "":
		// No -role flag → interactive mode.
		runInteractive(ctx, cfg)

	case "host":
		cfg.Role = config.RoleHost
		runHost(ctx, cfg)

	case "join":
		cfg.Role = config.RoleJoin
		runJoin(ctx, cfg)

	default:
		util.LogError("invalid -role: must be 'host' or 'join'")
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// Run modes
// ---------------------------------------------------------------------------

// runInteractive falls back to interactive prompts when no -role flag is
// provided.
func runInteractive(ctx context.Context, cfg config.Config) {
	role, _ := pterm.DefaultInteractiveSelect.
		WithOptions([]string{"Host — Create a connection offer", "Join — Answer someone's offer"}).
		WithDefaultText("Select your role").
		Show()

	pterm.Println()

	if strings.HasPrefix(role, "Host") {
		cfg.Role = config.RoleHost
		runHost(ctx, cfg)
	} else {
		cfg.Role = config.RoleJoin
		runJoin(ctx, cfg)
	}
}

// runHost creates the offer, waits for the pasted answer, then chats.
func runHost(ctx context.Context, cfg config.Config) {
	connected := make(chan struct{})
	coord := newCoordinator(cfg, connected)
	defer coord.Close()

	if err := coord.StartHost(ctx); err != nil {
		util.LogError("failed to create offer: %v", err)
		os.Exit(1)
	}

	answer := askPayload("Paste the answer from the joining side")
	for coord.ApplyAnswerFromText(answer) != nil {
		answer = askPayload("That didn't decode — paste the answer again")
	}

	waitAndChat(ctx, coord, connected)
}

// runJoin consumes the host's offer, produces the answer, then chats.
func runJoin(ctx context.Context, cfg config.Config) {
	connected := make(chan struct{})
	coord := newCoordinator(cfg, connected)
	defer coord.Close()

	offer, err := readOffer(cfg)
	if err != nil {
		util.LogError("failed to read offer: %v", err)
		os.Exit(1)
	}

	for coord.ApplyOfferFromText(ctx, offer) != nil {
		offer = askPayload("That didn't decode — paste the offer again")
	}

	waitAndChat(ctx, coord, connected)
}

// ---------------------------------------------------------------------------
// Coordinator wiring
// ---------------------------------------------------------------------------

// chatMessage is the demo application payload exchanged once connected.
type chatMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// newCoordinator builds a Coordinator wired to terminal output. The
// connected channel is closed the first time the data channel opens.
func newCoordinator(cfg config.Config, connected chan struct{}) *session.Coordinator {
	var once sync.Once
	return session.New(
		session.Config{
			GatherTimeout:     cfg.GatherTimeout,
			HeartbeatInterval: cfg.HeartbeatInterval,
			Dial: func() (session.Link, error) {
				return transport.New()
			},
		},
		session.Hooks{
			Log: util.LogInfo,
			SetStatus: func(st session.State) {
				util.LogDebug("session state: %s", st)
			},
			SetLatency: func(d time.Duration) {
				util.LogDebug("round trip: %s", d)
			},
			SetChatEnabled: func(on bool) {
				if on {
					once.Do(func() { close(connected) })
				}
			},
			OnOfferReady: func(text string) {
				sharePayload("OFFER", text, cfg)
			},
			OnAnswerReady: func(text string) {
				sharePayload("ANSWER", text, cfg)
			},
			OnAppMessage: func(payload []byte) {
				var msg chatMessage
				if err := json.Unmarshal(payload, &msg); err == nil && msg.Type == "chat" {
					pterm.Println(pterm.Cyan("peer> ") + msg.Text)
					return
				}
				util.LogDebug("app message: %s", payload)
			},
			ResetUIForDisconnect: func() {
				util.LogWarning("session over — run denlink again for a new handshake")
			},
		},
	)
}

// waitAndChat blocks until the channel opens, then forwards stdin lines as
// chat messages until interrupted.
func waitAndChat(ctx context.Context, coord *session.Coordinator, connected <-chan struct{}) {
	fmt.Println("Waiting for the P2P channel to open...")
	select {
	case <-connected:
	case <-ctx.Done():
		return
	}

	util.StartStatsReporter(ctx)
	util.LogSuccess("P2P channel established — type to chat, Ctrl+C to quit")

	lines := make(chan string)
	go func() {
		defer close(lines)
		for {
			line, _ := pterm.DefaultInteractiveTextInput.WithDefaultText("you").Show()
			lines <- strings.TrimSpace(line)
		}
	}()

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return
			}
			if line == "" {
				continue
			}
			if line == "/rtt" {
				if d, ok := coord.Latency(); ok {
					util.LogInfo("round trip: %s", d)
				} else {
					util.LogInfo("no heartbeat echo yet")
				}
				continue
			}
			if err := coord.Send(chatMessage{Type: "chat", Text: line}); err != nil {
				util.LogWarning("send failed: %v", err)
			}

		case <-ctx.Done():
			return
		}
	}
}

// ---------------------------------------------------------------------------
// Payload transport helpers
// ---------------------------------------------------------------------------

// sharePayload prints a compressed offer/answer blob for copy-paste and
// optionally writes it as a QR PNG.
func sharePayload(label, text string, cfg config.Config) {
	pterm.Println()
	pterm.Println(pterm.Bold.Sprintf("──── %s (fingerprint %s) ────", label, sig.Fingerprint(text)))
	pterm.Println(text)
	pterm.Println(pterm.Bold.Sprint("────────────────────────────────"))
	pterm.Println()

	if cfg.QRFile != "" {
		img := barcode.Render(text, cfg.QRScale)
		if err := barcode.WritePNG(cfg.QRFile, img); err != nil {
			util.LogWarning("QR write failed: %v", err)
			return
		}
		util.LogInfo("QR code written to %s", cfg.QRFile)
	}
}

// readOffer obtains the host's offer text, either by scanning a QR PNG or
// by prompting for a paste.
func readOffer(cfg config.Config) (string, error) {
	if cfg.ScanFile == "" {
		return askPayload("Paste the offer from the host"), nil
	}

	img, err := barcode.ReadPNG(cfg.ScanFile)
	if err != nil {
		return "", err
	}
	text, err := barcode.Decode(img)
	if err != nil {
		return "", err
	}
	util.LogInfo("scanned offer from %s (fingerprint %s)", cfg.ScanFile, sig.Fingerprint(text))
	return text, nil
}

// askPayload prompts until a non-empty line is entered.
func askPayload(prompt string) string {
	for {
		raw, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText(prompt).
			Show()

		if text := strings.TrimSpace(raw); text != "" {
			pterm.Println()
			return text
		}
		util.LogWarning("empty input: paste the full payload")
	}
}
