package util

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pterm/pterm"
)

// ──────────────────────────────────────────────────────────────────────────────
// Global stats singleton
// ──────────────────────────────────────────────────────────────────────────────

// Stats is the process-wide DataChannel traffic counter.
var Stats = &stats{}

type stats struct {
	MsgsSent   atomic.Int64 // cumulative messages written to the DataChannel
	MsgsRecv   atomic.Int64 // cumulative messages read from the DataChannel
	BytesSent  atomic.Int64 // cumulative bytes written (heartbeats included)
	BytesRecv  atomic.Int64 // cumulative bytes read (heartbeats included)
	Heartbeats atomic.Int64 // cumulative pings sent
}

func (s *stats) AddSent(n int) { s.MsgsSent.Add(1); s.BytesSent.Add(int64(n)) }
func (s *stats) AddRecv(n int) { s.MsgsRecv.Add(1); s.BytesRecv.Add(int64(n)) }
func (s *stats) AddPing()      { s.Heartbeats.Add(1) }

// ──────────────────────────────────────────────────────────────────────────────
// Periodic reporter
// ──────────────────────────────────────────────────────────────────────────────

const reportEvery = 10 * time.Second

// StartStatsReporter launches a goroutine that logs channel traffic every
// 10 seconds while anything is flowing. It stops when ctx is cancelled.
func StartStatsReporter(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(reportEvery)
		defer ticker.Stop()

		var prevSent, prevRecv, prevMsgsIn, prevMsgsOut int64
		for {
			select {
			case <-ticker.C:
				sent := Stats.BytesSent.Load()
				recv := Stats.BytesRecv.Load()
				msgsOut := Stats.MsgsSent.Load()
				msgsIn := Stats.MsgsRecv.Load()

				outS := float64(sent-prevSent) / reportEvery.Seconds()
				inS := float64(recv-prevRecv) / reportEvery.Seconds()
				outM := msgsOut - prevMsgsOut
				inM := msgsIn - prevMsgsIn

				if inM > 0 || outM > 0 {
					pterm.DefaultLogger.Info(formatStats(inS, outS, inM, outM))
				}

				prevSent = sent
				prevRecv = recv
				prevMsgsOut = msgsOut
				prevMsgsIn = msgsIn

			case <-ctx.Done():
				return
			}
		}
	}()
}

// byteUnits defines the units for formatting byte counts in a human-readable way.
var byteUnits = []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB"}

// formatBytes formats a byte count into a human-readable string with fixed width (exactly 8 chars)
// for example: "99.0   B", " 1.5 KiB", " 0.1 MiB", "98.9 GiB", etc.
func formatBytes(b float64) string {
	unitIdx := 0

	// to prevent "100.0 KiB", which is 9 chars
	for b > 99 && unitIdx < 5 {
		b /= 1024
		unitIdx++
	}

	return fmt.Sprintf("%4.1f %3s", b, byteUnits[unitIdx])
}

// formatStats returns a formatted string of the current stats for display in the logger.
func formatStats(inS, outS float64, inM, outM int64) string {
	return fmt.Sprintf("In: %s/s | Out: %s/s | Msgs: %3d↓ %3d↑",
		formatBytes(inS),
		formatBytes(outS),
		inM,
		outM,
	)
}
