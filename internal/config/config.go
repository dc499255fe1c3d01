// Package config holds the CLI configuration types.
package config

import "time"

// Role represents the user's chosen role (host or join).
type Role string

const (
	RoleHost Role = "host"
	RoleJoin Role = "join"
)

// Config stores all parameters gathered from flags or the interactive prompts.
type Config struct {
	Role Role

	// GatherTimeout bounds the ICE gathering wait before an offer or answer
	// is considered complete enough to share.
	GatherTimeout time.Duration

	// HeartbeatInterval is the ping cadence once connected.
	HeartbeatInterval time.Duration

	QRFile   string // write the local offer/answer as a QR PNG here (optional)
	ScanFile string // join: read the host's offer from this QR PNG (optional)
	QRScale  int    // pixels per QR module
}
