package security

import (
	"time"

	"github.com/rs/zerolog"

	"rendezvous/internal/clock"
)

const fingerprintSweepAge = 30 * 24 * time.Hour
const fingerprintCap = 100000
const ipInactivityThreshold = time.Hour

// Manager composes every security sub-surface behind the operations the
// Message Router and Admission Front call.
type Manager struct {
	IPGuard      *IPGuard
	RateLimiter  *RateLimiter
	Fingerprints *FingerprintTracker
	Abuse        *AbuseDetector
	Cipher       *MessageCipher
	Tokens       *TokenMinter

	banDuration time.Duration
	logger      *zerolog.Logger
}

// Config carries the security-relevant subset of the process
// configuration.
type Config struct {
	MaxConnectionsPerIP        int
	IPConnectionWindow         time.Duration
	BanDuration                time.Duration
	RateLimitMessagesPerMinute int
	RateLimitSkipsPerMinute    int
	RateLimitReportsPerHour    int
	EncryptionEnabled          bool
	TokenMintEnabled           bool
	JWTSecret                  string
}

// NewManager wires every sub-surface from cfg. tokens is nil when
// TokenMintEnabled is false. logger may be nil.
func NewManager(clk clock.Clock, cfg Config, logger *zerolog.Logger) (*Manager, error) {
	cipher, err := NewMessageCipher(cfg.EncryptionEnabled)
	if err != nil {
		return nil, err
	}

	var tokens *TokenMinter
	if cfg.TokenMintEnabled {
		tokens = NewTokenMinter([]byte(cfg.JWTSecret))
	}

	return &Manager{
		IPGuard:      NewIPGuard(clk, cfg.MaxConnectionsPerIP, cfg.IPConnectionWindow, cfg.BanDuration),
		RateLimiter:  NewRateLimiter(clk, cfg.RateLimitMessagesPerMinute, cfg.RateLimitSkipsPerMinute, cfg.RateLimitReportsPerHour),
		Fingerprints: NewFingerprintTracker(clk),
		Abuse:        NewAbuseDetector(clk),
		Cipher:       cipher,
		Tokens:       tokens,
		banDuration:  cfg.BanDuration,
		logger:       logger,
	}, nil
}

// IsIPBanned delegates to the IP guard; satisfies transport.IPAdmitter.
func (m *Manager) IsIPBanned(ip string) bool {
	banned := m.IPGuard.IsIPBanned(ip)
	if banned && m.logger != nil {
		m.logger.Debug().Str("ip", ip).AnErr("reason", ErrIPBanned).Msg("admission rejected")
	}
	return banned
}

// TrackIPConnection delegates to the IP guard; satisfies
// transport.IPAdmitter.
func (m *Manager) TrackIPConnection(ip string) bool {
	admitted := m.IPGuard.TrackIPConnection(ip)
	if !admitted && m.logger != nil {
		m.logger.Debug().Str("ip", ip).AnErr("reason", ErrConnectionRateExceeded).Msg("admission rejected")
	}
	return admitted
}

// Sweep runs the periodic cleanup pass across every sub-surface: expired
// bans, inactive IP windows, stale rate-limit windows, stale fingerprint
// records, and reset-eligible abuse records.
func (m *Manager) Sweep() {
	m.IPGuard.Sweep(ipInactivityThreshold)
	m.RateLimiter.Sweep()
	m.Fingerprints.Sweep(fingerprintSweepAge, fingerprintCap)
	m.Abuse.Sweep()
}

// Stats aggregates every sub-surface's metrics for the /metrics
// endpoint.
func (m *Manager) Stats() map[string]interface{} {
	return map[string]interface{}{
		"ip_guard":     m.IPGuard.Stats(),
		"fingerprints": m.Fingerprints.Stats(),
	}
}
