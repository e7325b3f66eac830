package security

import (
	"sync"
	"time"

	"rendezvous/internal/clock"
)

type banEntry struct {
	until  time.Time
	reason string
}

// IPGuard owns the ban table and the per-IP connection-rate window used
// by the admission front before a transport upgrade is allowed to
// complete.
type IPGuard struct {
	mu sync.Mutex
	clk clock.Clock

	bans    map[string]banEntry
	windows map[string][]time.Time

	maxConnectionsPerIP int
	connectionWindow    time.Duration
	banDuration         time.Duration
}

// NewIPGuard constructs an IP admission guard.
func NewIPGuard(clk clock.Clock, maxConnectionsPerIP int, connectionWindow, banDuration time.Duration) *IPGuard {
	return &IPGuard{
		clk:                 clk,
		bans:                make(map[string]banEntry),
		windows:             make(map[string][]time.Time),
		maxConnectionsPerIP: maxConnectionsPerIP,
		connectionWindow:    connectionWindow,
		banDuration:         banDuration,
	}
}

// IsIPBanned consults the ban table, expiring the entry on read if it
// has lapsed.
func (g *IPGuard) IsIPBanned(ip string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	entry, ok := g.bans[ip]
	if !ok {
		return false
	}
	if g.clk.Now().After(entry.until) {
		delete(g.bans, ip)
		return false
	}
	return true
}

// TrackIPConnection trims ip's connection window to the last
// connectionWindow and admits the new connection unless the window is
// already at capacity.
func (g *IPGuard) TrackIPConnection(ip string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clk.Now()
	cutoff := now.Add(-g.connectionWindow)

	existing := g.windows[ip]
	trimmed := existing[:0]
	for _, ts := range existing {
		if ts.After(cutoff) {
			trimmed = append(trimmed, ts)
		}
	}

	if len(trimmed) >= g.maxConnectionsPerIP {
		g.windows[ip] = trimmed
		return false
	}

	g.windows[ip] = append(trimmed, now)
	return true
}

// BanIP sets or extends a ban for ip using the configured default
// duration.
func (g *IPGuard) BanIP(ip, reason string) {
	g.BanIPFor(ip, g.banDuration, reason)
}

// BanIPFor sets or extends a ban for ip with an explicit duration,
// used for the escalation tiers (24h harasser, 1h spammer).
func (g *IPGuard) BanIPFor(ip string, duration time.Duration, reason string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.bans[ip] = banEntry{until: g.clk.Now().Add(duration), reason: reason}
}

// UnbanIP removes any ban on ip.
func (g *IPGuard) UnbanIP(ip string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.bans, ip)
}

// Sweep drops expired bans and connection windows that have been
// inactive for an hour, returning the number of entries reclaimed.
func (g *IPGuard) Sweep(inactivityThreshold time.Duration) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clk.Now()
	reclaimed := 0

	for ip, entry := range g.bans {
		if now.After(entry.until) {
			delete(g.bans, ip)
			reclaimed++
		}
	}

	cutoff := now.Add(-inactivityThreshold)
	for ip, window := range g.windows {
		if len(window) == 0 || window[len(window)-1].Before(cutoff) {
			delete(g.windows, ip)
			reclaimed++
		}
	}

	return reclaimed
}

// Stats returns counts suitable for the /metrics surface.
func (g *IPGuard) Stats() map[string]interface{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	return map[string]interface{}{
		"active_bans":    len(g.bans),
		"tracked_ips":    len(g.windows),
	}
}
