package security

import (
	"sync"
	"time"

	"rendezvous/internal/clock"
)

// FingerprintRecord aggregates reputation for a single browser
// fingerprint across ephemeral user ids.
type FingerprintRecord struct {
	UserIDs   map[string]struct{}
	Reports   int
	Bans      int
	FirstSeen time.Time
}

// FingerprintTracker maps opaque fingerprints to reputation records.
type FingerprintTracker struct {
	mu      sync.Mutex
	clk     clock.Clock
	records map[string]*FingerprintRecord
}

// NewFingerprintTracker constructs an empty tracker.
func NewFingerprintTracker(clk clock.Clock) *FingerprintTracker {
	return &FingerprintTracker{
		clk:     clk,
		records: make(map[string]*FingerprintRecord),
	}
}

// TrackFingerprint creates a record on first sight, associates userID
// with it, and reports whether the fingerprint looks suspicious.
func (t *FingerprintTracker) TrackFingerprint(fp, userID string) (suspicious bool, reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	record, ok := t.records[fp]
	if !ok {
		record = &FingerprintRecord{
			UserIDs:   make(map[string]struct{}),
			FirstSeen: t.clk.Now(),
		}
		t.records[fp] = record
	}
	record.UserIDs[userID] = struct{}{}

	if record.Reports >= 5 || record.Bans >= 3 {
		return true, "Multiple violations"
	}
	return false, ""
}

// RecordReport increments the report counter on every fingerprint
// record whose user-id set contains userID.
func (t *FingerprintTracker) RecordReport(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, record := range t.records {
		if _, ok := record.UserIDs[userID]; ok {
			record.Reports++
		}
	}
}

// CountReports returns the number of accepted reports recorded against
// userID across every fingerprint that has seen it.
func (t *FingerprintTracker) CountReports(userID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	total := 0
	for _, record := range t.records {
		if _, ok := record.UserIDs[userID]; ok {
			total += record.Reports
		}
	}
	return total
}

// RecordBan increments the ban counter on every fingerprint record
// whose user-id set contains userID.
func (t *FingerprintTracker) RecordBan(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, record := range t.records {
		if _, ok := record.UserIDs[userID]; ok {
			record.Bans++
		}
	}
}

// Sweep runs only when the tracker holds more than cap records; it then
// drops every record first seen more than maxAge ago. Age is measured
// from FirstSeen alone: reports, bans or user ids recorded later do not
// keep an old record from being dropped.
func (t *FingerprintTracker) Sweep(maxAge time.Duration, cap int) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.records) <= cap {
		return 0
	}

	now := t.clk.Now()
	reclaimed := 0
	for fp, record := range t.records {
		if now.Sub(record.FirstSeen) > maxAge {
			delete(t.records, fp)
			reclaimed++
		}
	}
	return reclaimed
}

// Stats returns a snapshot for the /metrics surface.
func (t *FingerprintTracker) Stats() map[string]interface{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return map[string]interface{}{
		"tracked_fingerprints": len(t.records),
	}
}
