package security

import (
	"sync"
	"time"

	"rendezvous/internal/clock"
)

// AbuseAction identifies what kind of action to roll into a user's
// abuse record.
type AbuseAction string

const (
	AbuseActionMessage AbuseAction = "message"
	AbuseActionSkip    AbuseAction = "skip"
	AbuseActionReport  AbuseAction = "report"
)

// AbusePattern is one of the detectable abuse classifications.
type AbusePattern string

const (
	PatternSpammer    AbusePattern = "spammer"
	PatternSkipAbuser AbusePattern = "skip_abuser"
	PatternHarasser   AbusePattern = "harasser"
)

type abuseRecord struct {
	messageCount int
	skipCount    int
	reportCount  int
	sessionStart time.Time
}

// AbuseDetector tracks rolling per-user counters and derives abuse
// patterns from them.
type AbuseDetector struct {
	mu      sync.Mutex
	clk     clock.Clock
	records map[string]*abuseRecord
}

// NewAbuseDetector constructs an empty detector.
func NewAbuseDetector(clk clock.Clock) *AbuseDetector {
	return &AbuseDetector{
		clk:     clk,
		records: make(map[string]*abuseRecord),
	}
}

func (d *AbuseDetector) recordFor(userID string) *abuseRecord {
	record, ok := d.records[userID]
	if !ok {
		record = &abuseRecord{sessionStart: d.clk.Now()}
		d.records[userID] = record
	}
	return record
}

// TrackUserAction rolls one action into userID's abuse record, creating
// the record on first sight.
func (d *AbuseDetector) TrackUserAction(userID string, action AbuseAction) {
	d.mu.Lock()
	defer d.mu.Unlock()

	record := d.recordFor(userID)
	switch action {
	case AbuseActionMessage:
		record.messageCount++
	case AbuseActionSkip:
		record.skipCount++
	case AbuseActionReport:
		record.reportCount++
	}
}

// DetectAbusePatterns evaluates userID's rolling counters against the
// fixed thresholds and returns every pattern that currently matches.
func (d *AbuseDetector) DetectAbusePatterns(userID string) []AbusePattern {
	d.mu.Lock()
	defer d.mu.Unlock()

	record, ok := d.records[userID]
	if !ok {
		return nil
	}

	var patterns []AbusePattern

	sessionDuration := d.clk.Now().Sub(record.sessionStart)
	if sessionDuration > 10*time.Second {
		rate := float64(record.messageCount) / sessionDuration.Seconds()
		if rate > 2 {
			patterns = append(patterns, PatternSpammer)
		}
	}
	if record.skipCount > 15 {
		patterns = append(patterns, PatternSkipAbuser)
	}
	if record.reportCount >= 3 {
		patterns = append(patterns, PatternHarasser)
	}

	return patterns
}

// Sweep resets records whose session started more than 24h ago, as the
// rolling window's minimum reset age.
func (d *AbuseDetector) Sweep() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.clk.Now()
	reclaimed := 0
	for userID, record := range d.records {
		if now.Sub(record.sessionStart) > 24*time.Hour {
			delete(d.records, userID)
			reclaimed++
		}
	}
	return reclaimed
}
