// Package queue implements the per-mode FIFO matching queues: the Queue
// Manager of the rendezvous service.
package queue

import (
	"container/list"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"rendezvous/internal/clock"
	"rendezvous/pkg/types"
)

// Entry is one waiting user. Owned entirely by Manager; callers never
// mutate it after AddToQueue returns.
type Entry struct {
	UserID     string
	Mode       types.Mode
	Priority   bool
	EnqueuedAt time.Time
}

// WaitTime reports how long entry has been waiting as of now.
func (e Entry) WaitTime(now time.Time) time.Duration {
	return now.Sub(e.EnqueuedAt)
}

// Match is the result of a successful MatchUsers call.
type Match struct {
	User1    string
	User2    string
	Mode     types.Mode
	WaitTime time.Duration
}

type location struct {
	mode     types.Mode
	priority bool
	elem     *list.Element
}

type modeQueue struct {
	priority *list.List
	normal   *list.List
}

func newModeQueue() *modeQueue {
	return &modeQueue{priority: list.New(), normal: list.New()}
}

func (q *modeQueue) len() int {
	return q.priority.Len() + q.normal.Len()
}

// Manager is the Queue Manager. All public operations acquire the same
// mutex, which is the "exclusive matching critical section" required so
// addToQueue, removeFromQueue, and matchUsers never interleave.
type Manager struct {
	mu sync.Mutex

	clk clock.Clock

	maxQueueSize int
	queueTimeout time.Duration

	queues map[types.Mode]*modeQueue
	index  map[string]location

	timeoutCount int

	logger *zerolog.Logger
}

// New constructs a Queue Manager. maxQueueSize bounds each tier of each
// mode's queue independently; queueTimeout is the age at which Sweep
// evicts an entry. logger may be nil.
func New(clk clock.Clock, maxQueueSize int, queueTimeout time.Duration, logger *zerolog.Logger) *Manager {
	m := &Manager{
		clk:          clk,
		maxQueueSize: maxQueueSize,
		queueTimeout: queueTimeout,
		queues:       make(map[types.Mode]*modeQueue),
		index:        make(map[string]location),
		logger:       logger,
	}
	for _, mode := range []types.Mode{types.ModeText, types.ModeVideo, types.ModeVoice} {
		m.queues[mode] = newModeQueue()
	}
	return m
}

// AddToQueue enqueues userID for mode. If userID is already queued in any
// mode or tier, it is removed first (a re-join replaces the prior entry).
// Returns ErrQueueFull if the destination tier is already at capacity.
func (m *Manager) AddToQueue(userID string, mode types.Mode, priority bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.removeLocked(userID)

	mq := m.queues[mode]
	tier := mq.normal
	if priority {
		tier = mq.priority
	}
	if tier.Len() >= m.maxQueueSize {
		return ErrQueueFull
	}

	entry := &Entry{UserID: userID, Mode: mode, Priority: priority, EnqueuedAt: m.clk.Now()}
	elem := tier.PushBack(entry)
	m.index[userID] = location{mode: mode, priority: priority, elem: elem}
	return nil
}

// MatchUsers attempts to pair two waiting users for mode, preferring the
// priority tier: two from priority, one from each tier (priority first),
// then two from normal. Returns ok=false if fewer than two users are
// waiting in mode.
func (m *Manager) MatchUsers(mode types.Mode) (Match, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mq := m.queues[mode]

	first := m.popFrontLocked(mq)
	if first == nil {
		return Match{}, false
	}
	second := m.popFrontLocked(mq)
	if second == nil {
		m.reinsertFrontLocked(mq, first)
		return Match{}, false
	}

	if first.UserID == second.UserID {
		// Anti-self-match guard: only reachable via a duplicate enqueue bug.
		// Reinsert both and report none; the next MatchUsers call tries again.
		if m.logger != nil {
			m.logger.Warn().Str("user_id", first.UserID).Str("mode", string(mode)).Msg("queue produced a self-match, reinserting")
		}
		m.reinsertFrontLocked(mq, second)
		m.reinsertFrontLocked(mq, first)
		return Match{}, false
	}

	now := m.clk.Now()
	wait := now.Sub(first.EnqueuedAt)
	if second.EnqueuedAt.Before(first.EnqueuedAt) {
		wait = now.Sub(second.EnqueuedAt)
	}

	return Match{User1: first.UserID, User2: second.UserID, Mode: mode, WaitTime: wait}, true
}

// popFrontLocked removes and returns the next entry under the priority
// policy: priority tier before normal tier, FIFO within each. Caller
// holds m.mu.
func (m *Manager) popFrontLocked(mq *modeQueue) *Entry {
	tier := mq.priority
	if tier.Len() == 0 {
		tier = mq.normal
	}
	if tier.Len() == 0 {
		return nil
	}
	front := tier.Front()
	entry := front.Value.(*Entry)
	tier.Remove(front)
	delete(m.index, entry.UserID)
	return entry
}

// reinsertFrontLocked puts entry back at the head of its original tier.
// Used to undo a speculative pop when a match cannot complete.
func (m *Manager) reinsertFrontLocked(mq *modeQueue, entry *Entry) {
	tier := mq.normal
	if entry.Priority {
		tier = mq.priority
	}
	elem := tier.PushFront(entry)
	m.index[entry.UserID] = location{mode: entry.Mode, priority: entry.Priority, elem: elem}
}

// RemoveFromQueue removes userID from whichever queue it occupies.
// Reports whether an entry was actually removed.
func (m *Manager) RemoveFromQueue(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeLocked(userID)
}

func (m *Manager) removeLocked(userID string) bool {
	loc, ok := m.index[userID]
	if !ok {
		return false
	}
	mq := m.queues[loc.mode]
	tier := mq.normal
	if loc.priority {
		tier = mq.priority
	}
	tier.Remove(loc.elem)
	delete(m.index, userID)
	return true
}

// IsInQueue reports whether userID is currently queued, and if so returns
// its entry.
func (m *Manager) IsInQueue(userID string) (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	loc, ok := m.index[userID]
	if !ok {
		return Entry{}, false
	}
	return *loc.elem.Value.(*Entry), true
}

// Sweep evicts every entry older than queueTimeout across all modes and
// tiers, returning the evicted user ids so the caller can notify them.
func (m *Manager) Sweep() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clk.Now()
	var evicted []string

	for _, mq := range m.queues {
		evicted = append(evicted, m.sweepTier(mq.priority, now)...)
		evicted = append(evicted, m.sweepTier(mq.normal, now)...)
	}
	m.timeoutCount += len(evicted)
	return evicted
}

func (m *Manager) sweepTier(tier *list.List, now time.Time) []string {
	var evicted []string
	for elem := tier.Front(); elem != nil; {
		next := elem.Next()
		entry := elem.Value.(*Entry)
		if now.Sub(entry.EnqueuedAt) > m.queueTimeout {
			tier.Remove(elem)
			delete(m.index, entry.UserID)
			evicted = append(evicted, entry.UserID)
		}
		elem = next
	}
	return evicted
}

// GetStats returns a metrics snapshot: queue length per mode and the
// cumulative count of entries Sweep has evicted for timing out.
func (m *Manager) GetStats() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	sizes := make(map[string]int, len(m.queues))
	for mode, mq := range m.queues {
		sizes[string(mode)] = mq.len()
	}
	return map[string]interface{}{
		"queue_sizes":   sizes,
		"timeout_count": m.timeoutCount,
	}
}
