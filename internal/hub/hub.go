package hub

import (
	"sync"

	"rendezvous/internal/pairing"
	"rendezvous/internal/queue"
	"rendezvous/pkg/types"
)

// Hub holds the logical critical section spanning addToQueue ->
// matchUsers -> createPair, and the removeFromQueue -> breakPair ->
// requeue-partner sequence of a disconnect, so that no client ever
// observes one manager's state update without the other's.
type Hub struct {
	mu sync.Mutex

	queue   *queue.Manager
	pairing *pairing.Manager
}

// New composes a Hub over the Queue and Pairing managers.
func New(q *queue.Manager, p *pairing.Manager) *Hub {
	return &Hub{queue: q, pairing: p}
}

// JoinResult is what the Router needs after a join-mode frame: either
// the joining user waits, or a new pair and its session were created.
type JoinResult struct {
	Waiting bool
	Session *types.Session
	Offerer string // the first of the two matched users; meaningful for video
}

// JoinQueue runs addToQueue and, if a match results, createPair as one
// atomic step, so no concurrent join can observe the queue or the pair
// maps between the two.
func (h *Hub) JoinQueue(userID string, mode types.Mode) (JoinResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.queue.AddToQueue(userID, mode, false); err != nil {
		return JoinResult{}, err
	}

	match, ok := h.queue.MatchUsers(mode)
	if !ok {
		return JoinResult{Waiting: true}, nil
	}

	session, err := h.pairing.CreatePair(match.User1, match.User2, mode)
	if err != nil {
		_ = h.queue.AddToQueue(match.User1, mode, false)
		_ = h.queue.AddToQueue(match.User2, mode, false)
		return JoinResult{}, err
	}

	return JoinResult{Session: session, Offerer: match.User1}, nil
}

// LeaveQueue removes userID from whichever queue it occupies.
func (h *Hub) LeaveQueue(userID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.queue.RemoveFromQueue(userID)
}

// DisconnectResult reports what happened to userID's pair and whether
// its partner was requeued.
type DisconnectResult struct {
	HadPair         bool
	PartnerID       string
	PartnerRequeued bool
	PartnerMode     types.Mode
}

// Disconnect removes userID from its queue, breaks any pair it holds,
// and — if isPartnerConnected reports the partner still has a live
// connection — requeues the partner in the pair's last mode. All of
// this runs under the same lock JoinQueue uses, so a concurrent join by
// the partner can never race the requeue.
func (h *Hub) Disconnect(userID string, isPartnerConnected func(partnerID string) bool) DisconnectResult {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.queue.RemoveFromQueue(userID)

	partnerID, session, ok := h.pairing.BreakPair(userID)
	if !ok {
		return DisconnectResult{}
	}

	result := DisconnectResult{HadPair: true, PartnerID: partnerID, PartnerMode: session.Mode}
	if isPartnerConnected(partnerID) {
		if err := h.queue.AddToQueue(partnerID, session.Mode, false); err == nil {
			result.PartnerRequeued = true
		}
	}
	return result
}
