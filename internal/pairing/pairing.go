// Package pairing implements the Pairing Manager: the authoritative pair
// relation, per-pair session records, and the two-step mode-switch
// handshake.
package pairing

import (
	"sync"
	"time"

	"rendezvous/internal/clock"
	"rendezvous/pkg/types"
)

// SwitchResult is returned by SwitchMode to tell the router what to send
// back to the caller and, on bothReady, to the partner.
type SwitchResult struct {
	IsOfferer  bool
	BothReady  bool
	PartnerID  string
}

type pendingSwitch struct {
	initiator string
	mode      types.Mode
	setAt     time.Time
}

// Manager is the Pairing Manager. State is purely in-memory: nothing
// here survives a restart.
type Manager struct {
	mu sync.Mutex

	clk               clock.Clock
	modeSwitchTimeout time.Duration

	partner  map[string]string     // userId -> partnerId
	mode     map[string]types.Mode // userId -> current mode
	sessions map[string]*types.Session // pairId -> session

	// modeSwitchPending[partnerId] = pendingSwitch started by the user who
	// has not yet had their own switchMode call answered.
	modeSwitchPending map[string]pendingSwitch
}

// New constructs a Pairing Manager. modeSwitchTimeout bounds how long a
// first-arrival switchMode call waits for its partner's matching call
// before the pending handshake is considered abandoned.
func New(clk clock.Clock, modeSwitchTimeout time.Duration) *Manager {
	return &Manager{
		clk:               clk,
		modeSwitchTimeout: modeSwitchTimeout,
		partner:           make(map[string]string),
		mode:              make(map[string]types.Mode),
		sessions:          make(map[string]*types.Session),
		modeSwitchPending: make(map[string]pendingSwitch),
	}
}

// CreatePair establishes a new session between user1 and user2. Fails if
// they are the same user, either is already paired, or mode is not one
// of the fixed set.
func (m *Manager) CreatePair(user1, user2 string, mode types.Mode) (*types.Session, error) {
	if user1 == user2 {
		return nil, ErrSelfPair
	}
	if !mode.IsValid() {
		return nil, ErrInvalidMode
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, paired := m.partner[user1]; paired {
		return nil, ErrAlreadyPaired
	}
	if _, paired := m.partner[user2]; paired {
		return nil, ErrAlreadyPaired
	}

	m.partner[user1] = user2
	m.partner[user2] = user1
	m.mode[user1] = mode
	m.mode[user2] = mode

	session := &types.Session{
		PairID:    types.PairID(user1, user2),
		User1:     user1,
		User2:     user2,
		Mode:      mode,
		StartedAt: m.clk.Now(),
	}
	m.sessions[session.PairID] = session

	return session, nil
}

// GetPartner returns userID's current partner, if paired.
func (m *Manager) GetPartner(userID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	partner, ok := m.partner[userID]
	return partner, ok
}

// IsPaired reports whether userID currently belongs to an active pair.
func (m *Manager) IsPaired(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.partner[userID]
	return ok
}

// GetUserMode returns userID's current session mode, if paired.
func (m *Manager) GetUserMode(userID string) (types.Mode, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mode, ok := m.mode[userID]
	return mode, ok
}

// GetSessionData returns the session record for userID's current pair.
func (m *Manager) GetSessionData(userID string) (*types.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	partner, ok := m.partner[userID]
	if !ok {
		return nil, false
	}
	session, ok := m.sessions[types.PairID(userID, partner)]
	return session, ok
}

// GetSession retrieves a session directly by its pair id.
func (m *Manager) GetSession(pairID string) (*types.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[pairID]
	return session, ok
}

// BreakPair atomically removes both sides of userID's pair relation,
// drops the session, and clears any mode-switch-pending entries keyed by
// either side. Returns the partner id and the session as it stood at
// break time. ok is false if userID was not paired.
func (m *Manager) BreakPair(userID string) (partnerID string, session *types.Session, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	partner, paired := m.partner[userID]
	if !paired {
		return "", nil, false
	}

	pairID := types.PairID(userID, partner)
	session = m.sessions[pairID]

	delete(m.partner, userID)
	delete(m.partner, partner)
	delete(m.mode, userID)
	delete(m.mode, partner)
	delete(m.sessions, pairID)
	delete(m.modeSwitchPending, userID)
	delete(m.modeSwitchPending, partner)

	return partner, session, true
}

// IncrementMessageCount bumps the message counter on userID's current
// session.
func (m *Manager) IncrementMessageCount(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	partner, ok := m.partner[userID]
	if !ok {
		return
	}
	if session, ok := m.sessions[types.PairID(userID, partner)]; ok {
		session.MessageCount++
	}
}

// SwitchMode runs one step of the two-step mode-switch handshake. userID
// is the caller, partnerID is who they expect to be paired with, and
// newMode is the mode both sides are converging on.
func (m *Manager) SwitchMode(userID, partnerID string, newMode types.Mode) (SwitchResult, error) {
	if !newMode.IsValid() {
		return SwitchResult{}, ErrInvalidMode
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	actualPartner, paired := m.partner[userID]
	if !paired || actualPartner != partnerID {
		return SwitchResult{}, ErrNotPaired
	}

	m.expirePendingLocked(userID)

	if pending, ok := m.modeSwitchPending[userID]; ok && pending.initiator == partnerID {
		// Second arrival: the partner already called in. Re-verify the
		// pair survived the wait, complete the handshake.
		delete(m.modeSwitchPending, userID)

		m.mode[userID] = newMode
		m.mode[partnerID] = newMode

		pairID := types.PairID(userID, partnerID)
		if session, ok := m.sessions[pairID]; ok {
			session.SwitchHistory = append(session.SwitchHistory, types.ModeSwitch{
				From: session.Mode,
				To:   newMode,
				At:   m.clk.Now(),
			})
			session.Mode = newMode
		}

		return SwitchResult{IsOfferer: false, BothReady: true, PartnerID: partnerID}, nil
	}

	// First arrival: register as the pending initiator and become offerer.
	m.modeSwitchPending[partnerID] = pendingSwitch{initiator: userID, mode: newMode, setAt: m.clk.Now()}
	m.mode[userID] = newMode

	return SwitchResult{IsOfferer: true, BothReady: false, PartnerID: partnerID}, nil
}

// expirePendingLocked clears a stale pending entry for key if it has
// outlived modeSwitchTimeout. Caller holds m.mu.
func (m *Manager) expirePendingLocked(key string) {
	pending, ok := m.modeSwitchPending[key]
	if !ok {
		return
	}
	if m.clk.Now().Sub(pending.setAt) > m.modeSwitchTimeout {
		delete(m.modeSwitchPending, key)
	}
}

// SweepExpiredSwitches drops any mode-switch-pending entries older than
// modeSwitchTimeout. Intended to run from the same periodic sweeper that
// cleans up queues and security windows.
func (m *Manager) SweepExpiredSwitches() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clk.Now()
	evicted := 0
	for key, pending := range m.modeSwitchPending {
		if now.Sub(pending.setAt) > m.modeSwitchTimeout {
			delete(m.modeSwitchPending, key)
			evicted++
		}
	}
	return evicted
}

// ListActiveSessions returns every session currently in progress.
func (m *Manager) ListActiveSessions() []*types.Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	sessions := make([]*types.Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		sessions = append(sessions, session)
	}
	return sessions
}

// GetStats returns a metrics snapshot.
func (m *Manager) GetStats() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	return map[string]interface{}{
		"active_pairs":        len(m.sessions),
		"pending_mode_switch": len(m.modeSwitchPending),
	}
}
