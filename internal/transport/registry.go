package transport

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"rendezvous/internal/clock"
)

const websocketCloseGoingAway = 1001

// Registry is the Connection Manager: the single source of truth for
// which user ids currently have a live connection, and the only place
// that sends bytes to a client.
type Registry struct {
	mu          sync.RWMutex
	connections map[string]*Connection

	clk               clock.Clock
	heartbeatInterval time.Duration
	connectionTimeout time.Duration

	logger *zerolog.Logger

	evictedCount uint64
}

// NewRegistry constructs a Connection Manager.
func NewRegistry(clk clock.Clock, heartbeatInterval, connectionTimeout time.Duration, logger *zerolog.Logger) *Registry {
	return &Registry{
		connections:       make(map[string]*Connection),
		clk:               clk,
		heartbeatInterval: heartbeatInterval,
		connectionTimeout: connectionTimeout,
		logger:            logger,
	}
}

// AddConnection installs conn under userID. If a connection already
// exists for userID, the new one is installed first and the prior one is
// then closed with a normal-closure code, outside the lock — the
// "replace" semantics triggered by a re-identify frame.
func (r *Registry) AddConnection(userID string, conn *Connection) error {
	if conn == nil {
		return ErrNilConnection
	}

	r.mu.Lock()
	existing, had := r.connections[userID]
	r.connections[userID] = conn
	r.mu.Unlock()

	if had && existing != conn {
		_ = existing.CloseWithCode(1000, "replaced by new connection")
	}
	return nil
}

// RemoveConnection drops userID's entry, but only if conn is still the
// one registered — an older, already-replaced connection's deferred
// cleanup must not evict the connection that replaced it.
func (r *Registry) RemoveConnection(userID string, conn *Connection) {
	r.mu.Lock()
	registered, exists := r.connections[userID]
	if !exists || registered != conn {
		r.mu.Unlock()
		return
	}
	delete(r.connections, userID)
	r.mu.Unlock()

	_ = conn.Close()
}

// GetConnection returns userID's current connection, if any.
func (r *Registry) GetConnection(userID string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.connections[userID]
	return conn, ok
}

// IsConnected reports whether userID currently has a registered
// connection.
func (r *Registry) IsConnected(userID string) bool {
	_, ok := r.GetConnection(userID)
	return ok
}

// CloseUser force-closes userID's connection with a protocol-level close
// code, used for abuse-escalation disconnects. Reports false if userID
// had no connection.
func (r *Registry) CloseUser(userID string, code int, reason string) bool {
	conn, ok := r.GetConnection(userID)
	if !ok {
		return false
	}
	_ = conn.CloseWithCode(code, reason)
	r.evict(userID, conn, reason)
	return true
}

// SendToUser serializes payload and attempts delivery, returning false
// if userID has no open connection.
func (r *Registry) SendToUser(userID string, payload interface{}) bool {
	conn, ok := r.GetConnection(userID)
	if !ok {
		return false
	}
	return conn.WriteJSON(payload) == nil
}

// BroadcastToAll makes a best-effort delivery of payload to every open
// connection not in exclude.
func (r *Registry) BroadcastToAll(payload interface{}, exclude ...string) {
	excluded := make(map[string]bool, len(exclude))
	for _, id := range exclude {
		excluded[id] = true
	}

	r.mu.RLock()
	targets := make([]*Connection, 0, len(r.connections))
	for userID, conn := range r.connections {
		if !excluded[userID] {
			targets = append(targets, conn)
		}
	}
	r.mu.RUnlock()

	for _, conn := range targets {
		_ = conn.WriteJSON(payload)
	}
}

// CloseAll closes every registered connection with a going-away code,
// for use during process shutdown once the HTTP listener has stopped
// accepting new upgrades.
func (r *Registry) CloseAll() {
	r.mu.RLock()
	targets := make(map[string]*Connection, len(r.connections))
	for userID, conn := range r.connections {
		targets[userID] = conn
	}
	r.mu.RUnlock()

	for userID, conn := range targets {
		_ = conn.CloseWithCode(websocketCloseGoingAway, "server shutting down")
		r.evict(userID, conn, "server shutdown")
	}
}

// GetConnectionCount returns the number of currently registered
// connections.
func (r *Registry) GetConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connections)
}

// GetMetrics returns a snapshot suitable for the /metrics surface.
func (r *Registry) GetMetrics() map[string]interface{} {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var totalSent, totalReceived uint64
	for _, conn := range r.connections {
		sent, received := conn.Counters()
		totalSent += sent
		totalReceived += received
	}

	return map[string]interface{}{
		"active_connections": len(r.connections),
		"messages_sent":       totalSent,
		"messages_received":   totalReceived,
		"evicted_count":       r.evictedCount,
	}
}

// RunHeartbeat blocks, running the liveness sweep every heartbeatInterval
// until stop is closed. For each connection: if not marked alive, evict; if
// `now - lastPongAt > connectionTimeout`, evict regardless; otherwise
// mark not-alive and send a ping probe, expecting MarkAlive to be called
// before the next tick.
func (r *Registry) RunHeartbeat(stop <-chan struct{}) {
	ticker := r.clk.Ticker(r.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.sweepHeartbeat()
		case <-stop:
			return
		}
	}
}

func (r *Registry) sweepHeartbeat() {
	now := r.clk.Now()

	r.mu.RLock()
	snapshot := make(map[string]*Connection, len(r.connections))
	for userID, conn := range r.connections {
		snapshot[userID] = conn
	}
	r.mu.RUnlock()

	for userID, conn := range snapshot {
		if now.Sub(conn.LastPongAt()) > r.connectionTimeout {
			r.evict(userID, conn, "connection timeout")
			continue
		}
		if !conn.IsAlive() {
			r.evict(userID, conn, "missed heartbeat")
			continue
		}
		conn.MarkProbeSent()
		if err := conn.Underlying().WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
			r.evict(userID, conn, "ping failed")
		}
	}
}

func (r *Registry) evict(userID string, conn *Connection, reason string) {
	r.mu.Lock()
	r.evictedCount++
	r.mu.Unlock()

	if r.logger != nil {
		r.logger.Info().Str("user_id", userID).Str("conn_id", conn.ID()).Str("reason", reason).Msg("evicting connection")
	}
	r.RemoveConnection(userID, conn)
}
