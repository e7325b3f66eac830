package transport

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"rendezvous/internal/clock"
)

// Connection wraps a single gorilla/websocket transport. Writes are
// serialized through a single writer goroutine so concurrent callers
// never race on the underlying socket.
type Connection struct {
	id      string
	conn    *websocket.Conn
	writeCh chan []byte

	remoteIP string

	mu            sync.RWMutex
	userID        string
	authenticated bool
	connectedAt   time.Time
	lastPongAt    time.Time
	alive         bool
	sendCount     uint64
	recvCount     uint64

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewConnection wraps conn, starting its dedicated write loop. remoteIP
// is whatever the admission front resolved before upgrading.
func NewConnection(clk clock.Clock, conn *websocket.Conn, remoteIP string) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		id:          uuid.NewString(),
		conn:        conn,
		writeCh:     make(chan []byte, 100),
		remoteIP:    remoteIP,
		connectedAt: clk.Now(),
		lastPongAt:  clk.Now(),
		alive:       true,
		ctx:         ctx,
		cancel:      cancel,
	}
	go c.writeLoop()
	return c
}

func (c *Connection) writeLoop() {
	defer func() {
		for len(c.writeCh) > 0 {
			<-c.writeCh
		}
	}()

	for {
		select {
		case data, ok := <-c.writeCh:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
			c.mu.Lock()
			c.sendCount++
			c.mu.Unlock()
		case <-c.ctx.Done():
			return
		}
	}
}

// WriteJSON marshals v and queues it for delivery. Safe for concurrent
// use; the write channel itself enforces single-writer ordering.
func (c *Connection) WriteJSON(v interface{}) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	select {
	case c.writeCh <- data:
		return nil
	case <-time.After(5 * time.Second):
		return ErrWriteTimeout
	case <-c.ctx.Done():
		return ErrConnectionClosed
	}
}

// Close shuts the connection down exactly once, canceling the write loop
// and closing the underlying socket.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		if c.conn != nil {
			err = c.conn.Close()
		}
	})
	return err
}

// CloseWithCode sends a close control frame carrying code before closing
// the socket, used for the "replace" semantics of re-identify.
func (c *Connection) CloseWithCode(code int, text string) error {
	_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(time.Second))
	return c.Close()
}

// SetUserID binds userID to this connection on its first identify frame.
// A second call with a different id is rejected; calls with the same id
// are idempotent.
func (c *Connection) SetUserID(userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.authenticated && c.userID != userID {
		return ErrAlreadyIdentified
	}
	c.userID = userID
	c.authenticated = true
	return nil
}

// GetUserID returns the bound user id, or "" before identify.
func (c *Connection) GetUserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

// IsAuthenticated reports whether identify has completed.
func (c *Connection) IsAuthenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authenticated
}

// GetRemoteIP returns the client address resolved by the admission front.
func (c *Connection) GetRemoteIP() string {
	return c.remoteIP
}

// ID returns the connection's correlation id, generated once at
// NewConnection and stable for the connection's lifetime — independent
// of the user id, which isn't known until the first identify frame.
func (c *Connection) ID() string {
	return c.id
}

// ConnectedAt returns when the connection was established.
func (c *Connection) ConnectedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connectedAt
}

// MarkAlive records a liveness signal (pong, or any inbound frame).
func (c *Connection) MarkAlive(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alive = true
	c.lastPongAt = now
}

// MarkProbeSent flips the alive flag to false just after a liveness
// probe is sent; a subsequent MarkAlive before the next heartbeat tick
// proves the peer is still there.
func (c *Connection) MarkProbeSent() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alive = false
}

// IsAlive reports the current liveness flag.
func (c *Connection) IsAlive() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.alive
}

// LastPongAt returns the last liveness timestamp.
func (c *Connection) LastPongAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastPongAt
}

// IncrementRecvCount bumps the inbound frame counter.
func (c *Connection) IncrementRecvCount() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recvCount++
}

// Counters returns the send/recv frame counts.
func (c *Connection) Counters() (sent, received uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sendCount, c.recvCount
}

// Underlying exposes the raw websocket connection for read-loop and
// heartbeat wiring in Handler, which owns the read side.
func (c *Connection) Underlying() *websocket.Conn {
	return c.conn
}

// Done returns a channel closed when the connection has been closed.
func (c *Connection) Done() <-chan struct{} {
	return c.ctx.Done()
}
