package transport

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"rendezvous/internal/clock"
)

// dialPair spins up a real websocket server and returns the server-side
// Connection plus a raw client conn for driving it.
func dialPair(t *testing.T) (*Connection, *websocket.Conn, func()) {
	t.Helper()

	serverConnCh := make(chan *websocket.Conn, 1)
	upg := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upg.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("server upgrade failed: %v", err)
			return
		}
		serverConnCh <- conn
	}))

	wsURL := "ws" + srv.URL[len("http"):]
	clientConn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("client dial failed: %v", err)
	}

	serverRaw := <-serverConnCh
	mock := clock.NewMock()
	serverConn := NewConnection(mock, serverRaw, "127.0.0.1")

	cleanup := func() {
		_ = serverConn.Close()
		_ = clientConn.Close()
		srv.Close()
	}
	return serverConn, clientConn, cleanup
}

func TestConnection_WriteJSON_DeliversToClient(t *testing.T) {
	serverConn, clientConn, cleanup := dialPair(t)
	defer cleanup()

	if err := serverConn.WriteJSON(map[string]string{"type": "paired"}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}

	_ = clientConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := clientConn.ReadMessage()
	if err != nil {
		t.Fatalf("client ReadMessage() error = %v", err)
	}
	if string(data) != `{"type":"paired"}` {
		t.Errorf("received %s, want %s", data, `{"type":"paired"}`)
	}
}

func TestConnection_SetUserID_RejectsReidentifyAsDifferentUser(t *testing.T) {
	serverConn, _, cleanup := dialPair(t)
	defer cleanup()

	if err := serverConn.SetUserID("alice"); err != nil {
		t.Fatalf("first SetUserID() error = %v", err)
	}
	if err := serverConn.SetUserID("alice"); err != nil {
		t.Errorf("idempotent SetUserID() error = %v, want nil", err)
	}
	if err := serverConn.SetUserID("bob"); err != ErrAlreadyIdentified {
		t.Errorf("SetUserID() error = %v, want ErrAlreadyIdentified", err)
	}
}

func TestConnection_MarkAliveAndProbe(t *testing.T) {
	serverConn, _, cleanup := dialPair(t)
	defer cleanup()

	serverConn.MarkProbeSent()
	if serverConn.IsAlive() {
		t.Error("IsAlive() = true right after MarkProbeSent, want false")
	}

	now := time.Now()
	serverConn.MarkAlive(now)
	if !serverConn.IsAlive() {
		t.Error("IsAlive() = false after MarkAlive, want true")
	}
	if !serverConn.LastPongAt().Equal(now) {
		t.Errorf("LastPongAt() = %v, want %v", serverConn.LastPongAt(), now)
	}
}

func TestConnection_Close_IsIdempotent(t *testing.T) {
	serverConn, _, cleanup := dialPair(t)
	defer cleanup()

	if err := serverConn.Close(); err != nil {
		t.Fatalf("first Close() error = %v", err)
	}
	if err := serverConn.Close(); err != nil {
		t.Errorf("second Close() error = %v, want nil", err)
	}

	if err := serverConn.WriteJSON(map[string]string{"type": "x"}); err != ErrConnectionClosed {
		t.Errorf("WriteJSON() after close error = %v, want ErrConnectionClosed", err)
	}
}

func TestConnection_Counters(t *testing.T) {
	serverConn, clientConn, cleanup := dialPair(t)
	defer cleanup()

	_ = serverConn.WriteJSON(map[string]string{"type": "a"})
	_ = clientConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, _ = clientConn.ReadMessage()

	serverConn.IncrementRecvCount()
	serverConn.IncrementRecvCount()

	// Allow the write loop a moment to record the send.
	time.Sleep(50 * time.Millisecond)

	sent, received := serverConn.Counters()
	if sent != 1 {
		t.Errorf("sent = %d, want 1", sent)
	}
	if received != 2 {
		t.Errorf("received = %d, want 2", received)
	}
}
