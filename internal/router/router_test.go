package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"rendezvous/internal/clock"
	"rendezvous/internal/hub"
	"rendezvous/internal/pairing"
	"rendezvous/internal/queue"
	"rendezvous/internal/security"
	"rendezvous/internal/transport"
	"rendezvous/pkg/types"
)

// testHarness wires a Router over real managers, all driven by a shared
// mock clock, with a real Registry backed by real (loopback) websocket
// connections so SendToUser exercises the full write path.
type testHarness struct {
	t        *testing.T
	clk      *clock.Mock
	router   *Router
	pairing  *pairing.Manager
	security *security.Manager
	registry *transport.Registry
	clients  map[string]*websocket.Conn
	srv      *httptest.Server
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()

	mock := clock.NewMock()
	q := queue.New(mock, 100, 5*time.Minute, nil)
	p := pairing.New(mock, 30*time.Second)
	h := hub.New(q, p)

	sec, err := security.NewManager(mock, security.Config{
		MaxConnectionsPerIP:        10,
		IPConnectionWindow:         time.Minute,
		BanDuration:                time.Hour,
		RateLimitMessagesPerMinute: 30,
		RateLimitSkipsPerMinute:    10,
		RateLimitReportsPerHour:    3,
	}, nil)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	registry := transport.NewRegistry(mock, 30*time.Second, 90*time.Second, nil)
	rtr := New(h, p, sec, registry, nil, 10240, 500)

	return &testHarness{
		t: t, clk: mock, router: rtr, pairing: p, security: sec, registry: registry,
		clients: make(map[string]*websocket.Conn),
	}
}

// connect registers a real loopback connection for userID in the
// Registry, so SendToUser/CloseUser can exercise the live write path.
func (h *testHarness) connect(userID string) *websocket.Conn {
	h.t.Helper()

	if h.srv == nil {
		upg := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
		h.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := upg.Upgrade(w, r, nil)
			if err != nil {
				return
			}
			conn := transport.NewConnection(h.clk, raw, "127.0.0.1")
			userID := r.URL.Query().Get("uid")
			_ = h.registry.AddConnection(userID, conn)
		}))
	}

	wsURL := "ws" + h.srv.URL[len("http"):] + "?uid=" + userID
	clientConn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		h.t.Fatalf("dial failed: %v", err)
	}
	h.clients[userID] = clientConn

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok := h.registry.GetConnection(userID); ok {
			break
		}
		if time.Now().After(deadline) {
			h.t.Fatalf("connection for %s never registered", userID)
		}
		time.Sleep(time.Millisecond)
	}
	return clientConn
}

func (h *testHarness) closeAll() {
	if h.srv != nil {
		h.srv.Close()
	}
	for _, c := range h.clients {
		_ = c.Close()
	}
}

func (h *testHarness) recv(userID string) map[string]interface{} {
	h.t.Helper()
	conn := h.clients[userID]
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var payload map[string]interface{}
	if err := conn.ReadJSON(&payload); err != nil {
		h.t.Fatalf("ReadJSON() for %s error = %v", userID, err)
	}
	return payload
}

func pairUp(h *testHarness, a, b string) {
	h.connect(a)
	h.connect(b)
	h.router.dispatch(a, types.TypeJoinText, map[string]interface{}{"userId": a}, "test-correlation")
	h.recv(a) // waiting
	h.router.dispatch(b, types.TypeJoinText, map[string]interface{}{"userId": b}, "test-correlation")
	h.recv(a) // paired
	h.recv(b) // paired
}

func TestRouter_JoinText_PairsTwoUsers(t *testing.T) {
	h := newHarness(t)
	defer h.closeAll()

	h.connect("alice")
	h.connect("bob")

	h.router.dispatch("alice", types.TypeJoinText, map[string]interface{}{"userId": "alice"}, "test-correlation")
	waiting := h.recv("alice")
	if waiting["type"] != types.TypeWaiting {
		t.Fatalf("alice got %v, want waiting", waiting)
	}

	h.router.dispatch("bob", types.TypeJoinText, map[string]interface{}{"userId": "bob"}, "test-correlation")
	alicePaired := h.recv("alice")
	bobPaired := h.recv("bob")

	if alicePaired["type"] != types.TypePaired || alicePaired["partnerId"] != "bob" {
		t.Errorf("alice paired payload = %v", alicePaired)
	}
	if bobPaired["type"] != types.TypePaired || bobPaired["partnerId"] != "alice" {
		t.Errorf("bob paired payload = %v", bobPaired)
	}
}

func TestRouter_TextMessage_RelaysToPartner(t *testing.T) {
	h := newHarness(t)
	defer h.closeAll()
	pairUp(h, "alice", "bob")

	h.router.dispatch("alice", types.TypeTextMessage, map[string]interface{}{
		"userId": "alice", "targetId": "bob", "message": "hello there",
	}, "test-correlation")

	msg := h.recv("bob")
	if msg["type"] != types.TypeTextMessage || msg["from"] != "alice" || msg["message"] != "hello there" {
		t.Errorf("bob received = %v", msg)
	}
}

func TestRouter_TextMessage_DroppedWhenNotPaired(t *testing.T) {
	h := newHarness(t)
	defer h.closeAll()

	h.connect("alice")
	h.connect("carol")

	h.router.dispatch("alice", types.TypeTextMessage, map[string]interface{}{
		"userId": "alice", "targetId": "carol", "message": "hi",
	}, "test-correlation")

	// alice is not paired with carol, so carol should receive nothing;
	// prove the connection is otherwise healthy by sending a direct frame.
	_ = h.registry.SendToUser("carol", map[string]interface{}{"type": "probe"})
	got := h.recv("carol")
	if got["type"] != "probe" {
		t.Errorf("expected only the probe frame to arrive, got %v", got)
	}
}

func TestRouter_TextMessage_RejectsDangerousContent(t *testing.T) {
	h := newHarness(t)
	defer h.closeAll()
	pairUp(h, "alice", "bob")

	h.router.dispatch("alice", types.TypeTextMessage, map[string]interface{}{
		"userId": "alice", "targetId": "bob", "message": "<script>alert(1)</script>",
	}, "test-correlation")

	errPayload := h.recv("alice")
	if errPayload["type"] != types.TypeError {
		t.Errorf("alice got %v, want an error frame", errPayload)
	}
}

func TestRouter_TextMessage_RateLimitExceeded(t *testing.T) {
	h := newHarness(t)
	defer h.closeAll()
	pairUp(h, "alice", "bob")

	for i := 0; i < 30; i++ {
		h.router.dispatch("alice", types.TypeTextMessage, map[string]interface{}{
			"userId": "alice", "targetId": "bob", "message": "ping",
		}, "test-correlation")
		h.recv("bob")
	}

	h.router.dispatch("alice", types.TypeTextMessage, map[string]interface{}{
		"userId": "alice", "targetId": "bob", "message": "one too many",
	}, "test-correlation")
	errPayload := h.recv("alice")
	if errPayload["type"] != types.TypeError {
		t.Errorf("alice got %v, want a rate-limit error", errPayload)
	}
}

func TestRouter_SignalRelay_PassesThroughOpaquePayload(t *testing.T) {
	h := newHarness(t)
	defer h.closeAll()
	pairUp(h, "alice", "bob")

	h.router.dispatch("alice", types.TypeOffer, map[string]interface{}{
		"userId": "alice", "targetId": "bob", "payload": "sdp-blob",
	}, "test-correlation")

	offer := h.recv("bob")
	if offer["type"] != types.TypeOffer || offer["from"] != "alice" || offer["payload"] != "sdp-blob" {
		t.Errorf("bob received = %v", offer)
	}
}

func TestRouter_Disconnect_RequeuesConnectedPartner(t *testing.T) {
	h := newHarness(t)
	defer h.closeAll()
	pairUp(h, "alice", "bob")

	h.router.HandleDisconnect("alice")

	notice := h.recv("bob")
	if notice["type"] != types.TypePartnerDisconnect {
		t.Fatalf("bob got %v, want partner-disconnected", notice)
	}
	waiting := h.recv("bob")
	if waiting["type"] != types.TypeWaiting {
		t.Errorf("bob got %v, want waiting after requeue", waiting)
	}
}

func TestRouter_ReportUser_CascadesToBanAfterFiveReports(t *testing.T) {
	h := newHarness(t)
	defer h.closeAll()

	h.connect("victim")
	h.router.dispatch("victim", types.TypeIdentify, map[string]interface{}{
		"userId": "victim", "fingerprint": "fp-victim",
	}, "test-correlation")
	reporters := []string{"r1", "r2", "r3", "r4", "r5"}
	for _, r := range reporters {
		h.connect(r)
	}

	for _, r := range reporters {
		h.router.dispatch(r, types.TypeReportUser, map[string]interface{}{
			"userId": r, "reportedId": "victim", "reason": "abuse",
		}, "test-correlation")
	}

	if h.registry.IsConnected("victim") {
		t.Error("victim should have been force-disconnected after the fifth report")
	}
}

func TestValidateSchema_RejectsMissingField(t *testing.T) {
	if validateSchema(types.TypeTextMessage, map[string]interface{}{"userId": "a"}) {
		t.Error("validateSchema() = true, want false when targetId/message are missing")
	}
}

func TestValidateSchema_RejectsEmptyStringField(t *testing.T) {
	payload := map[string]interface{}{"userId": "a", "targetId": "", "message": "hi"}
	if validateSchema(types.TypeTextMessage, payload) {
		t.Error("validateSchema() = true, want false for an empty required field")
	}
}

func TestValidateSchema_AcceptsCompleteFrame(t *testing.T) {
	payload := map[string]interface{}{"userId": "a", "targetId": "b", "message": "hi"}
	if !validateSchema(types.TypeTextMessage, payload) {
		t.Error("validateSchema() = false, want true for a complete frame")
	}
}

func TestRouter_HandleFrame_UnknownTypeSendsError(t *testing.T) {
	h := newHarness(t)
	defer h.closeAll()
	h.connect("alice")

	h.router.HandleFrame("alice", "not-a-real-type", []byte(`{"type":"not-a-real-type"}`), "test-correlation")
	errPayload := h.recv("alice")
	if errPayload["type"] != types.TypeError {
		t.Errorf("alice got %v, want an error frame", errPayload)
	}
}

func TestRouter_HandleFrame_OversizedFrameRejected(t *testing.T) {
	h := newHarness(t)
	defer h.closeAll()
	h.connect("alice")

	oversized := make([]byte, h.router.maxFrameSize+1)
	h.router.HandleFrame("alice", types.TypeTextMessage, oversized, "test-correlation")
	errPayload := h.recv("alice")
	if errPayload["type"] != types.TypeError {
		t.Errorf("alice got %v, want an error frame", errPayload)
	}
}
