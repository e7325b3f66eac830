package transport

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"rendezvous/internal/clock"
)

type mockAdmitter struct {
	banned  bool
	allowed bool
}

func (m *mockAdmitter) IsIPBanned(ip string) bool        { return m.banned }
func (m *mockAdmitter) TrackIPConnection(ip string) bool { return m.allowed }

type mockFrameHandler struct {
	frames       []string
	disconnected []string
}

func (m *mockFrameHandler) HandleFrame(userID string, frameType string, raw []byte, correlationID string) {
	m.frames = append(m.frames, userID+":"+frameType)
}

func (m *mockFrameHandler) HandleDisconnect(userID string) {
	m.disconnected = append(m.disconnected, userID)
}

func newTestHandler(admitter IPAdmitter) (*Handler, *Registry) {
	mock := clock.NewMock()
	registry := NewRegistry(mock, time.Second, time.Minute, nil)
	router := &mockFrameHandler{}
	return NewHandler(mock, registry, admitter, router, time.Minute, nil), registry
}

func TestHandler_HandleUpgrade_RejectsBannedIP(t *testing.T) {
	handler, _ := newTestHandler(&mockAdmitter{banned: true, allowed: true})

	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	handler.HandleUpgrade(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestHandler_HandleUpgrade_RejectsOverConnectionLimit(t *testing.T) {
	handler, _ := newTestHandler(&mockAdmitter{banned: false, allowed: false})

	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	handler.HandleUpgrade(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}
}

func TestResolveClientIP_PrefersForwardedFor(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	req.RemoteAddr = "10.0.0.1:54321"

	if ip := resolveClientIP(req); ip != "203.0.113.5" {
		t.Errorf("resolveClientIP() = %q, want %q", ip, "203.0.113.5")
	}
}

func TestResolveClientIP_FallsBackToRealIPThenSocket(t *testing.T) {
	withRealIP := httptest.NewRequest("GET", "/", nil)
	withRealIP.Header.Set("X-Real-Ip", "198.51.100.9")
	withRealIP.RemoteAddr = "10.0.0.1:54321"
	if ip := resolveClientIP(withRealIP); ip != "198.51.100.9" {
		t.Errorf("resolveClientIP() = %q, want %q", ip, "198.51.100.9")
	}

	bare := httptest.NewRequest("GET", "/", nil)
	bare.RemoteAddr = "10.0.0.1:54321"
	if ip := resolveClientIP(bare); ip != "10.0.0.1" {
		t.Errorf("resolveClientIP() = %q, want %q", ip, "10.0.0.1")
	}
}

func TestPeekFrameType(t *testing.T) {
	frameType, ok := peekFrameType([]byte(`{"type":"identify","userId":"alice"}`))
	if !ok || frameType != "identify" {
		t.Errorf("peekFrameType() = %q, %v, want %q, true", frameType, ok, "identify")
	}

	if _, ok := peekFrameType([]byte(`not json`)); ok {
		t.Error("peekFrameType() ok = true for malformed input, want false")
	}

	if _, ok := peekFrameType([]byte(`{}`)); ok {
		t.Error("peekFrameType() ok = true for a missing type field, want false")
	}
}
