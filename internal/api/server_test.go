package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"rendezvous/internal/clock"
	"rendezvous/internal/pairing"
	"rendezvous/internal/queue"
	"rendezvous/internal/security"
	"rendezvous/internal/transport"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	mock := clock.NewMock()
	q := queue.New(mock, 100, 5*time.Minute, nil)
	p := pairing.New(mock, 30*time.Second)
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

	return NewServer(mock, q, p, sec, registry, nil)
}

func TestServer_Health_ReportsOK(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Status != "healthy" {
		t.Errorf("status = %q, want healthy", body.Status)
	}
	if body.ActiveConnections != 0 {
		t.Errorf("active_connections = %d, want 0", body.ActiveConnections)
	}
}

func TestServer_Metrics_ExposesPrometheusFormat(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Body.String(); !strings.Contains(got, "rendezvous_active_connections") {
		t.Errorf("metrics body missing rendezvous_active_connections:\n%s", got)
	}
}
