// Package api exposes the service's two HTTP surfaces: a liveness/
// readiness probe and a Prometheus scrape endpoint. Pairing and chat
// happen exclusively over the websocket upgrade handled by
// internal/transport; nothing here carries business logic.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"rendezvous/internal/clock"
)

// StatsSource is the subset of each manager's stats surface the /health
// and /metrics handlers need. Queue and Pairing already return this
// shape from GetStats.
type StatsSource interface {
	GetStats() map[string]interface{}
}

// SecurityStatsSource is the Security Manager's stats surface.
type SecurityStatsSource interface {
	Stats() map[string]interface{}
}

// ConnectionStatsSource is the Connection Manager's stats surface.
type ConnectionStatsSource interface {
	GetConnectionCount() int
	GetMetrics() map[string]interface{}
}

// Server is the HTTP front door: GET /health for orchestration probes,
// GET /metrics for Prometheus scraping.
type Server struct {
	clk     clock.Clock
	startAt time.Time

	queue    StatsSource
	pairing  StatsSource
	security SecurityStatsSource
	registry ConnectionStatsSource

	logger       *zerolog.Logger
	router       *http.ServeMux
	registryProm *prometheus.Registry
}

// NewServer wires the four manager stats surfaces behind /health and
// /metrics and registers the collector with a dedicated Prometheus
// registry (not the global default, so tests never leak state across
// processes sharing the binary).
func NewServer(
	clk clock.Clock,
	queue StatsSource,
	pairing StatsSource,
	security SecurityStatsSource,
	registry ConnectionStatsSource,
	logger *zerolog.Logger,
) *Server {
	s := &Server{
		clk:          clk,
		startAt:      clk.Now(),
		queue:        queue,
		pairing:      pairing,
		security:     security,
		registry:     registry,
		logger:       logger,
		router:       http.NewServeMux(),
		registryProm: prometheus.NewRegistry(),
	}

	s.registryProm.MustRegister(newStatsCollector(s))
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.registryProm, promhttp.HandlerOpts{}))
}

// ServeHTTP implements http.Handler so the server can be mounted directly
// on the process's net/http.Server.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type healthResponse struct {
	Status            string                 `json:"status"`
	Timestamp         time.Time              `json:"timestamp"`
	UptimeSeconds     float64                `json:"uptime_seconds"`
	ActiveConnections int                    `json:"active_connections"`
	QueueSizes        map[string]interface{} `json:"queue_sizes"`
	ActivePairs       int                    `json:"active_pairs"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	queueStats := s.queue.GetStats()
	pairingStats := s.pairing.GetStats()

	activePairs, _ := pairingStats["active_pairs"].(int)
	queueSizes, _ := queueStats["queue_sizes"].(map[string]int)

	sizes := make(map[string]interface{}, len(queueSizes))
	for mode, n := range queueSizes {
		sizes[mode] = n
	}

	resp := healthResponse{
		Status:            "healthy",
		Timestamp:         s.clk.Now(),
		UptimeSeconds:     s.clk.Now().Sub(s.startAt).Seconds(),
		ActiveConnections: s.registry.GetConnectionCount(),
		QueueSizes:        sizes,
		ActivePairs:       activePairs,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}
