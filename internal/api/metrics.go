package api

import "github.com/prometheus/client_golang/prometheus"

// statsCollector adapts the manager Stats()/GetStats() snapshots to the
// Prometheus collector interface: every scrape pulls a fresh snapshot
// rather than maintaining its own counters, so it can never drift from
// what /health reports.
type statsCollector struct {
	server *Server

	activeConnections *prometheus.Desc
	queueSize         *prometheus.Desc
	activePairs       *prometheus.Desc
	pendingModeSwitch *prometheus.Desc
	bannedIPs         *prometheus.Desc
	trackedFps        *prometheus.Desc
	messagesSent      *prometheus.Desc
	messagesReceived  *prometheus.Desc
}

func newStatsCollector(s *Server) *statsCollector {
	return &statsCollector{
		server:             s,
		activeConnections: prometheus.NewDesc("rendezvous_active_connections", "Number of currently registered websocket connections.", nil, nil),
		queueSize:         prometheus.NewDesc("rendezvous_queue_size", "Number of users currently waiting in a mode's queue.", []string{"mode"}, nil),
		activePairs:       prometheus.NewDesc("rendezvous_active_pairs", "Number of currently paired sessions.", nil, nil),
		pendingModeSwitch: prometheus.NewDesc("rendezvous_pending_mode_switches", "Number of mode-switch handshakes awaiting the partner's ack.", nil, nil),
		bannedIPs:         prometheus.NewDesc("rendezvous_banned_ips", "Number of IP addresses currently under an active ban.", nil, nil),
		trackedFps:        prometheus.NewDesc("rendezvous_tracked_fingerprints", "Number of distinct device fingerprints currently tracked.", nil, nil),
		messagesSent:      prometheus.NewDesc("rendezvous_messages_sent_total", "Cumulative messages written to client connections.", nil, nil),
		messagesReceived:  prometheus.NewDesc("rendezvous_messages_received_total", "Cumulative messages read from client connections.", nil, nil),
	}
}

func (c *statsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.activeConnections
	ch <- c.queueSize
	ch <- c.activePairs
	ch <- c.pendingModeSwitch
	ch <- c.bannedIPs
	ch <- c.trackedFps
	ch <- c.messagesSent
	ch <- c.messagesReceived
}

func (c *statsCollector) Collect(ch chan<- prometheus.Metric) {
	queueStats := c.server.queue.GetStats()
	pairingStats := c.server.pairing.GetStats()
	securityStats := c.server.security.Stats()
	connMetrics := c.server.registry.GetMetrics()

	ch <- prometheus.MustNewConstMetric(c.activeConnections, prometheus.GaugeValue, float64(c.server.registry.GetConnectionCount()))

	if sizes, ok := queueStats["queue_sizes"].(map[string]int); ok {
		for mode, n := range sizes {
			ch <- prometheus.MustNewConstMetric(c.queueSize, prometheus.GaugeValue, float64(n), mode)
		}
	}

	if n, ok := pairingStats["active_pairs"].(int); ok {
		ch <- prometheus.MustNewConstMetric(c.activePairs, prometheus.GaugeValue, float64(n))
	}
	if n, ok := pairingStats["pending_mode_switch"].(int); ok {
		ch <- prometheus.MustNewConstMetric(c.pendingModeSwitch, prometheus.GaugeValue, float64(n))
	}

	if ipGuard, ok := securityStats["ip_guard"].(map[string]interface{}); ok {
		if n, ok := ipGuard["active_bans"].(int); ok {
			ch <- prometheus.MustNewConstMetric(c.bannedIPs, prometheus.GaugeValue, float64(n))
		}
	}
	if fps, ok := securityStats["fingerprints"].(map[string]interface{}); ok {
		if n, ok := fps["tracked_fingerprints"].(int); ok {
			ch <- prometheus.MustNewConstMetric(c.trackedFps, prometheus.GaugeValue, float64(n))
		}
	}

	if n, ok := connMetrics["messages_sent"].(uint64); ok {
		ch <- prometheus.MustNewConstMetric(c.messagesSent, prometheus.CounterValue, float64(n))
	}
	if n, ok := connMetrics["messages_received"].(uint64); ok {
		ch <- prometheus.MustNewConstMetric(c.messagesReceived, prometheus.CounterValue, float64(n))
	}
}
