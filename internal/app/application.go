// Package app wires every manager into one running process.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"rendezvous/internal/api"
	"rendezvous/internal/clock"
	"rendezvous/internal/config"
	"rendezvous/internal/hub"
	"rendezvous/internal/logging"
	"rendezvous/internal/pairing"
	"rendezvous/internal/queue"
	"rendezvous/internal/router"
	"rendezvous/internal/security"
	"rendezvous/internal/transport"
)

// Application coordinates every component's lifecycle: construction
// order is Clock -> Config -> Logging -> Security -> Queue -> Pairing ->
// Transport.Registry -> Hub -> Router -> Transport.Handler -> API -> HTTP.
// Shutdown runs the reverse.
type Application struct {
	cfg    config.Config
	logger *zerolog.Logger

	queue    *queue.Manager
	pairing  *pairing.Manager
	security *security.Manager
	registry *transport.Registry
	hub      *hub.Hub
	router   *router.Router
	handler  *transport.Handler
	apiServer *api.Server

	httpServer *http.Server

	stopHeartbeat chan struct{}
	stopSweep     chan struct{}
}

// New builds every component from cfg but starts nothing.
func New(cfg config.Config, logger *zerolog.Logger) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	clk := clock.New()

	secMgr, err := security.NewManager(clk, security.Config{
		MaxConnectionsPerIP:        cfg.MaxConnectionsPerIP,
		IPConnectionWindow:         cfg.IPConnectionWindow,
		BanDuration:                cfg.BanDuration,
		RateLimitMessagesPerMinute: cfg.RateLimitMessagesPerMinute,
		RateLimitSkipsPerMinute:    cfg.RateLimitSkipsPerMinute,
		RateLimitReportsPerHour:    cfg.RateLimitReportsPerHour,
		EncryptionEnabled:          cfg.EncryptionEnabled,
		TokenMintEnabled:           cfg.TokenMintEnabled,
		JWTSecret:                  cfg.JWTSecret,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize security manager: %w", err)
	}

	queueMgr := queue.New(clk, cfg.MaxQueueSize, cfg.QueueTimeout, logger)
	pairingMgr := pairing.New(clk, cfg.ModeSwitchTimeout)
	registry := transport.NewRegistry(clk, cfg.HeartbeatInterval, cfg.ConnectionTimeout, logger)
	messageHub := hub.New(queueMgr, pairingMgr)
	messageRouter := router.New(messageHub, pairingMgr, secMgr, registry, logger, cfg.MaxMessageSize, cfg.MaxMessageLength)
	wsHandler := transport.NewHandler(clk, registry, secMgr, messageRouter, cfg.ConnectionTimeout, logger)
	apiServer := api.NewServer(clk, queueMgr, pairingMgr, secMgr, registry, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/", wsHandler.HandleUpgrade)
	mux.Handle("/health", apiServer)
	mux.Handle("/metrics", apiServer)

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: mux,
	}

	return &Application{
		cfg:        cfg,
		logger:     logger,
		queue:      queueMgr,
		pairing:    pairingMgr,
		security:   secMgr,
		registry:   registry,
		hub:        messageHub,
		router:     messageRouter,
		handler:    wsHandler,
		apiServer:  apiServer,
		httpServer: httpServer,
	}, nil
}

// Start launches the background heartbeat sweep, the periodic queue/
// pairing/security cleanup sweep, and the HTTP listener, then blocks
// until ctx is cancelled.
func (a *Application) Start(ctx context.Context) error {
	a.stopHeartbeat = make(chan struct{})
	a.stopSweep = make(chan struct{})

	go a.registry.RunHeartbeat(a.stopHeartbeat)
	go a.runCleanupSweep(a.stopSweep)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	a.logger.Info().Str("addr", a.httpServer.Addr).Msg("rendezvous service started")

	select {
	case err := <-serverErrCh:
		return err
	case <-ctx.Done():
		return nil
	}
}

// runCleanupSweep periodically sweeps timed-out queue entries, expired
// mode-switch handshakes, and expired security state, notifying affected
// users through the router.
func (a *Application) runCleanupSweep(stop <-chan struct{}) {
	ticker := time.NewTicker(a.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if evicted := a.queue.Sweep(); len(evicted) > 0 {
				a.router.NotifyQueueTimeout(evicted)
			}
			a.pairing.SweepExpiredSwitches()
			a.security.Sweep()
		case <-stop:
			return
		}
	}
}

// Stop shuts every component down in the reverse of construction order:
// HTTP listener first (stop accepting new work), then every active
// client connection, then the background sweepers.
func (a *Application) Stop(ctx context.Context) error {
	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("http server shutdown error")
	}
	a.registry.CloseAll()
	if a.stopHeartbeat != nil {
		close(a.stopHeartbeat)
	}
	if a.stopSweep != nil {
		close(a.stopSweep)
	}
	a.logger.Info().Msg("rendezvous service stopped")
	return nil
}

// Addr returns the HTTP listener's bound address.
func (a *Application) Addr() string {
	return a.httpServer.Addr
}

// NewLogger is a thin convenience wrapper so cmd/rendezvous doesn't need
// to import internal/logging directly.
func NewLogger(level string) *zerolog.Logger {
	return logging.New(level)
}
