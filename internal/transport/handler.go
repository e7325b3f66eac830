package transport

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"rendezvous/internal/clock"
	"rendezvous/pkg/types"
)

// IPAdmitter is the narrow slice of the Security Manager the admission
// front needs. Declared here, rather than importing internal/security
// directly, to keep the dependency pointing the natural way (security
// has no reason to know about transport).
type IPAdmitter interface {
	IsIPBanned(ip string) bool
	TrackIPConnection(ip string) bool
}

// FrameHandler is how the Handler forwards a decoded inbound frame and a
// disconnect notification to the rest of the system. Implemented by the
// router. correlationID identifies this one frame across log lines, from
// receipt through routing and delivery.
type FrameHandler interface {
	HandleFrame(userID string, frameType string, raw []byte, correlationID string)
	HandleDisconnect(userID string)
}

const websocketCloseProtocolError = 1002

var upgrader = websocket.Upgrader{
	CheckOrigin:      func(r *http.Request) bool { return true },
	HandshakeTimeout: 10 * time.Second,
}

// Handler is the Admission/Upgrade Front: it is the only place an
// inbound transport upgrade is accepted or rejected before the rest of
// the system sees any traffic.
type Handler struct {
	clk      clock.Clock
	registry *Registry
	security IPAdmitter
	router   FrameHandler
	logger   *zerolog.Logger

	readDeadline time.Duration
}

// NewHandler constructs the admission front.
func NewHandler(clk clock.Clock, registry *Registry, security IPAdmitter, router FrameHandler, connectionTimeout time.Duration, logger *zerolog.Logger) *Handler {
	return &Handler{
		clk:          clk,
		registry:     registry,
		security:     security,
		router:       router,
		logger:       logger,
		readDeadline: connectionTimeout,
	}
}

// HandleUpgrade is the HTTP handler mounted at "/". It resolves the
// client IP, consults the Security Manager's ban table and connection
// rate window, and only then completes the WebSocket upgrade. The
// resulting connection has no userId bound until an identify frame
// arrives.
func (h *Handler) HandleUpgrade(w http.ResponseWriter, r *http.Request) {
	ip := resolveClientIP(r)

	if h.security.IsIPBanned(ip) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	if !h.security.TrackIPConnection(ip) {
		http.Error(w, "too many connections", http.StatusTooManyRequests)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		if h.logger != nil {
			h.logger.Warn().Err(err).Str("ip", ip).Msg("websocket upgrade failed")
		}
		return
	}

	wsConn := NewConnection(h.clk, conn, ip)
	go h.readLoop(wsConn)
}

// readLoop owns the read side of the socket for its lifetime: pong
// handling, deadline refresh, and forwarding text frames to the router.
// Frames from one connection are forwarded in arrival order.
func (h *Handler) readLoop(conn *Connection) {
	defer func() {
		userID := conn.GetUserID()
		if userID != "" {
			h.registry.RemoveConnection(userID, conn)
			h.router.HandleDisconnect(userID)
		} else {
			_ = conn.Close()
		}
	}()

	raw := conn.Underlying()
	_ = raw.SetReadDeadline(h.clk.Now().Add(h.readDeadline))
	raw.SetPongHandler(func(string) error {
		conn.MarkAlive(h.clk.Now())
		return raw.SetReadDeadline(h.clk.Now().Add(h.readDeadline))
	})

	for {
		messageType, data, err := raw.ReadMessage()
		if err != nil {
			return
		}
		conn.MarkAlive(h.clk.Now())
		conn.IncrementRecvCount()

		if messageType != websocket.TextMessage {
			continue
		}

		frameType, ok := peekFrameType(data)
		if !ok {
			_ = conn.WriteJSON(map[string]string{"type": "error", "message": "undecodable frame"})
			_ = conn.CloseWithCode(websocketCloseProtocolError, "undecodable frame")
			return
		}

		correlationID := uuid.NewString()

		if frameType == "identify" {
			h.handleIdentify(conn, data, correlationID)
			continue
		}

		userID := conn.GetUserID()
		if userID == "" {
			_ = conn.WriteJSON(map[string]string{"type": "error", "message": "identify required before any other frame"})
			continue
		}
		h.router.HandleFrame(userID, frameType, data, correlationID)
	}
}

func (h *Handler) handleIdentify(conn *Connection, raw []byte, correlationID string) {
	var frame struct {
		UserID string `json:"userId"`
	}
	if err := decodeJSON(raw, &frame); err != nil || !types.IsValidUserID(frame.UserID) {
		_ = conn.WriteJSON(map[string]string{"type": "error", "message": "identify requires a valid userId"})
		return
	}

	if err := conn.SetUserID(frame.UserID); err != nil {
		_ = conn.WriteJSON(map[string]string{"type": "error", "message": "connection already identified"})
		return
	}

	if err := h.registry.AddConnection(frame.UserID, conn); err != nil {
		_ = conn.WriteJSON(map[string]string{"type": "error", "message": "registration failed"})
		return
	}

	h.router.HandleFrame(frame.UserID, "identify", raw, correlationID)
}

// resolveClientIP honors the first entry of X-Forwarded-For, then
// X-Real-Ip, then falls back to the socket address.
func resolveClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}
	if xri := r.Header.Get("X-Real-Ip"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
