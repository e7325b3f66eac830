package router

import (
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"rendezvous/internal/hub"
	"rendezvous/internal/pairing"
	"rendezvous/internal/security"
	"rendezvous/internal/transport"
	"rendezvous/pkg/types"
)

const (
	websocketCloseNormal        = 1000
	websocketCloseProtocolError = 1002
)

const (
	banDurationHarasser = 24 * time.Hour
	banDurationSpammer  = time.Hour
)

// Router is the only component that sequences cross-manager state
// changes: it validates every inbound frame against the schema table,
// then dispatches to a handler that composes the Hub, the Pairing
// Manager, the Security Manager, and the Connection Manager.
type Router struct {
	hub      *hub.Hub
	pairing  *pairing.Manager
	security *security.Manager
	registry *transport.Registry
	logger   *zerolog.Logger

	maxFrameSize     int
	maxMessageLength int
}

// New constructs a Router over its four collaborating managers.
// maxFrameSize and maxMessageLength are the configured
// MAX_MESSAGE_SIZE/MAX_MESSAGE_LENGTH ceilings from spec.md §6.
func New(h *hub.Hub, p *pairing.Manager, s *security.Manager, registry *transport.Registry, logger *zerolog.Logger, maxFrameSize, maxMessageLength int) *Router {
	return &Router{
		hub:              h,
		pairing:          p,
		security:         s,
		registry:         registry,
		logger:           logger,
		maxFrameSize:     maxFrameSize,
		maxMessageLength: maxMessageLength,
	}
}

// HandleFrame implements transport.FrameHandler. raw is the complete,
// still-undecoded frame exactly as it arrived on the wire. correlationID
// identifies this one frame across every log line its handling produces,
// from this validation step through routing and delivery.
func (r *Router) HandleFrame(userID string, frameType string, raw []byte, correlationID string) {
	if r.logger != nil {
		r.logger.Debug().Str("correlation_id", correlationID).Str("user_id", userID).Str("frame_type", frameType).Msg("handling frame")
	}

	if len(raw) > r.maxFrameSize {
		r.logRejection(correlationID, userID, ErrFrameTooLarge)
		r.sendError(userID, ErrFrameTooLarge.Error())
		return
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		r.logRejection(correlationID, userID, ErrUndecodable)
		r.sendError(userID, ErrUndecodable.Error())
		r.registry.CloseUser(userID, websocketCloseProtocolError, "undecodable frame")
		return
	}

	if _, known := requiredFields[frameType]; !known {
		r.logRejection(correlationID, userID, ErrUnknownType)
		r.sendError(userID, ErrUnknownType.Error())
		return
	}

	if !validateSchema(frameType, payload) {
		r.logRejection(correlationID, userID, ErrSchemaViolation)
		r.sendError(userID, ErrSchemaViolation.Error())
		return
	}

	r.dispatch(userID, frameType, payload, correlationID)
}

func (r *Router) logRejection(correlationID, userID string, reason error) {
	if r.logger == nil {
		return
	}
	r.logger.Info().Str("correlation_id", correlationID).Str("user_id", userID).AnErr("reason", reason).Msg("frame rejected")
}

func (r *Router) dispatch(userID, frameType string, payload map[string]interface{}, correlationID string) {
	switch frameType {
	case types.TypeIdentify:
		r.handleIdentify(userID, payload)
	case types.TypeJoinText, types.TypeJoinVideo, types.TypeJoinVoice:
		mode, _ := types.JoinModeOf(frameType)
		r.handleJoin(userID, mode)
	case types.TypeTextMessage:
		r.handleTextMessage(userID, payload, correlationID)
	case types.TypeOffer, types.TypeAnswer, types.TypeIceCandidate:
		r.handleSignalRelay(frameType, userID, payload, correlationID)
	case types.TypeTypingStart, types.TypeTypingStop:
		r.handleTypingRelay(frameType, userID, payload)
	case types.TypeReportUser:
		r.handleReportUser(userID, payload)
	case types.TypeDisconnect:
		r.HandleDisconnect(userID)
	case types.TypeVideoRequest, types.TypeVideoAccept, types.TypeVideoDecline, types.TypeVideoCancel:
		r.handleVideoControlRelay(frameType, payload, correlationID)
	case types.TypeModeSwitch:
		r.handleModeSwitch(userID, payload)
	case types.TypePing:
		// No-op: the transport's pong handling keeps the heartbeat alive.
	}
}

func (r *Router) handleIdentify(userID string, payload map[string]interface{}) {
	fingerprint := payload["fingerprint"].(string)
	if !types.IsValidFingerprint(fingerprint) {
		r.sendError(userID, "invalid fingerprint")
		return
	}

	suspicious, reason := r.security.Fingerprints.TrackFingerprint(fingerprint, userID)
	if suspicious {
		r.registry.SendToUser(userID, map[string]interface{}{
			"type":    types.TypeWarning,
			"message": reason,
		})
	}

	ack := map[string]interface{}{"type": types.TypeIdentified}
	if r.security.Tokens != nil {
		if token, err := r.security.Tokens.MintToken(userID, fingerprint); err == nil {
			ack["token"] = token
		}
	}
	r.registry.SendToUser(userID, ack)

	r.broadcastUserCount()
}

// broadcastUserCount tells every connected client how many connections
// are currently open, per the user-count control-plane notification.
func (r *Router) broadcastUserCount() {
	r.registry.BroadcastToAll(map[string]interface{}{
		"type":  types.TypeUserCount,
		"count": r.registry.GetConnectionCount(),
	})
}

func (r *Router) handleJoin(userID string, mode types.Mode) {
	result, err := r.hub.JoinQueue(userID, mode)
	if err != nil {
		r.sendError(userID, "queue is full")
		return
	}

	if result.Waiting {
		r.registry.SendToUser(userID, map[string]interface{}{"type": types.TypeWaiting})
		return
	}

	r.notifyPaired(result.Session, result.Offerer)
}

func (r *Router) notifyPaired(session *types.Session, offerer string) {
	notify := func(userID, partnerID string) {
		payload := map[string]interface{}{
			"type":      types.TypePaired,
			"partnerId": partnerID,
		}
		if session.Mode == types.ModeVideo {
			payload["isOfferer"] = userID == offerer
		}
		r.registry.SendToUser(userID, payload)
	}
	notify(session.User1, session.User2)
	notify(session.User2, session.User1)
}

// isPairedWith reports whether userID's current partner is targetID,
// the guard spec.md calls out for every relay handler.
func (r *Router) isPairedWith(userID, targetID string) bool {
	partner, ok := r.pairing.GetPartner(userID)
	return ok && partner == targetID
}

func (r *Router) handleTextMessage(userID string, payload map[string]interface{}, correlationID string) {
	targetID := payload["targetId"].(string)
	message := payload["message"].(string)

	if !r.isPairedWith(userID, targetID) {
		if r.logger != nil {
			r.logger.Info().Str("correlation_id", correlationID).Str("user_id", userID).Str("target_id", targetID).Msg("dropped text-message: not paired with target")
		}
		return
	}

	if !r.security.RateLimiter.CheckRateLimit(userID, security.ActionMessage) {
		r.sendError(userID, security.ErrRateLimited.Error())
		return
	}

	validation := security.ValidateMessage(message, r.maxMessageLength)
	if !validation.Valid {
		if r.logger != nil {
			r.logger.Info().Str("correlation_id", correlationID).Str("user_id", userID).AnErr("reason", validation.Err).Msg("text-message rejected by content validation")
		}
		r.sendError(userID, validation.Reason)
		return
	}

	r.security.Abuse.TrackUserAction(userID, security.AbuseActionMessage)
	r.pairing.IncrementMessageCount(userID)

	r.relayTextMessage(userID, targetID, validation.Filtered)

	r.escalateIfAbusive(userID)
}

// relayTextMessage delivers message to targetID, sealing it with the
// Security Manager's message cipher when encryption is enabled. A
// disabled cipher is a transparent pass-through.
func (r *Router) relayTextMessage(userID, targetID, message string) {
	out := map[string]interface{}{
		"type": types.TypeTextMessage,
		"from": userID,
	}

	if !r.security.Cipher.Enabled {
		out["message"] = message
		r.registry.SendToUser(targetID, out)
		return
	}

	ciphertext, nonce, err := r.security.Cipher.Encrypt([]byte(message))
	if err != nil {
		r.sendError(userID, "encryption failed")
		return
	}
	out["message"] = base64.StdEncoding.EncodeToString(ciphertext)
	out["nonce"] = base64.StdEncoding.EncodeToString(nonce)
	out["encrypted"] = true
	r.registry.SendToUser(targetID, out)
}

// handleSignalRelay relays offer/answer/ice-candidate payloads
// opaquely: every field besides userId/targetId passes through
// unmodified, with "from" substituted for the sender.
func (r *Router) handleSignalRelay(frameType, userID string, payload map[string]interface{}, correlationID string) {
	targetID := payload["targetId"].(string)
	if !r.isPairedWith(userID, targetID) {
		if r.logger != nil {
			r.logger.Info().Str("correlation_id", correlationID).Str("user_id", userID).Str("target_id", targetID).Msg("dropped relay: not paired with target")
		}
		return
	}

	out := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		if k == "userId" || k == "targetId" {
			continue
		}
		out[k] = v
	}
	out["type"] = frameType
	out["from"] = userID

	r.registry.SendToUser(targetID, out)
}

func (r *Router) handleTypingRelay(frameType, userID string, payload map[string]interface{}) {
	targetID := payload["targetId"].(string)
	if !r.isPairedWith(userID, targetID) {
		return
	}
	r.registry.SendToUser(targetID, map[string]interface{}{
		"type": frameType,
		"from": userID,
	})
}

func (r *Router) handleVideoControlRelay(frameType string, payload map[string]interface{}, correlationID string) {
	from := payload["from"].(string)
	to := payload["to"].(string)

	if !r.isPairedWith(from, to) {
		if r.logger != nil {
			r.logger.Info().Str("correlation_id", correlationID).Str("from", from).Str("to", to).Msg("dropped video control relay: not paired")
		}
		return
	}

	r.registry.SendToUser(to, map[string]interface{}{
		"type": frameType,
		"from": from,
	})
}

func (r *Router) handleModeSwitch(userID string, payload map[string]interface{}) {
	partnerID := payload["partnerId"].(string)

	result, err := r.pairing.SwitchMode(userID, partnerID, types.ModeVideo)
	if err != nil {
		r.sendError(userID, "mode switch failed")
		return
	}
	if !result.BothReady {
		return
	}

	r.registry.SendToUser(userID, map[string]interface{}{
		"type":      types.TypeVideoModeReady,
		"isOfferer": result.IsOfferer,
		"partnerId": result.PartnerID,
	})
	r.registry.SendToUser(result.PartnerID, map[string]interface{}{
		"type":      types.TypeVideoModeReady,
		"isOfferer": !result.IsOfferer,
		"partnerId": userID,
	})
}

func (r *Router) handleReportUser(userID string, payload map[string]interface{}) {
	reportedID := payload["reportedId"].(string)

	if !r.security.RateLimiter.CheckRateLimit(userID, security.ActionReport) {
		r.sendError(userID, security.ErrRateLimited.Error())
		return
	}

	r.security.Abuse.TrackUserAction(reportedID, security.AbuseActionReport)
	r.security.Fingerprints.RecordReport(reportedID)

	if r.security.Fingerprints.CountReports(reportedID) < 5 {
		return
	}

	r.banAndDisconnect(reportedID, banDurationHarasser, "report cascade")
}

// escalateIfAbusive runs the rolling abuse-pattern check and applies the
// escalation policy: harasser and spammer bans the user's IP and force-
// disconnects; skip_abuser only warns.
func (r *Router) escalateIfAbusive(userID string) {
	for _, pattern := range r.security.Abuse.DetectAbusePatterns(userID) {
		switch pattern {
		case security.PatternHarasser:
			r.banAndDisconnect(userID, banDurationHarasser, "harasser")
			return
		case security.PatternSpammer:
			r.banAndDisconnect(userID, banDurationSpammer, "spammer")
			return
		case security.PatternSkipAbuser:
			r.registry.SendToUser(userID, map[string]interface{}{
				"type":    types.TypeWarning,
				"message": "excessive skipping detected",
			})
		}
	}
}

func (r *Router) banAndDisconnect(userID string, duration time.Duration, reason string) {
	if conn, ok := r.registry.GetConnection(userID); ok {
		r.security.IPGuard.BanIPFor(conn.GetRemoteIP(), duration, reason)
	}
	r.security.Fingerprints.RecordBan(userID)
	r.registry.CloseUser(userID, websocketCloseNormal, "banned: "+reason)
	r.HandleDisconnect(userID)
}

// HandleDisconnect implements transport.FrameHandler, and is also the
// shared implementation for an explicit "disconnect" frame.
func (r *Router) HandleDisconnect(userID string) {
	r.security.Abuse.TrackUserAction(userID, security.AbuseActionSkip)

	if containsHarasser(r.security.Abuse.DetectAbusePatterns(userID)) {
		if conn, ok := r.registry.GetConnection(userID); ok {
			r.security.IPGuard.BanIPFor(conn.GetRemoteIP(), banDurationHarasser, "harasser")
		}
		r.security.Fingerprints.RecordBan(userID)
	}

	defer r.broadcastUserCount()

	result := r.hub.Disconnect(userID, r.registry.IsConnected)
	if !result.HadPair {
		return
	}

	r.registry.SendToUser(result.PartnerID, map[string]interface{}{"type": types.TypePartnerDisconnect})
	if result.PartnerRequeued {
		r.registry.SendToUser(result.PartnerID, map[string]interface{}{"type": types.TypeWaiting})
	}
}

// NotifyQueueTimeout tells each user in userIDs that its wait in the
// queue was swept for exceeding the configured timeout.
func (r *Router) NotifyQueueTimeout(userIDs []string) {
	for _, userID := range userIDs {
		r.registry.SendToUser(userID, map[string]interface{}{"type": types.TypeQueueTimeout})
	}
}

func (r *Router) sendError(userID, message string) {
	r.registry.SendToUser(userID, map[string]interface{}{
		"type":    types.TypeError,
		"message": message,
	})
}

func containsHarasser(patterns []security.AbusePattern) bool {
	for _, p := range patterns {
		if p == security.PatternHarasser {
			return true
		}
	}
	return false
}
