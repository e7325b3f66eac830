package router

import "rendezvous/pkg/types"

// requiredFields is the schema table from the frame format: every
// inbound frame type maps to the set of string fields it must carry.
var requiredFields = map[string][]string{
	types.TypeIdentify:     {"userId", "fingerprint"},
	types.TypeJoinText:     {"userId"},
	types.TypeJoinVideo:    {"userId"},
	types.TypeJoinVoice:    {"userId"},
	types.TypeTextMessage:  {"userId", "targetId", "message"},
	types.TypeOffer:        {"userId", "targetId", "payload"},
	types.TypeAnswer:       {"userId", "targetId", "payload"},
	types.TypeIceCandidate: {"userId", "targetId", "payload"},
	types.TypeDisconnect:   {"userId"},
	types.TypeTypingStart:  {"userId", "targetId"},
	types.TypeTypingStop:   {"userId", "targetId"},
	types.TypeReportUser:   {"userId", "reportedId", "reason"},
	types.TypeVideoRequest: {"to", "from"},
	types.TypeVideoAccept:  {"to", "from"},
	types.TypeVideoDecline: {"to", "from"},
	types.TypeVideoCancel:  {"to", "from"},
	types.TypeModeSwitch:   {"userId", "partnerId"},
	types.TypePing:         {},
}

// validateSchema checks that every required field for frameType is
// present in payload as a non-empty string.
func validateSchema(frameType string, payload map[string]interface{}) bool {
	fields, ok := requiredFields[frameType]
	if !ok {
		return false
	}
	for _, field := range fields {
		value, present := payload[field]
		if !present {
			return false
		}
		s, isString := value.(string)
		if !isString || s == "" {
			return false
		}
	}
	return true
}
