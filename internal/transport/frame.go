package transport

import "encoding/json"

// peekFrameType extracts the "type" discriminator from a raw inbound
// frame without committing to its full schema, so the read loop can
// route it before the router does real validation.
func peekFrameType(raw []byte) (string, bool) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil || envelope.Type == "" {
		return "", false
	}
	return envelope.Type, true
}

func decodeJSON(raw []byte, v interface{}) error {
	return json.Unmarshal(raw, v)
}
