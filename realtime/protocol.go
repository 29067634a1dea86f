package realtime

import (
	"encoding/json"
	"log/slog"

	"parking-terminal-cli/model"
)

// Message types exchanged on the gate socket. Anything else is tolerated
// and ignored so older terminals keep working when the server grows new
// frame types.
const (
	MessageSubscribe   = "subscribe"
	MessageZoneUpdate  = "zone-update"
	MessageAdminUpdate = "admin-update"
)

// Envelope is the wire framing for every message on the socket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type subscribePayload struct {
	GateId string `json:"gateId"`
}

func subscribeFrame(gateID string) ([]byte, error) {
	payload, err := json.Marshal(subscribePayload{GateId: gateID})
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: MessageSubscribe, Payload: payload})
}

// dispatch classifies one inbound frame and routes it to the matching
// callback. Malformed frames and unknown types are logged and dropped; the
// read loop must survive them.
func dispatch(frame []byte, cb Callbacks, logger *slog.Logger) {
	var envelope Envelope
	if err := json.Unmarshal(frame, &envelope); err != nil {
		logger.Warn("dropping malformed frame", "error", err)
		return
	}

	switch envelope.Type {
	case MessageZoneUpdate:
		var update model.ZoneUpdate
		if err := json.Unmarshal(envelope.Payload, &update); err != nil {
			logger.Warn("dropping bad zone-update payload", "error", err)
			return
		}
		if update.Id == "" {
			logger.Warn("dropping zone-update without id")
			return
		}
		if cb.OnZoneUpdate != nil {
			cb.OnZoneUpdate(update)
		}
	case MessageAdminUpdate:
		var update model.AdminUpdate
		if err := json.Unmarshal(envelope.Payload, &update); err != nil {
			logger.Warn("dropping bad admin-update payload", "error", err)
			return
		}
		if cb.OnAdminUpdate != nil {
			cb.OnAdminUpdate(update)
		}
	default:
		logger.Info("ignoring unknown message type", "type", envelope.Type)
	}
}
