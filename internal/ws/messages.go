package ws

import (
	"encoding/json"

	"cardroom/internal/domain"
)

const (
	// server -> client frame types
	MsgEvent    = "event"
	MsgSnapshot = "snapshot"
	MsgError    = "error"
	MsgWelcome  = "welcome"
)

// Message is the outbound wire frame. Inbound frames are decoded directly as
// action envelopes by domain.DecodeAction.
type Message struct {
	Type    string          `json:"type"`
	Kind    string          `json:"kind,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ErrorPayload reports a rejected action or protocol problem to one client.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WelcomePayload confirms registration on a room channel.
type WelcomePayload struct {
	RoomID   string `json:"room_id"`
	PlayerID string `json:"player_id"`
	Version  int64  `json:"version"`
}

// SnapshotPayload carries a full redacted state for resync.
type SnapshotPayload struct {
	State   *domain.GameState `json:"state"`
	Version int64             `json:"version"`
}

func encodeFrame(typ, kind string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{Type: typ, Kind: kind, Payload: raw})
}

// encodeEvent renders an event for one recipient, applying redaction.
func encodeEvent(ev domain.Event, viewerID string) ([]byte, error) {
	return encodeFrame(MsgEvent, string(ev.Kind()), ev.RedactFor(viewerID))
}

func encodeError(code, message string) []byte {
	raw, _ := encodeFrame(MsgError, "", ErrorPayload{Code: code, Message: message})
	return raw
}

func encodeSnapshot(state *domain.GameState) ([]byte, error) {
	return encodeFrame(MsgSnapshot, "", SnapshotPayload{State: state, Version: state.Version})
}
