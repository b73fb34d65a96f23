package websocket

import (
	"encoding/json"
	"errors"

	"github.com/go-playground/validator/v10"

	"archsync-backend/application/ports"
)

var errEmptyBroadcast = errors.New("broadcast message without payload")

// Message types exchanged between relay and participants.
const (
	TypeFirstInRoom           = "first-in-room"
	TypeNewParticipant        = "new-participant"
	TypeParticipantSetChanged = "participant-set-changed"
	TypeBroadcast             = "broadcast"
)

// Message is the wire envelope. Join is implicit in the connection; every
// other room signal travels as one of these.
type Message struct {
	Type           string                 `json:"type" validate:"required,oneof=first-in-room new-participant participant-set-changed broadcast"`
	Participant    *ports.Participant     `json:"participant,omitempty"`
	ParticipantIDs []string               `json:"participantIds,omitempty"`
	Payload        *ports.SnapshotPayload `json:"payload,omitempty"`
}

var validate = validator.New()

// DecodeMessage parses and validates a wire message.
func DecodeMessage(data []byte) (*Message, error) {
	msg := &Message{}
	if err := json.Unmarshal(data, msg); err != nil {
		return nil, err
	}
	if err := validate.Struct(msg); err != nil {
		return nil, err
	}
	if msg.Type == TypeBroadcast {
		if msg.Payload == nil {
			return nil, errEmptyBroadcast
		}
		if err := validate.Struct(msg.Payload); err != nil {
			return nil, err
		}
	}
	return msg, nil
}

// EncodeMessage serializes a wire message.
func EncodeMessage(msg *Message) ([]byte, error) {
	return json.Marshal(msg)
}
