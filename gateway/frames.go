package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"realtime-core/errors"
)

var validate = validator.New()

// Inbound frame types a subscriber may send over its socket.
const (
	frameMessage  = "message"
	frameTyping   = "typing"
	framePresence = "presence"
	framePong     = "pong"
)

// Frame is the inbound counterpart of the outbound {type, data} envelope.
type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type MessageFrame struct {
	Content string `json:"content" validate:"required,max=4000"`
	Type    string `json:"type" validate:"required,oneof=text image file"`
}

type TypingFrame struct {
	IsTyping bool `json:"is_typing"`
	// Required on the presence socket, implied by the route on a room socket.
	ConversationID string `json:"conversation_id,omitempty" validate:"omitempty,max=128"`
}

type PresenceFrame struct {
	Status             string `json:"status" validate:"required,oneof=online away offline"`
	Device             string `json:"device,omitempty" validate:"omitempty,max=120"`
	ActiveConversation string `json:"active_conversation,omitempty" validate:"omitempty,max=128"`
}

func parseFrame(data []byte) (Frame, error) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", errors.ErrMalformedFrame, err)
	}
	if frame.Type == "" {
		return Frame{}, fmt.Errorf("%w: missing type", errors.ErrMalformedFrame)
	}
	return frame, nil
}

func decodePayload[T any](frame Frame) (T, error) {
	var payload T
	if err := json.Unmarshal(frame.Data, &payload); err != nil {
		return payload, fmt.Errorf("%w: %v", errors.ErrMalformedFrame, err)
	}
	if err := validate.Struct(&payload); err != nil {
		return payload, fmt.Errorf("%w: %v", errors.ErrMalformedFrame, err)
	}
	return payload, nil
}
