package gateway

import (
	"testing"

	"github.com/stretchr/testify/require"

	"realtime-core/errors"
)

func TestParseFrame(t *testing.T) {
	req := require.New(t)

	// A well-formed envelope parses and keeps its raw payload
	frame, err := parseFrame([]byte(`{"type":"message","data":{"content":"hi","type":"text"}}`))
	req.NoError(err)
	req.Equal("message", frame.Type)
	req.JSONEq(`{"content":"hi","type":"text"}`, string(frame.Data))

	// Broken JSON and missing type are both malformed
	_, err = parseFrame([]byte(`{"type":`))
	req.ErrorIs(err, errors.ErrMalformedFrame)
	_, err = parseFrame([]byte(`{"data":{}}`))
	req.ErrorIs(err, errors.ErrMalformedFrame)
}

func TestDecodeMessageFrame(t *testing.T) {
	req := require.New(t)

	frame, err := parseFrame([]byte(`{"type":"message","data":{"content":"hello","type":"image"}}`))
	req.NoError(err)
	payload, err := decodePayload[MessageFrame](frame)
	req.NoError(err)
	req.Equal("hello", payload.Content)
	req.Equal("image", payload.Type)

	// Empty content and unknown message types fail validation
	frame, _ = parseFrame([]byte(`{"type":"message","data":{"content":"","type":"text"}}`))
	_, err = decodePayload[MessageFrame](frame)
	req.ErrorIs(err, errors.ErrMalformedFrame)

	frame, _ = parseFrame([]byte(`{"type":"message","data":{"content":"hi","type":"carrier-pigeon"}}`))
	_, err = decodePayload[MessageFrame](frame)
	req.ErrorIs(err, errors.ErrMalformedFrame)
}

func TestDecodePresenceFrame(t *testing.T) {
	req := require.New(t)

	frame, _ := parseFrame([]byte(`{"type":"presence","data":{"status":"away","device":"mobile"}}`))
	payload, err := decodePayload[PresenceFrame](frame)
	req.NoError(err)
	req.Equal("away", payload.Status)
	req.Equal("mobile", payload.Device)

	// Only the three known statuses are accepted
	frame, _ = parseFrame([]byte(`{"type":"presence","data":{"status":"invisible"}}`))
	_, err = decodePayload[PresenceFrame](frame)
	req.ErrorIs(err, errors.ErrMalformedFrame)
}

func TestDecodeTypingFrame(t *testing.T) {
	req := require.New(t)

	frame, _ := parseFrame([]byte(`{"type":"typing","data":{"is_typing":true,"conversation_id":"c1"}}`))
	payload, err := decodePayload[TypingFrame](frame)
	req.NoError(err)
	req.True(payload.IsTyping)
	req.Equal("c1", payload.ConversationID)

	// The conversation id is optional at this layer
	frame, _ = parseFrame([]byte(`{"type":"typing","data":{"is_typing":false}}`))
	payload, err = decodePayload[TypingFrame](frame)
	req.NoError(err)
	req.False(payload.IsTyping)
	req.Empty(payload.ConversationID)
}
