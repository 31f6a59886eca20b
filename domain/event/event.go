// Package event defines the outbound wire events a coordinator broadcasts
// to its subscribers: a discriminated {type, data} JSON union.
package event

import (
	"encoding/json"
	"time"

	"github.com/samber/lo"

	"realtime-core/domain"
)

type Type string

const (
	TypeMessage          Type = "message"
	TypeTypingStart      Type = "typing_start"
	TypeTypingStop       Type = "typing_stop"
	TypePresenceUpdate   Type = "presence_update"
	TypePresenceSnapshot Type = "presence_state_snapshot"
	TypePing             Type = "ping"
)

// Outbound is the envelope every subscriber receives. Events are always
// broadcast except the snapshot, which is unicast to a new subscriber.
type Outbound struct {
	Type Type `json:"type"`
	Data any  `json:"data,omitempty"`
}

// Encode serializes the envelope once, so a broadcast marshals a single
// time regardless of the number of recipients.
func (o Outbound) Encode() ([]byte, error) {
	return json.Marshal(o)
}

type MessagePayload struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Content        string    `json:"content"`
	Type           string    `json:"type"`
	CreatedAt      time.Time `json:"created_at"`
}

type TypingPayload struct {
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id"`
}

type PresencePayload struct {
	UserID             string    `json:"user_id"`
	Status             string    `json:"status"`
	LastActivity       time.Time `json:"last_activity"`
	Device             string    `json:"device,omitempty"`
	ActiveConversation string    `json:"active_conversation,omitempty"`
	TypingIn           string    `json:"typing_in,omitempty"`
}

type SnapshotPayload struct {
	Users  []PresencePayload `json:"users"`
	Typing []TypingPayload   `json:"typing"`
}

func NewMessage(message domain.Message) Outbound {
	return Outbound{
		Type: TypeMessage,
		Data: MessagePayload{
			ID:             message.ID.String(),
			ConversationID: message.ConversationID,
			SenderID:       message.SenderID,
			Content:        message.Content,
			Type:           string(message.Type),
			CreatedAt:      message.CreatedAt,
		},
	}
}

func NewTypingStart(userID, conversationID string) Outbound {
	return Outbound{
		Type: TypeTypingStart,
		Data: TypingPayload{UserID: userID, ConversationID: conversationID},
	}
}

func NewTypingStop(userID, conversationID string) Outbound {
	return Outbound{
		Type: TypeTypingStop,
		Data: TypingPayload{UserID: userID, ConversationID: conversationID},
	}
}

func NewPresenceUpdate(presence domain.UserPresence) Outbound {
	return Outbound{
		Type: TypePresenceUpdate,
		Data: toPresencePayload(presence),
	}
}

func NewPresenceSnapshot(users []domain.UserPresence, typing []domain.TypingIndicator) Outbound {
	return Outbound{
		Type: TypePresenceSnapshot,
		Data: SnapshotPayload{
			Users: lo.Map(users, func(item domain.UserPresence, _ int) PresencePayload {
				return toPresencePayload(item)
			}),
			Typing: lo.Map(typing, func(item domain.TypingIndicator, _ int) TypingPayload {
				return TypingPayload{UserID: item.UserID, ConversationID: item.ConversationID}
			}),
		},
	}
}

func toPresencePayload(presence domain.UserPresence) PresencePayload {
	return PresencePayload{
		UserID:             presence.UserID,
		Status:             string(presence.Status),
		LastActivity:       presence.LastActivity,
		Device:             presence.Device,
		ActiveConversation: presence.ActiveConversation,
		TypingIn:           presence.TypingIn,
	}
}
