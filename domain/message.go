// Package domain contains core concepts of the real-time coordination core.
// This file defines Message, the unit handed to subscribers and to the
// persistence collaborator. Messages are immutable once built.
package domain

import (
	"time"

	"github.com/google/uuid"
)

type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeImage MessageType = "image"
	MessageTypeFile  MessageType = "file"
)

// Message represents one chat message flowing through a conversation.
// The id and timestamp are generated server side at publish time so every
// subscriber and the archive see the same values.
type Message struct {
	ID             uuid.UUID
	ConversationID string
	SenderID       string
	Content        string
	Type           MessageType
	CreatedAt      time.Time
}

func NewMessage(conversationID, senderID, content string, msgType MessageType, at time.Time) Message {
	return Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		Type:           msgType,
		CreatedAt:      at,
	}
}
