package models

import (
	"time"

	"github.com/google/uuid"
)

// Message is a persisted chat message. Exactly one of ChatRoom and Receiver is
// set: ChatRoom for group conversations, Receiver for one-to-one ones.
// Messages never change after creation except for ReadBy, which only ever
// gains identities.
type Message struct {
	ID        uuid.UUID `json:"id"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	ChatRoom  string    `json:"chatRoom,omitempty"`
	Receiver  string    `json:"receiver,omitempty"`
	IsGroup   bool      `json:"isGroup"`
	ReadBy    []string  `json:"readBy"`
	CreatedAt time.Time `json:"createdAt"`
}
