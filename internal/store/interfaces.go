package store

import (
	"context"

	"chat-server/internal/models"

	"github.com/google/uuid"
)

// Conversation selects the messages of one channel: a group room when IsGroup
// is set, otherwise every message exchanged between UserA and UserB in either
// direction.
type Conversation struct {
	IsGroup bool
	RoomID  string
	UserA   string
	UserB   string
}

func GroupConversation(roomID string) Conversation {
	return Conversation{IsGroup: true, RoomID: roomID}
}

func DirectConversation(userA, userB string) Conversation {
	return Conversation{UserA: userA, UserB: userB}
}

type MessageStore interface {
	Create(ctx context.Context, msg *models.Message) error
	FindUnreadIDs(ctx context.Context, conv Conversation, userID string) ([]uuid.UUID, error)
	// AddToReadBy marks messages read by userID and reports how many rows
	// actually changed. The add is a set operation: applying it twice, or
	// concurrently from two sessions of the same identity, never produces a
	// duplicate entry.
	AddToReadBy(ctx context.Context, ids []uuid.UUID, userID string) (int64, error)
	CountByConversation(ctx context.Context, conv Conversation) (int, error)
	ListByConversation(ctx context.Context, conv Conversation, page, limit int) ([]*models.Message, error)
}

type UserDirectory interface {
	SetOnline(ctx context.Context, userID string, online bool) error
	FindByUsername(ctx context.Context, search string, page, limit int) ([]*models.User, error)
}

type Store interface {
	MessageStore
	UserDirectory
	Close() error
}
