package chat

import (
	"encoding/json"

	"chat-server/internal/models"
)

// Client -> server events
const (
	EventJoinChat = "joinChat"
	EventSend     = "sendMessage"
	EventTyping   = "typing"
	EventMarkRead = "markMessagesRead"
)

// Server -> client events
const (
	EventUserOnline     = "userOnline"
	EventUserOffline    = "userOffline"
	EventReceiveMessage = "receiveMessage"
	EventUserTyping     = "userTyping"
	EventMessagesRead   = "messagesRead"
	EventError          = "error"
)

// ClientEvent is the inbound envelope: a named event plus its raw payload,
// decoded per event type by the gateway.
type ClientEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type ServerEvent struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type JoinPayload struct {
	ChatID  string `json:"chatId"`
	IsGroup bool   `json:"isGroup"`
}

type SendPayload struct {
	Content    string `json:"content"`
	ReceiverID string `json:"receiverId,omitempty"`
	ChatRoomID string `json:"chatRoomId,omitempty"`
	IsGroup    bool   `json:"isGroup"`
}

type TypingPayload struct {
	ChatID  string `json:"chatId"`
	IsGroup bool   `json:"isGroup"`
}

type MarkReadPayload struct {
	ChatID  string `json:"chatId"`
	IsGroup *bool  `json:"isGroup"`
}

type PresencePayload struct {
	UserID string `json:"userId"`
}

// OutboundMessage is a persisted message augmented with the sender's display
// name for fan-out.
type OutboundMessage struct {
	models.Message
	SenderName string `json:"senderName"`
}

type TypingNotice struct {
	UserID string `json:"userId"`
}

type MessagesReadPayload struct {
	ChatID string `json:"chatId"`
	UserID string `json:"userId,omitempty"`
	Count  int64  `json:"count"`
}

type ErrorPayload struct {
	Msg string `json:"msg"`
}
