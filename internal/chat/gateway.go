package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"chat-server/internal/auth"
	"chat-server/internal/config"
	"chat-server/internal/models"
	"chat-server/internal/store"
	"chat-server/pkg/logger"

	"github.com/gorilla/websocket"
)

// Gateway owns the connection lifecycle: it authenticates handshakes, wires
// sessions into the room registry and presence tracker, dispatches client
// events, and tears everything down on disconnect. It is the only component
// that mutates the session set; everything else works on session handles
// passed to it.
//
// Join and send targets are trusted as supplied by the client; there is no
// check that the identity is a participant of the target conversation.
type Gateway struct {
	cfg      *config.Config
	auth     *auth.Service
	messages store.MessageStore
	users    store.UserDirectory
	rooms    *RoomRegistry
	presence *PresenceTracker
	// sendOrder serializes senders to the same room from persist through
	// fan-out, so per-room delivery order matches the order in which the
	// store acknowledged the writes.
	sendOrder *keyedMutex
	upgrader  websocket.Upgrader

	mu       sync.Mutex
	sessions map[*Session]struct{}
}

func NewGateway(cfg *config.Config, authService *auth.Service, messages store.MessageStore, users store.UserDirectory) *Gateway {
	return &Gateway{
		cfg:       cfg,
		auth:      authService,
		messages:  messages,
		users:     users,
		rooms:     NewRoomRegistry(),
		presence:  NewPresenceTracker(),
		sendOrder: newKeyedMutex(),
		sessions:  make(map[*Session]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // Configure for production
		},
	}
}

// HandleWebSocket authenticates the handshake and upgrades the connection. No
// session state exists until the token has been verified.
func (g *Gateway) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, ErrMissingToken.Error(), http.StatusUnauthorized)
		return
	}

	identity, err := g.auth.IdentityFromToken(tokenStr)
	if err != nil {
		logger.Error("Token verification failed: %v", err)
		http.Error(w, ErrInvalidToken.Error(), http.StatusUnauthorized)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Upgrade error: %v", err)
		return
	}

	s := newSession(g, conn, *identity)
	g.register(s)

	go s.writePump()
	go s.readPump()
}

func (g *Gateway) register(s *Session) {
	g.mu.Lock()
	g.sessions[s] = struct{}{}
	g.mu.Unlock()

	logger.Info("User connected: %s - %s", s.Identity.ID, s.Identity.Username)

	if g.presence.Connect(s.Identity.ID) {
		if err := g.users.SetOnline(context.Background(), s.Identity.ID, true); err != nil {
			logger.Error("Failed to persist online flag for %s: %v", s.Identity.ID, err)
		}
		g.broadcastAll(EventUserOnline, PresencePayload{UserID: s.Identity.ID})
	}
}

// drop releases everything the session holds: its room memberships, its
// presence count, and its slot in the session set. Safe to call more than
// once; cleanup runs regardless of any in-flight operation's outcome.
func (g *Gateway) drop(s *Session) {
	g.mu.Lock()
	if _, ok := g.sessions[s]; !ok {
		g.mu.Unlock()
		return
	}
	delete(g.sessions, s)
	g.mu.Unlock()

	s.close()
	for _, key := range s.joinedRooms() {
		g.rooms.Leave(s, key)
	}

	if g.presence.Disconnect(s.Identity.ID) {
		if err := g.users.SetOnline(context.Background(), s.Identity.ID, false); err != nil {
			logger.Error("Failed to persist offline flag for %s: %v", s.Identity.ID, err)
		}
		g.broadcastAll(EventUserOffline, PresencePayload{UserID: s.Identity.ID})
	}

	logger.Info("User disconnected: %s", s.Identity.ID)
}

func (g *Gateway) handleEvent(s *Session, raw []byte) {
	var evt ClientEvent
	if err := json.Unmarshal(raw, &evt); err != nil {
		g.emit(s, EventError, ErrorPayload{Msg: "malformed event"})
		return
	}

	var err error
	switch evt.Event {
	case EventJoinChat:
		err = g.handleJoin(s, evt.Data)
	case EventSend:
		err = g.handleSend(s, evt.Data)
	case EventTyping:
		err = g.handleTyping(s, evt.Data)
	case EventMarkRead:
		err = g.handleMarkRead(s, evt.Data)
	default:
		err = fmt.Errorf("unknown event %q", evt.Event)
	}

	// A failed handler never takes the connection down; the requester gets
	// an error event and everyone else is unaffected.
	if err != nil {
		logger.Error("Event %s from user %s failed: %v", evt.Event, s.Identity.ID, err)
		g.emit(s, EventError, ErrorPayload{Msg: err.Error()})
	}
}

func (g *Gateway) handleJoin(s *Session, data json.RawMessage) error {
	var p JoinPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("malformed joinChat payload: %w", err)
	}
	if p.ChatID == "" {
		return ErrMissingTarget
	}

	g.rooms.Join(s, g.roomKeyFor(s.Identity.ID, p.ChatID, p.IsGroup))
	return nil
}

func (g *Gateway) handleSend(s *Session, data json.RawMessage) error {
	var p SendPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("malformed sendMessage payload: %w", err)
	}
	if p.Content == "" {
		return ErrEmptyContent
	}

	target := p.ReceiverID
	if p.IsGroup {
		target = p.ChatRoomID
	}
	if target == "" {
		return ErrMissingTarget
	}

	msg := &models.Message{
		Sender:  s.Identity.ID,
		Content: p.Content,
		IsGroup: p.IsGroup,
	}
	if p.IsGroup {
		msg.ChatRoom = target
	} else {
		msg.Receiver = target
	}

	key := g.roomKeyFor(s.Identity.ID, target, p.IsGroup)

	// Senders to the same room are serialized from persist through fan-out;
	// members receive messages in the order the store acknowledged them.
	g.sendOrder.lock(key)
	defer g.sendOrder.unlock(key)

	// Nothing is fanned out until the store has acknowledged the write; a
	// failed persist is reported to the sender only.
	if err := g.messages.Create(context.Background(), msg); err != nil {
		logger.Error("Failed to persist message from %s: %v", s.Identity.ID, err)
		return ErrSendFailed
	}

	g.broadcastRoom(key, EventReceiveMessage, OutboundMessage{
		Message:    *msg,
		SenderName: s.Identity.Username,
	}, nil)
	return nil
}

func (g *Gateway) handleTyping(s *Session, data json.RawMessage) error {
	var p TypingPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("malformed typing payload: %w", err)
	}
	if p.ChatID == "" {
		return ErrMissingTarget
	}

	key := g.roomKeyFor(s.Identity.ID, p.ChatID, p.IsGroup)
	g.broadcastRoom(key, EventUserTyping, TypingNotice{UserID: s.Identity.ID}, s)
	return nil
}

func (g *Gateway) handleMarkRead(s *Session, data json.RawMessage) error {
	var p MarkReadPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("malformed markMessagesRead payload: %w", err)
	}
	if p.ChatID == "" || p.IsGroup == nil {
		return ErrMissingTarget
	}

	userID := s.Identity.ID
	var conv store.Conversation
	if *p.IsGroup {
		conv = store.GroupConversation(p.ChatID)
	} else {
		conv = store.DirectConversation(userID, p.ChatID)
	}

	ctx := context.Background()
	ids, err := g.messages.FindUnreadIDs(ctx, conv, userID)
	if err != nil {
		logger.Error("Failed to look up unread messages for %s: %v", userID, err)
		return ErrMarkReadFailed
	}
	if len(ids) == 0 {
		g.emit(s, EventMessagesRead, MessagesReadPayload{ChatID: p.ChatID, Count: 0})
		return nil
	}

	count, err := g.messages.AddToReadBy(ctx, ids, userID)
	if err != nil {
		logger.Error("Failed to mark messages read for %s: %v", userID, err)
		return ErrMarkReadFailed
	}
	if count == 0 {
		// A concurrent call for the same identity got there first.
		g.emit(s, EventMessagesRead, MessagesReadPayload{ChatID: p.ChatID, Count: 0})
		return nil
	}

	key := g.roomKeyFor(userID, p.ChatID, *p.IsGroup)
	g.broadcastRoom(key, EventMessagesRead, MessagesReadPayload{
		ChatID: p.ChatID,
		UserID: userID,
		Count:  count,
	}, nil)

	// Direct ack as well, so the requester hears back even if it left the
	// room between request and broadcast.
	g.emit(s, EventMessagesRead, MessagesReadPayload{ChatID: p.ChatID, Count: count})
	return nil
}

func (g *Gateway) roomKeyFor(userID, chatID string, isGroup bool) string {
	if isGroup {
		return GroupRoomKey(chatID)
	}
	return RoomKey(userID, chatID)
}

func (g *Gateway) emit(s *Session, event string, payload interface{}) {
	data, err := json.Marshal(ServerEvent{Event: event, Data: payload})
	if err != nil {
		logger.Error("Error marshaling %s event: %v", event, err)
		return
	}
	if !s.enqueue(data) {
		g.evictSlow([]*Session{s})
	}
}

func (g *Gateway) broadcastRoom(key, event string, payload interface{}, except *Session) {
	data, err := json.Marshal(ServerEvent{Event: event, Data: payload})
	if err != nil {
		logger.Error("Error marshaling %s event: %v", event, err)
		return
	}
	g.evictSlow(g.rooms.Broadcast(key, data, except))
}

func (g *Gateway) broadcastAll(event string, payload interface{}) {
	data, err := json.Marshal(ServerEvent{Event: event, Data: payload})
	if err != nil {
		logger.Error("Error marshaling %s event: %v", event, err)
		return
	}

	g.mu.Lock()
	targets := make([]*Session, 0, len(g.sessions))
	for s := range g.sessions {
		targets = append(targets, s)
	}
	g.mu.Unlock()

	var slow []*Session
	for _, s := range targets {
		if !s.enqueue(data) {
			slow = append(slow, s)
		}
	}
	g.evictSlow(slow)
}

func (g *Gateway) evictSlow(slow []*Session) {
	for _, s := range slow {
		logger.Error("Dropping slow consumer %s (user %s)", s.ID, s.Identity.ID)
		go g.drop(s)
	}
}
