package chat

import (
	"sync"
	"time"

	"chat-server/internal/models"
	"chat-server/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Session binds one verified identity to one transport connection. An identity
// may own any number of concurrent sessions (devices, tabs); each gets its own
// outbound queue and joined-room set.
type Session struct {
	ID       string
	Identity models.Identity

	gateway *Gateway
	conn    *websocket.Conn
	send    chan []byte
	done    chan struct{}
	once    sync.Once

	mu    sync.Mutex
	rooms map[string]struct{}
}

func newSession(g *Gateway, conn *websocket.Conn, identity models.Identity) *Session {
	return &Session{
		ID:       uuid.NewString(),
		Identity: identity,
		gateway:  g,
		conn:     conn,
		send:     make(chan []byte, g.cfg.Chat.SendBuffer),
		done:     make(chan struct{}),
		rooms:    make(map[string]struct{}),
	}
}

// enqueue queues data for delivery without blocking. A closed session swallows
// the write (in-flight fan-out to a disconnecting session is dropped, not an
// error); a full queue reports false so the caller can evict the slow
// consumer.
func (s *Session) enqueue(data []byte) bool {
	select {
	case <-s.done:
		return true
	default:
	}

	select {
	case s.send <- data:
		return true
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *Session) close() {
	s.once.Do(func() { close(s.done) })
}

func (s *Session) trackRoom(key string) {
	s.mu.Lock()
	s.rooms[key] = struct{}{}
	s.mu.Unlock()
}

func (s *Session) untrackRoom(key string) {
	s.mu.Lock()
	delete(s.rooms, key)
	s.mu.Unlock()
}

func (s *Session) joinedRooms() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.rooms))
	for key := range s.rooms {
		keys = append(keys, key)
	}
	return keys
}

func (s *Session) readPump() {
	defer func() {
		s.gateway.drop(s)
		s.conn.Close()
	}()

	// Read deadline and pong handler for connection health
	s.conn.SetReadDeadline(time.Now().Add(s.gateway.cfg.Chat.PongTimeout))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(s.gateway.cfg.Chat.PongTimeout))
		return nil
	})

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Error("WebSocket error for user %s: %v", s.Identity.ID, err)
			}
			break
		}

		s.gateway.handleEvent(s, message)
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(s.gateway.cfg.Chat.PingInterval)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case msg := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Error("Write error for user %s: %v", s.Identity.ID, err)
				return
			}

		case <-s.done:
			s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			s.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
