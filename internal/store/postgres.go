package store

import (
	"context"
	"fmt"

	"chat-server/internal/models"
	"chat-server/pkg/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(context.Background(), databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Connected to database successfully")
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// conversationFilter builds the WHERE fragment selecting one conversation's
// messages. Placeholders start at $1; callers appending conditions continue
// from len(args)+1.
func conversationFilter(conv Conversation) (string, []interface{}) {
	if conv.IsGroup {
		return "is_group = true AND chat_room_id = $1", []interface{}{conv.RoomID}
	}
	where := `is_group = false AND ((sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1))`
	return where, []interface{}{conv.UserA, conv.UserB}
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// Message Store Implementation

func (s *PostgresStore) Create(ctx context.Context, msg *models.Message) error {
	msg.ID = uuid.New()
	if msg.ReadBy == nil {
		msg.ReadBy = []string{}
	}

	query := `
		INSERT INTO messages (id, sender_id, content, chat_room_id, receiver_id, is_group, read_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING created_at`

	err := s.pool.QueryRow(ctx, query,
		msg.ID, msg.Sender, msg.Content,
		nullable(msg.ChatRoom), nullable(msg.Receiver),
		msg.IsGroup, msg.ReadBy,
	).Scan(&msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}

	return nil
}

func (s *PostgresStore) FindUnreadIDs(ctx context.Context, conv Conversation, userID string) ([]uuid.UUID, error) {
	where, args := conversationFilter(conv)
	query := fmt.Sprintf(
		`SELECT id FROM messages WHERE %s AND NOT (read_by @> ARRAY[$%d::text])`,
		where, len(args)+1,
	)
	args = append(args, userID)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// AddToReadBy appends userID to read_by for every listed message that does not
// already contain it. The containment check and the append happen in one
// statement, so concurrent calls for the same identity cannot double-add.
func (s *PostgresStore) AddToReadBy(ctx context.Context, ids []uuid.UUID, userID string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query := `
		UPDATE messages SET read_by = array_append(read_by, $2)
		WHERE id = ANY($1) AND NOT (read_by @> ARRAY[$2::text])`

	tag, err := s.pool.Exec(ctx, query, ids, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark messages read: %w", err)
	}

	return tag.RowsAffected(), nil
}

func (s *PostgresStore) CountByConversation(ctx context.Context, conv Conversation) (int, error) {
	where, args := conversationFilter(conv)
	query := fmt.Sprintf(`SELECT COUNT(*) FROM messages WHERE %s`, where)

	var count int
	err := s.pool.QueryRow(ctx, query, args...).Scan(&count)
	return count, err
}

func (s *PostgresStore) ListByConversation(ctx context.Context, conv Conversation, page, limit int) ([]*models.Message, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	where, args := conversationFilter(conv)
	query := fmt.Sprintf(`
		SELECT id, sender_id, content, COALESCE(chat_room_id, ''), COALESCE(receiver_id, ''), is_group, read_by, created_at
		FROM messages
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		where, len(args)+1, len(args)+2,
	)
	args = append(args, limit, (page-1)*limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		msg := &models.Message{}
		if err := rows.Scan(&msg.ID, &msg.Sender, &msg.Content, &msg.ChatRoom, &msg.Receiver, &msg.IsGroup, &msg.ReadBy, &msg.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

// User Directory Implementation

func (s *PostgresStore) SetOnline(ctx context.Context, userID string, online bool) error {
	query := `UPDATE users SET online = $2 WHERE id = $1`
	_, err := s.pool.Exec(ctx, query, userID, online)
	return err
}

func (s *PostgresStore) FindByUsername(ctx context.Context, search string, page, limit int) ([]*models.User, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, username, email, online, created_at
		FROM users
		WHERE ($1 = '' OR username ILIKE '%' || $1 || '%')
		ORDER BY online DESC, username
		LIMIT $2 OFFSET $3`

	rows, err := s.pool.Query(ctx, query, search, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user := &models.User{}
		if err := rows.Scan(&user.ID, &user.Username, &user.Email, &user.Online, &user.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	return users, rows.Err()
}
