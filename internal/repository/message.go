package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/duochat/internal/logger"
	"github.com/duochat/internal/model"
)

const messageCols = `m.id, m.conversation_id, m.sender_id, m.receiver_id, m.content, m.is_read, m.created_at, m.updated_at,
		        u.id, u.username, COALESCE(u.first_name,''), COALESCE(u.last_name,''), COALESCE(u.avatar_url,''), u.status`

type MessageRepository struct {
	pool *pgxpool.Pool
}

func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

func scanMessage(s interface{ Scan(dest ...any) error }) (*model.Message, error) {
	m := &model.Message{}
	sender := &model.UserPublic{}
	err := s.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.ReceiverID, &m.Content, &m.IsRead, &m.CreatedAt, &m.UpdatedAt,
		&sender.ID, &sender.Username, &sender.FirstName, &sender.LastName, &sender.AvatarURL, &sender.Status)
	if err != nil {
		return nil, err
	}
	m.Sender = sender
	return m, nil
}

func (r *MessageRepository) Create(ctx context.Context, m *model.Message) error {
	defer logger.DeferLogDuration("msg.Create", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO messages (id, conversation_id, sender_id, receiver_id, content, is_read, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		m.ID, m.ConversationID, m.SenderID, m.ReceiverID, m.Content, m.IsRead, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("msgRepo.Create: %w", err)
	}
	return nil
}

// GetByConversation returns all messages of a conversation, oldest first
// (creation time is the sort key), with the sender profile joined in.
// A conversation with no rows yields an empty slice, not an error.
func (r *MessageRepository) GetByConversation(ctx context.Context, conversationID string) ([]model.Message, error) {
	defer logger.DeferLogDuration("msg.GetByConversation", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT `+messageCols+`
		 FROM messages m
		 JOIN users u ON u.id = m.sender_id
		 WHERE m.conversation_id = $1
		 ORDER BY m.created_at ASC`, conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("msgRepo.GetByConversation query: %w", err)
	}
	defer rows.Close()

	messages := make([]model.Message, 0, 32)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("msgRepo.GetByConversation scan: %w", err)
		}
		messages = append(messages, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("msgRepo.GetByConversation rows: %w", err)
	}
	return messages, nil
}

// GetLastMessage returns the newest message of a conversation, or nil when
// the conversation has none.
func (r *MessageRepository) GetLastMessage(ctx context.Context, conversationID string) (*model.Message, error) {
	defer logger.DeferLogDuration("msg.GetLastMessage", time.Now())()
	row := r.pool.QueryRow(ctx,
		`SELECT `+messageCols+`
		 FROM messages m
		 JOIN users u ON u.id = m.sender_id
		 WHERE m.conversation_id = $1
		 ORDER BY m.created_at DESC
		 LIMIT 1`, conversationID,
	)
	m, err := scanMessage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("msgRepo.GetLastMessage: %w", err)
	}
	return m, nil
}

// MarkRead flags every message in the conversation not sent by readerID as
// read. Idempotent: re-running matches zero rows.
func (r *MessageRepository) MarkRead(ctx context.Context, conversationID, readerID string) error {
	defer logger.DeferLogDuration("msg.MarkRead", time.Now())()
	_, err := r.pool.Exec(ctx,
		`UPDATE messages SET is_read = true, updated_at = $3
		 WHERE conversation_id = $1 AND sender_id != $2 AND is_read = false`,
		conversationID, readerID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("msgRepo.MarkRead: %w", err)
	}
	return nil
}

// CountUnread counts messages sent by counterpartID to ownerID that ownerID
// has not read yet.
func (r *MessageRepository) CountUnread(ctx context.Context, ownerID, counterpartID string) (int, error) {
	defer logger.DeferLogDuration("msg.CountUnread", time.Now())()
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM messages
		 WHERE sender_id = $1 AND receiver_id = $2 AND is_read = false`,
		counterpartID, ownerID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("msgRepo.CountUnread: %w", err)
	}
	return count, nil
}

// DeleteOwned deletes the given message ids, but only rows where userID is
// the sender or the receiver. Ids that don't match the predicate (or don't
// exist) are skipped silently; the returned count is what was actually
// removed.
func (r *MessageRepository) DeleteOwned(ctx context.Context, ids []string, userID string) (int64, error) {
	defer logger.DeferLogDuration("msg.DeleteOwned", time.Now())()
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM messages
		 WHERE id = ANY($1) AND (sender_id = $2 OR receiver_id = $2)`,
		ids, userID,
	)
	if err != nil {
		return 0, fmt.Errorf("msgRepo.DeleteOwned: %w", err)
	}
	return tag.RowsAffected(), nil
}
