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

type ConversationRepository struct {
	pool *pgxpool.Pool
}

func NewConversationRepository(pool *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{pool: pool}
}

// Ensure creates the conversation row if it does not exist yet. Threads are
// created lazily at first message, so concurrent first sends must not race:
// ON CONFLICT DO NOTHING makes Ensure idempotent.
func (r *ConversationRepository) Ensure(ctx context.Context, c *model.Conversation) error {
	defer logger.DeferLogDuration("conv.Ensure", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO conversations (id, user_a, user_b, created_at)
		 VALUES ($1, $2, $3, $4) ON CONFLICT (id) DO NOTHING`,
		c.ID, c.UserA, c.UserB, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("convRepo.Ensure: %w", err)
	}
	return nil
}

func (r *ConversationRepository) GetByID(ctx context.Context, id string) (*model.Conversation, error) {
	defer logger.DeferLogDuration("conv.GetByID", time.Now())()
	c := &model.Conversation{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, user_a, user_b, created_at FROM conversations WHERE id = $1`, id,
	).Scan(&c.ID, &c.UserA, &c.UserB, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("convRepo.GetByID: %w", err)
	}
	return c, nil
}

// ListForUser returns the user's conversations that still hold at least one
// message. Threads whose messages were all deleted are filtered out here so
// the aggregator never surfaces a counterparty with zero shared messages.
func (r *ConversationRepository) ListForUser(ctx context.Context, userID string) ([]model.Conversation, error) {
	defer logger.DeferLogDuration("conv.ListForUser", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT c.id, c.user_a, c.user_b, c.created_at
		 FROM conversations c
		 WHERE (c.user_a = $1 OR c.user_b = $1)
		   AND EXISTS (SELECT 1 FROM messages m WHERE m.conversation_id = c.id)`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("convRepo.ListForUser query: %w", err)
	}
	defer rows.Close()

	convs := make([]model.Conversation, 0, 16)
	for rows.Next() {
		var c model.Conversation
		if err := rows.Scan(&c.ID, &c.UserA, &c.UserB, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("convRepo.ListForUser scan: %w", err)
		}
		convs = append(convs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("convRepo.ListForUser rows: %w", err)
	}
	return convs, nil
}
