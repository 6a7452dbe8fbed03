package service

import (
	"context"

	"github.com/duochat/internal/model"
)

// Store interfaces the services depend on; implemented by the repository
// package and by in-memory fakes in tests.

type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	ListAll(ctx context.Context, limit int) ([]model.User, error)
	SearchByUsername(ctx context.Context, query string, limit int) ([]model.User, error)
	UpdateProfile(ctx context.Context, userID, firstName, lastName, avatarURL, bio string) error
	SetStatus(ctx context.Context, userID string, status model.UserStatus) error
}

type ConversationStore interface {
	Ensure(ctx context.Context, c *model.Conversation) error
	ListForUser(ctx context.Context, userID string) ([]model.Conversation, error)
}

type MessageStore interface {
	Create(ctx context.Context, m *model.Message) error
	GetByConversation(ctx context.Context, conversationID string) ([]model.Message, error)
	GetLastMessage(ctx context.Context, conversationID string) (*model.Message, error)
	MarkRead(ctx context.Context, conversationID, readerID string) error
	CountUnread(ctx context.Context, ownerID, counterpartID string) (int, error)
	DeleteOwned(ctx context.Context, ids []string, userID string) (int64, error)
}

// ContentCipher is the reversible transform applied to message content before
// storage and after retrieval.
type ContentCipher interface {
	Encrypt(plaintext string) string
	Decrypt(ciphertext string) string
}
