package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/duochat/internal/logger"
	"github.com/duochat/internal/model"
	"github.com/duochat/internal/repository"
)

// MessageService owns the persistence-and-fan-out path for message content:
// validation, encrypt-before-store, decrypt-after-load, read markers and the
// per-user conversation aggregation.
type MessageService struct {
	users  UserStore
	convs  ConversationStore
	msgs   MessageStore
	cipher ContentCipher
}

func NewMessageService(users UserStore, convs ConversationStore, msgs MessageStore, cipher ContentCipher) *MessageService {
	return &MessageService{users: users, convs: convs, msgs: msgs, cipher: cipher}
}

// CreateMessage derives the receiver from the conversation id, encrypts the
// content and persists the message. The returned message carries the
// decrypted content and the sender profile, ready to be echoed or broadcast.
func (s *MessageService) CreateMessage(ctx context.Context, conversationID, senderID, content string) (*model.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: content is required", ErrValidation)
	}
	receiverID, err := model.Counterpart(conversationID, senderID)
	if err != nil {
		return nil, fmt.Errorf("%w: conversation id must contain the sender and one counterparty", ErrValidation)
	}

	userA, userB, _ := model.SplitConversationID(conversationID)
	now := time.Now().UTC()
	if err := s.convs.Ensure(ctx, &model.Conversation{
		ID:        conversationID,
		UserA:     userA,
		UserB:     userB,
		CreatedAt: now,
	}); err != nil {
		return nil, err
	}

	m := &model.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		SenderID:       senderID,
		ReceiverID:     receiverID,
		Content:        s.cipher.Encrypt(content),
		IsRead:         false,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.msgs.Create(ctx, m); err != nil {
		return nil, err
	}

	m.Content = content
	if sender, err := s.users.GetByID(ctx, senderID); err != nil {
		logger.Errorf("message create: load sender %s: %v", senderID, err)
	} else {
		pub := sender.ToPublic()
		m.Sender = &pub
	}
	return m, nil
}

// GetMessages returns the conversation history oldest-first with content
// decrypted. The requester must be one of the two participants; an unknown
// (but well-formed) conversation id yields an empty history.
func (s *MessageService) GetMessages(ctx context.Context, conversationID, requesterID string) ([]model.Message, error) {
	if _, err := model.Counterpart(conversationID, requesterID); err != nil {
		if _, _, splitErr := model.SplitConversationID(conversationID); splitErr != nil {
			return nil, fmt.Errorf("%w: malformed conversation id", ErrValidation)
		}
		return nil, fmt.Errorf("%w: not a participant of this conversation", ErrForbidden)
	}
	messages, err := s.msgs.GetByConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	for i := range messages {
		messages[i].Content = s.cipher.Decrypt(messages[i].Content)
	}
	return messages, nil
}

// MarkRead marks everything the counterparty sent in this conversation as
// read by readerID. The reader must be one of the two participants. Safe to
// repeat.
func (s *MessageService) MarkRead(ctx context.Context, conversationID, readerID string) error {
	if _, err := model.Counterpart(conversationID, readerID); err != nil {
		if _, _, splitErr := model.SplitConversationID(conversationID); splitErr != nil {
			return fmt.Errorf("%w: malformed conversation id", ErrValidation)
		}
		return fmt.Errorf("%w: not a participant of this conversation", ErrForbidden)
	}
	return s.msgs.MarkRead(ctx, conversationID, readerID)
}

// DeleteMessages removes the listed messages where requesterID is sender or
// receiver and reports how many were actually deleted. Foreign or unknown ids
// are skipped silently, so the count may be smaller than len(ids).
func (s *MessageService) DeleteMessages(ctx context.Context, ids []string, requesterID string) (int64, error) {
	cleaned := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			cleaned = append(cleaned, id)
		}
	}
	if len(cleaned) == 0 {
		return 0, nil
	}
	return s.msgs.DeleteOwned(ctx, cleaned, requesterID)
}

// LastMessage returns the most recent message between two users, decrypted,
// or nil when they never exchanged one.
func (s *MessageService) LastMessage(ctx context.Context, userA, userB string) (*model.Message, error) {
	m, err := s.msgs.GetLastMessage(ctx, model.ConversationID(userA, userB))
	if err != nil || m == nil {
		return m, err
	}
	m.Content = s.cipher.Decrypt(m.Content)
	return m, nil
}

// UnreadCount counts messages from counterpartID that ownerID has not read.
func (s *MessageService) UnreadCount(ctx context.Context, ownerID, counterpartID string) (int, error) {
	return s.msgs.CountUnread(ctx, ownerID, counterpartID)
}

// ListConversations builds the per-user inbox: every counterparty with at
// least one shared message, the latest message and the unread count, newest
// conversation first. Counterparties whose user record no longer exists are
// dropped rather than failing the whole listing.
func (s *MessageService) ListConversations(ctx context.Context, userID string) ([]model.ConversationSummary, error) {
	convs, err := s.convs.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	summaries := make([]model.ConversationSummary, 0, len(convs))
	for _, c := range convs {
		counterpartID := c.UserA
		if counterpartID == userID {
			counterpartID = c.UserB
		}

		counterpart, err := s.users.GetByID(ctx, counterpartID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			return nil, err
		}

		last, err := s.msgs.GetLastMessage(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		if last != nil {
			last.Content = s.cipher.Decrypt(last.Content)
		}

		unread, err := s.msgs.CountUnread(ctx, userID, counterpartID)
		if err != nil {
			return nil, err
		}

		summaries = append(summaries, model.ConversationSummary{
			User:        counterpart.ToPublic(),
			LastMessage: last,
			UnreadCount: unread,
		})
	}

	// Newest activity first; conversations without a message sort last.
	// Equal timestamps tie-break on counterparty id to keep the order stable.
	sort.SliceStable(summaries, func(i, j int) bool {
		li, lj := summaries[i].LastMessage, summaries[j].LastMessage
		switch {
		case li == nil && lj == nil:
			return summaries[i].User.ID < summaries[j].User.ID
		case li == nil:
			return false
		case lj == nil:
			return true
		}
		if !li.CreatedAt.Equal(lj.CreatedAt) {
			return li.CreatedAt.After(lj.CreatedAt)
		}
		return summaries[i].User.ID < summaries[j].User.ID
	})
	return summaries, nil
}
