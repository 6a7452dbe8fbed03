package model

import (
	"errors"
	"strings"
	"time"
)

// Conversation is the stored thread between exactly two users. The row is
// created lazily when the first message is sent. UserA is always the
// lexicographically smaller participant id.
type Conversation struct {
	ID        string    `json:"id"`
	UserA     string    `json:"userA"`
	UserB     string    `json:"userB"`
	CreatedAt time.Time `json:"createdAt"`
}

const conversationSep = "_"

var ErrBadConversationID = errors.New("malformed conversation id")

// ConversationID derives the canonical thread identifier for two user ids:
// the pair sorted and joined with "_". Keeping the derivation here is what
// guarantees one thread per pair regardless of who messages first.
func ConversationID(userA, userB string) string {
	if userB < userA {
		userA, userB = userB, userA
	}
	return userA + conversationSep + userB
}

// SplitConversationID decomposes a canonical conversation id back into its
// two participant ids. The id must contain exactly two distinct, non-empty
// parts in sorted order; anything else is malformed.
func SplitConversationID(id string) (userA, userB string, err error) {
	parts := strings.Split(id, conversationSep)
	if len(parts) != 2 {
		return "", "", ErrBadConversationID
	}
	userA, userB = parts[0], parts[1]
	if userA == "" || userB == "" || userA == userB {
		return "", "", ErrBadConversationID
	}
	if userB < userA {
		return "", "", ErrBadConversationID
	}
	return userA, userB, nil
}

// Counterpart returns the other participant of a conversation. It fails if
// the id is malformed or userID is not one of the two participants, which is
// the invariant every message write relies on.
func Counterpart(conversationID, userID string) (string, error) {
	a, b, err := SplitConversationID(conversationID)
	if err != nil {
		return "", err
	}
	switch userID {
	case a:
		return b, nil
	case b:
		return a, nil
	}
	return "", ErrBadConversationID
}
