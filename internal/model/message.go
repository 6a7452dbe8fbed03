package model

import "time"

// Message is a single chat message. Content is stored encrypted and decrypted
// before the message leaves the service layer.
type Message struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversationId"`
	SenderID       string      `json:"senderId"`
	ReceiverID     string      `json:"receiverId"`
	Content        string      `json:"content"`
	IsRead         bool        `json:"isRead"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
	Sender         *UserPublic `json:"sender,omitempty"`
}

// ConversationSummary is the derived per-counterparty view: who the user talks
// to, the most recent message and how many of their messages are still unread.
// Never persisted; always computed from current store state.
type ConversationSummary struct {
	User        UserPublic `json:"user"`
	LastMessage *Message   `json:"lastMessage,omitempty"`
	UnreadCount int        `json:"unreadCount"`
}
