package ws

import "github.com/duochat/internal/model"

type EventType string

// Client -> server events.
const (
	EventJoin        EventType = "join"
	EventJoinChat    EventType = "joinChat"
	EventLeaveChat   EventType = "leaveChat"
	EventSendMessage EventType = "sendMessage"
	EventTyping      EventType = "typing"
)

// Server -> client events.
const (
	EventNewMessage EventType = "newMessage"
	EventUserStatus EventType = "userStatus"
	EventError      EventType = "error"
)

// IncomingMessage is what the client sends to the server.
type IncomingMessage struct {
	Type           EventType `json:"type"`
	UserID         string    `json:"userId,omitempty"`
	ConversationID string    `json:"conversationId,omitempty"`
	Content        string    `json:"content,omitempty"`
	IsTyping       bool      `json:"isTyping,omitempty"`
}

// OutgoingMessage is what the server sends to the client.
// Payload uses typed structs to avoid heap-heavy map[string]any.
type OutgoingMessage struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

// UserStatusPayload is broadcast globally when a user's status changes.
type UserStatusPayload struct {
	UserID string           `json:"userId"`
	Status model.UserStatus `json:"status"`
}

// TypingPayload is broadcast to a conversation room, sender excluded.
type TypingPayload struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	IsTyping       bool   `json:"isTyping"`
}

// ErrorPayload carries a client-facing error message.
type ErrorPayload struct {
	Message string `json:"message"`
}
