package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/duochat/internal/logger"
	"github.com/duochat/internal/middleware"
	"github.com/duochat/internal/model"
	"github.com/duochat/internal/ws"
)

// Messenger is implemented by service.MessageService.
type Messenger interface {
	CreateMessage(ctx context.Context, conversationID, senderID, content string) (*model.Message, error)
	GetMessages(ctx context.Context, conversationID, requesterID string) ([]model.Message, error)
	MarkRead(ctx context.Context, conversationID, readerID string) error
	DeleteMessages(ctx context.Context, ids []string, requesterID string) (int64, error)
	ListConversations(ctx context.Context, userID string) ([]model.ConversationSummary, error)
}

// RoomBroadcaster fans a gateway event out to a room. Implemented by ws.Hub.
type RoomBroadcaster interface {
	BroadcastToRoom(room string, msg ws.OutgoingMessage)
}

type MessageHandler struct {
	svc Messenger
	hub RoomBroadcaster
}

// NewMessageHandler creates the message/conversation handler. hub may be nil;
// messages created over HTTP are then not pushed to connected clients.
func NewMessageHandler(svc Messenger, hub RoomBroadcaster) *MessageHandler {
	return &MessageHandler{svc: svc, hub: hub}
}

// GetMessages returns the conversation history oldest-first and marks the
// counterparty's messages as read for the caller.
func (h *MessageHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationId")
	userID := middleware.GetUserID(r.Context())

	messages, err := h.svc.GetMessages(r.Context(), conversationID, userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	// Opening a conversation counts as reading it.
	if err := h.svc.MarkRead(r.Context(), conversationID, userID); err != nil {
		logger.Errorf("mark read conversation=%s user=%s: %v", conversationID, userID, err)
	}

	writeJSON(w, http.StatusOK, messages)
}

type createMessageRequest struct {
	ConversationID string `json:"conversationId"`
	Content        string `json:"content"`
}

// CreateMessage persists a message sent over HTTP and relays it to the
// conversation room like a gateway-sent one.
func (h *MessageHandler) CreateMessage(w http.ResponseWriter, r *http.Request) {
	var req createMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	userID := middleware.GetUserID(r.Context())
	m, err := h.svc.CreateMessage(r.Context(), req.ConversationID, userID, req.Content)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if h.hub != nil {
		h.hub.BroadcastToRoom(m.ConversationID, ws.OutgoingMessage{Type: ws.EventNewMessage, Payload: m})
	}
	writeJSON(w, http.StatusCreated, m)
}

func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationId")
	userID := middleware.GetUserID(r.Context())

	if err := h.svc.MarkRead(r.Context(), conversationID, userID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type deleteMessagesRequest struct {
	MessageIDs []string `json:"messageIds"`
}

type deleteMessagesResponse struct {
	DeletedCount int64 `json:"deletedCount"`
}

// DeleteMessages removes the caller's messages by id and reports how many
// were actually deleted; ids the caller does not own are skipped.
func (h *MessageHandler) DeleteMessages(w http.ResponseWriter, r *http.Request) {
	var req deleteMessagesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	userID := middleware.GetUserID(r.Context())
	deleted, err := h.svc.DeleteMessages(r.Context(), req.MessageIDs, userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deleteMessagesResponse{DeletedCount: deleted})
}

// GetConversations returns the caller's inbox, newest activity first.
func (h *MessageHandler) GetConversations(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	summaries, err := h.svc.ListConversations(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}
