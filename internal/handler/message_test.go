package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duochat/internal/model"
	"github.com/duochat/internal/service"
	"github.com/duochat/internal/ws"
)

func messagesRouter(h *MessageHandler) *chi.Mux {
	r := chi.NewRouter()
	r.Get("/api/messages/{conversationId}", h.GetMessages)
	r.Post("/api/messages", h.CreateMessage)
	r.Delete("/api/messages", h.DeleteMessages)
	r.Post("/api/messages/{conversationId}/read", h.MarkRead)
	r.Get("/api/conversations", h.GetConversations)
	return r
}

func TestGetMessagesMarksRead(t *testing.T) {
	fm := &fakeMessenger{messages: []model.Message{
		{ID: "m1", ConversationID: "u1_u2", SenderID: "u2", Content: "hi"},
	}}
	r := messagesRouter(NewMessageHandler(fm, nil))

	req := withUser(httptest.NewRequest(http.MethodGet, "/api/messages/u1_u2", nil), "u1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got []model.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "hi", got[0].Content)
	assert.Equal(t, []string{"u1_u2|u1"}, fm.markedRead)
}

func TestGetMessagesForbidden(t *testing.T) {
	fm := &fakeMessenger{err: fmt.Errorf("%w: not a participant of this conversation", service.ErrForbidden)}
	r := messagesRouter(NewMessageHandler(fm, nil))

	req := withUser(httptest.NewRequest(http.MethodGet, "/api/messages/u1_u2", nil), "u3")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, fm.markedRead)
}

func TestCreateMessageBroadcasts(t *testing.T) {
	fm := &fakeMessenger{}
	fb := &fakeBroadcaster{}
	r := messagesRouter(NewMessageHandler(fm, fb))

	body := strings.NewReader(`{"conversationId":"u1_u2","content":"hello"}`)
	req := withUser(httptest.NewRequest(http.MethodPost, "/api/messages", body), "u1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, []string{"u1_u2"}, fb.rooms)
	require.Len(t, fb.events, 1)
	assert.Equal(t, ws.EventNewMessage, fb.events[0].Type)
	assert.Equal(t, fm.created, fb.events[0].Payload)
}

func TestCreateMessageValidation(t *testing.T) {
	fm := &fakeMessenger{err: fmt.Errorf("%w: content is required", service.ErrValidation)}
	fb := &fakeBroadcaster{}
	r := messagesRouter(NewMessageHandler(fm, fb))

	body := strings.NewReader(`{"conversationId":"u1_u2","content":""}`)
	req := withUser(httptest.NewRequest(http.MethodPost, "/api/messages", body), "u1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "content is required")
	assert.Empty(t, fb.rooms)
}

func TestMarkReadForbiddenForOutsider(t *testing.T) {
	fm := &fakeMessenger{markReadErr: fmt.Errorf("%w: not a participant of this conversation", service.ErrForbidden)}
	r := messagesRouter(NewMessageHandler(fm, nil))

	req := withUser(httptest.NewRequest(http.MethodPost, "/api/messages/u1_u2/read", nil), "u3")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "not a participant")
}

func TestDeleteMessagesCount(t *testing.T) {
	fm := &fakeMessenger{deleted: 2}
	r := messagesRouter(NewMessageHandler(fm, nil))

	body := strings.NewReader(`{"messageIds":["m1","m2","foreign"]}`)
	req := withUser(httptest.NewRequest(http.MethodDelete, "/api/messages", body), "u1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got deleteMessagesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, int64(2), got.DeletedCount)
}

func TestGetConversations(t *testing.T) {
	fm := &fakeMessenger{summaries: []model.ConversationSummary{
		{User: model.UserPublic{ID: "u2", Username: "bob"}, UnreadCount: 3},
	}}
	r := messagesRouter(NewMessageHandler(fm, nil))

	req := withUser(httptest.NewRequest(http.MethodGet, "/api/conversations", nil), "u1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got []model.ConversationSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "bob", got[0].User.Username)
	assert.Equal(t, 3, got[0].UnreadCount)
}
