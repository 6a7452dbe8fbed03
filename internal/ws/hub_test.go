package ws

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duochat/internal/model"
	"github.com/duochat/internal/service"
)

type fakeStatusStore struct {
	mu       sync.Mutex
	statuses map[string][]model.UserStatus
}

func newFakeStatusStore() *fakeStatusStore {
	return &fakeStatusStore{statuses: make(map[string][]model.UserStatus)}
}

func (f *fakeStatusStore) SetStatus(_ context.Context, userID string, status model.UserStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[userID] = append(f.statuses[userID], status)
	return nil
}

func (f *fakeStatusStore) history(userID string) []model.UserStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.UserStatus(nil), f.statuses[userID]...)
}

type fakeSender struct {
	err error
}

func (f *fakeSender) CreateMessage(_ context.Context, conversationID, senderID, content string) (*model.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &model.Message{
		ID:             "m-" + senderID,
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}, nil
}

func startHub(t *testing.T, statuses StatusStore, sender MessageSender) *Hub {
	t.Helper()
	h := NewHub(statuses, sender, 0, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go h.Run(ctx)
	return h
}

// registerAndWait registers a connectionless client and waits until the hub
// placed it into its own user-id room.
func registerAndWait(t *testing.T, h *Hub, userID string) *Client {
	t.Helper()
	c := NewClient(h, nil, userID)
	h.Register(c)
	require.Eventually(t, func() bool { return h.InRoom(c, userID) }, 2*time.Second, 10*time.Millisecond)
	return c
}

// drain empties the client's send buffer (presence noise from registration).
func drain(c *Client) {
	for {
		select {
		case <-c.send:
		default:
			return
		}
	}
}

// recvType returns all buffered events of the given type.
func recvType(c *Client, typ EventType) []OutgoingMessage {
	var out []OutgoingMessage
	for {
		select {
		case msg := <-c.send:
			if msg.Type == typ {
				out = append(out, msg)
			}
		default:
			return out
		}
	}
}

func TestJoinLeaveRoomIdempotent(t *testing.T) {
	h := startHub(t, newFakeStatusStore(), &fakeSender{})
	c := registerAndWait(t, h, "u1")

	h.JoinRoom(c, "u1_u2")
	h.JoinRoom(c, "u1_u2")
	assert.True(t, h.InRoom(c, "u1_u2"))

	h.LeaveRoom(c, "u1_u2")
	h.LeaveRoom(c, "u1_u2")
	assert.False(t, h.InRoom(c, "u1_u2"))

	// The personal room survives a leave attempt.
	h.LeaveRoom(c, "u1")
	assert.True(t, h.InRoom(c, "u1"))
}

func TestJoinChatRequiresParticipant(t *testing.T) {
	h := startHub(t, newFakeStatusStore(), &fakeSender{})
	c := registerAndWait(t, h, "u1")
	drain(c)

	h.HandleMessage(context.Background(), c, IncomingMessage{Type: EventJoinChat, ConversationID: "u2_u3"})
	assert.False(t, h.InRoom(c, "u2_u3"))
	errs := recvType(c, EventError)
	require.Len(t, errs, 1)

	h.HandleMessage(context.Background(), c, IncomingMessage{Type: EventJoinChat, ConversationID: "u1_u2"})
	assert.True(t, h.InRoom(c, "u1_u2"))
}

func TestJoinForeignUserRoomRefused(t *testing.T) {
	h := startHub(t, newFakeStatusStore(), &fakeSender{})
	c := registerAndWait(t, h, "u1")
	drain(c)

	h.HandleMessage(context.Background(), c, IncomingMessage{Type: EventJoin, UserID: "u2"})
	assert.False(t, h.InRoom(c, "u2"))
	require.Len(t, recvType(c, EventError), 1)
}

func TestSendMessageFanOutScoping(t *testing.T) {
	h := startHub(t, newFakeStatusStore(), &fakeSender{})
	a := registerAndWait(t, h, "u1")
	b := registerAndWait(t, h, "u2")
	outsider := registerAndWait(t, h, "u3")

	h.HandleMessage(context.Background(), b, IncomingMessage{Type: EventJoinChat, ConversationID: "u1_u2"})
	require.True(t, h.InRoom(b, "u1_u2"))
	drain(a)
	drain(b)
	drain(outsider)

	h.HandleMessage(context.Background(), a, IncomingMessage{Type: EventSendMessage, ConversationID: "u1_u2", Content: "hello"})

	got := recvType(b, EventNewMessage)
	require.Len(t, got, 1)
	m, ok := got[0].Payload.(*model.Message)
	require.True(t, ok)
	assert.Equal(t, "hello", m.Content)
	assert.Equal(t, "u1", m.SenderID)

	// Sender gets an echo even without joining the room.
	assert.Len(t, recvType(a, EventNewMessage), 1)
	// A connection outside the room receives nothing.
	assert.Empty(t, recvType(outsider, EventNewMessage))
}

func TestSendMessageValidationErrorReachesClient(t *testing.T) {
	sender := &fakeSender{err: fmt.Errorf("%w: content is required", service.ErrValidation)}
	h := startHub(t, newFakeStatusStore(), sender)
	c := registerAndWait(t, h, "u1")
	drain(c)

	h.HandleMessage(context.Background(), c, IncomingMessage{Type: EventSendMessage, ConversationID: "u1_u2", Content: "x"})
	errs := recvType(c, EventError)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrorPayload{Message: "content is required"}, errs[0].Payload)
}

func TestTypingExcludesSender(t *testing.T) {
	h := startHub(t, newFakeStatusStore(), &fakeSender{})
	a := registerAndWait(t, h, "u1")
	b := registerAndWait(t, h, "u2")

	h.HandleMessage(context.Background(), a, IncomingMessage{Type: EventJoinChat, ConversationID: "u1_u2"})
	h.HandleMessage(context.Background(), b, IncomingMessage{Type: EventJoinChat, ConversationID: "u1_u2"})
	drain(a)
	drain(b)

	h.HandleMessage(context.Background(), a, IncomingMessage{Type: EventTyping, ConversationID: "u1_u2", IsTyping: true})

	got := recvType(b, EventTyping)
	require.Len(t, got, 1)
	assert.Equal(t, TypingPayload{ConversationID: "u1_u2", UserID: "u1", IsTyping: true}, got[0].Payload)
	assert.Empty(t, recvType(a, EventTyping))
}

func TestPresenceOnFirstAndLastConnection(t *testing.T) {
	statuses := newFakeStatusStore()
	h := startHub(t, statuses, &fakeSender{})

	first := registerAndWait(t, h, "u1")
	second := registerAndWait(t, h, "u1")
	require.Eventually(t, func() bool {
		return len(statuses.history("u1")) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []model.UserStatus{model.StatusOnline}, statuses.history("u1"))

	// Watching from a second user: the status event is global.
	watcher := registerAndWait(t, h, "u2")
	drain(watcher)

	h.Unregister(second)
	// Still one connection left, no offline transition.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, []model.UserStatus{model.StatusOnline}, statuses.history("u1"))

	h.Unregister(first)
	require.Eventually(t, func() bool {
		hist := statuses.history("u1")
		return len(hist) == 2 && hist[1] == model.StatusOffline
	}, 2*time.Second, 10*time.Millisecond)

	got := recvType(watcher, EventUserStatus)
	require.NotEmpty(t, got)
	assert.Equal(t, UserStatusPayload{UserID: "u1", Status: model.StatusOffline}, got[len(got)-1].Payload)
}
