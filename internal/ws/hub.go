package ws

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/duochat/internal/logger"
	"github.com/duochat/internal/model"
	"github.com/duochat/internal/service"
)

// StatusStore updates a user's presence status. Implemented by
// repository.UserRepository.
type StatusStore interface {
	SetStatus(ctx context.Context, userID string, status model.UserStatus) error
}

// MessageSender persists a message and returns it decrypted with the sender
// profile attached. Implemented by service.MessageService.
type MessageSender interface {
	CreateMessage(ctx context.Context, conversationID, senderID, content string) (*model.Message, error)
}

// Hub tracks connections and process-local room membership. A room is either
// a user id (direct addressing, presence) or a conversation id (message
// fan-out); every client is auto-joined to its own user-id room. All
// authoritative state lives in the stores, so multiple hub instances can run
// side by side when connected through a Bus.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*Client]struct{}
	rooms    map[string]map[*Client]struct{}
	byUser   map[string]int
	total    int
	maxConns int

	users    StatusStore
	messages MessageSender
	bus      Bus

	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

// NewHub creates a hub. bus may be nil for single-instance deployments.
func NewHub(users StatusStore, messages MessageSender, maxConns int, bus Bus) *Hub {
	if maxConns <= 0 {
		maxConns = 10000
	}
	return &Hub{
		clients:    make(map[*Client]struct{}),
		rooms:      make(map[string]map[*Client]struct{}),
		byUser:     make(map[string]int),
		maxConns:   maxConns,
		users:      users,
		messages:   messages,
		bus:        bus,
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	if h.bus != nil {
		go h.runBus(ctx)
	}
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

func (h *Hub) shutdown() {
	// Collect all clients under the lock, do NOT perform I/O under mutex.
	h.mu.Lock()
	all := make([]*Client, 0, h.total)
	for c := range h.clients {
		all = append(all, c)
	}
	h.clients = make(map[*Client]struct{})
	h.rooms = make(map[string]map[*Client]struct{})
	h.byUser = make(map[string]int)
	h.total = 0
	h.mu.Unlock()

	for _, c := range all {
		c.Close()
	}
	for _, c := range all {
		c.Wait()
	}
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	if h.total >= h.maxConns {
		h.mu.Unlock()
		logger.Errorf("ws connection limit reached (%d), rejecting user=%s", h.maxConns, c.userID)
		c.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.total++
	h.byUser[c.userID]++
	first := h.byUser[c.userID] == 1
	h.joinLocked(c, c.userID)
	h.mu.Unlock()

	if first {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.users.SetStatus(ctx, c.userID, model.StatusOnline); err != nil {
			logger.Errorf("ws set online user=%s: %v", c.userID, err)
		}
		h.BroadcastUserStatus(c.userID, model.StatusOnline)
	}
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	h.total--
	for room, members := range h.rooms {
		if _, ok := members[c]; ok {
			delete(members, c)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	h.byUser[c.userID]--
	last := h.byUser[c.userID] == 0
	if last {
		delete(h.byUser, c.userID)
	}
	h.mu.Unlock()

	// Network I/O outside the lock.
	c.Close()

	if last {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.users.SetStatus(ctx, c.userID, model.StatusOffline); err != nil {
			logger.Errorf("ws set offline user=%s: %v", c.userID, err)
		}
		h.BroadcastUserStatus(c.userID, model.StatusOffline)
	}
}

// joinLocked adds c to a room; caller holds h.mu. Idempotent.
func (h *Hub) joinLocked(c *Client, room string) {
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
}

// JoinRoom adds the client to a room; repeated joins are no-ops.
func (h *Hub) JoinRoom(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	h.joinLocked(c, room)
}

// LeaveRoom removes the client from a room; leaving a room it never joined
// is a no-op. The client stays in its own user-id room.
func (h *Hub) LeaveRoom(c *Client, room string) {
	if room == c.userID {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// InRoom reports whether the client currently belongs to the room.
func (h *Hub) InRoom(c *Client, room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[room][c]
	return ok
}

// HandleMessage dispatches one incoming client event.
func (h *Hub) HandleMessage(ctx context.Context, c *Client, msg IncomingMessage) {
	switch msg.Type {
	case EventJoin:
		// The user-id room is joined automatically at registration; a join
		// for someone else's room is refused.
		if msg.UserID != "" && msg.UserID != c.userID {
			h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: ErrorPayload{Message: "cannot join another user's room"}})
			return
		}
		h.JoinRoom(c, c.userID)
	case EventJoinChat:
		h.handleJoinChat(c, msg)
	case EventLeaveChat:
		if msg.ConversationID != "" {
			h.LeaveRoom(c, msg.ConversationID)
		}
	case EventSendMessage:
		h.handleSendMessage(ctx, c, msg)
	case EventTyping:
		h.handleTyping(c, msg)
	default:
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: ErrorPayload{Message: "unknown event type"}})
	}
}

func (h *Hub) handleJoinChat(c *Client, msg IncomingMessage) {
	if msg.ConversationID == "" {
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: ErrorPayload{Message: "conversationId required"}})
		return
	}
	// Only participants may join a conversation room.
	if _, err := model.Counterpart(msg.ConversationID, c.userID); err != nil {
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: ErrorPayload{Message: "not a participant of this conversation"}})
		return
	}
	h.JoinRoom(c, msg.ConversationID)
}

func (h *Hub) handleSendMessage(ctx context.Context, c *Client, msg IncomingMessage) {
	defer logger.DeferLogDuration("ws.handleSendMessage", time.Now())()
	if msg.ConversationID == "" || strings.TrimSpace(msg.Content) == "" {
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: ErrorPayload{Message: "conversationId and content required"}})
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	m, err := h.messages.CreateMessage(ctx, msg.ConversationID, c.userID, msg.Content)
	if err != nil {
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: ErrorPayload{Message: clientError(err)}})
		return
	}

	out := OutgoingMessage{Type: EventNewMessage, Payload: m}
	h.BroadcastToRoom(msg.ConversationID, out)
	// Echo to the sender even when it never joined the room, so the sending
	// tab always sees its own message confirmed.
	if !h.InRoom(c, msg.ConversationID) {
		h.sendToClient(c, out)
	}
}

func (h *Hub) handleTyping(c *Client, msg IncomingMessage) {
	if msg.ConversationID == "" {
		return
	}
	if _, err := model.Counterpart(msg.ConversationID, c.userID); err != nil {
		return
	}
	out := OutgoingMessage{Type: EventTyping, Payload: TypingPayload{
		ConversationID: msg.ConversationID,
		UserID:         c.userID,
		IsTyping:       msg.IsTyping,
	}}
	h.broadcastRoomExcept(msg.ConversationID, c.userID, out)
	h.publish(Envelope{Room: msg.ConversationID, ExceptUser: c.userID, Event: out})
}

// BroadcastToRoom delivers an event to every local connection in the room and
// forwards it to other instances through the bus.
func (h *Hub) BroadcastToRoom(room string, msg OutgoingMessage) {
	h.deliverRoom(room, msg)
	h.publish(Envelope{Room: room, Event: msg})
}

// BroadcastUserStatus pushes a presence change to every connection, local and
// remote. Also used by the profile handler when a user changes status by hand.
func (h *Hub) BroadcastUserStatus(userID string, status model.UserStatus) {
	out := OutgoingMessage{Type: EventUserStatus, Payload: UserStatusPayload{UserID: userID, Status: status}}
	h.deliverGlobal(out)
	h.publish(Envelope{Global: true, Event: out})
}

func (h *Hub) deliverRoom(room string, msg OutgoingMessage) {
	h.mu.RLock()
	members := h.rooms[room]
	targets := make([]*Client, 0, len(members))
	for c := range members {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.sendToClient(c, msg)
	}
}

func (h *Hub) broadcastRoomExcept(room, exceptUserID string, msg OutgoingMessage) {
	h.mu.RLock()
	members := h.rooms[room]
	targets := make([]*Client, 0, len(members))
	for c := range members {
		if c.userID != exceptUserID {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.sendToClient(c, msg)
	}
}

func (h *Hub) deliverGlobal(msg OutgoingMessage) {
	h.mu.RLock()
	targets := make([]*Client, 0, h.total)
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.sendToClient(c, msg)
	}
}

func (h *Hub) sendToClient(c *Client, msg OutgoingMessage) {
	select {
	case c.send <- msg:
	case <-c.done:
	default:
		// Backpressure: send buffer full, close slow client.
		logger.Errorf("ws send buffer full, closing slow client user=%s", c.userID)
		c.Close()
	}
}

func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		c.Close()
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// clientError maps service errors to short client-facing messages without
// leaking internals.
func clientError(err error) string {
	switch {
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrForbidden),
		errors.Is(err, service.ErrNotFound),
		errors.Is(err, service.ErrConflict):
		if i := strings.Index(err.Error(), ": "); i >= 0 {
			return err.Error()[i+2:]
		}
		return err.Error()
	default:
		return "internal error"
	}
}
