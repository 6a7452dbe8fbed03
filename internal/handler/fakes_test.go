package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/duochat/internal/model"
	"github.com/duochat/internal/repository"
	"github.com/duochat/internal/service"
	"github.com/duochat/internal/ws"
)

type fakeAuth struct {
	signupErr error
	loginErr  error
	user      *model.User
}

func (f *fakeAuth) Signup(_ context.Context, username, _, firstName, lastName string) (*model.User, error) {
	if f.signupErr != nil {
		return nil, f.signupErr
	}
	u := *f.user
	u.Username = username
	u.FirstName = firstName
	u.LastName = lastName
	return &u, nil
}

func (f *fakeAuth) Login(_ context.Context, _, _ string) (*model.User, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return f.user, nil
}

type fakeMessenger struct {
	messages   []model.Message
	created    *model.Message
	summaries  []model.ConversationSummary
	deleted     int64
	err         error
	markReadErr error
	markedRead  []string
}

func (f *fakeMessenger) CreateMessage(_ context.Context, conversationID, senderID, content string) (*model.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.created = &model.Message{ID: "m1", ConversationID: conversationID, SenderID: senderID, Content: content}
	return f.created, nil
}

func (f *fakeMessenger) GetMessages(_ context.Context, conversationID, _ string) ([]model.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]model.Message, 0, len(f.messages))
	for _, m := range f.messages {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMessenger) MarkRead(_ context.Context, conversationID, readerID string) error {
	if f.markReadErr != nil {
		return f.markReadErr
	}
	f.markedRead = append(f.markedRead, conversationID+"|"+readerID)
	return nil
}

func (f *fakeMessenger) DeleteMessages(_ context.Context, _ []string, _ string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.deleted, nil
}

func (f *fakeMessenger) ListConversations(_ context.Context, _ string) ([]model.ConversationSummary, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.summaries, nil
}

type fakeBroadcaster struct {
	rooms  []string
	events []ws.OutgoingMessage
}

func (f *fakeBroadcaster) BroadcastToRoom(room string, msg ws.OutgoingMessage) {
	f.rooms = append(f.rooms, room)
	f.events = append(f.events, msg)
}

type fakePresence struct {
	statuses map[string]model.UserStatus
}

func (f *fakePresence) BroadcastUserStatus(userID string, status model.UserStatus) {
	if f.statuses == nil {
		f.statuses = make(map[string]model.UserStatus)
	}
	f.statuses[userID] = status
}

// fakeUserStore is a minimal in-memory service.UserStore.
type fakeUserStore struct {
	users map[string]*model.User
}

var _ service.UserStore = (*fakeUserStore)(nil)

func newFakeUserStore(users ...*model.User) *fakeUserStore {
	s := &fakeUserStore{users: make(map[string]*model.User)}
	for _, u := range users {
		cp := *u
		s.users[u.ID] = &cp
	}
	return s
}

func (s *fakeUserStore) Create(_ context.Context, u *model.User) error {
	for _, e := range s.users {
		if e.Username == u.Username {
			return fmt.Errorf("userRepo.Create: %w", repository.ErrConflict)
		}
	}
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *fakeUserStore) GetByID(_ context.Context, id string) (*model.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("userRepo.GetByID: %w", repository.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (s *fakeUserStore) GetByUsername(_ context.Context, username string) (*model.User, error) {
	for _, u := range s.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("userRepo.GetByUsername: %w", repository.ErrNotFound)
}

func (s *fakeUserStore) ListAll(_ context.Context, _ int) ([]model.User, error) {
	out := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *u)
	}
	return out, nil
}

func (s *fakeUserStore) SearchByUsername(_ context.Context, query string, _ int) ([]model.User, error) {
	var out []model.User
	for _, u := range s.users {
		if strings.Contains(strings.ToLower(u.Username), strings.ToLower(query)) {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (s *fakeUserStore) UpdateProfile(_ context.Context, userID, firstName, lastName, avatarURL, bio string) error {
	u, ok := s.users[userID]
	if !ok {
		return fmt.Errorf("userRepo.UpdateProfile: %w", repository.ErrNotFound)
	}
	u.FirstName, u.LastName, u.AvatarURL, u.Bio = firstName, lastName, avatarURL, bio
	return nil
}

func (s *fakeUserStore) SetStatus(_ context.Context, userID string, status model.UserStatus) error {
	u, ok := s.users[userID]
	if !ok {
		return fmt.Errorf("userRepo.SetStatus: %w", repository.ErrNotFound)
	}
	u.Status = status
	return nil
}
