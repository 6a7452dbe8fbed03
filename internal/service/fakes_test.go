package service

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/duochat/internal/model"
	"github.com/duochat/internal/repository"
)

// fakeStore is an in-memory implementation of UserStore, ConversationStore
// and MessageStore with the same error contract as the repository package.
type fakeStore struct {
	mu    sync.Mutex
	users map[string]model.User
	convs map[string]model.Conversation
	msgs  []model.Message
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users: make(map[string]model.User),
		convs: make(map[string]model.Conversation),
	}
}

func (f *fakeStore) Create(ctx context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.Username == u.Username {
			return repository.ErrConflict
		}
	}
	f.users[u.ID] = *u
	return nil
}

func (f *fakeStore) GetByID(ctx context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := u
	return &cp, nil
}

func (f *fakeStore) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == username {
			cp := u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeStore) ListAll(ctx context.Context, limit int) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) SearchByUsername(ctx context.Context, query string, limit int) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.User, 0)
	for _, u := range f.users {
		if strings.Contains(strings.ToLower(u.Username), strings.ToLower(query)) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) UpdateProfile(ctx context.Context, userID, firstName, lastName, avatarURL, bio string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.FirstName, u.LastName, u.AvatarURL, u.Bio = firstName, lastName, avatarURL, bio
	f.users[userID] = u
	return nil
}

func (f *fakeStore) SetStatus(ctx context.Context, userID string, status model.UserStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.Status = status
	f.users[userID] = u
	return nil
}

func (f *fakeStore) Ensure(ctx context.Context, c *model.Conversation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.convs[c.ID]; !ok {
		f.convs[c.ID] = *c
	}
	return nil
}

func (f *fakeStore) ListForUser(ctx context.Context, userID string) ([]model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Conversation, 0)
	for _, c := range f.convs {
		if c.UserA != userID && c.UserB != userID {
			continue
		}
		hasMessage := false
		for _, m := range f.msgs {
			if m.ConversationID == c.ID {
				hasMessage = true
				break
			}
		}
		if hasMessage {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) CreateMessage(ctx context.Context, m *model.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, *m)
	return nil
}

func (f *fakeStore) GetByConversation(ctx context.Context, conversationID string) ([]model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Message, 0)
	for _, m := range f.msgs {
		if m.ConversationID == conversationID {
			out = append(out, f.withSenderLocked(m))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeStore) GetLastMessage(ctx context.Context, conversationID string) (*model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var last *model.Message
	for i := range f.msgs {
		m := f.msgs[i]
		if m.ConversationID != conversationID {
			continue
		}
		if last == nil || m.CreatedAt.After(last.CreatedAt) || m.CreatedAt.Equal(last.CreatedAt) {
			cp := f.withSenderLocked(m)
			last = &cp
		}
	}
	return last, nil
}

func (f *fakeStore) MarkRead(ctx context.Context, conversationID, readerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.msgs {
		if f.msgs[i].ConversationID == conversationID && f.msgs[i].SenderID != readerID {
			f.msgs[i].IsRead = true
		}
	}
	return nil
}

func (f *fakeStore) CountUnread(ctx context.Context, ownerID, counterpartID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, m := range f.msgs {
		if m.SenderID == counterpartID && m.ReceiverID == ownerID && !m.IsRead {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) DeleteOwned(ctx context.Context, ids []string, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	keep := f.msgs[:0]
	var deleted int64
	for _, m := range f.msgs {
		owned := m.SenderID == userID || m.ReceiverID == userID
		matched := false
		for _, id := range ids {
			if m.ID == id {
				matched = true
				break
			}
		}
		if matched && owned {
			deleted++
			continue
		}
		keep = append(keep, m)
	}
	f.msgs = keep
	return deleted, nil
}

func (f *fakeStore) withSenderLocked(m model.Message) model.Message {
	if u, ok := f.users[m.SenderID]; ok {
		pub := u.ToPublic()
		m.Sender = &pub
	}
	return m
}

// msgStoreAdapter renames CreateMessage to Create so fakeStore can satisfy
// both UserStore.Create and MessageStore.Create.
type msgStoreAdapter struct{ *fakeStore }

func (a msgStoreAdapter) Create(ctx context.Context, m *model.Message) error {
	return a.CreateMessage(ctx, m)
}
