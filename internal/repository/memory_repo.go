package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fathima-sithara/marketplace-chat/internal/models"
)

// MemoryRepo is an in-memory Repository for tests and local development.
type MemoryRepo struct {
	mu       sync.Mutex
	messages []*models.Message
	convs    map[string]*models.Conversation // type + member key
	users    map[string]*models.User
	notes    []*models.Notification
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		convs: make(map[string]*models.Conversation),
		users: make(map[string]*models.User),
	}
}

// PutUser seeds a profile.
func (r *MemoryRepo) PutUser(u *models.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID] = u
}

func convKey(convType string, members []string) string {
	return convType + ":" + strings.Join(members, "|")
}

func (r *MemoryRepo) SaveMessage(_ context.Context, m *models.Message) (*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.CreatedAt = time.Now().UTC()
	r.messages = append(r.messages, m)

	members := MemberKey(m.SenderID, m.ReceiverID)
	key := convKey(m.Type, members)
	c, ok := r.convs[key]
	if !ok {
		c = &models.Conversation{
			ID:        uuid.NewString(),
			Type:      m.Type,
			Members:   members,
			CreatedAt: m.CreatedAt,
		}
		r.convs[key] = c
	}
	c.UpdatedAt = m.CreatedAt
	c.LastMessage = &models.LastMessage{
		Content:   m.Preview(),
		CreatedAt: m.CreatedAt,
		SenderID:  m.SenderID,
	}
	return m, nil
}

func (r *MemoryRepo) GetThread(_ context.Context, convType, userID, otherUserID string) ([]*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Message
	for _, m := range r.messages {
		if m.Type != convType {
			continue
		}
		if (m.SenderID == userID && m.ReceiverID == otherUserID) ||
			(m.SenderID == otherUserID && m.ReceiverID == userID) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *MemoryRepo) MarkThreadRead(_ context.Context, convType, readerID, peerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.messages {
		if m.Type == convType && m.SenderID == peerID && m.ReceiverID == readerID {
			m.Read = true
		}
	}
	return nil
}

func (r *MemoryRepo) GetMessage(_ context.Context, id string) (*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.messages {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryRepo) AddReaction(_ context.Context, id, emoji string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.messages {
		if m.ID == id {
			m.Reactions = append(m.Reactions, emoji)
			return append([]string(nil), m.Reactions...), nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryRepo) ListConversations(_ context.Context, convType, userID string) ([]*models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Conversation
	for _, c := range r.convs {
		if c.Type != convType {
			continue
		}
		for _, m := range c.Members {
			if m == userID {
				out = append(out, c)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (r *MemoryRepo) GetUser(_ context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		return u, nil
	}
	return nil, ErrNotFound
}

func (r *MemoryRepo) SaveNotification(_ context.Context, n *models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	n.CreatedAt = time.Now().UTC()
	r.notes = append(r.notes, n)
	return nil
}

func (r *MemoryRepo) ListNotifications(_ context.Context, userID string) ([]*models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Notification
	for i := len(r.notes) - 1; i >= 0; i-- {
		if r.notes[i].UserID == userID {
			out = append(out, r.notes[i])
		}
	}
	return out, nil
}
