package repository

import (
	"context"
	"errors"
	"sort"

	"github.com/fathima-sithara/marketplace-chat/internal/models"
)

var ErrNotFound = errors.New("not found")

// Repository is the persistence surface behind the chat API.
type Repository interface {
	// SaveMessage stores the message and upserts the pair's conversation with
	// a fresh last-message preview.
	SaveMessage(ctx context.Context, m *models.Message) (*models.Message, error)
	// GetThread returns the full two-party thread in chronological order.
	GetThread(ctx context.Context, convType, userID, otherUserID string) ([]*models.Message, error)
	// MarkThreadRead flags every message the peer sent to the reader as read.
	MarkThreadRead(ctx context.Context, convType, readerID, peerID string) error
	GetMessage(ctx context.Context, id string) (*models.Message, error)
	// AddReaction appends the emoji and returns the authoritative list.
	AddReaction(ctx context.Context, id, emoji string) ([]string, error)
	ListConversations(ctx context.Context, convType, userID string) ([]*models.Conversation, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	SaveNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, userID string) ([]*models.Notification, error)
}

// MemberKey returns the canonical member pair, sorted so (a,b) and (b,a) hit
// the same conversation document.
func MemberKey(a, b string) []string {
	m := []string{a, b}
	sort.Strings(m)
	return m
}
