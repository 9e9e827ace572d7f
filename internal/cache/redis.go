package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fathima-sithara/marketplace-chat/internal/config"
)

// Client wraps Redis for the unread counters. Keys are
// unread:<type>:<reader>:<peer>; a send increments, a thread fetch resets.
type Client struct {
	Cli *redis.Client
}

func NewRedis(cfg *config.Config) (*Client, error) {
	r := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := r.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{Cli: r}, nil
}

func (c *Client) Close() error { return c.Cli.Close() }

func unreadKey(convType, readerID, peerID string) string {
	return fmt.Sprintf("unread:%s:%s:%s", convType, readerID, peerID)
}

func (c *Client) IncrUnread(ctx context.Context, convType, readerID, peerID string) error {
	return c.Cli.Incr(ctx, unreadKey(convType, readerID, peerID)).Err()
}

func (c *Client) ResetUnread(ctx context.Context, convType, readerID, peerID string) error {
	return c.Cli.Del(ctx, unreadKey(convType, readerID, peerID)).Err()
}

func (c *Client) GetUnread(ctx context.Context, convType, readerID, peerID string) (int, error) {
	n, err := c.Cli.Get(ctx, unreadKey(convType, readerID, peerID)).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return n, nil
}

// PresenceTTL is how long a user counts as online after their last request.
const PresenceTTL = 5 * time.Minute

// TouchPresence refreshes the caller's online marker.
func (c *Client) TouchPresence(ctx context.Context, userID string) error {
	return c.Cli.Set(ctx, "presence:"+userID, time.Now().UTC().Format(time.RFC3339), PresenceTTL).Err()
}

// Online reports whether the user's presence marker is still alive.
func (c *Client) Online(ctx context.Context, userID string) (bool, error) {
	n, err := c.Cli.Exists(ctx, "presence:"+userID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Presence tracks who is currently online. Redis in production, a map in
// tests.
type Presence interface {
	TouchPresence(ctx context.Context, userID string) error
	Online(ctx context.Context, userID string) (bool, error)
}

// Unread is the counter store the handlers depend on; Redis in production, a
// map in tests.
type Unread interface {
	IncrUnread(ctx context.Context, convType, readerID, peerID string) error
	ResetUnread(ctx context.Context, convType, readerID, peerID string) error
	GetUnread(ctx context.Context, convType, readerID, peerID string) (int, error)
}
