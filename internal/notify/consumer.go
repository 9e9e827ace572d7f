// Package notify consumes message.sent events and persists notification rows
// for the receiving user's dashboard badge.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/fathima-sithara/marketplace-chat/internal/events"
	"github.com/fathima-sithara/marketplace-chat/internal/models"
	"github.com/fathima-sithara/marketplace-chat/internal/repository"
)

type Consumer struct {
	reader *kafka.Reader
	repo   repository.Repository
	log    *zap.SugaredLogger
}

func NewConsumer(brokers []string, topic, groupID string, repo repository.Repository, log *zap.SugaredLogger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &Consumer{reader: r, repo: repo, log: log}
}

// Start reads until ctx is canceled. Read errors back off exponentially
// instead of hot-looping against a broker that is down.
func (c *Consumer) Start(ctx context.Context) error {
	bo := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
	for {
		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Warnw("kafka read", "err", err)
			d := bo.NextBackOff()
			if d == backoff.Stop {
				return err
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d):
			}
			continue
		}
		bo.Reset()
		if err := c.handle(ctx, m.Value); err != nil {
			c.log.Warnw("notification handle", "err", err)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, value []byte) error {
	var ev events.MessageSent
	if err := json.Unmarshal(value, &ev); err != nil {
		return err
	}
	sender, err := c.repo.GetUser(ctx, ev.SenderID)
	title := "New message"
	if err == nil {
		title = "New message from " + sender.Name
	}
	return c.repo.SaveNotification(ctx, &models.Notification{
		UserID:  ev.ReceiverID,
		Title:   title,
		Message: ev.Preview,
		Type:    ev.Type,
	})
}

func (c *Consumer) Close() error { return c.reader.Close() }
