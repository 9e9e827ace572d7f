package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/fathima-sithara/marketplace-chat/internal/models"
)

// MessageSent is published after a message is persisted. The notification
// consumer turns it into a notification row for the receiver.
type MessageSent struct {
	MessageID  string    `json:"messageId"`
	Type       string    `json:"type"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Preview    string    `json:"preview"`
	SentAt     time.Time `json:"sentAt"`
}

type Publisher interface {
	MessageSent(ctx context.Context, m *models.Message) error
	Close() error
}

type kafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) Publisher {
	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  brokers,
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	})
	return &kafkaPublisher{writer: w}
}

func (p *kafkaPublisher) MessageSent(ctx context.Context, m *models.Message) error {
	ev := MessageSent{
		MessageID:  m.ID,
		Type:       m.Type,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Preview:    m.Preview(),
		SentAt:     m.CreatedAt,
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(m.ReceiverID),
		Value: b,
		Time:  time.Now(),
	})
}

func (p *kafkaPublisher) Close() error { return p.writer.Close() }

// NopPublisher drops events; used when Kafka is not configured and in tests.
type NopPublisher struct{}

func (NopPublisher) MessageSent(context.Context, *models.Message) error { return nil }
func (NopPublisher) Close() error                                       { return nil }
