package models

import "time"

// Attachment is a stored file on a message. URL points at the object store.
type Attachment struct {
	URL  string `bson:"url" json:"url"`
	Name string `bson:"name" json:"name"`
	Type string `bson:"type" json:"type"`
	Size int64  `bson:"size" json:"size"`
}

// ReplyRef is the denormalized quote snapshot embedded at send time. It is not
// a structural link; deleting the quoted message leaves the snapshot intact.
type ReplyRef struct {
	ID         string `bson:"id" json:"id"`
	Snippet    string `bson:"snippet" json:"snippet"`
	SenderName string `bson:"sender_name" json:"senderName"`
}

type Message struct {
	ID          string       `bson:"_id,omitempty" json:"id"`
	Type        string       `bson:"type" json:"type"`
	SenderID    string       `bson:"sender_id" json:"senderId"`
	ReceiverID  string       `bson:"receiver_id" json:"receiverId"`
	Content     string       `bson:"content" json:"content"`
	Attachments []Attachment `bson:"attachments,omitempty" json:"attachments,omitempty"`
	ReplyTo     *ReplyRef    `bson:"reply_to,omitempty" json:"replyTo,omitempty"`
	Read        bool         `bson:"read" json:"read"`
	Reactions   []string     `bson:"reactions,omitempty" json:"reactions,omitempty"`
	CreatedAt   time.Time    `bson:"created_at" json:"createdAt"`
}

// Preview is the conversation-list summary line for a message.
func (m *Message) Preview() string {
	if m.Content != "" {
		return m.Content
	}
	if len(m.Attachments) > 0 {
		return "Attachment"
	}
	return ""
}
