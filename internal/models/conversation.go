package models

import "time"

// User is the minimal profile embedded into conversation-list entries.
type User struct {
	ID     string `bson:"_id,omitempty" json:"id"`
	Name   string `bson:"name" json:"name"`
	Avatar string `bson:"avatar,omitempty" json:"avatar,omitempty"`
	Role   string `bson:"role,omitempty" json:"role,omitempty"`
}

// LastMessage is the denormalized preview kept on a conversation.
type LastMessage struct {
	Content   string    `bson:"content" json:"content"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	SenderID  string    `bson:"sender_id" json:"-"`
}

// Conversation pairs two users for one conversation type. Members holds both
// user ids sorted, so a pair maps to exactly one document per type.
type Conversation struct {
	ID          string       `bson:"_id,omitempty" json:"id"`
	Type        string       `bson:"type" json:"type"`
	Members     []string     `bson:"members" json:"-"`
	LastMessage *LastMessage `bson:"last_message,omitempty" json:"lastMessage,omitempty"`
	RelatedKind string       `bson:"related_kind,omitempty" json:"relatedKind,omitempty"`
	RelatedID   string       `bson:"related_id,omitempty" json:"relatedId,omitempty"`
	CreatedAt   time.Time    `bson:"created_at" json:"-"`
	UpdatedAt   time.Time    `bson:"updated_at" json:"-"`
}

// ListEntry is one row of the conversation-list response, shaped for the
// client: the peer's profile, the preview and the viewer's unread count.
type ListEntry struct {
	ID          string        `json:"id"`
	User        User          `json:"user"`
	LastMessage *EntryPreview `json:"lastMessage,omitempty"`
	UnreadCount int           `json:"unreadCount"`
	Online      bool          `json:"online"`
	RelatedKind string        `json:"relatedKind,omitempty"`
	RelatedID   string        `json:"relatedId,omitempty"`
}

type EntryPreview struct {
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	FromMe    bool      `json:"fromMe"`
}
