// Package chatsync implements the client-side conversation sync engine used by
// the marketplace dashboards. One Engine instance keeps a conversation list and
// the active message thread consistent with the chat backend under polling
// refresh, optimistic local sends and out-of-band attachment uploads. The same
// engine serves every role pairing (buyer/vendor, buyer/employer, company/
// applicant); callers parameterize it with a conversation type and the viewer's
// user id.
package chatsync

import (
	"strings"
	"time"
)

// Conversation types understood by the backend.
const (
	TypeProduct = "PRODUCT"
	TypeJob     = "JOB"
	TypeService = "SERVICE"
)

const tempIDPrefix = "temp-"

// Peer identifies the other participant of a conversation.
type Peer struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
	Role   string `json:"role,omitempty"`
}

// LastMessage is the denormalized preview shown in the conversation list.
type LastMessage struct {
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	FromMe    bool      `json:"fromMe"`
}

// Conversation is one entry of the conversation list. IsNew marks a local
// placeholder created for a deep-linked peer with no prior messages; it is
// promoted to a real conversation once the first send succeeds and the next
// list poll returns it.
type Conversation struct {
	ID          string       `json:"id"`
	User        Peer         `json:"user"`
	LastMessage *LastMessage `json:"lastMessage,omitempty"`
	UnreadCount int          `json:"unreadCount"`
	RelatedKind string       `json:"relatedKind,omitempty"`
	RelatedID   string       `json:"relatedId,omitempty"`
	IsNew       bool         `json:"-"`
}

// Attachment describes one stored (or still uploading) file on a message.
type Attachment struct {
	URL       string `json:"url"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	Size      int64  `json:"size"`
	Uploading bool   `json:"-"`
}

// ReplyRef is a display-only pointer to a quoted message. It does not link
// thread structure; the snippet and sender label are captured at staging time.
type ReplyRef struct {
	ID         string `json:"id"`
	Snippet    string `json:"snippet"`
	SenderName string `json:"senderName"`
}

// Message is one thread entry. While a send is unconfirmed the ID carries the
// "temp-" prefix and Pending() reports true; confirmation swaps the entry in
// place for the server-returned message.
type Message struct {
	ID          string       `json:"id"`
	SenderID    string       `json:"senderId"`
	ReceiverID  string       `json:"receiverId"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments,omitempty"`
	ReplyTo     *ReplyRef    `json:"replyTo,omitempty"`
	Read        bool         `json:"read"`
	Reactions   []string     `json:"reactions,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	IsMine      bool         `json:"-"`
}

// Pending reports whether the message is a local optimistic entry that the
// server has not confirmed yet.
func (m Message) Pending() bool {
	return strings.HasPrefix(m.ID, tempIDPrefix)
}

// Sendable reports whether the draft holds anything worth sending: text or at
// least one attachment.
func Sendable(content string, files []File) bool {
	return strings.TrimSpace(content) != "" || len(files) > 0
}

// File is a locally selected file handed to Send before upload.
type File struct {
	Name string
	Type string
	Data []byte
}

// Highlight carries the currently flashing deep-link targets, if any.
type Highlight struct {
	ConversationID string
	MessageID      string
}

// Snapshot is the renderable engine state emitted to subscribers after every
// visible mutation. Slices are copies; subscribers may retain them.
type Snapshot struct {
	Conversations []Conversation
	SelectedPeer  string
	Messages      []Message
	ReplyTo       *ReplyRef
	Highlight     Highlight

	// Draft is set when a failed send restored the captured text so the view
	// can put it back into the input box.
	Draft string

	// Err is the last transport failure from a fetch, cleared by the next
	// successful one. Views surface it as a dismissible banner with a manual
	// retry; the engine never retries on its own.
	Err error
}
