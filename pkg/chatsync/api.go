package chatsync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// API is the backend contract the engine consumes. Implementations must be
// safe for concurrent use; the engine issues calls from short-lived goroutines.
type API interface {
	Conversations(ctx context.Context, userID, convType string) ([]Conversation, error)
	Thread(ctx context.Context, userID, otherUserID, convType string) ([]Message, error)
	Send(ctx context.Context, req SendRequest) (Message, error)
	React(ctx context.Context, messageID, emoji string) ([]string, error)
	Upload(ctx context.Context, file File) (Attachment, error)
}

// SendRequest is the payload for posting one message.
type SendRequest struct {
	SenderID    string       `json:"senderId"`
	ReceiverID  string       `json:"receiverId"`
	Content     string       `json:"content"`
	Type        string       `json:"type"`
	Attachments []Attachment `json:"attachment,omitempty"`
	ReplyToID   string       `json:"replyToId,omitempty"`
}

// HTTPAPI talks to the REST endpoints under /api. A zero timeout falls back to
// 30 seconds; there is no retry layer here on purpose, recovery is always
// caller-initiated.
type HTTPAPI struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func NewHTTPAPI(baseURL, token string, timeout time.Duration) *HTTPAPI {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPAPI{
		BaseURL: baseURL,
		Token:   token,
		Client:  &http.Client{Timeout: timeout},
	}
}

// wireMessage mirrors the server JSON. Attachments need a custom decode: a
// message with exactly one attachment may arrive as a bare object instead of a
// one-element array, a backend quirk normalized here instead of preserved.
type wireMessage struct {
	ID          string         `json:"id"`
	SenderID    string         `json:"senderId"`
	ReceiverID  string         `json:"receiverId"`
	Content     string         `json:"content"`
	Attachments attachmentList `json:"attachments"`
	ReplyTo     *ReplyRef      `json:"replyTo"`
	Read        bool           `json:"read"`
	Reactions   []string       `json:"reactions"`
	CreatedAt   time.Time      `json:"createdAt"`
}

func (w wireMessage) message() Message {
	return Message{
		ID:          w.ID,
		SenderID:    w.SenderID,
		ReceiverID:  w.ReceiverID,
		Content:     w.Content,
		Attachments: w.Attachments,
		ReplyTo:     w.ReplyTo,
		Read:        w.Read,
		Reactions:   w.Reactions,
		CreatedAt:   w.CreatedAt,
	}
}

type attachmentList []Attachment

func (a *attachmentList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*a = nil
		return nil
	}
	if b[0] == '[' {
		return json.Unmarshal(b, (*[]Attachment)(a))
	}
	var one Attachment
	if err := json.Unmarshal(b, &one); err != nil {
		return err
	}
	*a = attachmentList{one}
	return nil
}

// APIError is an application-level failure ({success:false}) as opposed to a
// transport one.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: request failed with status %d", e.Status)
	}
	return "api: " + e.Message
}

func (h *HTTPAPI) Conversations(ctx context.Context, userID, convType string) ([]Conversation, error) {
	q := url.Values{}
	q.Set("userId", userID)
	q.Set("conversationList", "true")
	q.Set("type", convType)
	var out struct {
		Success       bool           `json:"success"`
		Message       string         `json:"message"`
		Conversations []Conversation `json:"conversations"`
	}
	if err := h.do(ctx, http.MethodGet, "/api/messages?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, &APIError{Message: out.Message}
	}
	return out.Conversations, nil
}

func (h *HTTPAPI) Thread(ctx context.Context, userID, otherUserID, convType string) ([]Message, error) {
	q := url.Values{}
	q.Set("userId", userID)
	q.Set("otherUserId", otherUserID)
	q.Set("type", convType)
	var out struct {
		Success  bool          `json:"success"`
		Message  string        `json:"message"`
		Messages []wireMessage `json:"messages"`
	}
	if err := h.do(ctx, http.MethodGet, "/api/messages?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, &APIError{Message: out.Message}
	}
	msgs := make([]Message, 0, len(out.Messages))
	for _, w := range out.Messages {
		msgs = append(msgs, w.message())
	}
	return msgs, nil
}

func (h *HTTPAPI) Send(ctx context.Context, req SendRequest) (Message, error) {
	var out struct {
		Success bool        `json:"success"`
		Message string      `json:"message"`
		Data    wireMessage `json:"data"`
	}
	if err := h.do(ctx, http.MethodPost, "/api/messages", req, &out); err != nil {
		return Message{}, err
	}
	if !out.Success {
		return Message{}, &APIError{Message: out.Message}
	}
	return out.Data.message(), nil
}

func (h *HTTPAPI) React(ctx context.Context, messageID, emoji string) ([]string, error) {
	body := map[string]string{"messageId": messageID, "emoji": emoji}
	var out struct {
		Success   bool     `json:"success"`
		Message   string   `json:"message"`
		Reactions []string `json:"reactions"`
	}
	if err := h.do(ctx, http.MethodPatch, "/api/messages", body, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, &APIError{Message: out.Message}
	}
	return out.Reactions, nil
}

func (h *HTTPAPI) Upload(ctx context.Context, file File) (Attachment, error) {
	req := uploadRequest(file)
	var out struct {
		Success bool       `json:"success"`
		Message string     `json:"message"`
		File    Attachment `json:"file"`
	}
	if err := h.do(ctx, http.MethodPost, "/api/upload", req, &out); err != nil {
		return Attachment{}, err
	}
	if !out.Success {
		return Attachment{}, &APIError{Message: out.Message}
	}
	return out.File, nil
}

func (h *HTTPAPI) do(ctx context.Context, method, path string, body, out interface{}) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, h.BaseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if h.Token != "" {
		req.Header.Set("Authorization", "Bearer "+h.Token)
	}
	resp, err := h.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, out); err != nil {
		return &APIError{Status: resp.StatusCode, Message: "unexpected response body"}
	}
	return nil
}
