package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/fathima-sithara/marketplace-chat/internal/auth"
	"github.com/fathima-sithara/marketplace-chat/internal/cache"
	"github.com/fathima-sithara/marketplace-chat/internal/events"
	"github.com/fathima-sithara/marketplace-chat/internal/metrics"
	"github.com/fathima-sithara/marketplace-chat/internal/models"
	"github.com/fathima-sithara/marketplace-chat/internal/repository"
	"github.com/fathima-sithara/marketplace-chat/internal/ws"
)

type MessageHandler struct {
	repo     repository.Repository
	unread   cache.Unread
	presence cache.Presence // optional
	pub      events.Publisher
	hub      *ws.Hub
	log      *zap.SugaredLogger
}

func NewMessageHandler(repo repository.Repository, unread cache.Unread, presence cache.Presence, pub events.Publisher, hub *ws.Hub, log *zap.SugaredLogger) *MessageHandler {
	return &MessageHandler{repo: repo, unread: unread, presence: presence, pub: pub, hub: hub, log: log}
}

// Get serves both conversation-list and thread fetches, dispatched on the
// conversationList query flag.
func (h *MessageHandler) Get(c *fiber.Ctx) error {
	if c.Query("conversationList") == "true" {
		return h.listConversations(c)
	}
	return h.getThread(c)
}

func (h *MessageHandler) listConversations(c *fiber.Ctx) error {
	userID := c.Query("userId")
	convType := c.Query("type")
	if userID == "" || convType == "" {
		return fail(c, fiber.StatusBadRequest, "userId and type required")
	}
	if caller := auth.CallerID(c); caller != "" && caller != userID {
		return fail(c, fiber.StatusForbidden, "userId mismatch")
	}

	convs, err := h.repo.ListConversations(c.Context(), convType, userID)
	if err != nil {
		h.log.Errorw("list conversations", "err", err)
		return fail(c, fiber.StatusInternalServerError, "internal error")
	}

	entries := make([]*models.ListEntry, 0, len(convs))
	for _, conv := range convs {
		peerID := otherMember(conv.Members, userID)
		if peerID == "" {
			continue
		}
		entry := &models.ListEntry{
			ID:          conv.ID,
			User:        models.User{ID: peerID, Name: peerID},
			RelatedKind: conv.RelatedKind,
			RelatedID:   conv.RelatedID,
		}
		if u, err := h.repo.GetUser(c.Context(), peerID); err == nil {
			entry.User = *u
		}
		if lm := conv.LastMessage; lm != nil {
			entry.LastMessage = &models.EntryPreview{
				Content:   lm.Content,
				CreatedAt: lm.CreatedAt,
				FromMe:    lm.SenderID == userID,
			}
		}
		if n, err := h.unread.GetUnread(c.Context(), convType, userID, peerID); err == nil {
			entry.UnreadCount = n
		}
		if h.presence != nil {
			if on, err := h.presence.Online(c.Context(), peerID); err == nil {
				entry.Online = on
			}
		}
		entries = append(entries, entry)
	}
	return c.JSON(fiber.Map{"success": true, "conversations": entries})
}

func (h *MessageHandler) getThread(c *fiber.Ctx) error {
	userID := c.Query("userId")
	otherID := c.Query("otherUserId")
	convType := c.Query("type")
	if userID == "" || otherID == "" || convType == "" {
		return fail(c, fiber.StatusBadRequest, "userId, otherUserId and type required")
	}
	if caller := auth.CallerID(c); caller != "" && caller != userID {
		return fail(c, fiber.StatusForbidden, "userId mismatch")
	}

	msgs, err := h.repo.GetThread(c.Context(), convType, userID, otherID)
	if err != nil {
		h.log.Errorw("get thread", "err", err)
		return fail(c, fiber.StatusInternalServerError, "internal error")
	}

	// opening a thread marks it read and resets the viewer's counter
	if err := h.repo.MarkThreadRead(c.Context(), convType, userID, otherID); err != nil {
		h.log.Warnw("mark read", "err", err)
	}
	if err := h.unread.ResetUnread(c.Context(), convType, userID, otherID); err != nil {
		h.log.Warnw("reset unread", "err", err)
	}
	if msgs == nil {
		msgs = []*models.Message{}
	}
	return c.JSON(fiber.Map{"success": true, "messages": msgs})
}

type sendBody struct {
	SenderID   string         `json:"senderId"`
	ReceiverID string         `json:"receiverId"`
	Content    string         `json:"content"`
	Type       string         `json:"type"`
	Attachment attachmentList `json:"attachment"`
	ReplyToID  string         `json:"replyToId"`
}

// attachmentList tolerates both a single attachment object and an array, the
// shape older clients still send.
type attachmentList []models.Attachment

func (a *attachmentList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*a = nil
		return nil
	}
	if b[0] == '[' {
		return json.Unmarshal(b, (*[]models.Attachment)(a))
	}
	var one models.Attachment
	if err := json.Unmarshal(b, &one); err != nil {
		return err
	}
	*a = attachmentList{one}
	return nil
}

// Post persists a message, bumps the receiver's unread counter and fans the
// confirmation out to the event bus and websocket feed.
func (h *MessageHandler) Post(c *fiber.Ctx) error {
	var body sendBody
	if err := c.BodyParser(&body); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid body")
	}
	if body.SenderID == "" || body.ReceiverID == "" || body.Type == "" {
		return fail(c, fiber.StatusBadRequest, "senderId, receiverId and type required")
	}
	if strings.TrimSpace(body.Content) == "" && len(body.Attachment) == 0 {
		return fail(c, fiber.StatusBadRequest, "message needs text or an attachment")
	}
	if caller := auth.CallerID(c); caller != "" && caller != body.SenderID {
		return fail(c, fiber.StatusForbidden, "senderId mismatch")
	}

	msg := &models.Message{
		Type:        body.Type,
		SenderID:    body.SenderID,
		ReceiverID:  body.ReceiverID,
		Content:     body.Content,
		Attachments: body.Attachment,
	}
	if body.ReplyToID != "" {
		if quoted, err := h.repo.GetMessage(c.Context(), body.ReplyToID); err == nil {
			msg.ReplyTo = quotedRef(c, h, quoted)
		}
		// a stale replyToId is dropped, the message still goes out
	}

	saved, err := h.repo.SaveMessage(c.Context(), msg)
	if err != nil {
		h.log.Errorw("save message", "err", err)
		return fail(c, fiber.StatusInternalServerError, "internal error")
	}

	if err := h.unread.IncrUnread(c.Context(), saved.Type, saved.ReceiverID, saved.SenderID); err != nil {
		h.log.Warnw("incr unread", "err", err)
	}
	if err := h.pub.MessageSent(c.Context(), saved); err != nil {
		h.log.Warnw("publish message.sent", "err", err)
	}
	if h.hub != nil {
		h.hub.NotifyMessage(saved)
	}
	metrics.MessagesSent.WithLabelValues(saved.Type).Inc()
	return c.JSON(fiber.Map{"success": true, "data": saved})
}

func quotedRef(c *fiber.Ctx, h *MessageHandler, quoted *models.Message) *models.ReplyRef {
	name := quoted.SenderID
	if u, err := h.repo.GetUser(c.Context(), quoted.SenderID); err == nil {
		name = u.Name
	}
	snippet := quoted.Preview()
	if r := []rune(snippet); len(r) > 80 {
		snippet = string(r[:80])
	}
	return &models.ReplyRef{ID: quoted.ID, Snippet: snippet, SenderName: name}
}

type reactBody struct {
	MessageID string `json:"messageId"`
	Emoji     string `json:"emoji"`
}

// Patch appends an emoji reaction and returns the authoritative list.
func (h *MessageHandler) Patch(c *fiber.Ctx) error {
	var body reactBody
	if err := c.BodyParser(&body); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid body")
	}
	if body.MessageID == "" || body.Emoji == "" {
		return fail(c, fiber.StatusBadRequest, "messageId and emoji required")
	}
	reactions, err := h.repo.AddReaction(c.Context(), body.MessageID, body.Emoji)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fail(c, fiber.StatusNotFound, "message not found")
		}
		h.log.Errorw("add reaction", "err", err)
		return fail(c, fiber.StatusInternalServerError, "internal error")
	}
	return c.JSON(fiber.Map{"success": true, "reactions": reactions})
}

// Notifications lists the caller's notification feed, newest first.
func (h *MessageHandler) Notifications(c *fiber.Ctx) error {
	userID := c.Query("userId")
	if userID == "" {
		return fail(c, fiber.StatusBadRequest, "userId required")
	}
	if caller := auth.CallerID(c); caller != "" && caller != userID {
		return fail(c, fiber.StatusForbidden, "userId mismatch")
	}
	notes, err := h.repo.ListNotifications(c.Context(), userID)
	if err != nil {
		h.log.Errorw("list notifications", "err", err)
		return fail(c, fiber.StatusInternalServerError, "internal error")
	}
	if notes == nil {
		notes = []*models.Notification{}
	}
	return c.JSON(fiber.Map{"success": true, "notifications": notes})
}

func otherMember(members []string, userID string) string {
	for _, m := range members {
		if m != userID {
			return m
		}
	}
	return ""
}
