package chatsync

import "time"

// HighlightDuration is how long a deep-link target stays flashed.
const HighlightDuration = 3500 * time.Millisecond

// highlighter arms at most one flash per deep-link target for the lifetime of
// the engine. Poll-driven re-renders hit maybeFire again and again; the fired
// set ("conv-<id>" / "msg-<id>" tags) makes each target fire exactly once.
type highlighter struct {
	targetConv string
	targetMsg  string
	fired      map[string]struct{}
	active     Highlight
}

func newHighlighter(convID, msgID string) *highlighter {
	return &highlighter{
		targetConv: convID,
		targetMsg:  msgID,
		fired:      make(map[string]struct{}),
	}
}

// maybeFireConversation flashes the target conversation the first time it is
// present in the list. Returns true when a new flash was armed.
func (h *highlighter) maybeFireConversation(convs []Conversation) bool {
	if h.targetConv == "" {
		return false
	}
	tag := "conv-" + h.targetConv
	if _, done := h.fired[tag]; done {
		return false
	}
	if findConversation(convs, h.targetConv) == nil {
		return false
	}
	h.fired[tag] = struct{}{}
	h.active.ConversationID = h.targetConv
	return true
}

// maybeFireMessage flashes the target message the first time it shows up in
// the active thread. A stale deep link whose message never appears simply
// never fires.
func (h *highlighter) maybeFireMessage(msgs []Message) bool {
	if h.targetMsg == "" {
		return false
	}
	tag := "msg-" + h.targetMsg
	if _, done := h.fired[tag]; done {
		return false
	}
	if findMessage(msgs, h.targetMsg) == nil {
		return false
	}
	h.fired[tag] = struct{}{}
	h.active.MessageID = h.targetMsg
	return true
}

func (h *highlighter) clearConversation() { h.active.ConversationID = "" }
func (h *highlighter) clearMessage()      { h.active.MessageID = "" }
