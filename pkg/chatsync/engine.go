package chatsync

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultPollInterval drives both the conversation list and the active thread
// refresh. The engine runs one coordinated ticker, not one timer per concern.
const DefaultPollInterval = 5 * time.Second

// Options parameterize one engine instance. UserID is the viewer identity and
// is fixed for the engine lifetime; a session change means a new engine.
type Options struct {
	UserID        string
	Type          string // PRODUCT, JOB or SERVICE
	PeerRoleLabel string // placeholder display name for unknown deep-linked peers
	PollInterval  time.Duration

	// Deep-link targets from the page query string, both optional.
	DeepLinkPeer    string
	DeepLinkMessage string

	// OnSnapshot, when set, is invoked synchronously on the engine goroutine
	// after every visible state change.
	OnSnapshot func(Snapshot)

	Logger *zap.SugaredLogger
}

// Engine owns the conversation list and the active thread for one viewer and
// one conversation type. All state lives on the run-loop goroutine; public
// methods hand commands to it through a channel and never touch state
// directly, so no locks are involved. Network calls run in short-lived
// goroutines and post their results back onto the same loop, which is what
// makes overlapping polls, sends and uploads safe to interleave.
type Engine struct {
	api  API
	opts Options
	log  *zap.SugaredLogger

	events chan event
	snaps  chan Snapshot

	ctx context.Context

	// run-loop state
	convs       []Conversation
	selected    string
	msgs        []Message
	reply       *ReplyRef
	hl          *highlighter
	draft       string
	lastErr     error
	initialized bool
	lastTemp    int64
	hlTTL       time.Duration
}

type event interface{}

type (
	cmdSelect      struct{ peerID string }
	cmdSend        struct {
		content string
		files   []File
	}
	cmdReact struct{ messageID, emoji string }
	cmdReply struct{ messageID string }
	cmdCancelReply struct{}
	cmdDelete      struct{ messageID string }
	cmdCopy        struct {
		messageID string
		resp      chan string
	}
	cmdRefresh struct{ force bool }

	evConvs struct {
		list  []Conversation
		err   error
		force bool
	}
	evThread struct {
		peerID string
		msgs   []Message
		err    error
		silent bool
	}
	evUploadProgress struct {
		tempID string
		slot   int
		att    Attachment
	}
	evSendResult struct {
		tempID string
		peerID string
		msg    Message
		err    error
		draft  string
	}
	evReactions struct {
		messageID string
		reactions []string
	}
	evClearHighlight struct{ conversation bool }
)

// New builds an engine; call Run to start it.
func New(api API, opts Options) *Engine {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Engine{
		api:    api,
		opts:   opts,
		log:    log,
		events: make(chan event, 64),
		snaps:  make(chan Snapshot, 8),
		hl:     newHighlighter(opts.DeepLinkPeer, opts.DeepLinkMessage),
		hlTTL:  HighlightDuration,
	}
}

// Run drives the engine until ctx is canceled. It issues an immediate forced
// refresh, then polls on the configured interval.
func (e *Engine) Run(ctx context.Context) error {
	e.ctx = ctx
	e.refresh(true)

	ticker := time.NewTicker(e.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			e.refresh(false)
		case ev := <-e.events:
			e.handle(ev)
		}
	}
}

// Snapshots returns the state stream. The channel is buffered; when a slow
// subscriber falls behind, intermediate snapshots are dropped in favor of
// newer ones.
func (e *Engine) Snapshots() <-chan Snapshot { return e.snaps }

// Select makes the conversation with the given peer active.
func (e *Engine) Select(peerID string) { e.post(cmdSelect{peerID}) }

// Send submits the current draft. The message shows up immediately as a
// pending entry; attachments upload sequentially before the actual POST.
func (e *Engine) Send(content string, files []File) {
	if !Sendable(content, files) {
		return
	}
	e.post(cmdSend{content: content, files: files})
}

// React optimistically appends emoji to the message and syncs with the server
// afterwards. The server's reaction list is authoritative; a failed sync is
// only logged.
func (e *Engine) React(messageID, emoji string) { e.post(cmdReact{messageID, emoji}) }

// Reply stages the message as the quote target for the next send. Only one
// target can be staged at a time.
func (e *Engine) Reply(messageID string) { e.post(cmdReply{messageID}) }

// CancelReply drops the staged quote target.
func (e *Engine) CancelReply() { e.post(cmdCancelReply{}) }

// Delete removes the message locally. The backend keeps it, so the next poll
// can bring it back.
func (e *Engine) Delete(messageID string) { e.post(cmdDelete{messageID}) }

// CopyText returns the plain text of the message for clipboard use, best
// effort.
func (e *Engine) CopyText(messageID string) string {
	resp := make(chan string, 1)
	e.post(cmdCopy{messageID: messageID, resp: resp})
	return <-resp
}

// Refresh forces a full reload, re-selecting the most recent conversation the
// way the first page load does.
func (e *Engine) Refresh() { e.post(cmdRefresh{force: true}) }

func (e *Engine) post(ev event) { e.events <- ev }

func (e *Engine) handle(ev event) {
	switch ev := ev.(type) {
	case cmdSelect:
		e.applySelect(ev.peerID)
	case cmdSend:
		e.applySend(ev)
	case cmdReact:
		e.applyReact(ev)
	case cmdReply:
		e.applyReply(ev.messageID)
	case cmdCancelReply:
		e.reply = nil
		e.emit()
	case cmdDelete:
		e.msgs = removeMessage(e.msgs, ev.messageID)
		e.emit()
	case cmdCopy:
		if m := findMessage(e.msgs, ev.messageID); m != nil {
			ev.resp <- m.Content
		} else {
			ev.resp <- ""
		}
	case cmdRefresh:
		e.refresh(ev.force)
	case evConvs:
		e.applyConversations(ev)
	case evThread:
		e.applyThread(ev)
	case evUploadProgress:
		e.applyUploadProgress(ev)
	case evSendResult:
		e.applySendResult(ev)
	case evReactions:
		if m := findMessage(e.msgs, ev.messageID); m != nil {
			m.Reactions = ev.reactions
			e.emit()
		}
	case evClearHighlight:
		if ev.conversation {
			e.hl.clearConversation()
		} else {
			e.hl.clearMessage()
		}
		e.emit()
	}
}

// refresh kicks off the list fetch and, when a conversation is open, the
// thread fetch. force marks the first-load / refresh-button path that is
// allowed to change the selection.
func (e *Engine) refresh(force bool) {
	go func() {
		list, err := e.api.Conversations(e.ctx, e.opts.UserID, e.opts.Type)
		e.post(evConvs{list: list, err: err, force: force})
	}()
	if e.selected != "" {
		e.fetchThread(e.selected, true)
	}
}

func (e *Engine) fetchThread(peerID string, silent bool) {
	go func() {
		msgs, err := e.api.Thread(e.ctx, e.opts.UserID, peerID, e.opts.Type)
		e.post(evThread{peerID: peerID, msgs: msgs, err: err, silent: silent})
	}()
}

func (e *Engine) applySelect(peerID string) {
	if peerID == "" || peerID == e.selected {
		return
	}
	e.selectLocked(peerID)
	e.emit()
}

func (e *Engine) applyConversations(ev evConvs) {
	if ev.err != nil {
		e.lastErr = ev.err
		e.log.Warnw("conversation list fetch failed", "err", ev.err)
		e.emit()
		return
	}
	changed := e.lastErr != nil // clearing the banner is visible
	e.lastErr = nil
	prev := append([]Conversation(nil), e.convs...)
	merged := mergeConversations(ev.list, e.convs, e.selected)

	if ev.force || !e.initialized {
		first := !e.initialized
		e.initialized = true
		before := e.selected
		e.convs = merged
		switch {
		case first && e.opts.DeepLinkPeer != "":
			e.selectLocked(e.opts.DeepLinkPeer)
		case len(e.convs) > 0:
			e.selectLocked(e.convs[0].User.ID)
		}
		merged = e.convs
		if e.selected != before {
			changed = true
		}
	}
	if e.selected != "" {
		clearUnread(merged, e.selected)
	}
	if !conversationsEqual(merged, prev) {
		changed = true
	}
	e.convs = merged
	if e.hl.maybeFireConversation(e.convs) {
		e.armHighlightClear(true)
		changed = true
	}
	if changed {
		e.emit()
	}
}

func conversationsEqual(a, b []Conversation) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !reflect.DeepEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

// selectLocked switches the active conversation from inside the loop without
// going back through the command channel.
func (e *Engine) selectLocked(peerID string) {
	if peerID == e.selected {
		return
	}
	e.selected = peerID
	e.msgs = nil
	e.reply = nil
	if findConversation(e.convs, peerID) == nil {
		e.convs = append([]Conversation{placeholderConversation(peerID, e.opts.PeerRoleLabel)}, e.convs...)
	}
	clearUnread(e.convs, peerID)
	e.fetchThread(peerID, false)
}

func (e *Engine) applyThread(ev evThread) {
	if ev.peerID != e.selected {
		return // stale fetch from before a conversation switch
	}
	if ev.err != nil {
		e.lastErr = ev.err
		e.log.Warnw("thread fetch failed", "peer", ev.peerID, "err", ev.err)
		e.emit()
		return
	}
	e.lastErr = nil
	merged := reconcileThread(ev.msgs, e.msgs, e.opts.UserID)
	if ev.silent && threadsEqual(merged, e.msgs) {
		return // unchanged poll result, skip the re-render
	}
	e.msgs = merged
	clearUnread(e.convs, ev.peerID)
	if e.hl.maybeFireMessage(e.msgs) {
		e.armHighlightClear(false)
	}
	e.emit()
}

func (e *Engine) applySend(ev cmdSend) {
	peer := e.selected
	if peer == "" {
		return
	}
	tempID := e.nextTempID()
	atts := make([]Attachment, len(ev.files))
	for i, f := range ev.files {
		atts[i] = Attachment{Name: f.Name, Type: f.Type, Size: int64(len(f.Data)), Uploading: true}
	}
	reply := e.reply
	msg := Message{
		ID:          tempID,
		SenderID:    e.opts.UserID,
		ReceiverID:  peer,
		Content:     ev.content,
		Attachments: atts,
		ReplyTo:     reply,
		CreatedAt:   time.Now().UTC(),
		IsMine:      true,
	}
	e.msgs = append(e.msgs, msg)
	e.reply = nil
	e.draft = ""
	e.updatePreview(peer, ev.content, len(ev.files), true, msg.CreatedAt)
	e.convs = moveToFront(e.convs, peer)
	e.emit()

	replyToID := ""
	if reply != nil {
		replyToID = reply.ID
	}
	go e.performSend(tempID, peer, ev.content, ev.files, replyToID)
}

// performSend runs off-loop: sequential uploads, then the message POST. Every
// intermediate result is posted back as an event so the loop alone mutates
// state. Multiple sends may run concurrently, each reconciled independently by
// its temp id.
func (e *Engine) performSend(tempID, peerID, content string, files []File, replyToID string) {
	resolved, err := uploadAll(e.ctx, e.api, files, func(i int, att Attachment) {
		e.post(evUploadProgress{tempID: tempID, slot: i, att: att})
	})
	if err == nil {
		var msg Message
		msg, err = e.api.Send(e.ctx, SendRequest{
			SenderID:    e.opts.UserID,
			ReceiverID:  peerID,
			Content:     content,
			Type:        e.opts.Type,
			Attachments: resolved,
			ReplyToID:   replyToID,
		})
		if err == nil {
			e.post(evSendResult{tempID: tempID, peerID: peerID, msg: msg})
			return
		}
	}
	e.post(evSendResult{tempID: tempID, peerID: peerID, err: err, draft: content})
}

func (e *Engine) applyUploadProgress(ev evUploadProgress) {
	m := findMessage(e.msgs, ev.tempID)
	if m == nil || ev.slot >= len(m.Attachments) {
		return
	}
	// copy-on-write: emitted snapshots share the old backing array
	atts := append([]Attachment(nil), m.Attachments...)
	atts[ev.slot] = ev.att
	m.Attachments = atts
	e.emit()
}

func (e *Engine) applySendResult(ev evSendResult) {
	if ev.err != nil {
		e.msgs = removeMessage(e.msgs, ev.tempID)
		e.draft = ev.draft
		e.lastErr = ev.err
		e.log.Warnw("send failed", "peer", ev.peerID, "err", ev.err)
		e.emit()
		return
	}
	confirmed := ev.msg
	confirmed.IsMine = true
	if !replaceMessage(e.msgs, ev.tempID, confirmed) {
		// locally deleted while in flight; the poll owns it now
		return
	}
	if c := findConversation(e.convs, ev.peerID); c != nil {
		c.IsNew = false
	}
	e.emit()
}

func (e *Engine) applyReact(ev cmdReact) {
	m := findMessage(e.msgs, ev.messageID)
	if m == nil || m.Pending() {
		return
	}
	m.Reactions = append(append([]string(nil), m.Reactions...), ev.emoji)
	e.emit()
	go func() {
		list, err := e.api.React(e.ctx, ev.messageID, ev.emoji)
		if err != nil {
			e.log.Warnw("reaction sync failed", "message", ev.messageID, "err", err)
			return
		}
		e.post(evReactions{messageID: ev.messageID, reactions: list})
	}()
}

func (e *Engine) applyReply(messageID string) {
	m := findMessage(e.msgs, messageID)
	if m == nil {
		return
	}
	sender := "You"
	if !m.IsMine {
		if c := findConversation(e.convs, e.selected); c != nil {
			sender = c.User.Name
		} else {
			sender = e.opts.PeerRoleLabel
		}
	}
	e.reply = &ReplyRef{ID: m.ID, Snippet: snippet(m.Content, 80), SenderName: sender}
	e.emit()
}

func (e *Engine) updatePreview(peerID, content string, attachments int, fromMe bool, at time.Time) {
	c := findConversation(e.convs, peerID)
	if c == nil {
		return
	}
	text := content
	if text == "" && attachments > 0 {
		text = "Attachment"
	}
	c.LastMessage = &LastMessage{Content: text, CreatedAt: at, FromMe: fromMe}
}

func (e *Engine) armHighlightClear(conversation bool) {
	time.AfterFunc(e.hlTTL, func() {
		select {
		case e.events <- evClearHighlight{conversation: conversation}:
		case <-e.ctx.Done():
		}
	})
}

func (e *Engine) nextTempID() string {
	n := time.Now().UnixNano()
	if n <= e.lastTemp {
		n = e.lastTemp + 1
	}
	e.lastTemp = n
	return fmt.Sprintf("%s%d", tempIDPrefix, n)
}

func (e *Engine) emit() {
	snap := Snapshot{
		Conversations: append([]Conversation(nil), e.convs...),
		SelectedPeer:  e.selected,
		Messages:      append([]Message(nil), e.msgs...),
		ReplyTo:       e.reply,
		Highlight:     e.hl.active,
		Draft:         e.draft,
		Err:           e.lastErr,
	}
	if e.opts.OnSnapshot != nil {
		e.opts.OnSnapshot(snap)
	}
	for {
		select {
		case e.snaps <- snap:
			return
		default:
			// full: drop the oldest so the newest always lands
			select {
			case <-e.snaps:
			default:
			}
		}
	}
}

func snippet(s string, max int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= max {
		return string(r)
	}
	return string(r[:max])
}
