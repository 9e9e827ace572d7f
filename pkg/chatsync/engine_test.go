package chatsync

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI is an in-memory backend with controllable send completion.
type fakeAPI struct {
	mu          sync.Mutex
	convs       []Conversation
	threads     map[string][]Message
	sends       []SendRequest
	nextID      int
	sendGate    func(SendRequest) // runs before the send completes, may block
	sendErr     error
	uploadErr   error
	convErr     error
	reactResult []string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{threads: make(map[string][]Message)}
}

func (f *fakeAPI) Conversations(_ context.Context, _, _ string) ([]Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.convErr != nil {
		return nil, f.convErr
	}
	return append([]Conversation(nil), f.convs...), nil
}

func (f *fakeAPI) Thread(_ context.Context, _, otherUserID, _ string) ([]Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Message(nil), f.threads[otherUserID]...), nil
}

func (f *fakeAPI) Send(_ context.Context, req SendRequest) (Message, error) {
	f.mu.Lock()
	gate := f.sendGate
	f.mu.Unlock()
	if gate != nil {
		gate(req)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, req)
	if f.sendErr != nil {
		return Message{}, f.sendErr
	}
	f.nextID++
	m := Message{
		ID:          fmt.Sprintf("m%d", f.nextID),
		SenderID:    req.SenderID,
		ReceiverID:  req.ReceiverID,
		Content:     req.Content,
		Attachments: req.Attachments,
		CreatedAt:   time.Now().UTC(),
	}
	if req.ReplyToID != "" {
		m.ReplyTo = &ReplyRef{ID: req.ReplyToID}
	}
	f.threads[req.ReceiverID] = append(f.threads[req.ReceiverID], m)
	return m, nil
}

func (f *fakeAPI) React(_ context.Context, messageID, emoji string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reactResult != nil {
		return append([]string(nil), f.reactResult...), nil
	}
	return []string{emoji}, nil
}

func (f *fakeAPI) Upload(_ context.Context, file File) (Attachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return Attachment{}, f.uploadErr
	}
	return Attachment{
		URL:  "https://files.local/" + file.Name,
		Name: file.Name,
		Type: file.Type,
		Size: int64(len(file.Data)),
	}, nil
}

func (f *fakeAPI) sentRequests() []SendRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SendRequest(nil), f.sends...)
}

// snapCollector records every emitted snapshot.
type snapCollector struct {
	mu  sync.Mutex
	all []Snapshot
}

func (s *snapCollector) add(sn Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.all = append(s.all, sn)
}

func (s *snapCollector) last() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.all) == 0 {
		return Snapshot{}
	}
	return s.all[len(s.all)-1]
}

func (s *snapCollector) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.all)
}

func (s *snapCollector) any(pred func(Snapshot) bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sn := range s.all {
		if pred(sn) {
			return true
		}
	}
	return false
}

const (
	tick = 5 * time.Millisecond
	wait = 2 * time.Second
)

func startEngine(t *testing.T, api API, opts Options) (*Engine, *snapCollector) {
	t.Helper()
	sc := &snapCollector{}
	opts.UserID = "u1"
	if opts.Type == "" {
		opts.Type = TypeProduct
	}
	if opts.PollInterval == 0 {
		opts.PollInterval = time.Hour // keep polls out unless the test wants them
	}
	opts.OnSnapshot = sc.add
	e := New(api, opts)
	e.hlTTL = 50 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = e.Run(ctx) }()
	return e, sc
}

func waitForSelection(t *testing.T, sc *snapCollector, peer string) {
	t.Helper()
	require.Eventually(t, func() bool { return sc.last().SelectedPeer == peer }, wait, tick)
}

func TestOptimisticSendOrderingSurvivesOutOfOrderConfirms(t *testing.T) {
	api := newFakeAPI()
	api.convs = []Conversation{conv("u2", 0)}
	releaseA := make(chan struct{})
	releaseB := make(chan struct{})
	api.sendGate = func(req SendRequest) {
		switch req.Content {
		case "A":
			<-releaseA
		case "B":
			<-releaseB
		}
	}

	e, sc := startEngine(t, api, Options{})
	waitForSelection(t, sc, "u2")

	e.Send("A", nil)
	e.Send("B", nil)
	require.Eventually(t, func() bool {
		m := sc.last().Messages
		return len(m) == 2 && m[0].Content == "A" && m[1].Content == "B" && m[0].Pending() && m[1].Pending()
	}, wait, tick)

	// B confirms first; A must still come first
	close(releaseB)
	require.Eventually(t, func() bool {
		m := sc.last().Messages
		return len(m) == 2 && !m[1].Pending() && m[0].Pending()
	}, wait, tick)
	m := sc.last().Messages
	assert.Equal(t, "A", m[0].Content)
	assert.Equal(t, "B", m[1].Content)

	close(releaseA)
	require.Eventually(t, func() bool {
		m := sc.last().Messages
		return len(m) == 2 && !m[0].Pending() && !m[1].Pending()
	}, wait, tick)
	m = sc.last().Messages
	assert.Equal(t, "A", m[0].Content)
	assert.Equal(t, "B", m[1].Content)
}

func TestSendHelloConfirmsInPlace(t *testing.T) {
	api := newFakeAPI()
	api.convs = []Conversation{conv("u2", 0)}

	e, sc := startEngine(t, api, Options{})
	waitForSelection(t, sc, "u2")

	e.Send("Hello", nil)

	require.Eventually(t, func() bool { return len(sc.last().Messages) == 1 }, wait, tick)
	assert.True(t, sc.any(func(sn Snapshot) bool {
		return len(sn.Messages) == 1 && sn.Messages[0].Pending() &&
			strings.HasPrefix(sn.Messages[0].ID, "temp-") &&
			sn.Messages[0].Content == "Hello" && sn.Messages[0].IsMine
	}), "optimistic entry must appear before confirmation")

	require.Eventually(t, func() bool {
		m := sc.last().Messages
		return len(m) == 1 && m[0].ID == "m1"
	}, wait, tick)
	got := sc.last().Messages[0]
	assert.Equal(t, "Hello", got.Content)
	assert.True(t, got.IsMine)
}

func TestSendFailureRollsBackAndRestoresDraft(t *testing.T) {
	api := newFakeAPI()
	api.convs = []Conversation{conv("u2", 0)}
	api.sendErr = &APIError{Message: "receiver blocked you"}

	e, sc := startEngine(t, api, Options{})
	waitForSelection(t, sc, "u2")

	e.Send("Hello", nil)
	require.Eventually(t, func() bool {
		sn := sc.last()
		return len(sn.Messages) == 0 && sn.Draft == "Hello" && sn.Err != nil
	}, wait, tick)
}

func TestAttachmentsResolvedBeforeSend(t *testing.T) {
	api := newFakeAPI()
	api.convs = []Conversation{conv("u2", 0)}

	e, sc := startEngine(t, api, Options{})
	waitForSelection(t, sc, "u2")

	files := []File{
		{Name: "a.png", Type: "image/png", Data: []byte("aaaa")},
		{Name: "b.pdf", Type: "application/pdf", Data: []byte("bbbb")},
	}
	e.Send("", files)

	require.Eventually(t, func() bool { return len(api.sentRequests()) == 1 }, wait, tick)
	req := api.sentRequests()[0]
	require.Len(t, req.Attachments, 2)
	for _, att := range req.Attachments {
		assert.False(t, att.Uploading)
		assert.True(t, strings.HasPrefix(att.URL, "https://files.local/"))
	}

	// the optimistic entry showed uploading placeholders first
	assert.True(t, sc.any(func(sn Snapshot) bool {
		return len(sn.Messages) == 1 && len(sn.Messages[0].Attachments) == 2 &&
			sn.Messages[0].Attachments[0].Uploading
	}))
}

func TestUploadFailureFailsWholeSend(t *testing.T) {
	api := newFakeAPI()
	api.convs = []Conversation{conv("u2", 0)}
	api.uploadErr = &APIError{Message: "storage down"}

	e, sc := startEngine(t, api, Options{})
	waitForSelection(t, sc, "u2")

	e.Send("with file", []File{{Name: "a.png", Data: []byte("x")}})
	require.Eventually(t, func() bool {
		sn := sc.last()
		return len(sn.Messages) == 0 && sn.Draft == "with file"
	}, wait, tick)
	assert.Empty(t, api.sentRequests(), "message POST must not fire after a failed upload")
}

func TestSilentRefreshSkipsIdenticalState(t *testing.T) {
	api := newFakeAPI()
	api.convs = []Conversation{conv("u2", 0)}
	api.threads["u2"] = []Message{msg("m1", "u2", "hi")}
	blocked := make(chan struct{})
	api.sendGate = func(SendRequest) { <-blocked }
	defer close(blocked)

	e, sc := startEngine(t, api, Options{PollInterval: 20 * time.Millisecond})
	waitForSelection(t, sc, "u2")
	require.Eventually(t, func() bool { return len(sc.last().Messages) == 1 }, wait, tick)

	// a pending optimistic entry rides along while polls keep returning the
	// same confirmed set
	e.Send("pending", nil)
	require.Eventually(t, func() bool { return len(sc.last().Messages) == 2 }, wait, tick)

	// let the send's local preview bump wash out through the next poll
	time.Sleep(100 * time.Millisecond)
	before := sc.count()
	time.Sleep(200 * time.Millisecond) // ~10 poll ticks
	assert.Equal(t, before, sc.count(), "unchanged polls must not emit snapshots")

	m := sc.last().Messages
	require.Len(t, m, 2)
	assert.Equal(t, "m1", m[0].ID)
	assert.True(t, m[1].Pending())
}

func TestSelectClearsUnreadImmediately(t *testing.T) {
	api := newFakeAPI()
	api.convs = []Conversation{conv("u3", 0), conv("u2", 2)}

	e, sc := startEngine(t, api, Options{})
	waitForSelection(t, sc, "u3") // first load selects the latest conversation

	e.Select("u2")
	require.Eventually(t, func() bool {
		sn := sc.last()
		if sn.SelectedPeer != "u2" {
			return false
		}
		c := findConversation(sn.Conversations, "u2")
		return c != nil && c.UnreadCount == 0
	}, wait, tick)
}

func TestDeepLinkToUnknownPeerSynthesizesPlaceholder(t *testing.T) {
	api := newFakeAPI()
	api.convs = []Conversation{conv("u2", 0)}

	_, sc := startEngine(t, api, Options{DeepLinkPeer: "u9", PeerRoleLabel: "Seller"})

	require.Eventually(t, func() bool {
		sn := sc.last()
		return sn.SelectedPeer == "u9" && len(sn.Conversations) == 2 &&
			sn.Conversations[0].User.ID == "u9"
	}, wait, tick)
	first := sc.last().Conversations[0]
	assert.True(t, first.IsNew)
	assert.Equal(t, "Seller", first.User.Name)
}

func TestDeepLinkMessageHighlightFiresOnce(t *testing.T) {
	api := newFakeAPI()
	api.convs = []Conversation{conv("u2", 0)}
	api.threads["u2"] = []Message{msg("m1", "u2", "a"), msg("m2", "u2", "b")}

	_, sc := startEngine(t, api, Options{
		DeepLinkPeer:    "u2",
		DeepLinkMessage: "m2",
		PollInterval:    20 * time.Millisecond,
	})

	require.Eventually(t, func() bool { return sc.last().Highlight.MessageID == "m2" }, wait, tick)
	require.Eventually(t, func() bool { return sc.last().Highlight.MessageID == "" }, wait, tick)

	// several more poll cycles: the flash must not re-arm
	time.Sleep(150 * time.Millisecond)
	assert.Empty(t, sc.last().Highlight.MessageID)
}

func TestReactionOptimisticThenServerList(t *testing.T) {
	api := newFakeAPI()
	api.convs = []Conversation{conv("u2", 0)}
	api.threads["u2"] = []Message{msg("m1", "u2", "hi")}
	api.reactResult = []string{"👍", "❤️"} // another viewer reacted concurrently

	e, sc := startEngine(t, api, Options{})
	waitForSelection(t, sc, "u2")
	require.Eventually(t, func() bool { return len(sc.last().Messages) == 1 }, wait, tick)

	e.React("m1", "👍")

	assert.Eventually(t, func() bool {
		m := sc.last().Messages
		return len(m) == 1 && len(m[0].Reactions) == 2
	}, wait, tick)
	assert.True(t, sc.any(func(sn Snapshot) bool {
		return len(sn.Messages) == 1 && len(sn.Messages[0].Reactions) == 1 &&
			sn.Messages[0].Reactions[0] == "👍"
	}), "optimistic reaction must show before the server list lands")
	assert.Equal(t, []string{"👍", "❤️"}, sc.last().Messages[0].Reactions)
}

func TestReplyStagingAttachesAndClears(t *testing.T) {
	api := newFakeAPI()
	c := conv("u2", 0)
	c.User.Name = "Bob"
	api.convs = []Conversation{c}
	api.threads["u2"] = []Message{msg("m1", "u2", "hello there friend")}

	e, sc := startEngine(t, api, Options{})
	waitForSelection(t, sc, "u2")
	require.Eventually(t, func() bool { return len(sc.last().Messages) == 1 }, wait, tick)

	e.Reply("m1")
	require.Eventually(t, func() bool {
		r := sc.last().ReplyTo
		return r != nil && r.ID == "m1" && r.SenderName == "Bob" && r.Snippet == "hello there friend"
	}, wait, tick)

	e.Send("ok", nil)
	require.Eventually(t, func() bool { return len(api.sentRequests()) == 1 }, wait, tick)
	assert.Equal(t, "m1", api.sentRequests()[0].ReplyToID)
	require.Eventually(t, func() bool { return sc.last().ReplyTo == nil }, wait, tick)
}

func TestDeleteIsLocalOnlyUntilNextPoll(t *testing.T) {
	api := newFakeAPI()
	api.convs = []Conversation{conv("u2", 0)}
	api.threads["u2"] = []Message{msg("m1", "u2", "hi")}

	e, sc := startEngine(t, api, Options{PollInterval: 30 * time.Millisecond})
	waitForSelection(t, sc, "u2")
	require.Eventually(t, func() bool { return len(sc.last().Messages) == 1 }, wait, tick)

	e.Delete("m1")
	require.Eventually(t, func() bool {
		return sc.any(func(sn Snapshot) bool { return len(sn.Messages) == 0 })
	}, wait, tick)

	// the backend still has it; the next poll brings it back
	require.Eventually(t, func() bool { return len(sc.last().Messages) == 1 }, wait, tick)
}

func TestSendMovesConversationToFront(t *testing.T) {
	api := newFakeAPI()
	api.convs = []Conversation{conv("u2", 0), conv("u3", 0)}

	e, sc := startEngine(t, api, Options{})
	waitForSelection(t, sc, "u2")

	e.Select("u3")
	waitForSelection(t, sc, "u3")

	e.Send("yo", nil)
	require.Eventually(t, func() bool {
		convs := sc.last().Conversations
		return len(convs) == 2 && convs[0].User.ID == "u3"
	}, wait, tick)
}

func TestCopyTextBestEffort(t *testing.T) {
	api := newFakeAPI()
	api.convs = []Conversation{conv("u2", 0)}
	api.threads["u2"] = []Message{msg("m1", "u2", "copy me")}

	e, sc := startEngine(t, api, Options{})
	waitForSelection(t, sc, "u2")
	require.Eventually(t, func() bool { return len(sc.last().Messages) == 1 }, wait, tick)

	assert.Equal(t, "copy me", e.CopyText("m1"))
	assert.Equal(t, "", e.CopyText("nope"))
}

func TestListFetchFailureShowsBannerUntilNextSuccess(t *testing.T) {
	api := newFakeAPI()
	api.mu.Lock()
	api.convErr = &APIError{Message: "boom"}
	api.mu.Unlock()

	e, sc := startEngine(t, api, Options{})
	require.Eventually(t, func() bool { return sc.last().Err != nil }, wait, tick)

	api.mu.Lock()
	api.convErr = nil
	api.convs = []Conversation{conv("u2", 0)}
	api.mu.Unlock()

	e.Refresh() // manual retry, the engine never retries on its own
	require.Eventually(t, func() bool {
		sn := sc.last()
		return sn.Err == nil && len(sn.Conversations) == 1
	}, wait, tick)
}
