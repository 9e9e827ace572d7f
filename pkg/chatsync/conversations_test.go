package chatsync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func conv(peerID string, unread int) Conversation {
	return Conversation{ID: "c-" + peerID, User: Peer{ID: peerID, Name: peerID}, UnreadCount: unread}
}

func TestMergeConversationsReplacesList(t *testing.T) {
	current := []Conversation{conv("a", 1)}
	fetched := []Conversation{conv("b", 0), conv("a", 2)}

	out := mergeConversations(fetched, current, "a")

	require.Len(t, out, 2)
	assert.Equal(t, "b", out[0].User.ID)
}

func TestMergeConversationsKeepsSelectedPlaceholder(t *testing.T) {
	placeholder := placeholderConversation("new-peer", "Seller")
	current := []Conversation{placeholder, conv("a", 0)}
	fetched := []Conversation{conv("a", 0), conv("b", 1)}

	out := mergeConversations(fetched, current, "new-peer")

	require.Len(t, out, 3)
	assert.Equal(t, "new-peer", out[0].User.ID)
	assert.True(t, out[0].IsNew)
	assert.Equal(t, "Seller", out[0].User.Name)
}

func TestMergeConversationsSelectedPresentInFetch(t *testing.T) {
	current := []Conversation{conv("a", 5)}
	fetched := []Conversation{conv("a", 0)}

	out := mergeConversations(fetched, current, "a")
	require.Len(t, out, 1)
	assert.Equal(t, 0, out[0].UnreadCount)
}

func TestMoveToFront(t *testing.T) {
	convs := []Conversation{conv("a", 0), conv("b", 0), conv("c", 0)}

	convs = moveToFront(convs, "c")
	assert.Equal(t, []string{"c", "a", "b"},
		[]string{convs[0].User.ID, convs[1].User.ID, convs[2].User.ID})

	// already at the front: no-op
	convs = moveToFront(convs, "c")
	assert.Equal(t, "c", convs[0].User.ID)

	// unknown peer: no-op
	convs = moveToFront(convs, "zz")
	assert.Equal(t, "c", convs[0].User.ID)
}

func TestClearUnread(t *testing.T) {
	convs := []Conversation{conv("a", 2), conv("b", 3)}
	clearUnread(convs, "a")
	assert.Equal(t, 0, convs[0].UnreadCount)
	assert.Equal(t, 3, convs[1].UnreadCount)
}
