package chatsync

// mergeConversations replaces the local list with the fetched one while
// keeping the selected peer visible: when the selection is not in the fetched
// list yet (a deep-linked conversation whose first message has not been sent,
// or not confirmed server-side) the previous local entry is synthesized back
// in at the front.
func mergeConversations(fetched []Conversation, current []Conversation, selectedPeer string) []Conversation {
	if selectedPeer == "" {
		return fetched
	}
	for _, c := range fetched {
		if c.User.ID == selectedPeer {
			return fetched
		}
	}
	if prev := findConversation(current, selectedPeer); prev != nil {
		out := make([]Conversation, 0, len(fetched)+1)
		out = append(out, *prev)
		out = append(out, fetched...)
		return out
	}
	return fetched
}

// placeholderConversation backs a deep link to a peer the viewer never talked
// to. The label is the configured peer role until a list poll brings the real
// profile.
func placeholderConversation(peerID, roleLabel string) Conversation {
	return Conversation{
		ID:    "new-" + peerID,
		User:  Peer{ID: peerID, Name: roleLabel, Role: roleLabel},
		IsNew: true,
	}
}

// moveToFront bumps the peer's conversation to the head of the list, the
// local most-recent-first guess ahead of the next poll confirming server
// ordering.
func moveToFront(convs []Conversation, peerID string) []Conversation {
	for i := range convs {
		if convs[i].User.ID == peerID {
			if i == 0 {
				return convs
			}
			c := convs[i]
			copy(convs[1:i+1], convs[:i])
			convs[0] = c
			return convs
		}
	}
	return convs
}

// clearUnread zeroes the peer's unread counter locally. The server resets its
// own counter as a side effect of the thread fetch; the next list poll
// confirms.
func clearUnread(convs []Conversation, peerID string) {
	for i := range convs {
		if convs[i].User.ID == peerID {
			convs[i].UnreadCount = 0
			return
		}
	}
}

func findConversation(convs []Conversation, peerID string) *Conversation {
	for i := range convs {
		if convs[i].User.ID == peerID {
			return &convs[i]
		}
	}
	return nil
}
