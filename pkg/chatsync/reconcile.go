package chatsync

import "reflect"

// reconcileThread merges a freshly fetched server batch with the current local
// thread: the result is the server messages, in server order, followed by the
// local optimistic entries that are still unconfirmed. Confirmed local entries
// are dropped in favor of the server copy; a pending entry whose id the server
// already returned (confirmation raced the poll) is dropped too. Every server
// message is re-annotated with IsMine from the viewer id, never trusted from
// the payload.
func reconcileThread(server, local []Message, viewerID string) []Message {
	confirmed := make(map[string]struct{}, len(server))
	merged := make([]Message, 0, len(server)+4)
	for _, m := range server {
		m.IsMine = m.SenderID == viewerID
		confirmed[m.ID] = struct{}{}
		merged = append(merged, m)
	}
	for _, m := range local {
		if !m.Pending() {
			continue
		}
		if _, ok := confirmed[m.ID]; ok {
			continue
		}
		merged = append(merged, m)
	}
	return merged
}

// threadsEqual reports structural equality of two threads. Silent background
// polls use it to skip the snapshot when nothing changed.
func threadsEqual(a, b []Message) bool {
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

// replaceMessage swaps the entry with the given id for repl, keeping its list
// position. Returns false when the id is gone (e.g. locally deleted while the
// send was in flight).
func replaceMessage(msgs []Message, id string, repl Message) bool {
	for i := range msgs {
		if msgs[i].ID == id {
			msgs[i] = repl
			return true
		}
	}
	return false
}

// removeMessage deletes the entry with the given id, preserving order.
func removeMessage(msgs []Message, id string) []Message {
	for i := range msgs {
		if msgs[i].ID == id {
			return append(msgs[:i], msgs[i+1:]...)
		}
	}
	return msgs
}

func findMessage(msgs []Message, id string) *Message {
	for i := range msgs {
		if msgs[i].ID == id {
			return &msgs[i]
		}
	}
	return nil
}
