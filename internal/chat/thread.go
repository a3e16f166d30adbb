package chat

import (
	"sort"
	"sync"

	"github.com/MR-JLTC/tutorchat/internal/store"
)

// Thread holds the ordered, deduplicated message sequence for the
// currently open conversation. It is seeded from REST history and merged
// with pushed events by the engine; the TUI only reads snapshots.
type Thread struct {
	mu             sync.Mutex
	conversationID int64
	selfID         int64
	messages       []store.Message
}

// NewThread creates an empty thread with no active conversation.
func NewThread() *Thread {
	return &Thread{}
}

// Open replaces the thread's contents with a conversation's loaded
// history, sorted by time and deduplicated by server id. Stale double
// fetches of the same history are therefore harmless.
func (t *Thread) Open(conversationID, selfID int64, history []store.Message) {
	sorted := make([]store.Message, len(history))
	copy(sorted, history)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt < sorted[j].CreatedAt
	})

	seen := make(map[int64]bool, len(sorted))
	msgs := sorted[:0]
	for _, m := range sorted {
		if m.Confirmed() {
			if seen[m.ServerID] {
				continue
			}
			seen[m.ServerID] = true
		}
		msgs = append(msgs, m)
	}

	t.mu.Lock()
	t.conversationID = conversationID
	t.selfID = selfID
	t.messages = msgs
	t.mu.Unlock()
}

// Close discards the thread state, leaving no active conversation.
func (t *Thread) Close() {
	t.mu.Lock()
	t.conversationID = 0
	t.selfID = 0
	t.messages = nil
	t.mu.Unlock()
}

// ConversationID returns the active conversation id, zero when none.
func (t *Thread) ConversationID() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conversationID
}

// SelfID returns the local user id the thread was opened for.
func (t *Thread) SelfID() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.selfID
}

// Messages returns a snapshot of the ordered message list.
func (t *Thread) Messages() []store.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]store.Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// AppendProvisional appends an unconfirmed local send to the end of the
// thread. It is a no-op when the message targets a different conversation.
func (t *Thread) AppendProvisional(m store.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if m.ConversationID != t.conversationID {
		return
	}
	t.messages = append(t.messages, m)
}

// RemoveProvisional drops the provisional entry with the given local id,
// reporting whether it was present. Used to roll back a failed send.
func (t *Thread) RemoveProvisional(localID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.messages {
		if t.messages[i].LocalID == localID && !t.messages[i].Confirmed() {
			t.messages = append(t.messages[:i], t.messages[i+1:]...)
			return true
		}
	}
	return false
}

// Ingest merges a pushed server-confirmed message into the thread:
// a duplicate server id is ignored; an echo of a pending local send with
// identical content replaces the provisional entry in place; anything
// else is appended. Returns true when the thread changed.
//
// Two rapid identical self-sends can collide on the in-place match; the
// first echo claims the oldest pending entry. Accepted limitation.
func (t *Thread) Ingest(m *store.Message) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if m.ConversationID != t.conversationID || !m.Confirmed() {
		return false
	}

	for i := range t.messages {
		if t.messages[i].ServerID == m.ServerID {
			return false
		}
	}

	if m.SenderID == t.selfID {
		for i := range t.messages {
			p := &t.messages[i]
			if !p.Confirmed() && p.SenderID == t.selfID && p.Content == m.Content {
				confirmed := *m
				confirmed.LocalID = p.LocalID
				t.messages[i] = confirmed
				return true
			}
		}
	}

	t.messages = append(t.messages, *m)
	return true
}

// SetStatus advances a confirmed message's delivery status. Regressions
// are ignored; status only moves forward within a session.
func (t *Thread) SetStatus(conversationID, serverID int64, status string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if conversationID != t.conversationID {
		return false
	}
	for i := range t.messages {
		m := &t.messages[i]
		if m.ServerID == serverID && store.StatusAdvances(m.Status, status) {
			m.Status = status
			return true
		}
	}
	return false
}

// MarkSeen marks exactly the listed server ids as seen, leaving every
// other message untouched. Returns true when any status changed.
func (t *Thread) MarkSeen(conversationID int64, serverIDs []int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if conversationID != t.conversationID || len(serverIDs) == 0 {
		return false
	}
	ids := make(map[int64]bool, len(serverIDs))
	for _, id := range serverIDs {
		ids[id] = true
	}
	changed := false
	for i := range t.messages {
		m := &t.messages[i]
		if ids[m.ServerID] && store.StatusAdvances(m.Status, store.StatusSeen) {
			m.Status = store.StatusSeen
			changed = true
		}
	}
	return changed
}
