package chat

import (
	"sort"
	"sync"

	"github.com/MR-JLTC/tutorchat/internal/session"
	"github.com/MR-JLTC/tutorchat/internal/store"
)

// Entry is one row of the aggregated conversation list: either a real
// conversation or a contact placeholder, never both.
type Entry struct {
	Conversation *store.Conversation
	Contact      *store.Contact
}

// Roster merges real conversations with eligible contacts that have no
// conversation yet. Real conversations always sort before placeholders;
// recency orders within the real group.
type Roster struct {
	mu            sync.Mutex
	self          session.User
	conversations []store.Conversation
	placeholders  []store.Contact
}

// NewRoster creates an empty roster.
func NewRoster() *Roster {
	return &Roster{}
}

// eligible applies the role rule for placeholder contacts: a tutor sees
// tutee-role contacts, everyone else sees verified tutors. Self and
// admin accounts never appear.
func eligible(self session.User, c store.Contact) bool {
	if c.UserID == self.UserID || c.Role == session.RoleAdmin {
		return false
	}
	if self.Role == session.RoleTutor {
		return c.Role == session.RoleTutee
	}
	return c.Role == session.RoleTutor && c.Verified
}

// Load replaces the roster from a fresh fetch. Contacts that already have
// a conversation are dropped from the placeholder set.
func (r *Roster) Load(self session.User, convs []store.Conversation, contacts []store.Contact) {
	sorted := make([]store.Conversation, len(convs))
	copy(sorted, convs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].LastMessageAt > sorted[j].LastMessageAt
	})

	partners := make(map[int64]bool, len(sorted))
	for _, c := range sorted {
		partners[c.PartnerID] = true
	}

	var ph []store.Contact
	for _, c := range contacts {
		if eligible(self, c) && !partners[c.UserID] {
			ph = append(ph, c)
		}
	}

	r.mu.Lock()
	r.self = self
	r.conversations = sorted
	r.placeholders = ph
	r.mu.Unlock()
}

// Reset drops all roster state, used on logout.
func (r *Roster) Reset() {
	r.mu.Lock()
	r.self = session.User{}
	r.conversations = nil
	r.placeholders = nil
	r.mu.Unlock()
}

// Entries returns the ordered list: real conversations first, then
// placeholders. The slices behind the pointers are snapshots.
func (r *Roster) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, 0, len(r.conversations)+len(r.placeholders))
	for i := range r.conversations {
		c := r.conversations[i]
		out = append(out, Entry{Conversation: &c})
	}
	for i := range r.placeholders {
		c := r.placeholders[i]
		out = append(out, Entry{Contact: &c})
	}
	return out
}

// Conversation returns the roster's copy of a conversation, nil if absent.
func (r *Roster) Conversation(id int64) *store.Conversation {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.conversations {
		if r.conversations[i].ID == id {
			c := r.conversations[i]
			return &c
		}
	}
	return nil
}

// ApplyMessage updates a conversation's preview from a pushed message and
// re-sorts by recency. Returns false when the conversation is unknown
// locally, signalling the caller to refetch the full list.
func (r *Roster) ApplyMessage(m *store.Message) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.conversations {
		c := &r.conversations[i]
		if c.ID != m.ConversationID {
			continue
		}
		if m.CreatedAt >= c.LastMessageAt {
			c.LastMessage = m.Content
			c.LastServerID = m.ServerID
			c.LastSenderID = m.SenderID
			c.LastStatus = m.Status
			c.LastMessageAt = m.CreatedAt
		}
		sort.SliceStable(r.conversations, func(i, j int) bool {
			return r.conversations[i].LastMessageAt > r.conversations[j].LastMessageAt
		})
		return true
	}
	return false
}

// Promote moves a contact from the placeholder set into the real
// conversation group, once the server has created the conversation.
func (r *Roster) Promote(conv store.Conversation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.placeholders {
		if r.placeholders[i].UserID == conv.PartnerID {
			r.placeholders = append(r.placeholders[:i], r.placeholders[i+1:]...)
			break
		}
	}
	for i := range r.conversations {
		if r.conversations[i].ID == conv.ID {
			return
		}
	}
	r.conversations = append(r.conversations, conv)
	sort.SliceStable(r.conversations, func(i, j int) bool {
		return r.conversations[i].LastMessageAt > r.conversations[j].LastMessageAt
	})
}

// ApplyStatus advances the preview status when the event names the
// conversation's current preview message.
func (r *Roster) ApplyStatus(conversationID, serverID int64, status string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.conversations {
		c := &r.conversations[i]
		if c.ID == conversationID && c.LastServerID == serverID && store.StatusAdvances(c.LastStatus, status) {
			c.LastStatus = status
			return true
		}
	}
	return false
}

// ApplySeen marks the preview seen when the seen batch includes the
// conversation's current preview message.
func (r *Roster) ApplySeen(conversationID int64, serverIDs []int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.conversations {
		c := &r.conversations[i]
		if c.ID != conversationID {
			continue
		}
		for _, id := range serverIDs {
			if id == c.LastServerID && store.StatusAdvances(c.LastStatus, store.StatusSeen) {
				c.LastStatus = store.StatusSeen
				return true
			}
		}
		return false
	}
	return false
}
