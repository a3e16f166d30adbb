package store

// Delivery statuses in advance order. A message's status never regresses
// within a session.
const (
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusSeen      = "seen"
)

var statusRank = map[string]int{
	StatusSent:      1,
	StatusDelivered: 2,
	StatusSeen:      3,
}

// StatusAdvances reports whether moving from to next is a forward step.
func StatusAdvances(from, to string) bool {
	return statusRank[to] > statusRank[from]
}

// Conversation is a two-party thread from the local user's perspective:
// only the other party is denormalized onto it.
type Conversation struct {
	ID            int64
	PartnerID     int64
	PartnerName   string
	PartnerRole   string
	LastMessage   string
	LastServerID  int64
	LastSenderID  int64
	LastStatus    string
	LastMessageAt int64 // unix ms
	CreatedAt     int64 // unix ms
}

// Contact is a marketplace user eligible to start a conversation with.
type Contact struct {
	UserID   int64
	Name     string
	Role     string
	Verified bool
}

// Message is a chat message. ServerID is zero until the server confirms
// the message; LocalID carries the provisional identity of own sends and
// stays empty on inbound messages.
type Message struct {
	ID             int64
	ConversationID int64
	ServerID       int64
	LocalID        string
	SenderID       int64
	SenderName     string
	Content        string
	Status         string
	CreatedAt      int64 // unix ms
}

// Confirmed reports whether the message carries a server identity.
func (m *Message) Confirmed() bool {
	return m.ServerID != 0
}
