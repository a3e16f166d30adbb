package api

import (
	"context"
	"fmt"
	"time"

	"github.com/MR-JLTC/tutorchat/internal/session"
	"github.com/MR-JLTC/tutorchat/internal/store"
)

// Wire shapes as the backend sends them. Timestamps are RFC 3339 strings.
type wireParty struct {
	UserID int64  `json:"user_id"`
	Name   string `json:"name"`
}

type wireConversation struct {
	ConversationID     int64     `json:"conversation_id"`
	TutorID            int64     `json:"tutor_id"`
	TuteeID            int64     `json:"tutee_id"`
	Tutor              wireParty `json:"tutor"`
	Tutee              wireParty `json:"tutee"`
	LastMessageID      int64     `json:"last_message_id"`
	LastMessageContent string    `json:"last_message_content"`
	LastMessageSender  int64     `json:"last_message_sender_id"`
	LastMessageStatus  string    `json:"last_message_status"`
	LastMessageAt      string    `json:"last_message_at"`
	CreatedAt          string    `json:"created_at"`
}

type wireMessage struct {
	MessageID      int64     `json:"message_id"`
	ConversationID int64     `json:"conversation_id"`
	SenderID       int64     `json:"sender_id"`
	Sender         wireParty `json:"sender"`
	Content        string    `json:"content"`
	Status         string    `json:"status"`
	CreatedAt      string    `json:"created_at"`
}

type wireUser struct {
	UserID   int64  `json:"user_id"`
	Name     string `json:"name"`
	UserType string `json:"user_type"`
	Verified bool   `json:"is_verified"`
}

// parseTime converts a backend timestamp to unix millis; zero on absence.
func parseTime(s string) int64 {
	if s == "" {
		return 0
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0
	}
	return t.UnixMilli()
}

func (w *wireConversation) toRecord(selfID int64) store.Conversation {
	partner := w.Tutor
	role := session.RoleTutor
	if w.TutorID == selfID {
		partner = w.Tutee
		role = session.RoleTutee
	}
	status := w.LastMessageStatus
	if w.LastMessageContent != "" && status == "" {
		status = store.StatusSent
	}
	lastAt := parseTime(w.LastMessageAt)
	if lastAt == 0 {
		lastAt = parseTime(w.CreatedAt)
	}
	return store.Conversation{
		ID:            w.ConversationID,
		PartnerID:     partner.UserID,
		PartnerName:   partner.Name,
		PartnerRole:   role,
		LastMessage:   w.LastMessageContent,
		LastServerID:  w.LastMessageID,
		LastSenderID:  w.LastMessageSender,
		LastStatus:    status,
		LastMessageAt: lastAt,
		CreatedAt:     parseTime(w.CreatedAt),
	}
}

func (w *wireMessage) toRecord() store.Message {
	status := w.Status
	if status == "" {
		status = store.StatusSent
	}
	return store.Message{
		ConversationID: w.ConversationID,
		ServerID:       w.MessageID,
		SenderID:       w.SenderID,
		SenderName:     w.Sender.Name,
		Content:        w.Content,
		Status:         status,
		CreatedAt:      parseTime(w.CreatedAt),
	}
}

// ListConversations fetches the current user's conversations. selfID picks
// which participant is "the other party" on each record.
func (c *Client) ListConversations(ctx context.Context, selfID int64) ([]store.Conversation, error) {
	var wire []wireConversation
	if err := c.do(ctx, "GET", "/chat/conversations", nil, &wire); err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	convs := make([]store.Conversation, 0, len(wire))
	for i := range wire {
		convs = append(convs, wire[i].toRecord(selfID))
	}
	return convs, nil
}

// ListMessages fetches the full message history of a conversation, oldest
// first as the backend returns it.
func (c *Client) ListMessages(ctx context.Context, conversationID int64) ([]store.Message, error) {
	var wire []wireMessage
	path := fmt.Sprintf("/chat/conversations/%d/messages", conversationID)
	if err := c.do(ctx, "GET", path, nil, &wire); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	msgs := make([]store.Message, 0, len(wire))
	for i := range wire {
		msgs = append(msgs, wire[i].toRecord())
	}
	return msgs, nil
}

// CreateConversation creates (or returns the existing) conversation with
// the target user. Used when promoting a contact placeholder.
func (c *Client) CreateConversation(ctx context.Context, selfID, targetUserID int64) (*store.Conversation, error) {
	var wire wireConversation
	body := map[string]int64{"target_user_id": targetUserID}
	if err := c.do(ctx, "POST", "/chat/conversations", body, &wire); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	conv := wire.toRecord(selfID)
	return &conv, nil
}

// ListContacts fetches all marketplace users; role eligibility filtering
// happens client-side in the roster.
func (c *Client) ListContacts(ctx context.Context) ([]store.Contact, error) {
	var wire []wireUser
	if err := c.do(ctx, "GET", "/users", nil, &wire); err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	contacts := make([]store.Contact, 0, len(wire))
	for _, u := range wire {
		contacts = append(contacts, store.Contact{
			UserID:   u.UserID,
			Name:     u.Name,
			Role:     session.NormalizeRole(u.UserType),
			Verified: u.Verified,
		})
	}
	return contacts, nil
}
