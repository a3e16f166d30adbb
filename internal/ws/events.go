package ws

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/MR-JLTC/tutorchat/internal/store"
)

// Event names on the wire, matching the backend's socket contract.
const (
	evtNewMessage    = "newMessage"
	evtPresence      = "presence"
	evtMessageStatus = "messageStatus"
	evtMessagesSeen  = "messagesSeen"
	evtAck           = "ack"

	evtJoinConversation = "joinConversation"
	evtSendMessage      = "sendMessage"
	evtMarkSeen         = "markSeen"
)

// envelope frames every message on the channel. ID is only set on
// ack-correlated client emits and their acks.
type envelope struct {
	Event string          `json:"event"`
	ID    uint64          `json:"id,omitempty"`
	OK    *bool           `json:"ok,omitempty"`
	Error string          `json:"error,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// PresenceEvent reports a contact's online/offline transition.
type PresenceEvent struct {
	UserID     int64  `json:"userId"`
	Status     string `json:"status"` // "online" or "offline"
	LastActive string `json:"lastActive,omitempty"`
}

// Online reports whether the transition is to online.
func (p *PresenceEvent) Online() bool { return p.Status == "online" }

// StatusEvent advances a single message's delivery status.
type StatusEvent struct {
	ConversationID int64  `json:"conversation_id"`
	MessageID      int64  `json:"message_id"`
	Status         string `json:"status"`
}

// SeenEvent marks a batch of messages seen within one conversation.
type SeenEvent struct {
	ConversationID int64   `json:"conversation_id"`
	MessageIDs     []int64 `json:"message_ids"`
}

type wireMessage struct {
	MessageID      int64  `json:"message_id"`
	ConversationID int64  `json:"conversation_id"`
	SenderID       int64  `json:"sender_id"`
	Sender         struct {
		Name string `json:"name"`
	} `json:"sender"`
	Content   string `json:"content"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

func (w *wireMessage) toRecord() *store.Message {
	status := w.Status
	if status == "" {
		status = store.StatusSent
	}
	createdAt := int64(0)
	if t, err := time.Parse(time.RFC3339, w.CreatedAt); err == nil {
		createdAt = t.UnixMilli()
	}
	if createdAt == 0 {
		createdAt = time.Now().UnixMilli()
	}
	return &store.Message{
		ConversationID: w.ConversationID,
		ServerID:       w.MessageID,
		SenderID:       w.SenderID,
		SenderName:     w.Sender.Name,
		Content:        w.Content,
		Status:         status,
		CreatedAt:      createdAt,
	}
}

// decodeEvent turns a server envelope into a typed bus payload.
// Unknown events decode to nil and are skipped by the read loop.
func decodeEvent(env *envelope) (any, error) {
	switch env.Event {
	case evtNewMessage:
		var w wireMessage
		if err := json.Unmarshal(env.Data, &w); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Event, err)
		}
		return w.toRecord(), nil
	case evtPresence:
		var p PresenceEvent
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Event, err)
		}
		return &p, nil
	case evtMessageStatus:
		var s StatusEvent
		if err := json.Unmarshal(env.Data, &s); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Event, err)
		}
		return &s, nil
	case evtMessagesSeen:
		var s SeenEvent
		if err := json.Unmarshal(env.Data, &s); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Event, err)
		}
		return &s, nil
	}
	return nil, nil
}
