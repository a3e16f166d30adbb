package chat

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MR-JLTC/tutorchat/internal/bus"
	"github.com/MR-JLTC/tutorchat/internal/store"
)

var (
	ErrEmptyMessage   = errors.New("message is empty")
	ErrNoConversation = errors.New("no conversation is open")
	ErrOffline        = errors.New("not connected")
)

// Channel is the slice of the connection manager the outbox sends over.
type Channel interface {
	SendMessage(conversationID int64, content string, cb func(error)) error
	Live() bool
}

// SendFailure is the payload of chat.send_failed events. Content carries
// the original input text so the composer can restore it for a retry.
type SendFailure struct {
	ConversationID int64
	LocalID        string
	Content        string
	Err            error
}

// Outbox implements optimistic sends: the message appears in the thread
// immediately under a provisional id, and is rolled back if the server
// acknowledgement reports failure or times out.
type Outbox struct {
	ch     Channel
	thread *Thread
	bus    *bus.Bus
	logger *zap.Logger
}

// NewOutbox creates an outbox sending through ch into thread.
func NewOutbox(ch Channel, thread *Thread, b *bus.Bus, logger *zap.Logger) *Outbox {
	return &Outbox{ch: ch, thread: thread, bus: b, logger: logger}
}

// Send validates and dispatches one message for the open conversation.
// On success the provisional entry stays in the thread until the server
// echo replaces it; the caller should clear the composer only when Send
// returns nil.
func (o *Outbox) Send(content, senderName string) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return ErrEmptyMessage
	}
	conversationID := o.thread.ConversationID()
	if conversationID == 0 {
		return ErrNoConversation
	}
	if !o.ch.Live() {
		return ErrOffline
	}

	localID := uuid.NewString()
	o.thread.AppendProvisional(store.Message{
		ConversationID: conversationID,
		LocalID:        localID,
		SenderID:       o.thread.SelfID(),
		SenderName:     senderName,
		Content:        trimmed,
		Status:         store.StatusSent,
		CreatedAt:      time.Now().UnixMilli(),
	})
	o.publishThread(conversationID)

	err := o.ch.SendMessage(conversationID, trimmed, func(ackErr error) {
		if ackErr == nil {
			return
		}
		o.rollback(conversationID, localID, content, ackErr)
	})
	if err != nil {
		o.rollback(conversationID, localID, content, err)
		return err
	}
	return nil
}

// rollback removes the provisional entry and announces the failure so
// the composer can restore the original text.
func (o *Outbox) rollback(conversationID int64, localID, content string, err error) {
	o.logger.Warn("send failed",
		zap.Int64("conversation_id", conversationID),
		zap.String("local_id", localID),
		zap.Error(err))
	if o.thread.RemoveProvisional(localID) {
		o.publishThread(conversationID)
	}
	o.bus.Publish(bus.Event{
		Kind:      bus.KindChatSendFailed,
		Timestamp: time.Now(),
		Payload: &SendFailure{
			ConversationID: conversationID,
			LocalID:        localID,
			Content:        content,
			Err:            err,
		},
	})
}

func (o *Outbox) publishThread(conversationID int64) {
	o.bus.Publish(bus.Event{
		Kind:      bus.KindChatThread,
		Timestamp: time.Now(),
		Payload:   conversationID,
	})
}
