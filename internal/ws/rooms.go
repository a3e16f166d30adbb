package ws

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// JoinConversation subscribes to a conversation's update channel. Joining
// is idempotent and safe to repeat; there is no leave signal. Joined rooms
// are remembered and re-joined after every reconnect.
func (m *Manager) JoinConversation(conversationID int64) {
	m.mu.Lock()
	m.rooms[conversationID] = true
	m.mu.Unlock()

	m.emitJoin(conversationID)
}

func (m *Manager) emitJoin(conversationID int64) {
	data, _ := json.Marshal(map[string]int64{"conversationId": conversationID})
	if err := m.emit(&envelope{Event: evtJoinConversation, Data: data}); err != nil {
		m.logger.Debug("join deferred until connected", zap.Int64("conversation_id", conversationID))
	}
}

func (m *Manager) rejoinRooms() {
	m.mu.Lock()
	rooms := make([]int64, 0, len(m.rooms))
	for id := range m.rooms {
		rooms = append(rooms, id)
	}
	m.mu.Unlock()

	for _, id := range rooms {
		m.emitJoin(id)
	}
}

// SendMessage emits a message over the channel. cb fires exactly once:
// with nil when the server acknowledges, with an error on rejection,
// timeout, or connection loss.
func (m *Manager) SendMessage(conversationID int64, content string, cb func(error)) error {
	m.mu.Lock()
	if m.conn == nil {
		m.mu.Unlock()
		return ErrNotConnected
	}
	m.nextID++
	id := m.nextID
	p := &pendingAck{cb: cb}
	p.timer = time.AfterFunc(ackTimeout, func() {
		m.mu.Lock()
		_, ok := m.acks[id]
		delete(m.acks, id)
		m.mu.Unlock()
		if ok {
			cb(ErrAckTimeout)
		}
	})
	m.acks[id] = p
	m.mu.Unlock()

	data, _ := json.Marshal(map[string]any{
		"conversationId": conversationID,
		"content":        content,
	})
	if err := m.emit(&envelope{Event: evtSendMessage, ID: id, Data: data}); err != nil {
		m.mu.Lock()
		delete(m.acks, id)
		m.mu.Unlock()
		p.timer.Stop()
		return err
	}
	return nil
}

// MarkSeen tells the server the local user has seen a conversation's
// messages. Fire-and-forget; the resulting seen event comes back pushed.
func (m *Manager) MarkSeen(conversationID int64) {
	data, _ := json.Marshal(map[string]int64{"conversationId": conversationID})
	if err := m.emit(&envelope{Event: evtMarkSeen, Data: data}); err != nil {
		m.logger.Debug("mark seen skipped", zap.Int64("conversation_id", conversationID), zap.Error(err))
	}
}
