package store

import (
	"fmt"
	"strings"
	"time"
)

// UpsertMessage inserts or updates a confirmed message (idempotent on
// conversation_id + server_id). Provisional messages never reach the
// cache; they live only in the in-memory thread until confirmed.
func (db *DB) UpsertMessage(m *Message) error {
	if !m.Confirmed() {
		return fmt.Errorf("refusing to cache provisional message %q", m.LocalID)
	}
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO messages (conversation_id, server_id, sender_id, sender_name, content, status, created_at, cached_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(conversation_id, server_id) DO UPDATE SET
			sender_name = excluded.sender_name,
			content = excluded.content,
			status = CASE WHEN excluded.status != '' THEN excluded.status ELSE messages.status END`,
		m.ConversationID, m.ServerID, m.SenderID, m.SenderName, m.Content, m.Status, m.CreatedAt, now)
	return err
}

// ListMessages returns messages for a conversation using keyset pagination
// by creation time, newest first.
func (db *DB) ListMessages(conversationID int64, beforeTs int64, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if beforeTs <= 0 {
		beforeTs = time.Now().UnixMilli() + 1
	}
	rows, err := db.Query(`
		SELECT id, conversation_id, server_id, sender_id, sender_name, content, status, created_at
		FROM messages
		WHERE conversation_id = ? AND created_at < ?
		ORDER BY created_at DESC
		LIMIT ?`, conversationID, beforeTs, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.ServerID, &m.SenderID, &m.SenderName, &m.Content, &m.Status, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// SetMessageStatus updates the delivery status of a single cached message.
func (db *DB) SetMessageStatus(conversationID, serverID int64, status string) error {
	_, err := db.Exec(`
		UPDATE messages SET status = ?
		WHERE conversation_id = ? AND server_id = ?`,
		status, conversationID, serverID)
	return err
}

// MarkMessagesSeen marks the given server ids seen within one conversation.
func (db *DB) MarkMessagesSeen(conversationID int64, serverIDs []int64) error {
	if len(serverIDs) == 0 {
		return nil
	}
	placeholders := strings.Repeat("?,", len(serverIDs))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, 0, len(serverIDs)+1)
	args = append(args, conversationID)
	for _, id := range serverIDs {
		args = append(args, id)
	}
	_, err := db.Exec(`
		UPDATE messages SET status = '`+StatusSeen+`'
		WHERE conversation_id = ? AND server_id IN (`+placeholders+`)`, args...)
	return err
}
