package store

import (
	"database/sql"
	"time"
)

// UpsertConversation inserts or updates a conversation record.
func (db *DB) UpsertConversation(c *Conversation) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO conversations (id, partner_id, partner_name, partner_role, last_message, last_server_id, last_sender_id, last_status, last_message_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			partner_name = excluded.partner_name,
			partner_role = excluded.partner_role,
			last_message = excluded.last_message,
			last_server_id = excluded.last_server_id,
			last_sender_id = excluded.last_sender_id,
			last_status = excluded.last_status,
			last_message_at = MAX(conversations.last_message_at, excluded.last_message_at),
			updated_at = excluded.updated_at`,
		c.ID, c.PartnerID, c.PartnerName, c.PartnerRole, c.LastMessage, c.LastServerID, c.LastSenderID, c.LastStatus, c.LastMessageAt, c.CreatedAt, now)
	return err
}

// ListConversations returns conversations sorted by last message timestamp descending.
func (db *DB) ListConversations(limit int) ([]Conversation, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(`
		SELECT id, partner_id, partner_name, partner_role, last_message, last_server_id, last_sender_id, last_status, last_message_at, created_at
		FROM conversations
		ORDER BY last_message_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var convs []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.PartnerID, &c.PartnerName, &c.PartnerRole, &c.LastMessage, &c.LastServerID, &c.LastSenderID, &c.LastStatus, &c.LastMessageAt, &c.CreatedAt); err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

// GetConversation returns a single conversation by id, or nil when absent.
func (db *DB) GetConversation(id int64) (*Conversation, error) {
	var c Conversation
	err := db.QueryRow(`
		SELECT id, partner_id, partner_name, partner_role, last_message, last_server_id, last_sender_id, last_status, last_message_at, created_at
		FROM conversations
		WHERE id = ?`, id).
		Scan(&c.ID, &c.PartnerID, &c.PartnerName, &c.PartnerRole, &c.LastMessage, &c.LastServerID, &c.LastSenderID, &c.LastStatus, &c.LastMessageAt, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
