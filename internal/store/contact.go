package store

import "time"

// UpsertContacts replaces the cached contact directory in one transaction.
func (db *DB) UpsertContacts(contacts []Contact) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	for _, c := range contacts {
		if _, err := tx.Exec(`
			INSERT INTO contacts (user_id, name, role, verified, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(user_id) DO UPDATE SET
				name = excluded.name,
				role = excluded.role,
				verified = excluded.verified,
				updated_at = excluded.updated_at`,
			c.UserID, c.Name, c.Role, c.Verified, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListContacts returns all cached contacts.
func (db *DB) ListContacts() ([]Contact, error) {
	rows, err := db.Query(`SELECT user_id, name, role, verified FROM contacts ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var contacts []Contact
	for rows.Next() {
		var c Contact
		if err := rows.Scan(&c.UserID, &c.Name, &c.Role, &c.Verified); err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}
