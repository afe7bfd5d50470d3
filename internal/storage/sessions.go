package storage

import "database/sql"

// ChatSession caches the runtime agent and session created for a
// user/assistant pair so repeat turns reuse them. The key is
// "userID:assistantID"; State holds raw JSON with agent_id and
// session_id.
type ChatSession struct {
	ID        string
	State     string
	CreatedAt string
	UpdatedAt string
}

// GetChatSession returns a cached session by key, or nil.
func (d *Database) GetChatSession(id string) (*ChatSession, error) {
	row := d.queryRow(`SELECT id, session_state, created_at, updated_at FROM chat_sessions WHERE id = ?`, id)
	var s ChatSession
	err := row.Scan(&s.ID, &s.State, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// PutChatSession inserts or replaces a cached session.
func (d *Database) PutChatSession(id, state string) error {
	now := nowRFC3339()
	_, err := d.exec(
		`INSERT INTO chat_sessions (id, session_state, created_at, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET session_state = excluded.session_state, updated_at = excluded.updated_at`,
		id, state, now, now,
	)
	return err
}

// DeleteChatSession drops a cached session. Missing rows are not an
// error; a stale session is simply recreated on the next turn.
func (d *Database) DeleteChatSession(id string) error {
	_, err := d.exec(`DELETE FROM chat_sessions WHERE id = ?`, id)
	return err
}
