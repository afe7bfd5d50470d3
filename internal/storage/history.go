package storage

import "database/sql"

// ChatHistory records one exchange between a user and an assistant.
type ChatHistory struct {
	ID                 string
	VirtualAssistantID *string
	UserID             *string
	Message            string
	Response           string
	CreatedAt          string
}

// CreateChatHistory inserts an exchange record.
func (d *Database) CreateChatHistory(h ChatHistory) error {
	_, err := d.exec(
		`INSERT INTO chat_history (id, virtual_assistant_id, user_id, message, response, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		h.ID, nullable(h.VirtualAssistantID), nullable(h.UserID), h.Message, h.Response, nowRFC3339(),
	)
	return err
}

// GetChatHistory returns one exchange by ID.
func (d *Database) GetChatHistory(id string) (*ChatHistory, error) {
	row := d.queryRow(historySelect+` WHERE id = ?`, id)
	var h ChatHistory
	var vaID, userID sql.NullString
	err := row.Scan(&h.ID, &vaID, &userID, &h.Message, &h.Response, &h.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	h.VirtualAssistantID = fromNull(vaID)
	h.UserID = fromNull(userID)
	return &h, nil
}

// ListChatHistoryForUser returns a user's exchanges, newest first.
func (d *Database) ListChatHistoryForUser(userID string) ([]ChatHistory, error) {
	return d.listHistory(historySelect+` WHERE user_id = ? ORDER BY created_at DESC`, userID)
}

// ListAllChatHistory returns every exchange, newest first.
func (d *Database) ListAllChatHistory() ([]ChatHistory, error) {
	return d.listHistory(historySelect + ` ORDER BY created_at DESC`)
}

// DeleteChatHistory removes one exchange.
func (d *Database) DeleteChatHistory(id string) error {
	result, err := d.exec(`DELETE FROM chat_history WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRowAffected(result, "chat history", id)
}

// DeleteChatHistoryForUser removes all of a user's exchanges.
func (d *Database) DeleteChatHistoryForUser(userID string) (int, error) {
	result, err := d.exec(`DELETE FROM chat_history WHERE user_id = ?`, userID)
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	return int(n), err
}

const historySelect = `SELECT id, virtual_assistant_id, user_id, message, response, created_at FROM chat_history`

func (d *Database) listHistory(query string, args ...any) ([]ChatHistory, error) {
	rows, err := d.query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ChatHistory
	for rows.Next() {
		var h ChatHistory
		var vaID, userID sql.NullString
		if err := rows.Scan(&h.ID, &vaID, &userID, &h.Message, &h.Response, &h.CreatedAt); err != nil {
			return nil, err
		}
		h.VirtualAssistantID = fromNull(vaID)
		h.UserID = fromNull(userID)
		items = append(items, h)
	}
	return items, rows.Err()
}
