package storage

import "database/sql"

// Guardrail is a named safety rule set. Rules holds raw JSON.
type Guardrail struct {
	ID        string
	Name      string
	Rules     string
	CreatedBy *string
	CreatedAt string
	UpdatedAt string
}

// CreateGuardrail inserts a new guardrail.
func (d *Database) CreateGuardrail(g Guardrail) error {
	now := nowRFC3339()
	_, err := d.exec(
		`INSERT INTO guardrails (id, name, rules, created_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		g.ID, g.Name, g.Rules, nullable(g.CreatedBy), now, now,
	)
	return err
}

// GetGuardrail returns a guardrail by ID.
func (d *Database) GetGuardrail(id string) (*Guardrail, error) {
	row := d.queryRow(guardrailSelect+` WHERE id = ?`, id)
	var g Guardrail
	var createdBy sql.NullString
	err := row.Scan(&g.ID, &g.Name, &g.Rules, &createdBy, &g.CreatedAt, &g.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	g.CreatedBy = fromNull(createdBy)
	return &g, nil
}

// ListGuardrails returns all guardrails.
func (d *Database) ListGuardrails() ([]Guardrail, error) {
	rows, err := d.query(guardrailSelect + ` ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Guardrail
	for rows.Next() {
		var g Guardrail
		var createdBy sql.NullString
		if err := rows.Scan(&g.ID, &g.Name, &g.Rules, &createdBy, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		g.CreatedBy = fromNull(createdBy)
		items = append(items, g)
	}
	return items, rows.Err()
}

// UpdateGuardrail replaces mutable fields of an existing guardrail.
func (d *Database) UpdateGuardrail(g Guardrail) error {
	result, err := d.exec(
		`UPDATE guardrails SET name = ?, rules = ?, updated_at = ? WHERE id = ?`,
		g.Name, g.Rules, nowRFC3339(), g.ID,
	)
	if err != nil {
		return err
	}
	return requireRowAffected(result, "guardrail", g.ID)
}

// DeleteGuardrail removes a guardrail.
func (d *Database) DeleteGuardrail(id string) error {
	result, err := d.exec(`DELETE FROM guardrails WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRowAffected(result, "guardrail", id)
}

const guardrailSelect = `SELECT id, name, rules, created_by, created_at, updated_at FROM guardrails`
