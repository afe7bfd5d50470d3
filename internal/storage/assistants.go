package storage

import "database/sql"

// VirtualAssistant is a configured agent: a prompt, a model, and the
// knowledge bases and tools it may use.
type VirtualAssistant struct {
	ID             string
	Name           string
	Prompt         string
	ModelName      string
	KnowledgeBases []string // knowledge base IDs
	Tools          []string // MCP server or builtin toolgroup names
	CreatedBy      *string
	CreatedAt      string
	UpdatedAt      string
}

// CreateVirtualAssistant inserts an assistant and its associations.
func (d *Database) CreateVirtualAssistant(va VirtualAssistant) error {
	now := nowRFC3339()
	return d.execTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(
			`INSERT INTO virtual_assistants (id, name, prompt, model_name, created_by, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			va.ID, va.Name, va.Prompt, va.ModelName, nullable(va.CreatedBy), now, now,
		); err != nil {
			return err
		}
		return insertAssociations(tx, va.ID, va.KnowledgeBases, va.Tools)
	})
}

// GetVirtualAssistant returns an assistant with its associations.
func (d *Database) GetVirtualAssistant(id string) (*VirtualAssistant, error) {
	var va VirtualAssistant
	var createdBy sql.NullString
	err := d.queryRow(
		`SELECT id, name, prompt, model_name, created_by, created_at, updated_at
		 FROM virtual_assistants WHERE id = ?`, id,
	).Scan(&va.ID, &va.Name, &va.Prompt, &va.ModelName, &createdBy, &va.CreatedAt, &va.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	va.CreatedBy = fromNull(createdBy)
	if err := d.loadAssociations(&va); err != nil {
		return nil, err
	}
	return &va, nil
}

// ListVirtualAssistants returns all assistants with their associations.
func (d *Database) ListVirtualAssistants() ([]VirtualAssistant, error) {
	rows, err := d.query(
		`SELECT id, name, prompt, model_name, created_by, created_at, updated_at
		 FROM virtual_assistants ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vas []VirtualAssistant
	for rows.Next() {
		var va VirtualAssistant
		var createdBy sql.NullString
		if err := rows.Scan(&va.ID, &va.Name, &va.Prompt, &va.ModelName, &createdBy, &va.CreatedAt, &va.UpdatedAt); err != nil {
			return nil, err
		}
		va.CreatedBy = fromNull(createdBy)
		vas = append(vas, va)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range vas {
		if err := d.loadAssociations(&vas[i]); err != nil {
			return nil, err
		}
	}
	return vas, nil
}

// UpdateVirtualAssistant replaces an assistant and rewrites its
// associations.
func (d *Database) UpdateVirtualAssistant(va VirtualAssistant) error {
	return d.execTx(func(tx *sql.Tx) error {
		result, err := tx.Exec(
			`UPDATE virtual_assistants SET name = ?, prompt = ?, model_name = ?, updated_at = ?
			 WHERE id = ?`,
			va.Name, va.Prompt, va.ModelName, nowRFC3339(), va.ID,
		)
		if err != nil {
			return err
		}
		if err := requireRowAffected(result, "virtual assistant", va.ID); err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM virtual_assistant_knowledge_bases WHERE virtual_assistant_id = ?`, va.ID); err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM virtual_assistant_tools WHERE virtual_assistant_id = ?`, va.ID); err != nil {
			return err
		}
		return insertAssociations(tx, va.ID, va.KnowledgeBases, va.Tools)
	})
}

// DeleteVirtualAssistant removes an assistant. Associations cascade.
func (d *Database) DeleteVirtualAssistant(id string) error {
	result, err := d.exec(`DELETE FROM virtual_assistants WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRowAffected(result, "virtual assistant", id)
}

func insertAssociations(tx *sql.Tx, vaID string, kbs, tools []string) error {
	for _, kb := range kbs {
		if _, err := tx.Exec(
			`INSERT OR IGNORE INTO virtual_assistant_knowledge_bases (virtual_assistant_id, knowledge_base_id) VALUES (?, ?)`,
			vaID, kb,
		); err != nil {
			return err
		}
	}
	for _, tool := range tools {
		if _, err := tx.Exec(
			`INSERT OR IGNORE INTO virtual_assistant_tools (virtual_assistant_id, tool_id) VALUES (?, ?)`,
			vaID, tool,
		); err != nil {
			return err
		}
	}
	return nil
}

func (d *Database) loadAssociations(va *VirtualAssistant) error {
	kbs, err := d.stringColumn(
		`SELECT knowledge_base_id FROM virtual_assistant_knowledge_bases WHERE virtual_assistant_id = ? ORDER BY knowledge_base_id`,
		va.ID,
	)
	if err != nil {
		return err
	}
	tools, err := d.stringColumn(
		`SELECT tool_id FROM virtual_assistant_tools WHERE virtual_assistant_id = ? ORDER BY tool_id`,
		va.ID,
	)
	if err != nil {
		return err
	}
	va.KnowledgeBases = kbs
	va.Tools = tools
	return nil
}

func (d *Database) stringColumn(query string, args ...any) ([]string, error) {
	rows, err := d.query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
