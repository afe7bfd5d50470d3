package storage

import "database/sql"

// MCPServer is a registered Model Context Protocol tool server.
// Configuration holds raw JSON from the runtime catalog.
type MCPServer struct {
	ID            string
	Name          string
	Title         string
	Description   *string
	EndpointURL   string
	Configuration *string
	CreatedBy     *string
	CreatedAt     string
	UpdatedAt     string
}

// CreateMCPServer inserts a new MCP server record.
func (d *Database) CreateMCPServer(s MCPServer) error {
	now := nowRFC3339()
	_, err := d.exec(
		`INSERT INTO mcp_servers (id, name, title, description, endpoint_url, configuration, created_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.Name, s.Title, nullable(s.Description), s.EndpointURL,
		nullable(s.Configuration), nullable(s.CreatedBy), now, now,
	)
	return err
}

// GetMCPServer returns an MCP server by ID.
func (d *Database) GetMCPServer(id string) (*MCPServer, error) {
	return scanMCPServer(d.queryRow(mcpSelect+` WHERE id = ?`, id))
}

// GetMCPServerByName returns an MCP server by its catalog name.
func (d *Database) GetMCPServerByName(name string) (*MCPServer, error) {
	return scanMCPServer(d.queryRow(mcpSelect+` WHERE name = ?`, name))
}

// ListMCPServers returns all MCP servers.
func (d *Database) ListMCPServers() ([]MCPServer, error) {
	rows, err := d.query(mcpSelect + ` ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var servers []MCPServer
	for rows.Next() {
		s, err := scanMCPServerRow(rows)
		if err != nil {
			return nil, err
		}
		servers = append(servers, *s)
	}
	return servers, rows.Err()
}

// UpdateMCPServer replaces mutable fields of an existing record.
func (d *Database) UpdateMCPServer(s MCPServer) error {
	result, err := d.exec(
		`UPDATE mcp_servers SET name = ?, title = ?, description = ?, endpoint_url = ?, configuration = ?, updated_at = ?
		 WHERE id = ?`,
		s.Name, s.Title, nullable(s.Description), s.EndpointURL,
		nullable(s.Configuration), nowRFC3339(), s.ID,
	)
	if err != nil {
		return err
	}
	return requireRowAffected(result, "mcp server", s.ID)
}

// DeleteMCPServer removes a record.
func (d *Database) DeleteMCPServer(id string) error {
	result, err := d.exec(`DELETE FROM mcp_servers WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRowAffected(result, "mcp server", id)
}

// UpsertMCPServerByName inserts or updates a record keyed by catalog
// name. Used by catalog sync.
func (d *Database) UpsertMCPServerByName(s MCPServer) error {
	existing, err := d.GetMCPServerByName(s.Name)
	if err != nil {
		return err
	}
	if existing == nil {
		return d.CreateMCPServer(s)
	}
	s.ID = existing.ID
	return d.UpdateMCPServer(s)
}

// DeleteMCPServersNotIn removes servers whose names are absent from keep.
func (d *Database) DeleteMCPServersNotIn(keep []string) (int, error) {
	existing, err := d.ListMCPServers()
	if err != nil {
		return 0, err
	}
	keepSet := make(map[string]bool, len(keep))
	for _, name := range keep {
		keepSet[name] = true
	}
	removed := 0
	for _, s := range existing {
		if keepSet[s.Name] {
			continue
		}
		if err := d.DeleteMCPServer(s.ID); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

const mcpSelect = `SELECT id, name, title, description, endpoint_url, configuration, created_by, created_at, updated_at FROM mcp_servers`

func scanMCPServer(row *sql.Row) (*MCPServer, error) {
	var s MCPServer
	var desc, cfg, createdBy sql.NullString
	err := row.Scan(&s.ID, &s.Name, &s.Title, &desc, &s.EndpointURL, &cfg, &createdBy, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.Description = fromNull(desc)
	s.Configuration = fromNull(cfg)
	s.CreatedBy = fromNull(createdBy)
	return &s, nil
}

func scanMCPServerRow(rows *sql.Rows) (*MCPServer, error) {
	var s MCPServer
	var desc, cfg, createdBy sql.NullString
	if err := rows.Scan(&s.ID, &s.Name, &s.Title, &desc, &s.EndpointURL, &cfg, &createdBy, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	s.Description = fromNull(desc)
	s.Configuration = fromNull(cfg)
	s.CreatedBy = fromNull(createdBy)
	return &s, nil
}
