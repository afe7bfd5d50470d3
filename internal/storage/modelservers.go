package storage

import "database/sql"

// ModelServer describes an inference endpoint known to the runtime.
type ModelServer struct {
	ID           string
	Name         string
	ProviderName string
	ModelName    string
	EndpointURL  string
	Token        *string
}

// CreateModelServer inserts a new model server record.
func (d *Database) CreateModelServer(s ModelServer) error {
	_, err := d.exec(
		`INSERT INTO model_servers (id, name, provider_name, model_name, endpoint_url, token)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		s.ID, s.Name, s.ProviderName, s.ModelName, s.EndpointURL, nullable(s.Token),
	)
	return err
}

// GetModelServer returns a model server by ID.
func (d *Database) GetModelServer(id string) (*ModelServer, error) {
	return scanModelServer(d.queryRow(modelServerSelect+` WHERE id = ?`, id))
}

// GetModelServerByName returns a model server by its catalog name.
func (d *Database) GetModelServerByName(name string) (*ModelServer, error) {
	return scanModelServer(d.queryRow(modelServerSelect+` WHERE name = ?`, name))
}

// GetModelServerByModelName returns the server hosting the given model.
func (d *Database) GetModelServerByModelName(modelName string) (*ModelServer, error) {
	return scanModelServer(d.queryRow(modelServerSelect+` WHERE model_name = ? LIMIT 1`, modelName))
}

// ListModelServers returns all model servers.
func (d *Database) ListModelServers() ([]ModelServer, error) {
	rows, err := d.query(modelServerSelect + ` ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var servers []ModelServer
	for rows.Next() {
		var s ModelServer
		var token sql.NullString
		if err := rows.Scan(&s.ID, &s.Name, &s.ProviderName, &s.ModelName, &s.EndpointURL, &token); err != nil {
			return nil, err
		}
		s.Token = fromNull(token)
		servers = append(servers, s)
	}
	return servers, rows.Err()
}

// UpdateModelServer replaces mutable fields of an existing record.
func (d *Database) UpdateModelServer(s ModelServer) error {
	result, err := d.exec(
		`UPDATE model_servers SET name = ?, provider_name = ?, model_name = ?, endpoint_url = ?, token = ?
		 WHERE id = ?`,
		s.Name, s.ProviderName, s.ModelName, s.EndpointURL, nullable(s.Token), s.ID,
	)
	if err != nil {
		return err
	}
	return requireRowAffected(result, "model server", s.ID)
}

// DeleteModelServer removes a record.
func (d *Database) DeleteModelServer(id string) error {
	result, err := d.exec(`DELETE FROM model_servers WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRowAffected(result, "model server", id)
}

// UpsertModelServerByName inserts or updates a record keyed by catalog
// name. Used by catalog sync.
func (d *Database) UpsertModelServerByName(s ModelServer) error {
	existing, err := d.GetModelServerByName(s.Name)
	if err != nil {
		return err
	}
	if existing == nil {
		return d.CreateModelServer(s)
	}
	s.ID = existing.ID
	return d.UpdateModelServer(s)
}

// DeleteModelServersNotIn removes servers whose names are absent from keep.
func (d *Database) DeleteModelServersNotIn(keep []string) (int, error) {
	existing, err := d.ListModelServers()
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
		if err := d.DeleteModelServer(s.ID); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

const modelServerSelect = `SELECT id, name, provider_name, model_name, endpoint_url, token FROM model_servers`

func scanModelServer(row *sql.Row) (*ModelServer, error) {
	var s ModelServer
	var token sql.NullString
	err := row.Scan(&s.ID, &s.Name, &s.ProviderName, &s.ModelName, &s.EndpointURL, &token)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.Token = fromNull(token)
	return &s, nil
}
