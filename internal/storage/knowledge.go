package storage

import "database/sql"

// KnowledgeBase describes a vector database used for retrieval.
// SourceConfiguration holds raw JSON (URL lists or provider settings).
type KnowledgeBase struct {
	ID                  string
	Name                string
	Version             string
	EmbeddingModel      string
	ProviderID          *string
	VectorDBName        string
	IsExternal          bool
	Source              *string
	SourceConfiguration *string
	CreatedBy           *string
	CreatedAt           string
	UpdatedAt           string
}

// CreateKnowledgeBase inserts a new knowledge base record.
func (d *Database) CreateKnowledgeBase(kb KnowledgeBase) error {
	now := nowRFC3339()
	_, err := d.exec(
		`INSERT INTO knowledge_bases
		 (id, name, version, embedding_model, provider_id, vector_db_name, is_external, source, source_configuration, created_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		kb.ID, kb.Name, kb.Version, kb.EmbeddingModel, nullable(kb.ProviderID),
		kb.VectorDBName, boolToInt(kb.IsExternal), nullable(kb.Source),
		nullable(kb.SourceConfiguration), nullable(kb.CreatedBy), now, now,
	)
	return err
}

// GetKnowledgeBase returns a knowledge base by ID.
func (d *Database) GetKnowledgeBase(id string) (*KnowledgeBase, error) {
	return scanKnowledgeBase(d.queryRow(kbSelect+` WHERE id = ?`, id))
}

// GetKnowledgeBaseByVectorDBName returns the knowledge base backed by
// the given vector database.
func (d *Database) GetKnowledgeBaseByVectorDBName(name string) (*KnowledgeBase, error) {
	return scanKnowledgeBase(d.queryRow(kbSelect+` WHERE vector_db_name = ?`, name))
}

// ListKnowledgeBases returns all knowledge bases.
func (d *Database) ListKnowledgeBases() ([]KnowledgeBase, error) {
	rows, err := d.query(kbSelect + ` ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var kbs []KnowledgeBase
	for rows.Next() {
		kb, err := scanKnowledgeBaseRow(rows)
		if err != nil {
			return nil, err
		}
		kbs = append(kbs, *kb)
	}
	return kbs, rows.Err()
}

// UpdateKnowledgeBase replaces mutable fields of an existing record.
func (d *Database) UpdateKnowledgeBase(kb KnowledgeBase) error {
	result, err := d.exec(
		`UPDATE knowledge_bases SET name = ?, version = ?, embedding_model = ?, provider_id = ?,
		 vector_db_name = ?, is_external = ?, source = ?, source_configuration = ?, updated_at = ?
		 WHERE id = ?`,
		kb.Name, kb.Version, kb.EmbeddingModel, nullable(kb.ProviderID),
		kb.VectorDBName, boolToInt(kb.IsExternal), nullable(kb.Source),
		nullable(kb.SourceConfiguration), nowRFC3339(), kb.ID,
	)
	if err != nil {
		return err
	}
	return requireRowAffected(result, "knowledge base", kb.ID)
}

// DeleteKnowledgeBase removes a record.
func (d *Database) DeleteKnowledgeBase(id string) error {
	result, err := d.exec(`DELETE FROM knowledge_bases WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRowAffected(result, "knowledge base", id)
}

// UpsertKnowledgeBaseByVectorDBName inserts or updates a record keyed
// by vector database name. Used by catalog sync.
func (d *Database) UpsertKnowledgeBaseByVectorDBName(kb KnowledgeBase) error {
	existing, err := d.GetKnowledgeBaseByVectorDBName(kb.VectorDBName)
	if err != nil {
		return err
	}
	if existing == nil {
		return d.CreateKnowledgeBase(kb)
	}
	kb.ID = existing.ID
	return d.UpdateKnowledgeBase(kb)
}

const kbSelect = `SELECT id, name, version, embedding_model, provider_id, vector_db_name, is_external, source, source_configuration, created_by, created_at, updated_at FROM knowledge_bases`

func scanKnowledgeBase(row *sql.Row) (*KnowledgeBase, error) {
	var kb KnowledgeBase
	var providerID, source, sourceCfg, createdBy sql.NullString
	var external int
	err := row.Scan(&kb.ID, &kb.Name, &kb.Version, &kb.EmbeddingModel, &providerID,
		&kb.VectorDBName, &external, &source, &sourceCfg, &createdBy, &kb.CreatedAt, &kb.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	kb.ProviderID = fromNull(providerID)
	kb.IsExternal = external != 0
	kb.Source = fromNull(source)
	kb.SourceConfiguration = fromNull(sourceCfg)
	kb.CreatedBy = fromNull(createdBy)
	return &kb, nil
}

func scanKnowledgeBaseRow(rows *sql.Rows) (*KnowledgeBase, error) {
	var kb KnowledgeBase
	var providerID, source, sourceCfg, createdBy sql.NullString
	var external int
	if err := rows.Scan(&kb.ID, &kb.Name, &kb.Version, &kb.EmbeddingModel, &providerID,
		&kb.VectorDBName, &external, &source, &sourceCfg, &createdBy, &kb.CreatedAt, &kb.UpdatedAt); err != nil {
		return nil, err
	}
	kb.ProviderID = fromNull(providerID)
	kb.IsExternal = external != 0
	kb.Source = fromNull(source)
	kb.SourceConfiguration = fromNull(sourceCfg)
	kb.CreatedBy = fromNull(createdBy)
	return &kb, nil
}
