package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// runMigrations applies all schema migrations in order.
func (d *Database) runMigrations() error {
	return d.withLock(func() error {
		tx, err := d.db.Begin()
		if err != nil {
			return err
		}
		defer func() {
			if err != nil {
				tx.Rollback()
			}
		}()

		// Bootstrap: create db_meta and schema_migrations tables.
		if _, err = tx.Exec(`CREATE TABLE IF NOT EXISTS db_meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`); err != nil {
			return fmt.Errorf("creating db_meta: %w", err)
		}

		if _, err = tx.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL,
			note TEXT
		)`); err != nil {
			return fmt.Errorf("creating schema_migrations: %w", err)
		}

		version := d.getSchemaVersion(tx)

		migrations := []struct {
			version int
			note    string
			fn      func(*sql.Tx) error
		}{
			{1, "initial schema", migrateV1},
			{2, "agent assignments on users", migrateV2},
			{3, "rename devops role to ops", migrateV3},
		}

		for _, m := range migrations {
			if version >= m.version {
				continue
			}
			if err = m.fn(tx); err != nil {
				return fmt.Errorf("migration v%d (%s): %w", m.version, m.note, err)
			}
			now := time.Now().UTC().Format(time.RFC3339)
			if _, err = tx.Exec(
				`INSERT OR REPLACE INTO schema_migrations (version, applied_at, note) VALUES (?, ?, ?)`,
				m.version, now, m.note,
			); err != nil {
				return fmt.Errorf("recording migration v%d: %w", m.version, err)
			}
			if _, err = tx.Exec(
				`INSERT OR REPLACE INTO db_meta (key, value) VALUES ('schema_version', ?)`,
				fmt.Sprintf("%d", m.version),
			); err != nil {
				return fmt.Errorf("updating schema_version: %w", err)
			}
		}

		return tx.Commit()
	})
}

func (d *Database) getSchemaVersion(tx *sql.Tx) int {
	var val string
	err := tx.QueryRow(`SELECT value FROM db_meta WHERE key = 'schema_version'`).Scan(&val)
	if err != nil {
		return 0
	}
	var v int
	fmt.Sscanf(val, "%d", &v)
	return v
}

// migrateV1 creates the initial tables.
func migrateV1(tx *sql.Tx) error {
	stmts := []string{
		// Users
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_users_email ON users(email)`,

		// MCP servers
		`CREATE TABLE IF NOT EXISTS mcp_servers (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT,
			endpoint_url TEXT NOT NULL,
			configuration TEXT,
			created_by TEXT REFERENCES users(id),
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_mcp_servers_name ON mcp_servers(name)`,

		// Knowledge bases
		`CREATE TABLE IF NOT EXISTS knowledge_bases (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			version TEXT NOT NULL,
			embedding_model TEXT NOT NULL,
			provider_id TEXT,
			vector_db_name TEXT NOT NULL,
			is_external INTEGER NOT NULL DEFAULT 0,
			source TEXT,
			source_configuration TEXT,
			created_by TEXT REFERENCES users(id),
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_knowledge_bases_vector_db ON knowledge_bases(vector_db_name)`,

		// Virtual assistants
		`CREATE TABLE IF NOT EXISTS virtual_assistants (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			prompt TEXT NOT NULL,
			model_name TEXT NOT NULL,
			created_by TEXT REFERENCES users(id),
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,

		// Assistant associations
		`CREATE TABLE IF NOT EXISTS virtual_assistant_knowledge_bases (
			virtual_assistant_id TEXT NOT NULL REFERENCES virtual_assistants(id) ON DELETE CASCADE,
			knowledge_base_id TEXT NOT NULL,
			PRIMARY KEY (virtual_assistant_id, knowledge_base_id)
		)`,
		`CREATE TABLE IF NOT EXISTS virtual_assistant_tools (
			virtual_assistant_id TEXT NOT NULL REFERENCES virtual_assistants(id) ON DELETE CASCADE,
			tool_id TEXT NOT NULL,
			PRIMARY KEY (virtual_assistant_id, tool_id)
		)`,

		// Chat history
		`CREATE TABLE IF NOT EXISTS chat_history (
			id TEXT PRIMARY KEY,
			virtual_assistant_id TEXT REFERENCES virtual_assistants(id),
			user_id TEXT REFERENCES users(id),
			message TEXT NOT NULL,
			response TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chat_history_user ON chat_history(user_id, created_at)`,

		// Guardrails
		`CREATE TABLE IF NOT EXISTS guardrails (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			rules TEXT NOT NULL,
			created_by TEXT REFERENCES users(id),
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,

		// Model servers
		`CREATE TABLE IF NOT EXISTS model_servers (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			provider_name TEXT NOT NULL,
			model_name TEXT NOT NULL,
			endpoint_url TEXT NOT NULL,
			token TEXT
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_model_servers_name ON model_servers(name)`,
		`CREATE INDEX IF NOT EXISTS idx_model_servers_model ON model_servers(model_name)`,

		// Agent session cache
		`CREATE TABLE IF NOT EXISTS chat_sessions (
			id TEXT PRIMARY KEY,
			session_state TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
	}

	for _, s := range stmts {
		if _, err := tx.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:60], err)
		}
	}
	return nil
}

// migrateV2 adds agent assignments to users.
func migrateV2(tx *sql.Tx) error {
	_, err := tx.Exec(`ALTER TABLE users ADD COLUMN agent_ids TEXT NOT NULL DEFAULT '[]'`)
	return err
}

// migrateV3 renames the legacy devops role.
func migrateV3(tx *sql.Tx) error {
	_, err := tx.Exec(`UPDATE users SET role = 'ops' WHERE role = 'devops'`)
	return err
}
