package storage

import (
	"database/sql"
	"fmt"
)

// Roles recognized by the access checks.
const (
	RoleAdmin = "admin"
	RoleOps   = "ops"
	RoleUser  = "user"
)

// ValidRole reports whether role is one of the recognized roles.
func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleOps || role == RoleUser
}

// User is a registered account. AgentIDs holds the raw JSON list of
// agent assignments; the API layer treats it as opaque.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Role         string
	AgentIDs     string
	CreatedAt    string
	UpdatedAt    string
}

// CreateUser inserts a new user.
func (d *Database) CreateUser(u User) error {
	if u.AgentIDs == "" {
		u.AgentIDs = "[]"
	}
	now := nowRFC3339()
	_, err := d.exec(
		`INSERT INTO users (id, username, email, password_hash, role, agent_ids, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.Email, u.PasswordHash, u.Role, u.AgentIDs, now, now,
	)
	return err
}

// GetUser returns a user by ID.
func (d *Database) GetUser(id string) (*User, error) {
	return d.scanUser(d.queryRow(userSelect+` WHERE id = ?`, id))
}

// GetUserByUsername returns a user by username.
func (d *Database) GetUserByUsername(username string) (*User, error) {
	return d.scanUser(d.queryRow(userSelect+` WHERE username = ?`, username))
}

// GetUserByEmail returns a user by email.
func (d *Database) GetUserByEmail(email string) (*User, error) {
	return d.scanUser(d.queryRow(userSelect+` WHERE email = ?`, email))
}

// ListUsers returns all users ordered by creation time.
func (d *Database) ListUsers() ([]User, error) {
	rows, err := d.query(userSelect + ` ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash,
			&u.Role, &u.AgentIDs, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdateUser replaces mutable fields of an existing user.
func (d *Database) UpdateUser(u User) error {
	result, err := d.exec(
		`UPDATE users SET username = ?, email = ?, password_hash = ?, role = ?, agent_ids = ?, updated_at = ?
		 WHERE id = ?`,
		u.Username, u.Email, u.PasswordHash, u.Role, u.AgentIDs, nowRFC3339(), u.ID,
	)
	if err != nil {
		return err
	}
	return requireRowAffected(result, "user", u.ID)
}

// DeleteUser removes a user.
func (d *Database) DeleteUser(id string) error {
	result, err := d.exec(`DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRowAffected(result, "user", id)
}

const userSelect = `SELECT id, username, email, password_hash, role, agent_ids, created_at, updated_at FROM users`

func (d *Database) scanUser(row *sql.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash,
		&u.Role, &u.AgentIDs, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// NotFoundError reports a missing row for updates and deletes.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func requireRowAffected(result sql.Result, kind, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &NotFoundError{Kind: kind, ID: id}
	}
	return nil
}
