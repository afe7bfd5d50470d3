package web

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/nmehra/assistantd/internal/storage"
)

type userPayload struct {
	Username string  `json:"username"`
	Email    string  `json:"email"`
	Password *string `json:"password,omitempty"`
	Role     string  `json:"role"`
	AgentIDs []any   `json:"agent_ids"`
}

// userJSON renders a user without the password hash.
func userJSON(u *storage.User) map[string]any {
	var agentIDs []any
	if err := json.Unmarshal([]byte(u.AgentIDs), &agentIDs); err != nil {
		agentIDs = []any{}
	}
	return map[string]any{
		"id":         u.ID,
		"username":   u.Username,
		"email":      u.Email,
		"role":       u.Role,
		"agent_ids":  agentIDs,
		"created_at": u.CreatedAt,
		"updated_at": u.UpdatedAt,
	}
}

func (s *WebState) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.DB.ListUsers()
	if err != nil {
		storageError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(users))
	for i := range users {
		out = append(out, userJSON(&users[i]))
	}
	jsonOK(w, out)
}

func (s *WebState) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.DB.GetUser(chi.URLParam(r, "id"))
	if err != nil {
		storageError(w, err)
		return
	}
	if user == nil {
		jsonError(w, "user not found", http.StatusNotFound)
		return
	}
	jsonOK(w, userJSON(user))
}

func (s *WebState) handleGetUserByUsername(w http.ResponseWriter, r *http.Request) {
	user, err := s.DB.GetUserByUsername(chi.URLParam(r, "username"))
	if err != nil {
		storageError(w, err)
		return
	}
	if user == nil {
		jsonError(w, "user not found", http.StatusNotFound)
		return
	}
	jsonOK(w, userJSON(user))
}

func (s *WebState) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var body userPayload
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Username == "" || body.Email == "" {
		jsonError(w, "username and email are required", http.StatusBadRequest)
		return
	}
	if !storage.ValidRole(body.Role) {
		jsonError(w, "invalid role", http.StatusBadRequest)
		return
	}

	hash := ""
	if body.Password != nil && *body.Password != "" {
		h, err := bcrypt.GenerateFromPassword([]byte(*body.Password), bcrypt.DefaultCost)
		if err != nil {
			jsonError(w, "hashing password", http.StatusInternalServerError)
			return
		}
		hash = string(h)
	}

	agentIDs := "[]"
	if body.AgentIDs != nil {
		raw, err := json.Marshal(body.AgentIDs)
		if err != nil {
			jsonError(w, "invalid agent_ids", http.StatusBadRequest)
			return
		}
		agentIDs = string(raw)
	}

	user := storage.User{
		ID:           uuid.NewString(),
		Username:     body.Username,
		Email:        body.Email,
		PasswordHash: hash,
		Role:         body.Role,
		AgentIDs:     agentIDs,
	}
	if err := s.DB.CreateUser(user); err != nil {
		storageError(w, err)
		return
	}

	created, err := s.DB.GetUser(user.ID)
	if err != nil || created == nil {
		storageError(w, err)
		return
	}
	jsonCreated(w, userJSON(created))
}

func (s *WebState) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	existing, err := s.DB.GetUser(id)
	if err != nil {
		storageError(w, err)
		return
	}
	if existing == nil {
		jsonError(w, "user not found", http.StatusNotFound)
		return
	}

	var body userPayload
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if body.Username != "" {
		existing.Username = body.Username
	}
	if body.Email != "" {
		existing.Email = body.Email
	}
	if body.Role != "" {
		if !storage.ValidRole(body.Role) {
			jsonError(w, "invalid role", http.StatusBadRequest)
			return
		}
		existing.Role = body.Role
	}
	if body.Password != nil && *body.Password != "" {
		h, err := bcrypt.GenerateFromPassword([]byte(*body.Password), bcrypt.DefaultCost)
		if err != nil {
			jsonError(w, "hashing password", http.StatusInternalServerError)
			return
		}
		existing.PasswordHash = string(h)
	}
	if body.AgentIDs != nil {
		raw, err := json.Marshal(body.AgentIDs)
		if err != nil {
			jsonError(w, "invalid agent_ids", http.StatusBadRequest)
			return
		}
		existing.AgentIDs = string(raw)
	}

	if err := s.DB.UpdateUser(*existing); err != nil {
		storageError(w, err)
		return
	}

	updated, err := s.DB.GetUser(id)
	if err != nil || updated == nil {
		storageError(w, err)
		return
	}
	jsonOK(w, userJSON(updated))
}

func (s *WebState) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := s.DB.DeleteUser(chi.URLParam(r, "id")); err != nil {
		storageError(w, err)
		return
	}
	jsonOK(w, map[string]string{"status": "deleted"})
}
