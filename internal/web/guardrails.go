package web

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nmehra/assistantd/internal/storage"
)

type guardrailPayload struct {
	Name  string           `json:"name"`
	Rules *json.RawMessage `json:"rules"`
}

func guardrailJSON(g *storage.Guardrail) map[string]any {
	return map[string]any{
		"id":         g.ID,
		"name":       g.Name,
		"rules":      json.RawMessage(g.Rules),
		"created_by": g.CreatedBy,
		"created_at": g.CreatedAt,
		"updated_at": g.UpdatedAt,
	}
}

func (s *WebState) handleListGuardrails(w http.ResponseWriter, r *http.Request) {
	items, err := s.DB.ListGuardrails()
	if err != nil {
		storageError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(items))
	for i := range items {
		out = append(out, guardrailJSON(&items[i]))
	}
	jsonOK(w, out)
}

func (s *WebState) handleGetGuardrail(w http.ResponseWriter, r *http.Request) {
	g, err := s.DB.GetGuardrail(chi.URLParam(r, "id"))
	if err != nil {
		storageError(w, err)
		return
	}
	if g == nil {
		jsonError(w, "guardrail not found", http.StatusNotFound)
		return
	}
	jsonOK(w, guardrailJSON(g))
}

func (s *WebState) handleCreateGuardrail(w http.ResponseWriter, r *http.Request) {
	var body guardrailPayload
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Name == "" || body.Rules == nil {
		jsonError(w, "name and rules are required", http.StatusBadRequest)
		return
	}

	user := currentUser(r)
	g := storage.Guardrail{
		ID:        uuid.NewString(),
		Name:      body.Name,
		Rules:     string(*body.Rules),
		CreatedBy: &user.ID,
	}
	if err := s.DB.CreateGuardrail(g); err != nil {
		storageError(w, err)
		return
	}

	created, err := s.DB.GetGuardrail(g.ID)
	if err != nil || created == nil {
		storageError(w, err)
		return
	}
	jsonCreated(w, guardrailJSON(created))
}

func (s *WebState) handleUpdateGuardrail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	existing, err := s.DB.GetGuardrail(id)
	if err != nil {
		storageError(w, err)
		return
	}
	if existing == nil {
		jsonError(w, "guardrail not found", http.StatusNotFound)
		return
	}

	var body guardrailPayload
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if body.Name != "" {
		existing.Name = body.Name
	}
	if body.Rules != nil {
		existing.Rules = string(*body.Rules)
	}

	if err := s.DB.UpdateGuardrail(*existing); err != nil {
		storageError(w, err)
		return
	}
	jsonOK(w, guardrailJSON(existing))
}

func (s *WebState) handleDeleteGuardrail(w http.ResponseWriter, r *http.Request) {
	if err := s.DB.DeleteGuardrail(chi.URLParam(r, "id")); err != nil {
		storageError(w, err)
		return
	}
	jsonOK(w, map[string]string{"status": "deleted"})
}
