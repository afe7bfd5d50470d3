package web

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nmehra/assistantd/internal/storage"
)

type mcpServerPayload struct {
	Name          string           `json:"name"`
	Title         string           `json:"title"`
	Description   *string          `json:"description"`
	EndpointURL   string           `json:"endpoint_url"`
	Configuration *json.RawMessage `json:"configuration"`
}

func mcpServerJSON(m *storage.MCPServer) map[string]any {
	return map[string]any{
		"id":            m.ID,
		"name":          m.Name,
		"title":         m.Title,
		"description":   m.Description,
		"endpoint_url":  m.EndpointURL,
		"configuration": rawJSONField(m.Configuration),
		"created_by":    m.CreatedBy,
		"created_at":    m.CreatedAt,
		"updated_at":    m.UpdatedAt,
	}
}

// rawJSONField embeds a stored JSON string verbatim, or null.
func rawJSONField(s *string) any {
	if s == nil {
		return nil
	}
	return json.RawMessage(*s)
}

func (s *WebState) handleListMCPServers(w http.ResponseWriter, r *http.Request) {
	servers, err := s.DB.ListMCPServers()
	if err != nil {
		storageError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(servers))
	for i := range servers {
		out = append(out, mcpServerJSON(&servers[i]))
	}
	jsonOK(w, out)
}

func (s *WebState) handleGetMCPServer(w http.ResponseWriter, r *http.Request) {
	server, err := s.DB.GetMCPServer(chi.URLParam(r, "id"))
	if err != nil {
		storageError(w, err)
		return
	}
	if server == nil {
		jsonError(w, "mcp server not found", http.StatusNotFound)
		return
	}
	jsonOK(w, mcpServerJSON(server))
}

func (s *WebState) handleCreateMCPServer(w http.ResponseWriter, r *http.Request) {
	var body mcpServerPayload
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Name == "" || body.EndpointURL == "" {
		jsonError(w, "name and endpoint_url are required", http.StatusBadRequest)
		return
	}
	if body.Title == "" {
		body.Title = body.Name
	}

	user := currentUser(r)
	server := storage.MCPServer{
		ID:            uuid.NewString(),
		Name:          body.Name,
		Title:         body.Title,
		Description:   body.Description,
		EndpointURL:   body.EndpointURL,
		Configuration: rawToString(body.Configuration),
		CreatedBy:     &user.ID,
	}
	if err := s.DB.CreateMCPServer(server); err != nil {
		storageError(w, err)
		return
	}

	created, err := s.DB.GetMCPServer(server.ID)
	if err != nil || created == nil {
		storageError(w, err)
		return
	}
	jsonCreated(w, mcpServerJSON(created))
}

func (s *WebState) handleUpdateMCPServer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	existing, err := s.DB.GetMCPServer(id)
	if err != nil {
		storageError(w, err)
		return
	}
	if existing == nil {
		jsonError(w, "mcp server not found", http.StatusNotFound)
		return
	}

	var body mcpServerPayload
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if body.Name != "" {
		existing.Name = body.Name
	}
	if body.Title != "" {
		existing.Title = body.Title
	}
	if body.Description != nil {
		existing.Description = body.Description
	}
	if body.EndpointURL != "" {
		existing.EndpointURL = body.EndpointURL
	}
	if body.Configuration != nil {
		existing.Configuration = rawToString(body.Configuration)
	}

	if err := s.DB.UpdateMCPServer(*existing); err != nil {
		storageError(w, err)
		return
	}
	jsonOK(w, mcpServerJSON(existing))
}

func (s *WebState) handleDeleteMCPServer(w http.ResponseWriter, r *http.Request) {
	if err := s.DB.DeleteMCPServer(chi.URLParam(r, "id")); err != nil {
		storageError(w, err)
		return
	}
	jsonOK(w, map[string]string{"status": "deleted"})
}

func (s *WebState) handleSyncMCPServers(w http.ResponseWriter, r *http.Request) {
	if err := s.Syncer.SyncMCPServers(r.Context()); err != nil {
		jsonError(w, err.Error(), http.StatusBadGateway)
		return
	}
	s.handleListMCPServers(w, r)
}

func rawToString(raw *json.RawMessage) *string {
	if raw == nil {
		return nil
	}
	s := string(*raw)
	return &s
}
