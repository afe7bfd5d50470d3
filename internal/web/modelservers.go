package web

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nmehra/assistantd/internal/storage"
)

type modelServerPayload struct {
	Name         string  `json:"name"`
	ProviderName string  `json:"provider_name"`
	ModelName    string  `json:"model_name"`
	EndpointURL  string  `json:"endpoint_url"`
	Token        *string `json:"token"`
}

// modelServerJSON renders a model server. The token is never exposed.
func modelServerJSON(m *storage.ModelServer) map[string]any {
	return map[string]any{
		"id":            m.ID,
		"name":          m.Name,
		"provider_name": m.ProviderName,
		"model_name":    m.ModelName,
		"endpoint_url":  m.EndpointURL,
	}
}

func (s *WebState) handleListModelServers(w http.ResponseWriter, r *http.Request) {
	servers, err := s.DB.ListModelServers()
	if err != nil {
		storageError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(servers))
	for i := range servers {
		out = append(out, modelServerJSON(&servers[i]))
	}
	jsonOK(w, out)
}

func (s *WebState) handleGetModelServer(w http.ResponseWriter, r *http.Request) {
	server, err := s.DB.GetModelServer(chi.URLParam(r, "id"))
	if err != nil {
		storageError(w, err)
		return
	}
	if server == nil {
		jsonError(w, "model server not found", http.StatusNotFound)
		return
	}
	jsonOK(w, modelServerJSON(server))
}

func (s *WebState) handleCreateModelServer(w http.ResponseWriter, r *http.Request) {
	var body modelServerPayload
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Name == "" || body.ModelName == "" || body.EndpointURL == "" {
		jsonError(w, "name, model_name and endpoint_url are required", http.StatusBadRequest)
		return
	}

	server := storage.ModelServer{
		ID:           uuid.NewString(),
		Name:         body.Name,
		ProviderName: body.ProviderName,
		ModelName:    body.ModelName,
		EndpointURL:  body.EndpointURL,
		Token:        body.Token,
	}
	if err := s.DB.CreateModelServer(server); err != nil {
		storageError(w, err)
		return
	}
	jsonCreated(w, modelServerJSON(&server))
}

func (s *WebState) handleUpdateModelServer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	existing, err := s.DB.GetModelServer(id)
	if err != nil {
		storageError(w, err)
		return
	}
	if existing == nil {
		jsonError(w, "model server not found", http.StatusNotFound)
		return
	}

	var body modelServerPayload
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if body.Name != "" {
		existing.Name = body.Name
	}
	if body.ProviderName != "" {
		existing.ProviderName = body.ProviderName
	}
	if body.ModelName != "" {
		existing.ModelName = body.ModelName
	}
	if body.EndpointURL != "" {
		existing.EndpointURL = body.EndpointURL
	}
	if body.Token != nil {
		existing.Token = body.Token
	}

	if err := s.DB.UpdateModelServer(*existing); err != nil {
		storageError(w, err)
		return
	}
	jsonOK(w, modelServerJSON(existing))
}

func (s *WebState) handleDeleteModelServer(w http.ResponseWriter, r *http.Request) {
	if err := s.DB.DeleteModelServer(chi.URLParam(r, "id")); err != nil {
		storageError(w, err)
		return
	}
	jsonOK(w, map[string]string{"status": "deleted"})
}

func (s *WebState) handleSyncModelServers(w http.ResponseWriter, r *http.Request) {
	if err := s.Syncer.SyncModelServers(r.Context()); err != nil {
		jsonError(w, err.Error(), http.StatusBadGateway)
		return
	}
	s.handleListModelServers(w, r)
}
