package web

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nmehra/assistantd/internal/storage"
)

type knowledgeBasePayload struct {
	Name                string           `json:"name"`
	Version             string           `json:"version"`
	EmbeddingModel      string           `json:"embedding_model"`
	ProviderID          *string          `json:"provider_id"`
	VectorDBName        string           `json:"vector_db_name"`
	IsExternal          *bool            `json:"is_external"`
	Source              *string          `json:"source"`
	SourceConfiguration *json.RawMessage `json:"source_configuration"`
}

func knowledgeBaseJSON(kb *storage.KnowledgeBase) map[string]any {
	return map[string]any{
		"id":                   kb.ID,
		"name":                 kb.Name,
		"version":              kb.Version,
		"embedding_model":      kb.EmbeddingModel,
		"provider_id":          kb.ProviderID,
		"vector_db_name":       kb.VectorDBName,
		"is_external":          kb.IsExternal,
		"source":               kb.Source,
		"source_configuration": rawJSONField(kb.SourceConfiguration),
		"created_by":           kb.CreatedBy,
		"created_at":           kb.CreatedAt,
		"updated_at":           kb.UpdatedAt,
	}
}

func (s *WebState) handleListKnowledgeBases(w http.ResponseWriter, r *http.Request) {
	kbs, err := s.DB.ListKnowledgeBases()
	if err != nil {
		storageError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(kbs))
	for i := range kbs {
		out = append(out, knowledgeBaseJSON(&kbs[i]))
	}
	jsonOK(w, out)
}

func (s *WebState) handleGetKnowledgeBase(w http.ResponseWriter, r *http.Request) {
	kb, err := s.DB.GetKnowledgeBase(chi.URLParam(r, "id"))
	if err != nil {
		storageError(w, err)
		return
	}
	if kb == nil {
		jsonError(w, "knowledge base not found", http.StatusNotFound)
		return
	}
	jsonOK(w, knowledgeBaseJSON(kb))
}

func (s *WebState) handleCreateKnowledgeBase(w http.ResponseWriter, r *http.Request) {
	var body knowledgeBasePayload
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Name == "" || body.VectorDBName == "" || body.EmbeddingModel == "" {
		jsonError(w, "name, vector_db_name and embedding_model are required", http.StatusBadRequest)
		return
	}
	if body.Version == "" {
		body.Version = "1"
	}

	user := currentUser(r)
	kb := storage.KnowledgeBase{
		ID:                  uuid.NewString(),
		Name:                body.Name,
		Version:             body.Version,
		EmbeddingModel:      body.EmbeddingModel,
		ProviderID:          body.ProviderID,
		VectorDBName:        body.VectorDBName,
		IsExternal:          body.IsExternal != nil && *body.IsExternal,
		Source:              body.Source,
		SourceConfiguration: rawToString(body.SourceConfiguration),
		CreatedBy:           &user.ID,
	}
	if err := s.DB.CreateKnowledgeBase(kb); err != nil {
		storageError(w, err)
		return
	}

	created, err := s.DB.GetKnowledgeBase(kb.ID)
	if err != nil || created == nil {
		storageError(w, err)
		return
	}
	jsonCreated(w, knowledgeBaseJSON(created))
}

func (s *WebState) handleUpdateKnowledgeBase(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	existing, err := s.DB.GetKnowledgeBase(id)
	if err != nil {
		storageError(w, err)
		return
	}
	if existing == nil {
		jsonError(w, "knowledge base not found", http.StatusNotFound)
		return
	}

	var body knowledgeBasePayload
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if body.Name != "" {
		existing.Name = body.Name
	}
	if body.Version != "" {
		existing.Version = body.Version
	}
	if body.EmbeddingModel != "" {
		existing.EmbeddingModel = body.EmbeddingModel
	}
	if body.ProviderID != nil {
		existing.ProviderID = body.ProviderID
	}
	if body.VectorDBName != "" {
		existing.VectorDBName = body.VectorDBName
	}
	if body.IsExternal != nil {
		existing.IsExternal = *body.IsExternal
	}
	if body.Source != nil {
		existing.Source = body.Source
	}
	if body.SourceConfiguration != nil {
		existing.SourceConfiguration = rawToString(body.SourceConfiguration)
	}

	if err := s.DB.UpdateKnowledgeBase(*existing); err != nil {
		storageError(w, err)
		return
	}
	jsonOK(w, knowledgeBaseJSON(existing))
}

func (s *WebState) handleDeleteKnowledgeBase(w http.ResponseWriter, r *http.Request) {
	if err := s.DB.DeleteKnowledgeBase(chi.URLParam(r, "id")); err != nil {
		storageError(w, err)
		return
	}
	jsonOK(w, map[string]string{"status": "deleted"})
}

func (s *WebState) handleSyncKnowledgeBases(w http.ResponseWriter, r *http.Request) {
	if err := s.Syncer.SyncKnowledgeBases(r.Context()); err != nil {
		jsonError(w, err.Error(), http.StatusBadGateway)
		return
	}
	s.handleListKnowledgeBases(w, r)
}
