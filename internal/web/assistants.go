package web

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nmehra/assistantd/internal/storage"
)

type assistantPayload struct {
	Name           string   `json:"name"`
	Prompt         string   `json:"prompt"`
	ModelName      string   `json:"model_name"`
	KnowledgeBases []string `json:"knowledge_base_ids"`
	Tools          []string `json:"tool_ids"`
}

func assistantJSON(va *storage.VirtualAssistant) map[string]any {
	return map[string]any{
		"id":                 va.ID,
		"name":               va.Name,
		"prompt":             va.Prompt,
		"model_name":         va.ModelName,
		"knowledge_base_ids": va.KnowledgeBases,
		"tool_ids":           va.Tools,
		"created_by":         va.CreatedBy,
		"created_at":         va.CreatedAt,
		"updated_at":         va.UpdatedAt,
	}
}

func (s *WebState) handleListAssistants(w http.ResponseWriter, r *http.Request) {
	vas, err := s.DB.ListVirtualAssistants()
	if err != nil {
		storageError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(vas))
	for i := range vas {
		out = append(out, assistantJSON(&vas[i]))
	}
	jsonOK(w, out)
}

func (s *WebState) handleGetAssistant(w http.ResponseWriter, r *http.Request) {
	va, err := s.DB.GetVirtualAssistant(chi.URLParam(r, "id"))
	if err != nil {
		storageError(w, err)
		return
	}
	if va == nil {
		jsonError(w, "virtual assistant not found", http.StatusNotFound)
		return
	}
	jsonOK(w, assistantJSON(va))
}

// handleAssistantComponents resolves everything an assistant needs to
// run: the model server hosting its model, plus full records for its
// knowledge bases and tools. The model server is required; missing
// knowledge bases or tools are simply omitted.
func (s *WebState) handleAssistantComponents(w http.ResponseWriter, r *http.Request) {
	va, err := s.DB.GetVirtualAssistant(chi.URLParam(r, "id"))
	if err != nil {
		storageError(w, err)
		return
	}
	if va == nil {
		jsonError(w, "virtual assistant not found", http.StatusNotFound)
		return
	}

	modelServer, err := s.DB.GetModelServerByModelName(va.ModelName)
	if err != nil {
		storageError(w, err)
		return
	}
	if modelServer == nil {
		jsonError(w, "no model server hosts model "+va.ModelName, http.StatusNotFound)
		return
	}

	kbs := make([]map[string]any, 0, len(va.KnowledgeBases))
	for _, kbID := range va.KnowledgeBases {
		kb, err := s.DB.GetKnowledgeBase(kbID)
		if err != nil {
			storageError(w, err)
			return
		}
		if kb != nil {
			kbs = append(kbs, knowledgeBaseJSON(kb))
		}
	}

	tools := make([]map[string]any, 0, len(va.Tools))
	for _, toolID := range va.Tools {
		mcp, err := s.DB.GetMCPServerByName(toolID)
		if err != nil {
			storageError(w, err)
			return
		}
		if mcp != nil {
			tools = append(tools, mcpServerJSON(mcp))
			continue
		}
		tools = append(tools, map[string]any{"name": toolID, "builtin": true})
	}

	jsonOK(w, map[string]any{
		"assistant":       assistantJSON(va),
		"model_server":    modelServerJSON(modelServer),
		"knowledge_bases": kbs,
		"tools":           tools,
	})
}

func (s *WebState) handleCreateAssistant(w http.ResponseWriter, r *http.Request) {
	var body assistantPayload
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Name == "" || body.ModelName == "" {
		jsonError(w, "name and model_name are required", http.StatusBadRequest)
		return
	}

	user := currentUser(r)
	va := storage.VirtualAssistant{
		ID:             uuid.NewString(),
		Name:           body.Name,
		Prompt:         body.Prompt,
		ModelName:      body.ModelName,
		KnowledgeBases: body.KnowledgeBases,
		Tools:          body.Tools,
		CreatedBy:      &user.ID,
	}
	if err := s.DB.CreateVirtualAssistant(va); err != nil {
		storageError(w, err)
		return
	}

	created, err := s.DB.GetVirtualAssistant(va.ID)
	if err != nil || created == nil {
		storageError(w, err)
		return
	}
	jsonCreated(w, assistantJSON(created))
}

func (s *WebState) handleUpdateAssistant(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	existing, err := s.DB.GetVirtualAssistant(id)
	if err != nil {
		storageError(w, err)
		return
	}
	if existing == nil {
		jsonError(w, "virtual assistant not found", http.StatusNotFound)
		return
	}

	var body assistantPayload
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if body.Name != "" {
		existing.Name = body.Name
	}
	if body.Prompt != "" {
		existing.Prompt = body.Prompt
	}
	if body.ModelName != "" {
		existing.ModelName = body.ModelName
	}
	if body.KnowledgeBases != nil {
		existing.KnowledgeBases = body.KnowledgeBases
	}
	if body.Tools != nil {
		existing.Tools = body.Tools
	}

	if err := s.DB.UpdateVirtualAssistant(*existing); err != nil {
		storageError(w, err)
		return
	}
	jsonOK(w, assistantJSON(existing))
}

func (s *WebState) handleDeleteAssistant(w http.ResponseWriter, r *http.Request) {
	if err := s.DB.DeleteVirtualAssistant(chi.URLParam(r, "id")); err != nil {
		storageError(w, err)
		return
	}
	jsonOK(w, map[string]string{"status": "deleted"})
}
