package web

import (
	"net/http"

	"github.com/nmehra/assistantd/internal/runtime"
)

// The llama_stack routes proxy the runtime's catalogs directly, for
// admin screens that want the live view rather than the synced copy.

func (s *WebState) handleRuntimeLLMs(w http.ResponseWriter, r *http.Request) {
	s.modelsByType(w, r, "llm")
}

func (s *WebState) handleRuntimeEmbeddingModels(w http.ResponseWriter, r *http.Request) {
	s.modelsByType(w, r, "embedding")
}

func (s *WebState) handleRuntimeSafetyModels(w http.ResponseWriter, r *http.Request) {
	s.modelsByType(w, r, "safety")
}

func (s *WebState) modelsByType(w http.ResponseWriter, r *http.Request, modelType string) {
	models, err := s.Runtime.ListModels(r.Context())
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadGateway)
		return
	}
	filtered := make([]runtime.Model, 0, len(models))
	for _, m := range models {
		if m.ModelType == modelType {
			filtered = append(filtered, m)
		}
	}
	jsonOK(w, filtered)
}

// handleRuntimeKnowledgeBases lists the runtime's vector databases.
func (s *WebState) handleRuntimeKnowledgeBases(w http.ResponseWriter, r *http.Request) {
	dbs, err := s.Runtime.ListVectorDBs(r.Context())
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadGateway)
		return
	}
	jsonOK(w, dbs)
}

func (s *WebState) handleRuntimeToolgroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.Runtime.ListToolgroups(r.Context())
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadGateway)
		return
	}
	jsonOK(w, groups)
}

// handleRuntimeMCPServers lists the tools served over MCP.
func (s *WebState) handleRuntimeMCPServers(w http.ResponseWriter, r *http.Request) {
	tools, err := s.Runtime.ListTools(r.Context())
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadGateway)
		return
	}
	mcp := make([]runtime.Tool, 0, len(tools))
	for _, t := range tools {
		if t.ProviderID == "model-context-protocol" {
			mcp = append(mcp, t)
		}
	}
	jsonOK(w, mcp)
}

func (s *WebState) handleRuntimeShields(w http.ResponseWriter, r *http.Request) {
	shields, err := s.Runtime.ListShields(r.Context())
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadGateway)
		return
	}
	jsonOK(w, shields)
}
