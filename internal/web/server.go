package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nmehra/assistantd/internal/catalog"
	"github.com/nmehra/assistantd/internal/chat"
	"github.com/nmehra/assistantd/internal/config"
	"github.com/nmehra/assistantd/internal/runtime"
	"github.com/nmehra/assistantd/internal/storage"
)

// WebState holds web server shared state.
type WebState struct {
	Config  *config.Config
	DB      *storage.Database
	Runtime *runtime.Client
	Chat    *chat.Chat
	Syncer  *catalog.Syncer
}

// StartWebServer creates and starts the web server. It blocks until
// ctx is cancelled or the listener fails.
func StartWebServer(ctx context.Context, cfg *config.Config, db *storage.Database, rt *runtime.Client, ch *chat.Chat, syncer *catalog.Syncer) error {
	state := &WebState{
		Config:  cfg,
		DB:      db,
		Runtime: rt,
		Chat:    ch,
		Syncer:  syncer,
	}
	r := newRouter(state)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Printf("[web] server starting on %s", addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// newRouter builds the full route tree for the API.
func newRouter(state *WebState) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	r.Route("/api", func(r chi.Router) {
		// Health check, no identity required.
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			jsonOK(w, map[string]string{"status": "ok"})
		})

		r.Group(func(r chi.Router) {
			r.Use(state.identityMiddleware)

			r.Get("/me", state.handleWhoAmI)

			r.Route("/users", func(r chi.Router) {
				r.Use(state.requireRole(storage.RoleAdmin))
				r.Get("/", state.handleListUsers)
				r.Post("/", state.handleCreateUser)
				r.Get("/username/{username}", state.handleGetUserByUsername)
				r.Get("/{id}", state.handleGetUser)
				r.Put("/{id}", state.handleUpdateUser)
				r.Delete("/{id}", state.handleDeleteUser)
			})

			r.Route("/mcp_servers", func(r chi.Router) {
				r.Get("/", state.handleListMCPServers)
				r.Get("/{id}", state.handleGetMCPServer)
				r.Group(func(r chi.Router) {
					r.Use(state.requireRole(storage.RoleAdmin, storage.RoleOps))
					r.Post("/", state.handleCreateMCPServer)
					r.Put("/{id}", state.handleUpdateMCPServer)
					r.Delete("/{id}", state.handleDeleteMCPServer)
					r.Post("/sync", state.handleSyncMCPServers)
				})
			})

			r.Route("/model_servers", func(r chi.Router) {
				r.Get("/", state.handleListModelServers)
				r.Get("/{id}", state.handleGetModelServer)
				r.Group(func(r chi.Router) {
					r.Use(state.requireRole(storage.RoleAdmin, storage.RoleOps))
					r.Post("/", state.handleCreateModelServer)
					r.Put("/{id}", state.handleUpdateModelServer)
					r.Delete("/{id}", state.handleDeleteModelServer)
					r.Post("/sync", state.handleSyncModelServers)
				})
			})

			r.Route("/knowledge_bases", func(r chi.Router) {
				r.Get("/", state.handleListKnowledgeBases)
				r.Get("/{id}", state.handleGetKnowledgeBase)
				r.Group(func(r chi.Router) {
					r.Use(state.requireRole(storage.RoleAdmin, storage.RoleOps))
					r.Post("/", state.handleCreateKnowledgeBase)
					r.Put("/{id}", state.handleUpdateKnowledgeBase)
					r.Delete("/{id}", state.handleDeleteKnowledgeBase)
					r.Post("/sync", state.handleSyncKnowledgeBases)
				})
			})

			r.Route("/virtual_assistants", func(r chi.Router) {
				r.Get("/", state.handleListAssistants)
				r.Get("/{id}", state.handleGetAssistant)
				r.Get("/{id}/components", state.handleAssistantComponents)
				r.Group(func(r chi.Router) {
					r.Use(state.requireRole(storage.RoleAdmin, storage.RoleOps))
					r.Post("/", state.handleCreateAssistant)
					r.Put("/{id}", state.handleUpdateAssistant)
					r.Delete("/{id}", state.handleDeleteAssistant)
				})
			})

			r.Route("/guardrails", func(r chi.Router) {
				r.Get("/", state.handleListGuardrails)
				r.Get("/{id}", state.handleGetGuardrail)
				r.Group(func(r chi.Router) {
					r.Use(state.requireRole(storage.RoleAdmin, storage.RoleOps))
					r.Post("/", state.handleCreateGuardrail)
					r.Put("/{id}", state.handleUpdateGuardrail)
					r.Delete("/{id}", state.handleDeleteGuardrail)
				})
			})

			r.Route("/chat_history", func(r chi.Router) {
				r.Get("/", state.handleListChatHistory)
				r.Post("/", state.handleCreateChatHistory)
				r.Get("/{id}", state.handleGetChatHistory)
				r.Delete("/{id}", state.handleDeleteChatHistory)
				r.Delete("/", state.handleClearChatHistory)
				r.With(state.requireRole(storage.RoleAdmin)).Get("/admin/all", state.handleListAllChatHistory)
			})

			r.Route("/llama_stack", func(r chi.Router) {
				r.Get("/llms", state.handleRuntimeLLMs)
				r.Get("/embedding_models", state.handleRuntimeEmbeddingModels)
				r.Get("/safety_models", state.handleRuntimeSafetyModels)
				r.Get("/knowledge_bases", state.handleRuntimeKnowledgeBases)
				r.Get("/toolgroups", state.handleRuntimeToolgroups)
				r.Get("/mcp_servers", state.handleRuntimeMCPServers)
				r.Get("/shields", state.handleRuntimeShields)
				r.Post("/chat", state.handleChat)
				r.Post("/vachat", state.handleAssistantChat)
			})
		})
	})

	return r
}

// corsMiddleware allows the SPA frontend, served from any origin, to
// call the API. Identity comes from proxy headers so there are no
// credentials to protect here.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Forwarded-Email, X-Auth-Request-Email")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func jsonOK(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func jsonCreated(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(data)
}

// storageError maps storage failures to HTTP responses.
func storageError(w http.ResponseWriter, err error) {
	var nf *storage.NotFoundError
	if errors.As(err, &nf) {
		jsonError(w, nf.Error(), http.StatusNotFound)
		return
	}
	log.Printf("[web] storage error: %v", err)
	jsonError(w, "internal error", http.StatusInternalServerError)
}

func mustJSON(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}
