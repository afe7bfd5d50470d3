package web

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nmehra/assistantd/internal/storage"
)

func chatHistoryJSON(h *storage.ChatHistory) map[string]any {
	return map[string]any{
		"id":                   h.ID,
		"virtual_assistant_id": h.VirtualAssistantID,
		"user_id":              h.UserID,
		"message":              h.Message,
		"response":             h.Response,
		"created_at":           h.CreatedAt,
	}
}

func historyListJSON(items []storage.ChatHistory) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for i := range items {
		out = append(out, chatHistoryJSON(&items[i]))
	}
	return out
}

// handleListChatHistory returns the caller's own exchanges.
func (s *WebState) handleListChatHistory(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	items, err := s.DB.ListChatHistoryForUser(user.ID)
	if err != nil {
		storageError(w, err)
		return
	}
	jsonOK(w, historyListJSON(items))
}

// handleCreateChatHistory records an exchange directly, always
// attributed to the caller. The streaming chat path records its own
// history; this exists for clients that buffer turns themselves.
func (s *WebState) handleCreateChatHistory(w http.ResponseWriter, r *http.Request) {
	var body struct {
		VirtualAssistantID *string `json:"virtual_assistant_id"`
		Message            string  `json:"message"`
		Response           string  `json:"response"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Message == "" {
		jsonError(w, "message is required", http.StatusBadRequest)
		return
	}

	user := currentUser(r)
	h := storage.ChatHistory{
		ID:                 uuid.NewString(),
		VirtualAssistantID: body.VirtualAssistantID,
		UserID:             &user.ID,
		Message:            body.Message,
		Response:           body.Response,
	}
	if err := s.DB.CreateChatHistory(h); err != nil {
		storageError(w, err)
		return
	}

	created, err := s.DB.GetChatHistory(h.ID)
	if err != nil || created == nil {
		storageError(w, err)
		return
	}
	jsonCreated(w, chatHistoryJSON(created))
}

// handleGetChatHistory returns one exchange. Non-admins may only read
// their own.
func (s *WebState) handleGetChatHistory(w http.ResponseWriter, r *http.Request) {
	h, err := s.DB.GetChatHistory(chi.URLParam(r, "id"))
	if err != nil {
		storageError(w, err)
		return
	}
	user := currentUser(r)
	if h == nil || (user.Role != storage.RoleAdmin && !ownedBy(h, user.ID)) {
		jsonError(w, "chat history not found", http.StatusNotFound)
		return
	}
	jsonOK(w, chatHistoryJSON(h))
}

// handleDeleteChatHistory removes one exchange, with the same
// ownership check as reads.
func (s *WebState) handleDeleteChatHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h, err := s.DB.GetChatHistory(id)
	if err != nil {
		storageError(w, err)
		return
	}
	user := currentUser(r)
	if h == nil || (user.Role != storage.RoleAdmin && !ownedBy(h, user.ID)) {
		jsonError(w, "chat history not found", http.StatusNotFound)
		return
	}
	if err := s.DB.DeleteChatHistory(id); err != nil {
		storageError(w, err)
		return
	}
	jsonOK(w, map[string]string{"status": "deleted"})
}

// handleClearChatHistory removes all of the caller's exchanges.
func (s *WebState) handleClearChatHistory(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	n, err := s.DB.DeleteChatHistoryForUser(user.ID)
	if err != nil {
		storageError(w, err)
		return
	}
	jsonOK(w, map[string]any{"status": "deleted", "count": n})
}

// handleListAllChatHistory returns every user's exchanges. Admin only.
func (s *WebState) handleListAllChatHistory(w http.ResponseWriter, r *http.Request) {
	items, err := s.DB.ListAllChatHistory()
	if err != nil {
		storageError(w, err)
		return
	}
	jsonOK(w, historyListJSON(items))
}

func ownedBy(h *storage.ChatHistory, userID string) bool {
	return h.UserID != nil && *h.UserID == userID
}
