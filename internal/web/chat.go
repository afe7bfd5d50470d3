package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/google/uuid"

	"github.com/nmehra/assistantd/internal/chat"
	"github.com/nmehra/assistantd/internal/runtime"
	"github.com/nmehra/assistantd/internal/storage"
)

// handleAssistantChat streams one turn against a configured assistant
// over SSE and records the exchange in chat history.
func (s *WebState) handleAssistantChat(w http.ResponseWriter, r *http.Request) {
	var body struct {
		VirtualAssistantID string `json:"virtualAssistantId"`
		Message            string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.VirtualAssistantID == "" || body.Message == "" {
		jsonError(w, "virtualAssistantId and message are required", http.StatusBadRequest)
		return
	}

	flusher, ok := sseStart(w)
	if !ok {
		return
	}

	user := currentUser(r)
	response, err := s.Chat.Turn(r.Context(), user.ID, body.VirtualAssistantID, body.Message, func(fragment string) {
		sseText(w, flusher, fragment)
	})
	if err != nil {
		var nf *storage.NotFoundError
		if errors.As(err, &nf) {
			sseError(w, flusher, nf.Error())
			return
		}
		log.Printf("[web] assistant chat error for user %s: %v", user.ID, err)
		sseError(w, flusher, "chat turn failed")
		return
	}

	if response != "" {
		err := s.DB.CreateChatHistory(storage.ChatHistory{
			ID:                 uuid.NewString(),
			VirtualAssistantID: &body.VirtualAssistantID,
			UserID:             &user.ID,
			Message:            body.Message,
			Response:           response,
		})
		if err != nil {
			log.Printf("[web] recording chat history: %v", err)
		}
	}

	sseDone(w, flusher)
}

// handleChat streams one ad-hoc turn against a model, without a
// configured assistant and without history. Intended for trying out
// models before building an assistant around them.
func (s *WebState) handleChat(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ModelName string `json:"model_name"`
		Message   string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.ModelName == "" || body.Message == "" {
		jsonError(w, "model_name and message are required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	cfg := runtime.AgentConfig{
		Model:        body.ModelName,
		Instructions: s.Config.AgentInstructions,
	}
	if s.Config.MaxTokens > 0 {
		cfg.SamplingParams = map[string]any{"max_tokens": s.Config.MaxTokens}
	}

	agentID, err := s.Runtime.CreateAgent(ctx, cfg)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadGateway)
		return
	}
	sessionID, err := s.Runtime.CreateSession(ctx, agentID, "adhoc-"+uuid.NewString())
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadGateway)
		return
	}
	events, err := s.Runtime.CreateTurn(ctx, agentID, sessionID, []runtime.TurnMessage{
		{Role: "user", Content: body.Message},
	})
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadGateway)
		return
	}

	flusher, ok := sseStart(w)
	if !ok {
		return
	}
	chat.NewReformatter(chat.ModeRegular).Run(events, func(fragment string) {
		sseText(w, flusher, fragment)
	})
	sseDone(w, flusher)
}

// sseStart sets the stream headers and returns the flusher.
func sseStart(w http.ResponseWriter) (http.Flusher, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		jsonError(w, "streaming not supported", http.StatusInternalServerError)
		return nil, false
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	return flusher, true
}

func sseText(w http.ResponseWriter, flusher http.Flusher, text string) {
	fmt.Fprintf(w, "data: %s\n\n", mustJSON(map[string]string{"type": "text", "text": text}))
	flusher.Flush()
}

func sseError(w http.ResponseWriter, flusher http.Flusher, msg string) {
	fmt.Fprintf(w, "data: %s\n\n", mustJSON(map[string]string{"type": "error", "error": msg}))
	flusher.Flush()
}

func sseDone(w http.ResponseWriter, flusher http.Flusher) {
	fmt.Fprintf(w, "data: %s\n\n", mustJSON(map[string]string{"type": "done"}))
	flusher.Flush()
}
