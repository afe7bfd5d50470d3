package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/nmehra/assistantd/internal/runtime"
	"github.com/nmehra/assistantd/internal/storage"
)

// ragToolgroup is the runtime's built-in retrieval toolgroup. It is
// attached automatically when an assistant has knowledge bases.
const ragToolgroup = "builtin::rag"

// Chat drives one assistant conversation turn end to end: it resolves
// the assistant's configuration, reuses or creates the runtime agent
// and session, streams the turn, and reformats events for the client.
type Chat struct {
	db           *storage.Database
	rt           *runtime.Client
	instructions string
	maxTokens    int
}

func New(db *storage.Database, rt *runtime.Client, instructions string, maxTokens int) *Chat {
	return &Chat{db: db, rt: rt, instructions: instructions, maxTokens: maxTokens}
}

// sessionState is the cached agent/session pair for a user+assistant.
type sessionState struct {
	AgentID   string `json:"agent_id"`
	SessionID string `json:"session_id"`
}

// Turn runs one conversation turn. Output fragments go to emit in
// order; the concatenated response is returned for persistence. The
// assistant's prompt, model and tools are resolved fresh on every turn
// so edits take effect without restarting sessions.
func (c *Chat) Turn(ctx context.Context, userID, assistantID, message string, emit func(string)) (string, error) {
	va, err := c.db.GetVirtualAssistant(assistantID)
	if err != nil {
		return "", fmt.Errorf("loading assistant: %w", err)
	}
	if va == nil {
		return "", &storage.NotFoundError{Kind: "virtual assistant", ID: assistantID}
	}

	state, err := c.sessionFor(ctx, userID, va)
	if err != nil {
		return "", err
	}

	events, err := c.rt.CreateTurn(ctx, state.AgentID, state.SessionID, []runtime.TurnMessage{
		{Role: "user", Content: message},
	})
	if err != nil {
		// The cached agent or session may have expired on the runtime
		// side. Drop the cache and retry once with a fresh pair.
		key := sessionKey(userID, assistantID)
		if derr := c.db.DeleteChatSession(key); derr != nil {
			log.Printf("[chat] dropping stale session %s: %v", key, derr)
		}
		state, err = c.sessionFor(ctx, userID, va)
		if err != nil {
			return "", err
		}
		events, err = c.rt.CreateTurn(ctx, state.AgentID, state.SessionID, []runtime.TurnMessage{
			{Role: "user", Content: message},
		})
		if err != nil {
			return "", fmt.Errorf("starting turn: %w", err)
		}
	}

	var response strings.Builder
	NewReformatter(ModeRegular).Run(events, func(fragment string) {
		response.WriteString(fragment)
		emit(fragment)
	})
	return response.String(), nil
}

// sessionFor returns the cached agent/session for the user+assistant
// pair, creating both on the runtime when absent.
func (c *Chat) sessionFor(ctx context.Context, userID string, va *storage.VirtualAssistant) (sessionState, error) {
	key := sessionKey(userID, va.ID)

	cached, err := c.db.GetChatSession(key)
	if err != nil {
		return sessionState{}, fmt.Errorf("loading session cache: %w", err)
	}
	if cached != nil {
		var state sessionState
		if err := json.Unmarshal([]byte(cached.State), &state); err == nil &&
			state.AgentID != "" && state.SessionID != "" {
			return state, nil
		}
		// Unreadable cache entry; recreate below.
		if err := c.db.DeleteChatSession(key); err != nil {
			log.Printf("[chat] dropping unreadable session %s: %v", key, err)
		}
	}

	tools, err := c.buildTools(va)
	if err != nil {
		return sessionState{}, err
	}

	instructions := va.Prompt
	if instructions == "" {
		instructions = c.instructions
	}

	cfg := runtime.AgentConfig{
		Model:        va.ModelName,
		Instructions: instructions,
		Tools:        tools,
	}
	if c.maxTokens > 0 {
		cfg.SamplingParams = map[string]any{"max_tokens": c.maxTokens}
	}

	agentID, err := c.rt.CreateAgent(ctx, cfg)
	if err != nil {
		return sessionState{}, fmt.Errorf("creating agent: %w", err)
	}
	sessionID, err := c.rt.CreateSession(ctx, agentID, key)
	if err != nil {
		return sessionState{}, fmt.Errorf("creating session: %w", err)
	}

	state := sessionState{AgentID: agentID, SessionID: sessionID}
	raw, _ := json.Marshal(state)
	if err := c.db.PutChatSession(key, string(raw)); err != nil {
		log.Printf("[chat] caching session %s: %v", key, err)
	}
	return state, nil
}

// buildTools assembles the agent tool list: the assistant's configured
// toolgroups plus the retrieval toolgroup when knowledge bases are
// attached.
func (c *Chat) buildTools(va *storage.VirtualAssistant) ([]any, error) {
	tools := make([]any, 0, len(va.Tools)+1)
	for _, t := range va.Tools {
		if t == ragToolgroup {
			continue // attached below with vector database arguments
		}
		tools = append(tools, t)
	}

	if len(va.KnowledgeBases) == 0 {
		return tools, nil
	}

	vectorDBs := make([]string, 0, len(va.KnowledgeBases))
	for _, kbID := range va.KnowledgeBases {
		kb, err := c.db.GetKnowledgeBase(kbID)
		if err != nil {
			return nil, fmt.Errorf("loading knowledge base %s: %w", kbID, err)
		}
		if kb == nil {
			log.Printf("[chat] assistant %s references missing knowledge base %s", va.ID, kbID)
			continue
		}
		vectorDBs = append(vectorDBs, kb.VectorDBName)
	}
	if len(vectorDBs) > 0 {
		tools = append(tools, map[string]any{
			"name": ragToolgroup,
			"args": map[string]any{"vector_db_ids": vectorDBs},
		})
	}
	return tools, nil
}

func sessionKey(userID, assistantID string) string {
	return userID + ":" + assistantID
}
