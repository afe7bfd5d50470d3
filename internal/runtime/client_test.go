package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(handler http.Handler) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	return NewClient(srv.URL, "test-key", 5*time.Second), srv
}

func TestListModelsEnvelope(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("missing auth header, got %q", got)
		}
		fmt.Fprint(w, `{"data": [{"identifier": "llama-3", "provider_id": "ollama", "model_type": "llm"}]}`)
	}))
	defer srv.Close()

	models, err := c.ListModels(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(models) != 1 || models[0].Identifier != "llama-3" || models[0].ModelType != "llm" {
		t.Errorf("got %+v", models)
	}
}

func TestListModelsBareArray(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"identifier": "llama-3"}]`)
	}))
	defer srv.Close()

	models, err := c.ListModels(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(models) != 1 || models[0].Identifier != "llama-3" {
		t.Errorf("got %+v", models)
	}
}

func TestListErrorStatus(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	if _, err := c.ListModels(context.Background()); err == nil {
		t.Fatal("expected error on 500")
	}
}

func TestCreateAgentAndSession(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/agents":
			var body struct {
				AgentConfig AgentConfig `json:"agent_config"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Error(err)
			}
			if body.AgentConfig.Model != "llama-3" {
				t.Errorf("model = %q", body.AgentConfig.Model)
			}
			fmt.Fprint(w, `{"agent_id": "agent-1"}`)
		case "/v1/agents/agent-1/session":
			fmt.Fprint(w, `{"session_id": "sess-1"}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	agentID, err := c.CreateAgent(ctx, AgentConfig{Model: "llama-3", Instructions: "hi"})
	if err != nil {
		t.Fatal(err)
	}
	if agentID != "agent-1" {
		t.Errorf("agentID = %q", agentID)
	}

	sessionID, err := c.CreateSession(ctx, agentID, "test")
	if err != nil {
		t.Fatal(err)
	}
	if sessionID != "sess-1" {
		t.Errorf("sessionID = %q", sessionID)
	}
}

func TestCreateTurnStreaming(t *testing.T) {
	frames := []string{
		`{"event": {"payload": {"event_type": "step_progress", "delta": {"type": "text", "text": "hello"}}}}`,
		`this is not json`,
		`{"no_event_key": true}`,
		`{"event": {"payload": {"event_type": "step_complete", "step_details": {"step_type": "tool_execution", "tool_responses": [{"tool_name": "t", "content": {"k": 1}}]}}}}`,
	}
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/agents/a/session/s/turn" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, f := range frames {
			fmt.Fprintf(w, "data: %s\n\n", f)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	events, err := c.CreateTurn(context.Background(), "a", "s", []TurnMessage{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatal(err)
	}

	var got []TurnEvent
	for ev := range events {
		got = append(got, ev)
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 events, got %d", len(got))
	}

	if got[0].Payload == nil || got[0].Payload.EventType != EventStepProgress {
		t.Errorf("first event: %+v", got[0])
	}
	if got[0].Payload.Delta == nil || got[0].Payload.Delta.Text == nil || *got[0].Payload.Delta.Text != "hello" {
		t.Errorf("first delta: %+v", got[0].Payload.Delta)
	}

	// Undecodable and payload-less frames surface with a nil Payload.
	if got[1].Payload != nil || got[1].Raw != frames[1] {
		t.Errorf("second event: %+v", got[1])
	}
	if got[2].Payload != nil {
		t.Errorf("third event should be malformed: %+v", got[2])
	}

	details := got[3].Payload.StepDetails
	if details == nil || details.StepType != StepToolExecution {
		t.Fatalf("fourth event: %+v", got[3])
	}
	// Non-string tool content is kept as raw JSON text.
	if len(details.ToolResponses) != 1 || details.ToolResponses[0].Content != `{"k": 1}` {
		t.Errorf("tool responses: %+v", details.ToolResponses)
	}
}

func TestCreateTurnErrorStatus(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such session", http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := c.CreateTurn(context.Background(), "a", "s", nil); err == nil {
		t.Fatal("expected error on 404")
	}
}
