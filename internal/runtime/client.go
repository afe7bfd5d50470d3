package runtime

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks to a Llama Stack-compatible agent runtime over HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewClient creates a runtime client. timeout applies to catalog calls;
// streamed turns use the request context instead.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
	}
}

// BaseURL returns the configured runtime endpoint.
func (c *Client) BaseURL() string { return c.baseURL }

// Model is a runtime catalog model entry.
type Model struct {
	Identifier         string `json:"identifier"`
	ProviderResourceID string `json:"provider_resource_id"`
	ProviderID         string `json:"provider_id"`
	ModelType          string `json:"model_type"` // "llm", "embedding", "safety"
}

// VectorDB is a runtime vector database entry.
type VectorDB struct {
	Identifier         string `json:"identifier"`
	ProviderResourceID string `json:"provider_resource_id"`
	ProviderID         string `json:"provider_id"`
	Type               string `json:"type"`
	EmbeddingModel     string `json:"embedding_model"`
}

// Toolgroup is a runtime toolgroup entry.
type Toolgroup struct {
	Identifier         string `json:"identifier"`
	ProviderResourceID string `json:"provider_resource_id"`
	ProviderID         string `json:"provider_id"`
}

// Tool is a runtime tool entry (used for MCP server discovery).
type Tool struct {
	Identifier  string         `json:"identifier"`
	Description string         `json:"description"`
	ProviderID  string         `json:"provider_id"`
	ToolgroupID string         `json:"toolgroup_id"`
	ToolHost    string         `json:"tool_host"`
	Type        string         `json:"type"`
	Metadata    map[string]any `json:"metadata"`
}

// Shield is a runtime safety shield entry.
type Shield struct {
	Identifier         string `json:"identifier"`
	ProviderResourceID string `json:"provider_resource_id"`
	Type               string `json:"type"`
}

func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	var out []Model
	return out, c.getList(ctx, "/v1/models", &out)
}

func (c *Client) ListVectorDBs(ctx context.Context) ([]VectorDB, error) {
	var out []VectorDB
	return out, c.getList(ctx, "/v1/vector-dbs", &out)
}

func (c *Client) ListToolgroups(ctx context.Context) ([]Toolgroup, error) {
	var out []Toolgroup
	return out, c.getList(ctx, "/v1/toolgroups", &out)
}

func (c *Client) ListTools(ctx context.Context) ([]Tool, error) {
	var out []Tool
	return out, c.getList(ctx, "/v1/tools", &out)
}

func (c *Client) ListShields(ctx context.Context) ([]Shield, error) {
	var out []Shield
	return out, c.getList(ctx, "/v1/shields", &out)
}

// getList fetches a catalog endpoint. The runtime returns either a bare
// JSON array or an object with a "data" array; both are accepted.
func (c *Client) getList(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+path, nil)
	if err != nil {
		return err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("runtime request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("runtime %s returned status %d: %s", path, resp.StatusCode, string(body))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading runtime response: %w", err)
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return json.Unmarshal(trimmed, out)
	}
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return fmt.Errorf("decoding runtime response: %w", err)
	}
	if envelope.Data == nil {
		return nil
	}
	return json.Unmarshal(envelope.Data, out)
}

// AgentConfig configures a new runtime agent.
type AgentConfig struct {
	Model          string         `json:"model"`
	Instructions   string         `json:"instructions"`
	Tools          []any          `json:"tools,omitempty"`
	SamplingParams map[string]any `json:"sampling_params,omitempty"`
	ResponseFormat map[string]any `json:"response_format,omitempty"`
}

// CreateAgent registers an agent and returns its ID.
func (c *Client) CreateAgent(ctx context.Context, cfg AgentConfig) (string, error) {
	var out struct {
		AgentID string `json:"agent_id"`
	}
	body := map[string]any{"agent_config": cfg}
	if err := c.postJSON(ctx, "/v1/agents", body, &out); err != nil {
		return "", err
	}
	if out.AgentID == "" {
		return "", fmt.Errorf("runtime returned empty agent_id")
	}
	return out.AgentID, nil
}

// CreateSession opens a conversation session for an agent.
func (c *Client) CreateSession(ctx context.Context, agentID, name string) (string, error) {
	var out struct {
		SessionID string `json:"session_id"`
	}
	path := fmt.Sprintf("/v1/agents/%s/session", agentID)
	if err := c.postJSON(ctx, path, map[string]any{"session_name": name}, &out); err != nil {
		return "", err
	}
	if out.SessionID == "" {
		return "", fmt.Errorf("runtime returned empty session_id")
	}
	return out.SessionID, nil
}

// TurnMessage is one message submitted with a turn.
type TurnMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CreateTurn starts a streamed turn and returns a channel of events.
// The channel is closed when the stream ends or ctx is cancelled; the
// caller owns draining it.
func (c *Client) CreateTurn(ctx context.Context, agentID, sessionID string, messages []TurnMessage) (<-chan TurnEvent, error) {
	body := map[string]any{
		"messages": messages,
		"stream":   true,
	}
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshalling turn request: %w", err)
	}

	path := fmt.Sprintf("%s/v1/agents/%s/session/%s/turn", c.baseURL, agentID, sessionID)
	req, err := http.NewRequestWithContext(ctx, "POST", path, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)
	req.Header.Set("Accept", "text/event-stream")

	// No client timeout on streamed turns; ctx governs the lifetime.
	streamClient := &http.Client{}
	resp, err := streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("turn request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("runtime turn returned status %d: %s", resp.StatusCode, string(errBody))
	}

	events := make(chan TurnEvent, 100)
	go func() {
		defer close(events)
		defer resp.Body.Close()
		parseTurnStream(ctx, resp.Body, events)
	}()
	return events, nil
}

// parseTurnStream reads SSE frames and pushes decoded events.
func parseTurnStream(ctx context.Context, body io.Reader, events chan<- TurnEvent) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			return
		}

		ev := decodeTurnEvent(data)
		select {
		case events <- ev:
		case <-ctx.Done():
			return
		}
	}
}

// decodeTurnEvent maps one wire frame to a TurnEvent. Frames that cannot
// be decoded, or that lack the event payload, come back with a nil Payload
// so downstream handling can treat them as malformed.
func decodeTurnEvent(data string) TurnEvent {
	var chunk struct {
		Event *struct {
			Payload *EventPayload `json:"payload"`
		} `json:"event"`
	}
	if err := json.Unmarshal([]byte(data), &chunk); err != nil {
		return TurnEvent{Raw: data}
	}
	if chunk.Event == nil || chunk.Event.Payload == nil {
		return TurnEvent{Raw: data}
	}
	return TurnEvent{Payload: chunk.Event.Payload, Raw: data}
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshalling request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("runtime request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		errBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("runtime %s returned status %d: %s", path, resp.StatusCode, string(errBody))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
