package runtime

import "encoding/json"

// Event types emitted by the agent runtime inside a streamed turn.
// The taxonomy is owned by the runtime; anything unrecognized is passed
// through with its EventType intact so callers can fall back gracefully.
const (
	EventStepProgress = "step_progress"
	EventStepComplete = "step_complete"
)

// Step types carried by step_complete events.
const (
	StepInference     = "inference"
	StepToolExecution = "tool_execution"
)

// TurnEvent is one item from a streamed turn. Payload is nil when the
// runtime sent a frame without the expected payload (malformed).
type TurnEvent struct {
	Payload *EventPayload
	Raw     string // original frame text, used in diagnostics
}

// EventPayload is the typed body of a well-formed turn event.
type EventPayload struct {
	EventType   string       `json:"event_type"`
	Delta       *Delta       `json:"delta,omitempty"`
	StepDetails *StepDetails `json:"step_details,omitempty"`
}

// Delta carries incremental content for step_progress events. Text is a
// pointer so "no text delta" is distinguishable from an empty delta.
type Delta struct {
	Type string  `json:"type,omitempty"`
	Text *string `json:"text,omitempty"`
}

// StepDetails describes a completed step.
type StepDetails struct {
	StepType      string         `json:"step_type"`
	ToolResponses []ToolResponse `json:"tool_responses,omitempty"`
	ToolCalls     []ToolCall     `json:"tool_calls,omitempty"`
}

// ToolResponse is one tool invocation result within a tool_execution step.
type ToolResponse struct {
	ToolName string `json:"tool_name"`
	Content  string `json:"content"`
}

// ToolCall names a tool the agent decided to invoke.
type ToolCall struct {
	ToolName string `json:"tool_name"`
}

// UnmarshalJSON accepts either a JSON string or arbitrary JSON for the
// content field; non-string content is kept as its raw JSON text.
func (t *ToolResponse) UnmarshalJSON(data []byte) error {
	var wire struct {
		ToolName string          `json:"tool_name"`
		Content  json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	t.ToolName = wire.ToolName
	var s string
	if err := json.Unmarshal(wire.Content, &s); err == nil {
		t.Content = s
	} else {
		t.Content = string(wire.Content)
	}
	return nil
}
