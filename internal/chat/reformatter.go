package chat

import (
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/nmehra/assistantd/internal/runtime"
)

// Mode selects which event-interpretation ruleset applies to a turn.
// It is fixed when the turn starts and never changes mid-stream.
type Mode int

const (
	// ModeRegular passes inference text through verbatim and announces
	// tool invocations.
	ModeRegular Mode = iota
	// ModeReAct expects step content formatted as reasoning/action/answer
	// JSON and summarizes tool results at the end of the turn.
	ModeReAct
)

// webSearchTool gets dedicated result formatting (top_k entries with
// title/content/url).
const webSearchTool = "web_search"

// listEntryLimit and dictKeyLimit cap how much of a tool result the
// summary renders. longValueCutoff is the rune count above which string
// values are elided.
const (
	listEntryLimit  = 3
	dictKeyLimit    = 5
	longValueCutoff = 100
)

type toolResult struct {
	name    string
	content string
}

// Reformatter converts one turn's runtime events into markdown text
// fragments for incremental display. All accumulator state is local to
// Run, so a single Reformatter value may serve many turns.
type Reformatter struct {
	mode Mode
}

func NewReformatter(mode Mode) *Reformatter {
	return &Reformatter{mode: mode}
}

// Run consumes events until the channel closes and calls emit for each
// output fragment, in order. It never panics past this point: malformed
// events and unparseable step content degrade to diagnostic fragments,
// and formatting errors degrade to log lines.
func (r *Reformatter) Run(events <-chan runtime.TurnEvent, emit func(string)) {
	if r.mode == ModeReAct {
		r.runReAct(events, emit)
		return
	}
	r.runRegular(events, emit)
}

// runReAct buffers step_progress deltas, interprets each completed step,
// and emits a tool-results summary at end of turn unless a final answer
// was produced. A malformed event terminates the turn immediately.
func (r *Reformatter) runReAct(events <-chan runtime.TurnEvent, emit func(string)) {
	currentStepText := ""
	var finalAnswer *string
	var toolResults []toolResult

	for ev := range events {
		if ev.Payload == nil {
			emit("\n\n🚨 :red[_Llama Stack server Error:_]\n" +
				"The response received is missing an expected `payload` attribute.\n" +
				"This could indicate a malformed response or an internal issue within the server.\n\n" +
				"Error details: " + ev.Raw)
			return
		}

		payload := ev.Payload

		if payload.EventType == runtime.EventStepProgress &&
			payload.Delta != nil && payload.Delta.Text != nil {
			currentStepText += *payload.Delta.Text
			continue
		}

		if payload.EventType == runtime.EventStepComplete {
			details := payload.StepDetails
			if details == nil {
				currentStepText = ""
				continue
			}
			switch details.StepType {
			case runtime.StepInference:
				finalAnswer = processInferenceStep(currentStepText, finalAnswer, emit)
			case runtime.StepToolExecution:
				toolResults = appendToolResults(details, toolResults)
			}
			currentStepText = ""
		}
	}

	if finalAnswer == nil && len(toolResults) > 0 {
		formatToolResultsSummary(toolResults, emit)
	}
}

// runRegular emits deltas verbatim and announces tool usage. Unlike
// ReAct mode, a malformed event yields a diagnostic and processing
// continues with the next event.
func (r *Reformatter) runRegular(events <-chan runtime.TurnEvent, emit func(string)) {
	for ev := range events {
		if ev.Payload == nil {
			emit("Error occurred in the Llama Stack Cluster: " + ev.Raw)
			continue
		}

		payload := ev.Payload

		if payload.EventType == runtime.EventStepProgress {
			if payload.Delta != nil && payload.Delta.Text != nil {
				emit(*payload.Delta.Text)
			}
		}
		if payload.EventType == runtime.EventStepComplete {
			details := payload.StepDetails
			if details != nil && details.StepType == runtime.StepToolExecution {
				if len(details.ToolCalls) > 0 {
					emit(fmt.Sprintf("\n\n🛠 :grey[_Using \"%s\" tool:_]\n\n", details.ToolCalls[0].ToolName))
				} else {
					emit("No tool_calls present in step_details")
				}
			}
		}
	}
}

// processInferenceStep parses buffered step text as ReAct output JSON
// and emits the final answer when one is present. Parse and processing
// failures become diagnostic fragments, never errors.
func processInferenceStep(stepText string, finalAnswer *string, emit func(string)) *string {
	parsed, err := parseJSON(stepText)
	if err != nil {
		emit(fmt.Sprintf("\n\nFailed to parse ReAct step content:\n```json\n%s\n```", stepText))
		return finalAnswer
	}

	obj, ok := parsed.(*orderedObject)
	if !ok {
		emit(fmt.Sprintf("\n\nFailed to process ReAct step: step content is not a JSON object\n```json\n%s\n```", stepText))
		return finalAnswer
	}

	// thought and action are informational; only answer drives output.
	answer, _ := obj.get("answer")
	if s, ok := answer.(string); ok && s != "" && s != "null" {
		emit("\n\n✅ **Final Answer:**\n" + s)
		return &s
	}
	return finalAnswer
}

// appendToolResults records (name, content) pairs from a tool_execution
// step. Steps without response data are log-only.
func appendToolResults(details *runtime.StepDetails, toolResults []toolResult) []toolResult {
	if len(details.ToolResponses) == 0 {
		log.Printf("[chat] tool execution step completed, but no response data found")
		return toolResults
	}
	for _, tr := range details.ToolResponses {
		toolResults = append(toolResults, toolResult{name: tr.ToolName, content: tr.Content})
	}
	return toolResults
}

// formatToolResultsSummary renders the end-of-turn summary. Each tool's
// content is formatted independently: one tool failing to parse or
// render does not affect the others.
func formatToolResultsSummary(results []toolResult, emit func(string)) {
	emit("\n\n**Here's what I found:**\n")
	for _, tr := range results {
		parsed, err := parseJSON(tr.content)
		if err != nil {
			emit(fmt.Sprintf("\n**%s** was used but returned complex data. Check the observation for details.\n", tr.name))
			continue
		}
		if err := formatParsedToolResult(tr.name, parsed, emit); err != nil {
			log.Printf("[chat] error processing %s result: %v", tr.name, err)
		}
	}
}

// formatParsedToolResult selects the first matching rendering rule for
// one tool's parsed content.
func formatParsedToolResult(name string, parsed any, emit func(string)) error {
	if obj, ok := parsed.(*orderedObject); ok {
		if name == webSearchTool {
			if topK, found := obj.get("top_k"); found {
				entries, ok := topK.([]any)
				if !ok {
					return fmt.Errorf("top_k is not a list")
				}
				return formatWebSearchResults(entries, emit)
			}
		}
		if res, found := obj.get("results"); found {
			if entries, ok := res.([]any); ok {
				formatResultsList(entries, emit)
				return nil
			}
		}
		if obj.len() > 0 {
			formatDictResults(obj, emit)
		}
		return nil
	}

	if arr, ok := parsed.([]any); ok && len(arr) > 0 {
		formatListResults(arr, emit)
	}
	return nil
}

// formatWebSearchResults renders up to the first 3 top_k entries.
func formatWebSearchResults(entries []any, emit func(string)) error {
	for i, entry := range entries {
		if i >= listEntryLimit {
			break
		}
		obj, ok := entry.(*orderedObject)
		if !ok {
			return fmt.Errorf("top_k entry %d is not an object", i+1)
		}
		title := valueOr(obj, "title", "Untitled")
		url := valueOr(obj, "url", "")
		content, ok := valueOr(obj, "content", "").(string)
		if !ok {
			return fmt.Errorf("top_k entry %d content is not a string", i+1)
		}
		emit(fmt.Sprintf("\n- **%v**\n  %s\n  [Source](%v)\n", title, strings.TrimSpace(content), url))
	}
	return nil
}

// formatResultsList renders up to the first 3 entries of a results list.
func formatResultsList(entries []any, emit func(string)) {
	for i, entry := range entries {
		if i >= listEntryLimit {
			break
		}
		obj, ok := entry.(*orderedObject)
		if !ok {
			emit(fmt.Sprintf("\n- %v\n", entry))
			continue
		}
		name := valueOr(obj, "name", valueOr(obj, "title", fmt.Sprintf("Result %d", i+1)))
		description := valueOr(obj, "description", valueOr(obj, "content", valueOr(obj, "summary", "")))
		emit(fmt.Sprintf("\n- **%v**\n  %v\n", name, description))
	}
}

// formatDictResults renders up to the first 5 key/value pairs inside a
// fenced block. Long or non-string values are elided.
func formatDictResults(obj *orderedObject, emit func(string)) {
	emit("\n```\n")
	for i, key := range obj.keys {
		if i >= dictKeyLimit {
			break
		}
		v := obj.values[key]
		if s, ok := v.(string); ok && utf8.RuneCountInString(s) < longValueCutoff {
			emit(fmt.Sprintf("%s: %s\n", key, s))
		} else {
			emit(fmt.Sprintf("%s: [Complex data]\n", key))
		}
	}
	emit("```\n")
}

// formatListResults renders up to the first 3 entries of a bare list.
func formatListResults(entries []any, emit func(string)) {
	emit("\n")
	for i, item := range entries {
		if i >= listEntryLimit {
			break
		}
		switch v := item.(type) {
		case string:
			emit(fmt.Sprintf("- %s\n", v))
		case *orderedObject:
			if text, found := v.get("text"); found {
				emit(fmt.Sprintf("- %v\n", text))
				continue
			}
			if v.len() > 0 {
				first := v.values[v.keys[0]]
				if s, ok := first.(string); ok && utf8.RuneCountInString(s) < longValueCutoff {
					emit(fmt.Sprintf("- %s\n", s))
				}
			}
		}
	}
}

// valueOr returns the value for key, or def when the key is absent.
func valueOr(obj *orderedObject, key string, def any) any {
	if v, found := obj.get(key); found {
		return v
	}
	return def
}
