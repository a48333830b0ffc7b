package orchestrator

import (
	"encoding/json"
	"fmt"

	"github.com/silverfisk/rants/internal/transcript"
)

const deltaChunkSize = 64

// Event is one item of the deterministic streaming projection spec.md
// §4.5 describes: response.created, then output_text.delta chunks, then
// output_text.done, then response.completed — all emitted only after the
// blocking orchestration loop finishes (spec.md §9's open-question choice:
// kept as after-completion, not upgraded to true incremental streaming).
type Event struct {
	Type           string          `json:"type"`
	SequenceNumber int             `json:"sequence_number"`
	Response       *ResponseObject `json:"response,omitempty"`
	Delta          string          `json:"delta,omitempty"`
	Text           string          `json:"text,omitempty"`
}

// StreamEvents builds the full ordered event sequence for a completed
// response. Sequence numbers are 0..N-1 with no gaps, and the
// concatenation of delta strings equals the done event's text (spec.md §8).
func StreamEvents(resp *ResponseObject) []Event {
	text := resp.Text()
	seq := 0
	events := []Event{{Type: "response.created", SequenceNumber: seq, Response: resp}}
	seq++

	for start := 0; start < len(text); start += deltaChunkSize {
		end := start + deltaChunkSize
		if end > len(text) {
			end = len(text)
		}
		events = append(events, Event{Type: "response.output_text.delta", SequenceNumber: seq, Delta: text[start:end]})
		seq++
	}
	events = append(events, Event{Type: "response.output_text.done", SequenceNumber: seq, Text: text})
	seq++
	events = append(events, Event{Type: "response.completed", SequenceNumber: seq, Response: resp})
	return events
}

// ChatCompletionToolCall mirrors OpenAI's choices[].message.tool_calls[] shape.
type ChatCompletionToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

// ChatCompletionMessage mirrors choices[].message.
type ChatCompletionMessage struct {
	Role      string                   `json:"role"`
	Content   string                   `json:"content,omitempty"`
	ToolCalls []ChatCompletionToolCall `json:"tool_calls,omitempty"`
}

// ChatCompletionChoice mirrors choices[].
type ChatCompletionChoice struct {
	Index        int                   `json:"index"`
	Message      ChatCompletionMessage `json:"message"`
	FinishReason string                `json:"finish_reason"`
}

// ChatCompletionResponse is the non-streaming chat-completions projection.
type ChatCompletionResponse struct {
	ID      string                 `json:"id"`
	Object  string                 `json:"object"`
	Created float64                `json:"created"`
	Model   string                 `json:"model"`
	Choices []ChatCompletionChoice `json:"choices"`
}

// ProjectChatCompletion builds the chat-completions response, mapping the
// last step's compiled tool calls when present (spec.md §4.5).
func ProjectChatCompletion(resp *ResponseObject, t *transcript.CanonicalTranscript) (ChatCompletionResponse, error) {
	choice := ChatCompletionChoice{
		Index:        0,
		Message:      ChatCompletionMessage{Role: "assistant"},
		FinishReason: "stop",
	}

	if calls := lastStepToolCalls(t); len(calls) > 0 {
		toolCalls := make([]ChatCompletionToolCall, len(calls))
		for i, call := range calls {
			args, err := json.Marshal(call.Parameters)
			if err != nil {
				return ChatCompletionResponse{}, fmt.Errorf("marshal tool call arguments: %w", err)
			}
			tc := ChatCompletionToolCall{ID: fmt.Sprintf("call_%s_%d", resp.ID, i), Type: "function"}
			tc.Function.Name = call.Tool
			tc.Function.Arguments = string(args)
			toolCalls[i] = tc
		}
		choice.Message.ToolCalls = toolCalls
		choice.FinishReason = "tool_calls"
	} else {
		choice.Message.Content = resp.Text()
	}

	return ChatCompletionResponse{
		ID:      resp.ID,
		Object:  "chat.completion",
		Created: resp.CreatedAt,
		Model:   resp.Model,
		Choices: []ChatCompletionChoice{choice},
	}, nil
}

func lastStepToolCalls(t *transcript.CanonicalTranscript) []transcript.ToolCall {
	if len(t.Steps) == 0 {
		return nil
	}
	return t.Steps[len(t.Steps)-1].ToolCalls
}
