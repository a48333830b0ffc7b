package orchestrator

import "github.com/silverfisk/rants/internal/transcript"

// Status mirrors spec.md §3's ResponseObject.status enumeration.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
	StatusIncomplete Status = "incomplete"
)

// OutputTextContent is the single content item of an OutputMessage.
type OutputTextContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// OutputMessage is the single output item of a ResponseObject.
type OutputMessage struct {
	Type    string              `json:"type"`
	Role    string              `json:"role"`
	Content []OutputTextContent `json:"content"`
}

// Usage is an echo-only accounting placeholder; the core does not meter
// upstream token usage itself (that lives with the upstream provider), so
// this is always zero-valued unless a caller fills it in downstream.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// ResponseObject is the externally visible turn result (spec.md §3).
type ResponseObject struct {
	ID                 string          `json:"id"`
	CreatedAt          float64         `json:"created_at"`
	CompletedAt        float64         `json:"completed_at,omitempty"`
	Status             Status          `json:"status"`
	Model              string          `json:"model"`
	Output             []OutputMessage `json:"output"`
	ToolChoice         any             `json:"tool_choice,omitempty"`
	Tools              any             `json:"tools,omitempty"`
	PreviousResponseID string          `json:"previous_response_id,omitempty"`
	User               string          `json:"user,omitempty"`
	Usage              Usage           `json:"usage"`
}

// Text returns the concatenation of the response's sole output message
// text, or "" if there is none.
func (r *ResponseObject) Text() string {
	if len(r.Output) == 0 || len(r.Output[0].Content) == 0 {
		return ""
	}
	return r.Output[0].Content[0].Text
}

func newResponse(id, model string, previousResponseID, user string, toolChoice, toolsEcho any, createdAt float64) *ResponseObject {
	return &ResponseObject{
		ID:                 id,
		CreatedAt:          createdAt,
		Status:             StatusInProgress,
		Model:              model,
		PreviousResponseID: previousResponseID,
		User:               user,
		ToolChoice:         toolChoice,
		Tools:              toolsEcho,
	}
}

func (r *ResponseObject) setText(text string) {
	r.Output = []OutputMessage{{
		Type: "message",
		Role: "assistant",
		Content: []OutputTextContent{{
			Type: "output_text",
			Text: text,
		}},
	}}
}

// transcriptText concatenates generator_output across all steps in order
// (spec.md §8's first testable invariant).
func transcriptText(t *transcript.CanonicalTranscript) string {
	return t.FinalText()
}
