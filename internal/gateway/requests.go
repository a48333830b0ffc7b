package gateway

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ResponseRequest is the POST /v1/responses body (spec.md §6).
type ResponseRequest struct {
	Model              string          `json:"model"`
	Input              json.RawMessage `json:"input"`
	Tools              any             `json:"tools"`
	ToolChoice         any             `json:"tool_choice"`
	Stream             bool            `json:"stream"`
	MaxOutputTokens    int             `json:"max_output_tokens"`
	Temperature        float64         `json:"temperature"`
	PreviousResponseID string          `json:"previous_response_id"`
	User               string          `json:"user"`
}

// resolvedInput folds ResponseRequest.Input (a string or an array of
// content items) into a single string.
func (r ResponseRequest) resolvedInput() (string, error) {
	return resolveInput(r.Input)
}

func resolveInput(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString, nil
	}

	var items []map[string]any
	if err := json.Unmarshal(raw, &items); err != nil {
		return "", fmt.Errorf("input must be a string or an array of content items")
	}
	var parts []string
	for _, item := range items {
		if text, ok := item["text"].(string); ok {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n"), nil
}

// ChatMessage is one entry of ChatCompletionRequest.Messages.
type ChatMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// ChatCompletionRequest is the POST /v1/chat/completions body (spec.md §6).
type ChatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	Tools       any           `json:"tools"`
	ToolChoice  any           `json:"tool_choice"`
}

// foldMessages folds chat messages to a single input string by emitting
// "<role>: <text>" lines (spec.md §6); for array content, the texts of items
// of type "text" or "input_text" are concatenated with no separator to form
// <text>, and items of any other type are skipped.
func (c ChatCompletionRequest) foldMessages() (string, error) {
	var lines []string
	for _, msg := range c.Messages {
		text, err := messageText(msg.Content)
		if err != nil {
			return "", err
		}
		lines = append(lines, fmt.Sprintf("%s: %s", msg.Role, text))
	}
	return strings.Join(lines, "\n"), nil
}

func messageText(raw json.RawMessage) (string, error) {
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString, nil
	}

	var items []map[string]any
	if err := json.Unmarshal(raw, &items); err != nil {
		return "", fmt.Errorf("message content must be a string or an array of content items")
	}
	var parts []string
	for _, item := range items {
		itemType, _ := item["type"].(string)
		if itemType != "text" && itemType != "input_text" {
			continue
		}
		if text, ok := item["text"].(string); ok {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, ""), nil
}
