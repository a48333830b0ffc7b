package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/silverfisk/rants/internal/orchestrator"
	"github.com/silverfisk/rants/internal/toolcompiler"
	"github.com/silverfisk/rants/internal/upstream"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "version": Version})
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	data := make([]map[string]any, 0, len(s.Models))
	for _, id := range s.Models {
		data = append(data, map[string]any{"id": id, "object": "model"})
	}
	writeJSON(w, http.StatusOK, map[string]any{"object": "list", "data": data})
}

func (s *Server) handleResponses(w http.ResponseWriter, r *http.Request) {
	var body ResponseRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body: "+err.Error(), "invalid_request_error", "malformed_json")
		return
	}
	input, err := body.resolvedInput()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "invalid_request_error", "invalid_input")
		return
	}
	if body.Model != "" && !s.modelKnown(body.Model) {
		writeError(w, http.StatusBadRequest, "unknown model", "invalid_request_error", "unknown_model")
		return
	}

	tenantID := tenantFromContext(r.Context())
	if !s.Auth.Enabled() && body.User != "" {
		tenantID = body.User
	}

	req := orchestrator.Request{
		Model:              body.Model,
		User:               input,
		ToolChoice:         body.ToolChoice,
		ToolsEcho:          body.Tools,
		ExecuteTools:       true,
		PreviousResponseID: body.PreviousResponseID,
		TenantID:           tenantID,
	}

	resp, t, err := s.Orchestrator.Run(r.Context(), req)
	if err != nil {
		s.writeOrchestratorError(w, err)
		return
	}

	if body.Stream {
		s.streamResponseEvents(w, resp)
		return
	}
	_ = t
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var body ChatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body: "+err.Error(), "invalid_request_error", "malformed_json")
		return
	}
	input, err := body.foldMessages()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "invalid_request_error", "invalid_input")
		return
	}
	if body.Model != "" && !s.modelKnown(body.Model) {
		writeError(w, http.StatusBadRequest, "unknown model", "invalid_request_error", "unknown_model")
		return
	}

	tenantID := tenantFromContext(r.Context())

	req := orchestrator.Request{
		Model:        body.Model,
		User:         input,
		ToolChoice:   body.ToolChoice,
		ToolsEcho:    body.Tools,
		ExecuteTools: false,
		TenantID:     tenantID,
	}

	resp, t, err := s.Orchestrator.Run(r.Context(), req)
	if err != nil {
		s.writeOrchestratorError(w, err)
		return
	}

	chatResp, err := orchestrator.ProjectChatCompletion(resp, t)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), "internal_error", "projection_error")
		return
	}

	if body.Stream {
		s.streamChatCompletion(w, chatResp)
		return
	}
	writeJSON(w, http.StatusOK, chatResp)
}

// writeOrchestratorError maps an orchestrator-surfaced error to the 502
// upstream-error envelope spec.md §7 specifies; compiler errors
// (toolcompiler.ErrCompile) are treated identically, as the spec requires.
func (s *Server) writeOrchestratorError(w http.ResponseWriter, err error) {
	var upstreamErr *upstream.Error
	var message string
	switch {
	case errors.As(err, &upstreamErr):
		message = fmt.Sprintf("Upstream error (status %d): %s", upstreamErr.Status, upstream.ExtractErrorMessage(upstreamErr.Status, upstreamErr.Body))
	case errors.Is(err, toolcompiler.ErrCompile):
		message = "Upstream error: " + err.Error()
	default:
		message = "Upstream error: " + err.Error()
	}
	writeError(w, http.StatusBadGateway, message, "upstream_error", "upstream_error")
}

func (s *Server) streamResponseEvents(w http.ResponseWriter, resp *orchestrator.ResponseObject) {
	flusher, ok := w.(http.Flusher)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	for _, event := range orchestrator.StreamEvents(resp) {
		writeSSE(w, event)
		if ok {
			flusher.Flush()
		}
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
	if ok {
		flusher.Flush()
	}
}

func (s *Server) streamChatCompletion(w http.ResponseWriter, resp orchestrator.ChatCompletionResponse) {
	flusher, ok := w.(http.Flusher)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	text := ""
	if len(resp.Choices) > 0 {
		text = resp.Choices[0].Message.Content
	}
	for start := 0; start < len(text); start += 64 {
		end := start + 64
		if end > len(text) {
			end = len(text)
		}
		chunk := map[string]any{
			"id":      resp.ID,
			"object":  "chat.completion.chunk",
			"created": resp.Created,
			"model":   resp.Model,
			"choices": []map[string]any{{
				"index": 0,
				"delta": map[string]any{"content": text[start:end]},
			}},
		}
		writeSSE(w, chunk)
		if ok {
			flusher.Flush()
		}
	}

	finalChunk := map[string]any{
		"id":      resp.ID,
		"object":  "chat.completion.chunk",
		"created": resp.Created,
		"model":   resp.Model,
		"choices": []map[string]any{{
			"index":         0,
			"delta":         map[string]any{},
			"finish_reason": "stop",
		}},
	}
	writeSSE(w, finalChunk)
	if ok {
		flusher.Flush()
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
	if ok {
		flusher.Flush()
	}
}

func writeSSE(w http.ResponseWriter, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
}
