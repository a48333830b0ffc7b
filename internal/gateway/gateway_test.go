package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silverfisk/rants/internal/auth"
	"github.com/silverfisk/rants/internal/orchestrator"
	"github.com/silverfisk/rants/internal/ratelimit"
	"github.com/silverfisk/rants/internal/rlm"
	"github.com/silverfisk/rants/internal/tools"
	"github.com/silverfisk/rants/internal/transcript"
	"github.com/silverfisk/rants/internal/upstream"
)

type stubGenerator struct {
	text string
	err  error
}

func (g *stubGenerator) Generate(context.Context, *transcript.CanonicalTranscript) (rlm.Output, error) {
	if g.err != nil {
		return rlm.Output{}, g.err
	}
	return rlm.Output{Text: g.text}, nil
}

func (g *stubGenerator) CompileIntent(context.Context, *transcript.CanonicalTranscript, []transcript.ToolSchema, string) (string, error) {
	return "", nil
}

type stubRegistry struct{}

func (stubRegistry) Schemas() []transcript.ToolSchema { return nil }
func (stubRegistry) Execute(context.Context, *tools.Context, string, map[string]any) tools.Result {
	return tools.OKResult(nil)
}

type stubStore struct{}

func (stubStore) LoadPreviousSteps(context.Context, string, string) ([]transcript.Step, bool, error) {
	return nil, false, nil
}
func (stubStore) SaveResponse(context.Context, *orchestrator.ResponseObject, *transcript.CanonicalTranscript, string) error {
	return nil
}
func (stubStore) SaveChildSession(context.Context, string, string, int, *transcript.CanonicalTranscript) error {
	return nil
}

func newTestServer(gen orchestrator.Generator) *Server {
	o := orchestrator.New(gen, stubRegistry{}, stubStore{}, nil, orchestrator.Limits{MaxToolIterations: 3}, tools.Context{})
	return &Server{
		Orchestrator: o,
		Auth:         auth.NewService(auth.Config{Enabled: false}),
		RateLimiter:  ratelimit.NewLimiter(ratelimit.Config{Enabled: false}),
		Models:       []string{"rants_one"},
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(&stubGenerator{text: "hi"})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestModelsEndpoint(t *testing.T) {
	srv := newTestServer(&stubGenerator{text: "hi"})
	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	data := body["data"].([]any)
	require.Len(t, data, 1)
	assert.Equal(t, "rants_one", data[0].(map[string]any)["id"])
}

func TestResponsesHappyPath(t *testing.T) {
	srv := newTestServer(&stubGenerator{text: "hello there"})
	payload := `{"model":"rants_one","input":"hi"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/responses", bytes.NewBufferString(payload))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp orchestrator.ResponseObject
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "hello there", resp.Text())
	assert.Equal(t, "completed", string(resp.Status))
}

func TestResponsesUpstreamErrorMapsTo502(t *testing.T) {
	srv := newTestServer(&stubGenerator{err: &upstream.Error{Status: 500, Body: `{"error":{"message":"boom"}}`}})
	payload := `{"model":"rants_one","input":"hi"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/responses", bytes.NewBufferString(payload))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	errObj := body["error"].(map[string]any)
	assert.Equal(t, "upstream_error", errObj["type"])
	assert.Contains(t, errObj["message"], "boom")
}

func TestResponsesRejectsUnknownModel(t *testing.T) {
	srv := newTestServer(&stubGenerator{text: "hi"})
	payload := `{"model":"not-a-real-model","input":"hi"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/responses", bytes.NewBufferString(payload))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	errObj := body["error"].(map[string]any)
	assert.Equal(t, "unknown_model", errObj["code"])
}

func TestChatCompletionsRejectsUnknownModel(t *testing.T) {
	srv := newTestServer(&stubGenerator{text: "hi"})
	payload := `{"model":"not-a-real-model","messages":[{"role":"user","content":"hi"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewBufferString(payload))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResponsesRejectsMalformedBody(t *testing.T) {
	srv := newTestServer(&stubGenerator{text: "hi"})
	req := httptest.NewRequest(http.MethodPost, "/v1/responses", bytes.NewBufferString("not json"))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthMiddlewareRejectsMissingKeyWhenEnabled(t *testing.T) {
	o := orchestrator.New(&stubGenerator{text: "hi"}, stubRegistry{}, stubStore{}, nil, orchestrator.Limits{MaxToolIterations: 3}, tools.Context{})
	srv := &Server{
		Orchestrator: o,
		Auth:         auth.NewService(auth.Config{Enabled: true, APIKeys: []auth.APIKeyConfig{{Key: "secret", TenantID: "tenant-a"}}}),
		RateLimiter:  ratelimit.NewLimiter(ratelimit.Config{Enabled: false}),
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/responses", bytes.NewBufferString(`{"model":"m","input":"hi"}`))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddlewareAcceptsValidKey(t *testing.T) {
	o := orchestrator.New(&stubGenerator{text: "hi"}, stubRegistry{}, stubStore{}, nil, orchestrator.Limits{MaxToolIterations: 3}, tools.Context{})
	srv := &Server{
		Orchestrator: o,
		Auth:         auth.NewService(auth.Config{Enabled: true, APIKeys: []auth.APIKeyConfig{{Key: "secret", TenantID: "tenant-a"}}}),
		RateLimiter:  ratelimit.NewLimiter(ratelimit.Config{Enabled: false}),
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/responses", bytes.NewBufferString(`{"model":"m","input":"hi"}`))
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitMiddlewareRejectsOverBudget(t *testing.T) {
	o := orchestrator.New(&stubGenerator{text: "hi"}, stubRegistry{}, stubStore{}, nil, orchestrator.Limits{MaxToolIterations: 3}, tools.Context{})
	srv := &Server{
		Orchestrator: o,
		Auth:         auth.NewService(auth.Config{Enabled: false}),
		RateLimiter:  ratelimit.NewLimiter(ratelimit.Config{Enabled: true, RequestsPerMinute: 60, Burst: 1}),
	}

	body := `{"model":"m","input":"hi"}`
	req1 := httptest.NewRequest(http.MethodPost, "/v1/responses", bytes.NewBufferString(body))
	rec1 := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec1, req1)
	assert.Equal(t, http.StatusOK, rec1.Code)

	req2 := httptest.NewRequest(http.MethodPost, "/v1/responses", bytes.NewBufferString(body))
	rec2 := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec2, req2)
	assert.Equal(t, http.StatusTooManyRequests, rec2.Code)
}

func TestChatCompletionsProjectsPlainText(t *testing.T) {
	srv := newTestServer(&stubGenerator{text: "hello from chat"})
	payload := `{"model":"rants_one","messages":[{"role":"user","content":"hi"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewBufferString(payload))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp orchestrator.ChatCompletionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "hello from chat", resp.Choices[0].Message.Content)
	assert.Equal(t, "stop", resp.Choices[0].FinishReason)
}
