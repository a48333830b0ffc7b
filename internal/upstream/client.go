// Package upstream implements the HTTP client contract spec.md §4.6
// describes for talking to a remote OpenAI-compatible model endpoint:
// post_json, stream_json, retry with exponential backoff, and SSE decoding.
// It is specified as an injectable interface (spec.md §9 design note: no
// global monkey-patching) so tests can supply a stub directly rather than
// replacing a package-level client.
package upstream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/silverfisk/rants/internal/metrics"
)

// Response is the decoded result of a non-streaming upstream call.
type Response struct {
	Status  int
	Data    map[string]any
	Headers http.Header
}

// Error is raised for non-2xx upstream responses; it carries the status and
// raw body so callers can extract a message per spec.md §7's preference
// order (response.body.error.message, then response.body.message, then raw
// body text).
type Error struct {
	Status int
	Body   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("upstream error (status %d): %s", e.Status, ExtractErrorMessage(e.Status, e.Body))
}

// ExtractErrorMessage implements spec.md §7's error-message extraction
// preference order.
func ExtractErrorMessage(status int, body string) string {
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(body), &parsed); err == nil {
		if parsed.Error.Message != "" {
			return parsed.Error.Message
		}
		if parsed.Message != "" {
			return parsed.Message
		}
	}
	return strings.TrimSpace(body)
}

// Client is the injectable contract the rest of the system depends on.
type Client interface {
	PostJSON(ctx context.Context, baseURL, path string, payload map[string]any, headers map[string]string) (*Response, error)
	StreamJSON(ctx context.Context, baseURL, path string, payload map[string]any, headers map[string]string) (<-chan map[string]any, <-chan error)
}

// Config controls retry/backoff/timeout behavior (spec.md §6 resilience).
type Config struct {
	RequestTimeout time.Duration
	MaxRetries     int
	BackoffSeconds float64
}

// HTTPClient is the real Client implementation over net/http.
type HTTPClient struct {
	httpClient *http.Client
	cfg        Config
}

// New creates an HTTPClient with the given resilience configuration.
func New(cfg Config) *HTTPClient {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}
	if cfg.BackoffSeconds <= 0 {
		cfg.BackoffSeconds = 1
	}
	return &HTTPClient{
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		cfg:        cfg,
	}
}

// PostJSON posts payload as JSON to <baseURL><path>, retrying transport
// failures and non-2xx responses up to MaxRetries times with exponential
// backoff `backoff_seconds * 2^attempt` (spec.md §4.6).
func (c *HTTPClient) PostJSON(ctx context.Context, baseURL, path string, payload map[string]any, headers map[string]string) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	start := time.Now()
	defer func() {
		metrics.UpstreamCallDuration.WithLabelValues(baseURL).Observe(time.Since(start).Seconds())
	}()

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			metrics.UpstreamRetries.WithLabelValues(baseURL).Inc()
			wait := time.Duration(c.cfg.BackoffSeconds * math.Pow(2, float64(attempt)) * float64(time.Second))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			lastErr = &Error{Status: resp.StatusCode, Body: string(respBody)}
			continue
		}

		var data map[string]any
		if len(respBody) > 0 {
			if err := json.Unmarshal(respBody, &data); err != nil {
				return nil, fmt.Errorf("decode response: %w", err)
			}
		}
		return &Response{Status: resp.StatusCode, Data: data, Headers: resp.Header}, nil
	}
	return nil, lastErr
}

// StreamJSON posts payload and decodes an SSE stream: only lines starting
// with "data:" are parsed as JSON objects, the stream ends on a literal
// "[DONE]" payload (spec.md §4.6).
func (c *HTTPClient) StreamJSON(ctx context.Context, baseURL, path string, payload map[string]any, headers map[string]string) (<-chan map[string]any, <-chan error) {
	events := make(chan map[string]any)
	errs := make(chan error, 1)

	go func() {
		defer close(events)
		defer close(errs)

		body, err := json.Marshal(payload)
		if err != nil {
			errs <- fmt.Errorf("marshal payload: %w", err)
			return
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+path, bytes.NewReader(body))
		if err != nil {
			errs <- fmt.Errorf("build request: %w", err)
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "text/event-stream")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			errs <- err
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			respBody, _ := io.ReadAll(resp.Body)
			errs <- &Error{Status: resp.StatusCode, Body: string(respBody)}
			return
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if payload == "[DONE]" {
				return
			}
			if payload == "" {
				continue
			}
			var decoded map[string]any
			if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
				errs <- fmt.Errorf("decode SSE payload: %w", err)
				return
			}
			select {
			case events <- decoded:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			errs <- err
		}
	}()

	return events, errs
}
