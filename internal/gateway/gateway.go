// Package gateway implements the HTTP surface spec.md §6 describes:
// routing, request validation, auth/rate-limit middleware, and the two
// OpenAI-compatible endpoints. Routed with github.com/go-chi/chi/v5 (the
// idiomatic fit for auth → rate-limit → logging middleware stacking).
package gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/silverfisk/rants/internal/auth"
	"github.com/silverfisk/rants/internal/orchestrator"
	"github.com/silverfisk/rants/internal/ratelimit"
)

// Version is the build's advertised version string (GET /health).
const Version = "0.1.0"

// Server bundles the gateway's dependencies and exposes an http.Handler.
type Server struct {
	Orchestrator *orchestrator.Orchestrator
	Auth         *auth.Service
	RateLimiter  *ratelimit.Limiter
	Models       []string
	Logger       *slog.Logger
}

func (s *Server) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// modelKnown reports whether model matches one of the configured RLM
// instances. An empty catalog means no model was configured to validate
// against, so any model is accepted (keeps tests that don't set Models
// working without asserting a deployment-config concern).
func (s *Server) modelKnown(model string) bool {
	if len(s.Models) == 0 {
		return true
	}
	for _, id := range s.Models {
		if id == model {
			return true
		}
	}
	return false
}

// Router builds the chi router for this server.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))
	r.Use(s.loggingMiddleware)

	r.Get("/health", s.handleHealth)
	r.Get("/v1/models", s.handleModels)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Use(s.rateLimitMiddleware)
		r.Post("/v1/responses", s.handleResponses)
		r.Post("/v1/chat/completions", s.handleChatCompletions)
	})

	return r
}
