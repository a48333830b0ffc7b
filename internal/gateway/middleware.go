package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/silverfisk/rants/internal/auth"
	"github.com/silverfisk/rants/internal/metrics"
)

type tenantKey struct{}

// tenantFromContext returns the authenticated (or default) tenant id.
func tenantFromContext(ctx context.Context) string {
	if tenantID, ok := ctx.Value(tenantKey{}).(string); ok {
		return tenantID
	}
	return "default"
}

// authMiddleware implements spec.md §6's authentication contract: if auth
// is enabled, reject requests lacking a matching bearer key with 401; if
// disabled, the tenant defaults to "default" (later narrowed per-request by
// the responses handler's body.user field).
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.Auth.Enabled() {
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), tenantKey{}, "default")))
			return
		}

		key := auth.ExtractKey(r.Header.Get("Authorization"), r.Header.Get("x-api-key"))
		identity, err := s.Auth.Authenticate(key)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or missing API key", "authentication_error", "invalid_api_key")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), tenantKey{}, identity.TenantID)))
	})
}

// rateLimitMiddleware implements spec.md §6's token-bucket rejection: a
// request that cannot claim a token gets 429.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenantID := tenantFromContext(r.Context())
		if s.RateLimiter != nil && !s.RateLimiter.Allow(tenantID) {
			metrics.RateLimitRejections.WithLabelValues(tenantID).Inc()
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded", "rate_limit_error", "rate_limit_exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger().Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
