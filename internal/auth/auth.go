// Package auth implements the bearer-key tenant authenticator spec.md §6
// describes, plus an optional JWT verification path.
package auth

import (
	"crypto/subtle"
	"errors"
	"strings"
	"sync"
)

var (
	// ErrAuthDisabled is returned when auth checks are not configured.
	ErrAuthDisabled = errors.New("auth disabled")
	// ErrInvalidKey is returned when no configured API key matches.
	ErrInvalidKey = errors.New("invalid api key")
	// ErrInvalidToken is returned when a JWT fails verification.
	ErrInvalidToken = errors.New("invalid token")
)

// APIKeyConfig declares one static API key and the tenant it authenticates
// (spec.md §6 auth.api_keys[]).
type APIKeyConfig struct {
	Key      string
	TenantID string
	Name     string
}

// Config configures the authenticator (spec.md §6 auth{}).
type Config struct {
	Enabled   bool
	APIKeys   []APIKeyConfig
	JWTSecret string
}

// Identity is the authenticated principal resolved from a request.
type Identity struct {
	TenantID string
	Name     string
}

// Service validates bearer API keys and, optionally, JWTs.
type Service struct {
	mu      sync.RWMutex
	enabled bool
	apiKeys map[string]Identity
	jwt     *JWTService
}

// NewService builds an authenticator from static configuration.
func NewService(cfg Config) *Service {
	s := &Service{enabled: cfg.Enabled, apiKeys: buildAPIKeyMap(cfg.APIKeys)}
	if strings.TrimSpace(cfg.JWTSecret) != "" {
		s.jwt = NewJWTService(cfg.JWTSecret)
	}
	return s
}

// Enabled reports whether auth is configured to run (spec.md §6: "if auth
// is enabled").
func (s *Service) Enabled() bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

// Authenticate validates a bearer key (from Authorization or x-api-key) and
// returns the tenant identity. It tries a JWT first when one is configured
// (checked by its HMAC signature), then falls back to the static key list,
// comparing against each stored key in constant time to avoid timing side
// channels.
func (s *Service) Authenticate(key string) (Identity, error) {
	if s == nil || !s.Enabled() {
		return Identity{}, ErrAuthDisabled
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return Identity{}, ErrInvalidKey
	}

	s.mu.RLock()
	jwtSvc := s.jwt
	apiKeys := s.apiKeys
	s.mu.RUnlock()

	if jwtSvc != nil {
		if identity, err := jwtSvc.Validate(key); err == nil {
			return identity, nil
		}
	}

	var matched *Identity
	for storedKey, identity := range apiKeys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(storedKey)) == 1 {
			id := identity
			matched = &id
		}
	}
	if matched == nil {
		return Identity{}, ErrInvalidKey
	}
	return *matched, nil
}

func buildAPIKeyMap(keys []APIKeyConfig) map[string]Identity {
	out := make(map[string]Identity, len(keys))
	for _, entry := range keys {
		key := strings.TrimSpace(entry.Key)
		if key == "" {
			continue
		}
		out[key] = Identity{TenantID: strings.TrimSpace(entry.TenantID), Name: strings.TrimSpace(entry.Name)}
	}
	return out
}

// ExtractKey pulls a bearer key out of an Authorization header value or a
// raw x-api-key header value, whichever is present.
func ExtractKey(authorizationHeader, apiKeyHeader string) string {
	if trimmed := strings.TrimSpace(authorizationHeader); trimmed != "" {
		return strings.TrimSpace(strings.TrimPrefix(trimmed, "Bearer "))
	}
	return strings.TrimSpace(apiKeyHeader)
}
