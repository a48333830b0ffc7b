// Package ratelimit implements the per-tenant token bucket spec.md §6
// describes: capacity burst, refill rate requests_per_minute/60 per second.
package ratelimit

import (
	"sync"
	"time"
)

// Config configures rate limiting behavior (spec.md §6 rate_limits{}).
type Config struct {
	Enabled           bool
	RequestsPerMinute float64
	Burst             int
}

// Bucket implements token bucket rate limiting for a single tenant.
type Bucket struct {
	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
}

// NewBucket creates a token bucket from the given config.
func NewBucket(cfg Config) *Bucket {
	refillRate := cfg.RequestsPerMinute / 60
	if refillRate <= 0 {
		refillRate = 1
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = int(refillRate * 2)
		if burst < 1 {
			burst = 1
		}
	}
	return &Bucket{
		tokens:     float64(burst),
		maxTokens:  float64(burst),
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// Allow checks if a request should be allowed and consumes a token if so.
// Requests below 1 token are rejected (spec.md §6).
func (b *Bucket) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill()
	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// refill adds tokens based on elapsed time; caller must hold the lock.
func (b *Bucket) refill() {
	now := time.Now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	b.lastRefill = now
	b.tokens += elapsed * b.refillRate
	if b.tokens > b.maxTokens {
		b.tokens = b.maxTokens
	}
}

// Tokens returns the current number of available tokens.
func (b *Bucket) Tokens() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill()
	return b.tokens
}

// Status reports a tenant's current rate-limit state.
type Status struct {
	TenantID        string
	AllowedNow      bool
	TokensRemaining float64
}

// Limiter manages one token bucket per tenant_id (spec.md §5's "mutated
// under a single exclusive section per bucket read-modify-write").
type Limiter struct {
	mu      sync.RWMutex
	buckets map[string]*Bucket
	cfg     Config
}

// NewLimiter creates a per-tenant rate limiter.
func NewLimiter(cfg Config) *Limiter {
	return &Limiter{buckets: make(map[string]*Bucket), cfg: cfg}
}

// Allow checks whether the named tenant may proceed, consuming a token if so.
func (l *Limiter) Allow(tenantID string) bool {
	if !l.cfg.Enabled {
		return true
	}
	return l.getBucket(tenantID).Allow()
}

// Status reports the named tenant's current bucket state without consuming
// a token.
func (l *Limiter) Status(tenantID string) Status {
	if !l.cfg.Enabled {
		return Status{TenantID: tenantID, AllowedNow: true, TokensRemaining: l.cfg.RequestsPerMinute}
	}
	bucket := l.getBucket(tenantID)
	tokens := bucket.Tokens()
	return Status{TenantID: tenantID, AllowedNow: tokens >= 1, TokensRemaining: tokens}
}

func (l *Limiter) getBucket(tenantID string) *Bucket {
	l.mu.RLock()
	bucket, exists := l.buckets[tenantID]
	l.mu.RUnlock()
	if exists {
		return bucket
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if bucket, exists = l.buckets[tenantID]; exists {
		return bucket
	}
	bucket = NewBucket(l.cfg)
	l.buckets[tenantID] = bucket
	return bucket
}
