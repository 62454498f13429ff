package rate

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/resumeforge/sessionkit/kvstore"
)

const keyPrefix = "session:rl:"

// ScopeRefresh throttles refresh-token redemption per client IP.
const ScopeRefresh = "refresh"

// Config holds rate limiter tuning parameters.
type Config struct {
	Enabled     bool
	MaxAttempts int
	Window      time.Duration
}

// Limiter counts attempts per scope and identifier in fixed windows.
type Limiter struct {
	kv     *kvstore.Adapter
	scope  string
	config Config
}

// New creates a [Limiter] for one scope on top of kv.
func New(kv *kvstore.Adapter, scope string, cfg Config) *Limiter {
	return &Limiter{
		kv:     kv,
		scope:  scope,
		config: cfg,
	}
}

// Allow records one attempt for identifier and returns [ErrRateLimited]
// once the window budget is exceeded. Empty identifiers are not throttled.
func (l *Limiter) Allow(ctx context.Context, identifier string) error {
	if l == nil || !l.config.Enabled || identifier == "" {
		return nil
	}

	count, err := l.incrementWithTTL(ctx, l.key(identifier), l.config.Window)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxAttempts) {
		return ErrRateLimited
	}

	return nil
}

// Attempts returns the current window count for identifier.
func (l *Limiter) Attempts(ctx context.Context, identifier string) (int, error) {
	if l == nil || identifier == "" {
		return 0, nil
	}

	raw, err := l.kv.Get(ctx, l.key(identifier))
	if err != nil {
		if errors.Is(err, kvstore.ErrNil) {
			return 0, nil
		}
		return 0, err
	}
	n, err := strconv.Atoi(string(raw))
	if err != nil || n < 0 {
		return 0, nil
	}
	return n, nil
}

// Reset clears the counter for identifier.
func (l *Limiter) Reset(ctx context.Context, identifier string) error {
	if l == nil || identifier == "" {
		return nil
	}
	_, err := l.kv.Delete(ctx, l.key(identifier))
	return err
}

func (l *Limiter) key(identifier string) string {
	return keyPrefix + l.scope + ":" + identifier
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.kv.Increment(ctx, key)
	if err != nil {
		return 0, err
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if _, err := l.kv.ExtendExpiry(ctx, key, ttl); err != nil {
			return 0, err
		}
	}

	return count, nil
}
