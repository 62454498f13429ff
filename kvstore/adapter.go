package kvstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const scanBatch = 1000

// Adapter namespaces logical keys and forwards primitives to Redis.
// All methods take logical keys; the namespace is applied internally.
type Adapter struct {
	redis     redis.UniversalClient
	namespace string
}

// New creates an [Adapter]. namespace is prepended verbatim to every key,
// so callers usually pass something like "resume:" or "".
func New(client redis.UniversalClient, namespace string) *Adapter {
	return &Adapter{
		redis:     client,
		namespace: namespace,
	}
}

// Namespaced returns the physical key for a logical key. Scripts that
// derive keys from arguments need it.
func (a *Adapter) Namespaced(key string) string {
	return a.namespace + key
}

func (a *Adapter) namespacedAll(keys []string) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = a.namespace + k
	}
	return out
}

// Get returns the raw value stored at key.
func (a *Adapter) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := a.redis.Get(ctx, a.Namespaced(key)).Bytes()
	if err != nil {
		return nil, wrap(err)
	}
	return data, nil
}

// SetWithExpiry writes value with a TTL. A non-positive ttl is clamped to
// one millisecond; keys written through this package always expire.
func (a *Adapter) SetWithExpiry(ctx context.Context, key string, value any, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = time.Millisecond
	}
	return wrap(a.redis.Set(ctx, a.Namespaced(key), value, ttl).Err())
}

// SetIfExists overwrites key only when it is already present (SET XX).
func (a *Adapter) SetIfExists(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = time.Millisecond
	}
	ok, err := a.redis.SetXX(ctx, a.Namespaced(key), value, ttl).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, wrap(err)
	}
	return ok, nil
}

// Delete removes keys and returns how many existed.
func (a *Adapter) Delete(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := a.redis.Del(ctx, a.namespacedAll(keys)...).Result()
	if err != nil {
		return 0, wrap(err)
	}
	return n, nil
}

// Increment atomically adds one to the integer at key and returns the new
// value. A missing key starts at zero.
func (a *Adapter) Increment(ctx context.Context, key string) (int64, error) {
	n, err := a.redis.Incr(ctx, a.Namespaced(key)).Result()
	if err != nil {
		return 0, wrap(err)
	}
	return n, nil
}

// AddToSet adds member to the ordered set at key with the given score.
func (a *Adapter) AddToSet(ctx context.Context, key, member string, score float64) error {
	return wrap(a.redis.ZAdd(ctx, a.Namespaced(key), redis.Z{Score: score, Member: member}).Err())
}

// RemoveFromSet removes members and returns how many were present.
func (a *Adapter) RemoveFromSet(ctx context.Context, key string, members ...string) (int64, error) {
	if len(members) == 0 {
		return 0, nil
	}
	args := make([]any, len(members))
	for i, m := range members {
		args[i] = m
	}
	n, err := a.redis.ZRem(ctx, a.Namespaced(key), args...).Result()
	if err != nil {
		return 0, wrap(err)
	}
	return n, nil
}

// SetMembers lists members of the ordered set at key, lowest score first.
// A missing key yields an empty slice.
func (a *Adapter) SetMembers(ctx context.Context, key string) ([]string, error) {
	members, err := a.redis.ZRange(ctx, a.Namespaced(key), 0, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []string{}, nil
		}
		return nil, wrap(err)
	}
	return members, nil
}

// SetSize returns the cardinality of the ordered set at key.
func (a *Adapter) SetSize(ctx context.Context, key string) (int64, error) {
	n, err := a.redis.ZCard(ctx, a.Namespaced(key)).Result()
	if err != nil {
		return 0, wrap(err)
	}
	return n, nil
}

// ExtendExpiry resets the TTL of key. It reports false when key is absent.
func (a *Adapter) ExtendExpiry(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := a.redis.PExpire(ctx, a.Namespaced(key), ttl).Result()
	if err != nil {
		return false, wrap(err)
	}
	return ok, nil
}

// KeysByPrefix walks every key starting with prefix using SCAN and hands
// each batch of logical keys to fn. This is an admin-only O(n) operation
// and must not be used in request hot paths.
func (a *Adapter) KeysByPrefix(ctx context.Context, prefix string, fn func(keys []string) error) error {
	pattern := a.Namespaced(prefix) + "*"
	var cursor uint64

	for {
		keys, next, err := a.redis.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return wrap(err)
		}
		if len(keys) > 0 {
			logical := make([]string, len(keys))
			for i, k := range keys {
				logical[i] = strings.TrimPrefix(k, a.namespace)
			}
			if err := fn(logical); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// Pipelined runs fn inside MULTI/EXEC. Keys used inside fn must be passed
// through [Adapter.Namespaced].
func (a *Adapter) Pipelined(ctx context.Context, fn func(pipe redis.Pipeliner) error) error {
	_, err := a.redis.TxPipelined(ctx, fn)
	if err != nil && !errors.Is(err, redis.Nil) {
		return wrap(err)
	}
	return nil
}

// RunScript evaluates script atomically with namespaced KEYS. A nil
// script reply maps to [ErrNil].
func (a *Adapter) RunScript(ctx context.Context, script *redis.Script, keys []string, args ...any) (any, error) {
	res, err := script.Run(ctx, a.redis, a.namespacedAll(keys), args...).Result()
	if err != nil {
		return nil, wrap(err)
	}
	return res, nil
}

// Ping returns a point-in-time availability check and its latency.
func (a *Adapter) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := a.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), wrap(err)
	}
	return time.Since(start), nil
}
