package session

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/resumeforge/sessionkit/kvstore"
)

// createSessionScript writes a session and all of its indices in one step
// while holding the per-user cap. Evicts oldest-created members first.
//
// KEYS: session, access index, refresh index, user set
// ARGV: session id, record, ttl ms, creation score, cap, session key prefix
const createSessionScript = `
local user_key = KEYS[4]
local session_id = ARGV[1]
local ttl = tonumber(ARGV[3])
local cap = tonumber(ARGV[5])
local prefix = ARGV[6]

local members = redis.call("ZRANGE", user_key, 0, -1)
for _, member in ipairs(members) do
  if redis.call("EXISTS", prefix .. member) == 0 then
    redis.call("ZREM", user_key, member)
  end
end

local evicted = {}
if cap > 0 then
  local count = redis.call("ZCARD", user_key)
  while count >= cap do
    local oldest = redis.call("ZRANGE", user_key, 0, 0)
    if #oldest == 0 then
      break
    end
    redis.call("ZREM", user_key, oldest[1])
    redis.call("DEL", prefix .. oldest[1])
    evicted[#evicted + 1] = oldest[1]
    count = count - 1
  end
end

redis.call("SET", KEYS[1], ARGV[2], "PX", ttl)
redis.call("SET", KEYS[2], session_id, "PX", ttl)
redis.call("SET", KEYS[3], session_id, "PX", ttl)
redis.call("ZADD", user_key, ARGV[4], session_id)
redis.call("PEXPIRE", user_key, ttl)

return evicted
`

var createSessionLua = redis.NewScript(createSessionScript)

// consumeRefreshScript deletes a refresh index entry and the session it
// points at. Exactly one caller observes the record.
//
// KEYS: refresh index
// ARGV: session key prefix
const consumeRefreshScript = `
local session_id = redis.call("GET", KEYS[1])
if not session_id then
  return false
end
redis.call("DEL", KEYS[1])

local session_key = ARGV[1] .. session_id
local data = redis.call("GET", session_key)
if not data then
  return {session_id}
end
redis.call("DEL", session_key)

return {session_id, data}
`

var consumeRefreshLua = redis.NewScript(consumeRefreshScript)

// KEYS: session, user set, then any index keys to drop with it
// ARGV: session id
const deleteSessionScript = `
local existed = redis.call("DEL", KEYS[1])
redis.call("ZREM", KEYS[2], ARGV[1])
for i = 3, #KEYS do
  redis.call("DEL", KEYS[i])
end
return existed
`

var deleteSessionLua = redis.NewScript(deleteSessionScript)

// Store persists sessions and their secondary indices.
//
//	Performance: every mutation is a single script or MULTI/EXEC round trip.
type Store struct {
	kv *kvstore.Adapter
}

// NewStore creates a [Store] on top of a key-value adapter.
func NewStore(kv *kvstore.Adapter) *Store {
	return &Store{kv: kv}
}

// Create atomically persists sess, its access and refresh index entries and
// its membership entry, all with ttl. When maxPerUser > 0 the user's oldest
// sessions are evicted first so that at most maxPerUser remain afterwards.
// It returns the evicted session ids.
func (s *Store) Create(ctx context.Context, sess *Session, ttl time.Duration, maxPerUser int) ([]string, error) {
	if sess == nil || sess.UserID == "" || !validSessionID(sess.SessionID) {
		return nil, errors.New("invalid session")
	}

	data, err := Encode(sess)
	if err != nil {
		return nil, err
	}

	res, err := s.kv.RunScript(
		ctx,
		createSessionLua,
		[]string{
			sessionKey(sess.SessionID),
			accessKey(hex.EncodeToString(sess.AccessHash[:])),
			refreshKey(hex.EncodeToString(sess.RefreshHash[:])),
			userKey(sess.UserID),
		},
		sess.SessionID,
		data,
		ttlMillis(ttl),
		sess.CreatedAt,
		maxPerUser,
		s.kv.Namespaced(sessionKeyPrefix),
	)
	if err != nil {
		return nil, err
	}

	return stringSlice(res)
}

// Get loads a session by id. Records in an older schema are rewritten in
// the current one before returning.
func (s *Store) Get(ctx context.Context, sessionID string) (*Session, error) {
	sess, err := s.GetReadOnly(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.maybeMigrateSessionSchema(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// GetReadOnly loads a session without mutating any state.
func (s *Store) GetReadOnly(ctx context.Context, sessionID string) (*Session, error) {
	if !validSessionID(sessionID) {
		return nil, ErrNotFound
	}

	data, err := s.kv.Get(ctx, sessionKey(sessionID))
	if err != nil {
		if errors.Is(err, kvstore.ErrNil) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	sess, err := Decode(data)
	if err != nil {
		return nil, err
	}
	sess.SessionID = sessionID
	return sess, nil
}

// ResolveAccess maps an access-token digest to its session id.
func (s *Store) ResolveAccess(ctx context.Context, accessHash [32]byte) (string, error) {
	sid, err := s.kv.Get(ctx, accessKey(hex.EncodeToString(accessHash[:])))
	if err != nil {
		if errors.Is(err, kvstore.ErrNil) {
			return "", ErrNotFound
		}
		return "", err
	}
	return string(sid), nil
}

// ConsumeRefresh atomically deletes the refresh index entry for
// refreshHash and the primary record it points at, returning the record.
// Concurrent callers presenting the same digest get exactly one success;
// the rest see [ErrNotFound]. The access index and membership entry are
// left for the caller to drop with [Store.Revoke].
func (s *Store) ConsumeRefresh(ctx context.Context, refreshHash [32]byte) (*Session, error) {
	res, err := s.kv.RunScript(
		ctx,
		consumeRefreshLua,
		[]string{refreshKey(hex.EncodeToString(refreshHash[:]))},
		s.kv.Namespaced(sessionKeyPrefix),
	)
	if err != nil {
		if errors.Is(err, kvstore.ErrNil) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	parts, ok := res.([]interface{})
	if !ok || len(parts) == 0 {
		return nil, fmt.Errorf("%w: invalid refresh script response", ErrUnavailable)
	}
	if len(parts) < 2 {
		return nil, ErrNotFound
	}

	sid, ok := parts[0].(string)
	if !ok {
		return nil, fmt.Errorf("%w: invalid refresh script session id", ErrUnavailable)
	}

	var blob []byte
	switch v := parts[1].(type) {
	case string:
		blob = []byte(v)
	case []byte:
		blob = v
	default:
		return nil, fmt.Errorf("%w: invalid refresh script payload", ErrUnavailable)
	}

	sess, err := Decode(blob)
	if err != nil {
		return nil, err
	}
	sess.SessionID = sid
	return sess, nil
}

// Touch rewrites an existing record and pushes the expiry of its indices
// and membership set to ttl. It never recreates a record that has been
// removed concurrently; in that case it returns [ErrNotFound].
func (s *Store) Touch(ctx context.Context, sess *Session, ttl time.Duration) error {
	if sess == nil || !validSessionID(sess.SessionID) {
		return ErrNotFound
	}
	data, err := Encode(sess)
	if err != nil {
		return err
	}
	if ttl < time.Millisecond {
		ttl = time.Millisecond
	}

	var setCmd *redis.BoolCmd
	err = s.kv.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		setCmd = pipe.SetXX(ctx, s.kv.Namespaced(sessionKey(sess.SessionID)), data, ttl)
		pipe.PExpire(ctx, s.kv.Namespaced(accessKey(hex.EncodeToString(sess.AccessHash[:]))), ttl)
		pipe.PExpire(ctx, s.kv.Namespaced(refreshKey(hex.EncodeToString(sess.RefreshHash[:]))), ttl)
		pipe.PExpire(ctx, s.kv.Namespaced(userKey(sess.UserID)), ttl)
		return nil
	})
	if err != nil {
		return err
	}
	if setCmd == nil || !setCmd.Val() {
		return ErrNotFound
	}
	return nil
}

// Remove deletes the primary record and its membership entry. Token
// indices are left to expire on their own; lookups through them find no
// record and report absence. Remove reports whether the record existed and
// is a no-op for unknown ids.
func (s *Store) Remove(ctx context.Context, sessionID string) (bool, error) {
	sess, err := s.GetReadOnly(ctx, sessionID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return false, nil
		case errors.Is(err, ErrCorrupt), errors.Is(err, ErrUnsupportedSchema):
			// owner unknown; membership entry is reconciled by cleanup
			n, delErr := s.kv.Delete(ctx, sessionKey(sessionID))
			return n > 0, delErr
		default:
			return false, err
		}
	}

	existed, err := s.runDelete(ctx, sess, false)
	if err != nil {
		return false, err
	}
	return existed, nil
}

// Revoke deletes the primary record, both token indices and the membership
// entry of sess.
func (s *Store) Revoke(ctx context.Context, sess *Session) error {
	if sess == nil || !validSessionID(sess.SessionID) {
		return nil
	}
	_, err := s.runDelete(ctx, sess, true)
	return err
}

func (s *Store) runDelete(ctx context.Context, sess *Session, withIndices bool) (bool, error) {
	keys := []string{sessionKey(sess.SessionID), userKey(sess.UserID)}
	if withIndices {
		keys = append(keys,
			accessKey(hex.EncodeToString(sess.AccessHash[:])),
			refreshKey(hex.EncodeToString(sess.RefreshHash[:])),
		)
	}

	res, err := s.kv.RunScript(ctx, deleteSessionLua, keys, sess.SessionID)
	if err != nil {
		return false, err
	}
	existed, _ := res.(int64)
	return existed == 1, nil
}

// MemberIDs lists a user's session ids, oldest first.
func (s *Store) MemberIDs(ctx context.Context, userID string) ([]string, error) {
	return s.kv.SetMembers(ctx, userKey(userID))
}

// MemberCount returns the size of a user's membership set.
func (s *Store) MemberCount(ctx context.Context, userID string) (int, error) {
	n, err := s.kv.SetSize(ctx, userKey(userID))
	return int(n), err
}

// PruneMembers removes ids from a user's membership set.
func (s *Store) PruneMembers(ctx context.Context, userID string, sessionIDs ...string) (int, error) {
	n, err := s.kv.RemoveFromSet(ctx, userKey(userID), sessionIDs...)
	return int(n), err
}

// ScanSessionIDs walks every primary-record key.
// This is an admin-only O(n) operation and must not be used in request hot paths.
func (s *Store) ScanSessionIDs(ctx context.Context, fn func(sessionIDs []string) error) error {
	return s.kv.KeysByPrefix(ctx, sessionKeyPrefix, func(keys []string) error {
		ids := make([]string, 0, len(keys))
		for _, k := range keys {
			if id, ok := sessionIDFromKey(k); ok {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			return nil
		}
		return fn(ids)
	})
}

// ScanUserIDs walks every membership-set key.
// This is an admin-only O(n) operation and must not be used in request hot paths.
func (s *Store) ScanUserIDs(ctx context.Context, fn func(userIDs []string) error) error {
	return s.kv.KeysByPrefix(ctx, userKeyPrefix, func(keys []string) error {
		ids := make([]string, 0, len(keys))
		for _, k := range keys {
			if id, ok := userIDFromKey(k); ok {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			return nil
		}
		return fn(ids)
	})
}

// Ping returns a point-in-time store availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	return s.kv.Ping(ctx)
}

func (s *Store) maybeMigrateSessionSchema(ctx context.Context, sess *Session) error {
	if sess == nil || sess.SchemaVersion == CurrentSchemaVersion {
		return nil
	}

	remaining := time.Until(time.UnixMilli(sess.ExpiresAt))
	if remaining <= 0 {
		return nil
	}

	sess.SchemaVersion = CurrentSchemaVersion
	encoded, err := Encode(sess)
	if err != nil {
		return err
	}

	_, err = s.kv.SetIfExists(ctx, sessionKey(sess.SessionID), encoded, remaining)
	return err
}

func ttlMillis(ttl time.Duration) int64 {
	ms := ttl.Milliseconds()
	if ms < 1 {
		return 1
	}
	return ms
}

func stringSlice(res any) ([]string, error) {
	if res == nil {
		return nil, nil
	}
	parts, ok := res.([]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: unexpected script reply %T", ErrUnavailable, res)
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v, ok := p.(string); ok {
			out = append(out, v)
		}
	}
	return out, nil
}
