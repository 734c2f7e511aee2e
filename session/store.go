package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps every transport-level Redis failure.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrRefreshHashMismatch is returned by RotateRefreshHash when the presented
// hash does not match the stored one: a rotated-out token was replayed.
var ErrRefreshHashMismatch = errors.New("refresh hash mismatch")

// ErrSessionNotFound is returned when the rotation target does not exist.
var ErrSessionNotFound = errors.New("credential session not found")

// ErrSessionExpired is returned when the rotation target has expired.
var ErrSessionExpired = errors.New("credential session expired")

const (
	rotateStatusNotFound    int64 = 0
	rotateStatusExpired     int64 = 1
	rotateStatusMismatch    int64 = 2
	rotateStatusRotated     int64 = 3
	rotateStatusInvalidBlob int64 = 4
)

// rotateRefreshScript compares the presented refresh hash against the stored
// one and swaps in the next hash, all inside Redis. A mismatch destroys the
// session (reuse detection); expiry destroys it too. The session blob layout
// is fixed by session.Encode.
const rotateRefreshScript = `
local function read_be64(s, i)
  local v = 0
  for k = 0, 7 do
    local b = string.byte(s, i + k)
    if not b then
      return nil
    end
    v = v * 256 + b
  end
  return v
end

local key = KEYS[1]
local provided_hash = ARGV[1]
local next_hash = ARGV[2]
local now_unix = tonumber(ARGV[3])
local cred_id = ARGV[4]
local idx_prefix = ARGV[5]

local data = redis.call("GET", key)
if not data then
  return {0}
end

local version = string.byte(data, 1)
if version ~= 1 then
  return {4}
end

local sub_len = string.byte(data, 2)
if not sub_len or sub_len == 0 then
  return {4}
end
local subject = string.sub(data, 3, 2 + sub_len)

local dom_i = 3 + sub_len
local dom_len = string.byte(data, dom_i)
if not dom_len then
  return {4}
end
local domain = string.sub(data, dom_i + 1, dom_i + dom_len)

local hash_i = dom_i + 1 + dom_len
if #data ~= hash_i - 1 + 32 + 16 then
  return {4}
end
local stored_hash = string.sub(data, hash_i, hash_i + 31)
local expires_at = read_be64(data, hash_i + 40)
if not expires_at then
  return {4}
end

local idx_key = idx_prefix .. domain .. ":" .. subject

if expires_at <= now_unix then
  redis.call("DEL", key)
  redis.call("SREM", idx_key, cred_id)
  return {1}
end

if stored_hash ~= provided_hash then
  redis.call("DEL", key)
  redis.call("SREM", idx_key, cred_id)
  return {2}
end

local ttl = redis.call("PTTL", key)
if ttl <= 0 then
  redis.call("DEL", key)
  redis.call("SREM", idx_key, cred_id)
  return {1}
end

local prefix = string.sub(data, 1, hash_i - 1)
local suffix = string.sub(data, hash_i + 32)
local updated = prefix .. next_hash .. suffix

redis.call("SET", key, updated, "PX", ttl)
return {3, updated}
`

var rotateRefreshLua = redis.NewScript(rotateRefreshScript)

const deleteSessionScript = `
local existed = redis.call("EXISTS", KEYS[1])
if existed == 1 then
  redis.call("DEL", KEYS[1])
end
redis.call("SREM", KEYS[2], ARGV[1])
return existed
`

var deleteSessionLua = redis.NewScript(deleteSessionScript)

// Store is a Redis-backed credential-session store handling persistence,
// expiration, and atomic refresh-token rotation.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a session [Store] backed by the given Redis client.
// prefix sets the Redis key namespace.
func NewStore(client redis.UniversalClient, prefix string) *Store {
	return &Store{
		redis:  client,
		prefix: prefix,
	}
}

func (s *Store) key(credentialID string) string {
	return s.prefix + ":" + credentialID
}

func (s *Store) subjectKey(domain, subject string) string {
	return s.prefix + ":idx:" + domain + ":" + subject
}

func (s *Store) idxPrefix() string {
	return s.prefix + ":idx:"
}

// Save persists a [Session] with the given TTL and indexes it under its
// subject for logout-all.
//
//	Performance: 2 Redis commands in one transaction (SET + SADD).
func (s *Store) Save(ctx context.Context, sess *Session, ttl time.Duration) error {
	data, err := Encode(sess)
	if err != nil {
		return err
	}

	sessionKey := s.key(sess.CredentialID)
	subjectKey := s.subjectKey(sess.Domain, sess.Subject)

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKey, data, ttl)
		pipe.SAdd(ctx, subjectKey, sess.CredentialID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// Get retrieves a session by credential ID without mutating Redis state.
// Returns [ErrSessionNotFound] for missing or expired sessions.
func (s *Store) Get(ctx context.Context, credentialID string) (*Session, error) {
	data, err := s.redis.Get(ctx, s.key(credentialID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return nil, err
	}
	sess.CredentialID = credentialID
	if time.Now().Unix() >= sess.ExpiresAt {
		return nil, ErrSessionNotFound
	}

	return sess, nil
}

// Delete removes a session and its subject index entry. Deleting an absent
// session is not an error; the bool reports whether it existed.
func (s *Store) Delete(ctx context.Context, credentialID string) (bool, error) {
	data, err := s.redis.Get(ctx, s.key(credentialID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return false, err
	}

	existed, err := deleteSessionLua.Run(
		ctx,
		s.redis,
		[]string{s.key(credentialID), s.subjectKey(sess.Domain, sess.Subject)},
		credentialID,
	).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return existed == 1, nil
}

// DeleteAllForSubject removes every session indexed for a subject within a
// domain and returns the number destroyed.
//
// ATOMICITY NOTE: this is NOT fully atomic. It reads the subject's session
// set, then deletes in one transaction. A session created between the read
// and the delete is not captured; it expires naturally or is caught by the
// next call. Logout-all semantics tolerate this narrow race.
func (s *Store) DeleteAllForSubject(ctx context.Context, domain, subject string) (int, error) {
	subjectKey := s.subjectKey(domain, subject)

	credentialIDs, err := s.redis.SMembers(ctx, subjectKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if len(credentialIDs) == 0 {
		if err := s.redis.Del(ctx, subjectKey).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		return 0, nil
	}

	keys := make([]string, 0, len(credentialIDs))
	for _, cid := range credentialIDs {
		keys = append(keys, s.key(cid))
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keys...)
		pipe.Del(ctx, subjectKey)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return len(credentialIDs), nil
}

// RotateRefreshHash atomically replaces the refresh-token hash in the
// session using a Lua CAS script. This is the core of the rotation protocol
// that enables reuse detection: under a storm of concurrent refreshes,
// exactly one caller wins; the rest observe a mismatch.
//
//	Performance: 1 Lua EVALSHA (atomic compare-and-swap).
//	Security: a mismatch destroys the session so a stolen rotated-out
//	token cannot be retried against a live credential.
func (s *Store) RotateRefreshHash(
	ctx context.Context,
	credentialID string,
	providedHash [32]byte,
	nextHash [32]byte,
) (*Session, error) {
	key := s.key(credentialID)
	result, err := rotateRefreshLua.Run(
		ctx,
		s.redis,
		[]string{key},
		providedHash[:],
		nextHash[:],
		time.Now().Unix(),
		credentialID,
		s.idxPrefix(),
	).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	parts, ok := result.([]interface{})
	if !ok || len(parts) == 0 {
		return nil, fmt.Errorf("%w: invalid rotate script response", ErrRedisUnavailable)
	}

	code, ok := parts[0].(int64)
	if !ok {
		return nil, fmt.Errorf("%w: invalid rotate script status", ErrRedisUnavailable)
	}

	switch code {
	case rotateStatusNotFound:
		return nil, ErrSessionNotFound
	case rotateStatusExpired:
		return nil, ErrSessionExpired
	case rotateStatusMismatch:
		return nil, ErrRefreshHashMismatch
	case rotateStatusRotated:
		if len(parts) < 2 {
			return nil, fmt.Errorf("%w: missing updated session payload", ErrRedisUnavailable)
		}

		var blob []byte
		switch v := parts[1].(type) {
		case string:
			blob = []byte(v)
		case []byte:
			blob = v
		default:
			return nil, fmt.Errorf("%w: invalid updated session payload", ErrRedisUnavailable)
		}

		sess, decErr := Decode(blob)
		if decErr != nil {
			return nil, decErr
		}
		sess.CredentialID = credentialID
		return sess, nil
	case rotateStatusInvalidBlob:
		return nil, ErrSessionCorrupt
	default:
		return nil, fmt.Errorf("%w: unknown rotate script status", ErrRedisUnavailable)
	}
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}
