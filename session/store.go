package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/tokengate/internal"
	"github.com/MrEthical07/tokengate/refresh"
	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps every backend failure surfaced by the Store.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrSessionNotFound is returned by Validate for a handle that is unknown,
// expired, revoked, rotated or rejected by the fingerprint check.
var ErrSessionNotFound = errors.New("refresh session not found")

// ErrFingerprintMismatch is returned by Validate when a device-bound session
// is presented with a different fingerprint input. The session has already
// been deleted. It matches ErrSessionNotFound under errors.Is.
var ErrFingerprintMismatch = fmt.Errorf("%w: fingerprint mismatch", ErrSessionNotFound)

// ErrInvalidTTL is returned by Issue for a non-positive TTL.
var ErrInvalidTTL = errors.New("session ttl must be positive")

// ErrInvalidIdentity is returned by Issue when the identity has no user id.
var ErrInvalidIdentity = errors.New("session identity requires a user id")

// ErrHandleCollision is returned when every generated handle was already
// taken. With crypto/rand handles this indicates a broken generator.
var ErrHandleCollision = errors.New("refresh handle collision")

const issueAttempts = 3

const (
	validateStatusMissing  int64 = 0
	validateStatusOK       int64 = 1
	validateStatusMismatch int64 = 2
)

// KEYS[1] session key, KEYS[2] user index.
// ARGV[1] record, ARGV[2] ttl ms, ARGV[3] handle.
const issueScript = `
if not redis.call("SET", KEYS[1], ARGV[1], "NX", "PX", ARGV[2]) then
  return 0
end
redis.call("SADD", KEYS[2], ARGV[3])
local ttl = tonumber(ARGV[2])
if redis.call("PTTL", KEYS[2]) < ttl then
  redis.call("PEXPIRE", KEYS[2], ttl)
end
return 1
`

var issueLua = redis.NewScript(issueScript)

// KEYS[1] session key.
// ARGV[1] "1" when a fingerprint input was supplied, ARGV[2] its digest.
const validateScript = `
local blob = redis.call("GET", KEYS[1])
if not blob then
  return {0, ""}
end
if ARGV[1] == "1" and string.len(blob) >= 34 and string.byte(blob, 2) % 2 == 1 then
  if string.sub(blob, 3, 34) ~= ARGV[2] then
    redis.call("DEL", KEYS[1])
    return {2, blob}
  end
end
return {1, blob}
`

var validateLua = redis.NewScript(validateScript)

// KEYS[1] session key, KEYS[2] user index. ARGV[1] handle.
const deleteSessionScript = `
local existed = redis.call("DEL", KEYS[1])
redis.call("SREM", KEYS[2], ARGV[1])
return existed
`

var deleteSessionLua = redis.NewScript(deleteSessionScript)

// Store persists refresh sessions in Redis, one string key per handle plus
// a set of handles per user.
//
// Every single-record mutation runs as one script or transaction, so a
// Store can be shared by any number of edge and auth instances.
type Store struct {
	redis     redis.UniversalClient
	prefix    string
	newHandle func() (string, error)
	now       func() time.Time
}

// NewStore creates a session [Store] backed by the given Redis client.
// prefix sets the key namespace and defaults to "rtsid".
//
//	Docs: docs/session.md
func NewStore(rdb redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "rtsid"
	}
	return &Store{
		redis:     rdb,
		prefix:    prefix,
		newHandle: refresh.NewHandleString,
		now:       time.Now,
	}
}

func (s *Store) key(handle string) string {
	return s.prefix + ":" + handle
}

func (s *Store) userKey(userID string) string {
	return s.prefix + ":u:" + userID
}

// Fingerprint returns the digest stored for a fingerprint input.
func Fingerprint(input string) [32]byte {
	return internal.HashBindingValue(input)
}

// Issue stores a new session for id and returns its handle. A nil
// fingerprintInput issues an unbound session.
//
//	Performance: 1 Redis script (SET NX + SADD + PEXPIRE).
//	Docs: docs/session.md
func (s *Store) Issue(ctx context.Context, id Identity, ttl time.Duration, fingerprintInput *string) (string, error) {
	if ttl <= 0 {
		return "", ErrInvalidTTL
	}
	if id.UserID == "" {
		return "", ErrInvalidIdentity
	}

	now := s.now()
	sess := &Session{
		UserID:      id.UserID,
		DisplayName: id.DisplayName,
		Roles:       normalizeRoles(id.Roles),
		IssuedAt:    now.Unix(),
		ExpiresAt:   now.Add(ttl).Unix(),
	}
	if fingerprintInput != nil {
		sess.DeviceBound = true
		sess.DeviceFingerprint = Fingerprint(*fingerprintInput)
	}

	data, err := Encode(sess)
	if err != nil {
		return "", err
	}

	for attempt := 0; attempt < issueAttempts; attempt++ {
		handle, err := s.newHandle()
		if err != nil {
			return "", err
		}

		stored, err := issueLua.Run(ctx, s.redis,
			[]string{s.key(handle), s.userKey(id.UserID)},
			data, ttl.Milliseconds(), handle,
		).Int64()
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		if stored == 1 {
			return handle, nil
		}
	}

	return "", ErrHandleCollision
}

// Validate returns the live session for handle.
//
// When fingerprintInput is non-nil and the session is device bound, a
// digest mismatch deletes the session before ErrFingerprintMismatch is
// returned.
//
//	Performance: 1 Redis script, plus 1 SREM on mismatch.
//	Docs: docs/session.md
func (s *Store) Validate(ctx context.Context, handle string, fingerprintInput *string) (*Session, error) {
	if _, err := refresh.ParseHandle(handle); err != nil {
		return nil, ErrSessionNotFound
	}

	check := "0"
	var digest [32]byte
	if fingerprintInput != nil {
		check = "1"
		digest = Fingerprint(*fingerprintInput)
	}

	res, err := validateLua.Run(ctx, s.redis, []string{s.key(handle)}, check, string(digest[:])).Slice()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	status, blob, err := parseValidateReply(res)
	if err != nil {
		return nil, err
	}

	switch status {
	case validateStatusMissing:
		return nil, ErrSessionNotFound
	case validateStatusMismatch:
		if sess, decErr := Decode([]byte(blob)); decErr == nil {
			if err := s.redis.SRem(ctx, s.userKey(sess.UserID), handle).Err(); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
			}
		}
		return nil, ErrFingerprintMismatch
	}

	sess, err := Decode([]byte(blob))
	if err != nil {
		return nil, errors.Join(ErrSessionNotFound, err)
	}
	sess.Handle = handle
	return sess, nil
}

func parseValidateReply(res []interface{}) (int64, string, error) {
	if len(res) != 2 {
		return 0, "", fmt.Errorf("%w: unexpected validate reply", ErrRedisUnavailable)
	}
	status, ok := res[0].(int64)
	if !ok {
		return 0, "", fmt.Errorf("%w: unexpected validate status", ErrRedisUnavailable)
	}
	blob, _ := res[1].(string)
	return status, blob, nil
}

// Revoke deletes the session behind handle and reports whether this call
// removed it. Revoking an unknown handle is not an error.
//
// When two callers revoke the same handle concurrently exactly one of them
// observes true.
//
//	Docs: docs/session.md
func (s *Store) Revoke(ctx context.Context, handle string) (bool, error) {
	if _, err := refresh.ParseHandle(handle); err != nil {
		return false, nil
	}
	key := s.key(handle)

	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// A corrupt record still gets deleted; its index entry is left to
	// ActiveHandles pruning.
	userKey := s.userKey("")
	if sess, decErr := Decode(data); decErr == nil {
		userKey = s.userKey(sess.UserID)
	}

	deleted, err := deleteSessionLua.Run(ctx, s.redis, []string{key, userKey}, handle).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return deleted == 1, nil
}

// RevokeAll deletes every session indexed for userID and returns how many
// live sessions were removed.
//
// ATOMICITY NOTE: the index is read before the delete transaction runs. A
// session issued between the two steps survives this call and is caught by
// the next RevokeAll or by its own expiry.
//
//	Docs: docs/session.md
func (s *Store) RevokeAll(ctx context.Context, userID string) (int, error) {
	userKey := s.userKey(userID)

	handles, err := s.redis.SMembers(ctx, userKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(handles) == 0 {
		return 0, nil
	}

	keys := make([]string, 0, len(handles))
	for _, handle := range handles {
		keys = append(keys, s.key(handle))
	}

	var delCmd *redis.IntCmd
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		delCmd = pipe.Del(ctx, keys...)
		pipe.SRem(ctx, userKey, toInterfaces(handles)...)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(delCmd.Val()), nil
}

// ActiveHandles lists the live handles of userID, pruning index entries
// whose session has expired.
func (s *Store) ActiveHandles(ctx context.Context, userID string) ([]string, error) {
	userKey := s.userKey(userID)
	handles, err := s.redis.SMembers(ctx, userKey).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(handles) == 0 {
		return nil, nil
	}

	pipe := s.redis.Pipeline()
	existsCmds := make([]*redis.IntCmd, len(handles))
	for i, handle := range handles {
		existsCmds[i] = pipe.Exists(ctx, s.key(handle))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	live := make([]string, 0, len(handles))
	var stale []interface{}
	for i, cmd := range existsCmds {
		if cmd.Val() == 1 {
			live = append(live, handles[i])
		} else {
			stale = append(stale, handles[i])
		}
	}
	if len(stale) > 0 {
		if err := s.redis.SRem(ctx, userKey, stale...).Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return live, nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}

func toInterfaces(in []string) []interface{} {
	out := make([]interface{}, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}
