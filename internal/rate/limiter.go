package rate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds rate limiter tuning parameters.
type Config struct {
	KeyPrefix               string
	EnableIPThrottle        bool
	EnableRefreshThrottle   bool
	MaxLoginAttempts        int
	LoginCooldownDuration   time.Duration
	MaxRefreshAttempts      int
	RefreshCooldownDuration time.Duration
}

// KEYS[1] counter. ARGV[1] window ms.
// The window starts at the first hit and is never extended.
const hitScript = `
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`

var hitLua = redis.NewScript(hitScript)

// Limiter enforces per-user and per-IP login budgets and per-handle refresh
// budgets with fixed-window Redis counters.
//
//	Key layout:
//	  <prefix>:l:<username>   failed logins per user
//	  <prefix>:li:<ip>        failed logins per client IP
//	  <prefix>:r:<digest>     refresh attempts per handle (handle never stored)
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a rate [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "tgrl"
	}
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

func (l *Limiter) loginKeys(username, ip string) []string {
	keys := []string{l.config.KeyPrefix + ":l:" + username}
	if l.config.EnableIPThrottle && ip != "" {
		keys = append(keys, l.config.KeyPrefix+":li:"+ip)
	}
	return keys
}

func (l *Limiter) refreshKey(handle string) string {
	sum := sha256.Sum256([]byte(handle))
	return l.config.KeyPrefix + ":r:" + hex.EncodeToString(sum[:16])
}

// CheckLogin reports ErrRateLimited when the user or IP has already used up
// its failed-login budget. It does not count the attempt.
//
//	Performance: 1 pipelined round trip (1-2 GET).
func (l *Limiter) CheckLogin(ctx context.Context, username, ip string) error {
	keys := l.loginKeys(username, ip)

	pipe := l.redis.Pipeline()
	gets := make([]*redis.StringCmd, len(keys))
	for i, key := range keys {
		gets[i] = pipe.Get(ctx, key)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	for _, get := range gets {
		count, err := get.Int64()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		if count >= int64(l.config.MaxLoginAttempts) {
			return ErrRateLimited
		}
	}
	return nil
}

// RecordLoginFailure counts a failed login for the user and IP.
func (l *Limiter) RecordLoginFailure(ctx context.Context, username, ip string) error {
	for _, key := range l.loginKeys(username, ip) {
		if _, err := l.hit(ctx, key, l.config.LoginCooldownDuration); err != nil {
			return err
		}
	}
	return nil
}

// ResetLogin clears the per-user failed-login counter after a successful
// login. The per-IP counter is left alone so one good account cannot reset
// an IP that is spraying others.
func (l *Limiter) ResetLogin(ctx context.Context, username string) error {
	if err := l.redis.Del(ctx, l.loginKeys(username, "")[0]).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// CheckRefresh counts one refresh attempt for handle and reports
// ErrRateLimited once the window budget is exceeded.
func (l *Limiter) CheckRefresh(ctx context.Context, handle string) error {
	if !l.config.EnableRefreshThrottle {
		return nil
	}
	count, err := l.hit(ctx, l.refreshKey(handle), l.config.RefreshCooldownDuration)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxRefreshAttempts) {
		return ErrRateLimited
	}
	return nil
}

func (l *Limiter) hit(ctx context.Context, key string, window time.Duration) (int64, error) {
	n, err := hitLua.Run(ctx, l.redis, []string{key}, window.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n, nil
}
