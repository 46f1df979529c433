package rate

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newLimiterTest(t *testing.T, cfg Config) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	return New(rdb, cfg), mr
}

func TestLoginBudgetPerUser(t *testing.T) {
	l, _ := newLimiterTest(t, Config{MaxLoginAttempts: 3, LoginCooldownDuration: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.CheckLogin(ctx, "alice", ""); err != nil {
			t.Fatalf("attempt %d unexpectedly limited: %v", i, err)
		}
		if err := l.RecordLoginFailure(ctx, "alice", ""); err != nil {
			t.Fatalf("record failure: %v", err)
		}
	}
	if err := l.CheckLogin(ctx, "alice", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if err := l.CheckLogin(ctx, "bob", ""); err != nil {
		t.Fatalf("expected other user unaffected: %v", err)
	}

	if err := l.ResetLogin(ctx, "alice"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if err := l.CheckLogin(ctx, "alice", ""); err != nil {
		t.Fatalf("expected reset to clear budget: %v", err)
	}
}

func TestLoginBudgetPerIP(t *testing.T) {
	l, _ := newLimiterTest(t, Config{EnableIPThrottle: true, MaxLoginAttempts: 2, LoginCooldownDuration: time.Minute})
	ctx := context.Background()

	_ = l.RecordLoginFailure(ctx, "a", "10.0.0.1")
	_ = l.RecordLoginFailure(ctx, "b", "10.0.0.1")

	if err := l.CheckLogin(ctx, "c", "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected IP budget exhausted, got %v", err)
	}
	if err := l.CheckLogin(ctx, "c", "10.0.0.2"); err != nil {
		t.Fatalf("expected other IP unaffected: %v", err)
	}
}

func TestRefreshWindowExpires(t *testing.T) {
	l, mr := newLimiterTest(t, Config{EnableRefreshThrottle: true, MaxRefreshAttempts: 2, RefreshCooldownDuration: time.Minute})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := l.CheckRefresh(ctx, "handle-1"); err != nil {
			t.Fatalf("attempt %d: %v", i, err)
		}
	}
	if err := l.CheckRefresh(ctx, "handle-1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	mr.FastForward(61 * time.Second)
	if err := l.CheckRefresh(ctx, "handle-1"); err != nil {
		t.Fatalf("expected new window after cooldown: %v", err)
	}
}

func TestRefreshKeyDoesNotContainHandle(t *testing.T) {
	l, mr := newLimiterTest(t, Config{EnableRefreshThrottle: true, MaxRefreshAttempts: 5, RefreshCooldownDuration: time.Minute})
	if err := l.CheckRefresh(context.Background(), "secret-handle"); err != nil {
		t.Fatalf("check refresh: %v", err)
	}
	for _, k := range mr.Keys() {
		if strings.Contains(k, "secret-handle") {
			t.Fatalf("raw handle leaked into key %q", k)
		}
	}
}

func TestRefreshThrottleDisabled(t *testing.T) {
	l, mr := newLimiterTest(t, Config{MaxRefreshAttempts: 1})
	for i := 0; i < 5; i++ {
		if err := l.CheckRefresh(context.Background(), "h"); err != nil {
			t.Fatalf("disabled throttle returned %v", err)
		}
	}
	if len(mr.Keys()) != 0 {
		t.Fatal("disabled throttle should not touch redis")
	}
}

func TestLoginWindowIsNotExtendedByLaterFailures(t *testing.T) {
	l, mr := newLimiterTest(t, Config{MaxLoginAttempts: 10, LoginCooldownDuration: time.Minute})
	ctx := context.Background()

	_ = l.RecordLoginFailure(ctx, "alice", "")
	mr.FastForward(40 * time.Second)
	_ = l.RecordLoginFailure(ctx, "alice", "")

	if ttl := mr.TTL("tgrl:l:alice"); ttl > 20*time.Second {
		t.Fatalf("second failure extended the window, ttl=%v", ttl)
	}
	mr.FastForward(21 * time.Second)
	if mr.Exists("tgrl:l:alice") {
		t.Fatal("counter should expire with its first window")
	}
}

func TestLimiterReportsRedisUnavailable(t *testing.T) {
	l, mr := newLimiterTest(t, Config{EnableIPThrottle: true, EnableRefreshThrottle: true, MaxLoginAttempts: 3, MaxRefreshAttempts: 3, LoginCooldownDuration: time.Minute, RefreshCooldownDuration: time.Minute})
	mr.Close()
	ctx := context.Background()

	if err := l.CheckLogin(ctx, "alice", "10.0.0.1"); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("CheckLogin: %v", err)
	}
	if err := l.RecordLoginFailure(ctx, "alice", "10.0.0.1"); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("RecordLoginFailure: %v", err)
	}
	if err := l.CheckRefresh(ctx, "h"); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("CheckRefresh: %v", err)
	}
}
