package rate

import (
	"context"
	"errors"
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

func TestLoginBudget(t *testing.T) {
	l, mr := newLimiterTest(t, Config{MaxLoginAttempts: 3, LoginCooldownDuration: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.CheckLogin(ctx, "alice", ""); err != nil {
			t.Fatalf("attempt %d: unexpected limit: %v", i, err)
		}
		if err := l.IncrementLogin(ctx, "alice", ""); err != nil {
			t.Fatalf("increment: %v", err)
		}
	}
	if err := l.CheckLogin(ctx, "alice", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if err := l.CheckLogin(ctx, "bob", ""); err != nil {
		t.Fatalf("other principal limited: %v", err)
	}

	mr.FastForward(time.Minute + time.Second)
	if err := l.CheckLogin(ctx, "alice", ""); err != nil {
		t.Fatalf("window should have reset: %v", err)
	}
}

func TestResetLogin(t *testing.T) {
	l, _ := newLimiterTest(t, Config{MaxLoginAttempts: 2, LoginCooldownDuration: time.Minute})
	ctx := context.Background()

	_ = l.IncrementLogin(ctx, "alice", "")
	_ = l.IncrementLogin(ctx, "alice", "")
	if n, _ := l.LoginAttempts(ctx, "alice"); n != 2 {
		t.Fatalf("attempts = %d, want 2", n)
	}
	if err := l.ResetLogin(ctx, "alice"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if err := l.CheckLogin(ctx, "alice", ""); err != nil {
		t.Fatalf("expected reset budget, got %v", err)
	}
}

func TestLoginIPThrottle(t *testing.T) {
	l, _ := newLimiterTest(t, Config{EnableIPThrottle: true, MaxLoginAttempts: 2, LoginCooldownDuration: time.Minute})
	ctx := context.Background()

	_ = l.IncrementLogin(ctx, "alice", "10.0.0.1")
	_ = l.IncrementLogin(ctx, "bob", "10.0.0.1")
	if err := l.CheckLogin(ctx, "carol", "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected IP limit, got %v", err)
	}
	if err := l.CheckLogin(ctx, "carol", "10.0.0.2"); err != nil {
		t.Fatalf("other IP limited: %v", err)
	}
}

func TestRefreshBudget(t *testing.T) {
	l, _ := newLimiterTest(t, Config{MaxRefreshAttempts: 2, RefreshCooldownDuration: time.Minute})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := l.CheckRefresh(ctx, "alice"); err != nil {
			t.Fatalf("refresh %d: %v", i, err)
		}
	}
	if err := l.CheckRefresh(ctx, "alice"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestDisabledLimitsSkipRedis(t *testing.T) {
	l, mr := newLimiterTest(t, Config{})
	mr.SetError("down")
	ctx := context.Background()

	if err := l.CheckLogin(ctx, "alice", "1.2.3.4"); err != nil {
		t.Fatalf("check login: %v", err)
	}
	if err := l.CheckRefresh(ctx, "alice"); err != nil {
		t.Fatalf("check refresh: %v", err)
	}
}

func TestUnavailable(t *testing.T) {
	l, mr := newLimiterTest(t, Config{MaxLoginAttempts: 1})
	mr.SetError("down")

	if err := l.CheckLogin(context.Background(), "alice", ""); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
