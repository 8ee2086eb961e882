package session

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newSessionStoreTest(t *testing.T, mutate func(*Config)) (*Store, *miniredis.Miniredis, *testClock) {
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

	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	cfg := Config{Prefix: "ts", TTL: time.Hour, Now: clock.Now}
	if mutate != nil {
		mutate(&cfg)
	}
	return NewStore(rdb, cfg), mr, clock
}

var alice = Subject{Principal: "alice", Role: "admin", Scopes: []string{"read", "write"}}

func TestCreateIsLive(t *testing.T) {
	store, _, _ := newSessionStoreTest(t, nil)
	ctx := context.Background()

	rec, err := store.Create(ctx, alice, time.Hour)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.SessionID == "" {
		t.Fatal("expected allocated session id")
	}

	live, err := store.IsLive(ctx, "alice", rec.SessionID)
	if err != nil || !live {
		t.Fatalf("expected live session, got live=%v err=%v", live, err)
	}

	got, err := store.Get(ctx, "alice", rec.SessionID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Principal != "alice" || got.Role != "admin" || len(got.Scopes) != 2 {
		t.Fatalf("unexpected record: %+v", got)
	}

	live, err = store.IsLive(ctx, "alice", "unknown")
	if err != nil || live {
		t.Fatalf("unknown id: live=%v err=%v", live, err)
	}
}

func TestCreateAllocatesDistinctIDs(t *testing.T) {
	store, _, _ := newSessionStoreTest(t, nil)
	ctx := context.Background()

	a, err := store.Create(ctx, alice, time.Hour)
	if err != nil {
		t.Fatalf("create a: %v", err)
	}
	b, err := store.Create(ctx, alice, time.Hour)
	if err != nil {
		t.Fatalf("create b: %v", err)
	}
	if a.SessionID == b.SessionID {
		t.Fatal("expected distinct session ids")
	}
}

func TestCreateCollision(t *testing.T) {
	store, _, _ := newSessionStoreTest(t, func(c *Config) {
		c.NewID = func() (string, error) { return "fixed", nil }
	})
	ctx := context.Background()

	if _, err := store.Create(ctx, alice, time.Hour); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := store.Create(ctx, alice, time.Hour); !errors.Is(err, ErrSessionIDCollision) {
		t.Fatalf("expected ErrSessionIDCollision, got %v", err)
	}
}

func TestIsLiveHonoursInjectedClock(t *testing.T) {
	store, _, clock := newSessionStoreTest(t, nil)
	ctx := context.Background()

	rec, err := store.Create(ctx, alice, time.Minute)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	clock.Advance(time.Minute - time.Millisecond)
	if live, _ := store.IsLive(ctx, "alice", rec.SessionID); !live {
		t.Fatal("expected live just before expiry")
	}
	clock.Advance(time.Millisecond)
	if live, _ := store.IsLive(ctx, "alice", rec.SessionID); live {
		t.Fatal("expected not live at expiry")
	}
}

func TestRecordDisappearsAfterRedisTTL(t *testing.T) {
	store, mr, _ := newSessionStoreTest(t, nil)
	ctx := context.Background()

	rec, err := store.Create(ctx, alice, time.Minute)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	mr.FastForward(time.Minute + time.Second)

	if _, err := store.Get(ctx, "alice", rec.SessionID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestRotateRetiresOldID(t *testing.T) {
	store, _, clock := newSessionStoreTest(t, nil)
	ctx := context.Background()

	rec, err := store.Create(ctx, alice, time.Hour)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	clock.Advance(10 * time.Minute)

	next, err := store.Rotate(ctx, "alice", rec.SessionID)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if next.SessionID == rec.SessionID {
		t.Fatal("rotate must allocate a new id")
	}
	if next.Principal != "alice" || next.Role != "admin" || len(next.Scopes) != 2 {
		t.Fatalf("successor lost subject: %+v", next)
	}
	if !next.CreatedAt.Equal(rec.CreatedAt) {
		t.Fatalf("successor created_at changed: %v vs %v", next.CreatedAt, rec.CreatedAt)
	}
	if want := clock.Now().Add(time.Hour); !next.ExpiresAt.Equal(want) {
		t.Fatalf("successor expiry = %v, want %v", next.ExpiresAt, want)
	}

	if live, _ := store.IsLive(ctx, "alice", rec.SessionID); live {
		t.Fatal("old session must not be live after rotate")
	}
	if live, _ := store.IsLive(ctx, "alice", next.SessionID); !live {
		t.Fatal("successor must be live")
	}

	if _, err := store.Rotate(ctx, "alice", rec.SessionID); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("second rotate of old id: expected ErrSessionRevoked, got %v", err)
	}

	ids, err := store.ActiveSessionIDs(ctx, "alice")
	if err != nil {
		t.Fatalf("active ids: %v", err)
	}
	if len(ids) != 1 || ids[0] != next.SessionID {
		t.Fatalf("index = %v, want [%s]", ids, next.SessionID)
	}
}

func TestRotateStatuses(t *testing.T) {
	store, mr, clock := newSessionStoreTest(t, nil)
	ctx := context.Background()

	if _, err := store.Rotate(ctx, "alice", "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("missing: expected ErrSessionNotFound, got %v", err)
	}

	rec, err := store.Create(ctx, alice, time.Minute)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	clock.Advance(time.Minute)
	if _, err := store.Rotate(ctx, "alice", rec.SessionID); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expired: expected ErrSessionExpired, got %v", err)
	}

	mr.Set("ts:s:{alice}:junk", "\x09garbage")
	if _, err := store.Rotate(ctx, "alice", "junk"); !errors.Is(err, ErrSessionCorrupt) {
		t.Fatalf("corrupt: expected ErrSessionCorrupt, got %v", err)
	}
}

func TestRotateAbsoluteLifetimeCap(t *testing.T) {
	store, _, clock := newSessionStoreTest(t, func(c *Config) {
		c.AbsoluteLifetime = 90 * time.Minute
	})
	ctx := context.Background()

	rec, err := store.Create(ctx, alice, time.Hour)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	clock.Advance(50 * time.Minute)

	next, err := store.Rotate(ctx, "alice", rec.SessionID)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if want := rec.CreatedAt.Add(90 * time.Minute); !next.ExpiresAt.Equal(want) {
		t.Fatalf("capped expiry = %v, want %v", next.ExpiresAt, want)
	}

	clock.Advance(40 * time.Minute)
	if _, err := store.Rotate(ctx, "alice", next.SessionID); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected chain to end at absolute lifetime, got %v", err)
	}
}

func TestConcurrentRotateSingleWinner(t *testing.T) {
	store, _, _ := newSessionStoreTest(t, nil)
	ctx := context.Background()

	rec, err := store.Create(ctx, alice, time.Hour)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	const workers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []string
		losers  int
		start   = make(chan struct{})
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			next, err := store.Rotate(ctx, "alice", rec.SessionID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, next.SessionID)
			case errors.Is(err, ErrSessionRevoked):
				losers++
			default:
				t.Errorf("unexpected rotate error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if len(winners) != 1 {
		t.Fatalf("expected exactly one winner, got %d", len(winners))
	}
	if losers != workers-1 {
		t.Fatalf("expected %d losers, got %d", workers-1, losers)
	}
	if live, _ := store.IsLive(ctx, "alice", winners[0]); !live {
		t.Fatal("winner successor must be live")
	}
}

func TestRotateLinksRetiredRecord(t *testing.T) {
	store, _, _ := newSessionStoreTest(t, nil)
	ctx := context.Background()

	rec, err := store.Create(ctx, alice, time.Hour)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	next, err := store.Rotate(ctx, "alice", rec.SessionID)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}

	old, err := store.Get(ctx, "alice", rec.SessionID)
	if err != nil {
		t.Fatalf("get retired: %v", err)
	}
	if old.Status != StatusRevoked || old.Successor != next.SessionID {
		t.Fatalf("retired record = %+v, want revoked with successor %s", old, next.SessionID)
	}
	if next.Successor != "" {
		t.Fatalf("live successor must not carry a link: %+v", next)
	}
}

func TestRevokeFollowsRotationChain(t *testing.T) {
	store, _, _ := newSessionStoreTest(t, nil)
	ctx := context.Background()

	first, err := store.Create(ctx, alice, time.Hour)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	other, err := store.Create(ctx, alice, time.Hour)
	if err != nil {
		t.Fatalf("create other: %v", err)
	}
	second, err := store.Rotate(ctx, "alice", first.SessionID)
	if err != nil {
		t.Fatalf("rotate 1: %v", err)
	}
	head, err := store.Rotate(ctx, "alice", second.SessionID)
	if err != nil {
		t.Fatalf("rotate 2: %v", err)
	}

	if err := store.Revoke(ctx, "alice", first.SessionID); err != nil {
		t.Fatalf("revoke by oldest id: %v", err)
	}
	if live, _ := store.IsLive(ctx, "alice", head.SessionID); live {
		t.Fatal("head of the chain must be revoked through its retired ancestor")
	}
	if _, err := store.Rotate(ctx, "alice", head.SessionID); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("rotate revoked head: expected ErrSessionRevoked, got %v", err)
	}
	if live, _ := store.IsLive(ctx, "alice", other.SessionID); !live {
		t.Fatal("a separate login of the same principal must survive")
	}

	ids, err := store.ActiveSessionIDs(ctx, "alice")
	if err != nil {
		t.Fatalf("active ids: %v", err)
	}
	if len(ids) != 1 || ids[0] != other.SessionID {
		t.Fatalf("index = %v, want [%s]", ids, other.SessionID)
	}

	if err := store.Revoke(ctx, "alice", second.SessionID); err != nil {
		t.Fatalf("revoke already ended chain: %v", err)
	}
}

func TestRevokeRacingRotateEndsChain(t *testing.T) {
	store, _, _ := newSessionStoreTest(t, nil)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		rec, err := store.Create(ctx, alice, time.Hour)
		if err != nil {
			t.Fatalf("create: %v", err)
		}

		var (
			wg        sync.WaitGroup
			next      *Record
			rotateErr error
			revokeErr error
			start     = make(chan struct{})
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			<-start
			next, rotateErr = store.Rotate(ctx, "alice", rec.SessionID)
		}()
		go func() {
			defer wg.Done()
			<-start
			revokeErr = store.Revoke(ctx, "alice", rec.SessionID)
		}()
		close(start)
		wg.Wait()

		if revokeErr != nil {
			t.Fatalf("revoke: %v", revokeErr)
		}
		switch {
		case rotateErr == nil:
			if live, _ := store.IsLive(ctx, "alice", next.SessionID); live {
				t.Fatalf("iteration %d: successor survived a concurrent revoke", i)
			}
		case errors.Is(rotateErr, ErrSessionRevoked):
		default:
			t.Fatalf("rotate: %v", rotateErr)
		}
	}

	ids, err := store.ActiveSessionIDs(ctx, "alice")
	if err != nil || len(ids) != 0 {
		t.Fatalf("expected no live sessions, got %v err=%v", ids, err)
	}
}

func TestKeysShareHashTag(t *testing.T) {
	store, mr, _ := newSessionStoreTest(t, nil)
	ctx := context.Background()

	rec, err := store.Create(ctx, alice, time.Hour)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.Rotate(ctx, "alice", rec.SessionID); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if _, err := store.TrackReplayAnomaly(ctx, "alice", rec.SessionID); err != nil {
		t.Fatalf("track: %v", err)
	}

	keys := mr.Keys()
	if len(keys) != 4 {
		t.Fatalf("expected session, successor, index and replay keys, got %v", keys)
	}
	for _, k := range keys {
		if !strings.Contains(k, "{alice}") {
			t.Fatalf("key %q lacks the principal hash tag", k)
		}
	}
}

func TestSessionIsScopedToPrincipal(t *testing.T) {
	store, mr, _ := newSessionStoreTest(t, nil)
	ctx := context.Background()

	rec, err := store.Create(ctx, alice, time.Hour)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if live, _ := store.IsLive(ctx, "bob", rec.SessionID); live {
		t.Fatal("session must not be live under another principal")
	}
	if _, err := store.Rotate(ctx, "bob", rec.SessionID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("rotate as bob: expected ErrSessionNotFound, got %v", err)
	}

	blob, err := mr.Get("ts:s:{alice}:" + rec.SessionID)
	if err != nil {
		t.Fatalf("raw get: %v", err)
	}
	mr.Set("ts:s:{bob}:copied", blob)
	if _, err := store.Get(ctx, "bob", "copied"); !errors.Is(err, ErrSessionCorrupt) {
		t.Fatalf("copied record: expected ErrSessionCorrupt, got %v", err)
	}
	if _, err := store.Rotate(ctx, "bob", "copied"); !errors.Is(err, ErrSessionCorrupt) {
		t.Fatalf("rotate copied record: expected ErrSessionCorrupt, got %v", err)
	}
}

func TestRevokeIdempotent(t *testing.T) {
	store, _, _ := newSessionStoreTest(t, nil)
	ctx := context.Background()

	rec, err := store.Create(ctx, alice, time.Hour)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Revoke(ctx, "alice", rec.SessionID); err != nil {
		t.Fatalf("first revoke: %v", err)
	}
	if err := store.Revoke(ctx, "alice", rec.SessionID); err != nil {
		t.Fatalf("second revoke: %v", err)
	}
	if err := store.Revoke(ctx, "alice", "never-existed"); err != nil {
		t.Fatalf("revoke unknown: %v", err)
	}

	if live, _ := store.IsLive(ctx, "alice", rec.SessionID); live {
		t.Fatal("revoked session must not be live")
	}
	if _, err := store.Rotate(ctx, "alice", rec.SessionID); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("rotate revoked: expected ErrSessionRevoked, got %v", err)
	}
	ids, err := store.ActiveSessionIDs(ctx, "alice")
	if err != nil || len(ids) != 0 {
		t.Fatalf("expected empty index, got %v err=%v", ids, err)
	}
}

func TestRevokeKeepsTombstoneTTL(t *testing.T) {
	store, mr, _ := newSessionStoreTest(t, nil)
	ctx := context.Background()

	rec, err := store.Create(ctx, alice, time.Hour)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Revoke(ctx, "alice", rec.SessionID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if ttl := mr.TTL("ts:s:{alice}:" + rec.SessionID); ttl <= 0 || ttl > time.Hour {
		t.Fatalf("tombstone ttl = %v", ttl)
	}
}

func TestRevokeAllForPrincipal(t *testing.T) {
	store, _, _ := newSessionStoreTest(t, nil)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		rec, err := store.Create(ctx, alice, time.Hour)
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		ids = append(ids, rec.SessionID)
	}
	bob, err := store.Create(ctx, Subject{Principal: "bob"}, time.Hour)
	if err != nil {
		t.Fatalf("create bob: %v", err)
	}
	if err := store.Revoke(ctx, "alice", ids[0]); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	n, err := store.RevokeAllForPrincipal(ctx, "alice")
	if err != nil {
		t.Fatalf("revoke all: %v", err)
	}
	if n != 2 {
		t.Fatalf("revoked %d, want 2", n)
	}
	for _, id := range ids {
		if live, _ := store.IsLive(ctx, "alice", id); live {
			t.Fatalf("session %s still live", id)
		}
	}
	if live, _ := store.IsLive(ctx, "bob", bob.SessionID); !live {
		t.Fatal("other principal must be untouched")
	}
}

func TestTrackReplayAnomaly(t *testing.T) {
	store, mr, _ := newSessionStoreTest(t, nil)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := store.TrackReplayAnomaly(ctx, "alice", "sid")
		if err != nil {
			t.Fatalf("track: %v", err)
		}
		if got != want {
			t.Fatalf("count = %d, want %d", got, want)
		}
	}
	if ttl := mr.TTL("ts:r:{alice}:sid"); ttl != replayTTL {
		t.Fatalf("replay ttl = %v", ttl)
	}
}

func TestStoreUnavailable(t *testing.T) {
	store, mr, _ := newSessionStoreTest(t, nil)
	ctx := context.Background()

	rec, err := store.Create(ctx, alice, time.Hour)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	mr.SetError("LOADING dataset")
	defer mr.SetError("")

	if _, err := store.IsLive(ctx, "alice", rec.SessionID); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("IsLive: expected ErrStoreUnavailable, got %v", err)
	}
	if _, err := store.Rotate(ctx, "alice", rec.SessionID); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("Rotate: expected ErrStoreUnavailable, got %v", err)
	}
	if err := store.Revoke(ctx, "alice", rec.SessionID); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("Revoke: expected ErrStoreUnavailable, got %v", err)
	}
	if _, err := store.Create(ctx, alice, time.Hour); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("Create: expected ErrStoreUnavailable, got %v", err)
	}
	if _, err := store.Ping(ctx); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("Ping: expected ErrStoreUnavailable, got %v", err)
	}
}

func TestStoreCallTimeout(t *testing.T) {
	// A listener that accepts connections and never answers.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			defer conn.Close()
		}
	}()

	rdb := redis.NewClient(&redis.Options{
		Addr:                  ln.Addr().String(),
		ContextTimeoutEnabled: true,
		MaxRetries:            -1,
	})
	defer rdb.Close()

	store := NewStore(rdb, Config{Prefix: "ts", Timeout: 50 * time.Millisecond})

	begin := time.Now()
	_, err = store.IsLive(context.Background(), "alice", "sid")
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if elapsed := time.Since(begin); elapsed > 2*time.Second {
		t.Fatalf("store call not bounded by timeout: %v", elapsed)
	}
}
