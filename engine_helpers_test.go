package jwtauth

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
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

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

const testPassword = "correct-password-123"

// testIdentities accepts testPassword for every principal in the map.
type testIdentities map[string]Identity

func (m testIdentities) Verify(_ context.Context, creds Credentials) (Identity, error) {
	ident, ok := m[creds.Principal]
	if !ok || creds.Password != testPassword {
		return Identity{}, ErrInvalidCredentials
	}
	return ident, nil
}

func defaultTestIdentities() testIdentities {
	return testIdentities{
		"alice": {Principal: "alice", Role: "admin", Scopes: []string{"read", "write"}},
		"bob":   {Principal: "bob", Role: "user", Scopes: []string{"read"}},
	}
}

func testConfig(t testing.TB) Config {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	cfg := DefaultConfig()
	cfg.JWT.PrivateKey = priv
	cfg.JWT.Issuer = "jwtauth-test"
	cfg.Session.RedisPrefix = "t"
	cfg.Security.MaxRefreshAttempts = 100
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	return cfg
}

type testEngine struct {
	*Engine
	mr    *miniredis.Miniredis
	rdb   *redis.Client
	clock *testClock
}

type engineOption func(*Builder)

func withAuditSink(sink AuditSink) engineOption {
	return func(b *Builder) { b.WithAuditSink(sink) }
}

func withIdentities(store IdentityStore) engineOption {
	return func(b *Builder) { b.WithIdentityStore(store) }
}

func newTestEngine(t testing.TB, mutate func(*Config), opts ...engineOption) *testEngine {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), ContextTimeoutEnabled: true})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := testConfig(t)
	if mutate != nil {
		mutate(&cfg)
	}

	clock := newTestClock()
	b := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithIdentityStore(defaultTestIdentities()).
		WithClock(clock.Now)
	for _, opt := range opts {
		opt(b)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEngine{Engine: engine, mr: mr, rdb: rdb, clock: clock}
}

func (e *testEngine) login(t testing.TB, principal string) *TokenPair {
	t.Helper()

	pair, err := e.Login(context.Background(), Credentials{Principal: principal, Password: testPassword})
	if err != nil {
		t.Fatalf("login %s: %v", principal, err)
	}
	return pair
}
