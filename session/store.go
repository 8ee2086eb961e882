package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/jwtauth/internal"
	"github.com/redis/go-redis/v9"
)

const (
	defaultPrefix  = "ja"
	defaultTimeout = 500 * time.Millisecond
	defaultTTL     = 7 * 24 * time.Hour
	replayTTL      = 24 * time.Hour

	// maxChainHops bounds the successor walk of Revoke.
	maxChainHops = 10000
)

// Config configures a Store.
type Config struct {
	// Prefix namespaces every key. Defaults to "ja".
	Prefix string

	// Timeout bounds each store call. The redis client must be built with
	// ContextTimeoutEnabled for the bound to apply to network reads.
	Timeout time.Duration

	// TTL is the lifetime granted to a successor on Rotate.
	TTL time.Duration

	// AbsoluteLifetime caps a session chain measured from its first
	// Create. Zero disables the cap.
	AbsoluteLifetime time.Duration

	Now   func() time.Time
	NewID func() (string, error)
}

// Store is the Redis session store. It is safe for concurrent use.
//
// Sessions are addressed by principal and id. Every key of a principal
// shares the {principal} hash tag, so each script touches one Redis Cluster
// slot.
type Store struct {
	redis    redis.UniversalClient
	prefix   string
	timeout  time.Duration
	ttl      time.Duration
	absolute time.Duration
	now      func() time.Time
	newID    func() (string, error)
}

// NewStore returns a Store over client.
func NewStore(client redis.UniversalClient, cfg Config) *Store {
	s := &Store{
		redis:    client,
		prefix:   cfg.Prefix,
		timeout:  cfg.Timeout,
		ttl:      cfg.TTL,
		absolute: cfg.AbsoluteLifetime,
		now:      cfg.Now,
		newID:    cfg.NewID,
	}
	if s.prefix == "" {
		s.prefix = defaultPrefix
	}
	if s.timeout <= 0 {
		s.timeout = defaultTimeout
	}
	if s.ttl <= 0 {
		s.ttl = defaultTTL
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = internal.NewSessionIDString
	}
	return s
}

func (s *Store) tag(principal string) string {
	return "{" + principal + "}"
}

func (s *Store) keyPrefix(principal string) string {
	return s.prefix + ":s:" + s.tag(principal) + ":"
}

func (s *Store) key(principal, sessionID string) string {
	return s.keyPrefix(principal) + sessionID
}

func (s *Store) indexKey(principal string) string {
	return s.prefix + ":p:" + s.tag(principal)
}

func (s *Store) replayKey(principal, sessionID string) string {
	return s.prefix + ":r:" + s.tag(principal) + ":" + sessionID
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// Create allocates a fresh session id for sub and stores an active record
// expiring after ttl.
//
//	Performance: 1 Lua script (SET NX + SADD + PEXPIRE).
func (s *Store) Create(ctx context.Context, sub Subject, ttl time.Duration) (*Record, error) {
	if sub.Principal == "" {
		return nil, errors.New("session principal is required")
	}
	if ttl <= 0 {
		return nil, errors.New("session ttl must be > 0")
	}
	if s.absolute > 0 && ttl > s.absolute {
		ttl = s.absolute
	}

	id, err := s.allocateID()
	if err != nil {
		return nil, err
	}
	now := s.now()
	rec := &Record{
		SessionID: id,
		Principal: sub.Principal,
		Role:      sub.Role,
		Scopes:    append([]string(nil), sub.Scopes...),
		Status:    StatusActive,
		CreatedAt: now,
		RotatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	data, err := Encode(rec)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	created, err := createScript.Run(ctx, s.redis,
		[]string{s.key(sub.Principal, id), s.indexKey(sub.Principal)},
		data, ttl.Milliseconds(), id,
	).Int()
	if err != nil {
		return nil, unavailable(err)
	}
	if created != 1 {
		return nil, ErrSessionIDCollision
	}
	return rec, nil
}

// Get returns the stored record for sessionID, including revoked
// tombstones. Expiry is not checked; use [Record.Live].
//
//	Performance: 1 Redis GET.
func (s *Store) Get(ctx context.Context, principal, sessionID string) (*Record, error) {
	if principal == "" || sessionID == "" {
		return nil, ErrSessionNotFound
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	data, err := s.redis.Get(ctx, s.key(principal, sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, unavailable(err)
	}

	rec, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCorrupt, err)
	}
	if rec.Principal != principal {
		return nil, fmt.Errorf("%w: principal does not match key", ErrSessionCorrupt)
	}
	rec.SessionID = sessionID
	return rec, nil
}

// IsLive reports whether sessionID names an active, unexpired session.
// Missing and corrupt records are not live. Only store failures error.
func (s *Store) IsLive(ctx context.Context, principal, sessionID string) (bool, error) {
	rec, err := s.Get(ctx, principal, sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrSessionCorrupt) {
			return false, nil
		}
		return false, err
	}
	return rec.Live(s.now()), nil
}

// Rotate atomically retires sessionID and returns its successor under a new
// id. Of any number of concurrent calls for the same id, exactly one
// succeeds; the others observe ErrSessionRevoked.
//
// The successor keeps the principal, role, scopes and creation time. Its
// expiry is now+TTL, capped by the absolute lifetime. The retired record
// links to the successor so Revoke can reach the live head of the chain.
//
//	Performance: 1 Lua script.
func (s *Store) Rotate(ctx context.Context, principal, sessionID string) (*Record, error) {
	if principal == "" || sessionID == "" {
		return nil, ErrSessionNotFound
	}
	newID, err := s.allocateID()
	if err != nil {
		return nil, err
	}
	now := s.now()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := rotateScript.Run(ctx, s.redis,
		[]string{s.key(principal, sessionID), s.key(principal, newID), s.indexKey(principal)},
		sessionID, newID, now.UnixMilli(), s.ttl.Milliseconds(), s.absolute.Milliseconds(), principal,
	).Slice()
	if err != nil {
		return nil, unavailable(err)
	}
	if len(res) == 0 {
		return nil, ErrSessionCorrupt
	}

	status, ok := res[0].(int64)
	if !ok {
		return nil, ErrSessionCorrupt
	}
	switch status {
	case rotateNotFound:
		return nil, ErrSessionNotFound
	case rotateExpired:
		return nil, ErrSessionExpired
	case rotateRevoked:
		return nil, ErrSessionRevoked
	case rotateCorrupt:
		return nil, ErrSessionCorrupt
	case rotateCollision:
		return nil, ErrSessionIDCollision
	case rotateOK:
	default:
		return nil, ErrSessionCorrupt
	}

	if len(res) < 2 {
		return nil, ErrSessionCorrupt
	}
	blob, ok := res[1].(string)
	if !ok {
		return nil, ErrSessionCorrupt
	}
	rec, err := Decode([]byte(blob))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCorrupt, err)
	}
	rec.SessionID = newID
	return rec, nil
}

// Revoke ends the chain sessionID belongs to. If sessionID was retired by
// Rotate, its successors are followed and the live head is revoked, so a
// rotated-away refresh token still logs its chain out. Revoking a missing
// or already revoked chain is not an error.
//
//	Performance: 1 Lua script.
func (s *Store) Revoke(ctx context.Context, principal, sessionID string) error {
	_, err := s.revoke(ctx, principal, sessionID)
	return err
}

func (s *Store) revoke(ctx context.Context, principal, sessionID string) (bool, error) {
	if principal == "" || sessionID == "" {
		return false, nil
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	n, err := revokeScript.Run(ctx, s.redis,
		[]string{s.key(principal, sessionID), s.indexKey(principal)},
		sessionID, principal, s.keyPrefix(principal), maxChainHops,
	).Int()
	if err != nil {
		return false, unavailable(err)
	}
	return n == 1, nil
}

// RevokeAllForPrincipal revokes every indexed session of principal and
// returns how many were active.
//
// Not atomic across sessions: one created concurrently with this call may
// survive it.
func (s *Store) RevokeAllForPrincipal(ctx context.Context, principal string) (int, error) {
	ids, err := s.indexed(ctx, principal)
	if err != nil {
		return 0, err
	}

	revoked := 0
	for _, id := range ids {
		ok, err := s.revoke(ctx, principal, id)
		if err != nil {
			return revoked, err
		}
		if ok {
			revoked++
		}
	}
	return revoked, nil
}

// ActiveSessionIDs returns the live session ids of principal.
//
//	Performance: 1 SMEMBERS + 1 pipelined GET batch.
func (s *Store) ActiveSessionIDs(ctx context.Context, principal string) ([]string, error) {
	ids, err := s.indexed(ctx, principal)
	if err != nil || len(ids) == 0 {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, s.key(principal, id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, unavailable(err)
	}

	now := s.now()
	live := make([]string, 0, len(ids))
	for i, cmd := range cmds {
		data, err := cmd.Bytes()
		if err != nil {
			continue
		}
		rec, err := Decode(data)
		if err != nil || !rec.Live(now) {
			continue
		}
		live = append(live, ids[i])
	}
	return live, nil
}

func (s *Store) indexed(ctx context.Context, principal string) ([]string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	ids, err := s.redis.SMembers(ctx, s.indexKey(principal)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, unavailable(err)
	}
	return ids, nil
}

// TrackReplayAnomaly counts presentations of a retired session id and
// returns the running count.
func (s *Store) TrackReplayAnomaly(ctx context.Context, principal, sessionID string) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	key := s.replayKey(principal, sessionID)
	count, err := s.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, unavailable(err)
	}
	if count == 1 {
		if err := s.redis.Expire(ctx, key, replayTTL).Err(); err != nil {
			return count, unavailable(err)
		}
	}
	return count, nil
}

func (s *Store) allocateID() (string, error) {
	id, err := s.newID()
	if err != nil {
		return "", err
	}
	if id == "" || len(id) > maxSessionIDLen {
		return "", fmt.Errorf("session id length %d out of range", len(id))
	}
	return id, nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), unavailable(err)
	}
	return time.Since(start), nil
}
