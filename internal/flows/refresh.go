package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/jwtauth/internal/rate"
	"github.com/MrEthical07/jwtauth/jwt"
	"github.com/MrEthical07/jwtauth/session"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureToken
	RefreshFailureRateLimited
	RefreshFailureNotLive
	RefreshFailureReuse
	RefreshFailureSessionExpired
	RefreshFailurePrincipalMismatch
	RefreshFailureStoreUnavailable
	RefreshFailureRotate
	RefreshFailureIssue
)

// RefreshResult carries either the issued token pair or failure metadata.
type RefreshResult struct {
	Failure   RefreshFailureKind
	Err       error
	Principal string
	SessionID string
	Pair      *TokenPair

	// ReplayCount is set when a retired session id was presented.
	ReplayCount int64
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	Codec                TokenCodec
	Sessions             SessionStore
	Limiter              RefreshRateLimiter
	AccessTTL            time.Duration
	EnableReplayTracking bool

	// RevokeChainOnReuse ends the whole chain when a retired session id is
	// presented, so the holder of the latest token is logged out too.
	RevokeChainOnReuse bool
	Now                func() time.Time
	Warn               func(string, ...any)
}

// RunRefresh rotates the session named by refreshToken and issues a new
// pair bound to the successor id. The presented token can never succeed
// again.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) RefreshResult {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Warn == nil {
		deps.Warn = func(string, ...any) {}
	}

	claims, err := deps.Codec.Parse(refreshToken, jwt.KindRefresh)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureToken, Err: err}
	}
	principal, sessionID := claims.Subject, claims.SessionID

	if deps.Limiter != nil {
		if err := deps.Limiter.CheckRefresh(ctx, principal); err != nil {
			kind := RefreshFailureStoreUnavailable
			if errors.Is(err, rate.ErrRateLimited) {
				kind = RefreshFailureRateLimited
			}
			return RefreshResult{Failure: kind, Err: err, Principal: principal, SessionID: sessionID}
		}
	}

	live, err := deps.Sessions.IsLive(ctx, principal, sessionID)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureStoreUnavailable, Err: err, Principal: principal, SessionID: sessionID}
	}
	if !live {
		revokeChain(ctx, principal, sessionID, deps)
		return RefreshResult{
			Failure:     RefreshFailureNotLive,
			Err:         session.ErrSessionRevoked,
			Principal:   principal,
			SessionID:   sessionID,
			ReplayCount: trackReplay(ctx, principal, sessionID, deps),
		}
	}

	next, err := deps.Sessions.Rotate(ctx, principal, sessionID)
	if err != nil {
		res := RefreshResult{Err: err, Principal: principal, SessionID: sessionID}
		switch {
		case errors.Is(err, session.ErrSessionRevoked):
			// Lost a race with a concurrent rotation or logout.
			res.Failure = RefreshFailureReuse
			revokeChain(ctx, principal, sessionID, deps)
			res.ReplayCount = trackReplay(ctx, principal, sessionID, deps)
		case errors.Is(err, session.ErrSessionExpired):
			res.Failure = RefreshFailureSessionExpired
		case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, session.ErrSessionCorrupt):
			res.Failure = RefreshFailureNotLive
		case errors.Is(err, session.ErrStoreUnavailable):
			res.Failure = RefreshFailureStoreUnavailable
		default:
			res.Failure = RefreshFailureRotate
		}
		return res
	}

	if next.Principal != principal {
		if err := deps.Sessions.Revoke(ctx, next.Principal, next.SessionID); err != nil {
			deps.Warn("mismatched successor revoke failed", "session_id", next.SessionID, "error", err)
		}
		return RefreshResult{
			Failure:   RefreshFailurePrincipalMismatch,
			Err:       errors.New("session principal does not match token subject"),
			Principal: principal,
			SessionID: sessionID,
		}
	}

	refreshTTL := next.ExpiresAt.Sub(deps.Now())
	if refreshTTL <= 0 {
		return RefreshResult{Failure: RefreshFailureSessionExpired, Err: session.ErrSessionExpired, Principal: principal, SessionID: sessionID}
	}

	pair, err := issuePair(deps.Codec, next, deps.AccessTTL, refreshTTL)
	if err != nil {
		if revokeErr := deps.Sessions.Revoke(ctx, next.Principal, next.SessionID); revokeErr != nil {
			deps.Warn("orphan session revoke failed", "session_id", next.SessionID, "error", revokeErr)
		}
		return RefreshResult{Failure: RefreshFailureIssue, Err: err, Principal: principal, SessionID: sessionID}
	}

	return RefreshResult{
		Failure:   RefreshFailureNone,
		Principal: principal,
		SessionID: next.SessionID,
		Pair:      pair,
	}
}

func revokeChain(ctx context.Context, principal, sessionID string, deps RefreshDeps) {
	if !deps.RevokeChainOnReuse {
		return
	}
	if err := deps.Sessions.Revoke(ctx, principal, sessionID); err != nil {
		deps.Warn("session chain revoke after reuse failed", "session_id", sessionID, "error", err)
	}
}

func trackReplay(ctx context.Context, principal, sessionID string, deps RefreshDeps) int64 {
	if !deps.EnableReplayTracking {
		return 0
	}
	count, err := deps.Sessions.TrackReplayAnomaly(ctx, principal, sessionID)
	if err != nil {
		deps.Warn("replay anomaly tracking failed", "session_id", sessionID, "error", err)
		return 0
	}
	return count
}
