package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/jwtauth/jwt"
	"github.com/MrEthical07/jwtauth/session"
)

// TokenCodec is the subset of *jwt.Codec the flows use.
type TokenCodec interface {
	Issue(kind jwt.Kind, sub jwt.Subject, ttl time.Duration) (string, *jwt.Claims, error)
	Parse(token string, kind jwt.Kind) (*jwt.Claims, error)
	ParseAllowExpired(token string, kind jwt.Kind) (*jwt.Claims, error)
}

// SessionStore is the subset of *session.Store the flows use. Revoke ends
// the whole chain, following ids retired by Rotate to the live session.
type SessionStore interface {
	Create(ctx context.Context, sub session.Subject, ttl time.Duration) (*session.Record, error)
	IsLive(ctx context.Context, principal, sessionID string) (bool, error)
	Rotate(ctx context.Context, principal, sessionID string) (*session.Record, error)
	Revoke(ctx context.Context, principal, sessionID string) error
	RevokeAllForPrincipal(ctx context.Context, principal string) (int, error)
	TrackReplayAnomaly(ctx context.Context, principal, sessionID string) (int64, error)
}

// LoginRateLimiter is satisfied by *rate.Limiter.
type LoginRateLimiter interface {
	CheckLogin(ctx context.Context, principal, ip string) error
	IncrementLogin(ctx context.Context, principal, ip string) error
	ResetLogin(ctx context.Context, principal string) error
}

// RefreshRateLimiter is satisfied by *rate.Limiter.
type RefreshRateLimiter interface {
	CheckRefresh(ctx context.Context, principal string) error
}

// Identity is the flow-local shape of a verified identity.
type Identity struct {
	Principal string
	Role      string
	Scopes    []string
}

// TokenPair is the flow-local issued pair.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	SessionID        string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Deps groups flow dependency sets. Root engine builds this once and delegates
// request methods to the matching flow implementation.
type Deps struct {
	Login     LoginDeps
	Refresh   RefreshDeps
	Logout    LogoutDeps
	Authorize AuthorizeDeps
}

func issuePair(codec TokenCodec, rec *session.Record, accessTTL, refreshTTL time.Duration) (*TokenPair, error) {
	sub := jwt.Subject{
		Principal: rec.Principal,
		SessionID: rec.SessionID,
		Role:      rec.Role,
		Scopes:    rec.Scopes,
	}

	access, accessClaims, err := codec.Issue(jwt.KindAccess, sub, accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, refreshClaims, err := codec.Issue(jwt.KindRefresh, sub, refreshTTL)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		SessionID:        rec.SessionID,
		AccessExpiresAt:  accessClaims.ExpiresAt.Time,
		RefreshExpiresAt: refreshClaims.ExpiresAt.Time,
	}, nil
}
