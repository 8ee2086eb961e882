package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/jwtauth/internal/rate"
	"github.com/MrEthical07/jwtauth/session"
)

// LoginFailureKind classifies login flow failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureInvalidCredentials
	LoginFailureRateLimited
	LoginFailureIdentityUnavailable
	LoginFailureStoreUnavailable
	LoginFailureSession
	LoginFailureIssue
)

// LoginResult carries either the issued pair or failure metadata.
type LoginResult struct {
	Failure   LoginFailureKind
	Err       error
	Principal string
	Pair      *TokenPair
}

// LoginDeps captures login flow dependencies.
type LoginDeps struct {
	Codec    TokenCodec
	Sessions SessionStore
	Limiter  LoginRateLimiter

	// VerifyIdentity reports bad credentials with an error matching
	// InvalidCredentials. Any other error is an identity store failure.
	VerifyIdentity     func(ctx context.Context, principal, password string) (Identity, error)
	InvalidCredentials error

	ClientIP   func(context.Context) string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Warn       func(string, ...any)
}

// RunLogin verifies credentials, creates a session and issues a token pair.
func RunLogin(ctx context.Context, principal, password string, deps LoginDeps) LoginResult {
	if deps.Warn == nil {
		deps.Warn = func(string, ...any) {}
	}
	ip := ""
	if deps.ClientIP != nil {
		ip = deps.ClientIP(ctx)
	}

	if principal == "" || password == "" {
		return LoginResult{Failure: LoginFailureInvalidCredentials, Err: deps.InvalidCredentials, Principal: principal}
	}

	if deps.Limiter != nil {
		if err := deps.Limiter.CheckLogin(ctx, principal, ip); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				return LoginResult{Failure: LoginFailureRateLimited, Err: err, Principal: principal}
			}
			return LoginResult{Failure: LoginFailureStoreUnavailable, Err: err, Principal: principal}
		}
	}

	ident, err := deps.VerifyIdentity(ctx, principal, password)
	if err != nil {
		if errors.Is(err, deps.InvalidCredentials) {
			if deps.Limiter != nil {
				if incErr := deps.Limiter.IncrementLogin(ctx, principal, ip); incErr != nil {
					deps.Warn("login attempt counter update failed", "error", incErr)
				}
			}
			return LoginResult{Failure: LoginFailureInvalidCredentials, Err: err, Principal: principal}
		}
		return LoginResult{Failure: LoginFailureIdentityUnavailable, Err: err, Principal: principal}
	}
	if ident.Principal == "" {
		ident.Principal = principal
	}

	// The attempt counter is keyed on the principal as typed, which the
	// identity store may have normalised.
	if deps.Limiter != nil {
		if err := deps.Limiter.ResetLogin(ctx, principal); err != nil {
			deps.Warn("login attempt counter reset failed", "error", err)
		}
	}

	rec, err := deps.Sessions.Create(ctx, session.Subject{
		Principal: ident.Principal,
		Role:      ident.Role,
		Scopes:    ident.Scopes,
	}, deps.RefreshTTL)
	if err != nil {
		if errors.Is(err, session.ErrStoreUnavailable) {
			return LoginResult{Failure: LoginFailureStoreUnavailable, Err: err, Principal: ident.Principal}
		}
		return LoginResult{Failure: LoginFailureSession, Err: err, Principal: ident.Principal}
	}

	pair, err := issuePair(deps.Codec, rec, deps.AccessTTL, rec.ExpiresAt.Sub(rec.CreatedAt))
	if err != nil {
		if revokeErr := deps.Sessions.Revoke(ctx, rec.Principal, rec.SessionID); revokeErr != nil {
			deps.Warn("orphan session revoke failed", "session_id", rec.SessionID, "error", revokeErr)
		}
		return LoginResult{Failure: LoginFailureIssue, Err: err, Principal: ident.Principal}
	}

	return LoginResult{Failure: LoginFailureNone, Principal: ident.Principal, Pair: pair}
}
