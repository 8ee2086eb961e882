package jwtauth

import (
	"errors"

	"github.com/MrEthical07/jwtauth/jwt"
	"github.com/MrEthical07/jwtauth/session"
)

var (
	// ErrTokenInvalid is the only token failure callers are meant to show
	// to clients. Every token or session rejection matches it.
	ErrTokenInvalid = errors.New("invalid token")

	// ErrInvalidCredentials is returned by Login for unknown principals and
	// wrong passwords alike. IdentityStore implementations return it too.
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrMalformed        = jwt.ErrMalformed
	ErrInvalidSignature = jwt.ErrInvalidSignature
	ErrExpired          = jwt.ErrExpired
	ErrSessionRevoked   = session.ErrSessionRevoked

	// ErrStoreUnavailable reports a session store failure or timeout. It is
	// retryable.
	ErrStoreUnavailable = session.ErrStoreUnavailable

	// ErrIdentityUnavailable reports an IdentityStore failure other than bad
	// credentials. It is retryable.
	ErrIdentityUnavailable = errors.New("identity store unavailable")

	ErrLoginRateLimited   = errors.New("login rate limited")
	ErrRefreshRateLimited = errors.New("refresh rate limited")
	ErrEngineNotReady     = errors.New("engine not initialized")
	ErrTokenIssue         = errors.New("token issuance failed")
	ErrInternal           = errors.New("internal error")
)

// Reason names the internal cause of a token rejection. It appears in logs,
// audit events and metrics, never in error messages.
type Reason string

const (
	ReasonMalformed         Reason = "malformed"
	ReasonInvalidSignature  Reason = "invalid_signature"
	ReasonExpired           Reason = "expired"
	ReasonSessionRevoked    Reason = "session_revoked"
	ReasonRefreshReuse      Reason = "refresh_reuse"
	ReasonSessionExpired    Reason = "session_expired"
	ReasonPrincipalMismatch Reason = "principal_mismatch"
)

// TokenError is returned for every rejected access or refresh token. Its
// message is always "invalid token"; use errors.Is with ErrMalformed,
// ErrInvalidSignature, ErrExpired or ErrSessionRevoked to tell kinds apart.
type TokenError struct {
	Reason Reason
	kind   error
	cause  error
}

func (e *TokenError) Error() string { return ErrTokenInvalid.Error() }

func (e *TokenError) Is(target error) bool {
	return target == ErrTokenInvalid || target == e.kind
}

func (e *TokenError) Unwrap() error { return e.cause }

func newTokenError(reason Reason, kind, cause error) *TokenError {
	return &TokenError{Reason: reason, kind: kind, cause: cause}
}

// tokenErrorFromCodec maps a jwt.Codec failure onto a TokenError.
func tokenErrorFromCodec(err error) *TokenError {
	switch {
	case errors.Is(err, jwt.ErrExpired):
		return newTokenError(ReasonExpired, ErrExpired, err)
	case errors.Is(err, jwt.ErrInvalidSignature):
		return newTokenError(ReasonInvalidSignature, ErrInvalidSignature, err)
	default:
		return newTokenError(ReasonMalformed, ErrMalformed, err)
	}
}

// Public maps err onto the small set of errors safe to expose at a trust
// boundary. Token rejections of every kind collapse to ErrTokenInvalid.
func Public(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrTokenInvalid):
		return ErrTokenInvalid
	case errors.Is(err, ErrInvalidCredentials):
		return ErrInvalidCredentials
	case errors.Is(err, ErrLoginRateLimited):
		return ErrLoginRateLimited
	case errors.Is(err, ErrRefreshRateLimited):
		return ErrRefreshRateLimited
	case errors.Is(err, ErrStoreUnavailable):
		return ErrStoreUnavailable
	case errors.Is(err, ErrIdentityUnavailable):
		return ErrIdentityUnavailable
	default:
		return ErrInternal
	}
}

// IsRetryable reports whether the operation may succeed if repeated
// unchanged.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) || errors.Is(err, ErrIdentityUnavailable)
}

// ReasonOf returns the internal rejection reason carried by err, or "".
func ReasonOf(err error) Reason {
	var te *TokenError
	if errors.As(err, &te) {
		return te.Reason
	}
	return ""
}
