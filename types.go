package jwtauth

import (
	"context"
	"time"
)

// Principal identifies an authenticated subject.
type Principal string

// Credentials is the input to [Engine.Login].
type Credentials struct {
	Principal string
	Password  string
}

// Identity is what an [IdentityStore] returns for valid credentials. Role
// and Scopes are copied into access tokens and carried across refreshes.
type Identity struct {
	Principal string
	Role      string
	Scopes    []string
}

// IdentityStore verifies credentials. Implementations return an error
// matching [ErrInvalidCredentials] for an unknown principal or a wrong
// password; any other error is treated as the store being unavailable.
type IdentityStore interface {
	Verify(ctx context.Context, creds Credentials) (Identity, error)
}

// IdentityStoreFunc adapts a function to [IdentityStore].
type IdentityStoreFunc func(ctx context.Context, creds Credentials) (Identity, error)

func (f IdentityStoreFunc) Verify(ctx context.Context, creds Credentials) (Identity, error) {
	return f(ctx, creds)
}

// TokenPair is returned by [Engine.Login] and [Engine.Refresh].
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	TokenType        string
	SessionID        string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// AuthResult is returned by [Engine.Authorize].
type AuthResult struct {
	Principal Principal
	Role      string
	Scopes    []string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// HasScope reports whether the access token carried scope.
func (r *AuthResult) HasScope(scope string) bool {
	if r == nil {
		return false
	}
	for _, s := range r.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}
