package flows

import (
	"context"

	"github.com/MrEthical07/jwtauth/jwt"
)

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	Codec    TokenCodec
	Sessions SessionStore
}

type LogoutResult struct {
	Principal string
	SessionID string
	// TokenErr is set when the token itself was rejected; Err when the
	// store failed.
	TokenErr error
	Err      error
}

// RunLogout ends the session chain refreshToken belongs to, including when
// the token was already rotated away. An expired token is accepted as long
// as its signature verifies.
func RunLogout(ctx context.Context, refreshToken string, deps LogoutDeps) LogoutResult {
	claims, err := deps.Codec.ParseAllowExpired(refreshToken, jwt.KindRefresh)
	if err != nil {
		return LogoutResult{TokenErr: err}
	}
	return LogoutResult{
		Principal: claims.Subject,
		SessionID: claims.SessionID,
		Err:       deps.Sessions.Revoke(ctx, claims.Subject, claims.SessionID),
	}
}

func RunLogoutAll(ctx context.Context, principal string, deps LogoutDeps) (int, error) {
	return deps.Sessions.RevokeAllForPrincipal(ctx, principal)
}
