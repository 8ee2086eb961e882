package jwtauth

import (
	"context"

	"github.com/MrEthical07/jwtauth/internal/flows"
)

// initFlowDeps wires the flow runners once at build time.
func (e *Engine) initFlowDeps() {
	warn := func(msg string, kv ...any) {
		e.logger.Sugar().Warnw(msg, kv...)
	}

	e.flows = flows.New(flows.Deps{
		Login: flows.LoginDeps{
			Codec:              e.codec,
			Sessions:           e.sessionStore,
			Limiter:            e.rateLimiter,
			VerifyIdentity:     e.verifyIdentity,
			InvalidCredentials: ErrInvalidCredentials,
			ClientIP:           clientIPFromContext,
			AccessTTL:          e.config.JWT.AccessTTL,
			RefreshTTL:         e.config.JWT.RefreshTTL,
			Warn:               warn,
		},
		Refresh: flows.RefreshDeps{
			Codec:                e.codec,
			Sessions:             e.sessionStore,
			Limiter:              e.rateLimiter,
			AccessTTL:            e.config.JWT.AccessTTL,
			EnableReplayTracking: e.config.Security.EnforceRefreshReuseDetection,
			RevokeChainOnReuse:   e.config.Security.RevokeChainOnReuse,
			Now:                  e.now,
			Warn:                 warn,
		},
		Logout: flows.LogoutDeps{
			Codec:    e.codec,
			Sessions: e.sessionStore,
		},
		Authorize: flows.AuthorizeDeps{
			Codec: e.codec,
		},
	})
}

func (e *Engine) verifyIdentity(ctx context.Context, principal, password string) (flows.Identity, error) {
	ident, err := e.identities.Verify(ctx, Credentials{Principal: principal, Password: password})
	if err != nil {
		return flows.Identity{}, err
	}
	return flows.Identity{
		Principal: ident.Principal,
		Role:      ident.Role,
		Scopes:    ident.Scopes,
	}, nil
}

func toTokenPair(p *flows.TokenPair) *TokenPair {
	return &TokenPair{
		AccessToken:      p.AccessToken,
		RefreshToken:     p.RefreshToken,
		TokenType:        "Bearer",
		SessionID:        p.SessionID,
		AccessExpiresAt:  p.AccessExpiresAt,
		RefreshExpiresAt: p.RefreshExpiresAt,
	}
}
