package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/MrEthical07/jwtauth"
)

// Authorizer validates an access token. *jwtauth.Engine implements it.
type Authorizer interface {
	Authorize(ctx context.Context, token string) (*jwtauth.AuthResult, error)
}

type authResultContextKey struct{}

// AuthResultFromContext returns the result stored by [Guard].
func AuthResultFromContext(ctx context.Context) (*jwtauth.AuthResult, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(*jwtauth.AuthResult)
	return res, ok
}

// ContextWithAuthResult stores res the same way [Guard] does.
func ContextWithAuthResult(ctx context.Context, res *jwtauth.AuthResult) context.Context {
	return context.WithValue(ctx, authResultContextKey{}, res)
}

// Guard rejects requests without a valid bearer access token and stores
// the [jwtauth.AuthResult] in the request context otherwise.
func Guard(authz Authorizer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if authz == nil {
				unauthorized(w)
				return
			}

			token, ok := BearerToken(r.Header.Get("Authorization"))
			if !ok {
				unauthorized(w)
				return
			}

			res, err := authz.Authorize(r.Context(), token)
			if err != nil {
				unauthorized(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithAuthResult(r.Context(), res)))
		})
	}
}

// BearerToken extracts the token from an Authorization header value. The
// scheme is matched case-insensitively.
func BearerToken(value string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(value), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	http.Error(w, jwtauth.ErrTokenInvalid.Error(), http.StatusUnauthorized)
}
