package jwt

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMalformed reports a token that cannot be decoded or whose claims are
	// unacceptable (wrong kind, issuer, audience, missing subject).
	ErrMalformed = errors.New("malformed token")
	// ErrInvalidSignature reports a signature that does not verify, an
	// unexpected algorithm, or an unknown key id.
	ErrInvalidSignature = errors.New("invalid token signature")
	// ErrExpired reports a correctly signed token whose exp has passed.
	ErrExpired = errors.New("token expired")
	// ErrSigningKeyMissing is returned by Issue on a verify-only codec.
	ErrSigningKeyMissing = errors.New("signing key not configured")
)

var claimFailures = []error{
	jwt.ErrTokenInvalidIssuer,
	jwt.ErrTokenInvalidAudience,
	jwt.ErrTokenNotValidYet,
	jwt.ErrTokenUsedBeforeIssued,
	jwt.ErrTokenRequiredClaimMissing,
	jwt.ErrTokenInvalidSubject,
	jwt.ErrTokenInvalidId,
}

// classify maps a golang-jwt parse error onto the package taxonomy.
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrInvalidSignature
	case onlyExpired(err):
		return ErrExpired
	default:
		return ErrMalformed
	}
}

// onlyExpired is true when expiry is the sole validation failure. The
// validator joins every failing claim into one error, so each has to be ruled
// out.
func onlyExpired(err error) bool {
	if !errors.Is(err, jwt.ErrTokenExpired) {
		return false
	}
	for _, failure := range claimFailures {
		if errors.Is(err, failure) {
			return false
		}
	}
	return true
}
