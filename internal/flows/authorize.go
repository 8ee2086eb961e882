package flows

import "github.com/MrEthical07/jwtauth/jwt"

// AuthorizeDeps captures authorize flow dependencies. Authorize never reads
// the session store.
type AuthorizeDeps struct {
	Codec TokenCodec
}

type AuthorizeResult struct {
	Claims *jwt.Claims
	Err    error
}

// RunAuthorize verifies an access token without touching the store.
func RunAuthorize(accessToken string, deps AuthorizeDeps) AuthorizeResult {
	claims, err := deps.Codec.Parse(accessToken, jwt.KindAccess)
	if err != nil {
		return AuthorizeResult{Err: err}
	}
	return AuthorizeResult{Claims: claims}
}
