package flows

import "context"

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Authorize.Codec != nil && s.deps.Refresh.Sessions != nil
}

func (s Service) Login(ctx context.Context, principal, password string) LoginResult {
	return RunLogin(ctx, principal, password, s.deps.Login)
}

func (s Service) Refresh(ctx context.Context, refreshToken string) RefreshResult {
	return RunRefresh(ctx, refreshToken, s.deps.Refresh)
}

func (s Service) Logout(ctx context.Context, refreshToken string) LogoutResult {
	return RunLogout(ctx, refreshToken, s.deps.Logout)
}

func (s Service) LogoutAll(ctx context.Context, principal string) (int, error) {
	return RunLogoutAll(ctx, principal, s.deps.Logout)
}

func (s Service) Authorize(accessToken string) AuthorizeResult {
	return RunAuthorize(accessToken, s.deps.Authorize)
}
