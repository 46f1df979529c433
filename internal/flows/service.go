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
	return s.deps.Validate.DecodeAccess != nil && s.deps.Refresh.Sessions != nil
}

func (s Service) Login(ctx context.Context, username, password string) LoginResult {
	return RunLogin(ctx, username, password, s.deps.Login)
}

func (s Service) Refresh(ctx context.Context, handle string) RefreshResult {
	return RunRefresh(ctx, handle, s.deps.Refresh)
}

func (s Service) Validate(token string) ValidateResult {
	return RunValidate(token, s.deps.Validate)
}

func (s Service) Logout(ctx context.Context, handle string) LogoutResult {
	return RunLogout(ctx, handle, s.deps.Logout)
}

func (s Service) LogoutAll(ctx context.Context, userID string) LogoutResult {
	return RunLogoutAll(ctx, userID, s.deps.Logout)
}
