package flows

import (
	"context"

	"github.com/MrEthical07/authcore/jwt"
)

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	s := Service{deps: deps}
	if s.deps.Refresh.Validate == nil {
		s.deps.Refresh.Validate = s.ValidateRefresh
	}
	if s.deps.Logout.ValidateAccess == nil {
		s.deps.Logout.ValidateAccess = s.ValidateAccess
	}
	if s.deps.Logout.ValidateRefresh == nil {
		s.deps.Logout.ValidateRefresh = s.ValidateRefresh
	}
	return s
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Validate.Decode != nil && s.deps.Validate.Now != nil
}

func (s Service) Login(ctx context.Context, identifier, secret string) LoginResult {
	return RunLogin(ctx, identifier, secret, s.deps.Login)
}

func (s Service) Register(ctx context.Context, req RegisterRequest) RegisterResult {
	return RunRegister(ctx, req, s.deps.Register)
}

func (s Service) ValidateAccess(ctx context.Context, token string) ValidateResult {
	return RunValidate(ctx, token, jwt.KindAccess, s.deps.Validate)
}

func (s Service) ValidateRefresh(ctx context.Context, token string) ValidateResult {
	return RunValidate(ctx, token, jwt.KindRefresh, s.deps.Validate)
}

func (s Service) Refresh(ctx context.Context, refreshToken string) RefreshResult {
	return RunRefresh(ctx, refreshToken, s.deps.Refresh)
}

func (s Service) Logout(ctx context.Context, accessToken, refreshToken string) LogoutResult {
	return RunLogout(ctx, accessToken, refreshToken, s.deps.Logout)
}
