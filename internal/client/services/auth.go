package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/parcelsync/internal/client/models"
)

type LoginAPI interface {
	Login(ctx context.Context, email, password string) (models.Tokens, error)
	Ping(ctx context.Context) error
}

// TokenSession is the session side of login and logout.
type TokenSession interface {
	SetTokens(ctx context.Context, tokens models.Tokens) error
	AccessToken(ctx context.Context) (string, error)
	Invalidate(ctx context.Context) error
}

// Drainer is notified when a new session may unblock the queue.
type Drainer interface {
	Trigger()
}

// AuthService covers login, logout and the liveness probe.
//
//   - Login: authenticate, store the token pair, wake the queue.
//   - Logout: drop all tokens. Queued items stay queued.
//   - LoggedIn: whether an access token is available.
type AuthService interface {
	Login(ctx context.Context, email, password string) error
	Logout(ctx context.Context) error
	LoggedIn(ctx context.Context) (bool, error)
	Ping(ctx context.Context) error
}

type authService struct {
	api     LoginAPI
	session TokenSession
	queue   Drainer
}

func NewAuthService(a LoginAPI, s TokenSession, q Drainer) AuthService {
	return &authService{api: a, session: s, queue: q}
}

func (a *authService) Login(ctx context.Context, email, password string) error {
	tokens, err := a.api.Login(ctx, email, password)
	if err != nil {
		return err
	}
	if err := a.session.SetTokens(ctx, tokens); err != nil {
		return fmt.Errorf("store tokens: %w", err)
	}
	if a.queue != nil {
		a.queue.Trigger()
	}
	return nil
}

func (a *authService) Logout(ctx context.Context) error {
	return a.session.Invalidate(ctx)
}

func (a *authService) LoggedIn(ctx context.Context) (bool, error) {
	token, err := a.session.AccessToken(ctx)
	if err != nil {
		return false, err
	}
	return token != "", nil
}

func (a *authService) Ping(ctx context.Context) error {
	return a.api.Ping(ctx)
}
