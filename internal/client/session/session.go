// Package session owns the access/refresh token lifecycle: it decorates
// outgoing requests, renews the access token with a single shared refresh
// call, and tears the session down when renewal is impossible.
package session

import (
	"context"
	"net/http"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/dmitrijs2005/parcelsync/internal/client/api"
	"github.com/dmitrijs2005/parcelsync/internal/client/models"
	"github.com/dmitrijs2005/parcelsync/internal/client/store"
	"github.com/dmitrijs2005/parcelsync/internal/common"
	"github.com/dmitrijs2005/parcelsync/internal/logging"
)

// TokenRefresher exchanges a refresh token for a new pair.
type TokenRefresher interface {
	RefreshTokens(ctx context.Context, refreshToken string) (models.Tokens, error)
}

// Observer is notified when the session ends without the user asking.
type Observer interface {
	Unauthorized()
}

type ObserverFunc func()

func (f ObserverFunc) Unauthorized() { f() }

type Session struct {
	plain     store.Store
	secure    store.Store
	refresher TokenRefresher
	observer  Observer
	log       logging.Logger

	group singleflight.Group

	mu          sync.Mutex
	accessToken string
	// gen changes whenever the session is cleared.
	gen uint64
	// notified is set once the current failure episode has been reported.
	notified bool
}

var _ api.Authenticator = (*Session)(nil)

func New(plain, secure store.Store, refresher TokenRefresher, observer Observer, log logging.Logger) *Session {
	if log == nil {
		log = logging.Nop()
	}
	return &Session{
		plain:     plain,
		secure:    secure,
		refresher: refresher,
		observer:  observer,
		log:       log.With("module", "session"),
	}
}

// SetTokens stores a freshly issued pair and starts a new episode.
func (s *Session) SetTokens(ctx context.Context, tokens models.Tokens) error {
	if err := s.persist(ctx, tokens); err != nil {
		return err
	}
	s.mu.Lock()
	s.notified = false
	s.mu.Unlock()
	return nil
}

func (s *Session) persist(ctx context.Context, tokens models.Tokens) error {
	if err := s.plain.Set(ctx, store.KeyAccessToken, tokens.AccessToken); err != nil {
		return err
	}
	if err := s.secure.Set(ctx, store.KeyRefreshToken, tokens.RefreshToken); err != nil {
		return err
	}
	s.mu.Lock()
	s.accessToken = tokens.AccessToken
	s.mu.Unlock()
	return nil
}

// AccessToken returns the cached token, falling back to the plain store.
func (s *Session) AccessToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	token, gen := s.accessToken, s.gen
	s.mu.Unlock()
	if token != "" {
		return token, nil
	}

	token, ok, err := s.plain.Get(ctx, store.KeyAccessToken)
	if err != nil || !ok {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		// cleared while reading; the stored token is gone
		return "", nil
	}
	if s.accessToken == "" {
		s.accessToken = token
	}
	return s.accessToken, nil
}

// Decorate attaches the bearer token. Without a token the request goes out
// as is.
func (s *Session) Decorate(ctx context.Context, req *http.Request) error {
	token, err := s.AccessToken(ctx)
	if err != nil {
		return err
	}
	if token != "" {
		req.Header.Set(common.AuthorizationHeader, common.BearerPrefix+token)
	}
	return nil
}

// Refresh renews the access token. All callers that arrive while a refresh
// is outstanding share its outcome; only one refresh call is made.
func (s *Session) Refresh(ctx context.Context) (string, error) {
	// One caller's cancellation must not turn into a session failure for
	// every waiter.
	ctx = context.WithoutCancel(ctx)

	v, err, shared := s.group.Do("refresh", func() (any, error) {
		return s.refresh(ctx)
	})
	if shared {
		s.log.Debug(ctx, "joined in-flight token refresh")
	}
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (s *Session) refresh(ctx context.Context) (string, error) {
	refreshToken, ok, err := s.secure.Get(ctx, store.KeyRefreshToken)
	if err != nil {
		s.log.Warn(ctx, "reading refresh token failed", "error", err)
	}
	if err != nil || !ok || refreshToken == "" {
		s.Expire(ctx)
		return "", api.ErrSessionExpired
	}

	tokens, err := s.refresher.RefreshTokens(ctx, refreshToken)
	if err != nil {
		s.log.Warn(ctx, "token refresh failed", "error", err)
		s.Expire(ctx)
		return "", api.ErrSessionExpired
	}

	if err := s.persist(ctx, tokens); err != nil {
		s.log.Error(ctx, "persisting refreshed tokens failed", "error", err)
		s.Expire(ctx)
		return "", api.ErrSessionExpired
	}

	s.log.Debug(ctx, "access token refreshed")
	return tokens.AccessToken, nil
}

// Expire ends the session after an unrecoverable authorization failure.
// The observer hears about it once per episode, however many requests
// were waiting on the refresh.
func (s *Session) Expire(ctx context.Context) {
	s.clear(ctx)

	s.mu.Lock()
	first := !s.notified
	s.notified = true
	s.mu.Unlock()

	if first {
		s.log.Info(ctx, "session expired")
		if s.observer != nil {
			s.observer.Unauthorized()
		}
	}
}

// Invalidate clears every token. It is idempotent and emits no event.
func (s *Session) Invalidate(ctx context.Context) error {
	return s.clear(ctx)
}

func (s *Session) clear(ctx context.Context) error {
	s.mu.Lock()
	s.accessToken = ""
	s.gen++
	s.mu.Unlock()

	var firstErr error
	if err := s.plain.Delete(ctx, store.KeyAccessToken); err != nil {
		s.log.Warn(ctx, "deleting access token failed", "error", err)
		firstErr = err
	}
	if err := s.secure.Delete(ctx, store.KeyRefreshToken); err != nil {
		s.log.Warn(ctx, "deleting refresh token failed", "error", err)
		if firstErr == nil {
			firstErr = err
		}
	}

	// drop anything a concurrent read cached before the deletes landed
	s.mu.Lock()
	s.accessToken = ""
	s.gen++
	s.mu.Unlock()
	return firstErr
}
