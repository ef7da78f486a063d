package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"hisab/internal/cache"
	"hisab/internal/core"
	"hisab/internal/ports"
)

// Access tokens this close to expiry are refreshed before use.
const expirySkew = 30 * time.Second

// AuthService signs users in against the identity provider and keeps their
// tokens in server-side sessions addressed by an opaque id.
type AuthService struct {
	identity ports.Identity
	sessions ports.SessionStore
	viewers  cache.Cache[core.Viewer]
	ttl      time.Duration
	now      func() time.Time
}

// NewAuthService wires the identity provider to the session store. viewers
// caches access-token lookups and may be nil.
func NewAuthService(identity ports.Identity, sessions ports.SessionStore, viewers cache.Cache[core.Viewer], ttl time.Duration) *AuthService {
	return &AuthService{
		identity: identity,
		sessions: sessions,
		viewers:  viewers,
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *AuthService) Configured() bool {
	return s != nil && s.identity != nil
}

// SignIn checks the credentials and opens a session. Provider errors are
// returned unchanged so their text can be shown to the user.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (*ports.StoredSession, error) {
	if !s.Configured() {
		return nil, ErrNotConfigured
	}
	granted, err := s.identity.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	sess := ports.StoredSession{
		ID:           uuid.NewString(),
		AccessToken:  granted.AccessToken,
		RefreshToken: granted.RefreshToken,
		TokenExpiry:  granted.ExpiresAt,
		Viewer:       granted.Viewer,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.ttl),
	}
	if err := s.sessions.SaveSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	s.remember(sess.AccessToken, sess.Viewer)

	slog.InfoContext(ctx, "User signed in", "user_id", sess.Viewer.ID)
	return &sess, nil
}

// SignUp registers a user with a display name. No session is opened; the
// user confirms by email and then signs in.
func (s *AuthService) SignUp(ctx context.Context, email, password, fullName string) error {
	if !s.Configured() {
		return ErrNotConfigured
	}
	return s.identity.SignUp(ctx, email, password, fullName)
}

// Resolve returns the live session for id with a current viewer. An expired
// or rejected access token is refreshed once; if the provider rejects the
// refresh too the session is dropped and ErrNoSession returned. When the
// provider cannot be reached the session is kept and ErrAuthUnavailable
// returned.
func (s *AuthService) Resolve(ctx context.Context, id string) (*ports.StoredSession, error) {
	if !s.Configured() {
		return nil, ErrNotConfigured
	}
	if id == "" {
		return nil, ErrNoSession
	}
	sess, err := s.sessions.GetSession(ctx, id)
	if errors.Is(err, ports.ErrSessionNotFound) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, err
	}

	if !sess.TokenExpiry.IsZero() && !s.now().Add(expirySkew).Before(sess.TokenExpiry) {
		return s.refresh(ctx, sess)
	}

	viewer, err := s.lookup(ctx, sess.AccessToken)
	if err != nil {
		if !ports.IsAuthRejected(err) {
			slog.WarnContext(ctx, "Identity provider unreachable, keeping session", "error", err)
			return nil, fmt.Errorf("%w: %w", ErrAuthUnavailable, err)
		}
		slog.DebugContext(ctx, "Access token rejected, refreshing", "error", err)
		return s.refresh(ctx, sess)
	}
	sess.Viewer = viewer
	return sess, nil
}

// SignOut revokes the provider session and forgets the local one. Provider
// failures are logged; the local session is removed regardless.
func (s *AuthService) SignOut(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	sess, err := s.sessions.GetSession(ctx, id)
	if err != nil && !errors.Is(err, ports.ErrSessionNotFound) {
		return err
	}
	if sess != nil {
		if s.Configured() {
			if err := s.identity.SignOut(ctx, sess.AccessToken); err != nil {
				slog.WarnContext(ctx, "Provider sign out failed", "error", err)
			}
		}
		s.forget(sess.AccessToken)
	}
	return s.sessions.DeleteSession(ctx, id)
}

func (s *AuthService) refresh(ctx context.Context, sess *ports.StoredSession) (*ports.StoredSession, error) {
	if sess.RefreshToken == "" {
		s.drop(ctx, sess)
		return nil, ErrNoSession
	}
	granted, err := s.identity.Refresh(ctx, sess.RefreshToken)
	if err != nil {
		if !ports.IsAuthRejected(err) {
			slog.WarnContext(ctx, "Session refresh failed, keeping session", "error", err)
			return nil, fmt.Errorf("%w: %w", ErrAuthUnavailable, err)
		}
		slog.InfoContext(ctx, "Session refresh rejected, signing out", "error", err)
		s.drop(ctx, sess)
		return nil, ErrNoSession
	}

	s.forget(sess.AccessToken)
	sess.AccessToken = granted.AccessToken
	sess.RefreshToken = granted.RefreshToken
	sess.TokenExpiry = granted.ExpiresAt
	sess.Viewer = granted.Viewer
	if err := s.sessions.SaveSession(ctx, *sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	s.remember(sess.AccessToken, sess.Viewer)
	return sess, nil
}

func (s *AuthService) drop(ctx context.Context, sess *ports.StoredSession) {
	s.forget(sess.AccessToken)
	if err := s.sessions.DeleteSession(ctx, sess.ID); err != nil {
		slog.ErrorContext(ctx, "Failed to delete session", "error", err)
	}
}

func (s *AuthService) lookup(ctx context.Context, token string) (core.Viewer, error) {
	if s.viewers != nil {
		if v, ok := s.viewers.Get(token); ok {
			return v, nil
		}
	}
	v, err := s.identity.CurrentUser(ctx, token)
	if err != nil {
		return core.Viewer{}, err
	}
	s.remember(token, v)
	return v, nil
}

func (s *AuthService) remember(token string, v core.Viewer) {
	if s.viewers != nil && token != "" {
		s.viewers.Set(token, v)
	}
}

func (s *AuthService) forget(token string) {
	if s.viewers != nil {
		s.viewers.Delete(token)
	}
}
