// Package ports declares the outbound interfaces the services depend on.
package ports

import (
	"context"
	"errors"
	"time"

	"hisab/internal/core"
)

// Column names of the hosted transactions table.
const (
	ColID          = "id"
	ColCreatedAt   = "created_at"
	ColType        = "type"
	ColAmount      = "amount"
	ColDescription = "description"
	ColCategory    = "category"
	ColUserID      = "user_id"
	ColUserEmail   = "user_email"
)

// ErrSessionNotFound is returned by SessionStore.GetSession for unknown or
// expired ids.
var ErrSessionNotFound = errors.New("session not found")

type (
	// Row is a write payload keyed by column name.
	Row map[string]any

	// Match is a set of column equality filters.
	Match map[string]string

	// TransactionTable is the shared ledger table. Calls are authorized with the
	// access token carried by ctx (see WithAccessToken).
	TransactionTable interface {
		// List returns every visible row, newest first.
		List(ctx context.Context) ([]core.Transaction, error)
		// Insert stores one row and returns it as stored.
		Insert(ctx context.Context, row Row) (*core.Transaction, error)
		// Update patches the rows matching m.
		Update(ctx context.Context, patch Row, m Match) error
		// Delete removes the rows matching m.
		Delete(ctx context.Context, m Match) error
	}

	// Session is an authenticated identity as handed out by the provider.
	Session struct {
		AccessToken  string
		RefreshToken string
		ExpiresAt    time.Time
		Viewer       core.Viewer
	}

	// Identity is the hosted authentication service.
	Identity interface {
		SignIn(ctx context.Context, email, password string) (*Session, error)
		SignUp(ctx context.Context, email, password, fullName string) error
		Refresh(ctx context.Context, refreshToken string) (*Session, error)
		CurrentUser(ctx context.Context, accessToken string) (core.Viewer, error)
		SignOut(ctx context.Context, accessToken string) error
	}

	// StoredSession is a server-side session record keyed by the cookie value.
	StoredSession struct {
		ID           string
		AccessToken  string
		RefreshToken string
		TokenExpiry  time.Time
		Viewer       core.Viewer
		CreatedAt    time.Time
		ExpiresAt    time.Time
	}

	// SessionStore persists server-side sessions.
	SessionStore interface {
		SaveSession(ctx context.Context, s StoredSession) error
		GetSession(ctx context.Context, id string) (*StoredSession, error)
		DeleteSession(ctx context.Context, id string) error
	}

	// EventPublisher announces completed ledger mutations.
	EventPublisher interface {
		PublishLedgerEvent(ctx context.Context, e core.LedgerEvent) error
	}
)

// RejectedError is an auth failure meaning the provider refused a token or
// credentials, as opposed to being unreachable.
type RejectedError string

func (e RejectedError) Error() string { return string(e) }

func (RejectedError) AuthRejected() bool { return true }

// IsAuthRejected reports whether err, or any error it wraps, says the
// provider refused the token. Transport failures and 5xx answers are not
// rejections.
func IsAuthRejected(err error) bool {
	var r interface{ AuthRejected() bool }
	return errors.As(err, &r) && r.AuthRejected()
}

type accessTokenKey struct{}

// WithAccessToken returns a context whose backend calls act as the token's user.
func WithAccessToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, accessTokenKey{}, token)
}

// AccessToken returns the token stored by WithAccessToken, if any.
func AccessToken(ctx context.Context) string {
	token, _ := ctx.Value(accessTokenKey{}).(string)
	return token
}
