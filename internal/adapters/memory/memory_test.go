package memory

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"hisab/internal/core"
	"hisab/internal/ports"
)

func signedIn(t *testing.T, s *Store, email string) (context.Context, *ports.Session) {
	t.Helper()
	ctx := context.Background()
	if err := s.SignUp(ctx, email, "pw", ""); err != nil {
		t.Fatalf("sign up: %v", err)
	}
	sess, err := s.SignIn(ctx, email, "pw")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	return ports.WithAccessToken(ctx, sess.AccessToken), sess
}

func TestTableRequiresToken(t *testing.T) {
	s := New()
	if _, err := s.List(context.Background()); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestInsertListUpdateDelete(t *testing.T) {
	clock := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	s := New(WithClock(func() time.Time { return clock }))
	ctx, sess := signedIn(t, s, "a@x.io")

	first, err := s.Insert(ctx, ports.Row{
		ports.ColType:        string(core.Expense),
		ports.ColAmount:      core.MustAmount("12.50"),
		ports.ColDescription: "Groceries",
		ports.ColUserID:      sess.Viewer.ID,
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	clock = clock.Add(time.Minute)
	if _, err := s.Insert(ctx, ports.Row{ports.ColType: "INCOME", ports.ColAmount: "100", ports.ColDescription: "Salary"}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	rows, _ := s.List(ctx)
	if len(rows) != 2 || rows[0].Description != "Salary" {
		t.Fatalf("expected newest first, got %+v", rows)
	}

	if err := s.Update(ctx, ports.Row{ports.ColDescription: "Food"}, ports.Match{ports.ColID: first.ID, ports.ColUserID: "someone-else"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if s.Rows()[0].Description != "Groceries" {
		t.Fatalf("non-matching update must not change rows")
	}
	if err := s.Update(ctx, ports.Row{ports.ColDescription: "Food"}, ports.Match{ports.ColID: first.ID, ports.ColUserID: sess.Viewer.ID}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if s.Rows()[0].Description != "Food" {
		t.Fatalf("update not applied")
	}

	if err := s.Delete(ctx, ports.Match{ports.ColID: first.ID}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(s.Rows()) != 1 || s.Inserts() != 2 {
		t.Fatalf("rows=%d inserts=%d", len(s.Rows()), s.Inserts())
	}
}

func TestMissingColumnsAreRejected(t *testing.T) {
	s := New(WithMissingColumns(ports.ColUserID))
	ctx, _ := signedIn(t, s, "a@x.io")

	_, err := s.Insert(ctx, ports.Row{ports.ColAmount: "1", ports.ColUserID: "u1"})
	if err == nil || !strings.Contains(err.Error(), "schema cache") || !strings.Contains(err.Error(), "user_id") {
		t.Fatalf("expected schema cache error, got %v", err)
	}
	err = s.Delete(ctx, ports.Match{ports.ColID: "1", ports.ColUserID: "u1"})
	if err == nil || !strings.Contains(err.Error(), "does not exist") {
		t.Fatalf("expected does-not-exist error, got %v", err)
	}
	if s.Inserts() != 0 {
		t.Fatalf("rejected insert must not be stored")
	}
}

func TestRefreshRotatesTokens(t *testing.T) {
	clock := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	s := New(WithClock(func() time.Time { return clock }), WithTokenTTL(time.Minute))
	_, sess := signedIn(t, s, "a@x.io")

	clock = clock.Add(2 * time.Minute)
	if _, err := s.CurrentUser(context.Background(), sess.AccessToken); err == nil {
		t.Fatalf("expired token must be rejected")
	}
	next, err := s.Refresh(context.Background(), sess.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if v, err := s.CurrentUser(context.Background(), next.AccessToken); err != nil || v.Email != "a@x.io" {
		t.Fatalf("viewer=%+v err=%v", v, err)
	}
	if _, err := s.Refresh(context.Background(), sess.RefreshToken); err != ErrInvalidRefresh {
		t.Fatalf("refresh tokens are single use, got %v", err)
	}
}

func TestSignInAndSignOut(t *testing.T) {
	s := New()
	ctx := context.Background()
	if err := s.SignUp(ctx, "A@x.io", "pw", "Dad"); err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if err := s.SignUp(ctx, "a@x.io", "pw", ""); err != ErrUserExists {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
	if _, err := s.SignIn(ctx, "a@x.io", "nope"); err != ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	sess, err := s.SignIn(ctx, "a@x.io", "pw")
	if err != nil || sess.Viewer.FullName != "Dad" {
		t.Fatalf("sess=%+v err=%v", sess, err)
	}
	if err := s.SignOut(ctx, sess.AccessToken); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if _, err := s.CurrentUser(ctx, sess.AccessToken); err == nil {
		t.Fatalf("token must be revoked")
	}
}

func TestNewFromFilesSeedsUsers(t *testing.T) {
	dir := t.TempDir()
	seed := "# team\nmom@x.io:pw:Mom\n\ndad@x.io:pw\n"
	if err := os.WriteFile(filepath.Join(dir, "seed_users.txt"), []byte(seed), 0o600); err != nil {
		t.Fatal(err)
	}
	s := NewFromFiles(dir)
	sess, err := s.SignIn(context.Background(), "mom@x.io", "pw")
	if err != nil || sess.Viewer.DisplayName() != "Mom" {
		t.Fatalf("sess=%+v err=%v", sess, err)
	}
	if _, err := s.SignIn(context.Background(), "dad@x.io", "pw"); err != nil {
		t.Fatalf("dad: %v", err)
	}
}

func TestNewFromFilesSeedsTransactions(t *testing.T) {
	dir := t.TempDir()
	seed := `[
  {"id": "t1", "created_at": "2024-03-01T08:00:00Z", "type": "INCOME", "amount": "1200", "description": "Salary", "user_email": "mom@x.io"},
  {"type": "EXPENSE", "amount": 4.5, "description": "Coffee", "category": "Cash"}
]`
	if err := os.WriteFile(filepath.Join(dir, "transactions.json"), []byte(seed), 0o600); err != nil {
		t.Fatal(err)
	}
	s := NewFromFiles(dir)
	rows := s.Rows()
	if len(rows) != 2 {
		t.Fatalf("seeded %d rows, want 2", len(rows))
	}
	if rows[0].ID != "t1" || rows[0].Kind != core.Income || rows[0].Amount.Format() != "1200.00" {
		t.Fatalf("first row = %+v", rows[0])
	}
	if rows[1].ID == "" || rows[1].CreatedAt.IsZero() || rows[1].Category != "Cash" {
		t.Fatalf("second row should get an id and timestamp: %+v", rows[1])
	}
}

func TestNewFromFilesIgnoresBrokenTransactions(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "transactions.json"), []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if rows := NewFromFiles(dir).Rows(); len(rows) != 0 {
		t.Fatalf("expected no rows, got %+v", rows)
	}
}
