package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"hisab/internal/core"
	"hisab/internal/ports"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "hisab.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSessions(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }

	s := ports.StoredSession{
		ID:           "sess-1",
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenExpiry:  now.Add(time.Hour),
		Viewer:       core.Viewer{ID: "u1", Email: "a@x.io", FullName: "Dad"},
		CreatedAt:    now,
		ExpiresAt:    now.Add(24 * time.Hour),
	}
	if err := repo.SaveSession(ctx, s); err != nil {
		t.Fatalf("SaveSession() error = %v", err)
	}

	got, err := repo.GetSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if got.AccessToken != "access" || got.Viewer != s.Viewer || !got.TokenExpiry.Equal(s.TokenExpiry) {
		t.Fatalf("GetSession() = %+v", got)
	}

	s.AccessToken = "rotated"
	if err := repo.SaveSession(ctx, s); err != nil {
		t.Fatalf("SaveSession() update error = %v", err)
	}
	if got, _ := repo.GetSession(ctx, "sess-1"); got.AccessToken != "rotated" {
		t.Fatalf("expected rotated token, got %q", got.AccessToken)
	}

	now = now.Add(25 * time.Hour)
	if _, err := repo.GetSession(ctx, "sess-1"); !errors.Is(err, ports.ErrSessionNotFound) {
		t.Fatalf("expired session must not be returned, got %v", err)
	}
	if n := repo.CleanExpired(); n != 1 {
		t.Fatalf("CleanExpired() = %d, want 1", n)
	}
}

func TestDeleteSession(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	s := ports.StoredSession{ID: "s", AccessToken: "a", CreatedAt: time.Now(), ExpiresAt: time.Now().Add(time.Hour)}
	if err := repo.SaveSession(ctx, s); err != nil {
		t.Fatal(err)
	}
	if err := repo.DeleteSession(ctx, "s"); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.GetSession(ctx, "s"); !errors.Is(err, ports.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func testEvent(id string, op core.EventOp, at time.Time) core.LedgerEvent {
	return core.LedgerEvent{
		ID:            id,
		Op:            op,
		TransactionID: "tx-" + id,
		ActorID:       "u1",
		ActorEmail:    "a@x.io",
		Kind:          core.Expense,
		Amount:        core.MustAmount("12.50"),
		Description:   "Groceries",
		Category:      "Cash",
		CreatedAt:     at.Add(-time.Hour),
		OccurredAt:    at,
	}
}

func TestRecordEventIsIdempotent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	e := testEvent("e1", core.OpCreated, time.Now())

	inserted, err := repo.RecordEvent(ctx, e)
	if err != nil || !inserted {
		t.Fatalf("first RecordEvent() = %v, %v", inserted, err)
	}
	inserted, err = repo.RecordEvent(ctx, e)
	if err != nil || inserted {
		t.Fatalf("duplicate RecordEvent() = %v, %v", inserted, err)
	}

	got, err := repo.GetEvent(ctx, "e1")
	if err != nil {
		t.Fatalf("GetEvent() error = %v", err)
	}
	if got.Status != StatusPending || got.Amount.Format() != "12.50" || got.Kind != core.Expense {
		t.Fatalf("GetEvent() = %+v", got)
	}
	if !got.CreatedAt.Equal(e.CreatedAt.Truncate(time.Millisecond)) {
		t.Fatalf("CreatedAt = %v, want %v", got.CreatedAt, e.CreatedAt)
	}

	if _, err := repo.RecordEvent(ctx, core.LedgerEvent{ID: "bad", Op: "rename"}); err == nil {
		t.Fatalf("expected error for invalid op")
	}
	if _, err := repo.GetEvent(ctx, "missing"); !errors.Is(err, ErrEventNotFound) {
		t.Fatalf("expected ErrEventNotFound, got %v", err)
	}
}

func TestExportLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"e1", "e2", "e3"} {
		if _, err := repo.RecordEvent(ctx, testEvent(id, core.OpCreated, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatal(err)
		}
	}

	pending, err := repo.GetPendingEvents(ctx, 2)
	if err != nil || len(pending) != 2 || pending[0].ID != "e1" {
		t.Fatalf("GetPendingEvents() = %+v, %v", pending, err)
	}

	if err := repo.MarkExported(ctx, "e1"); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := repo.MarkExportFailed(ctx, "e2", "quota exceeded", 3); err != nil {
			t.Fatal(err)
		}
	}
	e2, _ := repo.GetEvent(ctx, "e2")
	if e2.Status != StatusFailed || e2.Attempts != 3 || e2.LastError != "quota exceeded" {
		t.Fatalf("e2 = %+v", e2)
	}

	stats, err := repo.GetEventStats(ctx)
	if err != nil || stats != (EventStats{Pending: 1, Exported: 1, Failed: 1}) {
		t.Fatalf("GetEventStats() = %+v, %v", stats, err)
	}

	if n, err := repo.RetryFailed(ctx); err != nil || n != 1 {
		t.Fatalf("RetryFailed() = %d, %v", n, err)
	}
	pending, _ = repo.GetPendingEvents(ctx, 10)
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending after retry, got %d", len(pending))
	}

	recent, err := repo.RecentEvents(ctx, 10)
	if err != nil || len(recent) != 3 || recent[0].ID != "e3" {
		t.Fatalf("RecentEvents() = %+v, %v", recent, err)
	}

	if n, err := repo.CleanupExported(ctx, time.Now().Add(time.Hour)); err != nil || n != 1 {
		t.Fatalf("CleanupExported() = %d, %v", n, err)
	}
}
