package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"hisab/internal/core"
)

func event(op core.EventOp, txID, desc string) core.LedgerEvent {
	return core.LedgerEvent{
		ID:            "e-" + desc,
		Op:            op,
		TransactionID: txID,
		Kind:          core.Expense,
		Amount:        core.MustAmount("3.5"),
		Description:   desc,
		OccurredAt:    time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC),
	}
}

func TestStoreAppendUpsertClear(t *testing.T) {
	s := New()
	ctx := context.Background()

	ref, err := s.Append(ctx, event(core.OpCreated, "t1", "coffee"))
	if err != nil || ref != "mem:1" {
		t.Fatalf("Append() = %q, %v", ref, err)
	}
	if _, err := s.Append(ctx, event(core.OpCreated, "t2", "bread")); err != nil {
		t.Fatal(err)
	}

	ref, err = s.Upsert(ctx, event(core.OpUpdated, "t1", "espresso"))
	if err != nil || ref != "mem:1" {
		t.Fatalf("Upsert() existing = %q, %v", ref, err)
	}
	ref, _ = s.Upsert(ctx, event(core.OpUpdated, "t3", "late"))
	if ref != "mem:3" {
		t.Fatalf("Upsert() missing row must append, got %q", ref)
	}

	if err := s.Clear(ctx, "t2"); err != nil {
		t.Fatal(err)
	}
	if err := s.Clear(ctx, "unknown"); err != nil {
		t.Fatalf("clearing a missing row must succeed: %v", err)
	}

	rows := s.Rows()
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0].Values[5] != "espresso" || rows[0].Values[3] != "3.50" || rows[0].Values[4] != core.DefaultCategory {
		t.Fatalf("unexpected first row %v", rows[0].Values)
	}
	if rows[1].TransactionID != "" || len(rows[1].Values) != 0 {
		t.Fatalf("cleared row must be blank, got %+v", rows[1])
	}
}

func TestStoreInjectedError(t *testing.T) {
	s := New()
	boom := errors.New("quota exceeded")
	s.SetError(boom)
	if _, err := s.Append(context.Background(), event(core.OpCreated, "t1", "x")); !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}
	s.SetError(nil)
	if _, err := s.Append(context.Background(), event(core.OpCreated, "t1", "x")); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
}
