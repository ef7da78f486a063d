package core

import (
	"errors"
	"testing"
)

func TestOwnedBy(t *testing.T) {
	viewer := Viewer{ID: "u1", Email: "me@example.com"}
	cases := []struct {
		name string
		tx   Transaction
		want bool
	}{
		{"id match with different email", Transaction{UserID: "u1", UserEmail: "other@example.com"}, true},
		{"no id but email match", Transaction{UserEmail: "me@example.com"}, true},
		{"other id but email match", Transaction{UserID: "u2", UserEmail: "me@example.com"}, true},
		{"other id and other email", Transaction{UserID: "u2", UserEmail: "other@example.com"}, false},
		{"no owner at all", Transaction{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.tx.OwnedBy(viewer); got != tc.want {
				t.Fatalf("OwnedBy = %v, want %v", got, tc.want)
			}
		})
	}

	if (Transaction{UserEmail: ""}).OwnedBy(Viewer{}) {
		t.Fatalf("empty viewer must not own empty row")
	}
}

func TestDisplayName(t *testing.T) {
	cases := []struct {
		v    Viewer
		want string
	}{
		{Viewer{FullName: "  Dad ", Email: "a@b.c"}, "Dad"},
		{Viewer{Email: "manager@team.io"}, "manager"},
		{Viewer{}, "User"},
	}
	for i, tc := range cases {
		if got := tc.v.DisplayName(); got != tc.want {
			t.Fatalf("case %d: got %q want %q", i, got, tc.want)
		}
	}
}

func TestParseDraft(t *testing.T) {
	d, err := ParseDraft("income", " 12,5 ", "  salary ", "   ")
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if d.Kind != Income || d.Description != "salary" || d.Category != DefaultCategory {
		t.Fatalf("unexpected draft %+v", d)
	}
	if !d.Amount.Equal(MustAmount("12.5").Decimal) {
		t.Fatalf("unexpected amount %s", d.Amount)
	}

	d, err = ParseDraft("", "3", "coffee", "Cash")
	if err != nil || d.Kind != Expense || d.Category != "Cash" {
		t.Fatalf("expected expense default, got %+v err=%v", d, err)
	}

	bads := []struct {
		kind, amount, desc string
		want               error
	}{
		{"EXPENSE", "", "x", ErrMissingDetails},
		{"EXPENSE", "1", "", ErrMissingDetails},
		{"EXPENSE", "0", "x", ErrInvalidAmount},
		{"EXPENSE", "-3", "x", ErrInvalidAmount},
		{"TRANSFER", "1", "x", ErrInvalidKind},
	}
	for i, tc := range bads {
		if _, err := ParseDraft(tc.kind, tc.amount, tc.desc, ""); !errors.Is(err, tc.want) {
			t.Fatalf("case %d: expected %v, got %v", i, tc.want, err)
		}
	}
}

func TestNormalizeCategory(t *testing.T) {
	if got := NormalizeCategory("  "); got != DefaultCategory {
		t.Fatalf("blank -> %q", got)
	}
	if got := NormalizeCategory(" Food "); got != "Food" {
		t.Fatalf("trim -> %q", got)
	}
}
