package core

import (
	"net/url"
	"testing"
)

func TestReduceEditLifecycle(t *testing.T) {
	s := NewViewState()
	tx := Transaction{ID: "t1", Kind: Income, Amount: MustAmount("12.5"), Description: "salary", Category: " "}

	s = Reduce(s, Action{Type: StartEdit, Transaction: tx})
	if s.EditingID != "t1" || s.Form.Amount != "12.5" || s.Form.Category != DefaultCategory || s.Form.Kind != Income {
		t.Fatalf("unexpected edit state %+v", s)
	}

	other := Reduce(s, Action{Type: Deleted, Value: "t2"})
	if other.EditingID != "t1" {
		t.Fatalf("deleting another row must keep the edit")
	}
	cleared := Reduce(s, Action{Type: Deleted, Value: "t1"})
	if cleared.EditingID != "" || cleared.Form != EmptyForm() {
		t.Fatalf("deleting the edited row must reset the form: %+v", cleared)
	}

	saved := Reduce(s, Action{Type: Saved})
	if saved.EditingID != "" || saved.Form != EmptyForm() {
		t.Fatalf("save must reset the form: %+v", saved)
	}
	if s.EditingID != "t1" {
		t.Fatalf("Reduce must not mutate its input")
	}
}

func TestReduceSelectOwnerClosesMenu(t *testing.T) {
	s := Reduce(NewViewState(), Action{Type: ToggleMenu})
	if !s.MenuOpen {
		t.Fatalf("menu should be open")
	}
	s = Reduce(s, Action{Type: SelectOwner, Value: "a@x.io"})
	if s.MenuOpen || s.Filter.Owner != "a@x.io" {
		t.Fatalf("unexpected state %+v", s)
	}
}

func TestViewStateQueryRoundTrip(t *testing.T) {
	s := NewViewState()
	s = Reduce(s, Action{Type: SelectOwner, Value: "a@x.io"})
	s = Reduce(s, Action{Type: SetCategoryFilter, Value: "Cash"})
	s = Reduce(s, Action{Type: SetSearch, Value: "rent"})
	s = Reduce(s, Action{Type: SetDateRange, Value: "custom"})
	s = Reduce(s, Action{Type: SetCustomStart, Value: "2024-01-01"})
	s = Reduce(s, Action{Type: SetCustomEnd, Value: "2024-01-31"})
	s.EditingID = "t9"

	back := ParseViewState(s.Query())
	if back.Filter != s.Filter || back.EditingID != s.EditingID {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", back, s)
	}
}

func TestNeutralViewStateHasEmptyQuery(t *testing.T) {
	if q := NewViewState().Query(); len(q) != 0 {
		t.Fatalf("expected empty query, got %v", q)
	}
	s := ParseViewState(url.Values{ParamRange: {"bogus"}, ParamCategory: {""}})
	if s.Filter.Range != ThisMonth || s.Filter.Category != AllCategories {
		t.Fatalf("unexpected defaults %+v", s.Filter)
	}
}
