package core

import (
	"net/url"
	"strings"
)

const (
	SelectOwner ActionType = iota
	SetCategoryFilter
	SetSearch
	SetDateRange
	SetCustomStart
	SetCustomEnd
	StartEdit
	CancelEdit
	Saved
	Deleted
	ToggleMenu
)

// Query parameter names used to serialize a ViewState.
const (
	ParamOwner    = "owner"
	ParamCategory = "category"
	ParamSearch   = "q"
	ParamRange    = "range"
	ParamFrom     = "from"
	ParamTo       = "to"
	ParamEdit     = "edit"
)

type (
	ActionType int

	// Form is the create/edit form as typed by the user.
	Form struct {
		Kind        Kind
		Amount      string
		Description string
		Category    string
	}

	// ViewState is everything the dashboard renders from besides the ledger.
	ViewState struct {
		Filter    Filter
		Form      Form
		EditingID string
		MenuOpen  bool
	}

	// Action is one UI event. Value carries the string payload; Transaction is
	// set for StartEdit.
	Action struct {
		Type        ActionType
		Value       string
		Transaction Transaction
	}
)

// EmptyForm is the form after a reset.
func EmptyForm() Form {
	return Form{Kind: Expense, Category: DefaultCategory}
}

// NewViewState returns the initial dashboard state.
func NewViewState() ViewState {
	return ViewState{
		Filter: Filter{Range: ThisMonth, Category: AllCategories},
		Form:   EmptyForm(),
	}
}

// Reduce applies a to s and returns the new state. s is not modified.
func Reduce(s ViewState, a Action) ViewState {
	switch a.Type {
	case SelectOwner:
		s.Filter.Owner = a.Value
		s.MenuOpen = false
	case SetCategoryFilter:
		if a.Value == "" {
			a.Value = AllCategories
		}
		s.Filter.Category = a.Value
	case SetSearch:
		s.Filter.Search = a.Value
	case SetDateRange:
		s.Filter.Range = ParseDateRange(a.Value)
	case SetCustomStart:
		s.Filter.CustomStart = a.Value
	case SetCustomEnd:
		s.Filter.CustomEnd = a.Value
	case StartEdit:
		t := a.Transaction
		s.EditingID = t.ID
		s.Form = Form{
			Kind:        t.Kind,
			Amount:      t.Amount.String(),
			Description: t.Description,
			Category:    t.NormalizedCategory(),
		}
	case CancelEdit, Saved:
		s.EditingID = ""
		s.Form = EmptyForm()
	case Deleted:
		if s.EditingID != "" && s.EditingID == a.Value {
			s.EditingID = ""
			s.Form = EmptyForm()
		}
	case ToggleMenu:
		s.MenuOpen = !s.MenuOpen
	}
	return s
}

// Query serializes the filter and editing state. Neutral values are omitted.
func (s ViewState) Query() url.Values {
	q := url.Values{}
	f := s.Filter
	if f.Owner != "" {
		q.Set(ParamOwner, f.Owner)
	}
	if f.Category != "" && f.Category != AllCategories {
		q.Set(ParamCategory, f.Category)
	}
	if f.Search != "" {
		q.Set(ParamSearch, f.Search)
	}
	if f.Range != "" && f.Range != ThisMonth {
		q.Set(ParamRange, string(f.Range))
	}
	if f.CustomStart != "" {
		q.Set(ParamFrom, f.CustomStart)
	}
	if f.CustomEnd != "" {
		q.Set(ParamTo, f.CustomEnd)
	}
	if s.EditingID != "" {
		q.Set(ParamEdit, s.EditingID)
	}
	return q
}

// ParseViewState rebuilds a ViewState from query parameters by replaying the
// corresponding actions over the initial state.
func ParseViewState(q url.Values) ViewState {
	s := NewViewState()
	for _, a := range []Action{
		{Type: SelectOwner, Value: strings.TrimSpace(q.Get(ParamOwner))},
		{Type: SetCategoryFilter, Value: strings.TrimSpace(q.Get(ParamCategory))},
		{Type: SetSearch, Value: q.Get(ParamSearch)},
		{Type: SetDateRange, Value: q.Get(ParamRange)},
		{Type: SetCustomStart, Value: strings.TrimSpace(q.Get(ParamFrom))},
		{Type: SetCustomEnd, Value: strings.TrimSpace(q.Get(ParamTo))},
	} {
		s = Reduce(s, a)
	}
	s.EditingID = strings.TrimSpace(q.Get(ParamEdit))
	return s
}
