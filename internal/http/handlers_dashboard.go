package http

import (
	"context"
	"errors"
	"net/http"

	"hisab/internal/core"
	"hisab/internal/log"
	"hisab/internal/services"
)

const msgEditNotOwned = "You can only edit your own transactions."

type txRow struct {
	core.Transaction
	Own bool
}

type rangeOption struct {
	Value  core.DateRange
	Label  string
	Active bool
}

type dashboardPage struct {
	Configured   bool
	Viewer       core.Viewer
	DisplayName  string
	State        core.ViewState
	Rows         []txRow
	Totals       core.Totals
	Contributors []string
	Categories   []string
	FormCategory []string
	Ranges       []rangeOption
	ShowForm     bool
	Error        string
}

// handleDashboard renders the ledger for the view encoded in the query string.
// Without a backend it renders an empty, read-only page.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	state := core.ParseViewState(r.URL.Query())
	if r.URL.Query().Has("menu") {
		state = core.Reduce(state, core.Action{Type: core.ToggleMenu})
	}

	if !s.configured() {
		s.render(w, r, http.StatusOK, "dashboard.html", s.buildDashboard(core.Viewer{}, state, nil))
		return
	}

	sess, ctx, err := s.session(r)
	if err != nil {
		s.sessionFailed(w, r, err)
		return
	}

	txs := s.ledger.Fetch(ctx)
	var msg string
	if state.EditingID != "" {
		state, msg = startEdit(state, txs, sess.Viewer)
	}
	page := s.buildDashboard(sess.Viewer, state, txs)
	page.Error = msg
	s.render(w, r, http.StatusOK, "dashboard.html", page)
}

// startEdit loads the row named by state.EditingID into the form, or cancels
// the edit when the viewer does not own it.
func startEdit(state core.ViewState, txs []core.Transaction, v core.Viewer) (core.ViewState, string) {
	for _, t := range txs {
		if t.ID != state.EditingID {
			continue
		}
		if !t.OwnedBy(v) {
			break
		}
		return core.Reduce(state, core.Action{Type: core.StartEdit, Transaction: t}), ""
	}
	return core.Reduce(state, core.Action{Type: core.CancelEdit}), msgEditNotOwned
}

// sessionFailed sends a caller without a usable session back to sign in. An
// unconfigured or unreachable provider answers 503 and keeps the cookie.
func (s *Server) sessionFailed(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, services.ErrNoSession) {
		s.clearSessionCookie(w)
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	if errors.Is(err, services.ErrNotConfigured) || errors.Is(err, services.ErrAuthUnavailable) {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Session lookup unavailable", "error", err)
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	log.FromContext(r.Context()).ErrorContext(r.Context(), "Session lookup failed", "error", err)
	http.Error(w, "session unavailable", http.StatusInternalServerError)
}

func (s *Server) buildDashboard(v core.Viewer, state core.ViewState, txs []core.Transaction) dashboardPage {
	visible := core.Visible(txs, state.Filter, s.now())
	rows := make([]txRow, 0, len(visible))
	for _, t := range visible {
		rows = append(rows, txRow{Transaction: t, Own: t.OwnedBy(v)})
	}
	categories := core.CategoryOptions(txs)

	page := dashboardPage{
		Configured:   s.configured(),
		Viewer:       v,
		DisplayName:  v.DisplayName(),
		State:        state,
		Rows:         rows,
		Totals:       core.Sum(visible),
		Contributors: core.Contributors(txs),
		Categories:   categories,
		FormCategory: formCategories(categories, state.Form.Category),
		ShowForm:     state.Filter.Owner == "" || state.EditingID != "",
	}
	for _, opt := range []rangeOption{
		{Value: core.ThisMonth, Label: "This Month"},
		{Value: core.LastMonth, Label: "Last Month"},
		{Value: core.Custom, Label: "Custom"},
	} {
		opt.Active = opt.Value == state.Filter.Range
		page.Ranges = append(page.Ranges, opt)
	}
	if !page.Configured {
		page.ShowForm = false
	}
	return page
}

// rerender shows the dashboard again after a failed mutation, keeping what
// the user typed.
func (s *Server) rerender(ctx context.Context, w http.ResponseWriter, r *http.Request, status int, v core.Viewer, state core.ViewState, msg string) {
	page := s.buildDashboard(v, state, s.ledger.Fetch(ctx))
	page.Error = msg
	s.render(w, r, status, "dashboard.html", page)
}
