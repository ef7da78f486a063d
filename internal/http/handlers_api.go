package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"hisab/internal/core"
	"hisab/internal/log"
	"hisab/internal/services"
	"hisab/internal/storage"
)

const (
	defaultActivityLimit = 20
	maxActivityLimit     = 100
)

type totalsJSON struct {
	Income  string `json:"income"`
	Expense string `json:"expense"`
	Balance string `json:"balance"`
}

type ledgerJSON struct {
	Transactions []core.Transaction `json:"transactions"`
	Totals       totalsJSON         `json:"totals"`
	Contributors []string           `json:"contributors"`
	Categories   []string           `json:"categories"`
	Query        string             `json:"query"`
}

type activityJSON struct {
	core.LedgerEvent
	Status     storage.EventStatus `json:"status"`
	Attempts   int                 `json:"attempts"`
	RecordedAt time.Time           `json:"recorded_at"`
}

// apiSession resolves the caller for JSON endpoints, writing the error
// response itself when there is none.
func (s *Server) apiSession(w http.ResponseWriter, r *http.Request) (context.Context, bool) {
	if !s.configured() {
		writeJSONError(w, http.StatusServiceUnavailable, services.ErrNotConfigured.Error())
		return nil, false
	}
	_, ctx, err := s.session(r)
	if err != nil {
		if errors.Is(err, services.ErrNoSession) {
			writeJSONError(w, http.StatusUnauthorized, err.Error())
			return nil, false
		}
		if errors.Is(err, services.ErrAuthUnavailable) {
			writeJSONError(w, http.StatusServiceUnavailable, err.Error())
			return nil, false
		}
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Session lookup failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "session unavailable")
		return nil, false
	}
	return ctx, true
}

// handleAPITransactions returns the visible set and its totals for the view
// encoded in the query string.
func (s *Server) handleAPITransactions(w http.ResponseWriter, r *http.Request) {
	ctx, ok := s.apiSession(w, r)
	if !ok {
		return
	}

	state := core.ParseViewState(r.URL.Query())
	txs := s.ledger.Fetch(ctx)
	visible := core.Visible(txs, state.Filter, s.now())
	totals := core.Sum(visible)

	writeJSON(w, http.StatusOK, ledgerJSON{
		Transactions: visible,
		Totals: totalsJSON{
			Income:  totals.Income.StringFixed(2),
			Expense: totals.Expense.StringFixed(2),
			Balance: totals.Balance().StringFixed(2),
		},
		Contributors: core.Contributors(txs),
		Categories:   core.CategoryOptions(txs),
		Query:        state.Query().Encode(),
	})
}

// handleAPIActivity lists recently journaled ledger events, newest first.
func (s *Server) handleAPIActivity(w http.ResponseWriter, r *http.Request) {
	ctx, ok := s.apiSession(w, r)
	if !ok {
		return
	}

	limit := defaultActivityLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit %q", v))
			return
		}
		limit = min(n, maxActivityLimit)
	}

	out := []activityJSON{}
	if s.activity != nil {
		entries, err := s.activity.RecentEvents(ctx, limit)
		if err != nil {
			log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to read activity", "error", err)
			writeJSONError(w, http.StatusInternalServerError, "activity unavailable")
			return
		}
		for _, e := range entries {
			out = append(out, activityJSON{
				LedgerEvent: e.LedgerEvent,
				Status:      e.Status,
				Attempts:    e.Attempts,
				RecordedAt:  e.RecordedAt,
			})
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": out})
}
