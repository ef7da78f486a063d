package http

import (
	"errors"
	"net/http"

	"hisab/internal/core"
	"hisab/internal/log"
	"hisab/internal/services"
)

const msgDeleteNotOwned = "You can only delete your own transactions."

// mutationStatus maps a failed mutation to a status code and the message shown
// above the form. Validation errors are shown as-is; backend errors carry the
// provider's text behind prefix.
func mutationStatus(err error, prefix, notOwned string) (int, string) {
	switch {
	case errors.Is(err, core.ErrMissingDetails),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidKind):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, services.ErrNotOwner):
		return http.StatusForbidden, notOwned
	case errors.Is(err, services.ErrNotConfigured):
		return http.StatusServiceUnavailable, prefix + err.Error()
	default:
		return http.StatusBadGateway, prefix + err.Error()
	}
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	sess, ctx, err := s.session(r)
	if err != nil {
		s.sessionFailed(w, r, err)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	state := returnState(r.PostForm)
	form := formValues(r.PostForm)
	state.Form = form

	draft, err := core.ParseDraft(string(form.Kind), form.Amount, form.Description, form.Category)
	if err == nil {
		var tx *core.Transaction
		tx, err = s.ledger.Create(ctx, sess.Viewer, draft)
		if err == nil {
			s.events.LogTransaction(ctx, log.OpCreate, *tx, sess.Viewer.Email)
			http.Redirect(w, r, dashboardURL(core.Reduce(state, core.Action{Type: core.Saved})), http.StatusSeeOther)
			return
		}
	}

	status, msg := mutationStatus(err, "Error adding transaction: ", msgEditNotOwned)
	if status != http.StatusUnprocessableEntity {
		s.events.LogError(ctx, "Create transaction failed", err, log.ComponentLedger, log.OpCreate, nil)
	}
	s.rerender(ctx, w, r, status, sess.Viewer, state, msg)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	sess, ctx, err := s.session(r)
	if err != nil {
		s.sessionFailed(w, r, err)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	id := r.PathValue("id")
	state := returnState(r.PostForm)
	state.EditingID = id
	form := formValues(r.PostForm)
	state.Form = form

	draft, err := core.ParseDraft(string(form.Kind), form.Amount, form.Description, form.Category)
	if err == nil {
		var tx *core.Transaction
		tx, err = s.ledger.Update(ctx, sess.Viewer, id, draft)
		if err == nil {
			s.events.LogTransaction(ctx, log.OpUpdate, *tx, sess.Viewer.Email)
			http.Redirect(w, r, dashboardURL(core.Reduce(state, core.Action{Type: core.Saved})), http.StatusSeeOther)
			return
		}
	}

	status, msg := mutationStatus(err, "Error updating transaction: ", msgEditNotOwned)
	if status == http.StatusForbidden {
		state = core.Reduce(state, core.Action{Type: core.CancelEdit})
	}
	if status != http.StatusUnprocessableEntity {
		s.events.LogError(ctx, "Update transaction failed", err, log.ComponentLedger, log.OpUpdate,
			log.NewFields().WithActor(sess.Viewer.Email))
	}
	s.rerender(ctx, w, r, status, sess.Viewer, state, msg)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	sess, ctx, err := s.session(r)
	if err != nil {
		s.sessionFailed(w, r, err)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	id := r.PathValue("id")
	state := returnState(r.PostForm)

	if err := s.ledger.Delete(ctx, sess.Viewer, id); err != nil {
		status, msg := mutationStatus(err, "Error deleting transaction: ", msgDeleteNotOwned)
		s.events.LogError(ctx, "Delete transaction failed", err, log.ComponentLedger, log.OpDelete,
			log.NewFields().WithActor(sess.Viewer.Email))
		s.rerender(ctx, w, r, status, sess.Viewer, state, msg)
		return
	}

	s.events.LogTransaction(ctx, log.OpDelete, core.Transaction{ID: id}, sess.Viewer.Email)
	http.Redirect(w, r, dashboardURL(core.Reduce(state, core.Action{Type: core.Deleted, Value: id})), http.StatusSeeOther)
}
