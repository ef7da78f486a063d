package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"hisab/internal/core"
	"hisab/internal/ports"
)

// returnParam carries the dashboard query a form was submitted from.
const returnParam = "return"

// sanitizeInput removes control characters except tab, newline and carriage
// return, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// returnState rebuilds the view a form was posted from. Only a relative query
// string is honoured.
func returnState(form url.Values) core.ViewState {
	q, err := url.ParseQuery(strings.TrimPrefix(form.Get(returnParam), "?"))
	if err != nil {
		return core.NewViewState()
	}
	return core.ParseViewState(q)
}

// dashboardURL is where a successful form post lands.
func dashboardURL(s core.ViewState) string {
	if q := s.Query().Encode(); q != "" {
		return "/?" + q
	}
	return "/"
}

func formValues(form url.Values) core.Form {
	kind := core.Kind(strings.ToUpper(strings.TrimSpace(form.Get("type"))))
	if !kind.Valid() {
		kind = core.Expense
	}
	return core.Form{
		Kind:        kind,
		Amount:      sanitizeInput(form.Get("amount")),
		Description: sanitizeInput(form.Get("description")),
		Category:    sanitizeInput(form.Get("category")),
	}
}

// formCategories is the picker for the create/edit form: the filter options,
// plus the default and the current value when neither is among them.
func formCategories(options []string, current string) []string {
	out := append([]string{}, options...)
	for _, c := range []string{core.DefaultCategory, current} {
		if c == "" {
			continue
		}
		found := false
		for _, o := range out {
			if strings.EqualFold(o, c) {
				found = true
				break
			}
		}
		if !found {
			out = append(out, c)
		}
	}
	return out
}

func (s *Server) sessionID(r *http.Request) string {
	c, err := r.Cookie(s.cookie.Name)
	if err != nil {
		return ""
	}
	return c.Value
}

func (s *Server) setSessionCookie(w http.ResponseWriter, sess *ports.StoredSession) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookie.Name,
		Value:    sess.ID,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		MaxAge:   int(s.cookie.TTL.Seconds()),
		HttpOnly: true,
		Secure:   s.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookie.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// configured reports whether sign-in and ledger calls can reach a backend.
func (s *Server) configured() bool {
	return s.ledger.Configured() && s.auth.Configured()
}

// session resolves the caller's session and returns a context whose backend
// calls act as that user.
func (s *Server) session(r *http.Request) (*ports.StoredSession, context.Context, error) {
	sess, err := s.auth.Resolve(r.Context(), s.sessionID(r))
	if err != nil {
		return nil, nil, err
	}
	return sess, ports.WithAccessToken(r.Context(), sess.AccessToken), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
