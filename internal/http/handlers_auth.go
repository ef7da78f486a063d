package http

import (
	"errors"
	"net/http"
	"strings"

	"hisab/internal/log"
	"hisab/internal/services"
)

const (
	modeSignIn = "signin"
	modeSignUp = "signup"
)

const confirmEmailNotice = "Check your email for the confirmation link!"

type loginPage struct {
	Configured bool
	Mode       string
	Email      string
	FullName   string
	Error      string
	Notice     string
}

func (p loginPage) SignUp() bool { return p.Mode == modeSignUp }

func parseMode(s string) string {
	if strings.EqualFold(strings.TrimSpace(s), modeSignUp) {
		return modeSignUp
	}
	return modeSignIn
}

// handleLoginPage shows the sign-in or sign-up form. A caller who already
// holds a live session goes straight to the dashboard.
func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if !s.configured() {
		s.render(w, r, http.StatusOK, "login.html", loginPage{Mode: modeSignIn})
		return
	}
	if s.sessionID(r) != "" {
		if _, _, err := s.session(r); err == nil {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
	}
	s.render(w, r, http.StatusOK, "login.html", loginPage{
		Configured: true,
		Mode:       parseMode(r.URL.Query().Get("mode")),
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.configured() {
		s.render(w, r, http.StatusServiceUnavailable, "login.html", loginPage{Mode: modeSignIn})
		return
	}
	if err := r.ParseForm(); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Parse form error", "error", err, "url", r.URL.Path)
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	page := loginPage{
		Configured: true,
		Mode:       parseMode(r.PostForm.Get("mode")),
		Email:      strings.TrimSpace(r.PostForm.Get("email")),
		FullName:   sanitizeInput(r.PostForm.Get("full_name")),
	}
	password := r.PostForm.Get("password")

	if page.Mode == modeSignUp {
		if err := s.auth.SignUp(r.Context(), page.Email, password, page.FullName); err != nil {
			s.events.LogError(r.Context(), "Sign up failed", err, log.ComponentAuth, log.OpSignUp, nil)
			page.Error = err.Error()
			s.render(w, r, http.StatusUnprocessableEntity, "login.html", page)
			return
		}
		s.render(w, r, http.StatusOK, "login.html", loginPage{
			Configured: true,
			Mode:       modeSignIn,
			Email:      page.Email,
			Notice:     confirmEmailNotice,
		})
		return
	}

	sess, err := s.auth.SignIn(r.Context(), page.Email, password)
	if err != nil {
		log.FromContext(r.Context()).InfoContext(r.Context(), "Sign in failed", "error", err, "operation", log.OpSignIn)
		page.Error = err.Error()
		s.render(w, r, http.StatusUnauthorized, "login.html", page)
		return
	}
	s.setSessionCookie(w, sess)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.SignOut(r.Context(), s.sessionID(r)); err != nil && !errors.Is(err, services.ErrNoSession) {
		s.events.LogError(r.Context(), "Sign out failed", err, log.ComponentAuth, log.OpSignOut, nil)
	}
	s.clearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
