package http

import (
	"context"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"hisab/internal/core"
	"hisab/internal/log"
	"hisab/internal/middleware/ratelimit"
	"hisab/internal/middleware/security"
	"hisab/internal/middleware/trace"
	"hisab/internal/services"
	"hisab/internal/storage"
	appweb "hisab/web"
)

// ActivityReader lists the most recent journaled ledger events.
type ActivityReader interface {
	RecentEvents(ctx context.Context, limit int) ([]storage.JournalEntry, error)
}

// CookieConfig controls the session cookie.
type CookieConfig struct {
	Name   string
	Secure bool
	TTL    time.Duration
}

// Deps are the collaborators a Server needs. Activity may be nil.
type Deps struct {
	Ledger    *services.LedgerService
	Auth      *services.AuthService
	Activity  ActivityReader
	Cookie    CookieConfig
	Logger    *log.Logger
	RateLimit ratelimit.Config
	Now       func() time.Time
}

type Server struct {
	http.Server
	templates *template.Template

	ledger   *services.LedgerService
	auth     *services.AuthService
	activity ActivityReader
	cookie   CookieConfig
	events   *log.StructuredLogger
	now      func() time.Time
	started  time.Time

	detector *security.Detector
	limiter  *ratelimit.Limiter
	tracer   *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run http.Server.
func NewServer(addr string, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = log.FromContext(context.Background())
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Cookie.Name == "" {
		deps.Cookie.Name = "hisab_session"
	}
	if deps.Cookie.TTL <= 0 {
		deps.Cookie.TTL = 7 * 24 * time.Hour
	}
	if deps.RateLimit.RequestsPerMinute == 0 && len(deps.RateLimit.Methods) == 0 {
		deps.RateLimit = ratelimit.DefaultConfig()
	}

	logger := deps.Logger.WithComponent(log.ComponentHTTP)
	detector := security.NewDetector()

	s := &Server{
		ledger:   deps.Ledger,
		auth:     deps.Auth,
		activity: deps.Activity,
		cookie:   deps.Cookie,
		events:   log.NewStructuredLogger(logger),
		now:      deps.Now,
		started:  time.Now(),
		detector: detector,
		limiter:  ratelimit.NewLimiter(deps.RateLimit),
		tracer:   trace.NewMiddleware(detector.ExtractClientIP, logger),
	}

	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Warn("Failed parsing templates", "error", err)
	}
	s.templates = t

	mux := http.NewServeMux()

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /login", s.handleLoginPage)
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("POST /logout", s.handleLogout)

	mux.HandleFunc("GET /{$}", s.handleDashboard)
	mux.HandleFunc("POST /transactions", s.handleCreateTransaction)
	mux.HandleFunc("POST /transactions/{id}", s.handleUpdateTransaction)
	mux.HandleFunc("POST /transactions/{id}/delete", s.handleDeleteTransaction)

	mux.HandleFunc("GET /api/transactions", s.handleAPITransactions)
	mux.HandleFunc("GET /api/activity", s.handleAPIActivity)

	var handler http.Handler = mux
	handler = detector.Middleware(handler)
	handler = s.limiter.Middleware(detector.ExtractClientIP, nil)(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Shutdown stops background cleanup and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

var templateFuncs = template.FuncMap{
	"local": core.EmailLocalPart,
	"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("02 Jan 2006")
	},
	"query": func(s core.ViewState) string { return s.Query().Encode() },
	"ownerURL": func(s core.ViewState, owner string) string {
		s = core.Reduce(s, core.Action{Type: core.SelectOwner, Value: owner})
		return dashboardURL(core.Reduce(s, core.Action{Type: core.CancelEdit}))
	},
	"rangeURL": func(s core.ViewState, r core.DateRange) string {
		return dashboardURL(core.Reduce(s, core.Action{Type: core.SetDateRange, Value: string(r)}))
	},
	"editURL": func(s core.ViewState, id string) string {
		s.EditingID = id
		return dashboardURL(s)
	},
	"cancelURL": func(s core.ViewState) string {
		return dashboardURL(core.Reduce(s, core.Action{Type: core.CancelEdit}))
	},
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	if s.templates == nil {
		slog.ErrorContext(r.Context(), "Templates not loaded", "url", r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed", "error", err, "template", name)
	}
}
