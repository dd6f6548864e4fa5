package server

import (
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"booksphere/internal/ratelimit"
	"booksphere/internal/util"
	"booksphere/pkg/domain"
	"booksphere/services/portal/internal/app"
)

const (
	sessionCookieName = "booksphere_session"
	flashCookieName   = "booksphere_flash"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App *app.App
	// Redis enables login/register rate limiting when set.
	Redis                      *redis.Client
	LoginRateLimitPerMinute    int
	RegisterRateLimitPerMinute int
	TrustedProxies             *util.TrustedProxies
	SessionTTL                 time.Duration
	CookieSecure               bool
}

// Server exposes the portal pages.
type Server struct {
	app             *app.App
	mux             *http.ServeMux
	pages           map[string]*template.Template
	trusted         *util.TrustedProxies
	sessionTTL      time.Duration
	cookieSecure    bool
	loginLimiter    *ratelimit.FixedWindowLimiter
	registerLimiter *ratelimit.FixedWindowLimiter
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, fmt.Errorf("app required")
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 24 * time.Hour
	}
	pages, err := parsePages()
	if err != nil {
		return nil, err
	}
	s := &Server{
		app:          cfg.App,
		mux:          http.NewServeMux(),
		pages:        pages,
		trusted:      cfg.TrustedProxies,
		sessionTTL:   cfg.SessionTTL,
		cookieSecure: cfg.CookieSecure,
	}
	if cfg.Redis != nil {
		newLimiter := func(name string, limit int) (*ratelimit.FixedWindowLimiter, error) {
			if limit <= 0 {
				return nil, nil
			}
			limiter, err := ratelimit.NewFixedWindowLimiter(cfg.Redis, "booksphere:ratelimit:"+name, limit, time.Minute)
			if err != nil {
				return nil, fmt.Errorf("init %s limiter: %w", name, err)
			}
			return limiter, nil
		}
		if s.loginLimiter, err = newLimiter("login", cfg.LoginRateLimitPerMinute); err != nil {
			return nil, err
		}
		if s.registerLimiter, err = newLimiter("register", cfg.RegisterRateLimitPerMinute); err != nil {
			return nil, err
		}
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(
		util.WithRecover(s.handlePanic,
			util.WithRequestLog(s.trusted,
				util.WithSecurityHeaders(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	// public
	s.mux.HandleFunc("GET /{$}", s.handleHome)
	s.mux.HandleFunc("POST /login", s.handleLogin)
	s.mux.HandleFunc("GET /register", s.handleRegisterPage)
	s.mux.HandleFunc("POST /register", s.handleRegister)
	s.mux.HandleFunc("GET /logout", s.handleLogout)

	// members
	s.mux.Handle("GET /dashboard", s.authenticated(s.handleDashboard))
	s.mux.Handle("GET /toggle-favorite/{bookId}", s.authenticated(s.handleToggleFavorite))
	s.mux.Handle("GET /favorites", s.authenticated(s.handleFavorites))
	s.mux.Handle("GET /read-books", s.authenticated(s.handleReadBooks))
	s.mux.Handle("GET /read/{bookId}", s.authenticated(s.handleRead))
	s.mux.Handle("GET /payment", s.authenticated(s.handlePayment))
	s.mux.Handle("GET /payment-success/{userId}", s.authenticated(s.handlePaymentSuccess))
	s.mux.Handle("GET /feedback", s.authenticated(s.handleFeedbackPage))
	s.mux.Handle("POST /feedback", s.authenticated(s.handleFeedback))

	// admin
	s.mux.Handle("GET /admin", s.adminOnly(s.handleAdmin))
	s.mux.Handle("GET /admin/users", s.adminOnly(s.handleAdminUsers))
	s.mux.Handle("GET /approve/{userId}", s.adminOnly(s.handleApprove))
	s.mux.Handle("POST /add-book", s.adminOnly(s.handleAddBook))
	s.mux.Handle("GET /delete-book/{bookId}", s.adminOnly(s.handleDeleteBook))
	s.mux.Handle("GET /toggle-premium/{bookId}/{status}", s.adminOnly(s.handleTogglePremium))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

// auth wrappers
type sessionHandler func(http.ResponseWriter, *http.Request, domain.Session)

// authenticated sends visitors without a valid session to the home page.
func (s *Server) authenticated(next sessionHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.authorize(w, r)
		if !ok {
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}
		next(w, r, sess)
	})
}

// adminOnly also sends signed-in non-admins home, without a message.
func (s *Server) adminOnly(next sessionHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.authorize(w, r)
		if !ok {
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}
		if !sess.IsAdmin() {
			s.audit(r, "portal.admin.authorize", "fail", "user_id", sess.UserID, "reason", "forbidden")
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}
		next(w, r, sess)
	})
}

// authorize resolves the session cookie. Lookup failures count as no session.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request) (domain.Session, bool) {
	token := sessionToken(r)
	if token == "" {
		return domain.Session{}, false
	}
	sess, ok, err := s.app.Session(token)
	if err != nil {
		util.LoggerFromContext(r.Context()).Error("session lookup failed", "err", err)
		return domain.Session{}, false
	}
	if !ok {
		s.audit(r, "portal.session.verify", "fail", "reason", "invalid_or_expired")
		s.clearSessionCookie(w)
		return domain.Session{}, false
	}
	return sess, true
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", util.ClientIP(r, s.trusted),
	}
	logAttrs = append(logAttrs, attrs...)
	logger := util.LoggerFromContext(r.Context())
	if outcome == "success" {
		logger.Info("security_event", logAttrs...)
		return
	}
	logger.Warn("security_event", logAttrs...)
}

// allowRate reports whether the request is within quota; when it is not,
// the caller is redirected to back with a flash.
func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter, back string) bool {
	if limiter == nil {
		return true
	}
	if limiter.Allow(r.Context(), util.ClientIP(r, s.trusted)) {
		return true
	}
	s.audit(r, "portal.ratelimit", "fail")
	w.Header().Set("Retry-After", "60")
	s.redirectWithFlash(w, r, back, "Too many attempts. Please wait a minute and try again.")
	return false
}

func (s *Server) handlePanic(w http.ResponseWriter, r *http.Request) {
	s.redirectWithFlash(w, r, "/", msgGenericFailure)
}

func sessionToken(r *http.Request) string {
	c, err := r.Cookie(sessionCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

func (s *Server) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.sessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
