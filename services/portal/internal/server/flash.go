package server

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"booksphere/internal/util"
	"booksphere/pkg/auth"
	"booksphere/services/portal/internal/app"
)

const msgGenericFailure = "Something went wrong. Please try again."

// Flash messages live in a short cookie set on redirect and cleared by the
// next rendered page.
func (s *Server) setFlash(w http.ResponseWriter, msg string) {
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    base64.RawURLEncoding.EncodeToString([]byte(msg)),
		Path:     "/",
		MaxAge:   60,
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// takeFlash returns the pending flash and expires it.
func (s *Server) takeFlash(w http.ResponseWriter, r *http.Request) string {
	c, err := r.Cookie(flashCookieName)
	if err != nil || c.Value == "" {
		return ""
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	raw, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return ""
	}
	return string(raw)
}

// redirectWithFlash redirects with 303 after a POST and 302 otherwise.
func (s *Server) redirectWithFlash(w http.ResponseWriter, r *http.Request, to, msg string) {
	if msg != "" {
		s.setFlash(w, msg)
	}
	redirect(w, r, to)
}

func redirect(w http.ResponseWriter, r *http.Request, to string) {
	code := http.StatusFound
	if r.Method == http.MethodPost {
		code = http.StatusSeeOther
	}
	http.Redirect(w, r, to, code)
}

// fail flashes the user-facing text for err and redirects to. Internal
// errors are logged and shown as fallback.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error, to, fallback string) {
	if app.KindOf(err) == app.KindInternal {
		util.LoggerFromContext(r.Context()).Error("request failed", "path", r.URL.Path, "err", err)
	}
	s.redirectWithFlash(w, r, to, flashFor(err, fallback))
}

func flashFor(err error, fallback string) string {
	var verr *app.ValidationError
	switch {
	case errors.Is(err, app.ErrInvalidCredentials):
		return "Invalid login!"
	case errors.Is(err, app.ErrEmailTaken):
		return "Email exists!"
	case errors.Is(err, auth.ErrPasswordRequired):
		return "Password is required."
	case errors.Is(err, auth.ErrPasswordTooLong):
		return "Password must be at most 72 bytes."
	case errors.Is(err, app.ErrInvalidRating):
		return "Rating must be a number from 1 to 5."
	case errors.Is(err, app.ErrInvalidPremiumFlag):
		return "Premium status must be 0 or 1."
	case errors.Is(err, app.ErrPremiumRequired):
		return "Premium required! Upgrade to read this book."
	case errors.Is(err, app.ErrForbidden):
		return "You can only activate premium for your own account."
	case errors.Is(err, app.ErrPaymentNotConfirmed):
		return "Payment not confirmed yet."
	case errors.Is(err, app.ErrBookNotFound):
		return "Book not found!"
	case errors.Is(err, app.ErrUserNotFound):
		return "User not found!"
	case errors.As(err, &verr):
		return fmt.Sprintf("Please check the %s field.", verr.Field)
	}
	if fallback == "" {
		return msgGenericFailure
	}
	return fallback
}

// backTo returns the same-site Referer path, or def.
func backTo(r *http.Request, def string) string {
	ref := r.Referer()
	if ref == "" {
		return def
	}
	u, err := url.Parse(ref)
	if err != nil || (u.Host != "" && u.Host != r.Host) || u.Path == "" || u.Path[0] != '/' {
		return def
	}
	// browsers read "//host" and "/\host" as another origin
	if strings.HasPrefix(u.Path, "//") || strings.HasPrefix(u.Path, "/\\") {
		return def
	}
	if u.RawQuery != "" {
		return u.Path + "?" + u.RawQuery
	}
	return u.Path
}
