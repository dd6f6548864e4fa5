package server

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"booksphere/pkg/domain"
	"booksphere/pkg/store"
	"booksphere/services/portal/internal/app"
)

const (
	testAdminEmail = "admin@example.com"
	testAdminKey   = "admin-key-1"
)

type testPortal struct {
	srv   *Server
	app   *app.App
	store *store.MemoryStore
}

func newTestPortal(t *testing.T, mutate func(*Config)) *testPortal {
	t.Helper()
	return newTestPortalWithApp(t, nil, mutate)
}

func newTestPortalWithApp(t *testing.T, mutateApp func(*app.Config), mutate func(*Config)) *testPortal {
	t.Helper()
	st := store.NewMemoryStore()
	sessions, err := store.NewJWTSessionStore("server-test-secret-0123", time.Hour, store.NewMemoryTokenRevoker(), store.JWTOptions{})
	if err != nil {
		t.Fatalf("new session store: %v", err)
	}
	appCfg := app.Config{
		Store:         st,
		Sessions:      sessions,
		PremiumPrice:  50000,
		PublicBaseURL: "http://example.com",
	}
	if mutateApp != nil {
		mutateApp(&appCfg)
	}
	core, err := app.New(appCfg)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	if _, err := core.EnsureAdmin(testAdminEmail, "Admin", testAdminKey); err != nil {
		t.Fatalf("ensure admin: %v", err)
	}
	cfg := Config{App: core, SessionTTL: time.Hour}
	if mutate != nil {
		mutate(&cfg)
	}
	srv, err := New(cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return &testPortal{srv: srv, app: core, store: st}
}

// member registers, approves and logs in a user, returning the session token.
func (p *testPortal) member(t *testing.T, name, email string) (domain.User, string) {
	t.Helper()
	u, err := p.app.Register(name, email, "secret1")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := p.app.Approve(u.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	token, _, err := p.app.Login(email, "secret1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	return u, token
}

func (p *testPortal) adminToken(t *testing.T) string {
	t.Helper()
	token, _, err := p.app.Login(testAdminEmail, testAdminKey)
	if err != nil {
		t.Fatalf("admin login: %v", err)
	}
	return token
}

func (p *testPortal) book(t *testing.T, title string, premium bool) domain.Book {
	t.Helper()
	b, err := p.app.AddBook(title, "Author", "https://books.example.com/"+strings.ToLower(title))
	if err != nil {
		t.Fatalf("add book: %v", err)
	}
	if premium {
		if _, err := p.app.SetBookPremium(b.ID, "1"); err != nil {
			t.Fatalf("set premium: %v", err)
		}
		b.IsPremium = true
	}
	return b
}

func (p *testPortal) get(t *testing.T, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: token})
	}
	rec := httptest.NewRecorder()
	p.srv.Router().ServeHTTP(rec, req)
	return rec
}

func (p *testPortal) post(t *testing.T, path, token string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if token != "" {
		req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: token})
	}
	rec := httptest.NewRecorder()
	p.srv.Router().ServeHTTP(rec, req)
	return rec
}

func responseCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func flashOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	c := responseCookie(rec, flashCookieName)
	if c == nil || c.Value == "" {
		return ""
	}
	raw, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		t.Fatalf("decode flash: %v", err)
	}
	return string(raw)
}

func expectRedirect(t *testing.T, rec *httptest.ResponseRecorder, code int, location string) {
	t.Helper()
	if rec.Code != code {
		t.Fatalf("expected status %d, got %d (body %q)", code, rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Location"); got != location {
		t.Fatalf("expected redirect to %q, got %q", location, got)
	}
}

func TestHealthzAndUnknownPath(t *testing.T) {
	p := newTestPortal(t, nil)

	rec := p.get(t, "/healthz", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("unexpected healthz response: %d %q", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header")
	}

	if rec := p.get(t, "/no-such-page", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHomeRendersLoginForm(t *testing.T) {
	p := newTestPortal(t, nil)

	rec := p.get(t, "/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("expected html, got %q", ct)
	}
	if !strings.Contains(rec.Body.String(), `action="/login"`) {
		t.Fatalf("expected login form in body")
	}
	if rec.Header().Get("Content-Security-Policy") == "" {
		t.Fatalf("expected security headers on pages")
	}
}

func TestFlashShownOnceAndCleared(t *testing.T) {
	p := newTestPortal(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: flashCookieName, Value: base64.RawURLEncoding.EncodeToString([]byte("Hello <there>"))})
	rec := httptest.NewRecorder()
	p.srv.Router().ServeHTTP(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, "Hello &lt;there&gt;") {
		t.Fatalf("expected escaped flash in body, got %q", body)
	}
	c := responseCookie(rec, flashCookieName)
	if c == nil || c.MaxAge >= 0 {
		t.Fatalf("expected flash cookie to be expired, got %+v", c)
	}
}

func TestMemberRoutesRequireSession(t *testing.T) {
	p := newTestPortal(t, nil)

	for _, path := range []string{"/dashboard", "/favorites", "/read-books", "/read/1", "/payment", "/feedback", "/toggle-favorite/1", "/payment-success/1"} {
		expectRedirect(t, p.get(t, path, ""), http.StatusFound, "/")
	}
	expectRedirect(t, p.get(t, "/dashboard", "garbage-token"), http.StatusFound, "/")
}

func TestAdminRoutesRejectMembersSilently(t *testing.T) {
	p := newTestPortal(t, nil)
	b := p.book(t, "Dune", false)
	pending, err := p.app.Register("Pat", "pat@example.com", "secret1")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	_, token := p.member(t, "Mia", "mia@example.com")

	for _, path := range []string{
		"/admin",
		"/admin/users",
		"/approve/" + itoa(pending.ID),
		"/delete-book/" + itoa(b.ID),
		"/toggle-premium/" + itoa(b.ID) + "/1",
	} {
		rec := p.get(t, path, token)
		expectRedirect(t, rec, http.StatusFound, "/")
		if msg := flashOf(t, rec); msg != "" {
			t.Fatalf("expected no flash for %s, got %q", path, msg)
		}
	}
	expectRedirect(t, p.post(t, "/add-book", token, url.Values{"title": {"X"}, "author": {"Y"}, "link": {"https://x.example.com"}}), http.StatusFound, "/")

	got, ok, err := p.store.GetBook(b.ID)
	if err != nil || !ok {
		t.Fatalf("expected book to survive, ok=%v err=%v", ok, err)
	}
	if got.IsPremium {
		t.Fatalf("expected premium flag unchanged")
	}
	u, _, err := p.store.GetUserByID(pending.ID)
	if err != nil || u.Status != domain.StatusPending {
		t.Fatalf("expected user to stay pending, got %q err=%v", u.Status, err)
	}
	books, err := p.store.ListBooks(domain.FilterAll)
	if err != nil || len(books) != 1 {
		t.Fatalf("expected no book added, got %d err=%v", len(books), err)
	}
}

func TestMalformedIDIsNotFound(t *testing.T) {
	p := newTestPortal(t, nil)
	_, token := p.member(t, "Mia", "mia@example.com")

	if rec := p.get(t, "/read/abc", token); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec := p.get(t, "/toggle-favorite/-3", token); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func httptestGet(path, token string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: token})
	}
	return req
}

func serve(p *testPortal, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	p.srv.Router().ServeHTTP(rec, req)
	return rec
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
