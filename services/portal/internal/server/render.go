package server

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"booksphere/internal/util"
	"booksphere/pkg/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageFiles = []string{
	"login.html",
	"register.html",
	"dashboard.html",
	"favorites.html",
	"read_books.html",
	"payment.html",
	"feedback.html",
	"admin_dashboard.html",
	"admin_users.html",
}

var templateFuncs = template.FuncMap{
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.UTC().Format("2006-01-02")
	},
	"rupiah": func(amount int64) string {
		return fmt.Sprintf("Rp %d", amount)
	},
}

// pageData is handed to every template.
type pageData struct {
	Title   string
	Flash   string
	Session *domain.Session
	Data    any
}

func parsePages() (map[string]*template.Template, error) {
	pages := make(map[string]*template.Template, len(pageFiles))
	for _, name := range pageFiles {
		t, err := template.New(name).Funcs(templateFuncs).ParseFS(templateFS, "templates/layout.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		pages[name] = t
	}
	return pages, nil
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, page, title string, sess *domain.Session, data any) {
	t, ok := s.pages[page]
	if !ok {
		util.LoggerFromContext(r.Context()).Error("unknown template", "page", page)
		http.Error(w, msgGenericFailure, http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	err := t.ExecuteTemplate(&buf, "layout", pageData{
		Title:   title,
		Flash:   s.takeFlash(w, r),
		Session: sess,
		Data:    data,
	})
	if err != nil {
		util.LoggerFromContext(r.Context()).Error("render template", "page", page, "err", err)
		http.Error(w, msgGenericFailure, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = buf.WriteTo(w)
}
