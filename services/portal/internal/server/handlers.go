package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"booksphere/pkg/domain"
	"booksphere/services/portal/internal/app"
)

// public

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "login.html", "Login", nil, nil)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.allowRate(w, r, s.loginLimiter, "/") {
		return
	}
	if err := r.ParseForm(); err != nil {
		s.redirectWithFlash(w, r, "/", "Login failed!")
		return
	}
	token, sess, err := s.app.Login(r.PostForm.Get("email"), r.PostForm.Get("password"))
	if err != nil {
		if errors.Is(err, app.ErrInvalidCredentials) {
			s.audit(r, "portal.login", "fail")
		}
		s.fail(w, r, err, "/", "Login failed!")
		return
	}
	s.audit(r, "portal.login", "success", "user_id", sess.UserID)
	s.setSessionCookie(w, token)
	if sess.IsAdmin() {
		redirect(w, r, "/admin")
		return
	}
	redirect(w, r, "/dashboard")
}

func (s *Server) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "register.html", "Register", nil, nil)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if !s.allowRate(w, r, s.registerLimiter, "/register") {
		return
	}
	if err := r.ParseForm(); err != nil {
		s.redirectWithFlash(w, r, "/register", "Registration failed!")
		return
	}
	user, err := s.app.Register(r.PostForm.Get("name"), r.PostForm.Get("email"), r.PostForm.Get("password"))
	if err != nil {
		s.fail(w, r, err, "/register", "Registration failed!")
		return
	}
	s.audit(r, "portal.register", "success", "user_id", user.ID)
	s.redirectWithFlash(w, r, "/", "Registered! Wait for approval.")
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Logout(sessionToken(r)); err != nil {
		s.audit(r, "portal.logout", "fail", "err", err)
	}
	s.clearSessionCookie(w)
	redirect(w, r, "/")
}

// members

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request, sess domain.Session) {
	dash, err := s.app.Dashboard(sess)
	if err != nil {
		s.fail(w, r, err, "/", "Dashboard loading failed!")
		return
	}
	s.render(w, r, "dashboard.html", "Dashboard", &sess, dash)
}

func (s *Server) handleToggleFavorite(w http.ResponseWriter, r *http.Request, sess domain.Session) {
	bookID, ok := pathID(w, r, "bookId")
	if !ok {
		return
	}
	back := backTo(r, "/dashboard")
	added, err := s.app.ToggleFavorite(sess.UserID, bookID)
	if err != nil {
		s.fail(w, r, err, back, "Favorite action failed!")
		return
	}
	if added {
		s.redirectWithFlash(w, r, back, "Added to favorites!")
		return
	}
	s.redirectWithFlash(w, r, back, "Removed from favorites!")
}

func (s *Server) handleFavorites(w http.ResponseWriter, r *http.Request, sess domain.Session) {
	favs, err := s.app.ListFavorites(sess.UserID, 0)
	if err != nil {
		s.fail(w, r, err, "/dashboard", "Favorites loading failed!")
		return
	}
	s.render(w, r, "favorites.html", "My favorites", &sess, favs)
}

// shelfBook marks whether the viewer may open a catalog entry.
type shelfBook struct {
	domain.Book
	Locked bool
}

func (s *Server) handleReadBooks(w http.ResponseWriter, r *http.Request, sess domain.Session) {
	books, err := s.app.ListBooks(domain.FilterAll)
	if err != nil {
		s.fail(w, r, err, "/dashboard", "Books not found!")
		return
	}
	shelf := make([]shelfBook, 0, len(books))
	for _, b := range books {
		shelf = append(shelf, shelfBook{Book: b, Locked: !app.CanRead(sess, b)})
	}
	s.render(w, r, "read_books.html", "Library", &sess, shelf)
}

func (s *Server) handleRead(w http.ResponseWriter, r *http.Request, sess domain.Session) {
	bookID, ok := pathID(w, r, "bookId")
	if !ok {
		return
	}
	book, err := s.app.ReadBook(sess, bookID)
	switch {
	case errors.Is(err, app.ErrPremiumRequired):
		s.fail(w, r, err, "/payment", "")
	case err != nil:
		s.fail(w, r, err, "/dashboard", "Book not found!")
	default:
		http.Redirect(w, r, book.ReadLink, http.StatusFound)
	}
}

func (s *Server) handlePayment(w http.ResponseWriter, r *http.Request, sess domain.Session) {
	page, err := s.app.Checkout(r.Context(), sess)
	if err != nil {
		s.fail(w, r, err, "/dashboard", "Payment page loading failed!")
		return
	}
	s.render(w, r, "payment.html", "Go premium", &sess, page)
}

func (s *Server) handlePaymentSuccess(w http.ResponseWriter, r *http.Request, sess domain.Session) {
	userID, ok := pathID(w, r, "userId")
	if !ok {
		return
	}
	token := sessionToken(r)
	// the gateway appends order_id to the finish URL
	orderID := r.URL.Query().Get("order_id")
	next, err := s.app.CompletePayment(r.Context(), token, sess, userID, orderID)
	if err != nil {
		if errors.Is(err, app.ErrForbidden) {
			s.audit(r, "portal.payment.complete", "fail", "user_id", sess.UserID, "target_user_id", userID)
		}
		if errors.Is(err, app.ErrPaymentNotConfirmed) {
			s.audit(r, "portal.payment.complete", "unconfirmed", "user_id", sess.UserID, "order_id", orderID)
		}
		s.fail(w, r, err, "/dashboard", "Premium activation failed!")
		return
	}
	s.audit(r, "portal.payment.complete", "success", "user_id", sess.UserID, "target_user_id", userID)
	if next != token {
		s.setSessionCookie(w, next)
	}
	s.redirectWithFlash(w, r, "/dashboard", "Premium activated!")
}

func (s *Server) handleFeedbackPage(w http.ResponseWriter, r *http.Request, sess domain.Session) {
	s.render(w, r, "feedback.html", "Feedback", &sess, nil)
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request, sess domain.Session) {
	if err := r.ParseForm(); err != nil {
		s.redirectWithFlash(w, r, "/feedback", "Feedback failed!")
		return
	}
	_, err := s.app.SubmitFeedback(r.Context(), sess, app.FeedbackInput{
		Email:   r.PostForm.Get("email"),
		Message: r.PostForm.Get("message"),
		Rating:  r.PostForm.Get("rating"),
	})
	if err != nil {
		to := "/feedback"
		if app.KindOf(err) == app.KindInternal {
			to = "/dashboard"
		}
		s.fail(w, r, err, to, "Feedback failed!")
		return
	}
	s.redirectWithFlash(w, r, "/dashboard", "Feedback sent!")
}

// admin

type adminUsersView struct {
	domain.UserOverview
	AdminID int64
}

func (s *Server) handleAdmin(w http.ResponseWriter, r *http.Request, sess domain.Session) {
	dash, err := s.app.AdminDashboard()
	if err != nil {
		s.fail(w, r, err, "/", "Admin dashboard failed!")
		return
	}
	s.render(w, r, "admin_dashboard.html", "Admin", &sess, dash)
}

func (s *Server) handleAdminUsers(w http.ResponseWriter, r *http.Request, sess domain.Session) {
	overview, err := s.app.UserOverview()
	if err != nil {
		s.fail(w, r, err, "/admin", "User list could not be loaded.")
		return
	}
	s.render(w, r, "admin_users.html", "Users", &sess, adminUsersView{UserOverview: overview, AdminID: sess.UserID})
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request, sess domain.Session) {
	userID, ok := pathID(w, r, "userId")
	if !ok {
		return
	}
	user, err := s.app.Approve(userID)
	if err != nil {
		s.fail(w, r, err, "/admin", "Approval failed!")
		return
	}
	s.audit(r, "portal.admin.approve", "success", "user_id", sess.UserID, "target_user_id", user.ID)
	s.redirectWithFlash(w, r, "/admin", fmt.Sprintf("User %s approved!", user.Name))
}

func (s *Server) handleAddBook(w http.ResponseWriter, r *http.Request, _ domain.Session) {
	if err := r.ParseForm(); err != nil {
		s.redirectWithFlash(w, r, "/admin", "Add book failed!")
		return
	}
	book, err := s.app.AddBook(r.PostForm.Get("title"), r.PostForm.Get("author"), r.PostForm.Get("link"))
	if err != nil {
		s.fail(w, r, err, "/admin", "Add book failed!")
		return
	}
	s.redirectWithFlash(w, r, "/admin", fmt.Sprintf("'%s' added!", book.Title))
}

func (s *Server) handleDeleteBook(w http.ResponseWriter, r *http.Request, _ domain.Session) {
	bookID, ok := pathID(w, r, "bookId")
	if !ok {
		return
	}
	title, err := s.app.DeleteBook(bookID)
	if err != nil {
		s.fail(w, r, err, "/admin", "Delete failed!")
		return
	}
	s.redirectWithFlash(w, r, "/admin", fmt.Sprintf("'%s' deleted!", title))
}

func (s *Server) handleTogglePremium(w http.ResponseWriter, r *http.Request, _ domain.Session) {
	bookID, ok := pathID(w, r, "bookId")
	if !ok {
		return
	}
	premium, err := s.app.SetBookPremium(bookID, r.PathValue("status"))
	if err != nil {
		s.fail(w, r, err, "/admin", "Premium update failed!")
		return
	}
	if premium {
		s.redirectWithFlash(w, r, "/admin", "Premium enabled!")
		return
	}
	s.redirectWithFlash(w, r, "/admin", "Premium disabled!")
}

// pathID parses a positive integer path value, answering 404 otherwise.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		http.NotFound(w, r)
		return 0, false
	}
	return id, true
}
