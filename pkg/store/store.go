package store

import (
	"errors"
	"time"

	"booksphere/pkg/domain"
)

// ErrDuplicate is returned when an insert violates a unique constraint.
var ErrDuplicate = errors.New("store: duplicate key")

// Store defines persistence operations for users, books, favorites,
// premium grants and feedback. Every method is a single statement against
// one table unless noted otherwise.
type Store interface {
	// users
	CreateUser(domain.User) (domain.User, error)
	HasUserEmail(email string) (bool, error)
	GetUserByEmail(email string) (domain.User, bool, error)
	GetUserByID(id int64) (domain.User, bool, error)
	SetUserStatus(id int64, status domain.UserStatus) (bool, error)
	ListUsersByStatus(status domain.UserStatus) ([]domain.User, error)
	ListUsersPendingFirst() ([]domain.User, error)
	CountUsersByStatus(status domain.UserStatus) (int, error)

	// books
	CreateBook(domain.Book) (domain.Book, error)
	GetBook(id int64) (domain.Book, bool, error)
	ListBooks(filter domain.BookFilter) ([]domain.Book, error)
	SetBookPremium(id int64, premium bool) (bool, error)
	// DeleteBook removes the book and the favorites pointing at it.
	DeleteBook(id int64) error

	// favorites
	HasFavorite(userID, bookID int64) (bool, error)
	// AddFavorite ignores an existing (user, book) pair.
	AddFavorite(userID, bookID int64, at time.Time) error
	RemoveFavorite(userID, bookID int64) error
	ListFavorites(userID int64, limit int) ([]domain.FavoriteBook, error)

	// premium
	// AddPremiumGrant reports false when the insert was suppressed: the user
	// still holds a grant expiring on or after today, or the grant's order id
	// was already redeemed. Lapsed grants never block a new one.
	AddPremiumGrant(g domain.PremiumGrant, today time.Time) (bool, error)
	HasActivePremium(userID int64, today time.Time) (bool, error)

	// feedback
	AddFeedback(domain.Feedback) (domain.Feedback, error)
	ListFeedback(limit int) ([]domain.Feedback, error)

	Close() error
}

// SessionStore persists session snapshots behind opaque tokens.
type SessionStore interface {
	NewSession(domain.Session) (string, error)
	GetSession(token string) (domain.Session, bool, error)
	// RefreshSession replaces the snapshot behind token and returns the
	// token the client should hold from now on.
	RefreshSession(token string, s domain.Session) (string, error)
	DeleteSession(token string) error
}
