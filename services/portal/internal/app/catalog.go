package app

import (
	"fmt"
	"strings"

	"booksphere/pkg/domain"
)

// Dashboard is the data behind the member dashboard.
type Dashboard struct {
	Name            string
	IsPremium       bool
	FreeBooks       []domain.Book
	PremiumBooks    []domain.Book
	RecentFavorites []domain.FavoriteBook
}

// ListBooks returns the catalog slice ordered by title.
func (a *App) ListBooks(filter domain.BookFilter) ([]domain.Book, error) {
	books, err := a.store.ListBooks(filter)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return books, nil
}

func (a *App) Dashboard(sess domain.Session) (Dashboard, error) {
	free, err := a.ListBooks(domain.FilterFree)
	if err != nil {
		return Dashboard{}, err
	}
	premium, err := a.ListBooks(domain.FilterPremium)
	if err != nil {
		return Dashboard{}, err
	}
	favs, err := a.ListFavorites(sess.UserID, DashboardFavorites)
	if err != nil {
		return Dashboard{}, err
	}
	return Dashboard{
		Name:            sess.Name,
		IsPremium:       sess.IsPremium,
		FreeBooks:       free,
		PremiumBooks:    premium,
		RecentFavorites: favs,
	}, nil
}

// CanRead reports whether the session may open book. It trusts the
// session snapshot, not the current grant table.
func CanRead(sess domain.Session, book domain.Book) bool {
	return !book.IsPremium || sess.IsPremium
}

// ReadBook returns the book when the session may read it, ErrPremiumRequired
// when it is behind the paywall.
func (a *App) ReadBook(sess domain.Session, bookID int64) (domain.Book, error) {
	book, ok, err := a.store.GetBook(bookID)
	if err != nil {
		return domain.Book{}, fmt.Errorf("get book: %w", err)
	}
	if !ok {
		return domain.Book{}, ErrBookNotFound
	}
	if !CanRead(sess, book) {
		return book, ErrPremiumRequired
	}
	return book, nil
}

// AddBook validates and stores a new free book.
func (a *App) AddBook(title, author, readLink string) (domain.Book, error) {
	form := bookForm{
		Title:    strings.TrimSpace(title),
		Author:   strings.TrimSpace(author),
		ReadLink: strings.TrimSpace(readLink),
	}
	if err := validateForm(form); err != nil {
		return domain.Book{}, err
	}
	book, err := a.store.CreateBook(domain.Book{
		Title:     form.Title,
		Author:    form.Author,
		ReadLink:  form.ReadLink,
		CreatedAt: a.now().UTC(),
	})
	if err != nil {
		return domain.Book{}, fmt.Errorf("create book: %w", err)
	}
	return book, nil
}

// DeleteBook removes a book and returns its title.
func (a *App) DeleteBook(bookID int64) (string, error) {
	book, ok, err := a.store.GetBook(bookID)
	if err != nil {
		return "", fmt.Errorf("get book: %w", err)
	}
	if !ok {
		return "", ErrBookNotFound
	}
	if err := a.store.DeleteBook(bookID); err != nil {
		return "", fmt.Errorf("delete book: %w", err)
	}
	return book.Title, nil
}

// SetBookPremium applies the "0"/"1" flag from the admin toggle route.
func (a *App) SetBookPremium(bookID int64, flag string) (bool, error) {
	premium, err := ParsePremiumFlag(flag)
	if err != nil {
		return false, err
	}
	found, err := a.store.SetBookPremium(bookID, premium)
	if err != nil {
		return false, fmt.Errorf("set book premium: %w", err)
	}
	if !found {
		return false, ErrBookNotFound
	}
	return premium, nil
}
