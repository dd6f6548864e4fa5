package app

import (
	"fmt"

	"booksphere/pkg/domain"
)

// ToggleFavorite flips the (user, book) favorite and reports whether the
// book is a favorite afterwards. Check and write are separate statements;
// a concurrent toggle can be lost but never duplicates a row.
func (a *App) ToggleFavorite(userID, bookID int64) (bool, error) {
	_, ok, err := a.store.GetBook(bookID)
	if err != nil {
		return false, fmt.Errorf("get book: %w", err)
	}
	if !ok {
		return false, ErrBookNotFound
	}
	has, err := a.store.HasFavorite(userID, bookID)
	if err != nil {
		return false, fmt.Errorf("check favorite: %w", err)
	}
	if has {
		if err := a.store.RemoveFavorite(userID, bookID); err != nil {
			return false, fmt.Errorf("remove favorite: %w", err)
		}
		return false, nil
	}
	if err := a.store.AddFavorite(userID, bookID, a.now().UTC()); err != nil {
		return false, fmt.Errorf("add favorite: %w", err)
	}
	return true, nil
}

// ListFavorites returns favorites newest first; limit 0 means all.
func (a *App) ListFavorites(userID int64, limit int) ([]domain.FavoriteBook, error) {
	favs, err := a.store.ListFavorites(userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	return favs, nil
}
