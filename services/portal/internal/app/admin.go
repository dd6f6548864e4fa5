package app

import (
	"fmt"

	"booksphere/pkg/domain"
)

// AdminDashboard is the data behind the admin landing page.
type AdminDashboard struct {
	PendingUsers   []domain.User
	Books          []domain.Book
	RecentFeedback []domain.Feedback
}

// Approve marks a user approved. Approving twice is fine.
func (a *App) Approve(userID int64) (domain.User, error) {
	found, err := a.store.SetUserStatus(userID, domain.StatusApproved)
	if err != nil {
		return domain.User{}, fmt.Errorf("approve user: %w", err)
	}
	if !found {
		return domain.User{}, ErrUserNotFound
	}
	user, _, err := a.store.GetUserByID(userID)
	if err != nil {
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func (a *App) PendingUsers() ([]domain.User, error) {
	users, err := a.store.ListUsersByStatus(domain.StatusPending)
	if err != nil {
		return nil, fmt.Errorf("list pending users: %w", err)
	}
	return users, nil
}

// UserOverview lists every user pending-first with status counts.
func (a *App) UserOverview() (domain.UserOverview, error) {
	users, err := a.store.ListUsersPendingFirst()
	if err != nil {
		return domain.UserOverview{}, fmt.Errorf("list users: %w", err)
	}
	pending, err := a.store.CountUsersByStatus(domain.StatusPending)
	if err != nil {
		return domain.UserOverview{}, fmt.Errorf("count pending: %w", err)
	}
	approved, err := a.store.CountUsersByStatus(domain.StatusApproved)
	if err != nil {
		return domain.UserOverview{}, fmt.Errorf("count approved: %w", err)
	}
	return domain.UserOverview{Users: users, PendingCount: pending, ApprovedCount: approved}, nil
}

func (a *App) AdminDashboard() (AdminDashboard, error) {
	pending, err := a.PendingUsers()
	if err != nil {
		return AdminDashboard{}, err
	}
	books, err := a.ListBooks(domain.FilterAll)
	if err != nil {
		return AdminDashboard{}, err
	}
	feedback, err := a.store.ListFeedback(AdminFeedbackLimit)
	if err != nil {
		return AdminDashboard{}, fmt.Errorf("list feedback: %w", err)
	}
	return AdminDashboard{PendingUsers: pending, Books: books, RecentFeedback: feedback}, nil
}
