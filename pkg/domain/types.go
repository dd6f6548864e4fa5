package domain

import "time"

type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

type UserStatus string

const (
	StatusPending  UserStatus = "pending"
	StatusApproved UserStatus = "approved"
)

// BookFilter selects a slice of the catalog.
type BookFilter string

const (
	FilterAll     BookFilter = "all"
	FilterFree    BookFilter = "free"
	FilterPremium BookFilter = "premium"
)

type User struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Role         UserRole   `json:"role"`
	Status       UserStatus `json:"status"`
	CreatedAt    time.Time  `json:"createdAt"`
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

func (u User) IsApproved() bool {
	return u.Status == StatusApproved
}

type Book struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	ReadLink  string    `json:"readLink"`
	IsPremium bool      `json:"isPremium"`
	CreatedAt time.Time `json:"createdAt"`
}

type Favorite struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	BookID    int64     `json:"bookId"`
	CreatedAt time.Time `json:"createdAt"`
}

// FavoriteBook is a book joined with the time it was favorited.
type FavoriteBook struct {
	Book
	FavoritedAt time.Time `json:"favoritedAt"`
}

// PremiumGrant unlocks premium books through ExpiryDate (inclusive, calendar
// day). OrderID is the gateway order that paid for it, empty in demo mode.
type PremiumGrant struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"userId"`
	OrderID    string    `json:"orderId,omitempty"`
	ExpiryDate time.Time `json:"expiryDate"`
}

type Feedback struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Message   string    `json:"message"`
	Rating    int       `json:"rating"`
	CreatedAt time.Time `json:"createdAt"`
}

// Session is the identity snapshot taken at login. IsPremium is not
// re-evaluated on later requests.
type Session struct {
	UserID    int64    `json:"uid"`
	Name      string   `json:"name"`
	Role      UserRole `json:"role"`
	IsPremium bool     `json:"premium"`
}

func (s Session) IsAdmin() bool {
	return s.Role == RoleAdmin
}

// UserOverview backs the admin users page.
type UserOverview struct {
	Users         []User
	PendingCount  int
	ApprovedCount int
}

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
