package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence. Table names follow the historical
// schema so existing databases keep working.
type UserModel struct {
	ID           int64     `gorm:"primaryKey;autoIncrement"`
	Name         string    `gorm:"size:255;not null"`
	Email        string    `gorm:"size:255;uniqueIndex;not null"`
	PasswordHash string    `gorm:"column:password;size:255;not null"`
	Role         string    `gorm:"size:16;not null;default:'user'"`
	Status       string    `gorm:"size:16;not null;default:'pending';index"`
	CreatedAt    time.Time `gorm:"not null"`
}

func (UserModel) TableName() string { return "users" }

type BookModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	Title     string    `gorm:"size:255;not null;index"`
	Author    string    `gorm:"size:255;not null"`
	ReadLink  string    `gorm:"size:1024;not null"`
	IsPremium bool      `gorm:"not null;default:false"`
	CreatedAt time.Time `gorm:"not null"`
}

func (BookModel) TableName() string { return "books" }

type FavoriteModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	UserID    int64     `gorm:"not null;uniqueIndex:idx_favorites_user_book"`
	BookID    int64     `gorm:"not null;uniqueIndex:idx_favorites_user_book;index"`
	CreatedAt time.Time `gorm:"not null;index"`
}

func (FavoriteModel) TableName() string { return "favorites" }

// PremiumGrantModel rows accumulate per user as grants lapse and are bought
// again. OrderID is NULL for demo grants, so the unique index only binds
// paid orders.
type PremiumGrantModel struct {
	ID         int64          `gorm:"primaryKey;autoIncrement"`
	UserID     int64          `gorm:"not null;index:idx_premium_users_user_expiry"`
	OrderID    *string        `gorm:"size:64;uniqueIndex"`
	ExpiryDate datatypes.Date `gorm:"not null;index:idx_premium_users_user_expiry"`
}

func (PremiumGrantModel) TableName() string { return "premium_users" }

type FeedbackModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	UserID    int64     `gorm:"not null;index"`
	Name      string    `gorm:"size:255;not null"`
	Email     string    `gorm:"size:255;not null"`
	Message   string    `gorm:"type:text;not null"`
	Rating    int       `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null;index"`
}

func (FeedbackModel) TableName() string { return "feedback" }

// favoriteRow is the result shape of the favorites/books join.
type favoriteRow struct {
	BookModel
	FavoritedAt time.Time
}
