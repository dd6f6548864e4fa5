package app

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"booksphere/pkg/auth"
	"booksphere/pkg/domain"
	"booksphere/pkg/notify"
	"booksphere/pkg/payment"
	"booksphere/pkg/store"
)

const (
	// PremiumDays is the length of one premium purchase.
	PremiumDays = 30
	// DashboardFavorites caps the favorites shown on the dashboard.
	DashboardFavorites = 5
	// AdminFeedbackLimit caps the feedback list on the admin dashboard.
	AdminFeedbackLimit = 20
)

// Config holds the collaborators and settings of the portal core.
type Config struct {
	Store    store.Store
	Sessions store.SessionStore
	// Notifier defaults to notify.Nop.
	Notifier notify.Notifier
	// Payments is optional; without it checkout runs in demo mode.
	Payments payment.Gateway

	PremiumPrice  int64
	PublicBaseURL string
	Logger        *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// App implements registration, login, catalog access, premium entitlement,
// favorites, feedback and administration.
type App struct {
	store         store.Store
	sessions      store.SessionStore
	notifier      notify.Notifier
	payments      payment.Gateway
	premiumPrice  int64
	publicBaseURL string
	logger        *slog.Logger
	now           func() time.Time
}

// New constructs the application.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, errors.New("store required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("session store required")
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notify.Nop{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &App{
		store:         cfg.Store,
		sessions:      cfg.Sessions,
		notifier:      cfg.Notifier,
		payments:      cfg.Payments,
		premiumPrice:  cfg.PremiumPrice,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		logger:        cfg.Logger,
		now:           cfg.Now,
	}, nil
}

// Register creates a pending account. It never logs the user in.
func (a *App) Register(name, email, password string) (domain.User, error) {
	name = strings.TrimSpace(name)
	email = NormalizeEmail(email)
	if err := validateForm(registerForm{Name: name, Email: email}); err != nil {
		return domain.User{}, err
	}
	if err := auth.ValidatePassword(password); err != nil {
		return domain.User{}, err
	}
	exists, err := a.store.HasUserEmail(email)
	if err != nil {
		return domain.User{}, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return domain.User{}, ErrEmailTaken
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	user, err := a.store.CreateUser(domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		Status:       domain.StatusPending,
		CreatedAt:    a.now().UTC(),
	})
	if errors.Is(err, store.ErrDuplicate) {
		// lost a race with a concurrent registration
		return domain.User{}, ErrEmailTaken
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Login verifies credentials of an approved user and opens a session whose
// premium flag is evaluated once, now.
func (a *App) Login(email, password string) (string, domain.Session, error) {
	user, ok, err := a.store.GetUserByEmail(NormalizeEmail(email))
	if err != nil {
		return "", domain.Session{}, fmt.Errorf("lookup user: %w", err)
	}
	if !ok || !user.IsApproved() || !auth.CheckPassword(password, user.PasswordHash) {
		return "", domain.Session{}, ErrInvalidCredentials
	}
	premium, err := a.store.HasActivePremium(user.ID, a.today())
	if err != nil {
		return "", domain.Session{}, fmt.Errorf("check premium: %w", err)
	}
	sess := domain.Session{
		UserID:    user.ID,
		Name:      user.Name,
		Role:      user.Role,
		IsPremium: premium,
	}
	token, err := a.sessions.NewSession(sess)
	if err != nil {
		return "", domain.Session{}, fmt.Errorf("create session: %w", err)
	}
	return token, sess, nil
}

// Session resolves a token. Unknown or invalid tokens report ok=false.
func (a *App) Session(token string) (domain.Session, bool, error) {
	if strings.TrimSpace(token) == "" {
		return domain.Session{}, false, nil
	}
	return a.sessions.GetSession(token)
}

// Logout discards the session behind token. An empty token is a no-op.
func (a *App) Logout(token string) error {
	if strings.TrimSpace(token) == "" {
		return nil
	}
	if err := a.sessions.DeleteSession(token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// EnsureAdmin creates the approved admin account once. An existing account
// with the email is left untouched.
func (a *App) EnsureAdmin(email, name, initKey string) (bool, error) {
	email = NormalizeEmail(email)
	if email == "" || initKey == "" {
		return false, nil
	}
	exists, err := a.store.HasUserEmail(email)
	if err != nil {
		return false, fmt.Errorf("check admin email: %w", err)
	}
	if exists {
		return false, nil
	}
	if strings.TrimSpace(name) == "" {
		name = "Administrator"
	}
	hash, err := auth.HashPassword(initKey)
	if err != nil {
		return false, fmt.Errorf("hash admin key: %w", err)
	}
	_, err = a.store.CreateUser(domain.User{
		Name:         strings.TrimSpace(name),
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
		Status:       domain.StatusApproved,
		CreatedAt:    a.now().UTC(),
	})
	if errors.Is(err, store.ErrDuplicate) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("create admin: %w", err)
	}
	a.logger.Info("admin account created", "email", email)
	return true, nil
}

func (a *App) today() time.Time {
	return domain.Day(a.now())
}
