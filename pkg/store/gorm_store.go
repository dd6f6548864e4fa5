package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/datatypes"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"booksphere/pkg/domain"
)

const migrateLockID int64 = 73217321

// Supported relational drivers.
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

type GormStoreOptions struct {
	ConnectAttempts int
	ConnectDelay    time.Duration
	LogLevel        gormlogger.LogLevel
}

type GormStoreOption func(*GormStoreOptions)

// WithConnectRetry sets how often opening the database is retried on
// transient failures and the pause between attempts.
func WithConnectRetry(attempts int, delay time.Duration) GormStoreOption {
	return func(opts *GormStoreOptions) {
		opts.ConnectAttempts = attempts
		opts.ConnectDelay = delay
	}
}

// WithLogLevel overrides the GORM logger level (default Warn).
func WithLogLevel(level gormlogger.LogLevel) GormStoreOption {
	return func(opts *GormStoreOptions) {
		opts.LogLevel = level
	}
}

// GormStore implements Store using GORM over Postgres, MySQL or SQLite.
type GormStore struct {
	db     *gorm.DB
	driver string
}

// NewGormStore opens the DB for driver and runs auto-migrations.
func NewGormStore(driver, dsn string, options ...GormStoreOption) (*GormStore, error) {
	opts := GormStoreOptions{
		ConnectAttempts: 3,
		ConnectDelay:    time.Second,
		LogLevel:        gormlogger.Warn,
	}
	for _, option := range options {
		if option != nil {
			option(&opts)
		}
	}
	driver = strings.ToLower(strings.TrimSpace(driver))
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("database dsn required")
	}
	dialect, err := dialector(driver)
	if err != nil {
		return nil, err
	}

	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  opts.LogLevel,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	gormCfg := &gorm.Config{Logger: gormLog, TranslateError: true}
	db, err := openWithRetry(func() (*gorm.DB, error) {
		return gorm.Open(dialect(dsn), gormCfg)
	}, opts.ConnectAttempts, opts.ConnectDelay)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if driver == DriverSQLite {
		// one writer; also keeps a ":memory:" database alive across calls
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("get sql db: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	migrate := func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(&UserModel{}, &BookModel{}, &FavoriteModel{}, &PremiumGrantModel{}, &FeedbackModel{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}
	if driver == DriverPostgres {
		err = withMigrationLock(db, migrate)
	} else {
		err = migrate(db)
	}
	if err != nil {
		return nil, err
	}
	return &GormStore{db: db, driver: driver}, nil
}

func dialector(driver string) (func(string) gorm.Dialector, error) {
	switch driver {
	case DriverPostgres:
		return postgres.Open, nil
	case DriverMySQL:
		return mysql.Open, nil
	case DriverSQLite:
		return sqlite.Open, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

func openWithRetry(open func() (*gorm.DB, error), attempts int, delay time.Duration) (*gorm.DB, error) {
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		db, err := open()
		if err == nil {
			return db, nil
		}
		lastErr = err
		if !isTransient(err) || attempt == attempts {
			break
		}
		slog.Warn("database open failed, retrying", "attempt", attempt, "err", err)
		time.Sleep(delay)
	}
	return nil, lastErr
}

// isTransient reports whether err looks like a lock or connection hiccup
// worth retrying.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"lock wait timeout",
		"connection refused",
		"too many connections",
		"database is locked",
		"i/o timeout",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// Close releases the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreateUser inserts a user and returns it with its assigned id.
func (s *GormStore) CreateUser(u domain.User) (domain.User, error) {
	model := userToModel(u)
	if err := s.db.Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.User{}, ErrDuplicate
		}
		return domain.User{}, err
	}
	return userFromModel(model), nil
}

// HasUserEmail checks if email exists.
func (s *GormStore) HasUserEmail(email string) (bool, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("email = ?", email).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id int64) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// SetUserStatus updates status and reports whether the user exists.
func (s *GormStore) SetUserStatus(id int64, status domain.UserStatus) (bool, error) {
	exists, err := s.exists(&UserModel{}, id)
	if err != nil || !exists {
		return false, err
	}
	if err := s.db.Model(&UserModel{}).Where("id = ?", id).Update("status", string(status)).Error; err != nil {
		return false, err
	}
	return true, nil
}

// ListUsersByStatus returns users with status, oldest first.
func (s *GormStore) ListUsersByStatus(status domain.UserStatus) ([]domain.User, error) {
	return s.listUsers("id ASC", "status = ?", string(status))
}

// ListUsersPendingFirst returns every user, pending ones first, newest first within each group.
func (s *GormStore) ListUsersPendingFirst() ([]domain.User, error) {
	return s.listUsers(fmt.Sprintf("CASE WHEN status = '%s' THEN 0 ELSE 1 END, id DESC", domain.StatusPending))
}

func (s *GormStore) listUsers(order string, conds ...any) ([]domain.User, error) {
	var models []UserModel
	tx := s.db.Order(order)
	if len(conds) > 0 {
		tx = tx.Where(conds[0], conds[1:]...)
	}
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.User, 0, len(models))
	for _, m := range models {
		res = append(res, userFromModel(m))
	}
	return res, nil
}

// CountUsersByStatus returns number of users with status.
func (s *GormStore) CountUsersByStatus(status domain.UserStatus) (int, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Where("status = ?", string(status)).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// CreateBook inserts a book and returns it with its assigned id.
func (s *GormStore) CreateBook(b domain.Book) (domain.Book, error) {
	model := bookToModel(b)
	if err := s.db.Create(&model).Error; err != nil {
		return domain.Book{}, err
	}
	return bookFromModel(model), nil
}

// GetBook retrieves a book.
func (s *GormStore) GetBook(id int64) (domain.Book, bool, error) {
	var model BookModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Book{}, false, nil
		}
		return domain.Book{}, false, err
	}
	return bookFromModel(model), true, nil
}

// ListBooks returns books matching filter ordered by title.
func (s *GormStore) ListBooks(filter domain.BookFilter) ([]domain.Book, error) {
	var models []BookModel
	tx := s.db.Order("title ASC").Order("id ASC")
	switch filter {
	case domain.FilterFree:
		tx = tx.Where("is_premium = ?", false)
	case domain.FilterPremium:
		tx = tx.Where("is_premium = ?", true)
	}
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Book, 0, len(models))
	for _, m := range models {
		res = append(res, bookFromModel(m))
	}
	return res, nil
}

// SetBookPremium flips the premium flag and reports whether the book exists.
func (s *GormStore) SetBookPremium(id int64, premium bool) (bool, error) {
	exists, err := s.exists(&BookModel{}, id)
	if err != nil || !exists {
		return false, err
	}
	if err := s.db.Model(&BookModel{}).Where("id = ?", id).Update("is_premium", premium).Error; err != nil {
		return false, err
	}
	return true, nil
}

// DeleteBook removes the book and its favorites.
func (s *GormStore) DeleteBook(id int64) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&FavoriteModel{}, "book_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&BookModel{}, "id = ?", id).Error; err != nil {
			return err
		}
		return nil
	})
}

// HasFavorite reports whether the (user, book) pair is favorited.
func (s *GormStore) HasFavorite(userID, bookID int64) (bool, error) {
	var count int64
	if err := s.db.Model(&FavoriteModel{}).
		Where("user_id = ? AND book_id = ?", userID, bookID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// AddFavorite inserts the pair, ignoring a conflicting existing row.
func (s *GormStore) AddFavorite(userID, bookID int64, at time.Time) error {
	model := FavoriteModel{UserID: userID, BookID: bookID, CreatedAt: at.UTC()}
	return s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&model).Error
}

// RemoveFavorite deletes the pair if present.
func (s *GormStore) RemoveFavorite(userID, bookID int64) error {
	return s.db.Delete(&FavoriteModel{}, "user_id = ? AND book_id = ?", userID, bookID).Error
}

// ListFavorites returns favorited books newest first; limit <= 0 means all.
func (s *GormStore) ListFavorites(userID int64, limit int) ([]domain.FavoriteBook, error) {
	var rows []favoriteRow
	tx := s.db.Table("favorites AS f").
		Select("b.*, f.created_at AS favorited_at").
		Joins("JOIN books AS b ON b.id = f.book_id").
		Where("f.user_id = ?", userID).
		Order("f.created_at DESC").
		Order("f.id DESC")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	if err := tx.Scan(&rows).Error; err != nil {
		return nil, err
	}
	res := make([]domain.FavoriteBook, 0, len(rows))
	for _, r := range rows {
		res = append(res, domain.FavoriteBook{Book: bookFromModel(r.BookModel), FavoritedAt: r.FavoritedAt.UTC()})
	}
	return res, nil
}

// AddPremiumGrant inserts a grant unless the user still holds an unexpired
// one or the order was already redeemed.
func (s *GormStore) AddPremiumGrant(g domain.PremiumGrant, today time.Time) (bool, error) {
	model := PremiumGrantModel{UserID: g.UserID, ExpiryDate: datatypes.Date(domain.Day(g.ExpiryDate))}
	if g.OrderID != "" {
		orderID := g.OrderID
		model.OrderID = &orderID
	}
	inserted := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var active int64
		if err := tx.Model(&PremiumGrantModel{}).
			Where("user_id = ? AND expiry_date >= ?", g.UserID, datatypes.Date(domain.Day(today))).
			Count(&active).Error; err != nil {
			return err
		}
		if active > 0 {
			return nil
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&model)
		if res.Error != nil {
			return res.Error
		}
		inserted = res.RowsAffected > 0
		return nil
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return inserted, nil
}

// HasActivePremium reports whether any grant expires on or after today.
func (s *GormStore) HasActivePremium(userID int64, today time.Time) (bool, error) {
	var count int64
	if err := s.db.Model(&PremiumGrantModel{}).
		Where("user_id = ? AND expiry_date >= ?", userID, datatypes.Date(domain.Day(today))).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// AddFeedback appends a feedback row.
func (s *GormStore) AddFeedback(f domain.Feedback) (domain.Feedback, error) {
	model := feedbackToModel(f)
	if err := s.db.Create(&model).Error; err != nil {
		return domain.Feedback{}, err
	}
	return feedbackFromModel(model), nil
}

// ListFeedback returns the newest feedback first; limit <= 0 means all.
func (s *GormStore) ListFeedback(limit int) ([]domain.Feedback, error) {
	var models []FeedbackModel
	tx := s.db.Order("created_at DESC").Order("id DESC")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Feedback, 0, len(models))
	for _, m := range models {
		res = append(res, feedbackFromModel(m))
	}
	return res, nil
}

func (s *GormStore) exists(model any, id int64) (bool, error) {
	var count int64
	if err := s.db.Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		Status:       string(u.Status),
		CreatedAt:    u.CreatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Name:         m.Name,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Role:         domain.UserRole(m.Role),
		Status:       domain.UserStatus(m.Status),
		CreatedAt:    m.CreatedAt.UTC(),
	}
}

func bookToModel(b domain.Book) BookModel {
	return BookModel{
		ID:        b.ID,
		Title:     b.Title,
		Author:    b.Author,
		ReadLink:  b.ReadLink,
		IsPremium: b.IsPremium,
		CreatedAt: b.CreatedAt,
	}
}

func bookFromModel(m BookModel) domain.Book {
	return domain.Book{
		ID:        m.ID,
		Title:     m.Title,
		Author:    m.Author,
		ReadLink:  m.ReadLink,
		IsPremium: m.IsPremium,
		CreatedAt: m.CreatedAt.UTC(),
	}
}

func feedbackToModel(f domain.Feedback) FeedbackModel {
	return FeedbackModel{
		ID:        f.ID,
		UserID:    f.UserID,
		Name:      f.Name,
		Email:     f.Email,
		Message:   f.Message,
		Rating:    f.Rating,
		CreatedAt: f.CreatedAt,
	}
}

func feedbackFromModel(m FeedbackModel) domain.Feedback {
	return domain.Feedback{
		ID:        m.ID,
		UserID:    m.UserID,
		Name:      m.Name,
		Email:     m.Email,
		Message:   m.Message,
		Rating:    m.Rating,
		CreatedAt: m.CreatedAt.UTC(),
	}
}
