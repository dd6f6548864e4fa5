package store

import (
	"sort"
	"sync"
	"time"

	"booksphere/pkg/domain"
)

// MemoryStore keeps all records in-process. Used by tests and local runs
// without a database.
type MemoryStore struct {
	mu        sync.RWMutex
	nextID    int64
	users     map[int64]domain.User
	email     map[string]int64 // email -> user ID
	books     map[int64]domain.Book
	favorites []domain.Favorite
	grants    []domain.PremiumGrant
	feedback  []domain.Feedback
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[int64]domain.User),
		email:   make(map[string]int64),
		books: make(map[int64]domain.Book),
	}
}

func (m *MemoryStore) newID() int64 {
	m.nextID++
	return m.nextID
}

func (m *MemoryStore) CreateUser(u domain.User) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.email[u.Email]; ok {
		return domain.User{}, ErrDuplicate
	}
	if u.Role == "" {
		u.Role = domain.RoleUser
	}
	if u.Status == "" {
		u.Status = domain.StatusPending
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	u.ID = m.newID()
	m.users[u.ID] = u
	m.email[u.Email] = u.ID
	return u, nil
}

func (m *MemoryStore) HasUserEmail(email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.email[email]
	return ok, nil
}

func (m *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.email[email]
	if !ok {
		return domain.User{}, false, nil
	}
	u, ok := m.users[id]
	return u, ok, nil
}

func (m *MemoryStore) GetUserByID(id int64) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

func (m *MemoryStore) SetUserStatus(id int64, status domain.UserStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return false, nil
	}
	u.Status = status
	m.users[id] = u
	return true, nil
}

func (m *MemoryStore) ListUsersByStatus(status domain.UserStatus) ([]domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.User, 0)
	for _, u := range m.users {
		if u.Status == status {
			res = append(res, u)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (m *MemoryStore) ListUsersPendingFirst() ([]domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.User, 0, len(m.users))
	for _, u := range m.users {
		res = append(res, u)
	}
	sort.Slice(res, func(i, j int) bool {
		pi, pj := res[i].Status == domain.StatusPending, res[j].Status == domain.StatusPending
		if pi != pj {
			return pi
		}
		return res[i].ID > res[j].ID
	})
	return res, nil
}

func (m *MemoryStore) CountUsersByStatus(status domain.UserStatus) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, u := range m.users {
		if u.Status == status {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) CreateBook(b domain.Book) (domain.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	b.ID = m.newID()
	m.books[b.ID] = b
	return b, nil
}

func (m *MemoryStore) GetBook(id int64) (domain.Book, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.books[id]
	return b, ok, nil
}

// ListBooks returns books matching filter ordered by title.
func (m *MemoryStore) ListBooks(filter domain.BookFilter) ([]domain.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Book, 0, len(m.books))
	for _, b := range m.books {
		switch filter {
		case domain.FilterFree:
			if b.IsPremium {
				continue
			}
		case domain.FilterPremium:
			if !b.IsPremium {
				continue
			}
		}
		res = append(res, b)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Title != res[j].Title {
			return res[i].Title < res[j].Title
		}
		return res[i].ID < res[j].ID
	})
	return res, nil
}

func (m *MemoryStore) SetBookPremium(id int64, premium bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.books[id]
	if !ok {
		return false, nil
	}
	b.IsPremium = premium
	m.books[id] = b
	return true, nil
}

func (m *MemoryStore) DeleteBook(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.books, id)
	kept := m.favorites[:0]
	for _, f := range m.favorites {
		if f.BookID != id {
			kept = append(kept, f)
		}
	}
	m.favorites = kept
	return nil
}

func (m *MemoryStore) HasFavorite(userID, bookID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.favoriteIndex(userID, bookID) >= 0, nil
}

func (m *MemoryStore) favoriteIndex(userID, bookID int64) int {
	for i, f := range m.favorites {
		if f.UserID == userID && f.BookID == bookID {
			return i
		}
	}
	return -1
}

func (m *MemoryStore) AddFavorite(userID, bookID int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.favoriteIndex(userID, bookID) >= 0 {
		return nil
	}
	m.favorites = append(m.favorites, domain.Favorite{
		ID:        m.newID(),
		UserID:    userID,
		BookID:    bookID,
		CreatedAt: at.UTC(),
	})
	return nil
}

func (m *MemoryStore) RemoveFavorite(userID, bookID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.favoriteIndex(userID, bookID); i >= 0 {
		m.favorites = append(m.favorites[:i], m.favorites[i+1:]...)
	}
	return nil
}

// ListFavorites returns favorited books newest first; limit <= 0 means all.
func (m *MemoryStore) ListFavorites(userID int64, limit int) ([]domain.FavoriteBook, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mine := make([]domain.Favorite, 0)
	for _, f := range m.favorites {
		if f.UserID == userID {
			mine = append(mine, f)
		}
	}
	sort.Slice(mine, func(i, j int) bool {
		if !mine[i].CreatedAt.Equal(mine[j].CreatedAt) {
			return mine[i].CreatedAt.After(mine[j].CreatedAt)
		}
		return mine[i].ID > mine[j].ID
	})
	res := make([]domain.FavoriteBook, 0, len(mine))
	for _, f := range mine {
		b, ok := m.books[f.BookID]
		if !ok {
			continue
		}
		res = append(res, domain.FavoriteBook{Book: b, FavoritedAt: f.CreatedAt})
		if limit > 0 && len(res) == limit {
			break
		}
	}
	return res, nil
}

func (m *MemoryStore) AddPremiumGrant(g domain.PremiumGrant, today time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.activeGrantLocked(g.UserID, today) {
		return false, nil
	}
	if g.OrderID != "" {
		for _, existing := range m.grants {
			if existing.OrderID == g.OrderID {
				return false, nil
			}
		}
	}
	g.ID = m.newID()
	g.ExpiryDate = domain.Day(g.ExpiryDate)
	m.grants = append(m.grants, g)
	return true, nil
}

func (m *MemoryStore) HasActivePremium(userID int64, today time.Time) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeGrantLocked(userID, today), nil
}

func (m *MemoryStore) activeGrantLocked(userID int64, today time.Time) bool {
	day := domain.Day(today)
	for _, g := range m.grants {
		if g.UserID == userID && !g.ExpiryDate.Before(day) {
			return true
		}
	}
	return false
}

func (m *MemoryStore) AddFeedback(f domain.Feedback) (domain.Feedback, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	f.ID = m.newID()
	m.feedback = append(m.feedback, f)
	return f, nil
}

// ListFeedback returns the newest feedback first; limit <= 0 means all.
func (m *MemoryStore) ListFeedback(limit int) ([]domain.Feedback, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Feedback, 0, len(m.feedback))
	for i := len(m.feedback) - 1; i >= 0; i-- {
		res = append(res, m.feedback[i])
		if limit > 0 && len(res) == limit {
			break
		}
	}
	return res, nil
}

func (m *MemoryStore) Close() error { return nil }
