package store

import (
	"errors"
	"testing"
	"time"

	"booksphere/pkg/domain"
)

// runStoreContract exercises behavior every Store adapter must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("users", func(t *testing.T) {
		s := newStore(t)
		u, err := s.CreateUser(domain.User{Name: "Ana", Email: "ana@example.com", PasswordHash: "h", Role: domain.RoleUser, Status: domain.StatusPending})
		if err != nil {
			t.Fatalf("create user: %v", err)
		}
		if u.ID <= 0 {
			t.Fatalf("expected assigned id, got %d", u.ID)
		}
		if _, err := s.CreateUser(domain.User{Name: "Dup", Email: "ana@example.com", PasswordHash: "h", Role: domain.RoleUser, Status: domain.StatusPending}); !errors.Is(err, ErrDuplicate) {
			t.Fatalf("expected duplicate email error, got %v", err)
		}
		exists, err := s.HasUserEmail("ana@example.com")
		if err != nil || !exists {
			t.Fatalf("has user email = %v, %v", exists, err)
		}
		got, ok, err := s.GetUserByEmail("ana@example.com")
		if err != nil || !ok || got.ID != u.ID || got.Status != domain.StatusPending {
			t.Fatalf("get by email = %+v ok=%v err=%v", got, ok, err)
		}
		if _, ok, err := s.GetUserByID(u.ID + 1000); err != nil || ok {
			t.Fatalf("expected missing user, ok=%v err=%v", ok, err)
		}

		second, err := s.CreateUser(domain.User{Name: "Bo", Email: "bo@example.com", PasswordHash: "h", Role: domain.RoleUser, Status: domain.StatusPending})
		if err != nil {
			t.Fatalf("create second: %v", err)
		}
		found, err := s.SetUserStatus(u.ID, domain.StatusApproved)
		if err != nil || !found {
			t.Fatalf("set status = %v, %v", found, err)
		}
		if found, err := s.SetUserStatus(second.ID+1000, domain.StatusApproved); err != nil || found {
			t.Fatalf("expected unknown user to report not found, found=%v err=%v", found, err)
		}

		pending, err := s.ListUsersByStatus(domain.StatusPending)
		if err != nil || len(pending) != 1 || pending[0].ID != second.ID {
			t.Fatalf("pending users = %+v err=%v", pending, err)
		}
		all, err := s.ListUsersPendingFirst()
		if err != nil || len(all) != 2 || all[0].ID != second.ID || all[1].ID != u.ID {
			t.Fatalf("pending-first users = %+v err=%v", all, err)
		}
		n, err := s.CountUsersByStatus(domain.StatusApproved)
		if err != nil || n != 1 {
			t.Fatalf("approved count = %d, want 1 (err=%v)", n, err)
		}
	})

	t.Run("books", func(t *testing.T) {
		s := newStore(t)
		mustBook(t, s, "Zebra", false)
		premium := mustBook(t, s, "Atlas", true)
		mustBook(t, s, "Moby", false)

		all, err := s.ListBooks(domain.FilterAll)
		if err != nil {
			t.Fatalf("list books: %v", err)
		}
		if titles(all) != "Atlas,Moby,Zebra" {
			t.Fatalf("titles = %s, want Atlas,Moby,Zebra", titles(all))
		}
		free, _ := s.ListBooks(domain.FilterFree)
		if titles(free) != "Moby,Zebra" {
			t.Fatalf("free titles = %s", titles(free))
		}
		prem, _ := s.ListBooks(domain.FilterPremium)
		if titles(prem) != "Atlas" {
			t.Fatalf("premium titles = %s", titles(prem))
		}

		found, err := s.SetBookPremium(premium.ID, false)
		if err != nil || !found {
			t.Fatalf("set premium = %v, %v", found, err)
		}
		got, ok, err := s.GetBook(premium.ID)
		if err != nil || !ok || got.IsPremium {
			t.Fatalf("get book = %+v ok=%v err=%v", got, ok, err)
		}
		if found, err := s.SetBookPremium(premium.ID+1000, true); err != nil || found {
			t.Fatalf("expected unknown book, found=%v err=%v", found, err)
		}
	})

	t.Run("favorites", func(t *testing.T) {
		s := newStore(t)
		u := mustUser(t, s, "fav@example.com")
		a := mustBook(t, s, "A", false)
		b := mustBook(t, s, "B", false)
		c := mustBook(t, s, "C", true)
		base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

		for i, book := range []domain.Book{a, b, c} {
			if err := s.AddFavorite(u.ID, book.ID, base.Add(time.Duration(i)*time.Minute)); err != nil {
				t.Fatalf("add favorite: %v", err)
			}
		}
		if err := s.AddFavorite(u.ID, a.ID, base.Add(time.Hour)); err != nil {
			t.Fatalf("repeat favorite must be ignored, got %v", err)
		}
		favs, err := s.ListFavorites(u.ID, 0)
		if err != nil {
			t.Fatalf("list favorites: %v", err)
		}
		if len(favs) != 3 || favs[0].ID != c.ID || favs[2].ID != a.ID {
			t.Fatalf("favorites = %+v", favs)
		}
		limited, _ := s.ListFavorites(u.ID, 2)
		if len(limited) != 2 || limited[0].ID != c.ID || limited[1].ID != b.ID {
			t.Fatalf("limited favorites = %+v", limited)
		}

		if err := s.RemoveFavorite(u.ID, b.ID); err != nil {
			t.Fatalf("remove favorite: %v", err)
		}
		if has, _ := s.HasFavorite(u.ID, b.ID); has {
			t.Fatalf("expected favorite removed")
		}
		if err := s.DeleteBook(c.ID); err != nil {
			t.Fatalf("delete book: %v", err)
		}
		if has, _ := s.HasFavorite(u.ID, c.ID); has {
			t.Fatalf("expected favorites of deleted book to go away")
		}
		if _, ok, _ := s.GetBook(c.ID); ok {
			t.Fatalf("expected book deleted")
		}
		favs, _ = s.ListFavorites(u.ID, 0)
		if len(favs) != 1 || favs[0].ID != a.ID {
			t.Fatalf("favorites after delete = %+v", favs)
		}
	})

	t.Run("premium", func(t *testing.T) {
		s := newStore(t)
		u := mustUser(t, s, "prem@example.com")
		today := time.Date(2026, 5, 10, 15, 0, 0, 0, time.UTC)

		if active, _ := s.HasActivePremium(u.ID, today); active {
			t.Fatalf("expected no premium before grant")
		}
		inserted, err := s.AddPremiumGrant(domain.PremiumGrant{UserID: u.ID, ExpiryDate: today.AddDate(0, 0, 30)}, today)
		if err != nil || !inserted {
			t.Fatalf("add grant = %v, %v", inserted, err)
		}
		inserted, err = s.AddPremiumGrant(domain.PremiumGrant{UserID: u.ID, ExpiryDate: today.AddDate(0, 0, 90)}, today.AddDate(0, 0, 30))
		if err != nil || inserted {
			t.Fatalf("second grant must be suppressed, inserted=%v err=%v", inserted, err)
		}
		for _, tc := range []struct {
			day  time.Time
			want bool
		}{
			{today, true},
			{today.AddDate(0, 0, 30), true},
			{today.AddDate(0, 0, 31), false},
		} {
			active, err := s.HasActivePremium(u.ID, tc.day)
			if err != nil {
				t.Fatalf("has active premium: %v", err)
			}
			if active != tc.want {
				t.Fatalf("active on %s = %v, want %v", tc.day.Format("2006-01-02"), active, tc.want)
			}
		}
	})

	t.Run("premium renewal after expiry", func(t *testing.T) {
		s := newStore(t)
		u := mustUser(t, s, "renew@example.com")
		first := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
		if inserted, err := s.AddPremiumGrant(domain.PremiumGrant{UserID: u.ID, OrderID: "order-1", ExpiryDate: first.AddDate(0, 0, 30)}, first); err != nil || !inserted {
			t.Fatalf("first grant = %v, %v", inserted, err)
		}

		later := first.AddDate(0, 0, 40)
		if active, _ := s.HasActivePremium(u.ID, later); active {
			t.Fatalf("expected first grant to have lapsed")
		}
		// a redeemed order never grants twice
		if inserted, err := s.AddPremiumGrant(domain.PremiumGrant{UserID: u.ID, OrderID: "order-1", ExpiryDate: later.AddDate(0, 0, 30)}, later); err != nil || inserted {
			t.Fatalf("reused order must be suppressed, inserted=%v err=%v", inserted, err)
		}
		if inserted, err := s.AddPremiumGrant(domain.PremiumGrant{UserID: u.ID, OrderID: "order-2", ExpiryDate: later.AddDate(0, 0, 30)}, later); err != nil || !inserted {
			t.Fatalf("renewal after expiry = %v, %v", inserted, err)
		}
		if active, err := s.HasActivePremium(u.ID, later); err != nil || !active {
			t.Fatalf("expected renewed premium, active=%v err=%v", active, err)
		}

		// demo grants carry no order and never collide with each other
		other := mustUser(t, s, "demo@example.com")
		if inserted, err := s.AddPremiumGrant(domain.PremiumGrant{UserID: other.ID, ExpiryDate: first.AddDate(0, 0, 30)}, first); err != nil || !inserted {
			t.Fatalf("demo grant = %v, %v", inserted, err)
		}
		if inserted, err := s.AddPremiumGrant(domain.PremiumGrant{UserID: other.ID, ExpiryDate: later.AddDate(0, 0, 30)}, later); err != nil || !inserted {
			t.Fatalf("second demo grant after expiry = %v, %v", inserted, err)
		}
	})

	t.Run("feedback", func(t *testing.T) {
		s := newStore(t)
		u := mustUser(t, s, "fb@example.com")
		base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		for i := 1; i <= 3; i++ {
			if _, err := s.AddFeedback(domain.Feedback{UserID: u.ID, Name: "Fb", Email: u.Email, Message: "m", Rating: i, CreatedAt: base.Add(time.Duration(i) * time.Minute)}); err != nil {
				t.Fatalf("add feedback: %v", err)
			}
		}
		got, err := s.ListFeedback(2)
		if err != nil {
			t.Fatalf("list feedback: %v", err)
		}
		if len(got) != 2 || got[0].Rating != 3 || got[1].Rating != 2 {
			t.Fatalf("feedback = %+v", got)
		}
	})
}

func mustUser(t *testing.T, s Store, email string) domain.User {
	t.Helper()
	u, err := s.CreateUser(domain.User{Name: "User", Email: email, PasswordHash: "h", Role: domain.RoleUser, Status: domain.StatusApproved})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func mustBook(t *testing.T, s Store, title string, premium bool) domain.Book {
	t.Helper()
	b, err := s.CreateBook(domain.Book{Title: title, Author: "Author", ReadLink: "https://example.com/" + title, IsPremium: premium})
	if err != nil {
		t.Fatalf("create book: %v", err)
	}
	return b
}

func titles(books []domain.Book) string {
	out := ""
	for i, b := range books {
		if i > 0 {
			out += ","
		}
		out += b.Title
	}
	return out
}
