package store

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"booksphere/pkg/domain"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisSessionStoreLifecycle(t *testing.T) {
	mr, client := newTestRedis(t)
	s := NewRedisSessionStore(client, "test:session", time.Hour)
	want := domain.Session{UserID: 11, Name: "Cy", Role: domain.RoleUser}

	token, err := s.NewSession(want)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	got, ok, err := s.GetSession(token)
	if err != nil || !ok || got != want {
		t.Fatalf("get session = %+v ok=%v err=%v", got, ok, err)
	}
	if ttl := mr.TTL("test:session:" + token); ttl != time.Hour {
		t.Fatalf("ttl = %v, want 1h", ttl)
	}

	mr.FastForward(10 * time.Minute)
	want.IsPremium = true
	same, err := s.RefreshSession(token, want)
	if err != nil {
		t.Fatalf("refresh session: %v", err)
	}
	if same != token {
		t.Fatalf("refresh must keep token, got %q want %q", same, token)
	}
	if ttl := mr.TTL("test:session:" + token); ttl != 50*time.Minute {
		t.Fatalf("ttl after refresh = %v, want 50m", ttl)
	}
	got, _, _ = s.GetSession(token)
	if !got.IsPremium {
		t.Fatalf("expected refreshed snapshot, got %+v", got)
	}

	if err := s.DeleteSession(token); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, ok, err := s.GetSession(token); ok || err != nil {
		t.Fatalf("expected session gone, ok=%v err=%v", ok, err)
	}
}

func TestRedisSessionStoreExpires(t *testing.T) {
	mr, client := newTestRedis(t)
	s := NewRedisSessionStore(client, "", time.Minute)
	token, err := s.NewSession(domain.Session{UserID: 12})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	mr.FastForward(2 * time.Minute)
	if _, ok, _ := s.GetSession(token); ok {
		t.Fatalf("expected expired session")
	}
	next, err := s.RefreshSession(token, domain.Session{UserID: 12, IsPremium: true})
	if err != nil {
		t.Fatalf("refresh expired session: %v", err)
	}
	if next == token {
		t.Fatalf("expected a fresh token for an expired session")
	}
}

func TestRedisTokenRevoker(t *testing.T) {
	mr, client := newTestRedis(t)
	r := NewRedisTokenRevoker(client, "")
	if err := r.Revoke("jti-1", time.Minute); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if revoked, err := r.IsRevoked("jti-1"); err != nil || !revoked {
		t.Fatalf("revoked = %v, %v", revoked, err)
	}
	mr.FastForward(2 * time.Minute)
	if revoked, _ := r.IsRevoked("jti-1"); revoked {
		t.Fatalf("expected revocation to lapse with the token")
	}
}

func TestMemoryTokenRevokerExpires(t *testing.T) {
	r := NewMemoryTokenRevoker()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }
	if err := r.Revoke("jti-2", time.Minute); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if revoked, _ := r.IsRevoked("jti-2"); !revoked {
		t.Fatalf("expected revoked")
	}
	now = now.Add(2 * time.Minute)
	if revoked, _ := r.IsRevoked("jti-2"); revoked {
		t.Fatalf("expected revocation to lapse")
	}
}
