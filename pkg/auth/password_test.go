package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestHashPasswordAndCheckPasswordBcrypt(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if hash == "" || hash == "s3cret" {
		t.Fatalf("expected opaque non-empty hash, got %q", hash)
	}
	if !CheckPassword("s3cret", hash) {
		t.Fatalf("expected bcrypt password check to pass")
	}
	if CheckPassword("wrong", hash) {
		t.Fatalf("expected bcrypt password check to fail")
	}
	if CheckPassword("s3cret", "") {
		t.Fatalf("empty hash must never verify")
	}
}

func TestValidatePassword(t *testing.T) {
	for _, pw := range []string{"pw", "x", strings.Repeat("a", MaxPasswordBytes)} {
		if err := ValidatePassword(pw); err != nil {
			t.Fatalf("ValidatePassword(%q) = %v, want nil", pw, err)
		}
	}
	if err := ValidatePassword(""); !errors.Is(err, ErrPasswordRequired) {
		t.Fatalf("empty password err = %v", err)
	}
	if err := ValidatePassword(strings.Repeat("a", MaxPasswordBytes+1)); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("73 byte password err = %v", err)
	}
	// the limit counts bytes, not runes
	if err := ValidatePassword(strings.Repeat("ä", 37)); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("74 byte multibyte password err = %v", err)
	}
}

func TestHashPasswordAtByteLimit(t *testing.T) {
	pw := strings.Repeat("k", MaxPasswordBytes)
	hash, err := HashPassword(pw)
	if err != nil {
		t.Fatalf("hash 72 byte password: %v", err)
	}
	if !CheckPassword(pw, hash) {
		t.Fatalf("expected 72 byte password to verify")
	}
}
