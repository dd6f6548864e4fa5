package app

import (
	"errors"
	"fmt"

	"booksphere/pkg/auth"
)

var (
	// ErrInvalidCredentials covers unknown emails, wrong passwords and
	// accounts still waiting for approval alike.
	ErrInvalidCredentials = errors.New("invalid email or password")

	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidRating      = errors.New("rating must be a whole number from 1 to 5")
	ErrInvalidPremiumFlag = errors.New("premium status must be 0 or 1")
	ErrPremiumRequired    = errors.New("premium membership required")
	ErrForbidden          = errors.New("not allowed")

	// ErrPaymentNotConfirmed means the gateway does not report the order as
	// paid by this user for the premium price.
	ErrPaymentNotConfirmed = errors.New("payment not confirmed")

	ErrBookNotFound = errors.New("book not found")
	ErrUserNotFound = errors.New("user not found")
)

// Kind classifies an error for presentation.
type Kind int

const (
	KindNone Kind = iota
	KindValidation
	KindAuth
	KindNotFound
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// ValidationError reports the first form field that failed validation.
type ValidationError struct {
	Field string
	Rule  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s (%s)", e.Field, e.Rule)
}

// KindOf maps err to its presentation kind. Unknown errors are internal.
func KindOf(err error) Kind {
	var verr *ValidationError
	switch {
	case err == nil:
		return KindNone
	case errors.As(err, &verr),
		errors.Is(err, ErrEmailTaken),
		errors.Is(err, ErrInvalidRating),
		errors.Is(err, ErrInvalidPremiumFlag),
		errors.Is(err, auth.ErrPasswordRequired),
		errors.Is(err, auth.ErrPasswordTooLong):
		return KindValidation
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrPremiumRequired),
		errors.Is(err, ErrForbidden),
		errors.Is(err, ErrPaymentNotConfirmed):
		return KindAuth
	case errors.Is(err, ErrBookNotFound), errors.Is(err, ErrUserNotFound):
		return KindNotFound
	default:
		return KindInternal
	}
}
