package app

import (
	"errors"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

// newValidator reports fields by their form input name.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("form"); name != "" {
			return name
		}
		return strings.ToLower(f.Name)
	})
	return v
}

type registerForm struct {
	Name  string `form:"name" validate:"required,max=255"`
	Email string `form:"email" validate:"required,email,max=255"`
}

type feedbackForm struct {
	Email   string `form:"email" validate:"required,email,max=255"`
	Message string `form:"message" validate:"required,max=5000"`
	Rating  int    `form:"rating" validate:"min=1,max=5"`
}

type bookForm struct {
	Title    string `form:"title" validate:"required,max=255"`
	Author   string `form:"author" validate:"required,max=255"`
	ReadLink string `form:"link" validate:"required,url,max=1024"`
}

// validateForm runs struct validation and reduces failures to the first
// offending field.
func validateForm(form any) error {
	err := validate.Struct(form)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return &ValidationError{Field: verrs[0].Field(), Rule: verrs[0].Tag()}
	}
	return err
}

// NormalizeEmail trims and lower-cases an address for lookup and storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ParseRating reads a form rating. Empty means 5.
func ParseRating(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 5, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > 5 {
		return 0, ErrInvalidRating
	}
	return n, nil
}

// ParsePremiumFlag reads the 0/1 path segment of the premium toggle.
func ParsePremiumFlag(raw string) (bool, error) {
	switch strings.TrimSpace(raw) {
	case "1":
		return true, nil
	case "0":
		return false, nil
	default:
		return false, ErrInvalidPremiumFlag
	}
}
