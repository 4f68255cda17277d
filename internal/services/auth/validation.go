package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validation failures, matched with errors.Is.
var (
	ErrRequiredFields   = errors.New("all fields are required")
	ErrInvalidEmail     = errors.New("invalid email")
	ErrPasswordTooShort = errors.New("password must be at least 8 characters")
	ErrPasswordMismatch = errors.New("passwords do not match")
)

// ValidationError names the first form field that failed.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateLogin checks the sign-in form before anything is sent.
func ValidateLogin(req *LoginRequest) error {
	req.Email = strings.TrimSpace(req.Email)
	return check(req)
}

// ValidateRegister checks the sign-up form: every field filled, a password
// of at least 8 characters and a matching confirmation.
func ValidateRegister(req *RegisterRequest) error {
	req.Email = strings.TrimSpace(req.Email)
	return check(req)
}

func check(form interface{}) error {
	err := validate.Struct(form)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("failed to validate form: %w", err)
	}

	// Empty fields are reported before anything else.
	for _, fe := range fieldErrs {
		if fe.Tag() == "required" {
			return &ValidationError{Field: fe.Field(), Err: ErrRequiredFields}
		}
	}

	fe := fieldErrs[0]
	switch fe.Tag() {
	case "email":
		return &ValidationError{Field: fe.Field(), Err: ErrInvalidEmail}
	case "min":
		return &ValidationError{Field: fe.Field(), Err: ErrPasswordTooShort}
	case "eqfield":
		return &ValidationError{Field: fe.Field(), Err: ErrPasswordMismatch}
	}
	return &ValidationError{Field: fe.Field(), Err: fmt.Errorf("failed %q check", fe.Tag())}
}
