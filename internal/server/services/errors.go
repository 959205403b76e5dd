package services

import (
	"errors"
	"strings"
	"time"

	"github.com/dmitrijs2005/dumpvault/internal/server/lockout"
)

var (
	ErrAccountExists        = errors.New("account already exists")
	ErrAccountNotFound      = errors.New("account not found")
	ErrIncompleteAccount    = errors.New("account has no password set")
	ErrWrongCurrentPassword = errors.New("current password is incorrect")
	ErrSamePassword         = errors.New("new password must differ from the current one")

	ErrValidation      = errors.New("validation failed")
	ErrWeakPassword    = errors.New("password does not meet requirements")
	ErrAccountLocked   = errors.New("account locked")
	ErrInvalidPassword = errors.New("invalid password")
)

// ValidationError lists every problem found in signup input.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return ErrValidation.Error() + ": " + strings.Join(e.Violations, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// WeakPasswordError is returned when a new password fails the policy.
type WeakPasswordError struct {
	Violations []string
}

func (e *WeakPasswordError) Error() string {
	return ErrWeakPassword.Error() + ": " + strings.Join(e.Violations, "; ")
}

func (e *WeakPasswordError) Is(target error) bool { return target == ErrWeakPassword }

// LockedError is returned while an account is locked out.
type LockedError struct {
	Remaining time.Duration
}

func (e *LockedError) Error() string { return ErrAccountLocked.Error() }

func (e *LockedError) Is(target error) bool { return target == ErrAccountLocked }

// RemainingMinutes is the remaining lockout rounded up to whole minutes.
func (e *LockedError) RemainingMinutes() int { return lockout.CeilMinutes(e.Remaining) }

// InvalidPasswordError is returned on a wrong password that did not lock the account.
type InvalidPasswordError struct {
	AttemptsRemaining int
}

func (e *InvalidPasswordError) Error() string { return ErrInvalidPassword.Error() }

func (e *InvalidPasswordError) Is(target error) bool { return target == ErrInvalidPassword }
