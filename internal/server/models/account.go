package models

import "time"

// Account is a user identity with at most one credential set.
//
// PasswordSet is true iff PasswordHash is non-nil. FailedAttempts is reset
// to 0 whenever LockoutUntil is set or a login succeeds.
type Account struct {
	ID                 string
	Email              string
	PasswordHash       *string
	PasswordSet        bool
	FailedAttempts     int
	LockoutUntil       *time.Time
	LastPasswordChange *time.Time
	LastLogin          *time.Time
	CreatedAt          time.Time
}
