package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/dumpvault/internal/server/models"
)

// Repository is the credential store. Every counter mutation is a single
// statement so concurrent requests for one account serialize in the store.
type Repository interface {
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	GetByID(ctx context.Context, id string) (*models.Account, error)

	// CompleteSignup creates the account or completes a shell row that has
	// no password yet. Returns common.ErrorAlreadyExists if the email
	// already has a password.
	CompleteSignup(ctx context.Context, id, email, passwordHash string, now time.Time) (*models.Account, error)
	UpdatePassword(ctx context.Context, id, passwordHash string, now time.Time) error
	TouchLastLogin(ctx context.Context, id string, now time.Time) error

	// RecordFailedAttempt increments the failed-attempt counter and, when the
	// incremented value reaches threshold, locks the account until lockUntil
	// and resets the counter. It returns the incremented value and the
	// resulting lockout_until. An account still locked at now is not
	// counted: it returns 0 and the unchanged lockout_until.
	RecordFailedAttempt(ctx context.Context, id string, threshold int, now, lockUntil time.Time) (int, *time.Time, error)
	ResetFailedAttempts(ctx context.Context, id string) error
	GetLockoutUntil(ctx context.Context, id string) (*time.Time, error)
	// ClearExpiredLockout clears the lockout only if it has elapsed at now.
	ClearExpiredLockout(ctx context.Context, id string, now time.Time) error
}
