// Package services contains server-side business logic: the authentication
// service (signup, login, logout, password change, session verification)
// and the file service for uploaded dumps.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/dumpvault/internal/common"
	"github.com/dmitrijs2005/dumpvault/internal/logging"
	"github.com/dmitrijs2005/dumpvault/internal/server/auth"
	"github.com/dmitrijs2005/dumpvault/internal/server/lockout"
	"github.com/dmitrijs2005/dumpvault/internal/server/password"
	"github.com/dmitrijs2005/dumpvault/internal/server/repositories/repomanager"
)

const (
	violationEmail   = "Invalid email address"
	violationTooLong = "Password must be at most 72 bytes long"
)

// Session is returned by a successful signup or login.
type Session struct {
	Token     string
	AccountID string
	Email     string
}

// Identity is the account a verified session token belongs to.
type Identity struct {
	AccountID string
	Email     string
}

// AuthService owns the credential and session lifecycle. It keeps no state
// between calls; the credential store is the only shared resource.
type AuthService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	codec       *auth.Codec
	hasher      *password.Hasher
	tracker     *lockout.Tracker
	log         logging.Logger
	now         func() time.Time
}

// NewAuthService wires the service. Lockout options tune the tracker; its
// clock always follows the service clock.
func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, codec *auth.Codec, hasher *password.Hasher,
	log logging.Logger, opts ...lockout.Option) *AuthService {
	s := &AuthService{
		db:          db,
		repomanager: m,
		codec:       codec,
		hasher:      hasher,
		log:         log.With("module", "auth"),
		now:         time.Now,
	}
	opts = append(opts, lockout.WithClock(func() time.Time { return s.now() }))
	s.tracker = lockout.NewTracker(m.Users(db), opts...)
	return s
}

// Signup creates the account, or completes one that exists without a
// password, and returns a fresh session.
func (s *AuthService) Signup(ctx context.Context, email, pw string) (*Session, error) {
	var violations []string
	if !validEmail(email) {
		violations = append(violations, violationEmail)
	}
	violations = append(violations, passwordViolations(pw)...)
	if len(violations) > 0 {
		return nil, &ValidationError{Violations: violations}
	}

	repo := s.repomanager.Users(s.db)

	id := uuid.NewString()
	existing, err := repo.GetByEmail(ctx, email)
	switch {
	case err == nil && existing.PasswordSet:
		return nil, ErrAccountExists
	case err == nil:
		id = existing.ID
	case !errors.Is(err, common.ErrorNotFound):
		return nil, fmt.Errorf("lookup account: %w", err)
	}

	digest, err := s.hasher.Hash(ctx, pw)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	account, err := repo.CompleteSignup(ctx, id, email, digest, s.now())
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, ErrAccountExists
		}
		return nil, fmt.Errorf("create account: %w", err)
	}

	s.log.Info(ctx, "account signed up", "account_id", account.ID)
	return s.issue(account.ID, account.Email)
}

// Login checks the password of an existing account, honouring the lockout.
// A locked account is rejected before the password is looked at.
func (s *AuthService) Login(ctx context.Context, email, pw string) (*Session, error) {
	repo := s.repomanager.Users(s.db)

	account, err := repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("lookup account: %w", err)
	}
	if !account.PasswordSet || account.PasswordHash == nil {
		return nil, ErrIncompleteAccount
	}

	status, err := s.tracker.IsLocked(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	if status.Locked {
		s.log.Info(ctx, "login rejected: account locked", "account_id", account.ID, "remaining_minutes", status.RemainingMinutes())
		return nil, &LockedError{Remaining: status.Remaining}
	}

	ok, err := s.hasher.Verify(ctx, pw, *account.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		f, err := s.tracker.RecordFailure(ctx, account.ID)
		if err != nil {
			return nil, err
		}
		if f.Locked {
			s.log.Warn(ctx, "account locked after failed logins", "account_id", account.ID, "attempts", f.Attempts)
			return nil, &LockedError{Remaining: f.LockedUntil.Sub(s.now())}
		}
		s.log.Info(ctx, "login failed", "account_id", account.ID, "attempts", f.Attempts)
		return nil, &InvalidPasswordError{AttemptsRemaining: s.tracker.Threshold() - f.Attempts}
	}

	if err := s.tracker.RecordSuccess(ctx, account.ID); err != nil {
		return nil, err
	}
	if err := repo.TouchLastLogin(ctx, account.ID, s.now()); err != nil {
		return nil, fmt.Errorf("stamp last login: %w", err)
	}

	s.log.Info(ctx, "login succeeded", "account_id", account.ID)
	return s.issue(account.ID, account.Email)
}

// Logout has no server state to drop; the caller clears the cookie.
func (s *AuthService) Logout(ctx context.Context, accountID string) {
	if accountID == "" {
		s.log.Info(ctx, "logout without session")
		return
	}
	s.log.Info(ctx, "logout", "account_id", accountID)
}

// ChangePassword replaces the password of accountID, which must come from a
// verified session.
func (s *AuthService) ChangePassword(ctx context.Context, accountID, current, next string) error {
	repo := s.repomanager.Users(s.db)

	account, err := repo.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("lookup account: %w", err)
	}
	if account.PasswordHash == nil {
		return ErrAccountNotFound
	}

	ok, err := s.hasher.Verify(ctx, current, *account.PasswordHash)
	if err != nil {
		return err
	}
	if !ok {
		return ErrWrongCurrentPassword
	}

	if v := passwordViolations(next); len(v) > 0 {
		return &WeakPasswordError{Violations: v}
	}

	same, err := s.hasher.Verify(ctx, next, *account.PasswordHash)
	if err != nil {
		return err
	}
	if same {
		return ErrSamePassword
	}

	digest, err := s.hasher.Hash(ctx, next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := repo.UpdatePassword(ctx, account.ID, digest, s.now()); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("update password: %w", err)
	}

	s.log.Info(ctx, "password changed", "account_id", account.ID)
	return nil
}

// VerifySession returns the identity inside a valid token.
func (s *AuthService) VerifySession(token string) (Identity, bool) {
	claims, ok := s.codec.Verify(token)
	if !ok {
		return Identity{}, false
	}
	return Identity{AccountID: claims.UserID, Email: claims.Email}, true
}

func (s *AuthService) issue(accountID, email string) (*Session, error) {
	token, err := s.codec.Issue(accountID, email)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &Session{Token: token, AccountID: accountID, Email: email}, nil
}

// validEmail accepts a bare address only, without display name or brackets.
func validEmail(email string) bool {
	if email == "" || !strings.Contains(email, "@") {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

func passwordViolations(pw string) []string {
	v := password.Validate(pw).Messages()
	if len(pw) > password.MaxLength {
		v = append(v, violationTooLong)
	}
	return v
}
