// Package lockout tracks failed login attempts per account and locks the
// account for a fixed window once the threshold is reached.
package lockout

import (
	"context"
	"fmt"
	"time"
)

const (
	// DefaultThreshold is the number of consecutive failures that locks an account.
	DefaultThreshold = 3
	// DefaultDuration is how long a lockout lasts.
	DefaultDuration = time.Hour
)

// Store is the part of the credential store the tracker writes to. Each
// method must be a single atomic statement.
type Store interface {
	RecordFailedAttempt(ctx context.Context, id string, threshold int, now, lockUntil time.Time) (int, *time.Time, error)
	ResetFailedAttempts(ctx context.Context, id string) error
	GetLockoutUntil(ctx context.Context, id string) (*time.Time, error)
	ClearExpiredLockout(ctx context.Context, id string, now time.Time) error
}

// Failure is the result of recording one failed attempt.
type Failure struct {
	// Attempts is the counter value after the increment.
	Attempts int
	// Locked is true when this failure reached the threshold, or when
	// another request locked the account first.
	Locked      bool
	LockedUntil time.Time
}

// Status is the lockout state of an account at a point in time.
type Status struct {
	Locked    bool
	Until     time.Time
	Remaining time.Duration
}

// RemainingMinutes rounds the remaining lockout up to whole minutes.
func (s Status) RemainingMinutes() int {
	return CeilMinutes(s.Remaining)
}

// CeilMinutes rounds d up to whole minutes; non-positive durations are 0.
func CeilMinutes(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Minute - 1) / time.Minute)
}

// Tracker implements the Open/Locked state machine over a Store.
type Tracker struct {
	store     Store
	threshold int
	duration  time.Duration
	now       func() time.Time
}

type Option func(*Tracker)

func WithThreshold(n int) Option { return func(t *Tracker) { t.threshold = n } }

func WithDuration(d time.Duration) Option { return func(t *Tracker) { t.duration = d } }

func WithClock(now func() time.Time) Option { return func(t *Tracker) { t.now = now } }

func NewTracker(store Store, opts ...Option) *Tracker {
	t := &Tracker{
		store:     store,
		threshold: DefaultThreshold,
		duration:  DefaultDuration,
		now:       time.Now,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Threshold returns the configured failure threshold.
func (t *Tracker) Threshold() int { return t.threshold }

// RecordFailure counts one failed attempt. Reaching the threshold locks the
// account until now+duration and resets the counter in the same statement.
// A failure against an account that is already locked is not counted and
// does not extend the lockout.
func (t *Tracker) RecordFailure(ctx context.Context, id string) (Failure, error) {
	now := t.now()
	attempts, until, err := t.store.RecordFailedAttempt(ctx, id, t.threshold, now, now.Add(t.duration))
	if err != nil {
		return Failure{}, fmt.Errorf("record failed attempt: %w", err)
	}

	f := Failure{Attempts: attempts}
	if until != nil && until.After(now) {
		f.Locked = true
		f.LockedUntil = *until
	}
	return f, nil
}

// RecordSuccess clears the counter and any lockout.
func (t *Tracker) RecordSuccess(ctx context.Context, id string) error {
	if err := t.store.ResetFailedAttempts(ctx, id); err != nil {
		return fmt.Errorf("reset failed attempts: %w", err)
	}
	return nil
}

// IsLocked reports the current state. An elapsed lockout is cleared lazily
// and reported as open.
func (t *Tracker) IsLocked(ctx context.Context, id string) (Status, error) {
	until, err := t.store.GetLockoutUntil(ctx, id)
	if err != nil {
		return Status{}, fmt.Errorf("get lockout: %w", err)
	}
	if until == nil {
		return Status{}, nil
	}

	now := t.now()
	if !until.After(now) {
		if err := t.store.ClearExpiredLockout(ctx, id, now); err != nil {
			return Status{}, fmt.Errorf("clear expired lockout: %w", err)
		}
		return Status{}, nil
	}

	return Status{Locked: true, Until: *until, Remaining: until.Sub(now)}, nil
}
