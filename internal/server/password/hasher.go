package password

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// DefaultCost is the bcrypt work factor used for stored digests.
const DefaultCost = 12

// MaxLength is bcrypt's input limit; longer passwords would be silently truncated.
const MaxLength = 72

var ErrTooLong = errors.New("password exceeds 72 bytes")

// Hasher hashes and verifies passwords with bcrypt. At most `workers`
// operations run at once; callers wait for a slot or for ctx to end.
type Hasher struct {
	cost int
	sem  *semaphore.Weighted
}

// NewHasher returns a Hasher using cost and a pool of workers slots.
// A cost outside bcrypt's range falls back to DefaultCost.
func NewHasher(cost, workers int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	if workers < 1 {
		workers = 1
	}
	return &Hasher{cost: cost, sem: semaphore.NewWeighted(int64(workers))}
}

// Hash returns a salted bcrypt digest of pw.
func (h *Hasher) Hash(ctx context.Context, pw string) (string, error) {
	if len(pw) > MaxLength {
		return "", ErrTooLong
	}
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("hasher busy: %w", err)
	}
	defer h.sem.Release(1)

	digest, err := bcrypt.GenerateFromPassword([]byte(pw), h.cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt: %w", err)
	}
	return string(digest), nil
}

// Verify reports whether pw matches digest. A malformed digest is a
// mismatch, not an error; the only error is failing to get a slot.
func (h *Hasher) Verify(ctx context.Context, pw, digest string) (bool, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false, fmt.Errorf("hasher busy: %w", err)
	}
	defer h.sem.Release(1)

	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(pw)) == nil, nil
}
