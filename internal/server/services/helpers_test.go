package services

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/dumpvault/internal/common"
	"github.com/dmitrijs2005/dumpvault/internal/dbx"
	"github.com/dmitrijs2005/dumpvault/internal/logging"
	"github.com/dmitrijs2005/dumpvault/internal/server/auth"
	"github.com/dmitrijs2005/dumpvault/internal/server/models"
	"github.com/dmitrijs2005/dumpvault/internal/server/password"
	"github.com/dmitrijs2005/dumpvault/internal/server/repositories/files"
	"github.com/dmitrijs2005/dumpvault/internal/server/repositories/users"
)

// memUsers is an in-memory credential store. Every method runs under one
// mutex, matching the single-statement behaviour of the Postgres store.
type memUsers struct {
	mu       sync.Mutex
	byEmail  map[string]*models.Account
	byID     map[string]*models.Account
	err      error
	onSignup func()
}

func newMemUsers() *memUsers {
	return &memUsers{byEmail: map[string]*models.Account{}, byID: map[string]*models.Account{}}
}

func (m *memUsers) put(a *models.Account) {
	m.byEmail[a.Email] = a
	m.byID[a.ID] = a
}

func (m *memUsers) get(id string) (*models.Account, error) {
	if m.err != nil {
		return nil, m.err
	}
	a, ok := m.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return a, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	a, ok := m.byEmail[email]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memUsers) GetByID(_ context.Context, id string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, err := m.get(id)
	if err != nil {
		return nil, err
	}
	cp := *a
	return &cp, nil
}

func (m *memUsers) CompleteSignup(_ context.Context, id, email, hash string, now time.Time) (*models.Account, error) {
	if m.onSignup != nil {
		m.onSignup()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	a, ok := m.byEmail[email]
	if ok && a.PasswordSet {
		return nil, common.ErrorAlreadyExists
	}
	if !ok {
		a = &models.Account{ID: id, Email: email, CreatedAt: now}
	}
	h := hash
	a.PasswordHash = &h
	a.PasswordSet = true
	a.FailedAttempts = 0
	a.LockoutUntil = nil
	a.LastPasswordChange = &now
	a.LastLogin = &now
	m.put(a)
	cp := *a
	return &cp, nil
}

func (m *memUsers) UpdatePassword(_ context.Context, id, hash string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, err := m.get(id)
	if err != nil {
		return err
	}
	h := hash
	a.PasswordHash = &h
	a.PasswordSet = true
	a.LastPasswordChange = &now
	a.FailedAttempts = 0
	return nil
}

func (m *memUsers) TouchLastLogin(_ context.Context, id string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, err := m.get(id)
	if err != nil {
		return err
	}
	a.LastLogin = &now
	return nil
}

func (m *memUsers) RecordFailedAttempt(_ context.Context, id string, threshold int, now, lockUntil time.Time) (int, *time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, err := m.get(id)
	if err != nil {
		return 0, nil, err
	}
	if a.LockoutUntil != nil && a.LockoutUntil.After(now) {
		return 0, a.LockoutUntil, nil
	}
	n := a.FailedAttempts + 1
	if n >= threshold {
		u := lockUntil
		a.FailedAttempts = 0
		a.LockoutUntil = &u
	} else {
		a.FailedAttempts = n
		a.LockoutUntil = nil
	}
	return n, a.LockoutUntil, nil
}

func (m *memUsers) ResetFailedAttempts(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, err := m.get(id)
	if err != nil {
		return err
	}
	a.FailedAttempts = 0
	a.LockoutUntil = nil
	return nil
}

func (m *memUsers) GetLockoutUntil(_ context.Context, id string) (*time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, err := m.get(id)
	if err != nil {
		return nil, err
	}
	return a.LockoutUntil, nil
}

func (m *memUsers) ClearExpiredLockout(_ context.Context, id string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, err := m.get(id)
	if err != nil {
		return err
	}
	if a.LockoutUntil != nil && !a.LockoutUntil.After(now) {
		a.LockoutUntil = nil
		a.FailedAttempts = 0
	}
	return nil
}

var _ users.Repository = (*memUsers)(nil)

type fakeRepoManager struct {
	users users.Repository
	files func(db dbx.DBTX) files.Repository
}

func (f *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }

func (f *fakeRepoManager) Users(dbx.DBTX) users.Repository { return f.users }

func (f *fakeRepoManager) Files(db dbx.DBTX) files.Repository {
	if f.files == nil {
		return files.NewPostgresRepository(db)
	}
	return f.files(db)
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newAuthService(t *testing.T, store *memUsers, log logging.Logger) (*AuthService, *testClock) {
	t.Helper()
	codec, err := auth.NewCodec([]byte("test-secret"), 0)
	require.NoError(t, err)
	if log == nil {
		log = logging.NewDiscardLogger()
	}
	svc := NewAuthService(nil, &fakeRepoManager{users: store}, codec, password.NewHasher(4, 4), log)
	clk := &testClock{t: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
	svc.now = clk.now
	return svc, clk
}
