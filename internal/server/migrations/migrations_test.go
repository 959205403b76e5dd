package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrations_EmbeddedInOrder(t *testing.T) {
	names, err := fs.Glob(Migrations, "*.sql")
	require.NoError(t, err)
	assert.Equal(t, []string{"00001_create_users.sql", "00002_create_files.sql"}, names)

	for _, n := range names {
		b, err := fs.ReadFile(Migrations, n)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(string(b), "-- +goose Up"), n)
		assert.Contains(t, string(b), "-- +goose Down", n)
	}
}

func TestUsersMigration_PasswordSetTracksHash(t *testing.T) {
	b, err := fs.ReadFile(Migrations, "00001_create_users.sql")
	require.NoError(t, err)
	assert.Contains(t, string(b), "CHECK (password_set = (password_hash IS NOT NULL))")
	assert.Contains(t, string(b), "email                 TEXT NOT NULL UNIQUE")
}
