package services

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/dumpvault/internal/common"
	"github.com/dmitrijs2005/dumpvault/internal/logging"
)

type fakeBlobs struct {
	mu     sync.Mutex
	put    map[string]string
	putErr error
	urlErr error
}

func (f *fakeBlobs) Put(_ context.Context, key string, body io.Reader, _ int64, _ string) error {
	if f.putErr != nil {
		return f.putErr
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.put == nil {
		f.put = map[string]string{}
	}
	f.put[key] = string(b)
	return nil
}

func (f *fakeBlobs) URL(_ context.Context, key string) (string, error) {
	if f.urlErr != nil {
		return "", f.urlErr
	}
	return "https://blobs.local/" + key, nil
}

func newFileService(t *testing.T, blobs BlobStore) (*FileService, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	svc := NewFileService(db, &fakeRepoManager{}, blobs, logging.NewDiscardLogger())
	svc.now = func() time.Time { return time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC) }
	return svc, mock, db
}

func TestStorageKey_Layout(t *testing.T) {
	now := time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)
	key, name, err := StorageKey("u1", "Crash.LOG", now)
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^dump-1738555506000-[0-9a-f]{12}\.log$`), name)
	assert.Equal(t, "users/u1/2025/02/03/"+name, key)

	_, name, err = StorageKey("u1", "noext", now)
	require.NoError(t, err)
	assert.Regexp(t, `^dump-1738555506000-[0-9a-f]{12}$`, name)

	_, name, err = StorageKey("u1", "evil.l/og", now)
	require.NoError(t, err)
	assert.NotContains(t, name, "/")
}

func TestUpload_CommitsAfterBlobWrite(t *testing.T) {
	blobs := &fakeBlobs{}
	svc, mock, db := newFileService(t, blobs)
	defer db.Close()

	created := time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO files`).
		WithArgs(sqlmock.AnyArg(), "u1", sqlmock.AnyArg(), "app.log", int64(5), "text/plain", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(created, created))
	mock.ExpectCommit()

	view, err := svc.Upload(context.Background(), "u1", FileUpload{
		Name: "app.log", Size: 5, ContentType: "text/plain", Body: strings.NewReader("hello"),
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, "u1", view.AccountID)
	assert.Equal(t, "app.log", view.OriginalName)
	assert.True(t, strings.HasPrefix(view.StorageKey, "users/u1/2025/02/03/dump-"))
	assert.Equal(t, "https://blobs.local/"+view.StorageKey, view.URL)
	assert.Equal(t, "hello", blobs.put[view.StorageKey])
	assert.Equal(t, created, view.CreatedAt)
}

func TestUpload_BlobFailureRollsBack(t *testing.T) {
	blobs := &fakeBlobs{putErr: errors.New("s3 down")}
	svc, mock, db := newFileService(t, blobs)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO files`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(time.Now(), time.Now()))
	mock.ExpectRollback()

	_, err := svc.Upload(context.Background(), "u1", FileUpload{Name: "a.log", Size: 1, Body: strings.NewReader("x")})
	require.Error(t, err)
	assert.ErrorIs(t, err, blobs.putErr)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpload_NoFile(t *testing.T) {
	svc, _, db := newFileService(t, &fakeBlobs{})
	defer db.Close()

	_, err := svc.Upload(context.Background(), "u1", FileUpload{})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestList_AttachesURLs(t *testing.T) {
	svc, mock, db := newFileService(t, &fakeBlobs{})
	defer db.Close()

	now := time.Now()
	cols := []string{"id", "user_id", "filename", "original_filename", "size", "mimetype", "storage_key", "created_at", "updated_at"}
	mock.ExpectQuery(`SELECT .+ FROM files WHERE user_id = \$1 AND is_deleted = FALSE ORDER BY created_at DESC`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("f2", "u1", "dump-2.log", "b.log", int64(2), "text/plain", "k2", now, now).
			AddRow("f1", "u1", "dump-1.log", "a.log", int64(1), "text/plain", "k1", now.Add(-time.Hour), now))

	got, err := svc.List(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "f2", got[0].ID)
	assert.Equal(t, "https://blobs.local/k2", got[0].URL)
	assert.Equal(t, "https://blobs.local/k1", got[1].URL)
}

func TestList_Empty(t *testing.T) {
	svc, mock, db := newFileService(t, &fakeBlobs{})
	defer db.Close()

	mock.ExpectQuery(`SELECT .+ FROM files`).WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	got, err := svc.List(context.Background(), "u1")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestDelete(t *testing.T) {
	const id = "7f0c2b8e-3c1a-4b8e-9d64-0b8f3a1c2d4e"

	t.Run("owner", func(t *testing.T) {
		svc, mock, db := newFileService(t, &fakeBlobs{})
		defer db.Close()
		mock.ExpectExec(`UPDATE files SET is_deleted = TRUE`).WithArgs(id, "u1").WillReturnResult(sqlmock.NewResult(0, 1))
		require.NoError(t, svc.Delete(context.Background(), "u1", id))
	})

	t.Run("someone else's file", func(t *testing.T) {
		svc, mock, db := newFileService(t, &fakeBlobs{})
		defer db.Close()
		mock.ExpectExec(`UPDATE files SET is_deleted = TRUE`).WithArgs(id, "u2").WillReturnResult(sqlmock.NewResult(0, 0))
		assert.ErrorIs(t, svc.Delete(context.Background(), "u2", id), common.ErrorNotFound)
	})

	t.Run("malformed id never reaches the store", func(t *testing.T) {
		svc, mock, db := newFileService(t, &fakeBlobs{})
		defer db.Close()
		assert.ErrorIs(t, svc.Delete(context.Background(), "u1", "not-a-uuid"), common.ErrorNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("store failure", func(t *testing.T) {
		svc, mock, db := newFileService(t, &fakeBlobs{})
		defer db.Close()
		mock.ExpectExec(`UPDATE files`).WillReturnError(errors.New("db down"))
		err := svc.Delete(context.Background(), "u1", id)
		require.Error(t, err)
		assert.False(t, errors.Is(err, common.ErrorNotFound))
	})
}
