package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/dumpvault/internal/common"
	"github.com/dmitrijs2005/dumpvault/internal/dbx"
	"github.com/dmitrijs2005/dumpvault/internal/logging"
	"github.com/dmitrijs2005/dumpvault/internal/server/models"
	"github.com/dmitrijs2005/dumpvault/internal/server/repositories/repomanager"
)

const violationNoFile = "No file provided"

// BlobStore holds file bytes. S3Store is the production implementation.
type BlobStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	URL(ctx context.Context, key string) (string, error)
}

// FileUpload is one file received from a client.
type FileUpload struct {
	Name        string
	Size        int64
	ContentType string
	Body        io.Reader
}

// FileView is a stored file with a temporary download URL.
type FileView struct {
	*models.File
	URL string
}

// FileService manages the dumps owned by an account.
type FileService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	blobs       BlobStore
	log         logging.Logger
	now         func() time.Time
}

func NewFileService(db *sql.DB, m repomanager.RepositoryManager, blobs BlobStore, log logging.Logger) *FileService {
	return &FileService{
		db:          db,
		repomanager: m,
		blobs:       blobs,
		log:         log.With("module", "files"),
		now:         time.Now,
	}
}

// StorageKey builds the object key for a new upload:
// users/<account>/<yyyy>/<mm>/<dd>/dump-<unix-ms>-<hex><.ext>.
func StorageKey(accountID, originalName string, now time.Time) (key, fileName string, err error) {
	suffix, err := common.MakeRandHexString(6)
	if err != nil {
		return "", "", err
	}
	fileName = fmt.Sprintf("dump-%d-%s%s", now.UnixMilli(), suffix, cleanExt(originalName))
	key = fmt.Sprintf("users/%s/%04d/%02d/%02d/%s", accountID, now.Year(), int(now.Month()), now.Day(), fileName)
	return key, fileName, nil
}

func cleanExt(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if len(ext) < 2 || len(ext) > 16 {
		return ""
	}
	for _, c := range ext[1:] {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return ""
		}
	}
	return ext
}

// Upload stores the bytes and records the metadata in one transaction; the
// row only commits once the blob write succeeded.
func (s *FileService) Upload(ctx context.Context, accountID string, in FileUpload) (*FileView, error) {
	if in.Body == nil || in.Name == "" {
		return nil, &ValidationError{Violations: []string{violationNoFile}}
	}

	now := s.now().UTC()
	key, fileName, err := StorageKey(accountID, in.Name, now)
	if err != nil {
		return nil, fmt.Errorf("storage key: %w", err)
	}

	contentType := in.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	f := &models.File{
		ID:           uuid.NewString(),
		AccountID:    accountID,
		FileName:     fileName,
		OriginalName: in.Name,
		Size:         in.Size,
		MimeType:     contentType,
		StorageKey:   key,
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Files(tx).Create(ctx, f); err != nil {
			return err
		}
		return s.blobs.Put(ctx, key, in.Body, in.Size, contentType)
	})
	if err != nil {
		return nil, fmt.Errorf("upload file: %w", err)
	}

	url, err := s.blobs.URL(ctx, key)
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "file uploaded", "account_id", accountID, "file_id", f.ID, "size", f.Size)
	return &FileView{File: f, URL: url}, nil
}

// List returns the account's files, newest first.
func (s *FileService) List(ctx context.Context, accountID string) ([]FileView, error) {
	items, err := s.repomanager.Files(s.db).ListByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}

	result := make([]FileView, 0, len(items))
	for _, f := range items {
		url, err := s.blobs.URL(ctx, f.StorageKey)
		if err != nil {
			return nil, err
		}
		result = append(result, FileView{File: f, URL: url})
	}
	return result, nil
}

// Delete soft-deletes a file owned by accountID. Unknown ids and files of
// other accounts both yield common.ErrorNotFound.
func (s *FileService) Delete(ctx context.Context, accountID, fileID string) error {
	if _, err := uuid.Parse(fileID); err != nil {
		return common.ErrorNotFound
	}
	if err := s.repomanager.Files(s.db).SoftDelete(ctx, fileID, accountID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("delete file: %w", err)
	}
	s.log.Info(ctx, "file deleted", "account_id", accountID, "file_id", fileID)
	return nil
}
