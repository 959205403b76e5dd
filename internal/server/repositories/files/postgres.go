package files

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/dumpvault/internal/common"
	"github.com/dmitrijs2005/dumpvault/internal/dbx"
	"github.com/dmitrijs2005/dumpvault/internal/server/models"
)

// PostgresRepository implements file storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a file row and fills CreatedAt and UpdatedAt from the database.
func (r *PostgresRepository) Create(ctx context.Context, file *models.File) error {
	query := `
		INSERT INTO files (id, user_id, filename, original_filename, size, mimetype, storage_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		file.ID, file.AccountID, file.FileName, file.OriginalName, file.Size, file.MimeType, file.StorageKey,
	).Scan(&file.CreatedAt, &file.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// ListByAccount returns the account's files that are not deleted, newest first.
func (r *PostgresRepository) ListByAccount(ctx context.Context, accountID string) ([]*models.File, error) {
	query := `
		SELECT id, user_id, filename, original_filename, size, mimetype, storage_key, created_at, updated_at
		FROM files
		WHERE user_id = $1 AND is_deleted = FALSE
		ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to select files: %w", err)
	}
	defer rows.Close()

	var result []*models.File
	for rows.Next() {
		var f models.File
		if err := rows.Scan(&f.ID, &f.AccountID, &f.FileName, &f.OriginalName, &f.Size, &f.MimeType,
			&f.StorageKey, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// SoftDelete flags the file as deleted. A file that does not exist, belongs
// to another account or is already deleted yields common.ErrorNotFound.
func (r *PostgresRepository) SoftDelete(ctx context.Context, id, accountID string) error {
	query := `
		UPDATE files SET is_deleted = TRUE, updated_at = now()
		WHERE id = $1 AND user_id = $2 AND is_deleted = FALSE`

	res, err := r.db.ExecContext(ctx, query, id, accountID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

var _ Repository = (*PostgresRepository)(nil)
