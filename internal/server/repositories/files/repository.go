package files

import (
	"context"

	"github.com/dmitrijs2005/dumpvault/internal/server/models"
)

// Repository stores metadata of uploaded dumps. All reads and writes are
// scoped to the owning account.
type Repository interface {
	Create(ctx context.Context, file *models.File) error
	ListByAccount(ctx context.Context, accountID string) ([]*models.File, error)
	SoftDelete(ctx context.Context, id, accountID string) error
}
