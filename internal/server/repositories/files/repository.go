// Package files stores drive file records: a PostgreSQL implementation over
// dbx.DBTX and an in-memory one for development and tests.
package files

import (
	"context"

	"github.com/dmitrijs2005/drivekeeper/internal/server/models"
	"github.com/google/uuid"
)

// Repository is the host's file-record store.
//
// UpdateMetadata is a compare-and-swap on VersionTag: it writes only when
// the stored tag equals expectedVersion and otherwise returns
// common.ErrVersionConflict without touching the record. Unknown files
// yield common.ErrNotFound.
type Repository interface {
	Create(ctx context.Context, file *models.File) error
	Get(ctx context.Context, alias, driveType, fileID uuid.UUID) (*models.File, error)
	UpdateMetadata(ctx context.Context, file *models.File, expectedVersion string) error
	Query(ctx context.Context, alias, driveType uuid.UUID, filter models.Filter, afterSeq int64, limit int) ([]*models.File, error)
}
