package files

import (
	"context"

	"github.com/dmitrijs2005/filevault/internal/server/models"
)

// Repository stores file tree entries. A nil folderID addresses the bucket root.
type Repository interface {
	Find(ctx context.Context, bucketID int64, folderID *int64, name string) (*models.File, error)
	ListInFolder(ctx context.Context, bucketID int64, folderID *int64) ([]*models.File, error)
	Upsert(ctx context.Context, file *models.File) error
	Rename(ctx context.Context, id int64, folderID *int64, name string) error
	SetReadOnly(ctx context.Context, id int64, readOnly bool) error
	Delete(ctx context.Context, id int64) error
}
