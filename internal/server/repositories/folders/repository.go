package folders

import (
	"context"

	"github.com/dmitrijs2005/filevault/internal/server/models"
)

// Repository stores folders. A nil parentID addresses the bucket root.
type Repository interface {
	Create(ctx context.Context, folder *models.Folder) error
	Get(ctx context.Context, id int64) (*models.Folder, error)
	FindChild(ctx context.Context, bucketID int64, parentID *int64, name string) (*models.Folder, error)
	ListChildren(ctx context.Context, bucketID int64, parentID *int64) ([]*models.Folder, error)
	SetReadOnly(ctx context.Context, id int64, readOnly bool) error
}
