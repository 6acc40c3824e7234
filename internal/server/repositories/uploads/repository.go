package uploads

import (
	"context"

	"github.com/dmitrijs2005/filevault/internal/server/models"
)

type Repository interface {
	// FindOrCreate returns the session for upload's key, inserting upload
	// when none exists yet.
	FindOrCreate(ctx context.Context, upload *models.Upload) (*models.Upload, error)
	Find(ctx context.Context, key models.UploadKey) (*models.Upload, error)
	// FindForUpdate is Find plus an exclusive lock held until the
	// surrounding transaction ends.
	FindForUpdate(ctx context.Context, key models.UploadKey) (*models.Upload, error)
	Update(ctx context.Context, upload *models.Upload) error
	Delete(ctx context.Context, id int64) error
}
