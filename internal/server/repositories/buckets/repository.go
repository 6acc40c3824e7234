package buckets

import (
	"context"

	"github.com/dmitrijs2005/filevault/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, bucket *models.Bucket) error
	FindByName(ctx context.Context, projectName, name string) (*models.Bucket, error)
	List(ctx context.Context, projectName string) ([]*models.Bucket, error)
}
