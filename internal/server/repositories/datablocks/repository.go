package datablocks

import (
	"context"

	"github.com/dmitrijs2005/filevault/internal/server/models"
)

type Repository interface {
	// CreateOrGet inserts block unless a block with the same hash exists,
	// and fills block with the stored row either way.
	CreateOrGet(ctx context.Context, block *models.DataBlock) error
	Get(ctx context.Context, id int64) (*models.DataBlock, error)
	FindByHash(ctx context.Context, md5Hash string) (*models.DataBlock, error)
	SetArchiveID(ctx context.Context, id int64, archiveID string) error
}
