package memory

import (
	"context"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/server/models"
)

// DataBlockRepository is the in-memory datablocks.Repository.
type DataBlockRepository struct{ s *Store }

func (s *Store) DataBlocks() *DataBlockRepository { return &DataBlockRepository{s: s} }

func (r *DataBlockRepository) CreateOrGet(ctx context.Context, block *models.DataBlock) error {
	if block == nil {
		return errNilRecord
	}
	return r.s.write(func(t *tables) error {
		now := r.s.now()
		for id, b := range t.blocks {
			if b.MD5Hash == block.MD5Hash {
				b.UpdatedAt = now
				t.blocks[id] = b
				*block = b
				return nil
			}
		}
		block.ID = t.nextID()
		block.CreatedAt, block.UpdatedAt = now, now
		t.blocks[block.ID] = *block
		return nil
	})
}

func (r *DataBlockRepository) Get(ctx context.Context, id int64) (*models.DataBlock, error) {
	var found *models.DataBlock
	err := r.s.read(func(t *tables) error {
		b, ok := t.blocks[id]
		if !ok {
			return common.ErrorNotFound
		}
		found = &b
		return nil
	})
	return found, err
}

func (r *DataBlockRepository) FindByHash(ctx context.Context, md5Hash string) (*models.DataBlock, error) {
	var found *models.DataBlock
	err := r.s.read(func(t *tables) error {
		for _, b := range t.blocks {
			if b.MD5Hash == md5Hash {
				found = &b
				return nil
			}
		}
		return common.ErrorNotFound
	})
	return found, err
}

func (r *DataBlockRepository) SetArchiveID(ctx context.Context, id int64, archiveID string) error {
	return r.s.write(func(t *tables) error {
		b, ok := t.blocks[id]
		if !ok {
			return common.ErrorNotFound
		}
		b.ArchiveID = archiveID
		b.UpdatedAt = r.s.now()
		t.blocks[id] = b
		return nil
	})
}
