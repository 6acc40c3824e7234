package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/filex"
	"github.com/dmitrijs2005/filevault/internal/logging"
	"github.com/dmitrijs2005/filevault/internal/server/models"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/datablocks"
	"github.com/dmitrijs2005/filevault/internal/server/storage"
)

// Archiver copies blocks to secondary storage. *archive.Archiver implements it.
type Archiver interface {
	Put(ctx context.Context, md5Hash, location string) (string, error)
	PresignGet(ctx context.Context, archiveID string, ttl time.Duration) (string, error)
}

// BlockStore turns assembled files into content-addressed data blocks.
type BlockStore struct {
	fs       *storage.FS
	archiver Archiver
	log      logging.Logger
}

// NewBlockStore returns a block store; archiver may be nil to disable archiving.
func NewBlockStore(fs *storage.FS, archiver Archiver, log logging.Logger) *BlockStore {
	return &BlockStore{fs: fs, archiver: archiver, log: log}
}

// Store hashes src by streaming it, checks its size against expectedSize
// and records a block for it. When a block with the same hash already
// exists it is reused and the bytes already on disk are kept.
func (b *BlockStore) Store(ctx context.Context, repo datablocks.Repository, src string, expectedSize int64) (*models.DataBlock, error) {
	digest, err := filex.MD5File(src)
	if err != nil {
		return nil, err
	}
	if digest.Size != expectedSize {
		return nil, fmt.Errorf("%w: assembled %d bytes, declared %d", common.ErrIntegrityMismatch, digest.Size, expectedSize)
	}

	location, err := b.fs.StoreBlock(src, digest.MD5)
	if err != nil {
		return nil, fmt.Errorf("store block: %w", err)
	}

	block := &models.DataBlock{MD5Hash: digest.MD5, Size: digest.Size, Location: location}
	if err := repo.CreateOrGet(ctx, block); err != nil {
		return nil, err
	}
	if !b.fs.HasBlock(block.Location) {
		return nil, fmt.Errorf("data block %s has no bytes at %s", block.MD5Hash, block.Location)
	}
	return block, nil
}

// Archive copies block to the archiver unless it is disabled or the block
// was archived before. Failures are logged and otherwise ignored.
func (b *BlockStore) Archive(ctx context.Context, repo datablocks.Repository, block *models.DataBlock) {
	if b.archiver == nil || block.ArchiveID != "" {
		return
	}
	id, err := b.archiver.Put(ctx, block.MD5Hash, block.Location)
	if err != nil {
		b.log.Warn(ctx, "archive block failed", "md5", block.MD5Hash, "error", err)
		return
	}
	if err := repo.SetArchiveID(ctx, block.ID, id); err != nil {
		b.log.Warn(ctx, "record archive id failed", "md5", block.MD5Hash, "error", err)
		return
	}
	block.ArchiveID = id
}

// Locate returns the local path of block, or a presigned archive URL when
// the local bytes are gone.
func (b *BlockStore) Locate(ctx context.Context, block *models.DataBlock, ttl time.Duration) (local string, remote string, err error) {
	if b.fs.HasBlock(block.Location) {
		return block.Location, "", nil
	}
	if b.archiver == nil || block.ArchiveID == "" {
		return "", "", fmt.Errorf("%w: data block %s is missing", common.ErrFileNotFound, block.MD5Hash)
	}
	remote, err = b.archiver.PresignGet(ctx, block.ArchiveID, ttl)
	if err != nil {
		return "", "", err
	}
	return "", remote, nil
}
