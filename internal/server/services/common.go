package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/dbx"
	"github.com/dmitrijs2005/filevault/internal/server/models"
	"github.com/dmitrijs2005/filevault/internal/server/paths"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/repomanager"
)

func forbidden(actor models.Actor, action string) error {
	role := string(actor.Role)
	if role == "" {
		role = "no"
	}
	return fmt.Errorf("%w: %s role cannot %s", common.ErrForbidden, role, action)
}

func findBucket(ctx context.Context, rm repomanager.RepositoryManager, tx dbx.DBTX, project, name string) (*models.Bucket, error) {
	b, err := rm.Buckets(tx).FindByName(ctx, project, name)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("%w: %s", common.ErrBucketNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// target is where a file path lands in a bucket's tree.
type target struct {
	folders []string
	leaf    string
	folder  *models.Folder
	file    *models.File
}

func (t *target) folderPath() string {
	return strings.Join(t.folders, paths.Separator)
}

// locate parses filePath and resolves its folder chain, which must exist.
// target.file is nil when no entry has the name yet.
func locate(ctx context.Context, rm repomanager.RepositoryManager, tx dbx.DBTX, bucket *models.Bucket, filePath string) (*target, error) {
	folderNames, leaf, err := paths.Parse(filePath)
	if err != nil {
		return nil, err
	}
	folder, err := NewFolderTree(rm.Folders(tx)).Require(ctx, bucket.ID, folderNames)
	if err != nil {
		return nil, err
	}
	t := &target{folders: folderNames, leaf: leaf, folder: folder}

	file, err := rm.Files(tx).Find(ctx, bucket.ID, models.FolderID(folder), leaf)
	switch {
	case err == nil:
		t.file = file
	case !errors.Is(err, common.ErrorNotFound):
		return nil, err
	}
	return t, nil
}

// checkWritable reports why t cannot receive new content, if it cannot.
func checkWritable(ctx context.Context, rm repomanager.RepositoryManager, tx dbx.DBTX, bucket *models.Bucket, t *target) error {
	if IsBlocked(t.folder) {
		return common.ErrFolderReadOnly
	}
	if t.file != nil && t.file.ReadOnly {
		return common.ErrFileReadOnly
	}
	return checkNotFolder(ctx, rm, tx, bucket, t.folder, t.leaf)
}

func checkNotFolder(ctx context.Context, rm repomanager.RepositoryManager, tx dbx.DBTX, bucket *models.Bucket, parent *models.Folder, name string) error {
	_, err := rm.Folders(tx).FindChild(ctx, bucket.ID, models.FolderID(parent), name)
	switch {
	case err == nil:
		return fmt.Errorf("%w: %q is a folder", common.ErrNameConflict, name)
	case errors.Is(err, common.ErrorNotFound):
		return nil
	default:
		return err
	}
}

// fileStatus assembles the status document of file.
func fileStatus(ctx context.Context, rm repomanager.RepositoryManager, tx dbx.DBTX, bucket *models.Bucket, file *models.File, folderPath string) (*models.FileStatus, error) {
	block, err := rm.DataBlocks(tx).Get(ctx, file.DataBlockID)
	if err != nil {
		return nil, fmt.Errorf("data block %d: %w", file.DataBlockID, err)
	}
	return models.NewFileStatus(file, bucket, block, folderPath), nil
}
