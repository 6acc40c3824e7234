package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/dbx"
	"github.com/dmitrijs2005/filevault/internal/logging"
	"github.com/dmitrijs2005/filevault/internal/server/models"
	"github.com/dmitrijs2005/filevault/internal/server/paths"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/repomanager"
)

// FileRef addresses a committed file.
type FileRef struct {
	ProjectName string
	BucketName  string
	FilePath    string
}

// Download tells the transport where a file's bytes are: a local path, or
// a presigned archive URL when only the archived copy is left.
type Download struct {
	Status    *models.FileStatus
	LocalPath string
	RemoteURL string
}

// FileService applies guarded mutations to committed files. Every operation
// fails with common.ErrFileNotFound before any permission or state check
// when the file does not exist.
type FileService struct {
	db          dbx.Database
	repomanager repomanager.RepositoryManager
	blocks      *BlockStore
	log         logging.Logger
}

func NewFileService(db dbx.Database, rm repomanager.RepositoryManager, blocks *BlockStore, log logging.Logger) *FileService {
	return &FileService{db: db, repomanager: rm, blocks: blocks, log: log}
}

// mutation is the body of a guarded file operation.
type mutation func(ctx context.Context, tx dbx.DBTX, bucket *models.Bucket, t *target) (*models.FileStatus, error)

func (s *FileService) withFile(ctx context.Context, ref FileRef, fn mutation) (*models.FileStatus, error) {
	var status *models.FileStatus
	err := s.db.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		bucket, err := findBucket(ctx, s.repomanager, tx, ref.ProjectName, ref.BucketName)
		if err != nil {
			return err
		}
		t, err := locate(ctx, s.repomanager, tx, bucket, ref.FilePath)
		if err != nil {
			if common.IsDomainError(err) {
				return fmt.Errorf("%w: %s", common.ErrFileNotFound, ref.FilePath)
			}
			return err
		}
		if t.file == nil {
			return fmt.Errorf("%w: %s", common.ErrFileNotFound, ref.FilePath)
		}
		status, err = fn(ctx, tx, bucket, t)
		return err
	})
	if err != nil {
		return nil, err
	}
	return status, nil
}

// Status returns the status document of the file.
func (s *FileService) Status(ctx context.Context, actor models.Actor, ref FileRef) (*models.FileStatus, error) {
	return s.withFile(ctx, ref, func(ctx context.Context, tx dbx.DBTX, bucket *models.Bucket, t *target) (*models.FileStatus, error) {
		if !actor.Role.CanView() {
			return nil, forbidden(actor, "view files")
		}
		return fileStatus(ctx, s.repomanager, tx, bucket, t.file, t.folderPath())
	})
}

// Rename moves the file to newPath inside the same bucket. The destination
// folder chain must exist; names already taken by a file or a folder are
// reported as distinct conflicts.
func (s *FileService) Rename(ctx context.Context, actor models.Actor, ref FileRef, newPath string) (*models.FileStatus, error) {
	status, err := s.withFile(ctx, ref, func(ctx context.Context, tx dbx.DBTX, bucket *models.Bucket, t *target) (*models.FileStatus, error) {
		if !actor.Role.CanEdit() {
			return nil, forbidden(actor, "rename files")
		}

		folderNames, leaf, err := paths.Parse(newPath)
		if err != nil {
			return nil, err
		}
		dest, err := NewFolderTree(s.repomanager.Folders(tx)).Require(ctx, bucket.ID, folderNames)
		if err != nil {
			return nil, err
		}
		if IsBlocked(dest) {
			return nil, common.ErrFolderReadOnly
		}
		if t.file.ReadOnly {
			return nil, common.ErrFileReadOnly
		}

		files := s.repomanager.Files(tx)
		_, err = files.Find(ctx, bucket.ID, models.FolderID(dest), leaf)
		switch {
		case err == nil:
			return nil, common.ErrFileExists
		case !errors.Is(err, common.ErrorNotFound):
			return nil, err
		}
		if err := checkNotFolder(ctx, s.repomanager, tx, bucket, dest, leaf); err != nil {
			if errors.Is(err, common.ErrNameConflict) {
				return nil, common.ErrFolderExists
			}
			return nil, err
		}

		if err := files.Rename(ctx, t.file.ID, models.FolderID(dest), leaf); err != nil {
			if errors.Is(err, common.ErrAlreadyExists) {
				return nil, common.ErrFileExists
			}
			return nil, err
		}
		renamed, err := files.Find(ctx, bucket.ID, models.FolderID(dest), leaf)
		if err != nil {
			return nil, err
		}
		return fileStatus(ctx, s.repomanager, tx, bucket, renamed, strings.Join(folderNames, paths.Separator))
	})
	if err != nil {
		return nil, err
	}
	s.log.Info(ctx, "file renamed", "project", ref.ProjectName, "from", ref.FilePath, "to", newPath, "by", actor.Email)
	return status, nil
}

func (s *FileService) setReadOnly(ctx context.Context, actor models.Actor, ref FileRef, readOnly bool) (*models.FileStatus, error) {
	return s.withFile(ctx, ref, func(ctx context.Context, tx dbx.DBTX, bucket *models.Bucket, t *target) (*models.FileStatus, error) {
		if !actor.Role.CanAdmin() {
			return nil, forbidden(actor, "change read-only flags")
		}
		switch {
		case readOnly && t.file.ReadOnly:
			return nil, common.ErrAlreadyProtected
		case !readOnly && !t.file.ReadOnly:
			return nil, common.ErrNotProtected
		}
		if err := s.repomanager.Files(tx).SetReadOnly(ctx, t.file.ID, readOnly); err != nil {
			return nil, err
		}
		t.file.ReadOnly = readOnly
		return fileStatus(ctx, s.repomanager, tx, bucket, t.file, t.folderPath())
	})
}

// Protect marks the file read-only. It is not idempotent.
func (s *FileService) Protect(ctx context.Context, actor models.Actor, ref FileRef) (*models.FileStatus, error) {
	return s.setReadOnly(ctx, actor, ref, true)
}

// Unprotect clears the read-only flag. It is not idempotent.
func (s *FileService) Unprotect(ctx context.Context, actor models.Actor, ref FileRef) (*models.FileStatus, error) {
	return s.setReadOnly(ctx, actor, ref, false)
}

// Remove deletes the tree entry. The data block and its bytes are kept.
func (s *FileService) Remove(ctx context.Context, actor models.Actor, ref FileRef) error {
	_, err := s.withFile(ctx, ref, func(ctx context.Context, tx dbx.DBTX, bucket *models.Bucket, t *target) (*models.FileStatus, error) {
		if !actor.Role.CanEdit() {
			return nil, forbidden(actor, "remove files")
		}
		if t.file.ReadOnly {
			return nil, common.ErrFileReadOnly
		}
		return nil, s.repomanager.Files(tx).Delete(ctx, t.file.ID)
	})
	if err != nil {
		return err
	}
	s.log.Info(ctx, "file removed", "project", ref.ProjectName, "path", ref.FilePath, "by", actor.Email)
	return nil
}

// Download resolves where the file's bytes can be read from. Access is
// granted by the caller's signed URL, so no role is checked.
func (s *FileService) Download(ctx context.Context, ref FileRef, ttl time.Duration) (*Download, error) {
	var block *models.DataBlock
	status, err := s.withFile(ctx, ref, func(ctx context.Context, tx dbx.DBTX, bucket *models.Bucket, t *target) (*models.FileStatus, error) {
		var err error
		block, err = s.repomanager.DataBlocks(tx).Get(ctx, t.file.DataBlockID)
		if err != nil {
			return nil, err
		}
		return models.NewFileStatus(t.file, bucket, block, t.folderPath()), nil
	})
	if err != nil {
		return nil, err
	}

	local, remote, err := s.blocks.Locate(ctx, block, ttl)
	if err != nil {
		return nil, err
	}
	return &Download{Status: status, LocalPath: local, RemoteURL: remote}, nil
}
