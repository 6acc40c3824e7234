package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/dbx"
	"github.com/dmitrijs2005/filevault/internal/logging"
	"github.com/dmitrijs2005/filevault/internal/server/models"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/filevault/internal/server/storage"
)

// UploadRef identifies an upload session as seen by a request.
type UploadRef struct {
	ProjectName string
	BucketName  string
	FilePath    string
	UploaderID  string
}

// UploadResult is the outcome of an accepted blob. File is set once the
// upload completed and the file was committed.
type UploadResult struct {
	Upload *models.Upload
	File   *models.FileStatus
}

// UploadService drives resumable chunked uploads:
// authorized -> in progress -> complete, or cancelled at any point.
type UploadService struct {
	db          dbx.Database
	repomanager repomanager.RepositoryManager
	fs          *storage.FS
	blocks      *BlockStore
	log         logging.Logger
}

func NewUploadService(db dbx.Database, rm repomanager.RepositoryManager, fs *storage.FS, blocks *BlockStore, log logging.Logger) *UploadService {
	return &UploadService{db: db, repomanager: rm, fs: fs, blocks: blocks, log: log}
}

// Authorize checks that actor may write ref.FilePath and creates the
// session, or returns the existing one for the same uploader.
func (s *UploadService) Authorize(ctx context.Context, actor models.Actor, ref UploadRef) (*models.Upload, error) {
	if !actor.Role.CanEdit() {
		return nil, forbidden(actor, "upload")
	}
	if ref.UploaderID == "" {
		return nil, fmt.Errorf("%w: missing uploader id", common.ErrBadRequest)
	}

	var upload *models.Upload
	err := s.db.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		bucket, err := findBucket(ctx, s.repomanager, tx, ref.ProjectName, ref.BucketName)
		if err != nil {
			return err
		}
		t, err := locate(ctx, s.repomanager, tx, bucket, ref.FilePath)
		if err != nil {
			return err
		}
		if err := checkWritable(ctx, s.repomanager, tx, bucket, t); err != nil {
			return err
		}
		upload, err = s.repomanager.Uploads(tx).FindOrCreate(ctx, models.NewUpload(s.key(bucket, ref), actor.Author()))
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "upload authorized", "project", ref.ProjectName, "bucket", ref.BucketName, "path", ref.FilePath, "author", upload.Author)
	return upload, nil
}

func (s *UploadService) key(bucket *models.Bucket, ref UploadRef) models.UploadKey {
	return models.UploadKey{ProjectName: ref.ProjectName, BucketID: bucket.ID, FilePath: ref.FilePath, UploaderID: ref.UploaderID}
}

// lock loads and locks the session of ref; a missing session yields missing.
func (s *UploadService) lock(ctx context.Context, tx dbx.DBTX, ref UploadRef, missing error) (*models.Bucket, *models.Upload, error) {
	bucket, err := findBucket(ctx, s.repomanager, tx, ref.ProjectName, ref.BucketName)
	if err != nil {
		return nil, nil, err
	}
	upload, err := s.repomanager.Uploads(tx).FindForUpdate(ctx, s.key(bucket, ref))
	if errors.Is(err, common.ErrorNotFound) {
		return nil, nil, missing
	}
	if err != nil {
		return nil, nil, err
	}
	return bucket, upload, nil
}

// Start declares the total size and the first chunk. A session that already
// received bytes is returned unchanged so clients can resume. Otherwise any
// partial file left under the session's key is dropped first, since a
// committed block may still be linked to it.
func (s *UploadService) Start(ctx context.Context, ref UploadRef, fileSize, nextBlobSize int64, nextBlobHash string) (*models.Upload, error) {
	if fileSize < 0 || nextBlobSize < 0 {
		return nil, fmt.Errorf("%w: negative size", common.ErrBadRequest)
	}

	var upload *models.Upload
	err := s.db.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		_, u, err := s.lock(ctx, tx, ref, common.ErrNoSuchUpload)
		if err != nil {
			return err
		}
		upload = u
		if u.CurrentBytePosition > 0 {
			return nil
		}
		if err := s.fs.RemovePartial(u.Key()); err != nil {
			return err
		}
		u.FileSize = fileSize
		u.NextBlobSize = nextBlobSize
		u.NextBlobHash = nextBlobHash
		return s.repomanager.Uploads(tx).Update(ctx, u)
	})
	if err != nil {
		return nil, err
	}
	return upload, nil
}

// SubmitBlob appends one chunk. The chunk must match the descriptor recorded
// by the previous call; nextBlobSize/nextBlobHash describe the one after it.
// When the declared size is reached the upload is completed in the same call.
func (s *UploadService) SubmitBlob(ctx context.Context, ref UploadRef, blob io.Reader, nextBlobSize int64, nextBlobHash string) (*UploadResult, error) {
	blobPath, digest, err := s.fs.Spool(blob)
	if err != nil {
		return nil, err
	}
	defer os.Remove(blobPath)

	var (
		result    = &UploadResult{}
		key       models.UploadKey
		appended  bool
		prevSize  int64
		attempted bool
		violation error
		sessionID int64
		block     *models.DataBlock
	)

	err = s.db.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		bucket, u, err := s.lock(ctx, tx, ref, common.ErrUploadNotStarted)
		if err != nil {
			return err
		}
		key, sessionID = u.Key(), u.ID

		if u.NextBlobSize == models.NoNextBlobSize {
			return fmt.Errorf("%w: no blob declared", common.ErrIntegrityMismatch)
		}
		if digest.MD5 != u.NextBlobHash || digest.Size != u.NextBlobSize {
			return fmt.Errorf("%w: expected %d bytes with hash %q", common.ErrIntegrityMismatch, u.NextBlobSize, u.NextBlobHash)
		}
		if u.CurrentBytePosition+digest.Size > u.FileSize {
			return fmt.Errorf("%w: blob overruns declared file size %d", common.ErrIntegrityMismatch, u.FileSize)
		}

		prevSize = u.CurrentBytePosition
		size, err := s.fs.AppendPartial(key, blobPath)
		if err != nil {
			return err
		}
		appended = true

		u.CurrentBytePosition = size
		u.NextBlobSize = nextBlobSize
		u.NextBlobHash = nextBlobHash
		if err := s.repomanager.Uploads(tx).Update(ctx, u); err != nil {
			return err
		}
		result.Upload = u

		if !u.IsComplete() {
			return nil
		}

		attempted = true
		status, b, err := s.complete(ctx, tx, bucket, u)
		if errors.Is(err, common.ErrForbidden) {
			violation = err
			return s.repomanager.Uploads(tx).Delete(ctx, u.ID)
		}
		if err != nil {
			return err
		}
		result.File, block = status, b
		return s.repomanager.Uploads(tx).Delete(ctx, u.ID)
	})

	if attempted {
		s.cleanup(ctx, key, sessionID, err != nil)
	} else if err != nil && appended {
		if terr := s.fs.TruncatePartial(key, prevSize); terr != nil {
			s.log.Error(ctx, "rewind partial failed", "path", ref.FilePath, "error", terr)
		}
	}
	if err != nil {
		return nil, err
	}
	if violation != nil {
		return nil, violation
	}

	if result.File != nil {
		s.archive(ctx, block)
		result.File.ArchiveID = block.ArchiveID
		s.log.Info(ctx, "upload complete", "project", ref.ProjectName, "path", ref.FilePath, "md5", result.File.FileHash, "size", result.File.Size)
	} else {
		s.log.Debug(ctx, "blob accepted", "path", ref.FilePath, "position", result.Upload.CurrentBytePosition)
	}
	return result, nil
}

// complete promotes a fully received upload into the file tree. Constraint
// violations come back wrapped in common.ErrForbidden.
func (s *UploadService) complete(ctx context.Context, tx dbx.DBTX, bucket *models.Bucket, u *models.Upload) (*models.FileStatus, *models.DataBlock, error) {
	t, err := locate(ctx, s.repomanager, tx, bucket, u.FileName)
	if err != nil {
		if common.IsDomainError(err) {
			return nil, nil, fmt.Errorf("%w: %w", common.ErrForbidden, err)
		}
		return nil, nil, err
	}
	if err := checkWritable(ctx, s.repomanager, tx, bucket, t); err != nil {
		if common.IsDomainError(err) {
			return nil, nil, fmt.Errorf("%w: %w", common.ErrForbidden, err)
		}
		return nil, nil, err
	}

	block, err := s.blocks.Store(ctx, s.repomanager.DataBlocks(tx), s.fs.PartialPath(u.Key()), u.FileSize)
	if err != nil {
		return nil, nil, err
	}

	file := &models.File{
		BucketID:    bucket.ID,
		FolderID:    models.FolderID(t.folder),
		DataBlockID: block.ID,
		ProjectName: u.ProjectName,
		FileName:    t.leaf,
		Author:      u.Author,
	}
	if err := s.repomanager.Files(tx).Upsert(ctx, file); err != nil {
		if errors.Is(err, common.ErrFileReadOnly) {
			return nil, nil, fmt.Errorf("%w: %w", common.ErrForbidden, err)
		}
		return nil, nil, err
	}
	return models.NewFileStatus(file, bucket, block, t.folderPath()), block, nil
}

// cleanup runs after every completion attempt. The partial file always goes;
// the session row is removed separately when the transaction rolled back.
func (s *UploadService) cleanup(ctx context.Context, key models.UploadKey, sessionID int64, rolledBack bool) {
	if err := s.fs.RemovePartial(key); err != nil {
		s.log.Error(ctx, "remove partial failed", "path", key.FilePath, "error", err)
	}
	if !rolledBack {
		return
	}
	err := s.db.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repomanager.Uploads(tx).Delete(ctx, sessionID)
	})
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		s.log.Error(ctx, "remove upload session failed", "path", key.FilePath, "error", err)
	}
}

func (s *UploadService) archive(ctx context.Context, block *models.DataBlock) {
	err := s.db.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		s.blocks.Archive(ctx, s.repomanager.DataBlocks(tx), block)
		return nil
	})
	if err != nil {
		s.log.Warn(ctx, "archive transaction failed", "md5", block.MD5Hash, "error", err)
	}
}

// Cancel discards the partial file and the session, whatever its state.
func (s *UploadService) Cancel(ctx context.Context, ref UploadRef) error {
	return s.db.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		_, u, err := s.lock(ctx, tx, ref, common.ErrNoSuchUpload)
		if err != nil {
			return err
		}
		if err := s.fs.RemovePartial(u.Key()); err != nil {
			return err
		}
		return s.repomanager.Uploads(tx).Delete(ctx, u.ID)
	})
}

// Reset discards the received bytes and puts the session back into the
// authorized state, as if it had just been authorized.
func (s *UploadService) Reset(ctx context.Context, ref UploadRef) (*models.Upload, error) {
	var upload *models.Upload
	err := s.db.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		_, u, err := s.lock(ctx, tx, ref, common.ErrNoSuchUpload)
		if err != nil {
			return err
		}
		if err := s.fs.RemovePartial(u.Key()); err != nil {
			return err
		}
		u.Rewind()
		upload = u
		return s.repomanager.Uploads(tx).Update(ctx, u)
	})
	if err != nil {
		return nil, err
	}
	return upload, nil
}

// Status returns the session of ref without changing it.
func (s *UploadService) Status(ctx context.Context, ref UploadRef) (*models.Upload, error) {
	var upload *models.Upload
	err := s.db.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		_, u, err := s.lock(ctx, tx, ref, common.ErrNoSuchUpload)
		upload = u
		return err
	})
	if err != nil {
		return nil, err
	}
	return upload, nil
}
