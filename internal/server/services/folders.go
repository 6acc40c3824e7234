package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/dbx"
	"github.com/dmitrijs2005/filevault/internal/logging"
	"github.com/dmitrijs2005/filevault/internal/server/models"
	"github.com/dmitrijs2005/filevault/internal/server/paths"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/repomanager"
)

// Listing is the content of one folder.
type Listing struct {
	Folders []*models.FolderStatus `json:"folders"`
	Files   []*models.FileStatus   `json:"files"`
}

// FolderService manages buckets and folders.
type FolderService struct {
	db          dbx.Database
	repomanager repomanager.RepositoryManager
	log         logging.Logger
}

func NewFolderService(db dbx.Database, rm repomanager.RepositoryManager, log logging.Logger) *FolderService {
	return &FolderService{db: db, repomanager: rm, log: log}
}

func folderStatus(bucket *models.Bucket, f *models.Folder, folderPath string) *models.FolderStatus {
	return &models.FolderStatus{
		FolderName:  f.FolderName,
		FolderPath:  folderPath,
		ProjectName: f.ProjectName,
		BucketName:  bucket.Name,
		ReadOnly:    f.ReadOnly,
		Author:      f.Author,
		UpdatedAt:   f.UpdatedAt,
		CreatedAt:   f.CreatedAt,
	}
}

// CreateBucket adds a bucket to project.
func (s *FolderService) CreateBucket(ctx context.Context, actor models.Actor, project, name string) (*models.Bucket, error) {
	if !actor.Role.CanAdmin() {
		return nil, forbidden(actor, "create buckets")
	}
	if !paths.ValidName(name) {
		return nil, fmt.Errorf("%w: bucket name %q", common.ErrInvalidPath, name)
	}

	bucket := &models.Bucket{ProjectName: project, Name: name}
	err := s.db.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repomanager.Buckets(tx).Create(ctx, bucket)
	})
	if errors.Is(err, common.ErrAlreadyExists) {
		return nil, fmt.Errorf("%w: bucket %q exists", common.ErrNameConflict, name)
	}
	if err != nil {
		return nil, err
	}
	s.log.Info(ctx, "bucket created", "project", project, "bucket", name, "by", actor.Email)
	return bucket, nil
}

// EnsureBucket creates the bucket unless it exists. Used to seed
// configured buckets at startup.
func (s *FolderService) EnsureBucket(ctx context.Context, project, name string) error {
	return s.db.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Buckets(tx)
		_, err := repo.FindByName(ctx, project, name)
		if errors.Is(err, common.ErrorNotFound) {
			return repo.Create(ctx, &models.Bucket{ProjectName: project, Name: name})
		}
		return err
	})
}

// ListBuckets returns the buckets of project.
func (s *FolderService) ListBuckets(ctx context.Context, actor models.Actor, project string) ([]*models.Bucket, error) {
	if !actor.Role.CanView() {
		return nil, forbidden(actor, "list buckets")
	}
	var list []*models.Bucket
	err := s.db.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		list, err = s.repomanager.Buckets(tx).List(ctx, project)
		return err
	})
	return list, err
}

// Create adds the folder named by the last segment of folderPath. Its
// parent chain must already exist and the parent must not be read-only.
func (s *FolderService) Create(ctx context.Context, actor models.Actor, project, bucketName, folderPath string) (*models.FolderStatus, error) {
	if !actor.Role.CanEdit() {
		return nil, forbidden(actor, "create folders")
	}
	parentNames, name, err := paths.Parse(folderPath)
	if err != nil {
		return nil, err
	}

	var status *models.FolderStatus
	err = s.db.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		bucket, err := findBucket(ctx, s.repomanager, tx, project, bucketName)
		if err != nil {
			return err
		}
		parent, err := NewFolderTree(s.repomanager.Folders(tx)).Require(ctx, bucket.ID, parentNames)
		if err != nil {
			return err
		}
		if IsBlocked(parent) {
			return common.ErrFolderReadOnly
		}

		_, err = s.repomanager.Files(tx).Find(ctx, bucket.ID, models.FolderID(parent), name)
		switch {
		case err == nil:
			return fmt.Errorf("%w: %q is a file", common.ErrNameConflict, name)
		case !errors.Is(err, common.ErrorNotFound):
			return err
		}

		folder := &models.Folder{
			BucketID:    bucket.ID,
			ParentID:    models.FolderID(parent),
			ProjectName: project,
			FolderName:  name,
			Author:      actor.Author(),
		}
		if err := s.repomanager.Folders(tx).Create(ctx, folder); err != nil {
			if errors.Is(err, common.ErrAlreadyExists) {
				return fmt.Errorf("%w: folder %q exists", common.ErrNameConflict, folderPath)
			}
			return err
		}
		status = folderStatus(bucket, folder, folderPath)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return status, nil
}

// SetReadOnly changes a folder's read-only flag. Admins only.
func (s *FolderService) SetReadOnly(ctx context.Context, actor models.Actor, project, bucketName, folderPath string, readOnly bool) (*models.FolderStatus, error) {
	if _, _, err := paths.Parse(folderPath); err != nil {
		return nil, err
	}
	if !actor.Role.CanAdmin() {
		return nil, forbidden(actor, "change read-only flags")
	}

	var status *models.FolderStatus
	err := s.db.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		bucket, err := findBucket(ctx, s.repomanager, tx, project, bucketName)
		if err != nil {
			return err
		}
		folder, err := NewFolderTree(s.repomanager.Folders(tx)).Require(ctx, bucket.ID, paths.Split(folderPath))
		if err != nil {
			return err
		}
		if err := s.repomanager.Folders(tx).SetReadOnly(ctx, folder.ID, readOnly); err != nil {
			return err
		}
		folder.ReadOnly = readOnly
		status = folderStatus(bucket, folder, folderPath)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return status, nil
}

// List returns the folders and files directly under folderPath ("" for the
// bucket root).
func (s *FolderService) List(ctx context.Context, actor models.Actor, project, bucketName, folderPath string) (*Listing, error) {
	if !actor.Role.CanView() {
		return nil, forbidden(actor, "list folders")
	}
	segments := paths.Split(folderPath)
	if folderPath != "" {
		if _, _, err := paths.Parse(folderPath); err != nil {
			return nil, err
		}
	}

	listing := &Listing{Folders: []*models.FolderStatus{}, Files: []*models.FileStatus{}}
	err := s.db.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		bucket, err := findBucket(ctx, s.repomanager, tx, project, bucketName)
		if err != nil {
			return err
		}
		folder, err := NewFolderTree(s.repomanager.Folders(tx)).Require(ctx, bucket.ID, segments)
		if err != nil {
			return err
		}

		children, err := s.repomanager.Folders(tx).ListChildren(ctx, bucket.ID, models.FolderID(folder))
		if err != nil {
			return err
		}
		for _, c := range children {
			listing.Folders = append(listing.Folders, folderStatus(bucket, c, strings.TrimPrefix(folderPath+paths.Separator+c.FolderName, paths.Separator)))
		}

		files, err := s.repomanager.Files(tx).ListInFolder(ctx, bucket.ID, models.FolderID(folder))
		if err != nil {
			return err
		}
		for _, f := range files {
			st, err := fileStatus(ctx, s.repomanager, tx, bucket, f, folderPath)
			if err != nil {
				return err
			}
			listing.Files = append(listing.Files, st)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return listing, nil
}
