package memory

import (
	"context"
	"sort"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/server/models"
)

// FolderRepository is the in-memory folders.Repository.
type FolderRepository struct{ s *Store }

func (s *Store) Folders() *FolderRepository { return &FolderRepository{s: s} }

func findFolder(t *tables, bucketID int64, parentID *int64, name string) (models.Folder, bool) {
	for _, f := range t.folders {
		if f.BucketID == bucketID && models.SameFolder(f.ParentID, parentID) && f.FolderName == name {
			return f, true
		}
	}
	return models.Folder{}, false
}

func (r *FolderRepository) Create(ctx context.Context, folder *models.Folder) error {
	if folder == nil {
		return errNilRecord
	}
	return r.s.write(func(t *tables) error {
		if _, ok := findFolder(t, folder.BucketID, folder.ParentID, folder.FolderName); ok {
			return common.ErrAlreadyExists
		}
		now := r.s.now()
		folder.ID = t.nextID()
		folder.CreatedAt, folder.UpdatedAt = now, now
		row := *folder
		row.ParentID = copyID(folder.ParentID)
		t.folders[folder.ID] = row
		return nil
	})
}

func (r *FolderRepository) Get(ctx context.Context, id int64) (*models.Folder, error) {
	var found *models.Folder
	err := r.s.read(func(t *tables) error {
		f, ok := t.folders[id]
		if !ok {
			return common.ErrorNotFound
		}
		found = &f
		return nil
	})
	return found, err
}

func (r *FolderRepository) FindChild(ctx context.Context, bucketID int64, parentID *int64, name string) (*models.Folder, error) {
	var found *models.Folder
	err := r.s.read(func(t *tables) error {
		f, ok := findFolder(t, bucketID, parentID, name)
		if !ok {
			return common.ErrorNotFound
		}
		found = &f
		return nil
	})
	return found, err
}

func (r *FolderRepository) ListChildren(ctx context.Context, bucketID int64, parentID *int64) ([]*models.Folder, error) {
	var result []*models.Folder
	err := r.s.read(func(t *tables) error {
		for _, f := range t.folders {
			if f.BucketID == bucketID && models.SameFolder(f.ParentID, parentID) {
				result = append(result, &f)
			}
		}
		return nil
	})
	sort.Slice(result, func(i, j int) bool { return result[i].FolderName < result[j].FolderName })
	return result, err
}

func (r *FolderRepository) SetReadOnly(ctx context.Context, id int64, readOnly bool) error {
	return r.s.write(func(t *tables) error {
		f, ok := t.folders[id]
		if !ok {
			return common.ErrorNotFound
		}
		f.ReadOnly = readOnly
		f.UpdatedAt = r.s.now()
		t.folders[id] = f
		return nil
	})
}
