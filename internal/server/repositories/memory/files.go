package memory

import (
	"context"
	"sort"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/server/models"
)

// FileRepository is the in-memory files.Repository. It enforces the same
// (bucket, folder, name) uniqueness as the SQL schema.
type FileRepository struct{ s *Store }

func (s *Store) Files() *FileRepository { return &FileRepository{s: s} }

func findFile(t *tables, bucketID int64, folderID *int64, name string) (models.File, bool) {
	for _, f := range t.files {
		if f.BucketID == bucketID && models.SameFolder(f.FolderID, folderID) && f.FileName == name {
			return f, true
		}
	}
	return models.File{}, false
}

func (r *FileRepository) Find(ctx context.Context, bucketID int64, folderID *int64, name string) (*models.File, error) {
	var found *models.File
	err := r.s.read(func(t *tables) error {
		f, ok := findFile(t, bucketID, folderID, name)
		if !ok {
			return common.ErrorNotFound
		}
		found = &f
		return nil
	})
	return found, err
}

func (r *FileRepository) ListInFolder(ctx context.Context, bucketID int64, folderID *int64) ([]*models.File, error) {
	var result []*models.File
	err := r.s.read(func(t *tables) error {
		for _, f := range t.files {
			if f.BucketID == bucketID && models.SameFolder(f.FolderID, folderID) {
				result = append(result, &f)
			}
		}
		return nil
	})
	sort.Slice(result, func(i, j int) bool { return result[i].FileName < result[j].FileName })
	return result, err
}

func (r *FileRepository) Upsert(ctx context.Context, file *models.File) error {
	if file == nil {
		return errNilRecord
	}
	return r.s.write(func(t *tables) error {
		now := r.s.now()
		if existing, ok := findFile(t, file.BucketID, file.FolderID, file.FileName); ok {
			if existing.ReadOnly {
				return common.ErrFileReadOnly
			}
			existing.DataBlockID = file.DataBlockID
			existing.Author = file.Author
			existing.UpdatedAt = now
			t.files[existing.ID] = existing
			file.ID, file.ReadOnly, file.CreatedAt, file.UpdatedAt = existing.ID, existing.ReadOnly, existing.CreatedAt, now
			return nil
		}
		file.ID = t.nextID()
		file.ReadOnly = false
		file.CreatedAt, file.UpdatedAt = now, now
		row := *file
		row.FolderID = copyID(file.FolderID)
		t.files[file.ID] = row
		return nil
	})
}

func (r *FileRepository) Rename(ctx context.Context, id int64, folderID *int64, name string) error {
	return r.s.write(func(t *tables) error {
		f, ok := t.files[id]
		if !ok {
			return common.ErrorNotFound
		}
		if other, taken := findFile(t, f.BucketID, folderID, name); taken && other.ID != id {
			return common.ErrAlreadyExists
		}
		f.FolderID = copyID(folderID)
		f.FileName = name
		f.UpdatedAt = r.s.now()
		t.files[id] = f
		return nil
	})
}

func (r *FileRepository) SetReadOnly(ctx context.Context, id int64, readOnly bool) error {
	return r.s.write(func(t *tables) error {
		f, ok := t.files[id]
		if !ok {
			return common.ErrorNotFound
		}
		f.ReadOnly = readOnly
		f.UpdatedAt = r.s.now()
		t.files[id] = f
		return nil
	})
}

func (r *FileRepository) Delete(ctx context.Context, id int64) error {
	return r.s.write(func(t *tables) error {
		if _, ok := t.files[id]; !ok {
			return common.ErrorNotFound
		}
		delete(t.files, id)
		return nil
	})
}
