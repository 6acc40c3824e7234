package memory

import (
	"context"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/server/models"
)

// UploadRepository is the in-memory uploads.Repository. Row locks are
// implied by the store's serialized transactions.
type UploadRepository struct{ s *Store }

func (s *Store) Uploads() *UploadRepository { return &UploadRepository{s: s} }

func findUpload(t *tables, key models.UploadKey) (models.Upload, bool) {
	for _, u := range t.uploads {
		if u.Key() == key {
			return u, true
		}
	}
	return models.Upload{}, false
}

func (r *UploadRepository) FindOrCreate(ctx context.Context, upload *models.Upload) (*models.Upload, error) {
	if upload == nil {
		return nil, errNilRecord
	}
	var result models.Upload
	err := r.s.write(func(t *tables) error {
		now := r.s.now()
		if existing, ok := findUpload(t, upload.Key()); ok {
			existing.UpdatedAt = now
			t.uploads[existing.ID] = existing
			result = existing
			return nil
		}
		result = *upload
		result.ID = t.nextID()
		result.CreatedAt, result.UpdatedAt = now, now
		t.uploads[result.ID] = result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *UploadRepository) Find(ctx context.Context, key models.UploadKey) (*models.Upload, error) {
	var found *models.Upload
	err := r.s.read(func(t *tables) error {
		u, ok := findUpload(t, key)
		if !ok {
			return common.ErrorNotFound
		}
		found = &u
		return nil
	})
	return found, err
}

func (r *UploadRepository) FindForUpdate(ctx context.Context, key models.UploadKey) (*models.Upload, error) {
	return r.Find(ctx, key)
}

func (r *UploadRepository) Update(ctx context.Context, upload *models.Upload) error {
	if upload == nil {
		return errNilRecord
	}
	return r.s.write(func(t *tables) error {
		u, ok := t.uploads[upload.ID]
		if !ok {
			return common.ErrorNotFound
		}
		u.FileSize = upload.FileSize
		u.CurrentBytePosition = upload.CurrentBytePosition
		u.NextBlobSize = upload.NextBlobSize
		u.NextBlobHash = upload.NextBlobHash
		u.UpdatedAt = r.s.now()
		t.uploads[u.ID] = u
		upload.UpdatedAt = u.UpdatedAt
		return nil
	})
}

func (r *UploadRepository) Delete(ctx context.Context, id int64) error {
	return r.s.write(func(t *tables) error {
		if _, ok := t.uploads[id]; !ok {
			return common.ErrorNotFound
		}
		delete(t.uploads, id)
		return nil
	})
}
