package memory

import (
	"context"
	"sort"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/server/models"
)

// BucketRepository is the in-memory buckets.Repository.
type BucketRepository struct{ s *Store }

func (s *Store) Buckets() *BucketRepository { return &BucketRepository{s: s} }

func (r *BucketRepository) Create(ctx context.Context, bucket *models.Bucket) error {
	if bucket == nil {
		return errNilRecord
	}
	return r.s.write(func(t *tables) error {
		for _, b := range t.buckets {
			if b.ProjectName == bucket.ProjectName && b.Name == bucket.Name {
				return common.ErrAlreadyExists
			}
		}
		bucket.ID = t.nextID()
		bucket.CreatedAt = r.s.now()
		t.buckets[bucket.ID] = *bucket
		return nil
	})
}

func (r *BucketRepository) FindByName(ctx context.Context, projectName, name string) (*models.Bucket, error) {
	var found *models.Bucket
	err := r.s.read(func(t *tables) error {
		for _, b := range t.buckets {
			if b.ProjectName == projectName && b.Name == name {
				found = &b
				return nil
			}
		}
		return common.ErrorNotFound
	})
	return found, err
}

func (r *BucketRepository) List(ctx context.Context, projectName string) ([]*models.Bucket, error) {
	var result []*models.Bucket
	err := r.s.read(func(t *tables) error {
		for _, b := range t.buckets {
			if b.ProjectName == projectName {
				result = append(result, &b)
			}
		}
		return nil
	})
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, err
}
