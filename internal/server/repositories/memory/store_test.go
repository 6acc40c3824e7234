package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/dbx"
	"github.com/dmitrijs2005/filevault/internal/server/models"
)

func TestWithTx_RollsBackOnError(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(ctx context.Context, _ dbx.DBTX) error {
		require.NoError(t, s.Buckets().Create(ctx, &models.Bucket{ProjectName: "athena", Name: "files"}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.Buckets().FindByName(ctx, "athena", "files")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestWithTx_RollsBackOnPanic(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	assert.Panics(t, func() {
		_ = s.WithTx(ctx, func(ctx context.Context, _ dbx.DBTX) error {
			_ = s.Buckets().Create(ctx, &models.Bucket{ProjectName: "athena", Name: "files"})
			panic("kaboom")
		})
	})

	list, err := s.Buckets().List(ctx, "athena")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestWithTx_Commits(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	require.NoError(t, s.WithTx(ctx, func(ctx context.Context, _ dbx.DBTX) error {
		return s.Buckets().Create(ctx, &models.Bucket{ProjectName: "athena", Name: "files"})
	}))

	b, err := s.Buckets().FindByName(ctx, "athena", "files")
	require.NoError(t, err)
	assert.NotZero(t, b.ID)
}

func TestWithTx_CancelledContext(t *testing.T) {
	s := NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.WithTx(ctx, func(context.Context, dbx.DBTX) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestWithTx_Serializes(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	key := models.UploadKey{ProjectName: "athena", BucketID: 1, FilePath: "f", UploaderID: "u"}
	_, err := s.Uploads().FindOrCreate(ctx, models.NewUpload(key, ""))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.WithTx(ctx, func(ctx context.Context, _ dbx.DBTX) error {
				u, err := s.Uploads().FindForUpdate(ctx, key)
				if err != nil {
					return err
				}
				u.CurrentBytePosition++
				return s.Uploads().Update(ctx, u)
			})
		}()
	}
	wg.Wait()

	u, err := s.Uploads().Find(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(50), u.CurrentBytePosition)
}

func TestFolders(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	r := s.Folders()

	root := &models.Folder{BucketID: 1, FolderName: "blueprints"}
	require.NoError(t, r.Create(ctx, root))
	assert.ErrorIs(t, r.Create(ctx, &models.Folder{BucketID: 1, FolderName: "blueprints"}), common.ErrAlreadyExists)

	child := &models.Folder{BucketID: 1, ParentID: models.FolderID(root), FolderName: "helmet"}
	require.NoError(t, r.Create(ctx, child))
	require.NoError(t, r.Create(ctx, &models.Folder{BucketID: 2, FolderName: "blueprints"}))

	got, err := r.FindChild(ctx, 1, &root.ID, "helmet")
	require.NoError(t, err)
	assert.Equal(t, child.ID, got.ID)

	_, err = r.FindChild(ctx, 1, nil, "helmet")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	list, err := r.ListChildren(ctx, 1, nil)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, r.SetReadOnly(ctx, child.ID, true))
	got, err = r.Get(ctx, child.ID)
	require.NoError(t, err)
	assert.True(t, got.ReadOnly)
	assert.ErrorIs(t, r.SetReadOnly(ctx, 999, true), common.ErrorNotFound)
}

func TestFiles(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	r := s.Files()
	folder := int64(10)

	f := &models.File{BucketID: 1, FileName: "wisdom.txt", DataBlockID: 1, Author: "a"}
	require.NoError(t, r.Upsert(ctx, f))
	created := f.CreatedAt

	again := &models.File{BucketID: 1, FileName: "wisdom.txt", DataBlockID: 2, Author: "b"}
	require.NoError(t, r.Upsert(ctx, again))
	assert.Equal(t, f.ID, again.ID)
	assert.Equal(t, created, again.CreatedAt)

	got, err := r.Find(ctx, 1, nil, "wisdom.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.DataBlockID)
	assert.Equal(t, "b", got.Author)

	require.NoError(t, r.SetReadOnly(ctx, f.ID, true))
	assert.ErrorIs(t, r.Upsert(ctx, &models.File{BucketID: 1, FileName: "wisdom.txt", DataBlockID: 3}), common.ErrFileReadOnly)

	other := &models.File{BucketID: 1, FolderID: &folder, FileName: "wisdom.txt", DataBlockID: 1}
	require.NoError(t, r.Upsert(ctx, other))
	assert.ErrorIs(t, r.Rename(ctx, other.ID, nil, "wisdom.txt"), common.ErrAlreadyExists)
	require.NoError(t, r.Rename(ctx, other.ID, nil, "folly.txt"))

	list, err := r.ListInFolder(ctx, 1, nil)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "folly.txt", list[0].FileName)

	require.NoError(t, r.Delete(ctx, other.ID))
	assert.ErrorIs(t, r.Delete(ctx, other.ID), common.ErrorNotFound)
}

func TestDataBlocks(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	r := s.DataBlocks()

	b := &models.DataBlock{MD5Hash: "abc", Size: 3, Location: "/first"}
	require.NoError(t, r.CreateOrGet(ctx, b))

	dup := &models.DataBlock{MD5Hash: "abc", Size: 3, Location: "/second"}
	require.NoError(t, r.CreateOrGet(ctx, dup))
	assert.Equal(t, b.ID, dup.ID)
	assert.Equal(t, "/first", dup.Location)

	require.NoError(t, r.SetArchiveID(ctx, b.ID, "blocks/abc"))
	got, err := r.FindByHash(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "blocks/abc", got.ArchiveID)

	_, err = r.Get(ctx, 999)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestUploads(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	r := s.Uploads()
	key := models.UploadKey{ProjectName: "athena", BucketID: 1, FilePath: "a/b", UploaderID: "u1"}

	u, err := r.FindOrCreate(ctx, models.NewUpload(key, "me"))
	require.NoError(t, err)

	u.FileSize, u.CurrentBytePosition = 10, 4
	require.NoError(t, r.Update(ctx, u))

	again, err := r.FindOrCreate(ctx, models.NewUpload(key, "someone else"))
	require.NoError(t, err)
	assert.Equal(t, u.ID, again.ID)
	assert.Equal(t, int64(4), again.CurrentBytePosition)
	assert.Equal(t, "me", again.Author)

	otherKey := key
	otherKey.UploaderID = "u2"
	_, err = r.Find(ctx, otherKey)
	assert.ErrorIs(t, err, common.ErrorNotFound)

	require.NoError(t, r.Delete(ctx, u.ID))
	assert.ErrorIs(t, r.Delete(ctx, u.ID), common.ErrorNotFound)
	assert.ErrorIs(t, r.Update(ctx, u), common.ErrorNotFound)
}
