package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/filevault/internal/filex"
	"github.com/dmitrijs2005/filevault/internal/server/models"
)

func newFS(t *testing.T) *FS {
	t.Helper()
	s, err := NewFS(filepath.Join(t.TempDir(), "data"))
	require.NoError(t, err)
	return s
}

func TestPartialPath_ScopedByUploader(t *testing.T) {
	s := newFS(t)
	a := models.UploadKey{ProjectName: "athena", BucketID: 1, FilePath: "blueprints/helmet.jpg", UploaderID: "u1"}
	b := a
	b.UploaderID = "u2"

	assert.NotEqual(t, s.PartialPath(a), s.PartialPath(b))
	assert.True(t, strings.HasPrefix(s.PartialPath(a), s.Root()))
	assert.NotContains(t, filepath.Base(s.PartialPath(a)), "/")
}

func TestAppendTruncateRemovePartial(t *testing.T) {
	s := newFS(t)
	key := models.UploadKey{ProjectName: "athena", FilePath: "x.txt", UploaderID: "u1"}

	blob, d, err := s.Spool(strings.NewReader("hello "))
	require.NoError(t, err)
	assert.Equal(t, int64(6), d.Size)

	n, err := s.AppendPartial(key, blob)
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)

	n, err = s.AppendPartial(key, blob)
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)

	require.NoError(t, s.TruncatePartial(key, 6))
	size, err := s.PartialSize(key)
	require.NoError(t, err)
	assert.Equal(t, int64(6), size)

	require.NoError(t, s.RemovePartial(key))
	require.NoError(t, s.RemovePartial(key))
	size, err = s.PartialSize(key)
	require.NoError(t, err)
	assert.Zero(t, size)
}

func TestStoreBlock(t *testing.T) {
	s := newFS(t)
	src := filepath.Join(t.TempDir(), "assembled")
	require.NoError(t, os.WriteFile(src, []byte("wisdom"), 0o600))
	d, err := filex.MD5File(src)
	require.NoError(t, err)

	loc, err := s.StoreBlock(src, d.MD5)
	require.NoError(t, err)
	assert.Equal(t, s.BlockPath(d.MD5), loc)
	assert.True(t, s.HasBlock(loc))
	assert.Equal(t, d.MD5[:2], filepath.Base(filepath.Dir(loc)))

	// a second copy under the same hash leaves the first in place
	other := filepath.Join(t.TempDir(), "other")
	require.NoError(t, os.WriteFile(other, []byte("changed"), 0o600))
	again, err := s.StoreBlock(other, d.MD5)
	require.NoError(t, err)
	b, err := os.ReadFile(again)
	require.NoError(t, err)
	assert.Equal(t, "wisdom", string(b))

	assert.False(t, s.HasBlock(""))
}
