package services

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/filevault/internal/logging"
	"github.com/dmitrijs2005/filevault/internal/server/models"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/memory"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/filevault/internal/server/storage"
)

const (
	project = "athena"
	bucket  = "files"
)

var (
	admin  = models.Actor{Email: "zeus@olympus.org", Name: "Zeus", Role: models.RoleAdmin}
	editor = models.Actor{Email: "athena@olympus.org", Name: "Athena", Role: models.RoleEditor}
	viewer = models.Actor{Email: "hermes@olympus.org", Name: "Hermes", Role: models.RoleViewer}
)

type fakeArchiver struct {
	mu      sync.Mutex
	puts    []string
	putErr  error
	signErr error
}

func (f *fakeArchiver) Put(ctx context.Context, md5Hash, location string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return "", f.putErr
	}
	f.puts = append(f.puts, md5Hash)
	return "blocks/" + md5Hash, nil
}

func (f *fakeArchiver) PresignGet(ctx context.Context, archiveID string, ttl time.Duration) (string, error) {
	if f.signErr != nil {
		return "", f.signErr
	}
	return "https://archive.example.org/" + archiveID, nil
}

type env struct {
	store    *memory.Store
	rm       repomanager.RepositoryManager
	fs       *storage.FS
	archiver *fakeArchiver
	uploads  *UploadService
	files    *FileService
	folders  *FolderService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := memory.NewStore()
	rm := repomanager.NewInMemoryRepositoryManager(store)
	fs, err := storage.NewFS(filepath.Join(t.TempDir(), "data"))
	require.NoError(t, err)

	log := logging.NewNopLogger()
	arch := &fakeArchiver{}
	blocks := NewBlockStore(fs, arch, log)

	e := &env{
		store:    store,
		rm:       rm,
		fs:       fs,
		archiver: arch,
		uploads:  NewUploadService(store, rm, fs, blocks, log),
		files:    NewFileService(store, rm, blocks, log),
		folders:  NewFolderService(store, rm, log),
	}
	require.NoError(t, e.folders.EnsureBucket(context.Background(), project, bucket))
	return e
}

func digest(b []byte) string {
	sum := md5.Sum(b)
	return hex.EncodeToString(sum[:])
}

func ref(path, uploader string) UploadRef {
	return UploadRef{ProjectName: project, BucketName: bucket, FilePath: path, UploaderID: uploader}
}

func fileRef(path string) FileRef {
	return FileRef{ProjectName: project, BucketName: bucket, FilePath: path}
}

func (e *env) mkdir(t *testing.T, path string, readOnly bool) {
	t.Helper()
	ctx := context.Background()
	_, err := e.folders.Create(ctx, admin, project, bucket, path)
	require.NoError(t, err)
	if readOnly {
		_, err = e.folders.SetReadOnly(ctx, admin, project, bucket, path, true)
		require.NoError(t, err)
	}
}

// upload drives a complete chunked upload of content to path.
func (e *env) upload(t *testing.T, path string, content []byte, chunk int) *UploadResult {
	t.Helper()
	ctx := context.Background()
	r := ref(path, "uid-"+path)

	_, err := e.uploads.Authorize(ctx, editor, r)
	require.NoError(t, err)

	chunks := split(content, chunk)
	first := []byte{}
	if len(chunks) > 0 {
		first = chunks[0]
	}
	_, err = e.uploads.Start(ctx, r, int64(len(content)), int64(len(first)), digest(first))
	require.NoError(t, err)

	if len(chunks) == 0 {
		chunks = [][]byte{{}}
	}
	var res *UploadResult
	for i, c := range chunks {
		next := []byte{}
		if i+1 < len(chunks) {
			next = chunks[i+1]
		}
		res, err = e.uploads.SubmitBlob(ctx, r, bytes.NewReader(c), int64(len(next)), digest(next))
		require.NoError(t, err)
	}
	require.NotNil(t, res.File)
	return res
}

func split(b []byte, n int) [][]byte {
	var out [][]byte
	for len(b) > 0 {
		k := min(n, len(b))
		out = append(out, b[:k])
		b = b[k:]
	}
	return out
}

var errBoom = errors.New("boom")
