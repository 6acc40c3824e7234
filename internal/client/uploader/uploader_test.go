package uploader

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/filevault/internal/client/config"
	"github.com/dmitrijs2005/filevault/internal/client/state"
	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/logging"
	"github.com/dmitrijs2005/filevault/internal/netx"
	"github.com/dmitrijs2005/filevault/internal/server/auth"
	serverconfig "github.com/dmitrijs2005/filevault/internal/server/config"
	"github.com/dmitrijs2005/filevault/internal/server/models"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/memory"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/filevault/internal/server/services"
	"github.com/dmitrijs2005/filevault/internal/server/signer"
	"github.com/dmitrijs2005/filevault/internal/server/storage"
	"github.com/dmitrijs2005/filevault/internal/server/web"
)

const (
	project = "athena"
	bucket  = "files"
)

type fixture struct {
	srv     *httptest.Server
	folders *services.FolderService
	secret  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := &serverconfig.Config{}
	cfg.LoadDefaults()
	cfg.DataRoot = filepath.Join(t.TempDir(), "data")

	store := memory.NewStore()
	rm := repomanager.NewInMemoryRepositoryManager(store)
	fs, err := storage.NewFS(cfg.DataRoot)
	require.NoError(t, err)

	log := logging.NewNopLogger()
	blocks := services.NewBlockStore(fs, nil, log)
	folders := services.NewFolderService(store, rm, log)
	require.NoError(t, folders.EnsureBucket(context.Background(), project, bucket))

	s := web.NewServer(cfg, log,
		services.NewUploadService(store, rm, fs, blocks, log),
		services.NewFileService(store, rm, blocks, log),
		folders,
		signer.New(cfg.SecretKey, cfg.SignerID))

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, folders: folders, secret: cfg.SecretKey}
}

func (f *fixture) uploader(t *testing.T, role models.Role, chunk int64) *Uploader {
	t.Helper()
	tok, err := auth.GenerateToken("athena@olympus.org", "Athena", map[string]models.Role{project: role}, []byte(f.secret), time.Hour)
	require.NoError(t, err)

	u, err := New(&config.Config{
		ServerURL:      f.srv.URL,
		AccessToken:    tok,
		Project:        project,
		Bucket:         bucket,
		ChunkSize:      chunk,
		RequestTimeout: 5 * time.Second,
	}, logging.NewNopLogger())
	require.NoError(t, err)
	return u
}

func writeFile(t *testing.T, content []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "local.bin")
	require.NoError(t, os.WriteFile(p, content, 0o600))
	return p
}

func TestUpload(t *testing.T) {
	f := newFixture(t)
	u := f.uploader(t, models.RoleEditor, 100)

	content := bytes.Repeat([]byte("0123456789"), 55)
	st, err := u.Upload(context.Background(), writeFile(t, content), "docs.bin")
	require.NoError(t, err)

	assert.Equal(t, "docs.bin", st.FilePath)
	assert.Equal(t, int64(len(content)), st.Size)
	assert.Equal(t, digest(content), st.FileHash)
	assert.NotEmpty(t, st.DownloadURL)
}

func TestUpload_EmptyFile(t *testing.T) {
	f := newFixture(t)
	u := f.uploader(t, models.RoleEditor, 100)

	st, err := u.Upload(context.Background(), writeFile(t, nil), "empty.bin")
	require.NoError(t, err)
	assert.Zero(t, st.Size)
}

func TestUpload_Resumes(t *testing.T) {
	f := newFixture(t)
	u := f.uploader(t, models.RoleEditor, 10)
	ctx := context.Background()

	content := []byte("abcdefghijklmnopqrstuvwxyz")
	local := writeFile(t, content)

	target, _, err := u.Authorize(ctx, "alphabet.txt")
	require.NoError(t, err)
	fh, err := os.Open(local)
	require.NoError(t, err)
	defer fh.Close()
	cf := &chunkFile{f: fh, size: int64(len(content)), cs: 10}
	_, err = u.start(ctx, target, cf)
	require.NoError(t, err)

	resp, err := netx.PostMultipart(ctx, u.client, target, nil, url.Values{
		"action":         {"blob"},
		"next_blob_size": {strconv.Itoa(10)},
		"next_blob_hash": {digest(content[10:20])},
	}, "blob_data", content[:10])
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	st, err := u.Status(ctx, target)
	require.NoError(t, err)
	require.Equal(t, int64(10), st.CurrentBytePosition)

	fs, err := u.Upload(ctx, local, "alphabet.txt")
	require.NoError(t, err)
	assert.Equal(t, digest(content), fs.FileHash)
}

func TestUpload_RestartsWhenLocalFileChanged(t *testing.T) {
	f := newFixture(t)
	u := f.uploader(t, models.RoleEditor, 4)
	ctx := context.Background()

	old := []byte("old-contents")
	target, _, err := u.Authorize(ctx, "a.txt")
	require.NoError(t, err)
	_, err = u.action(ctx, target, "start", url.Values{
		"file_size":      {strconv.Itoa(len(old))},
		"next_blob_size": {"4"},
		"next_blob_hash": {digest(old[:4])},
	})
	require.NoError(t, err)
	resp, err := netx.PostMultipart(ctx, u.client, target, nil, url.Values{
		"action":         {"blob"},
		"next_blob_size": {"4"},
		"next_blob_hash": {digest(old[4:8])},
	}, "blob_data", old[:4])
	require.NoError(t, err)
	resp.Body.Close()

	fresh := []byte("fresh-data-here!")
	st, err := u.Upload(ctx, writeFile(t, fresh), "a.txt")
	require.NoError(t, err)
	assert.Equal(t, digest(fresh), st.FileHash)
	assert.Equal(t, int64(len(fresh)), st.Size)
}

func TestUpload_ReportsDomainErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	admin := models.Actor{Email: "zeus@olympus.org", Name: "Zeus", Role: models.RoleAdmin}
	_, err := f.folders.Create(ctx, admin, project, bucket, "locked")
	require.NoError(t, err)
	_, err = f.folders.SetReadOnly(ctx, admin, project, bucket, "locked", true)
	require.NoError(t, err)

	u := f.uploader(t, models.RoleEditor, 4)
	_, err = u.Upload(ctx, writeFile(t, []byte("x")), "locked/x.txt")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrFolderReadOnly)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)

	viewer := f.uploader(t, models.RoleViewer, 4)
	_, err = viewer.Upload(ctx, writeFile(t, []byte("x")), "x.txt")
	assert.ErrorIs(t, err, common.ErrForbidden)
}

func TestRemember_ResumesAcrossRuns(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	st, err := state.Open(ctx, ":memory:")
	require.NoError(t, err)
	defer st.Close()

	content := []byte("abcdefghijklmnopqrstuvwxyz")
	local := writeFile(t, content)

	first := f.uploader(t, models.RoleEditor, 10)
	require.NoError(t, first.Remember(ctx, st.Metadata))
	target, _, err := first.Authorize(ctx, "alphabet.txt")
	require.NoError(t, err)
	_, err = first.action(ctx, target, "start", url.Values{
		"file_size":      {strconv.Itoa(len(content))},
		"next_blob_size": {"10"},
		"next_blob_hash": {digest(content[:10])},
	})
	require.NoError(t, err)
	resp, err := netx.PostMultipart(ctx, first.client, target, nil, url.Values{
		"action":         {"blob"},
		"next_blob_size": {"10"},
		"next_blob_hash": {digest(content[10:20])},
	}, "blob_data", content[:10])
	require.NoError(t, err)
	resp.Body.Close()

	second := f.uploader(t, models.RoleEditor, 10)
	require.NoError(t, second.Remember(ctx, st.Metadata))
	_, us, err := second.Authorize(ctx, "alphabet.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(10), us.CurrentBytePosition)

	fs, err := second.Upload(ctx, local, "alphabet.txt")
	require.NoError(t, err)
	assert.Equal(t, digest(content), fs.FileHash)

	stranger := f.uploader(t, models.RoleEditor, 10)
	_, us, err = stranger.Authorize(ctx, "other.txt")
	require.NoError(t, err)
	assert.Zero(t, us.CurrentBytePosition)
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	u := f.uploader(t, models.RoleEditor, 4)
	ctx := context.Background()

	target, _, err := u.Authorize(ctx, "a.txt")
	require.NoError(t, err)
	require.NoError(t, u.Cancel(ctx, target))

	_, err = u.Status(ctx, target)
	assert.ErrorIs(t, err, common.ErrNoSuchUpload)
}

func TestNew_RejectsBadChunkSize(t *testing.T) {
	_, err := New(&config.Config{ServerURL: "http://x", ChunkSize: 0}, logging.NewNopLogger())
	assert.Error(t, err)
}

func TestReadAPIError_NonJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway down", http.StatusBadGateway)
	}))
	defer ts.Close()

	u, err := New(&config.Config{ServerURL: ts.URL, ChunkSize: 4, Project: project, Bucket: bucket}, logging.NewNopLogger())
	require.NoError(t, err)

	_, _, err = u.Authorize(context.Background(), "a.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}
