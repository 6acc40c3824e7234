package web

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/filevault/internal/logging"
	"github.com/dmitrijs2005/filevault/internal/server/auth"
	"github.com/dmitrijs2005/filevault/internal/server/config"
	"github.com/dmitrijs2005/filevault/internal/server/models"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/memory"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/filevault/internal/server/services"
	"github.com/dmitrijs2005/filevault/internal/server/signer"
	"github.com/dmitrijs2005/filevault/internal/server/storage"
)

const (
	project = "athena"
	bucket  = "files"
)

type testEnv struct {
	srv    *httptest.Server
	client *http.Client
	cfg    *config.Config
	store  *memory.Store
	server *Server
}

func newTestEnv(t *testing.T, opts ...func(*config.Config)) *testEnv {
	t.Helper()

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.EndpointAddrHTTP = "127.0.0.1:0"
	cfg.DataRoot = filepath.Join(t.TempDir(), "data")
	for _, o := range opts {
		o(cfg)
	}

	store := memory.NewStore()
	rm := repomanager.NewInMemoryRepositoryManager(store)
	fs, err := storage.NewFS(cfg.DataRoot)
	require.NoError(t, err)

	log := logging.NewNopLogger()
	blocks := services.NewBlockStore(fs, nil, log)
	folders := services.NewFolderService(store, rm, log)
	require.NoError(t, folders.EnsureBucket(context.Background(), project, bucket))

	s := NewServer(cfg, log,
		services.NewUploadService(store, rm, fs, blocks, log),
		services.NewFileService(store, rm, blocks, log),
		folders,
		signer.New(cfg.SecretKey, cfg.SignerID))

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &testEnv{srv: srv, client: &http.Client{Jar: jar}, cfg: cfg, store: store, server: s}
}

func (e *testEnv) token(t *testing.T, role models.Role) string {
	t.Helper()
	tok, err := auth.GenerateToken("athena@olympus.org", "Athena", map[string]models.Role{project: role}, []byte(e.cfg.SecretKey), time.Hour)
	require.NoError(t, err)
	return tok
}

// local points a capability URL minted for the test server's host at it.
func (e *testEnv) local(t *testing.T, raw string) string {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return e.srv.URL + u.Path + "?" + u.RawQuery
}

func (e *testEnv) do(t *testing.T, method, path, token string, form url.Values) *http.Response {
	t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequest(method, e.srv.URL+path, body)
	require.NoError(t, err)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *testEnv) postForm(t *testing.T, target string, form url.Values) *http.Response {
	t.Helper()
	resp, err := e.client.PostForm(target, form)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *testEnv) postBlob(t *testing.T, target string, blob []byte, nextSize int64, nextHash string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField(actionField, actionBlob))
	require.NoError(t, mw.WriteField(nextBlobSizeField, strconv.FormatInt(nextSize, 10)))
	require.NoError(t, mw.WriteField(nextBlobHashField, nextHash))
	part, err := mw.CreateFormFile(blobField, "blob")
	require.NoError(t, err)
	_, err = part.Write(blob)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := e.client.Post(target, mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func requireError(t *testing.T, resp *http.Response, status int, kind string) {
	t.Helper()
	require.Equal(t, status, resp.StatusCode)
	body := decode[errorBody](t, resp)
	assert.Equal(t, kind, body.Error.Kind)
}

func digest(b []byte) string {
	sum := md5.Sum(b)
	return hex.EncodeToString(sum[:])
}

func (e *testEnv) mkdir(t *testing.T, path string, readOnly bool) {
	t.Helper()
	admin := e.token(t, models.RoleAdmin)
	resp := e.do(t, http.MethodPost, "/"+project+"/folder/create/"+bucket+"/"+path, admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	if readOnly {
		resp = e.do(t, http.MethodPost, "/"+project+"/folder/protect/"+bucket+"/"+path, admin, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
}

// authorize returns the local upload URL for path.
func (e *testEnv) authorize(t *testing.T, path string) string {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/"+project+"/authorize/"+bucket+"/"+path, e.token(t, models.RoleEditor), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ar := decode[AuthorizeResponse](t, resp)
	assert.Zero(t, ar.Upload.CurrentBytePosition)
	return e.local(t, ar.UploadURL)
}

func (e *testEnv) upload(t *testing.T, path string, content []byte, chunk int) models.FileStatus {
	t.Helper()
	target := e.authorize(t, path)

	var chunks [][]byte
	for rest := content; len(rest) > 0; {
		n := min(chunk, len(rest))
		chunks = append(chunks, rest[:n])
		rest = rest[n:]
	}
	if len(chunks) == 0 {
		chunks = [][]byte{{}}
	}

	resp := e.postForm(t, target, url.Values{
		actionField:       {actionStart},
		fileSizeField:     {strconv.Itoa(len(content))},
		nextBlobSizeField: {strconv.Itoa(len(chunks[0]))},
		nextBlobHashField: {digest(chunks[0])},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	for i, c := range chunks {
		next := []byte{}
		if i+1 < len(chunks) {
			next = chunks[i+1]
		}
		resp = e.postBlob(t, target, c, int64(len(next)), digest(next))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		if i+1 < len(chunks) {
			st := decode[models.UploadStatus](t, resp)
			assert.Equal(t, digest(next), st.NextBlobHash)
		}
	}
	return decode[models.FileStatus](t, resp)
}

func TestUploadDownloadRemove(t *testing.T) {
	e := newTestEnv(t)
	e.mkdir(t, "blueprints", false)
	e.mkdir(t, "blueprints/helmet", false)

	content := bytes.Repeat([]byte("aegis"), 1000)
	st := e.upload(t, "blueprints/helmet/helmet.jpg", content, 1024)

	assert.False(t, st.ReadOnly)
	assert.Equal(t, int64(len(content)), st.Size)
	assert.Equal(t, digest(content), st.FileHash)
	assert.Equal(t, "blueprints/helmet/helmet.jpg", st.FilePath)
	assert.Equal(t, "athena@olympus.org|Athena", st.Author)
	require.NotEmpty(t, st.DownloadURL)

	resp, err := e.client.Get(e.local(t, st.DownloadURL))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, content, got)

	block, err := e.store.DataBlocks().FindByHash(context.Background(), st.FileHash)
	require.NoError(t, err)

	resp = e.do(t, http.MethodPost, "/"+project+"/file/remove/"+bucket+"/blueprints/helmet/helmet.jpg", e.token(t, models.RoleEditor), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	onDisk, err := os.ReadFile(block.Location)
	require.NoError(t, err)
	assert.Equal(t, content, onDisk)

	resp = e.do(t, http.MethodGet, "/"+project+"/file/status/"+bucket+"/blueprints/helmet/helmet.jpg", e.token(t, models.RoleViewer), nil)
	requireError(t, resp, http.StatusNotFound, "FileNotFound")
}

func TestRenameIntoReadOnlyFolder(t *testing.T) {
	e := newTestEnv(t)
	e.mkdir(t, "contents", true)
	e.upload(t, "wisdom.txt", []byte("know thyself"), 4)

	resp := e.do(t, http.MethodPost, "/"+project+"/file/rename/"+bucket+"/wisdom.txt",
		e.token(t, models.RoleEditor), url.Values{newPathField: {"contents/wisdom.txt"}})
	requireError(t, resp, http.StatusForbidden, "FolderReadOnly")

	resp = e.do(t, http.MethodGet, "/"+project+"/file/status/"+bucket+"/wisdom.txt", e.token(t, models.RoleViewer), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRenameAndProtect(t *testing.T) {
	e := newTestEnv(t)
	e.mkdir(t, "docs", false)
	e.upload(t, "a.txt", []byte("a"), 4)
	admin := e.token(t, models.RoleAdmin)

	resp := e.do(t, http.MethodPost, "/"+project+"/file/rename/"+bucket+"/a.txt", admin, url.Values{newPathField: {"docs/b.txt"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	st := decode[models.FileStatus](t, resp)
	assert.Equal(t, "docs/b.txt", st.FilePath)

	resp = e.do(t, http.MethodPost, "/"+project+"/file/rename/"+bucket+"/docs/b.txt", admin, url.Values{newPathField: {"docs"}})
	requireError(t, resp, http.StatusForbidden, "NameConflict")

	resp = e.do(t, http.MethodPost, "/"+project+"/file/rename/"+bucket+"/docs/b.txt", admin, nil)
	requireError(t, resp, http.StatusBadRequest, "BadRequest")

	resp = e.do(t, http.MethodPost, "/"+project+"/file/protect/"+bucket+"/docs/b.txt", e.token(t, models.RoleEditor), nil)
	requireError(t, resp, http.StatusForbidden, "Forbidden")

	resp = e.do(t, http.MethodPost, "/"+project+"/file/protect/"+bucket+"/docs/b.txt", admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decode[models.FileStatus](t, resp).ReadOnly)

	resp = e.do(t, http.MethodPost, "/"+project+"/file/protect/"+bucket+"/docs/b.txt", admin, nil)
	requireError(t, resp, http.StatusUnprocessableEntity, "AlreadyProtected")

	resp = e.do(t, http.MethodPost, "/"+project+"/file/remove/"+bucket+"/docs/b.txt", admin, nil)
	requireError(t, resp, http.StatusForbidden, "FileReadOnly")

	resp = e.do(t, http.MethodPost, "/"+project+"/file/unprotect/"+bucket+"/docs/b.txt", admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = e.do(t, http.MethodPost, "/"+project+"/file/unprotect/"+bucket+"/docs/b.txt", admin, nil)
	requireError(t, resp, http.StatusUnprocessableEntity, "NotProtected")
}

func TestUploadProtocolErrors(t *testing.T) {
	e := newTestEnv(t)
	target := e.authorize(t, "a.txt")

	resp := e.postBlob(t, target, []byte("abc"), 0, "")
	requireError(t, resp, http.StatusBadRequest, "IntegrityMismatch")

	resp = e.postForm(t, target, url.Values{actionField: {"explode"}})
	requireError(t, resp, http.StatusBadRequest, "BadRequest")

	resp = e.postForm(t, target, url.Values{actionField: {actionStart}, fileSizeField: {"6"}})
	requireError(t, resp, http.StatusBadRequest, "BadRequest")

	resp = e.postForm(t, target, url.Values{
		actionField:       {actionStart},
		fileSizeField:     {"6"},
		nextBlobSizeField: {"3"},
		nextBlobHashField: {digest([]byte("abc"))},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = e.postBlob(t, target, []byte("xyz"), 3, digest([]byte("def")))
	requireError(t, resp, http.StatusBadRequest, "IntegrityMismatch")

	resp = e.postForm(t, target, url.Values{actionField: {actionStatus}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Zero(t, decode[models.UploadStatus](t, resp).CurrentBytePosition)

	resp = e.postForm(t, target, url.Values{actionField: {actionReset}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, models.NoNextBlobSize, decode[models.UploadStatus](t, resp).NextBlobSize)

	resp = e.postForm(t, target, url.Values{actionField: {actionCancel}})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = e.postForm(t, target, url.Values{actionField: {actionCancel}})
	requireError(t, resp, http.StatusBadRequest, "NoSuchUpload")
}

func TestUploadRequiresCookie(t *testing.T) {
	e := newTestEnv(t)
	target := e.authorize(t, "a.txt")

	resp, err := http.PostForm(target, url.Values{actionField: {actionStatus}})
	require.NoError(t, err)
	defer resp.Body.Close()
	requireError(t, resp, http.StatusBadRequest, "BadRequest")
}

func TestUploaderCookieIsReused(t *testing.T) {
	e := newTestEnv(t)
	e.authorize(t, "a.txt")
	u, err := url.Parse(e.srv.URL)
	require.NoError(t, err)
	first := e.client.Jar.Cookies(u)
	require.Len(t, first, 1)
	assert.Equal(t, e.cfg.UploaderCookieName, first[0].Name)

	e.authorize(t, "a.txt")
	assert.Equal(t, first[0].Value, e.client.Jar.Cookies(u)[0].Value)
}

func TestCapabilityURLChecks(t *testing.T) {
	e := newTestEnv(t)
	target := e.authorize(t, "a.txt")

	tampered := strings.Replace(target, "/a.txt", "/b.txt", 1)
	resp := e.postForm(t, tampered, url.Values{actionField: {actionStatus}})
	requireError(t, resp, http.StatusUnauthorized, "InvalidToken")

	bare := strings.SplitN(target, "?", 2)[0]
	resp = e.postForm(t, bare, url.Values{actionField: {actionStatus}})
	requireError(t, resp, http.StatusUnauthorized, "InvalidToken")

	resp, err := e.client.Get(target)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestCapabilityURLExpires(t *testing.T) {
	e := newTestEnv(t, func(c *config.Config) { c.UploadExpiration = time.Nanosecond })
	target := e.authorize(t, "a.txt")
	time.Sleep(10 * time.Millisecond)

	resp := e.postForm(t, target, url.Values{actionField: {actionStatus}})
	requireError(t, resp, http.StatusUnauthorized, "TokenExpired")
}

func TestBearerRequired(t *testing.T) {
	e := newTestEnv(t)

	resp := e.do(t, http.MethodPost, "/"+project+"/authorize/"+bucket+"/a.txt", "", nil)
	requireError(t, resp, http.StatusUnauthorized, "Unauthorized")

	resp = e.do(t, http.MethodPost, "/"+project+"/authorize/"+bucket+"/a.txt", "garbage", nil)
	requireError(t, resp, http.StatusUnauthorized, "InvalidToken")

	resp = e.do(t, http.MethodPost, "/"+project+"/authorize/"+bucket+"/a.txt", e.token(t, models.RoleViewer), nil)
	requireError(t, resp, http.StatusForbidden, "Forbidden")

	resp = e.do(t, http.MethodPost, "/other/authorize/"+bucket+"/a.txt", e.token(t, models.RoleEditor), nil)
	requireError(t, resp, http.StatusForbidden, "Forbidden")
}

func TestAuthorizeValidation(t *testing.T) {
	e := newTestEnv(t)
	e.mkdir(t, "locked", true)
	editor := e.token(t, models.RoleEditor)

	resp := e.do(t, http.MethodPost, "/"+project+"/authorize/"+bucket+"/a%7Cb.txt", editor, nil)
	requireError(t, resp, http.StatusUnprocessableEntity, "InvalidPath")

	resp = e.do(t, http.MethodPost, "/"+project+"/authorize/"+bucket+"/missing/a.txt", editor, nil)
	requireError(t, resp, http.StatusUnprocessableEntity, "InvalidFolder")

	resp = e.do(t, http.MethodPost, "/"+project+"/authorize/"+bucket+"/locked/a.txt", editor, nil)
	requireError(t, resp, http.StatusForbidden, "FolderReadOnly")

	resp = e.do(t, http.MethodPost, "/"+project+"/authorize/nope/a.txt", editor, nil)
	requireError(t, resp, http.StatusNotFound, "BucketNotFound")
}

func TestCompletionViolationIsForbidden(t *testing.T) {
	e := newTestEnv(t)
	e.mkdir(t, "contents", false)
	target := e.authorize(t, "contents/a.txt")

	resp := e.postForm(t, target, url.Values{
		actionField:       {actionStart},
		fileSizeField:     {"3"},
		nextBlobSizeField: {"3"},
		nextBlobHashField: {digest([]byte("abc"))},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = e.do(t, http.MethodPost, "/"+project+"/folder/protect/"+bucket+"/contents", e.token(t, models.RoleAdmin), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = e.postBlob(t, target, []byte("abc"), 0, "")
	requireError(t, resp, http.StatusForbidden, "Forbidden")

	resp = e.postForm(t, target, url.Values{actionField: {actionStatus}})
	requireError(t, resp, http.StatusBadRequest, "NoSuchUpload")
}

func TestListAndBuckets(t *testing.T) {
	e := newTestEnv(t)
	e.mkdir(t, "docs", false)
	e.upload(t, "top.txt", []byte("t"), 4)
	viewer := e.token(t, models.RoleViewer)

	for _, p := range []string{"/" + project + "/list/" + bucket, "/" + project + "/list/" + bucket + "/"} {
		resp := e.do(t, http.MethodGet, p, viewer, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, p)
		listing := decode[services.Listing](t, resp)
		require.Len(t, listing.Folders, 1)
		assert.Equal(t, "docs", listing.Folders[0].FolderName)
		require.Len(t, listing.Files, 1)
		assert.NotEmpty(t, listing.Files[0].DownloadURL)
	}

	resp := e.do(t, http.MethodGet, "/"+project+"/list/"+bucket+"/docs", viewer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[services.Listing](t, resp).Files)

	resp = e.do(t, http.MethodPost, "/"+project+"/buckets/media", viewer, nil)
	requireError(t, resp, http.StatusForbidden, "Forbidden")

	resp = e.do(t, http.MethodPost, "/"+project+"/buckets/media", e.token(t, models.RoleAdmin), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = e.do(t, http.MethodGet, "/"+project+"/buckets", viewer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var names []string
	for _, b := range decode[[]BucketStatus](t, resp) {
		names = append(names, b.BucketName)
	}
	assert.ElementsMatch(t, []string{bucket, "media"}, names)
}

func TestRequestID(t *testing.T) {
	e := newTestEnv(t)

	resp := e.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(requestIDHeader))

	req, err := http.NewRequest(http.MethodGet, e.srv.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set(requestIDHeader, "fixed")
	resp2, err := e.client.Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, "fixed", resp2.Header.Get(requestIDHeader))
}
