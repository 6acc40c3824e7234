// Package uploader is the client side of the resumable chunked upload
// protocol: authorize, start (or resume), then a blob per chunk, each one
// announcing the size and MD5 of the chunk that follows.
package uploader

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path"
	"strconv"

	"github.com/dmitrijs2005/filevault/internal/client/config"
	"github.com/dmitrijs2005/filevault/internal/logging"
	"github.com/dmitrijs2005/filevault/internal/netx"
)

// UploadStatus mirrors the server's upload session document.
type UploadStatus struct {
	ProjectName         string `json:"project_name"`
	FileName            string `json:"file_name"`
	Author              string `json:"author"`
	CurrentBytePosition int64  `json:"current_byte_position"`
	NextBlobSize        int64  `json:"next_blob_size"`
	NextBlobHash        string `json:"next_blob_hash"`
}

// FileStatus mirrors the server's file status document.
type FileStatus struct {
	FileName    string `json:"file_name"`
	ProjectName string `json:"project_name"`
	BucketName  string `json:"bucket_name"`
	FilePath    string `json:"file_path"`
	Author      string `json:"author"`
	FileHash    string `json:"file_hash"`
	ReadOnly    bool   `json:"read_only"`
	Size        int64  `json:"size"`
	DownloadURL string `json:"download_url"`
}

type authorizeResponse struct {
	UploadURL string        `json:"upload_url"`
	Upload    *UploadStatus `json:"upload"`
}

// Memory keeps small values between client runs.
type Memory interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

type Uploader struct {
	base      *url.URL
	client    *http.Client
	token     string
	project   string
	bucket    string
	chunkSize int64
	memory    Memory
	logger    logging.Logger
}

// New returns an uploader for the server and credentials in cfg. The
// uploader keeps the server's uploader cookie between calls.
func New(cfg *config.Config, l logging.Logger) (*Uploader, error) {
	base, err := url.Parse(cfg.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("server url: %w", err)
	}
	if cfg.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", cfg.ChunkSize)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &Uploader{
		base:      base,
		client:    &http.Client{Jar: jar, Timeout: cfg.RequestTimeout},
		token:     cfg.AccessToken,
		project:   cfg.Project,
		bucket:    cfg.Bucket,
		chunkSize: cfg.ChunkSize,
		logger:    l.With("module", "uploader"),
	}, nil
}

type savedCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func (u *Uploader) cookieKey() string {
	return "cookies:" + u.base.Host
}

// Remember restores the uploader identity saved in m for this server, so
// uploads started by an earlier run can be resumed, and saves the identity
// issued from now on.
func (u *Uploader) Remember(ctx context.Context, m Memory) error {
	u.memory = m
	raw, err := m.Get(ctx, u.cookieKey())
	if err != nil || raw == nil {
		return err
	}
	var saved []savedCookie
	if err := json.Unmarshal(raw, &saved); err != nil {
		return fmt.Errorf("saved cookies: %w", err)
	}
	cookies := make([]*http.Cookie, 0, len(saved))
	for _, c := range saved {
		cookies = append(cookies, &http.Cookie{Name: c.Name, Value: c.Value, Path: "/"})
	}
	u.client.Jar.SetCookies(u.base, cookies)
	return nil
}

func (u *Uploader) saveCookies(ctx context.Context) {
	if u.memory == nil {
		return
	}
	var saved []savedCookie
	for _, c := range u.client.Jar.Cookies(u.base) {
		saved = append(saved, savedCookie{Name: c.Name, Value: c.Value})
	}
	raw, err := json.Marshal(saved)
	if err == nil {
		err = u.memory.Set(ctx, u.cookieKey(), raw)
	}
	if err != nil {
		u.logger.Warn(ctx, "could not save uploader identity", "error", err)
	}
}

func (u *Uploader) bearer() http.Header {
	return http.Header{"Authorization": {"Bearer " + u.token}}
}

// local points a capability URL at the configured server; the URL's path
// and signature are kept as issued.
func (u *Uploader) local(raw string) (string, error) {
	signed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("capability url: %w", err)
	}
	return u.base.ResolveReference(&url.URL{Path: signed.Path, RawQuery: signed.RawQuery}).String(), nil
}

func decode(resp *http.Response, v any) error {
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return readAPIError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// Authorize obtains the capability URL for uploading remotePath.
func (u *Uploader) Authorize(ctx context.Context, remotePath string) (string, *UploadStatus, error) {
	target := u.base.JoinPath(u.project, "authorize", u.bucket, remotePath).String()
	resp, err := netx.PostForm(ctx, u.client, target, u.bearer(), url.Values{})
	if err != nil {
		return "", nil, err
	}
	var ar authorizeResponse
	if err := decode(resp, &ar); err != nil {
		return "", nil, err
	}
	u.saveCookies(ctx)
	uploadURL, err := u.local(ar.UploadURL)
	if err != nil {
		return "", nil, err
	}
	return uploadURL, ar.Upload, nil
}

func (u *Uploader) action(ctx context.Context, target, action string, fields url.Values) (*UploadStatus, error) {
	if fields == nil {
		fields = url.Values{}
	}
	fields.Set("action", action)
	resp, err := netx.PostForm(ctx, u.client, target, nil, fields)
	if err != nil {
		return nil, err
	}
	var st UploadStatus
	if err := decode(resp, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Status returns the server's view of the session behind target.
func (u *Uploader) Status(ctx context.Context, target string) (*UploadStatus, error) {
	return u.action(ctx, target, "status", nil)
}

// Cancel discards the session behind target.
func (u *Uploader) Cancel(ctx context.Context, target string) error {
	fields := url.Values{"action": {"cancel"}}
	resp, err := netx.PostForm(ctx, u.client, target, nil, fields)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return readAPIError(resp)
	}
	return nil
}

// chunkFile reads fixed-size chunks of a local file.
type chunkFile struct {
	f    *os.File
	size int64
	cs   int64
}

func (c *chunkFile) read(off, n int64) ([]byte, error) {
	buf := make([]byte, n)
	read, err := c.f.ReadAt(buf, off)
	if int64(read) == n {
		return buf, nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return nil, fmt.Errorf("read %d bytes at %d: %w", n, off, err)
}

// chunkAt returns the chunk that starts at off, sized by the chunk size
// or the remainder of the file.
func (c *chunkFile) chunkAt(off int64) ([]byte, error) {
	return c.read(off, min(c.cs, c.size-off))
}

func digest(b []byte) string {
	sum := md5.Sum(b)
	return hex.EncodeToString(sum[:])
}

func (u *Uploader) start(ctx context.Context, target string, cf *chunkFile) (*UploadStatus, error) {
	first, err := cf.chunkAt(0)
	if err != nil {
		return nil, err
	}
	return u.action(ctx, target, "start", url.Values{
		"file_size":      {strconv.FormatInt(cf.size, 10)},
		"next_blob_size": {strconv.Itoa(len(first))},
		"next_blob_hash": {digest(first)},
	})
}

// Upload sends localPath to remotePath, resuming a session this uploader
// already started. A session whose next expected chunk no longer matches
// the local file is reset and restarted.
func (u *Uploader) Upload(ctx context.Context, localPath, remotePath string) (*FileStatus, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	cf := &chunkFile{f: f, size: fi.Size(), cs: u.chunkSize}

	target, _, err := u.Authorize(ctx, remotePath)
	if err != nil {
		return nil, err
	}
	st, err := u.start(ctx, target, cf)
	if err != nil {
		return nil, err
	}

	if st.CurrentBytePosition > 0 {
		if !u.resumable(cf, st) {
			u.logger.Warn(ctx, "session does not match local file, restarting", "path", remotePath, "position", st.CurrentBytePosition)
			if _, err := u.action(ctx, target, "reset", nil); err != nil {
				return nil, err
			}
			if st, err = u.start(ctx, target, cf); err != nil {
				return nil, err
			}
		} else {
			u.logger.Info(ctx, "resuming upload", "path", remotePath, "position", st.CurrentBytePosition)
		}
	}

	for {
		pos := st.CurrentBytePosition
		blob, err := cf.read(pos, st.NextBlobSize)
		if err != nil {
			return nil, err
		}
		end := pos + int64(len(blob))

		next := []byte{}
		if end < cf.size {
			if next, err = cf.chunkAt(end); err != nil {
				return nil, err
			}
		}

		resp, err := netx.PostMultipart(ctx, u.client, target, nil, url.Values{
			"action":         {"blob"},
			"next_blob_size": {strconv.Itoa(len(next))},
			"next_blob_hash": {digest(next)},
		}, "blob_data", blob)
		if err != nil {
			return nil, err
		}

		if end == cf.size {
			var fs FileStatus
			if err := decode(resp, &fs); err != nil {
				return nil, err
			}
			u.logger.Info(ctx, "upload complete", "path", remotePath, "size", fs.Size, "md5", fs.FileHash)
			return &fs, nil
		}

		st = &UploadStatus{}
		if err := decode(resp, st); err != nil {
			return nil, err
		}
		u.logger.Debug(ctx, "blob sent", "path", path.Base(remotePath), "position", st.CurrentBytePosition)
	}
}

func (u *Uploader) resumable(cf *chunkFile, st *UploadStatus) bool {
	if st.CurrentBytePosition > cf.size || st.NextBlobSize < 0 || st.CurrentBytePosition+st.NextBlobSize > cf.size {
		return false
	}
	blob, err := cf.read(st.CurrentBytePosition, st.NextBlobSize)
	if err != nil {
		return false
	}
	return digest(blob) == st.NextBlobHash
}
