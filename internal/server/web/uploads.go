package web

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/server/models"
	"github.com/dmitrijs2005/filevault/internal/server/services"
)

const (
	maxUploadRequest = 64 << 20
	multipartMemory  = 8 << 20
)

// Form fields of the upload endpoint.
const (
	actionField       = "action"
	fileSizeField     = "file_size"
	nextBlobSizeField = "next_blob_size"
	nextBlobHashField = "next_blob_hash"
	blobField         = "blob_data"
)

// Upload actions.
const (
	actionStart  = "start"
	actionBlob   = "blob"
	actionCancel = "cancel"
	actionReset  = "reset"
	actionStatus = "status"
)

// AuthorizeResponse carries the capability URL for the upload endpoint.
type AuthorizeResponse struct {
	UploadURL string               `json:"upload_url"`
	Upload    *models.UploadStatus `json:"upload"`
}

func uploadPath(project, bucket, filePath string) string {
	return "/" + strings.Join([]string{project, "upload", bucket, filePath}, "/")
}

func downloadPath(project, bucket, filePath string) string {
	return "/" + strings.Join([]string{project, "download", bucket, filePath}, "/")
}

// uploaderID returns the uploader cookie value, minting and setting one
// when the request carries none.
func (s *Server) uploaderID(w http.ResponseWriter, r *http.Request) (string, error) {
	if c, err := r.Cookie(s.cfg.UploaderCookieName); err == nil && c.Value != "" {
		return c.Value, nil
	}
	id, err := common.MakeRandHexString(16)
	if err != nil {
		return "", fmt.Errorf("uploader id: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.UploaderCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id, nil
}

func uploadRef(r *http.Request, uploaderID string) services.UploadRef {
	return services.UploadRef{
		ProjectName: r.PathValue("project"),
		BucketName:  r.PathValue("bucket"),
		FilePath:    r.PathValue("path"),
		UploaderID:  uploaderID,
	}
}

func (s *Server) authorizeUpload(w http.ResponseWriter, r *http.Request) {
	uid, err := s.uploaderID(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ref := uploadRef(r, uid)

	upload, err := s.uploads.Authorize(r.Context(), actor(r), ref)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	u, err := s.signer.Sign(http.MethodPost, r.Host, uploadPath(ref.ProjectName, ref.BucketName, ref.FilePath), s.cfg.UploadExpiration)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, AuthorizeResponse{UploadURL: u.String(), Upload: upload.Status()})
}

func formInt(r *http.Request, name string) (int64, error) {
	v := r.FormValue(name)
	if v == "" {
		return 0, fmt.Errorf("%w: missing %s", common.ErrBadRequest, name)
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", common.ErrBadRequest, name, err)
	}
	return n, nil
}

// descriptor reads the size and hash of the next expected blob.
func descriptor(r *http.Request) (int64, string, error) {
	size, err := formInt(r, nextBlobSizeField)
	if err != nil {
		return 0, "", err
	}
	return size, r.FormValue(nextBlobHashField), nil
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		s.writeError(w, r, fmt.Errorf("%w: %v", common.ErrBadRequest, err))
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	c, err := r.Cookie(s.cfg.UploaderCookieName)
	if err != nil || c.Value == "" {
		s.writeError(w, r, fmt.Errorf("%w: missing uploader cookie", common.ErrBadRequest))
		return
	}
	ref := uploadRef(r, c.Value)
	ctx := r.Context()

	switch action := r.FormValue(actionField); action {
	case actionStart:
		fileSize, err := formInt(r, fileSizeField)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		size, hash, err := descriptor(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		u, err := s.uploads.Start(ctx, ref, fileSize, size, hash)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, u.Status())

	case actionBlob:
		size, hash, err := descriptor(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		blob, err := s.blob(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		defer blob.Close()

		res, err := s.uploads.SubmitBlob(ctx, ref, blob, size, hash)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if res.File == nil {
			writeJSON(w, r, http.StatusOK, res.Upload.Status())
			return
		}
		if err := s.withDownloadURL(r, res.File); err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, res.File)

	case actionCancel:
		if err := s.uploads.Cancel(ctx, ref); err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, map[string]string{"state": string(models.UploadCancelled)})

	case actionReset:
		u, err := s.uploads.Reset(ctx, ref)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, u.Status())

	case actionStatus:
		u, err := s.uploads.Status(ctx, ref)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, u.Status())

	default:
		s.writeError(w, r, fmt.Errorf("%w: unknown action %q", common.ErrBadRequest, action))
	}
}

// blob opens the chunk of a blob request. An empty chunk may be sent
// without a file part.
func (s *Server) blob(r *http.Request) (io.ReadCloser, error) {
	f, _, err := r.FormFile(blobField)
	switch {
	case err == nil:
		return f, nil
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		return io.NopCloser(http.NoBody), nil
	default:
		return nil, fmt.Errorf("%w: %v", common.ErrBadRequest, err)
	}
}

// withDownloadURL signs a download capability URL into st.
func (s *Server) withDownloadURL(r *http.Request, st *models.FileStatus) error {
	u, err := s.signer.Sign(http.MethodGet, r.Host, downloadPath(st.ProjectName, st.BucketName, st.FilePath), s.cfg.DownloadExpiration)
	if err != nil {
		return err
	}
	st.DownloadURL = u.String()
	return nil
}

func (s *Server) download(w http.ResponseWriter, r *http.Request) {
	ref := services.FileRef{
		ProjectName: r.PathValue("project"),
		BucketName:  r.PathValue("bucket"),
		FilePath:    r.PathValue("path"),
	}
	d, err := s.files.Download(r.Context(), ref, s.cfg.DownloadExpiration)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if d.RemoteURL != "" {
		http.Redirect(w, r, d.RemoteURL, http.StatusTemporaryRedirect)
		return
	}

	f, err := os.Open(d.LocalPath)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("open block: %w", err))
		return
	}
	defer f.Close()

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", d.Status.FileName))
	w.Header().Set("ETag", strconv.Quote(d.Status.FileHash))
	http.ServeContent(w, r, d.Status.FileName, d.Status.UpdatedAt, f)
}
