package uploader

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/netx"
)

// APIError is a failed request as reported by the server.
type APIError struct {
	StatusCode int
	Kind       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Kind, e.StatusCode, e.Message)
}

var kinds = map[string]error{
	"InvalidPath":       common.ErrInvalidPath,
	"InvalidFolder":     common.ErrInvalidFolder,
	"FolderReadOnly":    common.ErrFolderReadOnly,
	"FileReadOnly":      common.ErrFileReadOnly,
	"FileNotFound":      common.ErrFileNotFound,
	"BucketNotFound":    common.ErrBucketNotFound,
	"NameConflict":      common.ErrNameConflict,
	"AlreadyProtected":  common.ErrAlreadyProtected,
	"NotProtected":      common.ErrNotProtected,
	"NoSuchUpload":      common.ErrNoSuchUpload,
	"UploadNotStarted":  common.ErrUploadNotStarted,
	"IntegrityMismatch": common.ErrIntegrityMismatch,
	"Forbidden":         common.ErrForbidden,
	"BadRequest":        common.ErrBadRequest,
	"TokenExpired":      common.ErrTokenExpired,
	"InvalidToken":      common.ErrInvalidToken,
	"Unauthorized":      common.ErrorUnauthorized,
}

// Unwrap exposes the matching common sentinel, so callers can use errors.Is.
func (e *APIError) Unwrap() error {
	return kinds[e.Kind]
}

func readAPIError(resp *http.Response) error {
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		return netx.ReadError(resp)
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body struct {
		Error struct {
			Kind    string `json:"kind"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || body.Error.Kind == "" {
		return &APIError{StatusCode: resp.StatusCode, Kind: "Unknown", Message: string(raw)}
	}
	return &APIError{StatusCode: resp.StatusCode, Kind: body.Error.Kind, Message: body.Error.Message}
}
