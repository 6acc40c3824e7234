package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/filevault/internal/common"
)

// errorBody is the JSON document returned for every failed request.
type errorBody struct {
	Error struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error"`
}

// errorKinds maps sentinel errors to HTTP statuses, most specific first.
var errorKinds = []struct {
	err    error
	status int
	kind   string
}{
	{common.ErrForbidden, http.StatusForbidden, "Forbidden"},
	{common.ErrInvalidPath, http.StatusUnprocessableEntity, "InvalidPath"},
	{common.ErrInvalidFolder, http.StatusUnprocessableEntity, "InvalidFolder"},
	{common.ErrAlreadyProtected, http.StatusUnprocessableEntity, "AlreadyProtected"},
	{common.ErrNotProtected, http.StatusUnprocessableEntity, "NotProtected"},
	{common.ErrFolderReadOnly, http.StatusForbidden, "FolderReadOnly"},
	{common.ErrFileReadOnly, http.StatusForbidden, "FileReadOnly"},
	{common.ErrNameConflict, http.StatusForbidden, "NameConflict"},
	{common.ErrFileNotFound, http.StatusNotFound, "FileNotFound"},
	{common.ErrBucketNotFound, http.StatusNotFound, "BucketNotFound"},
	{common.ErrNoSuchUpload, http.StatusBadRequest, "NoSuchUpload"},
	{common.ErrUploadNotStarted, http.StatusBadRequest, "UploadNotStarted"},
	{common.ErrIntegrityMismatch, http.StatusBadRequest, "IntegrityMismatch"},
	{common.ErrBadRequest, http.StatusBadRequest, "BadRequest"},
	{common.ErrTokenExpired, http.StatusUnauthorized, "TokenExpired"},
	{common.ErrInvalidToken, http.StatusUnauthorized, "InvalidToken"},
	{common.ErrorUnauthorized, http.StatusUnauthorized, "Unauthorized"},
}

func mapError(err error) (int, string) {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.status, k.kind
		}
	}
	return http.StatusInternalServerError, "Internal"
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if r.Method == http.MethodHead {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err; infrastructure failures are logged and their
// text is not exposed.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := mapError(err)

	var body errorBody
	body.Error.Kind = kind
	body.Error.Message = err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed", "req_id", requestID(r.Context()), "path", r.URL.Path, "error", err)
		body.Error.Message = "internal error"
	}
	writeJSON(w, r, status, body)
}
