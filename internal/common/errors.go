// Package common defines shared constants and sentinel errors used across
// the server and client layers. Callers should use errors.Is to match these
// values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound    = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// Authentication and bucket lookup.
	ErrorUnauthorized = errors.New("unauthorized")
	ErrInvalidToken   = errors.New("invalid token")
	ErrTokenExpired   = errors.New("token expired")
	ErrBucketNotFound = errors.New("bucket not found")
)

// Request-scoped failures of the file tree and the upload protocol.
var (
	ErrInvalidPath      = errors.New("invalid path")
	ErrInvalidFolder    = errors.New("invalid folder")
	ErrFolderReadOnly   = errors.New("folder is read-only")
	ErrFileReadOnly     = errors.New("file is read-only")
	ErrFileNotFound     = errors.New("file not found")
	ErrNameConflict     = errors.New("name conflict")
	ErrAlreadyProtected = errors.New("file is already read-only")
	ErrNotProtected     = errors.New("file is not protected")

	ErrNoSuchUpload      = errors.New("no matching upload")
	ErrUploadNotStarted  = errors.New("upload has not been started")
	ErrIntegrityMismatch = errors.New("blob integrity failed")
	ErrForbidden         = errors.New("forbidden")
	ErrBadRequest        = errors.New("bad request")

	// Both wrap ErrNameConflict but keep distinguishable text.
	ErrFileExists   = fmt.Errorf("%w: cannot rename over existing file", ErrNameConflict)
	ErrFolderExists = fmt.Errorf("%w: cannot rename over existing folder", ErrNameConflict)
)

var domainErrors = []error{
	ErrInvalidPath, ErrInvalidFolder, ErrFolderReadOnly, ErrFileReadOnly,
	ErrFileNotFound, ErrNameConflict, ErrAlreadyProtected, ErrNotProtected,
	ErrNoSuchUpload, ErrUploadNotStarted, ErrIntegrityMismatch, ErrForbidden, ErrBadRequest,
	ErrBucketNotFound, ErrorUnauthorized, ErrInvalidToken, ErrTokenExpired,
}

// IsDomainError reports whether err belongs to the request-scoped taxonomy,
// as opposed to an infrastructure failure.
func IsDomainError(err error) bool {
	for _, d := range domainErrors {
		if errors.Is(err, d) {
			return true
		}
	}
	return false
}
