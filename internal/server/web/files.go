package web

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/server/models"
	"github.com/dmitrijs2005/filevault/internal/server/services"
)

const newPathField = "new_path"

func fileRef(r *http.Request) services.FileRef {
	return services.FileRef{
		ProjectName: r.PathValue("project"),
		BucketName:  r.PathValue("bucket"),
		FilePath:    r.PathValue("path"),
	}
}

type fileOp func(ctx context.Context, a models.Actor, ref services.FileRef) (*models.FileStatus, error)

// serveFileOp runs op and answers with the resulting file status.
func (s *Server) serveFileOp(w http.ResponseWriter, r *http.Request, op fileOp) {
	st, err := op(r.Context(), actor(r), fileRef(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.withDownloadURL(r, st); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, st)
}

func (s *Server) fileStatus(w http.ResponseWriter, r *http.Request) {
	s.serveFileOp(w, r, s.files.Status)
}

func (s *Server) renameFile(w http.ResponseWriter, r *http.Request) {
	newPath := r.FormValue(newPathField)
	if newPath == "" {
		s.writeError(w, r, fmt.Errorf("%w: missing %s", common.ErrBadRequest, newPathField))
		return
	}
	s.serveFileOp(w, r, func(ctx context.Context, a models.Actor, ref services.FileRef) (*models.FileStatus, error) {
		return s.files.Rename(ctx, a, ref, newPath)
	})
}

func (s *Server) protectFile(w http.ResponseWriter, r *http.Request) {
	s.serveFileOp(w, r, s.files.Protect)
}

func (s *Server) unprotectFile(w http.ResponseWriter, r *http.Request) {
	s.serveFileOp(w, r, s.files.Unprotect)
}

func (s *Server) removeFile(w http.ResponseWriter, r *http.Request) {
	if err := s.files.Remove(r.Context(), actor(r), fileRef(r)); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]bool{"removed": true})
}
