package web

import (
	"net/http"

	"github.com/dmitrijs2005/filevault/internal/server/models"
)

// BucketStatus describes a bucket in listings.
type BucketStatus struct {
	ProjectName string `json:"project_name"`
	BucketName  string `json:"bucket_name"`
}

func bucketStatus(b *models.Bucket) BucketStatus {
	return BucketStatus{ProjectName: b.ProjectName, BucketName: b.Name}
}

func (s *Server) createFolder(w http.ResponseWriter, r *http.Request) {
	st, err := s.folders.Create(r.Context(), actor(r), r.PathValue("project"), r.PathValue("bucket"), r.PathValue("path"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, st)
}

func (s *Server) setFolderReadOnly(w http.ResponseWriter, r *http.Request, readOnly bool) {
	st, err := s.folders.SetReadOnly(r.Context(), actor(r), r.PathValue("project"), r.PathValue("bucket"), r.PathValue("path"), readOnly)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, st)
}

func (s *Server) protectFolder(w http.ResponseWriter, r *http.Request) {
	s.setFolderReadOnly(w, r, true)
}

func (s *Server) unprotectFolder(w http.ResponseWriter, r *http.Request) {
	s.setFolderReadOnly(w, r, false)
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	listing, err := s.folders.List(r.Context(), actor(r), r.PathValue("project"), r.PathValue("bucket"), r.PathValue("path"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	for _, f := range listing.Files {
		if err := s.withDownloadURL(r, f); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	writeJSON(w, r, http.StatusOK, listing)
}

func (s *Server) listBuckets(w http.ResponseWriter, r *http.Request) {
	list, err := s.folders.ListBuckets(r.Context(), actor(r), r.PathValue("project"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]BucketStatus, 0, len(list))
	for _, b := range list {
		out = append(out, bucketStatus(b))
	}
	writeJSON(w, r, http.StatusOK, out)
}

func (s *Server) createBucket(w http.ResponseWriter, r *http.Request) {
	b, err := s.folders.CreateBucket(r.Context(), actor(r), r.PathValue("project"), r.PathValue("bucket"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, bucketStatus(b))
}
