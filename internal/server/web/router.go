package web

import "net/http"

// Handler returns the routed and instrumented HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// capability URLs
	mux.Handle("POST /{project}/authorize/{bucket}/{path...}", s.requireBearer(http.HandlerFunc(s.authorizeUpload)))
	mux.Handle("POST /{project}/upload/{bucket}/{path...}", s.requireSignature(limitBody(maxUploadRequest, s.upload)))
	mux.Handle("GET /{project}/download/{bucket}/{path...}", s.requireSignature(http.HandlerFunc(s.download)))

	// files
	mux.Handle("GET /{project}/file/status/{bucket}/{path...}", s.requireBearer(http.HandlerFunc(s.fileStatus)))
	mux.Handle("POST /{project}/file/rename/{bucket}/{path...}", s.requireBearer(http.HandlerFunc(s.renameFile)))
	mux.Handle("POST /{project}/file/protect/{bucket}/{path...}", s.requireBearer(http.HandlerFunc(s.protectFile)))
	mux.Handle("POST /{project}/file/unprotect/{bucket}/{path...}", s.requireBearer(http.HandlerFunc(s.unprotectFile)))
	mux.Handle("POST /{project}/file/remove/{bucket}/{path...}", s.requireBearer(http.HandlerFunc(s.removeFile)))

	// folders
	mux.Handle("POST /{project}/folder/create/{bucket}/{path...}", s.requireBearer(http.HandlerFunc(s.createFolder)))
	mux.Handle("POST /{project}/folder/protect/{bucket}/{path...}", s.requireBearer(http.HandlerFunc(s.protectFolder)))
	mux.Handle("POST /{project}/folder/unprotect/{bucket}/{path...}", s.requireBearer(http.HandlerFunc(s.unprotectFolder)))
	mux.Handle("GET /{project}/list/{bucket}", s.requireBearer(http.HandlerFunc(s.list)))
	mux.Handle("GET /{project}/list/{bucket}/{path...}", s.requireBearer(http.HandlerFunc(s.list)))

	// buckets
	mux.Handle("GET /{project}/buckets", s.requireBearer(http.HandlerFunc(s.listBuckets)))
	mux.Handle("POST /{project}/buckets/{bucket}", s.requireBearer(http.HandlerFunc(s.createBucket)))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})

	return withRequestID(s.logging(mux))
}

func limitBody(n int64, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, n)
		h(w, r)
	}
}
