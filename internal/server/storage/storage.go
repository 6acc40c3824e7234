// Package storage lays out uploaded bytes on the local filesystem: partial
// files of in-progress uploads and content-addressed data blocks.
//
//	<root>/<project>/uploads/<hex(uploader-id "-" file path)>
//	<root>/blocks/<md5[0:2]>/<md5>
//	<root>/tmp/blob-*
package storage

import (
	"io"
	"path/filepath"

	"github.com/dmitrijs2005/filevault/internal/filex"
	"github.com/dmitrijs2005/filevault/internal/server/models"
	"github.com/dmitrijs2005/filevault/internal/server/paths"
)

// FS is the filesystem layout rooted at a data directory.
type FS struct {
	root string
}

// NewFS prepares the data directory and returns its layout.
func NewFS(root string) (*FS, error) {
	abs, err := filex.EnsureDir(root)
	if err != nil {
		return nil, err
	}
	if _, err := filex.EnsureDir(filepath.Join(abs, "tmp")); err != nil {
		return nil, err
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute data directory.
func (s *FS) Root() string {
	return s.root
}

// PartialPath names the partial file of the upload identified by key. The
// uploader id keeps concurrent uploads of the same path apart.
func (s *FS) PartialPath(key models.UploadKey) string {
	return filepath.Join(s.root, paths.SafeName(key.ProjectName), "uploads",
		paths.SafeName(key.UploaderID+"-"+key.FilePath))
}

// PartialSize returns the number of bytes persisted for key so far.
func (s *FS) PartialSize(key models.UploadKey) (int64, error) {
	return filex.Size(s.PartialPath(key))
}

// Spool writes a received chunk to a temp file and hashes it on the way.
// The caller owns the returned file.
func (s *FS) Spool(r io.Reader) (string, filex.Digest, error) {
	return filex.Spool(filepath.Join(s.root, "tmp"), r)
}

// AppendPartial appends the spooled chunk at blob to key's partial file and
// returns the new partial size.
func (s *FS) AppendPartial(key models.UploadKey, blob string) (int64, error) {
	p := s.PartialPath(key)
	if _, err := filex.EnsureDir(filepath.Dir(p)); err != nil {
		return 0, err
	}
	return filex.Append(p, blob)
}

// TruncatePartial rolls key's partial file back to size.
func (s *FS) TruncatePartial(key models.UploadKey, size int64) error {
	return filex.Truncate(s.PartialPath(key), size)
}

// RemovePartial deletes key's partial file if present.
func (s *FS) RemovePartial(key models.UploadKey) error {
	return filex.RemoveIfExists(s.PartialPath(key))
}

// BlockPath names the location of the block with the given content hash.
func (s *FS) BlockPath(md5Hash string) string {
	prefix := md5Hash
	if len(prefix) > 2 {
		prefix = prefix[:2]
	}
	return filepath.Join(s.root, "blocks", prefix, md5Hash)
}

// StoreBlock places the bytes of src at the content-addressed location of
// md5Hash. An existing block with the same hash is kept as is.
func (s *FS) StoreBlock(src, md5Hash string) (string, error) {
	dst := s.BlockPath(md5Hash)
	if err := filex.Place(dst, src); err != nil {
		return "", err
	}
	return dst, nil
}

// HasBlock reports whether a block's bytes are present at location.
func (s *FS) HasBlock(location string) bool {
	return location != "" && filex.Exists(location)
}
