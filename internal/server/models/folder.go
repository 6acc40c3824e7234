package models

import "time"

// Folder is a node of a bucket's hierarchy. A nil ParentID means the folder
// sits at the bucket root.
type Folder struct {
	ID          int64
	BucketID    int64
	ParentID    *int64
	ProjectName string
	FolderName  string
	ReadOnly    bool
	Author      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// FolderID returns the id of f, or nil for the bucket root (f == nil).
func FolderID(f *Folder) *int64 {
	if f == nil {
		return nil
	}
	id := f.ID
	return &id
}

// SameFolder reports whether two optional folder ids address the same folder.
func SameFolder(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
