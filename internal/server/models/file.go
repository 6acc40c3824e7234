package models

import (
	"time"

	"github.com/dmitrijs2005/filevault/internal/server/paths"
)

// File is a named node bound to an optional folder and exactly one data block.
// FileName is the leaf name only.
type File struct {
	ID          int64
	BucketID    int64
	FolderID    *int64
	DataBlockID int64
	ProjectName string
	FileName    string
	ReadOnly    bool
	Author      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// FileStatus is the key-value document describing a committed file.
type FileStatus struct {
	FileName    string    `json:"file_name"`
	ProjectName string    `json:"project_name"`
	BucketName  string    `json:"bucket_name"`
	FilePath    string    `json:"file_path"`
	UpdatedAt   time.Time `json:"updated_at"`
	CreatedAt   time.Time `json:"created_at"`
	Author      string    `json:"author"`
	FileHash    string    `json:"file_hash"`
	ArchiveID   string    `json:"archive_id,omitempty"`
	ReadOnly    bool      `json:"read_only"`
	Size        int64     `json:"size"`
	DownloadURL string    `json:"download_url,omitempty"`
}

// NewFileStatus assembles the status document of f. folderPath is the
// slash-joined path of f's folder ("" for the root).
func NewFileStatus(f *File, bucket *Bucket, block *DataBlock, folderPath string) *FileStatus {
	return &FileStatus{
		FileName:    f.FileName,
		ProjectName: f.ProjectName,
		BucketName:  bucket.Name,
		FilePath:    paths.Join(paths.Split(folderPath), f.FileName),
		UpdatedAt:   f.UpdatedAt,
		CreatedAt:   f.CreatedAt,
		Author:      f.Author,
		FileHash:    block.MD5Hash,
		ArchiveID:   block.ArchiveID,
		ReadOnly:    f.ReadOnly,
		Size:        block.Size,
	}
}

// FolderStatus describes a folder in listings.
type FolderStatus struct {
	FolderName  string    `json:"folder_name"`
	FolderPath  string    `json:"folder_path"`
	ProjectName string    `json:"project_name"`
	BucketName  string    `json:"bucket_name"`
	ReadOnly    bool      `json:"read_only"`
	Author      string    `json:"author"`
	UpdatedAt   time.Time `json:"updated_at"`
	CreatedAt   time.Time `json:"created_at"`
}
