package models

import "time"

// UploadState is derived from the persisted counters; terminal states are
// represented by the row no longer existing.
type UploadState string

const (
	UploadAuthorized UploadState = "authorized"
	UploadInProgress UploadState = "in_progress"
	UploadComplete   UploadState = "complete"
	UploadCancelled  UploadState = "cancelled"
)

// UploadKey identifies one resumable transfer.
type UploadKey struct {
	ProjectName string
	BucketID    int64
	FilePath    string
	UploaderID  string
}

// Upload is the server-side state of a resumable chunked transfer.
// NextBlobSize/NextBlobHash describe the chunk the client must send next.
type Upload struct {
	ID                  int64
	ProjectName         string
	BucketID            int64
	FileName            string
	UploaderID          string
	Author              string
	FileSize            int64
	CurrentBytePosition int64
	NextBlobSize        int64
	NextBlobHash        string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Initial descriptor values of a freshly authorized upload.
const (
	NoNextBlobSize int64 = -1
	NoNextBlobHash       = ""
)

// NewUpload returns an upload in the authorized state.
func NewUpload(key UploadKey, author string) *Upload {
	return &Upload{
		ProjectName:  key.ProjectName,
		BucketID:     key.BucketID,
		FileName:     key.FilePath,
		UploaderID:   key.UploaderID,
		Author:       author,
		NextBlobSize: NoNextBlobSize,
		NextBlobHash: NoNextBlobHash,
	}
}

// Key returns the identifying tuple of u.
func (u *Upload) Key() UploadKey {
	return UploadKey{ProjectName: u.ProjectName, BucketID: u.BucketID, FilePath: u.FileName, UploaderID: u.UploaderID}
}

// State reports the live state of u.
func (u *Upload) State() UploadState {
	if u.CurrentBytePosition > 0 {
		return UploadInProgress
	}
	return UploadAuthorized
}

// IsComplete reports whether every declared byte has been received.
func (u *Upload) IsComplete() bool {
	return u.CurrentBytePosition == u.FileSize
}

// Rewind puts u back into the authorized state.
func (u *Upload) Rewind() {
	u.FileSize = 0
	u.CurrentBytePosition = 0
	u.NextBlobSize = NoNextBlobSize
	u.NextBlobHash = NoNextBlobHash
}

// UploadStatus is the key-value document describing an upload in progress.
type UploadStatus struct {
	ProjectName         string `json:"project_name"`
	FileName            string `json:"file_name"`
	Author              string `json:"author"`
	CurrentBytePosition int64  `json:"current_byte_position"`
	NextBlobSize        int64  `json:"next_blob_size"`
	NextBlobHash        string `json:"next_blob_hash"`
}

// Status returns the status document of u.
func (u *Upload) Status() *UploadStatus {
	return &UploadStatus{
		ProjectName:         u.ProjectName,
		FileName:            u.FileName,
		Author:              u.Author,
		CurrentBytePosition: u.CurrentBytePosition,
		NextBlobSize:        u.NextBlobSize,
		NextBlobHash:        u.NextBlobHash,
	}
}
