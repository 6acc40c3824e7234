package models

import "time"

// DataBlock is a content-addressed unit of stored bytes. Several files may
// reference the same block; removing a file never removes its block.
type DataBlock struct {
	ID          int64
	MD5Hash     string
	Size        int64
	Location    string
	ArchiveID   string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
