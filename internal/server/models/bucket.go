// Package models defines server-side data models persisted in the database.
// They are plain structs; persistence lives in the repositories packages.
package models

import "time"

// Bucket is a named container scoping a project's folders and files.
type Bucket struct {
	ID          int64
	ProjectName string
	Name        string
	CreatedAt   time.Time
}
