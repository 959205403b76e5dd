// Package models defines server-side data models persisted in the database.
package models

import "time"

// File describes an uploaded dump. The bytes live in object storage under
// StorageKey; this row only carries metadata and ownership.
type File struct {
	ID string
	// AccountID is the owner of the file.
	AccountID string
	// FileName is the generated storage name, e.g. "dump-1700000000000-ab12cd.log".
	FileName string
	// OriginalName is the name the client uploaded the file with.
	OriginalName string
	Size         int64
	MimeType     string
	StorageKey   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Deleted      bool
}
