package documents

import "time"

// Document represents an uploaded tender document owned by a user.
type Document struct {
	ID         string
	UserID     string
	FileName   string
	MimeType   string
	SizeBytes  int64
	StorageKey string
	Language   string
	CreatedAt  time.Time
}
