package domain

import "time"

// Attachment records file metadata attached to a ticket. The file itself
// lives in external storage; only the reference is kept here.
type Attachment struct {
	ID          int64
	TicketID    int64
	FileName    string
	StoragePath string
	SizeKB      *int
	MimeType    *string
	UploadedBy  *int64
	CreatedAt   time.Time
}
