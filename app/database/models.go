package database

import (
	"time"
)

// FileStatus is one ledger row: a single discovered media item and its
// download state. (channel_id, message_id) is unique; a row with a nil
// DownloadedAt is pending by definition.
type FileStatus struct {
	ID             int64
	CreatedAt      time.Time
	ChannelID      int64
	ChannelTitle   string
	MessageID      int64
	SenderID       *int64
	SenderUsername string
	OriginalName   string
	PrefixedName   string
	FileID         string // transport-side locator, opaque to the pipeline
	FileSize       *int64
	SentAt         time.Time
	StartedAt      *time.Time
	DownloadedAt   *time.Time
	FilePath       string
	DataHash       string
}

// Pending reports whether the row is a member of the pending set.
func (f *FileStatus) Pending() bool {
	return f.DownloadedAt == nil
}

// PendingItem is the minimal reference handed to the work queue.
type PendingItem struct {
	ChannelID    int64
	MessageID    int64
	ChannelTitle string
}

// Stats summarizes ledger state for the status API.
type Stats struct {
	Total     int
	Pending   int
	Completed int
}

// SourceStats is per-source ledger state for the status API.
type SourceStats struct {
	ChannelID    int64
	ChannelTitle string
	Total        int
	Pending      int
	Completed    int
}
