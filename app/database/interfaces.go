package database

// FileRepository is the ledger contract consumed by the scanner, the fetch
// executor and the status API. All writes are single-row, single-statement
// transactions; concurrent workers never observe a partially updated row.
type FileRepository interface {
	InsertIfAbsent(record FileStatus) (bool, error)
	Get(channelID, messageID int64) (*FileStatus, error)
	ListPending(channelID int64) ([]PendingItem, error)
	ListPendingTitles() ([]string, error)

	MarkStarted(channelID, messageID int64) error
	MarkCompleted(channelID, messageID int64, prefixedName, filePath, dataHash string) error
	Reset(channelID, messageID int64) error

	GetStats() (Stats, error)
	GetSourceStats() ([]SourceStats, error)
}
