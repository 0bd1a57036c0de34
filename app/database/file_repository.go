package database

import (
	"database/sql"
	"fmt"
	"time"
)

var _ FileRepository = (*FileStatusRepository)(nil)

// FileStatusRepository handles database operations for file_status rows
type FileStatusRepository struct {
	db *DB
}

// NewFileRepository creates a new file status repository
func NewFileRepository(db *DB) *FileStatusRepository {
	return &FileStatusRepository{db: db}
}

const timeFormat = time.RFC3339Nano

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		// Tolerate second-precision timestamps written by earlier runs.
		t, err = time.Parse(time.RFC3339, s)
	}
	return t, err
}

// InsertIfAbsent inserts a newly discovered item. Re-discovery of an existing
// (channel_id, message_id) pair is a no-op; the return value reports whether a
// row was actually created.
func (r *FileStatusRepository) InsertIfAbsent(record FileStatus) (bool, error) {
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	res, err := r.db.Exec(`
		INSERT INTO file_status (
			created_at, channel_id, channel_title, message_id,
			sender_id, sender_username, original_name,
			file_id, file_size, sent_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (channel_id, message_id) DO NOTHING
	`, formatTime(createdAt), record.ChannelID, nullString(record.ChannelTitle),
		record.MessageID, nullInt64(record.SenderID), nullString(record.SenderUsername),
		nullString(record.OriginalName), nullString(record.FileID),
		nullInt64(record.FileSize), formatTime(record.SentAt))
	if err != nil {
		return false, fmt.Errorf("failed to insert file status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result: %w", err)
	}

	return affected > 0, nil
}

// Get returns the ledger row for (channelID, messageID), or nil when none exists.
func (r *FileStatusRepository) Get(channelID, messageID int64) (*FileStatus, error) {
	row := r.db.QueryRow(`
		SELECT id, created_at, channel_id, COALESCE(channel_title, ''), message_id,
		       sender_id, COALESCE(sender_username, ''), COALESCE(original_name, ''),
		       COALESCE(prefixed_name, ''), COALESCE(file_id, ''), file_size,
		       sent_at, started_at, downloaded_at,
		       COALESCE(file_path, ''), COALESCE(data_hash, '')
		FROM file_status
		WHERE channel_id = ? AND message_id = ?
	`, channelID, messageID)

	record, err := scanFileStatus(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get file status: %w", err)
	}

	return record, nil
}

// ListPending returns references to every row without a completion timestamp.
// channelID 0 means all channels.
func (r *FileStatusRepository) ListPending(channelID int64) ([]PendingItem, error) {
	query := `
		SELECT channel_id, message_id, COALESCE(channel_title, '')
		FROM file_status
		WHERE downloaded_at IS NULL
	`
	args := []interface{}{}
	if channelID != 0 {
		query += " AND channel_id = ?"
		args = append(args, channelID)
	}
	query += " ORDER BY sent_at ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending items: %w", err)
	}
	defer rows.Close()

	var items []PendingItem
	for rows.Next() {
		var item PendingItem
		if err := rows.Scan(&item.ChannelID, &item.MessageID, &item.ChannelTitle); err != nil {
			return nil, fmt.Errorf("failed to scan pending item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pending items: %w", err)
	}

	return items, nil
}

// ListPendingTitles returns the distinct channel titles referenced by pending
// rows, used by the startup temp-file sweep.
func (r *FileStatusRepository) ListPendingTitles() ([]string, error) {
	rows, err := r.db.Query(`
		SELECT DISTINCT COALESCE(channel_title, '')
		FROM file_status
		WHERE downloaded_at IS NULL
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending titles: %w", err)
	}
	defer rows.Close()

	var titles []string
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			return nil, fmt.Errorf("failed to scan pending title: %w", err)
		}
		titles = append(titles, title)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pending titles: %w", err)
	}

	return titles, nil
}

// MarkStarted records the time a fetch attempt began. It is observability
// metadata, not a lock: a Started row is still pending.
func (r *FileStatusRepository) MarkStarted(channelID, messageID int64) error {
	_, err := r.db.Exec(`
		UPDATE file_status SET started_at = ?
		WHERE channel_id = ? AND message_id = ?
	`, formatTime(time.Now()), channelID, messageID)
	if err != nil {
		return fmt.Errorf("failed to mark started: %w", err)
	}
	return nil
}

// MarkCompleted records a verified download in a single statement, so a
// reader always observes either a fully pending or a fully completed row.
func (r *FileStatusRepository) MarkCompleted(channelID, messageID int64, prefixedName, filePath, dataHash string) error {
	_, err := r.db.Exec(`
		UPDATE file_status
		SET prefixed_name = ?, file_path = ?, data_hash = ?, downloaded_at = ?
		WHERE channel_id = ? AND message_id = ?
	`, prefixedName, filePath, dataHash, formatTime(time.Now()), channelID, messageID)
	if err != nil {
		return fmt.Errorf("failed to mark completed: %w", err)
	}
	return nil
}

// Reset clears every completion field, returning the row to the pending set.
func (r *FileStatusRepository) Reset(channelID, messageID int64) error {
	_, err := r.db.Exec(`
		UPDATE file_status
		SET started_at = NULL, prefixed_name = NULL, file_path = NULL,
		    data_hash = NULL, downloaded_at = NULL
		WHERE channel_id = ? AND message_id = ?
	`, channelID, messageID)
	if err != nil {
		return fmt.Errorf("failed to reset file status: %w", err)
	}
	return nil
}

// GetStats returns overall ledger counts
func (r *FileStatusRepository) GetStats() (Stats, error) {
	var stats Stats
	err := r.db.QueryRow(`
		SELECT COUNT(*),
		       SUM(CASE WHEN downloaded_at IS NULL THEN 1 ELSE 0 END),
		       SUM(CASE WHEN downloaded_at IS NOT NULL THEN 1 ELSE 0 END)
		FROM file_status
	`).Scan(&stats.Total, &nullCount{&stats.Pending}, &nullCount{&stats.Completed})
	if err != nil {
		return Stats{}, fmt.Errorf("failed to get stats: %w", err)
	}
	return stats, nil
}

// GetSourceStats returns per-channel ledger counts
func (r *FileStatusRepository) GetSourceStats() ([]SourceStats, error) {
	rows, err := r.db.Query(`
		SELECT channel_id, COALESCE(channel_title, ''), COUNT(*),
		       SUM(CASE WHEN downloaded_at IS NULL THEN 1 ELSE 0 END),
		       SUM(CASE WHEN downloaded_at IS NOT NULL THEN 1 ELSE 0 END)
		FROM file_status
		GROUP BY channel_id, channel_title
		ORDER BY channel_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get source stats: %w", err)
	}
	defer rows.Close()

	var all []SourceStats
	for rows.Next() {
		var s SourceStats
		if err := rows.Scan(&s.ChannelID, &s.ChannelTitle, &s.Total,
			&nullCount{&s.Pending}, &nullCount{&s.Completed}); err != nil {
			return nil, fmt.Errorf("failed to scan source stats: %w", err)
		}
		all = append(all, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating source stats: %w", err)
	}

	return all, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFileStatus(row rowScanner) (*FileStatus, error) {
	var record FileStatus
	var createdAt, sentAt string
	var senderID, fileSize sql.NullInt64
	var startedAt, downloadedAt sql.NullString

	err := row.Scan(
		&record.ID, &createdAt, &record.ChannelID, &record.ChannelTitle,
		&record.MessageID, &senderID, &record.SenderUsername, &record.OriginalName,
		&record.PrefixedName, &record.FileID, &fileSize,
		&sentAt, &startedAt, &downloadedAt,
		&record.FilePath, &record.DataHash,
	)
	if err != nil {
		return nil, err
	}

	if record.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("invalid created_at: %w", err)
	}
	if record.SentAt, err = parseTime(sentAt); err != nil {
		return nil, fmt.Errorf("invalid sent_at: %w", err)
	}
	if senderID.Valid {
		record.SenderID = &senderID.Int64
	}
	if fileSize.Valid {
		record.FileSize = &fileSize.Int64
	}
	if startedAt.Valid {
		t, err := parseTime(startedAt.String)
		if err != nil {
			return nil, fmt.Errorf("invalid started_at: %w", err)
		}
		record.StartedAt = &t
	}
	if downloadedAt.Valid {
		t, err := parseTime(downloadedAt.String)
		if err != nil {
			return nil, fmt.Errorf("invalid downloaded_at: %w", err)
		}
		record.DownloadedAt = &t
	}

	return &record, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullInt64(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

// nullCount scans a SUM() result, which is NULL over an empty table.
type nullCount struct {
	dest *int
}

func (n *nullCount) Scan(value interface{}) error {
	if value == nil {
		*n.dest = 0
		return nil
	}
	switch v := value.(type) {
	case int64:
		*n.dest = int(v)
	case float64:
		*n.dest = int(v)
	default:
		return fmt.Errorf("unexpected count type %T", value)
	}
	return nil
}
