package fetcher

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/dkoval/mediamirror/app/database"
	"github.com/dkoval/mediamirror/app/files"
	"github.com/dkoval/mediamirror/app/queue"
)

// SweepTempFiles removes leftover temp files from the folders of all channels
// that still have pending rows. Run before workers start, never concurrently
// with them.
func SweepTempFiles(fileRepo database.FileRepository, downloadDir string) error {
	titles, err := fileRepo.ListPendingTitles()
	if err != nil {
		return fmt.Errorf("failed to list pending channels: %w", err)
	}

	removed := 0
	for _, title := range titles {
		folder := filepath.Join(downloadDir, files.SanitizeName(title))
		n, err := files.RemoveTempFiles(folder)
		if err != nil {
			return fmt.Errorf("failed to sweep folder %s: %w", folder, err)
		}
		removed += n
	}

	if removed > 0 {
		slog.Info("Removed leftover temp files", "count", removed)
	}
	return nil
}

// Seed enqueues every pending ledger row. Rows already queued or in flight
// are deduplicated by the queue, so Seed is safe to call on every rescan.
func Seed(fileRepo database.FileRepository, q *queue.Queue, downloadDir string) (int, error) {
	pending, err := fileRepo.ListPending(0)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending rows: %w", err)
	}

	enqueued := 0
	for _, item := range pending {
		ref := queue.Ref{
			ChannelID: item.ChannelID,
			MessageID: item.MessageID,
			Folder:    filepath.Join(downloadDir, files.SanitizeName(item.ChannelTitle)),
		}
		if err := q.Enqueue(ref); err != nil {
			if errors.Is(err, queue.ErrFull) {
				slog.Warn("Fetch queue full, remaining rows wait for the next rescan",
					"enqueued", enqueued, "pending", len(pending))
				return enqueued, nil
			}
			return enqueued, err
		}
		enqueued++
	}

	return enqueued, nil
}
