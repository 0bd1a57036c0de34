package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dkoval/mediamirror/app/database"
	"github.com/dkoval/mediamirror/app/files"
	"github.com/dkoval/mediamirror/app/source"
)

// Scanner walks a source's history and reconciles every media-bearing item
// against the ledger. The pass is idempotent and safe to re-run at any time,
// including alongside active downloads of other items: it never moves bytes,
// it only decides whether what is already on disk can be trusted.
type Scanner struct {
	fileRepo    database.FileRepository
	client      source.Client
	downloadDir string
}

func New(fileRepo database.FileRepository, client source.Client, downloadDir string) *Scanner {
	return &Scanner{
		fileRepo:    fileRepo,
		client:      client,
		downloadDir: downloadDir,
	}
}

// Run reconciles the full history of handle, oldest first.
func (s *Scanner) Run(ctx context.Context, handle source.Handle) error {
	start := time.Now()

	folder := filepath.Join(s.downloadDir, files.SanitizeName(handle.Title))
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return fmt.Errorf("failed to create download folder: %w", err)
	}

	var processed, discovered, verified, reset int

	err := s.client.EnumerateHistory(ctx, handle, func(item source.Item) error {
		if item.Media == nil {
			return nil
		}
		processed++

		outcome, err := s.reconcile(handle, folder, item)
		if err != nil {
			return err
		}
		switch outcome {
		case outcomeDiscovered:
			discovered++
		case outcomeVerified:
			verified++
		case outcomeReset:
			reset++
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("history scan of %q failed: %w", handle.Title, err)
	}

	slog.Info("Scan completed",
		"source", handle.Title,
		"duration", time.Since(start),
		"media_items", processed,
		"new", discovered,
		"verified", verified,
		"reset", reset)

	return nil
}

type outcome int

const (
	outcomePending outcome = iota
	outcomeDiscovered
	outcomeVerified
	outcomeReset
)

func (s *Scanner) reconcile(handle source.Handle, folder string, item source.Item) (outcome, error) {
	record, err := s.fileRepo.Get(item.ChannelID, item.ID)
	if err != nil {
		return outcomePending, err
	}

	if record == nil {
		fresh := database.FileStatus{
			ChannelID:      item.ChannelID,
			ChannelTitle:   handle.Title,
			MessageID:      item.ID,
			SenderID:       item.SenderID,
			SenderUsername: item.SenderUsername,
			OriginalName:   item.Media.Name,
			FileID:         item.Media.URL,
			SentAt:         item.SentAt,
		}
		if item.Media.Size > 0 {
			size := item.Media.Size
			fresh.FileSize = &size
		}
		if _, err := s.fileRepo.InsertIfAbsent(fresh); err != nil {
			return outcomePending, err
		}
		// Verify right away in case the file survives from a prior run.
		if _, err := s.verify(&fresh, folder, item); err != nil {
			return outcomePending, err
		}
		return outcomeDiscovered, nil
	}

	if record.Pending() {
		// Will be retried through the work queue; partially attempted state
		// is not the scanner's to judge.
		return outcomePending, nil
	}

	return s.verify(record, folder, item)
}

// verify decides whether the on-disk file backing a row is trustworthy. Only
// a row that was already completed and whose file hashes to the recorded
// digest is left untouched; anything else is reset to pending. Missing or
// unreadable files count as mismatches, and a file that fails verification is
// removed so the next fetch transfers fresh bytes.
func (s *Scanner) verify(record *database.FileStatus, folder string, item source.Item) (outcome, error) {
	name := files.PrefixedName(item.SentAt, item.Media.Name, item.ID, item.Media.Ext)
	path := filepath.Join(folder, name)

	if _, err := os.Stat(path); err != nil {
		if record.DownloadedAt != nil {
			if err := s.fileRepo.Reset(record.ChannelID, record.MessageID); err != nil {
				return outcomePending, err
			}
			slog.Warn("Completed file missing, reset to pending", "channel_id", record.ChannelID, "message_id", record.MessageID, "path", path)
			return outcomeReset, nil
		}
		return outcomePending, nil
	}

	hash, hashErr := files.SHA256File(path)
	if hashErr == nil && record.DownloadedAt != nil && hash == record.DataHash {
		return outcomeVerified, nil
	}

	if record.DownloadedAt == nil && record.DataHash == "" && record.StartedAt == nil {
		// Fresh row with an unverifiable leftover file: the fetch pre-check
		// will adopt or replace it.
		return outcomePending, nil
	}

	// The file failed verification against a recorded digest. It must not
	// stay at the final path, or the fetch pre-check would adopt it instead
	// of transferring fresh bytes.
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return outcomePending, fmt.Errorf("failed to remove untrusted file %s: %w", path, err)
	}
	if err := s.fileRepo.Reset(record.ChannelID, record.MessageID); err != nil {
		return outcomePending, err
	}
	if hashErr != nil {
		slog.Warn("File unreadable, reset to pending", "channel_id", record.ChannelID, "message_id", record.MessageID, "path", path, "error", hashErr)
	} else {
		slog.Warn("File hash mismatch, reset to pending", "channel_id", record.ChannelID, "message_id", record.MessageID, "path", path)
	}
	return outcomeReset, nil
}
