package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dkoval/mediamirror/app/database"
	"github.com/dkoval/mediamirror/app/files"
	"github.com/dkoval/mediamirror/app/queue"
	"github.com/dkoval/mediamirror/app/source"
)

// idleWait bounds how long an idle worker sleeps before polling the queue
// again, so rescans that enqueue new work are picked up promptly.
const idleWait = time.Second

type result int

const (
	resultCompleted result = iota
	resultSkipped
	resultRetryable
	resultFatal
)

// Stats is a snapshot of the executor's attempt counters.
type Stats struct {
	Completed int64
	Skipped   int64
	Errors    int64
}

// Executor drains the fetch queue with a fixed pool of workers. Each ref is
// processed exactly once per attempt; a failed attempt leaves the row pending
// so a later rescan can enqueue it again.
type Executor struct {
	fileRepo     database.FileRepository
	client       source.Client
	queue        *queue.Queue
	fetchTimeout time.Duration
	workerCount  int
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	fatalChan    chan error
	mu           sync.Mutex
	stats        Stats
}

func NewExecutor(fileRepo database.FileRepository, client source.Client, q *queue.Queue,
	workerCount int, fetchTimeout time.Duration) *Executor {
	ctx, cancel := context.WithCancel(context.Background())

	return &Executor{
		fileRepo:     fileRepo,
		client:       client,
		queue:        q,
		fetchTimeout: fetchTimeout,
		workerCount:  workerCount,
		ctx:          ctx,
		cancel:       cancel,
		fatalChan:    make(chan error, 1),
	}
}

func (e *Executor) Start() {
	for i := 0; i < e.workerCount; i++ {
		e.wg.Add(1)
		go e.worker(i)
	}

	slog.Debug("Fetch executor started", "workers", e.workerCount)
}

// Stop cancels in-flight fetches and waits for all workers to exit.
func (e *Executor) Stop() {
	e.cancel()
	e.wg.Wait()
}

// Wait blocks until all workers have exited. Useful with a closed queue,
// where workers return on their own once the drain finishes.
func (e *Executor) Wait() {
	e.wg.Wait()
}

// Fatal delivers the first unrecoverable ledger error. Once it fires the
// executor has already begun shutting down its workers.
func (e *Executor) Fatal() <-chan error {
	return e.fatalChan
}

func (e *Executor) GetStats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.stats
}

func (e *Executor) worker(id int) {
	defer e.wg.Done()

	for {
		if e.ctx.Err() != nil {
			return
		}

		ref, ok := e.queue.TryDequeue()
		if !ok {
			if e.queue.Closed() {
				return
			}
			select {
			case <-e.ctx.Done():
				return
			case <-time.After(idleWait):
			}
			continue
		}

		res, err := e.process(ref)
		e.queue.Done(ref)
		e.record(id, ref, res, err)
	}
}

func (e *Executor) record(workerID int, ref queue.Ref, res result, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch res {
	case resultCompleted:
		e.stats.Completed++
	case resultSkipped:
		e.stats.Skipped++
	case resultRetryable:
		e.stats.Errors++
		slog.Error("Fetch attempt failed", "worker_id", workerID,
			"channel_id", ref.ChannelID, "message_id", ref.MessageID, "error", err)
	case resultFatal:
		e.stats.Errors++
		slog.Error("Ledger unavailable, stopping fetch executor", "worker_id", workerID,
			"channel_id", ref.ChannelID, "message_id", ref.MessageID, "error", err)
		select {
		case e.fatalChan <- err:
		default:
		}
		e.cancel()
	}
}

// process runs a single fetch attempt for a queued ref. The final file only
// ever appears via an atomic rename of a fully written and hashed temp file,
// so a crash at any point leaves either nothing or a temp file behind.
func (e *Executor) process(ref queue.Ref) (result, error) {
	record, err := e.fileRepo.Get(ref.ChannelID, ref.MessageID)
	if err != nil {
		return resultFatal, fmt.Errorf("failed to load ledger row: %w", err)
	}
	if record == nil {
		return resultSkipped, nil
	}
	if !record.Pending() {
		return resultSkipped, nil
	}

	ctx, cancel := context.WithTimeout(e.ctx, e.fetchTimeout)
	defer cancel()

	item, err := e.client.GetItem(ctx, ref.ChannelID, ref.MessageID)
	if err != nil {
		return resultRetryable, fmt.Errorf("failed to fetch item: %w", err)
	}
	if item == nil || item.Media == nil {
		slog.Warn("Item vanished from source, leaving row pending",
			"channel_id", ref.ChannelID, "message_id", ref.MessageID)
		return resultSkipped, nil
	}

	if err := e.fileRepo.MarkStarted(ref.ChannelID, ref.MessageID); err != nil {
		return resultFatal, fmt.Errorf("failed to mark attempt: %w", err)
	}

	name := files.PrefixedName(item.SentAt, item.Media.Name, item.ID, item.Media.Ext)
	finalPath := filepath.Join(ref.Folder, name)

	// A file already at the final path is a finished download whose row never
	// got marked, e.g. a crash between rename and the ledger update. Adopt it.
	if _, err := os.Stat(finalPath); err == nil {
		hash, err := files.SHA256File(finalPath)
		if err != nil {
			return resultRetryable, fmt.Errorf("failed to hash existing file: %w", err)
		}
		if err := e.fileRepo.MarkCompleted(ref.ChannelID, ref.MessageID, name, finalPath, hash); err != nil {
			return resultFatal, fmt.Errorf("failed to mark completed: %w", err)
		}
		slog.Info("Adopted existing file", "channel", ref.ChannelID, "message", ref.MessageID, "file", name)
		return resultCompleted, nil
	}

	tempPath := finalPath + files.TempSuffix

	if err := e.client.FetchMedia(ctx, *item, tempPath); err != nil {
		os.Remove(tempPath)
		return resultRetryable, fmt.Errorf("failed to fetch media: %w", err)
	}

	hash, err := files.SHA256File(tempPath)
	if err != nil {
		os.Remove(tempPath)
		return resultRetryable, fmt.Errorf("failed to hash temp file: %w", err)
	}

	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return resultRetryable, fmt.Errorf("failed to finalize file: %w", err)
	}

	if err := e.fileRepo.MarkCompleted(ref.ChannelID, ref.MessageID, name, finalPath, hash); err != nil {
		return resultFatal, fmt.Errorf("failed to mark completed: %w", err)
	}

	slog.Info("Fetched file", "channel", ref.ChannelID, "message", ref.MessageID, "file", name)
	return resultCompleted, nil
}
