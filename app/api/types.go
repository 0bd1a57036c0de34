package api

import (
	"github.com/dkoval/mediamirror/app/config"
	"github.com/dkoval/mediamirror/app/database"
	"github.com/dkoval/mediamirror/app/fetcher"
	"github.com/dkoval/mediamirror/app/queue"
)

// ExecutorStatsSource exposes the fetch executor's attempt counters to the
// status endpoints.
type ExecutorStatsSource interface {
	GetStats() fetcher.Stats
}

var _ ExecutorStatsSource = (*fetcher.Executor)(nil)

type Handler struct {
	fileRepo    database.FileRepository
	configCache *config.Cache
	executor    ExecutorStatsSource
	queue       *queue.Queue
	version     string
}
