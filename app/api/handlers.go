package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dkoval/mediamirror/app/config"
	"github.com/dkoval/mediamirror/app/database"
	"github.com/dkoval/mediamirror/app/queue"
	"github.com/gin-gonic/gin"
)

func NewHandler(fileRepo database.FileRepository, configCache *config.Cache,
	executor ExecutorStatsSource, q *queue.Queue, version string) *Handler {
	return &Handler{
		fileRepo:    fileRepo,
		configCache: configCache,
		executor:    executor,
		queue:       q,
		version:     version,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
	}

	if stats, err := h.fileRepo.GetStats(); err == nil {
		health["files_total"] = stats.Total
		health["files_pending"] = stats.Pending
	}

	health["queue_size"] = h.queue.Len()
	health["loaded_sources"] = h.configCache.GetConfigCount()

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.fileRepo.GetStats()
	if err != nil {
		slog.Error("Database error", "operation", "get_stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	sourceStats, err := h.fileRepo.GetSourceStats()
	if err != nil {
		slog.Error("Database error", "operation", "get_source_stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	sources := make([]map[string]interface{}, 0, len(sourceStats))
	for _, s := range sourceStats {
		sources = append(sources, map[string]interface{}{
			"channel_id":    s.ChannelID,
			"channel_title": s.ChannelTitle,
			"total":         s.Total,
			"pending":       s.Pending,
			"completed":     s.Completed,
		})
	}

	executorStats := h.executor.GetStats()

	c.JSON(http.StatusOK, map[string]interface{}{
		"files": map[string]interface{}{
			"total":     stats.Total,
			"pending":   stats.Pending,
			"completed": stats.Completed,
		},
		"sources": sources,
		"executor": map[string]interface{}{
			"completed": executorStats.Completed,
			"skipped":   executorStats.Skipped,
			"errors":    executorStats.Errors,
		},
		"queue_size": h.queue.Len(),
	})
}

func (h *Handler) APIListSources(c *gin.Context) {
	configs := h.configCache.GetConfigs()

	sources := make([]map[string]interface{}, 0, len(configs))
	for _, sourceConfig := range configs {
		sources = append(sources, map[string]interface{}{
			"name":    sourceConfig.Name,
			"url":     sourceConfig.URL,
			"enabled": sourceConfig.IsEnabled(),
		})
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"sources": sources,
		"total":   len(sources),
	})
}

func (h *Handler) APIListPendingFiles(c *gin.Context) {
	channelID := int64(0)
	if raw := c.Query("channel_id"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid channel_id parameter"})
			return
		}
		channelID = parsed
	}

	pending, err := h.fileRepo.ListPending(channelID)
	if err != nil {
		slog.Error("Database error", "operation", "list_pending", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	items := make([]map[string]interface{}, 0, len(pending))
	for _, item := range pending {
		items = append(items, map[string]interface{}{
			"channel_id":    item.ChannelID,
			"channel_title": item.ChannelTitle,
			"message_id":    item.MessageID,
		})
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"files": items,
		"total": len(items),
	})
}

func (h *Handler) APIResetFile(c *gin.Context) {
	channelID, err := strconv.ParseInt(c.Param("channel_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid channel_id parameter"})
		return
	}
	messageID, err := strconv.ParseInt(c.Param("message_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid message_id parameter"})
		return
	}

	record, err := h.fileRepo.Get(channelID, messageID)
	if err != nil {
		slog.Error("Database error", "operation", "get_file", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if record == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
		return
	}

	if err := h.fileRepo.Reset(channelID, messageID); err != nil {
		slog.Error("Database error", "operation", "reset_file", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	slog.Info("File reset via API", "channel_id", channelID, "message_id", messageID)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "File reset to pending, it will be fetched again on the next rescan",
		"file": gin.H{
			"channel_id": channelID,
			"message_id": messageID,
		},
	})
}
