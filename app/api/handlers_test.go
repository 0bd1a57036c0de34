package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dkoval/mediamirror/app/config"
	"github.com/dkoval/mediamirror/app/database"
	"github.com/dkoval/mediamirror/app/fetcher"
	"github.com/dkoval/mediamirror/app/queue"
	"github.com/gin-gonic/gin"
)

type stubExecutor struct {
	stats fetcher.Stats
}

func (s *stubExecutor) GetStats() fetcher.Stats {
	return s.stats
}

func newTestServer(t *testing.T, apiAccessKey string) (*gin.Engine, database.FileRepository) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.NewConnection(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err := database.RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	repo := database.NewFileRepository(db)

	sourcesDir := t.TempDir()
	content := "url: \"https://example.com/feed.xml\"\n"
	if err := os.WriteFile(filepath.Join(sourcesDir, "example.yml"), []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write source config: %v", err)
	}
	configCache := config.NewCache(sourcesDir)
	if err := configCache.Run(); err != nil {
		t.Fatalf("Failed to load source configs: %v", err)
	}

	handler := NewHandler(repo, configCache, &stubExecutor{stats: fetcher.Stats{Completed: 3}}, queue.New(8), "test")
	return NewServer(handler, apiAccessKey), repo
}

func insertPending(t *testing.T, repo database.FileRepository, channelID, messageID int64) {
	t.Helper()
	_, err := repo.InsertIfAbsent(database.FileStatus{
		ChannelID:    channelID,
		ChannelTitle: "Test Channel",
		MessageID:    messageID,
		OriginalName: "a.jpg",
		SentAt:       time.Date(2023, 7, 3, 10, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Failed to insert row: %v", err)
	}
}

func doRequest(t *testing.T, server *gin.Engine, method, path, apiKey string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)
	return w
}

func TestGetHealth(t *testing.T) {
	server, repo := newTestServer(t, "")
	insertPending(t, repo, 42, 1)

	w := doRequest(t, server, "GET", "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if body["files_pending"] != float64(1) {
		t.Errorf("Expected 1 pending file, got %v", body["files_pending"])
	}
	if body["loaded_sources"] != float64(1) {
		t.Errorf("Expected 1 loaded source, got %v", body["loaded_sources"])
	}
}

func TestGetStats(t *testing.T) {
	server, repo := newTestServer(t, "")
	insertPending(t, repo, 42, 1)
	insertPending(t, repo, 42, 2)
	if err := repo.MarkCompleted(42, 2, "b.jpg", "/tmp/b.jpg", "abc"); err != nil {
		t.Fatalf("Failed to mark completed: %v", err)
	}

	w := doRequest(t, server, "GET", "/stats", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}

	filesStats := body["files"].(map[string]interface{})
	if filesStats["total"] != float64(2) || filesStats["pending"] != float64(1) {
		t.Errorf("Expected 2 total / 1 pending, got %v", filesStats)
	}

	executorStats := body["executor"].(map[string]interface{})
	if executorStats["completed"] != float64(3) {
		t.Errorf("Expected executor completed 3, got %v", executorStats["completed"])
	}
}

func TestAPIRequiresKey(t *testing.T) {
	server, _ := newTestServer(t, "secret")

	if w := doRequest(t, server, "GET", "/api/sources", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without key, got %d", w.Code)
	}
	if w := doRequest(t, server, "GET", "/api/sources", "wrong"); w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 with wrong key, got %d", w.Code)
	}
	if w := doRequest(t, server, "GET", "/api/sources", "secret"); w.Code != http.StatusOK {
		t.Errorf("Expected 200 with correct key, got %d", w.Code)
	}
}

func TestAPIEndpointsDisabledWithoutKey(t *testing.T) {
	server, _ := newTestServer(t, "")

	if w := doRequest(t, server, "GET", "/api/sources", ""); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 when API is disabled, got %d", w.Code)
	}
}

func TestAPIListPendingFiles(t *testing.T) {
	server, repo := newTestServer(t, "secret")
	insertPending(t, repo, 42, 1)

	w := doRequest(t, server, "GET", "/api/files/pending", "secret")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if body["total"] != float64(1) {
		t.Errorf("Expected 1 pending file, got %v", body["total"])
	}
}

func TestAPIResetFile(t *testing.T) {
	server, repo := newTestServer(t, "secret")
	insertPending(t, repo, 42, 1)
	if err := repo.MarkCompleted(42, 1, "a.jpg", "/tmp/a.jpg", "abc"); err != nil {
		t.Fatalf("Failed to mark completed: %v", err)
	}

	w := doRequest(t, server, "POST", "/api/files/42/1/reset", "secret")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	record, err := repo.Get(42, 1)
	if err != nil {
		t.Fatalf("Failed to get record: %v", err)
	}
	if !record.Pending() {
		t.Error("Expected row to be pending after reset")
	}

	if w := doRequest(t, server, "POST", "/api/files/42/99/reset", "secret"); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown file, got %d", w.Code)
	}
}
