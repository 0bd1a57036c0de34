package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

const testFeedTemplate = `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Test Media Channel</title>
    <link>https://example.com</link>
    <description>Media attachments</description>
    <item>
      <title>Second post</title>
      <guid>post-2</guid>
      <pubDate>Mon, 03 Jul 2023 11:00:00 GMT</pubDate>
      <enclosure url="%s/media/clip.mp4" length="2048" type="video/mp4"/>
    </item>
    <item>
      <title>First post</title>
      <guid>post-1</guid>
      <pubDate>Mon, 03 Jul 2023 10:00:00 GMT</pubDate>
      <author>alice@example.com (alice)</author>
      <enclosure url="%s/media/photo.jpg" length="1024" type="image/jpeg"/>
    </item>
    <item>
      <title>Text only</title>
      <guid>post-3</guid>
      <pubDate>Mon, 03 Jul 2023 12:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`

func newTestFeedServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	var server *httptest.Server
	mux.HandleFunc("/feed.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, testFeedTemplate, server.URL, server.URL)
	})
	mux.HandleFunc("/media/photo.jpg", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("jpeg-bytes"))
	})
	mux.HandleFunc("/media/clip.mp4", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("mp4-bytes"))
	})
	mux.HandleFunc("/media/broken", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestResolve(t *testing.T) {
	server := newTestFeedServer(t)
	client := NewFeedClient(server.Client(), "test-agent")

	handle, err := client.Resolve(context.Background(), server.URL+"/feed.xml")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if handle.Title != "Test Media Channel" {
		t.Errorf("Expected title 'Test Media Channel', got '%s'", handle.Title)
	}
	if handle.ID <= 0 {
		t.Errorf("Expected positive stable id, got %d", handle.ID)
	}

	again, err := client.Resolve(context.Background(), server.URL+"/feed.xml")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if again.ID != handle.ID {
		t.Error("Expected identical identifier to resolve to identical id")
	}
}

func TestResolveNotFound(t *testing.T) {
	server := newTestFeedServer(t)
	client := NewFeedClient(server.Client(), "test-agent")

	if _, err := client.Resolve(context.Background(), "not a url"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for invalid identifier, got: %v", err)
	}
	if _, err := client.Resolve(context.Background(), server.URL+"/missing.xml"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for missing feed, got: %v", err)
	}
}

func TestEnumerateHistory(t *testing.T) {
	server := newTestFeedServer(t)
	client := NewFeedClient(server.Client(), "test-agent")

	handle, err := client.Resolve(context.Background(), server.URL+"/feed.xml")
	if err != nil {
		t.Fatalf("Failed to resolve: %v", err)
	}

	var items []Item
	err = client.EnumerateHistory(context.Background(), *handle, func(item Item) error {
		items = append(items, item)
		return nil
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(items) != 3 {
		t.Fatalf("Expected 3 items, got %d", len(items))
	}
	if !items[0].SentAt.Before(items[1].SentAt) || !items[1].SentAt.Before(items[2].SentAt) {
		t.Error("Expected items ordered oldest first")
	}

	first := items[0]
	if first.Media == nil {
		t.Fatal("Expected first item to carry media")
	}
	if first.Media.Name != "photo.jpg" || first.Media.Ext != ".jpg" {
		t.Errorf("Unexpected media descriptor: %+v", first.Media)
	}
	if first.Media.Size != 1024 {
		t.Errorf("Expected declared size 1024, got %d", first.Media.Size)
	}
	if first.SenderUsername != "alice" {
		t.Errorf("Expected sender 'alice', got '%s'", first.SenderUsername)
	}
	if first.ChannelID != handle.ID {
		t.Error("Expected item to reference its source")
	}

	if items[2].Media != nil {
		t.Error("Expected text-only item to carry no media")
	}
}

func TestGetItem(t *testing.T) {
	server := newTestFeedServer(t)
	client := NewFeedClient(server.Client(), "test-agent")

	handle, err := client.Resolve(context.Background(), server.URL+"/feed.xml")
	if err != nil {
		t.Fatalf("Failed to resolve: %v", err)
	}

	var want Item
	client.EnumerateHistory(context.Background(), *handle, func(item Item) error {
		if item.Media != nil && want.ID == 0 {
			want = item
		}
		return nil
	})

	got, err := client.GetItem(context.Background(), handle.ID, want.ID)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if got == nil || got.ID != want.ID {
		t.Errorf("Expected to find item %d, got %+v", want.ID, got)
	}

	vanished, err := client.GetItem(context.Background(), handle.ID, 424242)
	if err != nil {
		t.Fatalf("Expected no error for vanished item, got: %v", err)
	}
	if vanished != nil {
		t.Error("Expected nil for vanished item")
	}
}

func TestFetchMedia(t *testing.T) {
	server := newTestFeedServer(t)
	client := NewFeedClient(server.Client(), "test-agent")

	item := Item{
		ID:    1,
		Media: &Media{URL: server.URL + "/media/photo.jpg"},
	}

	dest := filepath.Join(t.TempDir(), "photo.jpg.tmp")
	if err := client.FetchMedia(context.Background(), item, dest); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	content, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("Failed to read downloaded file: %v", err)
	}
	if string(content) != "jpeg-bytes" {
		t.Errorf("Unexpected content: %s", content)
	}
}

func TestFetchMediaFailureLeavesNoFile(t *testing.T) {
	server := newTestFeedServer(t)
	client := NewFeedClient(server.Client(), "test-agent")

	item := Item{
		ID:    1,
		Media: &Media{URL: server.URL + "/media/broken"},
	}

	dest := filepath.Join(t.TempDir(), "broken.tmp")
	if err := client.FetchMedia(context.Background(), item, dest); err == nil {
		t.Fatal("Expected error for failing transfer")
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Error("Expected no file at destination after reported failure")
	}
}
