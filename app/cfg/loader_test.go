package cfg

import (
	"testing"
)

func TestGetVersion(t *testing.T) {
	if GetVersion() == "" {
		t.Error("GetVersion should never return empty string")
	}
}

func TestValidate(t *testing.T) {
	base := func() *Cfg {
		return &Cfg{
			Parallel:       5,
			RescanInterval: 300,
			FetchTimeout:   300,
		}
	}

	if err := validate(base()); err != nil {
		t.Errorf("Expected valid config, got error: %v", err)
	}

	c := base()
	c.Parallel = 0
	if err := validate(c); err == nil {
		t.Error("Expected error for zero parallel")
	}

	c = base()
	c.RescanInterval = -1
	if err := validate(c); err == nil {
		t.Error("Expected error for negative rescan interval")
	}

	c = base()
	c.FetchTimeout = 0
	if err := validate(c); err == nil {
		t.Error("Expected error for zero fetch timeout")
	}

	c = base()
	c.ScanOnly = true
	c.FetchOnly = true
	if err := validate(c); err == nil {
		t.Error("Expected error for scan-only combined with fetch-only")
	}
}

func TestConfigFields(t *testing.T) {
	cfg := &Cfg{
		Source:         "https://example.com/feed.xml",
		SourcesDir:     "./sources",
		DBPath:         "./test.db",
		DownloadDir:    "./downloads",
		Parallel:       3,
		RescanInterval: 60,
		FetchTimeout:   120,
		Port:           "8080",
		APIAccessKey:   "test-key",
		UserAgent:      "Test Agent",
		LockFile:       "./test.lock",
		Debug:          true,
		Version:        "test-version",
	}

	if cfg.Source != "https://example.com/feed.xml" {
		t.Errorf("Expected source 'https://example.com/feed.xml', got '%s'", cfg.Source)
	}
	if cfg.Parallel != 3 {
		t.Errorf("Expected parallel 3, got %d", cfg.Parallel)
	}
	if cfg.DownloadDir != "./downloads" {
		t.Errorf("Expected download dir './downloads', got '%s'", cfg.DownloadDir)
	}
	if cfg.Port != "8080" {
		t.Errorf("Expected port '8080', got '%s'", cfg.Port)
	}
	if cfg.APIAccessKey != "test-key" {
		t.Errorf("Expected API key 'test-key', got '%s'", cfg.APIAccessKey)
	}
	if cfg.Version != "test-version" {
		t.Errorf("Expected version 'test-version', got '%s'", cfg.Version)
	}
}
