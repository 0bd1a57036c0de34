package cfg

import (
	"cmp"
	"fmt"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Source selection
	Source     string `long:"source" env:"SOURCE" description:"Identifier of a single source to mirror (feed URL)"`
	SourcesDir string `long:"sources-dir" env:"SOURCES_DIR" default:"./sources" description:"Directory containing source definition files"`

	// Storage configuration
	DBPath      string `long:"db-path" env:"DB_PATH" default:"./mediamirror.db" description:"Path to the SQLite ledger database"`
	DownloadDir string `long:"download-dir" env:"DOWNLOAD_DIR" default:"./downloaded_files" description:"Base directory for downloaded media"`

	// Pipeline configuration
	Parallel       int  `long:"parallel" env:"PARALLEL" default:"5" description:"Maximum concurrent downloads"`
	RescanInterval int  `long:"rescan-interval" env:"RESCAN_INTERVAL" default:"300" description:"Seconds between history rescans (0 disables rescans)"`
	FetchTimeout   int  `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"300" description:"Timeout in seconds for a single media transfer"`
	ScanOnly       bool `long:"scan-only" env:"SCAN_ONLY" description:"Only scan history and update the ledger, do not download"`
	FetchOnly      bool `long:"fetch-only" env:"FETCH_ONLY" description:"Only download already-discovered pending items, do not scan"`

	// HTTP API configuration
	Port         string `long:"port" env:"PORT" description:"HTTP status API port (empty disables the API)"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authenticated endpoints (optional)"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"mediamirror/1.0" description:"User agent string for HTTP requests"`
	LockFile  string `long:"lock-file" env:"LOCK_FILE" default:"./mediamirror.lock" description:"Path to the single-instance lock file"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		Source:         raw.Source,
		SourcesDir:     raw.SourcesDir,
		DBPath:         raw.DBPath,
		DownloadDir:    raw.DownloadDir,
		Parallel:       raw.Parallel,
		RescanInterval: raw.RescanInterval,
		FetchTimeout:   raw.FetchTimeout,
		ScanOnly:       raw.ScanOnly,
		FetchOnly:      raw.FetchOnly,
		Port:           raw.Port,
		APIAccessKey:   raw.APIAccessKey,
		UserAgent:      raw.UserAgent,
		LockFile:       raw.LockFile,
		Debug:          raw.Debug,
		Version:        GetVersion(),
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func validate(cfg *Cfg) error {
	if cfg.Parallel < 1 {
		return fmt.Errorf("parallel must be a positive integer, got %d", cfg.Parallel)
	}
	if cfg.RescanInterval < 0 {
		return fmt.Errorf("rescan interval must be non-negative, got %d", cfg.RescanInterval)
	}
	if cfg.FetchTimeout < 1 {
		return fmt.Errorf("fetch timeout must be a positive integer, got %d", cfg.FetchTimeout)
	}
	if cfg.ScanOnly && cfg.FetchOnly {
		return fmt.Errorf("scan-only and fetch-only are mutually exclusive")
	}
	return nil
}
