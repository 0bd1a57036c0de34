package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dkoval/mediamirror/app/api"
	"github.com/dkoval/mediamirror/app/cfg"
	"github.com/dkoval/mediamirror/app/config"
	"github.com/dkoval/mediamirror/app/database"
	"github.com/dkoval/mediamirror/app/fetcher"
	"github.com/dkoval/mediamirror/app/lock"
	"github.com/dkoval/mediamirror/app/queue"
	"github.com/dkoval/mediamirror/app/scanner"
	"github.com/dkoval/mediamirror/app/source"
)

const queueCapacity = 300

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Load configuration from environment variables and command-line flags
	appCfg, err := cfg.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	if appCfg.Debug {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	log.Printf("Starting Media Mirror %s...", appCfg.Version)

	// Single-instance guard: the ledger and download directory must not be
	// shared between concurrent runs
	instanceLock, err := lock.Acquire(appCfg.LockFile)
	if err != nil {
		log.Fatalf("Failed to acquire instance lock: %v", err)
	}
	defer instanceLock.Release()

	// Database connection and schema
	log.Println("Opening ledger database...")
	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	schemaVersion, dirty, err := database.RunMigrations(db)
	if err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Printf("Ledger database ready (schema version %d, dirty: %v)", schemaVersion, dirty)

	fileRepo := database.NewFileRepository(db)

	// Load source configurations
	configCache := config.NewCache(appCfg.SourcesDir)
	if err := configCache.Run(); err != nil {
		log.Fatalf("Failed to load source configurations: %v", err)
	}
	log.Printf("Loaded %d source configurations from %s", configCache.GetConfigCount(), appCfg.SourcesDir)

	identifiers := collectIdentifiers(appCfg, configCache)
	if len(identifiers) == 0 && !appCfg.FetchOnly {
		log.Fatal("No sources configured: set --source or add definitions to the sources directory")
	}

	httpClient := &http.Client{
		Timeout: time.Duration(appCfg.FetchTimeout) * time.Second,
	}
	client := source.NewFeedClient(httpClient, appCfg.UserAgent)

	handles := resolveHandles(client, identifiers)
	if len(handles) == 0 && !appCfg.FetchOnly {
		log.Fatal("Failed to resolve any configured source")
	}

	// Remove partial downloads left behind by a previous crash before any
	// worker starts writing
	if err := fetcher.SweepTempFiles(fileRepo, appCfg.DownloadDir); err != nil {
		log.Printf("Warning: temp file sweep failed: %v", err)
	}

	mediaScanner := scanner.New(fileRepo, client, appCfg.DownloadDir)
	scanAll := func(ctx context.Context) {
		for _, handle := range handles {
			if err := mediaScanner.Run(ctx, handle); err != nil {
				log.Printf("Warning: scan failed for %s: %v", handle.Title, err)
			}
		}
	}

	if !appCfg.FetchOnly {
		log.Printf("Scanning %d sources...", len(handles))
		scanAll(context.Background())
	}

	if appCfg.ScanOnly {
		if stats, err := fileRepo.GetStats(); err == nil {
			log.Printf("Scan complete: %d known files, %d pending", stats.Total, stats.Pending)
		}
		return
	}

	// Seed the fetch queue and start the worker pool
	fetchQueue := queue.New(queueCapacity)
	seeded, err := fetcher.Seed(fileRepo, fetchQueue, appCfg.DownloadDir)
	if err != nil {
		log.Fatalf("Failed to seed fetch queue: %v", err)
	}
	log.Printf("Enqueued %d pending files", seeded)

	log.Printf("Starting fetch executor with %d workers...", appCfg.Parallel)
	executor := fetcher.NewExecutor(fileRepo, client, fetchQueue,
		appCfg.Parallel, time.Duration(appCfg.FetchTimeout)*time.Second)
	executor.Start()
	defer executor.Stop()

	// Optional HTTP status API
	serverErrChan := make(chan error, 1)
	var httpServer *http.Server
	if appCfg.Port != "" {
		apiHandler := api.NewHandler(fileRepo, configCache, executor, fetchQueue, appCfg.Version)
		server := api.NewServer(apiHandler, appCfg.APIAccessKey)

		httpServer = &http.Server{
			Addr:         ":" + appCfg.Port,
			Handler:      server,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		}

		go func() {
			log.Printf("Starting HTTP status API on port %s", appCfg.Port)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
			}
		}()
	}

	// Periodic rescans keep the ledger converged with the remote history and
	// re-enqueue rows whose earlier fetch attempts failed
	rescanCtx, cancelRescan := context.WithCancel(context.Background())
	defer cancelRescan()
	if appCfg.RescanInterval > 0 && !appCfg.FetchOnly {
		go func() {
			ticker := time.NewTicker(time.Duration(appCfg.RescanInterval) * time.Second)
			defer ticker.Stop()

			for {
				select {
				case <-rescanCtx.Done():
					return
				case <-ticker.C:
					scanAll(rescanCtx)
					if n, err := fetcher.Seed(fileRepo, fetchQueue, appCfg.DownloadDir); err != nil {
						log.Printf("Warning: failed to seed fetch queue: %v", err)
					} else if n > 0 {
						log.Printf("Rescan enqueued %d pending files", n)
					}
				}
			}
		}()
	}

	// Wait for interrupt signal or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	log.Println("Media Mirror started successfully!")

	select {
	case sig := <-sigChan:
		log.Printf("Received signal: %v", sig)
	case err := <-serverErrChan:
		log.Printf("Server error: %v", err)
	case err := <-executor.Fatal():
		log.Printf("Storage error, cannot continue: %v", err)
	}

	// Graceful shutdown
	log.Println("Shutting down gracefully...")

	cancelRescan()

	if httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		} else {
			log.Println("HTTP server stopped")
		}
	}

	// Executor is stopped via defer
	log.Println("Media Mirror shutdown complete")
}

// collectIdentifiers merges the single --source flag with the enabled entries
// of the sources directory, dropping duplicates.
func collectIdentifiers(appCfg *cfg.Cfg, configCache *config.Cache) []string {
	seen := make(map[string]struct{})
	var identifiers []string

	add := func(identifier string) {
		if identifier == "" {
			return
		}
		if _, ok := seen[identifier]; ok {
			return
		}
		seen[identifier] = struct{}{}
		identifiers = append(identifiers, identifier)
	}

	add(appCfg.Source)
	for _, sourceConfig := range configCache.GetEnabledConfigs() {
		add(sourceConfig.URL)
	}

	return identifiers
}

func resolveHandles(client source.Client, identifiers []string) []source.Handle {
	var handles []source.Handle
	for _, identifier := range identifiers {
		handle, err := client.Resolve(context.Background(), identifier)
		if err != nil {
			log.Printf("Warning: failed to resolve source %s: %v", identifier, err)
			continue
		}
		log.Printf("Resolved source: %s (ID: %d)", handle.Title, handle.ID)
		handles = append(handles, *handle)
	}
	return handles
}
