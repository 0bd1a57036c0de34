package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Cache loads source definitions from a directory and keeps them available to
// concurrent readers. A missing directory is treated as an empty set.
type Cache struct {
	sourcesDir string
	mu         sync.RWMutex
	cache      map[string]*SourceConfig
}

func NewCache(sourcesDir string) *Cache {
	return &Cache{
		sourcesDir: sourcesDir,
		cache:      make(map[string]*SourceConfig),
	}
}

func (c *Cache) Run() error {
	if _, err := os.Stat(c.sourcesDir); os.IsNotExist(err) {
		return nil
	}

	var files []string
	for _, pattern := range []string{"*.yml", "*.yaml"} {
		matches, err := filepath.Glob(filepath.Join(c.sourcesDir, pattern))
		if err != nil {
			return fmt.Errorf("failed to find source definition files: %w", err)
		}
		files = append(files, matches...)
	}

	for _, file := range files {
		sourceConfig, err := c.loadFile(file)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		c.mu.Lock()
		c.cache[sourceConfig.Name] = sourceConfig
		c.mu.Unlock()

		slog.Debug("Source definition loaded", "source", sourceConfig.Name, "url", sourceConfig.URL, "enabled", sourceConfig.IsEnabled())
	}

	return nil
}

func (c *Cache) loadFile(path string) (*SourceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var sourceConfig SourceConfig
	if err := yaml.Unmarshal(data, &sourceConfig); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	base := filepath.Base(path)
	sourceConfig.Name = strings.TrimSuffix(base, filepath.Ext(base))

	if err := c.validate(&sourceConfig); err != nil {
		return nil, err
	}

	return &sourceConfig, nil
}

func (c *Cache) validate(sourceConfig *SourceConfig) error {
	if sourceConfig.URL == "" {
		return fmt.Errorf("source URL is required")
	}
	return nil
}

func (c *Cache) GetConfig(name string) (*SourceConfig, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	sourceConfig, ok := c.cache[name]
	if !ok {
		return nil, fmt.Errorf("source config with name '%s' not found", name)
	}
	return sourceConfig, nil
}

func (c *Cache) GetConfigs() []*SourceConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()

	configs := make([]*SourceConfig, 0, len(c.cache))
	for _, sourceConfig := range c.cache {
		configs = append(configs, sourceConfig)
	}
	return configs
}

func (c *Cache) GetEnabledConfigs() []*SourceConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()

	configs := make([]*SourceConfig, 0, len(c.cache))
	for _, sourceConfig := range c.cache {
		if sourceConfig.IsEnabled() {
			configs = append(configs, sourceConfig)
		}
	}
	return configs
}

func (c *Cache) GetConfigCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.cache)
}
