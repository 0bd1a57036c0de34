package config

// SourceConfig is one source definition file from the sources directory.
type SourceConfig struct {
	// Name is derived from the filename, not the file contents.
	Name string `yaml:"-"`

	// URL is the source identifier handed to the source client's Resolve.
	URL string `yaml:"url"`

	// Enabled defaults to true when omitted.
	Enabled *bool `yaml:"enabled"`
}

// IsEnabled reports whether the source should be scanned.
func (c *SourceConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}
