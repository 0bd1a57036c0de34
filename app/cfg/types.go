package cfg

type Cfg struct {
	// Source selection
	Source     string
	SourcesDir string

	// Storage configuration
	DBPath      string
	DownloadDir string

	// Pipeline configuration
	Parallel       int
	RescanInterval int
	FetchTimeout   int
	ScanOnly       bool
	FetchOnly      bool

	// HTTP API configuration
	Port         string
	APIAccessKey string

	// Application metadata
	UserAgent string
	LockFile  string
	Debug     bool
	Version   string
}
