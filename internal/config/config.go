package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// Mode constants
	ModeServe   = "serve"
	ModeExtract = "extract"

	// Default values
	DefaultPort        = 8080
	DefaultHost        = "127.0.0.1"
	DefaultLogLevel    = "info"
	DefaultMaxFileSize = 100 * 1024 * 1024 // 100MB
	DefaultWorkers     = 2
	DefaultQueueSize   = 64

	// Directory permissions
	DefaultDirPerm = 0o750
)

// Config holds all configuration for the paper parsing service
type Config struct {
	// Run mode: "serve" runs the HTTP service, "extract" processes one
	// file and prints the result
	Mode string

	// HTTP server configuration
	Host   string
	Port   int
	APIKey string

	// Storage configuration
	DataDir string
	DBPath  string

	// Remote parse service configuration; an empty RemoteBaseURL disables
	// the remote stages entirely
	RemoteBaseURL   string
	RemoteAPIKey    string
	PollInterval    time.Duration
	PollBudget      time.Duration
	MaxPollFailures int

	// Application configuration
	Version     string
	LogLevel    string
	MaxFileSize int64
	WorkerCount int
	QueueSize   int
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Mode:            ModeServe,
		Host:            DefaultHost,
		Port:            DefaultPort,
		DataDir:         "data",
		DBPath:          filepath.Join("data", "paperparse.db"),
		PollInterval:    2 * time.Second,
		PollBudget:      90 * time.Second,
		MaxPollFailures: 3,
		Version:         "1.0.0",
		LogLevel:        DefaultLogLevel,
		MaxFileSize:     DefaultMaxFileSize,
		WorkerCount:     DefaultWorkers,
		QueueSize:       DefaultQueueSize,
	}
}

// LoadFromFlags parses command line flags and returns a configuration
func LoadFromFlags() (*Config, error) {
	cfg := DefaultConfig()

	setupViperEnvironment(cfg)
	defineCommandLineFlags(cfg)
	bindFlagsToViper()
	setupUsageMessage()

	pflag.Parse()

	populateConfigFromViper(cfg)

	// Expand paths if needed
	if cfg.DataDir != "" {
		if expandedPath, err := filepath.Abs(cfg.DataDir); err == nil {
			cfg.DataDir = expandedPath
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(cfg *Config) {
	viper.SetEnvPrefix("PAPERPARSE")
	viper.AutomaticEnv()

	viper.SetDefault("mode", cfg.Mode)
	viper.SetDefault("host", cfg.Host)
	viper.SetDefault("port", cfg.Port)
	viper.SetDefault("apikey", cfg.APIKey)
	viper.SetDefault("datadir", cfg.DataDir)
	viper.SetDefault("dbpath", cfg.DBPath)
	viper.SetDefault("remoteurl", cfg.RemoteBaseURL)
	viper.SetDefault("remotekey", cfg.RemoteAPIKey)
	viper.SetDefault("pollinterval", cfg.PollInterval)
	viper.SetDefault("pollbudget", cfg.PollBudget)
	viper.SetDefault("maxpollfailures", cfg.MaxPollFailures)
	viper.SetDefault("loglevel", cfg.LogLevel)
	viper.SetDefault("maxfilesize", cfg.MaxFileSize)
	viper.SetDefault("workers", cfg.WorkerCount)
	viper.SetDefault("queuesize", cfg.QueueSize)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(cfg *Config) {
	pflag.String("mode", cfg.Mode, "Run mode: 'serve' for the HTTP service, 'extract' for one-shot file processing")
	pflag.String("host", cfg.Host, "Server host address (serve mode only)")
	pflag.Int("port", cfg.Port, "Server port (serve mode only)")
	pflag.String("apikey", cfg.APIKey, "API key required from clients; empty disables auth")
	pflag.String("datadir", cfg.DataDir, "Directory for uploaded files and the database")
	pflag.String("dbpath", cfg.DBPath, "SQLite database path")
	pflag.String("remoteurl", cfg.RemoteBaseURL, "Base URL of the remote parse service; empty disables remote stages")
	pflag.String("remotekey", cfg.RemoteAPIKey, "API key for the remote parse service")
	pflag.Duration("pollinterval", cfg.PollInterval, "Delay between remote job status polls")
	pflag.Duration("pollbudget", cfg.PollBudget, "Total time allowed for polling one remote job")
	pflag.Int("maxpollfailures", cfg.MaxPollFailures, "Consecutive poll failures tolerated before giving up")
	pflag.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	pflag.Int64("maxfilesize", cfg.MaxFileSize, "Maximum PDF file size in bytes")
	pflag.Int("workers", cfg.WorkerCount, "Extraction worker count")
	pflag.Int("queuesize", cfg.QueueSize, "Extraction queue capacity")
}

// bindFlagsToViper binds command line flags to viper configuration
func bindFlagsToViper() {
	for _, name := range []string{
		"mode", "host", "port", "apikey", "datadir", "dbpath",
		"remoteurl", "remotekey", "pollinterval", "pollbudget",
		"maxpollfailures", "loglevel", "maxfilesize", "workers", "queuesize",
	} {
		_ = viper.BindPFlag(name, pflag.Lookup(name))
	}
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\npaperparse - structured text extraction for academic paper PDFs\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                                        # serve on 127.0.0.1:8080\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --host=0.0.0.0 --port=8081             # serve on all interfaces\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=extract paper.pdf               # one-shot extraction to stdout\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  PAPERPARSE_MODE         Run mode\n")
		fmt.Fprintf(os.Stderr, "  PAPERPARSE_HOST         Server host\n")
		fmt.Fprintf(os.Stderr, "  PAPERPARSE_PORT         Server port\n")
		fmt.Fprintf(os.Stderr, "  PAPERPARSE_DATADIR      Data directory\n")
		fmt.Fprintf(os.Stderr, "  PAPERPARSE_REMOTEURL    Remote parse service URL\n")
		fmt.Fprintf(os.Stderr, "  PAPERPARSE_REMOTEKEY    Remote parse service API key\n")
		fmt.Fprintf(os.Stderr, "  PAPERPARSE_LOGLEVEL     Log level\n")
		fmt.Fprintf(os.Stderr, "  PAPERPARSE_MAXFILESIZE  Maximum file size\n")
	}
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(cfg *Config) {
	cfg.Mode = viper.GetString("mode")
	cfg.Host = viper.GetString("host")
	cfg.Port = viper.GetInt("port")
	cfg.APIKey = viper.GetString("apikey")
	cfg.DataDir = viper.GetString("datadir")
	cfg.DBPath = viper.GetString("dbpath")
	cfg.RemoteBaseURL = viper.GetString("remoteurl")
	cfg.RemoteAPIKey = viper.GetString("remotekey")
	cfg.PollInterval = viper.GetDuration("pollinterval")
	cfg.PollBudget = viper.GetDuration("pollbudget")
	cfg.MaxPollFailures = viper.GetInt("maxpollfailures")
	cfg.LogLevel = viper.GetString("loglevel")
	cfg.MaxFileSize = viper.GetInt64("maxfilesize")
	cfg.WorkerCount = viper.GetInt("workers")
	cfg.QueueSize = viper.GetInt("queuesize")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Mode != ModeServe && c.Mode != ModeExtract {
		return errors.New("mode must be either 'serve' or 'extract'")
	}

	if c.Mode == ModeServe && (c.Port < 1 || c.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}

	if c.DataDir == "" {
		return errors.New("data directory cannot be empty")
	}

	// Create the data directory on first run.
	if _, err := os.Stat(c.DataDir); os.IsNotExist(err) {
		if err := os.MkdirAll(c.DataDir, DefaultDirPerm); err != nil {
			return fmt.Errorf("cannot create data directory %s: %w", c.DataDir, err)
		}
	} else if err != nil {
		return fmt.Errorf("cannot access data directory %s: %w", c.DataDir, err)
	}

	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}
	if c.WorkerCount < 1 {
		return errors.New("worker count must be at least 1")
	}
	if c.PollInterval <= 0 || c.PollBudget <= 0 {
		return errors.New("poll interval and budget must be positive")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	return nil
}

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RemoteEnabled reports whether the remote parse stages are configured
func (c *Config) RemoteEnabled() bool {
	return c.RemoteBaseURL != ""
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, Host: %s, Port: %d, DataDir: %s, LogLevel: %s, MaxFileSize: %d, Workers: %d}",
		c.Mode, c.Host, c.Port, c.DataDir, c.LogLevel, c.MaxFileSize, c.WorkerCount)
}
