// Package config holds the crawler settings: built-in defaults, an optional YAML or
// TOML file, environment overrides and CLI flags, applied in that order.
package config

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/adrg/xdg"

	"bbk-press-crawler/internal/crawler"
	"bbk-press-crawler/internal/models"
)

// AppName is used for XDG directory paths and the default config file name.
const AppName = "bbkcrawl"

const (
	DefaultTimeout     = 30 * time.Second
	DefaultDialTimeout = 10 * time.Second

	// DefaultMaxBodySize bounds one document; press pages are well below it.
	DefaultMaxBodySize = 10 * 1024 * 1024

	DefaultDataDir    = "data"
	DefaultLogDir     = "logs"
	DefaultServerAddr = ":8080"
)

// Environment variables that override file values.
const (
	EnvDataDir    = "BBKCRAWL_DATA_DIR"
	EnvMaxBackoff = "BBKCRAWL_MAX_BACKOFF"
	EnvArchiveDir = "BBKCRAWL_ARCHIVE_DIR"
)

type Config struct {
	Origin         string
	UserAgent      string
	AcceptLanguage string

	Languages    []models.Language
	ContentTypes []models.ContentType

	InitialBackoff time.Duration
	// MaxBackoff caps a single wait; reaching it turns a retryable failure into a failure.
	MaxBackoff time.Duration
	// RequestDelay pauses between document fetches.
	RequestDelay time.Duration
	Timeout      time.Duration
	DialTimeout  time.Duration
	MaxBodySize  int64

	DataDir    string
	LogDir     string
	ArchiveDir string
	Archive    bool

	ServerAddr string

	Verbose bool
	LogJSON bool
}

func NewConfig() *Config {
	return &Config{
		Origin:         crawler.DefaultOrigin,
		UserAgent:      crawler.DefaultUserAgent,
		AcceptLanguage: crawler.DefaultAcceptLanguage,
		Languages:      append([]models.Language(nil), models.SupportedLanguages...),
		ContentTypes:   append([]models.ContentType(nil), models.AllContentTypes...),
		InitialBackoff: crawler.DefaultInitialBackoff,
		MaxBackoff:     crawler.DefaultMaxBackoff,
		Timeout:        DefaultTimeout,
		DialTimeout:    DefaultDialTimeout,
		MaxBodySize:    DefaultMaxBodySize,
		DataDir:        DefaultDataDir,
		LogDir:         DefaultLogDir,
		ArchiveDir:     XDGDataDir(),
		ServerAddr:     DefaultServerAddr,
	}
}

// XDGDataDir is where the run archive lives unless configured otherwise.
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir is searched for a config file after the working directory.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// ApplyEnv overrides values from the environment; getenv is usually os.Getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv(EnvDataDir); v != "" {
		c.DataDir = v
	}
	if v := getenv(EnvArchiveDir); v != "" {
		c.ArchiveDir = v
	}
	if v := getenv(EnvMaxBackoff); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMaxBackoff, err)
		}
		c.MaxBackoff = d
	}
	return nil
}

// parseSeconds accepts a Go duration ("5m") or a bare number of seconds ("300").
func parseSeconds(s string) (time.Duration, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(s)
}

// Validate returns the first problem found.
func (c *Config) Validate() error {
	if _, err := crawler.NewSite(c.Origin, c.UserAgent, c.AcceptLanguage); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOrigin, err)
	}
	if len(c.Languages) == 0 {
		return ErrNoLanguages
	}
	if len(c.ContentTypes) == 0 {
		return ErrNoContentTypes
	}
	if c.InitialBackoff <= 0 || c.MaxBackoff <= 0 {
		return ErrInvalidBackoff
	}
	if c.Timeout <= 0 || c.DialTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.RequestDelay < 0 {
		return ErrInvalidRequestDelay
	}
	if c.MaxBodySize <= 0 {
		return ErrInvalidMaxBodySize
	}
	if c.DataDir == "" {
		return ErrNoDataDir
	}
	return nil
}
