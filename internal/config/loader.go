package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"bbk-press-crawler/internal/models"
)

// DefaultConfigFile is looked up in the working directory.
const DefaultConfigFile = ".bbkcrawl.yaml"

// File mirrors the on-disk configuration. Empty values leave defaults in place;
// durations are Go duration strings or whole seconds.
type File struct {
	Origin         string   `yaml:"origin" toml:"origin"`
	UserAgent      string   `yaml:"user_agent" toml:"user_agent"`
	AcceptLanguage string   `yaml:"accept_language" toml:"accept_language"`
	Languages      []string `yaml:"languages" toml:"languages"`
	ContentTypes   []string `yaml:"content_types" toml:"content_types"`

	InitialBackoff string `yaml:"initial_backoff" toml:"initial_backoff"`
	MaxBackoff     string `yaml:"max_backoff" toml:"max_backoff"`
	RequestDelay   string `yaml:"request_delay" toml:"request_delay"`
	Timeout        string `yaml:"timeout" toml:"timeout"`
	MaxBodySize    int64  `yaml:"max_body_size" toml:"max_body_size"`

	DataDir    string `yaml:"data_dir" toml:"data_dir"`
	LogDir     string `yaml:"log_dir" toml:"log_dir"`
	ArchiveDir string `yaml:"archive_dir" toml:"archive_dir"`
	Archive    *bool  `yaml:"archive" toml:"archive"`

	ServerAddr string `yaml:"server_addr" toml:"server_addr"`
}

// LoadFile decodes a YAML or TOML file, chosen by extension.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user supplied path
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, err
	}

	var f File
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), &f); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	return &f, nil
}

// FindConfigFile returns the first existing candidate: the explicit path, then
// ./.bbkcrawl.yaml, then config.yaml / config.toml in the XDG config dir.
// It returns "" when nothing is found.
func FindConfigFile(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}
	candidates := []string{DefaultConfigFile}
	if cwd, err := os.Getwd(); err == nil {
		candidates[0] = filepath.Join(cwd, DefaultConfigFile)
	}
	candidates = append(candidates,
		filepath.Join(XDGConfigDir(), "config.yaml"),
		filepath.Join(XDGConfigDir(), "config.toml"),
	)
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

// Load builds the effective configuration: defaults, then the config file found by
// FindConfigFile(explicit), then the environment. An explicit path that does not exist
// is an error; a missing default file is not.
func Load(explicit string, getenv func(string) string) (*Config, error) {
	c := NewConfig()
	path := FindConfigFile(explicit)
	if explicit != "" && path == "" {
		return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, explicit)
	}
	if path != "" {
		f, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		if err := c.ApplyFile(f); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	if err := c.ApplyEnv(getenv); err != nil {
		return nil, err
	}
	return c, nil
}

// ApplyFile overlays every non-empty value of f.
func (c *Config) ApplyFile(f *File) error {
	setString(&c.Origin, f.Origin)
	setString(&c.UserAgent, f.UserAgent)
	setString(&c.AcceptLanguage, f.AcceptLanguage)
	setString(&c.DataDir, f.DataDir)
	setString(&c.LogDir, f.LogDir)
	setString(&c.ArchiveDir, f.ArchiveDir)
	setString(&c.ServerAddr, f.ServerAddr)
	if f.Archive != nil {
		c.Archive = *f.Archive
	}
	if f.MaxBodySize != 0 {
		c.MaxBodySize = f.MaxBodySize
	}

	if len(f.Languages) > 0 {
		langs := make([]models.Language, 0, len(f.Languages))
		for _, s := range f.Languages {
			l, err := models.ParseLanguage(s)
			if err != nil {
				return err
			}
			langs = append(langs, l)
		}
		c.Languages = langs
	}
	if len(f.ContentTypes) > 0 {
		cts, err := ParseContentTypes(f.ContentTypes)
		if err != nil {
			return err
		}
		c.ContentTypes = cts
	}

	durations := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"initial_backoff", f.InitialBackoff, &c.InitialBackoff},
		{"max_backoff", f.MaxBackoff, &c.MaxBackoff},
		{"request_delay", f.RequestDelay, &c.RequestDelay},
		{"timeout", f.Timeout, &c.Timeout},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := parseSeconds(d.raw)
		if err != nil {
			return fmt.Errorf("%s: %w", d.name, err)
		}
		*d.dst = v
	}
	return nil
}

// ParseContentTypes parses display names, also accepting comma separated entries.
func ParseContentTypes(values []string) ([]models.ContentType, error) {
	var out []models.ContentType
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			ct, err := models.ParseContentType(part)
			if err != nil {
				return nil, err
			}
			out = append(out, ct)
		}
	}
	return out, nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
