package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"bbk-press-crawler/internal/models"
)

func TestNewConfigDefaults(t *testing.T) {
	c := NewConfig()
	if err := c.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
	if c.MaxBackoff != 300*time.Second || c.InitialBackoff != time.Second {
		t.Fatalf("unexpected backoff defaults %v / %v", c.InitialBackoff, c.MaxBackoff)
	}
	if len(c.Languages) != 2 || len(c.ContentTypes) != 3 {
		t.Fatalf("unexpected scope defaults %v / %v", c.Languages, c.ContentTypes)
	}
	if !strings.HasSuffix(c.ArchiveDir, AppName) {
		t.Fatalf("archive dir %q should live under the XDG data dir", c.ArchiveDir)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"relative origin", func(c *Config) { c.Origin = "/bundesbank" }, ErrInvalidOrigin},
		{"no languages", func(c *Config) { c.Languages = nil }, ErrNoLanguages},
		{"no content types", func(c *Config) { c.ContentTypes = nil }, ErrNoContentTypes},
		{"zero backoff", func(c *Config) { c.MaxBackoff = 0 }, ErrInvalidBackoff},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, ErrInvalidTimeout},
		{"negative delay", func(c *Config) { c.RequestDelay = -time.Second }, ErrInvalidRequestDelay},
		{"zero body size", func(c *Config) { c.MaxBodySize = 0 }, ErrInvalidMaxBodySize},
		{"no data dir", func(c *Config) { c.DataDir = "" }, ErrNoDataDir},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := NewConfig()
			tc.mutate(c)
			if err := c.Validate(); !errors.Is(err, tc.want) {
				t.Fatalf("want %v, got %v", tc.want, err)
			}
		})
	}
}

func TestLoadYAMLAndTOML(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "crawl.yaml")
	tomlPath := filepath.Join(dir, "crawl.toml")
	if err := os.WriteFile(yamlPath, []byte(`
languages: [German]
content_types: ["Speeches", "press-releases"]
max_backoff: 2m
request_delay: "10"
data_dir: /tmp/bbk
archive: true
`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(tomlPath, []byte(`
languages = ["en"]
content_types = ["Interviews"]
max_backoff = "30s"
timeout = "45s"
`), 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := LoadFile(yamlPath)
	if err != nil {
		t.Fatalf("load yaml: %v", err)
	}
	c := NewConfig()
	if err := c.ApplyFile(f); err != nil {
		t.Fatalf("apply yaml: %v", err)
	}
	if len(c.Languages) != 1 || c.Languages[0] != models.German {
		t.Fatalf("unexpected languages %v", c.Languages)
	}
	if len(c.ContentTypes) != 2 || c.ContentTypes[1] != models.PressReleases {
		t.Fatalf("unexpected content types %v", c.ContentTypes)
	}
	if c.MaxBackoff != 2*time.Minute || c.RequestDelay != 10*time.Second || c.DataDir != "/tmp/bbk" || !c.Archive {
		t.Fatalf("unexpected yaml overlay %+v", c)
	}
	if c.Origin == "" || c.InitialBackoff != time.Second {
		t.Fatal("unset values must keep defaults")
	}

	f, err = LoadFile(tomlPath)
	if err != nil {
		t.Fatalf("load toml: %v", err)
	}
	c = NewConfig()
	if err := c.ApplyFile(f); err != nil {
		t.Fatalf("apply toml: %v", err)
	}
	if c.Languages[0] != models.English || c.ContentTypes[0] != models.Interviews ||
		c.MaxBackoff != 30*time.Second || c.Timeout != 45*time.Second {
		t.Fatalf("unexpected toml overlay %+v", c)
	}
}

func TestLoadFileErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadFile(filepath.Join(dir, "missing.yaml")); !errors.Is(err, ErrConfigNotFound) {
		t.Fatalf("want ErrConfigNotFound, got %v", err)
	}
	ini := filepath.Join(dir, "crawl.ini")
	_ = os.WriteFile(ini, []byte("x=1"), 0o644)
	if _, err := LoadFile(ini); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("want ErrUnsupportedFormat, got %v", err)
	}

	bad := filepath.Join(dir, "bad.yaml")
	_ = os.WriteFile(bad, []byte("content_types: [Podcasts]\n"), 0o644)
	f, err := LoadFile(bad)
	if err != nil {
		t.Fatal(err)
	}
	if err := NewConfig().ApplyFile(f); err == nil {
		t.Fatal("expected error for unknown content type")
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{EnvDataDir: "/srv/data", EnvMaxBackoff: "60"}
	c := NewConfig()
	if err := c.ApplyEnv(func(k string) string { return env[k] }); err != nil {
		t.Fatal(err)
	}
	if c.DataDir != "/srv/data" || c.MaxBackoff != time.Minute {
		t.Fatalf("env not applied: %+v", c)
	}

	env[EnvMaxBackoff] = "soon"
	if err := NewConfig().ApplyEnv(func(k string) string { return env[k] }); err == nil {
		t.Fatal("expected error for malformed duration")
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "crawl.toml")
	if err := os.WriteFile(p, []byte(`max_backoff = "30s"`+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	env := map[string]string{EnvMaxBackoff: "90"}
	c, err := Load(p, func(k string) string { return env[k] })
	if err != nil {
		t.Fatal(err)
	}
	if c.MaxBackoff != 90*time.Second {
		t.Fatalf("environment must win over the file, got %v", c.MaxBackoff)
	}

	if _, err := Load(filepath.Join(dir, "gone.yaml"), os.Getenv); !errors.Is(err, ErrConfigNotFound) {
		t.Fatalf("want ErrConfigNotFound, got %v", err)
	}
}

func TestFindConfigFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "explicit.toml")
	_ = os.WriteFile(p, nil, 0o644)
	if got := FindConfigFile(p); got != p {
		t.Fatalf("want %q, got %q", p, got)
	}
	if got := FindConfigFile(filepath.Join(dir, "nope.yaml")); got != "" {
		t.Fatalf("missing explicit file must yield empty path, got %q", got)
	}
}
