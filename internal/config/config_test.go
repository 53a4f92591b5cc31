package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestSetLogger(t *testing.T) {
	logger := zerolog.New(os.Stdout).Level(zerolog.InfoLevel)
	SetLogger(logger)

	// This test mainly ensures the function doesn't panic
	SetLogger(zerolog.Nop())
}

func TestApplyDefaults(t *testing.T) {
	t.Run("Config struct defaults", func(t *testing.T) {
		config := &Config{}
		applyDefaults(config)

		if config.Version != CurrentVersion {
			t.Errorf("Expected version %q, got %q", CurrentVersion, config.Version)
		}
		if config.HTTP.Timeout != 30*time.Second {
			t.Errorf("Expected HTTP timeout 30s, got %v", config.HTTP.Timeout)
		}
		if config.HTTP.UserAgent == "" {
			t.Error("Expected a default user agent")
		}
		if config.Media.S3.Region != "auto" {
			t.Errorf("Expected S3 region 'auto', got %q", config.Media.S3.Region)
		}
		if !config.History.Enabled {
			t.Error("Expected history to be enabled by default")
		}
		if config.History.Compression != "zstd" {
			t.Errorf("Expected zstd history compression, got %q", config.History.Compression)
		}
		if config.Markdown.Renderer != RendererClassic {
			t.Errorf("Expected classic renderer, got %q", config.Markdown.Renderer)
		}
		if config.List.PageSize != 20 {
			t.Errorf("Expected page size 20, got %d", config.List.PageSize)
		}
		if config.Logging.Level != "warn" {
			t.Errorf("Expected log level 'warn', got %q", config.Logging.Level)
		}
		if config.Profiles != nil {
			t.Error("Expected no default profiles")
		}
	})

	t.Run("Custom struct with various field types", func(t *testing.T) {
		type TestStruct struct {
			StringField   string        `default:"test"`
			IntField      int           `default:"42"`
			Int64Field    int64         `default:"7"`
			BoolField     bool          `default:"true"`
			FloatField    float64       `default:"3.14"`
			DurationField time.Duration `default:"1m30s"`
			SliceField    []string      `default:"a, b,c"`
			NoDefault     string
		}

		s := &TestStruct{}
		applyDefaults(s)

		if s.StringField != "test" {
			t.Errorf("Expected 'test', got %q", s.StringField)
		}
		if s.IntField != 42 {
			t.Errorf("Expected 42, got %d", s.IntField)
		}
		if s.Int64Field != 7 {
			t.Errorf("Expected 7, got %d", s.Int64Field)
		}
		if !s.BoolField {
			t.Error("Expected true")
		}
		if s.FloatField != 3.14 {
			t.Errorf("Expected 3.14, got %f", s.FloatField)
		}
		if s.DurationField != 90*time.Second {
			t.Errorf("Expected 1m30s, got %v", s.DurationField)
		}
		if strings.Join(s.SliceField, "|") != "a|b|c" {
			t.Errorf("Expected [a b c], got %v", s.SliceField)
		}
		if s.NoDefault != "" {
			t.Errorf("Expected empty, got %q", s.NoDefault)
		}
	})

	t.Run("Invalid default values", func(t *testing.T) {
		type TestStruct struct {
			IntField      int           `default:"not-a-number"`
			BoolField     bool          `default:"maybe"`
			DurationField time.Duration `default:"soon"`
		}

		s := &TestStruct{}
		applyDefaults(s)

		if s.IntField != 0 || s.BoolField || s.DurationField != 0 {
			t.Errorf("Expected zero values for invalid defaults, got %+v", s)
		}
	})

	t.Run("Nested struct defaults", func(t *testing.T) {
		type Inner struct {
			Value string `default:"inner"`
		}
		type Outer struct {
			Inner Inner
		}

		s := &Outer{}
		applyDefaults(s)

		if s.Inner.Value != "inner" {
			t.Errorf("Expected 'inner', got %q", s.Inner.Value)
		}
	})

	t.Run("Non-struct input", func(t *testing.T) {
		value := 42
		applyDefaults(&value)
		if value != 42 {
			t.Error("Non-struct input should be left untouched")
		}
	})
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	SetLogger(zerolog.Nop())

	t.Run("Load non-existent config file", func(t *testing.T) {
		cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
		if err != nil {
			t.Fatalf("Expected defaults for a missing file, got %v", err)
		}
		if cfg.Version != CurrentVersion {
			t.Errorf("Expected default version, got %q", cfg.Version)
		}
		if len(cfg.Profiles) != 0 {
			t.Errorf("Expected no profiles, got %d", len(cfg.Profiles))
		}
	})

	t.Run("Load valid config file", func(t *testing.T) {
		path := writeConfig(t, `
version: "1"
default_profile: blog
editor: nvim
profiles:
  blog:
    domain: https://blog.example
    micropub_endpoint: https://blog.example/micropub
    media_endpoint: https://blog.example/media
  photos:
    domain: https://photos.example
    micropub_endpoint: https://photos.example/micropub
    media_endpoint: s3://photo-bucket/uploads
paths:
  data_dir: /tmp/micropub-data
http:
  timeout: 5s
history:
  compression: gzip
list:
  page_size: 5
`)

		cfg, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("Failed to load config: %v", err)
		}

		if cfg.DefaultProfile != "blog" {
			t.Errorf("Expected default profile 'blog', got %q", cfg.DefaultProfile)
		}
		if cfg.Editor != "nvim" {
			t.Errorf("Expected editor 'nvim', got %q", cfg.Editor)
		}
		if got := cfg.ProfileNames(); strings.Join(got, ",") != "blog,photos" {
			t.Errorf("Expected sorted profile names, got %v", got)
		}
		if cfg.Profiles["photos"].MediaEndpoint != "s3://photo-bucket/uploads" {
			t.Errorf("Unexpected media endpoint %q", cfg.Profiles["photos"].MediaEndpoint)
		}
		if cfg.HTTP.Timeout != 5*time.Second {
			t.Errorf("Expected 5s timeout, got %v", cfg.HTTP.Timeout)
		}
		if cfg.History.Compression != "gzip" {
			t.Errorf("Expected gzip, got %q", cfg.History.Compression)
		}
		if cfg.List.PageSize != 5 {
			t.Errorf("Expected page size 5, got %d", cfg.List.PageSize)
		}
		// Unset keys keep their defaults
		if !cfg.History.Enabled {
			t.Error("Expected history to stay enabled")
		}
		if cfg.Markdown.SyntaxTheme != "monokai" {
			t.Errorf("Expected default syntax theme, got %q", cfg.Markdown.SyntaxTheme)
		}
	})

	t.Run("Load invalid YAML file", func(t *testing.T) {
		path := writeConfig(t, "profiles: [unclosed")
		_, err := LoadConfig(path)
		if err == nil {
			t.Fatal("Expected error for invalid YAML")
		}
		if !strings.Contains(err.Error(), "failed to parse config file") {
			t.Errorf("Unexpected error: %v", err)
		}
	})

	t.Run("Invalid values", func(t *testing.T) {
		tests := map[string]string{
			"unknown version":        `version: "9"`,
			"undefined default":      "default_profile: nope\nprofiles:\n  blog:\n    micropub_endpoint: https://blog.example/micropub\n",
			"bad micropub endpoint":  "profiles:\n  blog:\n    micropub_endpoint: ftp://blog.example\n",
			"s3 micropub endpoint":   "profiles:\n  blog:\n    micropub_endpoint: s3://bucket\n",
			"bad media endpoint":     "profiles:\n  blog:\n    micropub_endpoint: https://blog.example/micropub\n    media_endpoint: /relative\n",
			"unknown renderer":       "markdown:\n  renderer: pandoc\n",
			"unknown compression":    "history:\n  compression: brotli\n",
			"non-positive page size": "list:\n  page_size: 0\n",
		}
		for name, content := range tests {
			t.Run(name, func(t *testing.T) {
				if _, err := LoadConfig(writeConfig(t, content)); err == nil {
					t.Errorf("Expected validation error")
				}
			})
		}
	})

	t.Run("Environment overrides", func(t *testing.T) {
		t.Setenv("MICROPUB_DATA_DIR", "/env/data")
		t.Setenv("MICROPUB_LOG_LEVEL", "debug")

		cfg, err := LoadConfig(writeConfig(t, "paths:\n  data_dir: /file/data\n"))
		if err != nil {
			t.Fatalf("Failed to load config: %v", err)
		}
		if cfg.Paths.DataDir != "/env/data" {
			t.Errorf("Expected env data dir, got %q", cfg.Paths.DataDir)
		}
		if cfg.Logging.Level != "debug" {
			t.Errorf("Expected env log level, got %q", cfg.Logging.Level)
		}
	})
}

func TestPaths(t *testing.T) {
	t.Run("Explicit data dir", func(t *testing.T) {
		cfg := &Config{Paths: PathsConfig{DataDir: "/srv/micropub"}}

		checks := map[string]func() (string, error){
			"/srv/micropub/drafts":     cfg.DraftsDir,
			"/srv/micropub/archive":    cfg.ArchiveDir,
			"/srv/micropub/tokens":     cfg.TokensDir,
			"/srv/micropub/history.db": cfg.HistoryDBPath,
		}
		for want, fn := range checks {
			got, err := fn()
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != want {
				t.Errorf("Expected %q, got %q", want, got)
			}
		}
	})

	t.Run("XDG data home", func(t *testing.T) {
		t.Setenv("XDG_DATA_HOME", "/xdg")
		got, err := (&Config{}).DataDir()
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if got != "/xdg/micropub" {
			t.Errorf("Expected /xdg/micropub, got %q", got)
		}
	})

	t.Run("Home expansion", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("HOME", home)
		got, err := ExpandHome("~/notes")
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if got != filepath.Join(home, "notes") {
			t.Errorf("Expected expanded path, got %q", got)
		}
		if same, _ := ExpandHome("/abs/~x"); same != "/abs/~x" {
			t.Errorf("Absolute paths should be untouched, got %q", same)
		}
	})

	t.Run("Config path override", func(t *testing.T) {
		t.Setenv("MICROPUB_CONFIG", "/etc/micropub.yaml")
		got, err := DefaultConfigPath()
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if got != "/etc/micropub.yaml" {
			t.Errorf("Expected override, got %q", got)
		}
	})
}

func TestPublicApplyDefaults(t *testing.T) {
	config := &Config{}
	ApplyDefaults(config)

	if config.Markdown.Renderer != RendererClassic {
		t.Error("Public ApplyDefaults should apply defaults")
	}
}

func TestHTTPClient(t *testing.T) {
	c := HTTPConfig{Timeout: 3 * time.Second}.Client()
	if c.Timeout != 3*time.Second {
		t.Errorf("Expected 3s timeout, got %v", c.Timeout)
	}
}

func TestConstants(t *testing.T) {
	t.Run("Callout regex", func(t *testing.T) {
		m := RegexCallout.FindStringSubmatch("x := 1 // &lt;&lt;2&gt;&gt;")
		if len(m) != 2 || m[1] != "2" {
			t.Errorf("Expected callout 2, got %v", m)
		}
	})
}
