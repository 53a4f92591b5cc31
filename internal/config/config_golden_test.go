package config

import (
	"os"
	"testing"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// TestConfigDefaultsGoldenFile tests that our defaults match the golden file
func TestConfigDefaultsGoldenFile(t *testing.T) {
	logger := zerolog.New(os.Stdout).Level(zerolog.ErrorLevel)
	SetLogger(logger)

	goldenData, err := os.ReadFile("testdata/defaults.yaml")
	if err != nil {
		t.Fatalf("Failed to read golden defaults file: %v", err)
	}

	var goldenConfig Config
	if err := yaml.Unmarshal(goldenData, &goldenConfig); err != nil {
		t.Fatalf("Failed to parse golden config: %v", err)
	}

	testConfig := &Config{}
	ApplyDefaults(testConfig)

	if testConfig.Version != goldenConfig.Version {
		t.Errorf("Version mismatch: got %q, want %q", testConfig.Version, goldenConfig.Version)
	}
	if testConfig.HTTP != goldenConfig.HTTP {
		t.Errorf("HTTP mismatch: got %+v, want %+v", testConfig.HTTP, goldenConfig.HTTP)
	}
	if testConfig.Media != goldenConfig.Media {
		t.Errorf("Media mismatch: got %+v, want %+v", testConfig.Media, goldenConfig.Media)
	}
	if testConfig.History != goldenConfig.History {
		t.Errorf("History mismatch: got %+v, want %+v", testConfig.History, goldenConfig.History)
	}
	if testConfig.Markdown != goldenConfig.Markdown {
		t.Errorf("Markdown mismatch: got %+v, want %+v", testConfig.Markdown, goldenConfig.Markdown)
	}
	if testConfig.List.PageSize != goldenConfig.List.PageSize {
		t.Errorf("List.PageSize mismatch: got %d, want %d", testConfig.List.PageSize, goldenConfig.List.PageSize)
	}
	if testConfig.Logging.Level != goldenConfig.Logging.Level {
		t.Errorf("Logging.Level mismatch: got %q, want %q", testConfig.Logging.Level, goldenConfig.Logging.Level)
	}
}

// TestDefaultsValidate guards against a default that the validator rejects.
func TestDefaultsValidate(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}
