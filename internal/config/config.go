// Package config loads the YAML configuration: profiles, paths, transport and
// presentation settings.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

var configLogger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	configLogger = l
}

// CurrentVersion is the only configuration layout this build understands.
const CurrentVersion = "1"

// Config represents the complete configuration structure
type Config struct {
	Version        string                   `yaml:"version" default:"1"`
	DefaultProfile string                   `yaml:"default_profile"`
	Editor         string                   `yaml:"editor"`
	Profiles       map[string]ProfileConfig `yaml:"profiles"`
	Paths          PathsConfig              `yaml:"paths"`
	HTTP           HTTPConfig               `yaml:"http"`
	Media          MediaConfig              `yaml:"media"`
	History        HistoryConfig            `yaml:"history"`
	Markdown       MarkdownConfig           `yaml:"markdown"`
	List           ListConfig               `yaml:"list"`
	Logging        LoggingConfig            `yaml:"logging"`
}

type ProfileConfig struct {
	Domain                string `yaml:"domain"`
	MicropubEndpoint      string `yaml:"micropub_endpoint"`
	MediaEndpoint         string `yaml:"media_endpoint,omitempty"`
	TokenEndpoint         string `yaml:"token_endpoint,omitempty"`
	AuthorizationEndpoint string `yaml:"authorization_endpoint,omitempty"`
}

type PathsConfig struct {
	// DataDir holds drafts, the archive, tokens and the history database.
	// Empty means $XDG_DATA_HOME/micropub.
	DataDir string `yaml:"data_dir"`
}

type HTTPConfig struct {
	Timeout   time.Duration `yaml:"timeout" default:"30s"`
	UserAgent string        `yaml:"user_agent" default:"micropub-go/1.0"`
}

type MediaConfig struct {
	S3 S3Config `yaml:"s3"`
}

// S3Config is used by profiles whose media endpoint is s3://bucket/prefix.
type S3Config struct {
	Region          string `yaml:"region" default:"auto"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	PublicBaseURL   string `yaml:"public_base_url"`
	PathStyle       bool   `yaml:"path_style" default:"false"`
}

type HistoryConfig struct {
	Enabled     bool   `yaml:"enabled" default:"true"`
	Compression string `yaml:"compression" default:"zstd"`
}

type MarkdownConfig struct {
	Renderer    string `yaml:"renderer" default:"classic"`
	SyntaxTheme string `yaml:"syntax_theme" default:"monokai"`
}

type ListConfig struct {
	PageSize int `yaml:"page_size" default:"20"`
}

type LoggingConfig struct {
	Level string `yaml:"level" default:"warn"`
}

// LoadConfig reads path on top of the defaults. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	config := &Config{}

	// Apply default values first
	applyDefaults(config)

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		configLogger.Info().Str("path", path).Msg("Config file not found, using defaults")
		applyEnv(config)
		return config, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnv(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return config, nil
}

// applyEnv lets the environment (and a .env file) override secrets and paths.
func applyEnv(c *Config) {
	overrides := []struct {
		env    string
		target *string
	}{
		{"MICROPUB_DATA_DIR", &c.Paths.DataDir},
		{"MICROPUB_LOG_LEVEL", &c.Logging.Level},
		{"MICROPUB_PROFILE", &c.DefaultProfile},
		{"MICROPUB_S3_ACCESS_KEY_ID", &c.Media.S3.AccessKeyID},
		{"MICROPUB_S3_SECRET_ACCESS_KEY", &c.Media.S3.SecretAccessKey},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.target = v
		}
	}
}

func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return fmt.Errorf("unsupported configuration version %q (expected %q)", c.Version, CurrentVersion)
	}

	if c.DefaultProfile != "" && len(c.Profiles) > 0 {
		if _, ok := c.Profiles[c.DefaultProfile]; !ok {
			return fmt.Errorf("default_profile %q is not defined under profiles", c.DefaultProfile)
		}
	}

	for _, name := range c.ProfileNames() {
		p := c.Profiles[name]
		if err := validateEndpoint(p.MicropubEndpoint, false); err != nil {
			return fmt.Errorf("profile %s: micropub_endpoint: %w", name, err)
		}
		if p.MediaEndpoint != "" {
			if err := validateEndpoint(p.MediaEndpoint, true); err != nil {
				return fmt.Errorf("profile %s: media_endpoint: %w", name, err)
			}
		}
	}

	switch c.Markdown.Renderer {
	case RendererClassic, RendererMmark:
	default:
		return fmt.Errorf("markdown.renderer must be %q or %q, got %q", RendererClassic, RendererMmark, c.Markdown.Renderer)
	}

	switch c.History.Compression {
	case "zstd", "gzip", "none":
	default:
		return fmt.Errorf("history.compression must be zstd, gzip or none, got %q", c.History.Compression)
	}

	if c.List.PageSize < 1 {
		return fmt.Errorf("list.page_size must be positive, got %d", c.List.PageSize)
	}
	return nil
}

func validateEndpoint(raw string, allowS3 bool) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	switch {
	case u.Scheme == "http" || u.Scheme == "https":
	case allowS3 && u.Scheme == "s3":
	default:
		return fmt.Errorf("unsupported URL %q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("URL %q has no host", raw)
	}
	return nil
}

// ProfileNames returns the configured profile names, sorted.
func (c *Config) ProfileNames() []string {
	names := make([]string, 0, len(c.Profiles))
	for name := range c.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func ApplyDefaults(config any) {
	applyDefaults(config)
}

var durationType = reflect.TypeOf(time.Duration(0))

func applyDefaults(config any) {
	v := reflect.ValueOf(config)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	if v.Kind() != reflect.Struct {
		return
	}

	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if !field.IsValid() || !field.CanSet() {
			continue
		}

		// Recursively apply defaults to nested structs
		if field.Kind() == reflect.Struct {
			applyDefaults(field.Addr().Interface())
			continue
		}

		defaultValue := fieldType.Tag.Get("default")
		if defaultValue == "" {
			continue
		}

		switch field.Kind() {
		case reflect.String:
			field.SetString(defaultValue)
		case reflect.Bool:
			if val, err := strconv.ParseBool(defaultValue); err == nil {
				field.SetBool(val)
			}
		case reflect.Int:
			if val, err := strconv.ParseInt(defaultValue, 10, 64); err == nil {
				field.SetInt(val)
			}
		case reflect.Int64:
			if field.Type() == durationType {
				if val, err := time.ParseDuration(defaultValue); err == nil {
					field.SetInt(int64(val))
				}
			} else if val, err := strconv.ParseInt(defaultValue, 10, 64); err == nil {
				field.SetInt(val)
			}
		case reflect.Float64:
			if val, err := strconv.ParseFloat(defaultValue, 64); err == nil {
				field.SetFloat(val)
			}
		case reflect.Slice:
			if field.Len() == 0 && field.Type().Elem().Kind() == reflect.String {
				parts := strings.Split(defaultValue, ",")
				slice := reflect.MakeSlice(field.Type(), len(parts), len(parts))
				for j, part := range parts {
					slice.Index(j).SetString(strings.TrimSpace(part))
				}
				field.Set(slice)
			}
		default:
			configLogger.Warn().
				Str("field_name", fieldType.Name).
				Str("field_type", field.Kind().String()).
				Msg("Unsupported field type for default value")
		}
	}
}
