package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	AppName        = "micropub"
	ConfigFileName = "config.yaml"

	DraftsDirName   = "drafts"
	ArchiveDirName  = "archive"
	TokensDirName   = "tokens"
	HistoryFileName = "history.db"
)

// DefaultConfigPath is $MICROPUB_CONFIG, else config.yaml in the user config directory.
func DefaultConfigPath() (string, error) {
	if p := os.Getenv("MICROPUB_CONFIG"); p != "" {
		return ExpandHome(p)
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine config directory: %w", err)
	}
	return filepath.Join(dir, AppName, ConfigFileName), nil
}

// DataDir returns paths.data_dir, else $XDG_DATA_HOME/micropub, else ~/.local/share/micropub.
func (c *Config) DataDir() (string, error) {
	if c.Paths.DataDir != "" {
		return ExpandHome(c.Paths.DataDir)
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine data directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", AppName), nil
}

func (c *Config) dataPath(name string) (string, error) {
	dir, err := c.DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

func (c *Config) DraftsDir() (string, error)     { return c.dataPath(DraftsDirName) }
func (c *Config) ArchiveDir() (string, error)    { return c.dataPath(ArchiveDirName) }
func (c *Config) TokensDir() (string, error)     { return c.dataPath(TokensDirName) }
func (c *Config) HistoryDBPath() (string, error) { return c.dataPath(HistoryFileName) }

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, strings.TrimPrefix(p[1:], "/")), nil
}
