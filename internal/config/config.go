// Package config handles loading and managing mailindex configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/robfig/cron/v3"
	"github.com/wesm/mailindex/internal/fileutil"
)

// Config represents the mailindex configuration.
type Config struct {
	Data     DataConfig     `toml:"data"`
	Corpus   CorpusConfig   `toml:"corpus"`
	Index    IndexConfig    `toml:"index"`
	Extract  ExtractConfig  `toml:"extract"`
	Schedule ScheduleConfig `toml:"schedule"`

	// Computed paths (not from config file)
	HomeDir    string `toml:"-"`
	configPath string
}

// DataConfig holds data storage configuration.
type DataConfig struct {
	DataDir     string `toml:"data_dir"`
	DatabaseURL string `toml:"database_url"`
}

// CorpusConfig locates the mail tree to index.
type CorpusConfig struct {
	Root string `toml:"root"` // Directory of numbered message files
}

// IndexConfig tunes the indexing pipeline.
type IndexConfig struct {
	Workers        int    `toml:"workers"`         // 0 means one per CPU
	FallbackDomain string `toml:"fallback_domain"` // Domain of synthesized identifiers
	SkipMissingID  bool   `toml:"skip_missing_id"` // Skip messages without a Message-ID
	MaxMessageMB   int    `toml:"max_message_mb"`  // Larger files are not parsed
}

// ExtractConfig selects how HTML parts become text.
type ExtractConfig struct {
	Command        []string `toml:"command"`         // External renderer; empty uses the built-in stripper
	TimeoutSeconds int      `toml:"timeout_seconds"` // Per-part bound on extraction
}

// ScheduleConfig defines the re-index schedule used by "mailindex watch".
type ScheduleConfig struct {
	Cron    string `toml:"cron"`    // Cron expression (e.g., "*/15 * * * *")
	Enabled bool   `toml:"enabled"` // Whether scheduled indexing is active
}

// DefaultHome returns the default mailindex home directory.
// Respects MAILINDEX_HOME environment variable.
func DefaultHome() string {
	if h := os.Getenv("MAILINDEX_HOME"); h != "" {
		return expandPath(h)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mailindex"
	}
	return filepath.Join(home, ".mailindex")
}

// NewDefaultConfig returns a configuration with default values rooted at
// DefaultHome.
func NewDefaultConfig() *Config {
	return newConfig(DefaultHome())
}

func newConfig(homeDir string) *Config {
	return &Config{
		HomeDir: homeDir,
		Data: DataConfig{
			DataDir: homeDir,
		},
		Corpus: CorpusConfig{
			Root: expandPath("~/Mail"),
		},
		Index: IndexConfig{
			FallbackDomain: "mailindex.invalid",
			MaxMessageMB:   64,
		},
		Extract: ExtractConfig{
			TimeoutSeconds: 30,
		},
	}
}

// Load reads the configuration.
//
// With an explicit path the file must exist; the home directory becomes the
// file's directory and relative paths in the file resolve against it.
// Otherwise config.toml is read from homeDir (or DefaultHome when homeDir is
// empty) and a missing file yields the defaults.
func Load(path, homeDir string) (*Config, error) {
	explicit := path != ""
	if homeDir != "" {
		homeDir = expandPath(homeDir)
	} else {
		homeDir = DefaultHome()
	}

	if explicit {
		path = expandPath(path)
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("config file not found: %s", path)
			}
			return nil, fmt.Errorf("stat config: %w", err)
		}
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		homeDir = filepath.Dir(path)
	} else {
		path = filepath.Join(homeDir, "config.toml")
	}

	cfg := newConfig(homeDir)
	cfg.configPath = path

	// Config file is optional when not named explicitly
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, decodeError(err)
	}

	// Expand ~ in paths; relative paths are relative to the config file
	cfg.Data.DataDir = resolvePath(expandPath(cfg.Data.DataDir), homeDir)
	cfg.Corpus.Root = resolvePath(expandPath(cfg.Corpus.Root), homeDir)
	if cfg.Data.DataDir == "" {
		cfg.Data.DataDir = homeDir
	}

	return cfg, nil
}

// decodeError adds a hint for the most common TOML mistake: Windows paths in
// double-quoted strings, where backslashes start escape sequences.
func decodeError(err error) error {
	msg := err.Error()
	if strings.Contains(msg, "invalid escape") || strings.Contains(msg, "hexadecimal digits") {
		return fmt.Errorf("decode config: %w\n  hint: use forward slashes (C:/Users/...) or single quotes ('C:\\Users\\...') for Windows paths", err)
	}
	return fmt.Errorf("decode config: %w", err)
}

// Validate checks values that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	var errs []error
	if c.Index.Workers < 0 {
		errs = append(errs, fmt.Errorf("index.workers must be >= 0, got %d", c.Index.Workers))
	}
	if c.Index.MaxMessageMB <= 0 {
		errs = append(errs, fmt.Errorf("index.max_message_mb must be > 0, got %d", c.Index.MaxMessageMB))
	}
	if c.Extract.TimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("extract.timeout_seconds must be > 0, got %d", c.Extract.TimeoutSeconds))
	}
	if c.Schedule.Cron != "" {
		if _, err := cron.ParseStandard(c.Schedule.Cron); err != nil {
			errs = append(errs, fmt.Errorf("schedule.cron %q: %w", c.Schedule.Cron, err))
		}
	}
	if c.Schedule.Enabled && c.Schedule.Cron == "" {
		errs = append(errs, errors.New("schedule.enabled is set but schedule.cron is empty"))
	}
	return errors.Join(errs...)
}

// EnsureHomeDir creates the home and data directories if they don't exist.
// Both are owner-only since the database stores full message bodies.
func (c *Config) EnsureHomeDir() error {
	if err := fileutil.MkdirPrivate(c.HomeDir); err != nil {
		return err
	}
	if c.Data.DataDir != "" && c.Data.DataDir != c.HomeDir {
		return fileutil.MkdirPrivate(c.Data.DataDir)
	}
	return nil
}

// ConfigFilePath returns the path the configuration was (or would be) read from.
func (c *Config) ConfigFilePath() string {
	if c.configPath != "" {
		return c.configPath
	}
	return filepath.Join(c.HomeDir, "config.toml")
}

// DatabaseDSN returns the database location: database_url when set,
// otherwise mailindex.db in the data directory.
func (c *Config) DatabaseDSN() string {
	if c.Data.DatabaseURL != "" {
		return c.Data.DatabaseURL
	}
	return filepath.Join(c.Data.DataDir, "mailindex.db")
}

// MaxMessageBytes returns the per-file size cap in bytes.
func (c *Config) MaxMessageBytes() int64 {
	return int64(c.Index.MaxMessageMB) << 20
}

// ExtractTimeout returns the per-part extraction bound.
func (c *Config) ExtractTimeout() time.Duration {
	return time.Duration(c.Extract.TimeoutSeconds) * time.Second
}

// resolvePath makes a relative path absolute against base.
func resolvePath(path, base string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

// expandPath expands a leading ~ or ~/ to the user's home directory. On
// Windows, matching surrounding quotes left by CMD are stripped first.
func expandPath(path string) string {
	if runtime.GOOS == "windows" && len(path) >= 2 {
		if (path[0] == '\'' && path[len(path)-1] == '\'') || (path[0] == '"' && path[len(path)-1] == '"') {
			path = path[1 : len(path)-1]
		}
	}
	if path == "" {
		return path
	}
	if path != "~" && !strings.HasPrefix(path, "~/") && !strings.HasPrefix(path, `~\`) {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
