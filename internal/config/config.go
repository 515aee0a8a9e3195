package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Generator contains connection settings for the article generation service.
type Generator struct {
	APIKey            string `toml:"api_key"`
	BaseURL           string `toml:"base_url"`
	Model             string `toml:"model"`
	TimeoutSeconds    int    `toml:"timeout_seconds"`
	RequestsPerMinute int    `toml:"requests_per_minute"`
}

// Media contains settings for the image search and video lookup services.
type Media struct {
	ImageAPIKey       string `toml:"image_api_key"`
	ImageBaseURL      string `toml:"image_base_url"`
	VideoAPIKey       string `toml:"video_api_key"`
	VideoBaseURL      string `toml:"video_base_url"`
	MinWidth          int    `toml:"min_width"`
	MinHeight         int    `toml:"min_height"`
	TimeoutSeconds    int    `toml:"timeout_seconds"`
	CacheTTLMinutes   int    `toml:"cache_ttl_minutes"`
	RequestsPerMinute int    `toml:"requests_per_minute"`
}

// Publisher contains connection settings for the CMS.
type Publisher struct {
	BaseURL             string `toml:"base_url"`
	Username            string `toml:"username"`
	AppPassword         string `toml:"app_password"`
	Status              string `toml:"status"`
	TimeoutSeconds      int    `toml:"timeout_seconds"`
	PostIntervalSeconds int    `toml:"post_interval_seconds"`
}

// Pipeline contains per-topic processing settings.
type Pipeline struct {
	DefaultWordCount  int `toml:"default_word_count"`
	RetryAttempts     int `toml:"retry_attempts"`
	RetryBaseDelayMS  int `toml:"retry_base_delay_ms"`
	WordCountMarginPc int `toml:"word_count_margin_pct"`
}

// Batch contains batch orchestration settings.
type Batch struct {
	MaxConcurrency int `toml:"max_concurrency"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for pressline.
//
// Configuration sections by subsystem:
//   - Paths: data (cache database, run lock) and log directories
//   - Generator: LLM provider connection for article generation
//   - Media: image search and video lookup providers
//   - Publisher: CMS connection for post creation/update
//   - Pipeline: word count defaults and retry policy
//   - Batch: concurrency limit for batch runs
//   - Logging: log format and level
type Config struct {
	Paths     Paths     `toml:"paths"`
	Generator Generator `toml:"generator"`
	Media     Media     `toml:"media"`
	Publisher Publisher `toml:"publisher"`
	Pipeline  Pipeline  `toml:"pipeline"`
	Batch     Batch     `toml:"batch"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/pressline/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("pressline.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

func (c *Config) normalize() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Generator.BaseURL = strings.TrimRight(strings.TrimSpace(c.Generator.BaseURL), "/")
	c.Media.ImageBaseURL = strings.TrimRight(strings.TrimSpace(c.Media.ImageBaseURL), "/")
	c.Media.VideoBaseURL = strings.TrimRight(strings.TrimSpace(c.Media.VideoBaseURL), "/")
	c.Publisher.BaseURL = strings.TrimRight(strings.TrimSpace(c.Publisher.BaseURL), "/")
	c.Publisher.Status = strings.ToLower(strings.TrimSpace(c.Publisher.Status))
	return nil
}

// EnsureDirectories creates required directories for a batch run.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// CacheDBPath returns the location of the content cache database.
func (c *Config) CacheDBPath() string {
	return filepath.Join(c.Paths.DataDir, "content.db")
}

// LockPath returns the location of the single-writer run lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "pressline.lock")
}

func expandPath(pathValue string) (string, error) {
	trimmed := strings.TrimSpace(pathValue)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		return home, nil
	}
	if strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		return filepath.Join(home, trimmed[2:]), nil
	}
	return filepath.Abs(trimmed)
}

// ExpandPath resolves ~ and relative segments in a user-supplied path.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
