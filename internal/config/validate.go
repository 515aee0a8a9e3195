package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateGenerator(); err != nil {
		return err
	}
	if err := c.validateMedia(); err != nil {
		return err
	}
	if err := c.validatePublisher(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateBatch(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateGenerator() error {
	if strings.TrimSpace(c.Generator.APIKey) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/pressline/config.toml"
		}
		return fmt.Errorf("generator.api_key is required. Edit %s (create with 'pressline config init')", defaultPath)
	}
	if c.Generator.BaseURL == "" {
		return errors.New("generator.base_url must be set")
	}
	if c.Generator.Model == "" {
		return errors.New("generator.model must be set")
	}
	if c.Generator.TimeoutSeconds <= 0 {
		return errors.New("generator.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateMedia() error {
	if c.Media.MinWidth < 0 || c.Media.MinHeight < 0 {
		return errors.New("media.min_width and media.min_height must not be negative")
	}
	if c.Media.TimeoutSeconds <= 0 {
		return errors.New("media.timeout_seconds must be positive")
	}
	if c.Media.CacheTTLMinutes < 0 {
		return errors.New("media.cache_ttl_minutes must not be negative")
	}
	return nil
}

func (c *Config) validatePublisher() error {
	if strings.TrimSpace(c.Publisher.BaseURL) == "" {
		return errors.New("publisher.base_url must be set")
	}
	if strings.TrimSpace(c.Publisher.Username) == "" {
		return errors.New("publisher.username must be set")
	}
	if strings.TrimSpace(c.Publisher.AppPassword) == "" {
		return errors.New("publisher.app_password must be set")
	}
	switch c.Publisher.Status {
	case "publish", "draft", "pending", "private":
	default:
		return fmt.Errorf("publisher.status: unsupported value %q", c.Publisher.Status)
	}
	if c.Publisher.TimeoutSeconds <= 0 {
		return errors.New("publisher.timeout_seconds must be positive")
	}
	if c.Publisher.PostIntervalSeconds < 0 {
		return errors.New("publisher.post_interval_seconds must not be negative")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.DefaultWordCount <= 0 {
		return errors.New("pipeline.default_word_count must be positive")
	}
	if c.Pipeline.RetryAttempts < 1 {
		return errors.New("pipeline.retry_attempts must be at least 1")
	}
	if c.Pipeline.RetryBaseDelayMS < 0 {
		return errors.New("pipeline.retry_base_delay_ms must not be negative")
	}
	if c.Pipeline.WordCountMarginPc < 0 || c.Pipeline.WordCountMarginPc > 100 {
		return errors.New("pipeline.word_count_margin_pct must be between 0 and 100")
	}
	return nil
}

func (c *Config) validateBatch() error {
	if c.Batch.MaxConcurrency < 1 {
		return errors.New("batch.max_concurrency must be at least 1")
	}
	return nil
}
