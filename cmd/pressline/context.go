package main

import (
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"pressline/internal/config"
	"pressline/internal/logging"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

// newLogger builds the run logger: console on stderr plus a JSON file in the
// configured log directory.
func (c *commandContext) newLogger(cfg *config.Config) (*slog.Logger, error) {
	outputs := []string{"stderr"}
	if cfg.Logging.Format == "json" {
		return logging.New(logging.Options{
			Level:       cfg.Logging.Level,
			Format:      "json",
			OutputPaths: outputs,
		})
	}
	if cfg.Paths.LogDir != "" {
		outputs = append(outputs, filepath.Join(cfg.Paths.LogDir, "pressline.log"))
	}
	return logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: outputs,
	})
}
