package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	if c.Processing.Workers < 0 {
		return fmt.Errorf("processing.workers must not be negative, got %d", c.Processing.Workers)
	}
	if c.Processing.CheckpointInterval < 1 {
		return fmt.Errorf("processing.checkpoint_interval must be at least 1, got %d", c.Processing.CheckpointInterval)
	}
	if c.Processing.Extractor == "" {
		return errors.New("processing.extractor must name the layer extractor binary")
	}
	if !strings.HasPrefix(c.Processing.Extension, ".") {
		return fmt.Errorf("processing.extension must start with a dot, got %q", c.Processing.Extension)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
