package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"stratum/internal/config"
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
		c.config = cfg
	})
	return c.config, c.configErr
}

// resolveDir validates that path names an existing directory and returns its
// absolute form.
func resolveDir(path, role string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s directory: %w", role, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%s directory %s does not exist", role, abs)
		}
		return "", fmt.Errorf("stat %s directory: %w", role, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s path %s is not a directory", role, abs)
	}
	return abs, nil
}

// outputPath resolves a configured path against the output root when the
// configured value is empty or relative.
func outputPath(configured, outputDir, fallbackName string) string {
	if configured == "" {
		return filepath.Join(outputDir, fallbackName)
	}
	if filepath.IsAbs(configured) {
		return configured
	}
	return filepath.Join(outputDir, configured)
}
