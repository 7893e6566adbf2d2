package discovery

import (
	"bufio"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"stratum/internal/fileutil"
	"stratum/internal/logging"
)

// CacheFileName is the scan snapshot stored under the output root.
const CacheFileName = "allfiles.txt"

// Cache lists input artifacts, preferring a persisted snapshot of the last
// scan over a fresh filesystem walk.
type Cache struct {
	inputDir  string
	cachePath string
	extension string
	logger    *slog.Logger
}

// NewCache creates a discovery cache for inputDir. The snapshot lives under
// outputDir. extension is matched case-insensitively against file names.
func NewCache(inputDir, outputDir, extension string, logger *slog.Logger) *Cache {
	return &Cache{
		inputDir:  inputDir,
		cachePath: filepath.Join(outputDir, CacheFileName),
		extension: strings.ToLower(extension),
		logger:    logging.WithComponent(logger, "discovery"),
	}
}

// CachePath returns the location of the snapshot file.
func (c *Cache) CachePath() string {
	return c.cachePath
}

// List returns the artifact paths to process. When a snapshot exists and
// refresh is false its entries are returned verbatim, without checking that
// they still exist on disk. Otherwise the tree is walked and the snapshot
// rewritten.
func (c *Cache) List(refresh bool) ([]string, error) {
	if !refresh {
		if paths, err := c.readSnapshot(); err == nil {
			c.logger.Info("using cached artifact list",
				logging.Int("artifact_count", len(paths)),
				logging.String("path", c.cachePath))
			return paths, nil
		} else if !os.IsNotExist(err) {
			c.logger.Warn("failed to read artifact list cache, rescanning",
				logging.String("path", c.cachePath),
				logging.Error(err))
		}
	}

	paths, err := c.walk()
	if err != nil {
		return nil, err
	}

	if err := c.writeSnapshot(paths); err != nil {
		// Non-fatal: the scan result is still usable for this run.
		c.logger.Warn("failed to write artifact list cache",
			logging.String("path", c.cachePath),
			logging.Error(err))
	}

	c.logger.Info("scanned input tree",
		logging.Int("artifact_count", len(paths)),
		logging.String("input_dir", c.inputDir))
	return paths, nil
}

func (c *Cache) walk() ([]string, error) {
	var paths []string
	err := filepath.WalkDir(c.inputDir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			// A missing or unreadable input root is fatal; one bad
			// subtree only degrades the scan.
			if path == c.inputDir {
				return err
			}
			c.logger.Warn("skipping unreadable path",
				logging.String("path", path),
				logging.Error(err))
			if entry != nil && entry.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if entry.IsDir() {
			return nil
		}
		if !strings.HasSuffix(strings.ToLower(entry.Name()), c.extension) {
			return nil
		}
		absolute, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("resolve %q: %w", path, err)
		}
		paths = append(paths, absolute)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk input tree: %w", err)
	}
	return paths, nil
}

func (c *Cache) readSnapshot() ([]string, error) {
	file, err := os.Open(c.cachePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var paths []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		paths = append(paths, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read artifact list: %w", err)
	}
	return paths, nil
}

func (c *Cache) writeSnapshot(paths []string) error {
	var b strings.Builder
	for _, path := range paths {
		b.WriteString(path)
		b.WriteByte('\n')
	}
	return fileutil.WriteFileAtomic(c.cachePath, []byte(b.String()))
}
