package decoder

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"stratum/internal/logging"
)

// Tool decodes artifacts by invoking an external extractor binary as
// `<binary> <artifact> <scratch-dir>`. The extractor dumps each visible
// layer as a PNG into the scratch directory, using subdirectories for
// groups; Tool reads the dump back into a Node tree.
type Tool struct {
	binary string
	logger *slog.Logger
}

// NewTool wraps the extractor binary. The binary is looked up on PATH at
// decode time so a missing tool surfaces as a per-artifact failure, not a
// startup error.
func NewTool(binary string, logger *slog.Logger) *Tool {
	return &Tool{
		binary: binary,
		logger: logging.WithComponent(logger, "decoder"),
	}
}

// Decode runs the extractor and collects its output tree.
func (t *Tool) Decode(ctx context.Context, path string) (*Node, error) {
	scratch, err := os.MkdirTemp("", "stratum-decode-")
	if err != nil {
		return nil, fmt.Errorf("create scratch directory: %w", err)
	}
	defer os.RemoveAll(scratch)

	cmd := exec.CommandContext(ctx, t.binary, path, scratch)
	var stderr bytes.Buffer
	cmd.Stdout = &stderr
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("extractor %s failed: %w%s", t.binary, err, stderrTail(stderr.String()))
	}

	root, err := readTree(scratch)
	if err != nil {
		return nil, fmt.Errorf("collect extractor output: %w", err)
	}
	t.logger.Debug("decoded artifact",
		logging.String(logging.FieldArtifact, filepath.Base(path)),
		logging.Int("top_level_nodes", len(root.Children)))
	return root, nil
}

// readTree mirrors a dump directory into a Node tree. Directories become
// groups; files become visible blobs named by their stem.
func readTree(dir string) (*Node, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	root := &Node{Group: true, Visible: true}
	for _, entry := range entries {
		childPath := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			group, err := readTree(childPath)
			if err != nil {
				return nil, err
			}
			group.Name = entry.Name()
			root.Children = append(root.Children, group)
			continue
		}
		image, err := os.ReadFile(childPath)
		if err != nil {
			return nil, err
		}
		name := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		root.Children = append(root.Children, &Node{
			Name:    name,
			Visible: true,
			Image:   image,
		})
	}
	return root, nil
}

func stderrTail(output string) string {
	trimmed := strings.TrimSpace(output)
	if trimmed == "" {
		return ""
	}
	lines := strings.Split(trimmed, "\n")
	if len(lines) > 10 {
		lines = lines[len(lines)-10:]
	}
	return ": " + strings.Join(lines, "; ")
}
