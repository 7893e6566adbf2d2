package packager

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"stratum/internal/decoder"
	"stratum/internal/logging"
)

// frame is one unit of the explicit traversal stack: a group node plus the
// directory it maps to. An explicit stack keeps deeply nested groups from
// exhausting goroutine stack space.
type frame struct {
	node *decoder.Node
	dir  string
}

// writeTree mirrors the decoder's tree under dir and returns the number of
// blobs written. Hidden nodes and blobs without image bytes are skipped;
// individual write failures are logged and skipped so one bad layer never
// sinks the artifact.
func (p *Packager) writeTree(root *decoder.Node, dir string) int {
	count := 0
	stack := []frame{{node: root, dir: dir}}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		used := make(map[string]struct{}, len(top.node.Children))
		for _, child := range top.node.Children {
			if !child.Visible {
				continue
			}
			base := sanitizeSegment(child.Name)

			if child.Group {
				name := uniqueName(used, base, "")
				childDir := filepath.Join(top.dir, name)
				if err := os.MkdirAll(childDir, 0o755); err != nil {
					p.logger.Warn("failed to create group directory",
						logging.String("name", child.Name),
						logging.Error(err))
					continue
				}
				stack = append(stack, frame{node: child, dir: childDir})
				continue
			}

			if len(child.Image) == 0 {
				continue
			}
			name := uniqueName(used, base, ".png")
			if err := os.WriteFile(filepath.Join(top.dir, name), child.Image, 0o644); err != nil {
				p.logger.Warn("failed to write derived output",
					logging.String("name", child.Name),
					logging.Error(err))
				continue
			}
			count++
		}
	}
	return count
}

// reservedSegmentChars are replaced because they are illegal or hazardous in
// a path segment on at least one supported platform.
const reservedSegmentChars = `/\:*?"<>|`

func sanitizeSegment(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if r < 0x20 || strings.ContainsRune(reservedSegmentChars, r) {
			b.WriteByte('_')
			continue
		}
		b.WriteRune(r)
	}
	cleaned := strings.TrimSpace(b.String())
	if cleaned == "" || cleaned == "." || cleaned == ".." {
		return "layer"
	}
	return cleaned
}

// uniqueName disambiguates duplicate sibling names with numeric suffixes,
// scoped to one directory and never persisted.
func uniqueName(used map[string]struct{}, base, ext string) string {
	name := base + ext
	for i := 1; ; i++ {
		if _, taken := used[name]; !taken {
			used[name] = struct{}{}
			return name
		}
		name = fmt.Sprintf("%s-%d%s", base, i, ext)
	}
}
