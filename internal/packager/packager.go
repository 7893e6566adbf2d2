package packager

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"

	"stratum/internal/decoder"
	"stratum/internal/fileutil"
	"stratum/internal/logging"
)

// LayerDirSuffix is appended to an output name's stem to form the
// per-artifact directory name.
const LayerDirSuffix = "_layers"

// Packager decodes artifacts and archives their derived outputs.
type Packager struct {
	outputRoot string
	decoder    decoder.Decoder
	logger     *slog.Logger
}

// New creates a packager writing under outputRoot.
func New(outputRoot string, dec decoder.Decoder, logger *slog.Logger) *Packager {
	return &Packager{
		outputRoot: outputRoot,
		decoder:    dec,
		logger:     logging.WithComponent(logger, "packager"),
	}
}

// Package decodes the artifact at artifactPath and produces
// <outputRoot>/<stem>.zip, where stem derives from outputName. When
// embedSource is set a copy of the artifact is placed inside the archive.
// Returns the number of derived blobs written.
func (p *Packager) Package(ctx context.Context, artifactPath, outputName string, embedSource bool) (int, error) {
	stem := strings.TrimSuffix(outputName, filepath.Ext(outputName))
	layerDir := filepath.Join(p.outputRoot, stem+LayerDirSuffix)
	archivePath := filepath.Join(p.outputRoot, stem+".zip")

	// A half-populated directory from a crashed prior attempt is scratch.
	if err := os.RemoveAll(layerDir); err != nil {
		return 0, fmt.Errorf("clear layer directory: %w", err)
	}
	if err := os.MkdirAll(layerDir, 0o755); err != nil {
		return 0, fmt.Errorf("create layer directory: %w", err)
	}

	if embedSource {
		if err := fileutil.CopyFile(artifactPath, filepath.Join(layerDir, outputName)); err != nil {
			return 0, fmt.Errorf("copy source artifact: %w", err)
		}
	}

	root, err := p.decoder.Decode(ctx, artifactPath)
	if err != nil {
		os.RemoveAll(layerDir)
		return 0, fmt.Errorf("decode artifact: %w", err)
	}

	count := p.writeTree(root, layerDir)
	p.logger.Debug("derived outputs written",
		logging.String(logging.FieldOutput, outputName),
		logging.Int("blob_count", count))

	if err := p.archive(layerDir, archivePath); err != nil {
		os.Remove(archivePath)
		return count, fmt.Errorf("archive %s: %w", filepath.Base(archivePath), err)
	}
	if err := os.RemoveAll(layerDir); err != nil {
		p.logger.Warn("failed to remove archived layer directory",
			logging.String("path", layerDir),
			logging.Error(err))
	}
	return count, nil
}

// archive zips the contents of dir (paths relative to dir) into zipPath.
func (p *Packager) archive(dir, zipPath string) error {
	out, err := os.Create(zipPath)
	if err != nil {
		return err
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	err = filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		w, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()
		_, err = io.Copy(w, in)
		return err
	})
	if err != nil {
		zw.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}
	return out.Close()
}
