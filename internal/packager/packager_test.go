package packager_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"

	"stratum/internal/decoder"
	"stratum/internal/logging"
	"stratum/internal/packager"
	"stratum/internal/testsupport"
)

// decodeFunc adapts a function to the decoder interface for tests.
type decodeFunc func(ctx context.Context, path string) (*decoder.Node, error)

func (f decodeFunc) Decode(ctx context.Context, path string) (*decoder.Node, error) {
	return f(ctx, path)
}

func staticTree(root *decoder.Node) decodeFunc {
	return func(context.Context, string) (*decoder.Node, error) {
		return root, nil
	}
}

func blob(name, image string) *decoder.Node {
	return &decoder.Node{Name: name, Visible: true, Image: []byte(image)}
}

func readArchive(t *testing.T, path string) map[string]string {
	t.Helper()
	reader, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("open archive %s: %v", path, err)
	}
	defer reader.Close()

	entries := map[string]string{}
	for _, file := range reader.File {
		rc, err := file.Open()
		if err != nil {
			t.Fatalf("open entry %s: %v", file.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read entry %s: %v", file.Name, err)
		}
		entries[file.Name] = string(data)
	}
	return entries
}

func TestPackageArchivesDecodedTree(t *testing.T) {
	root := &decoder.Node{Group: true, Visible: true, Children: []*decoder.Node{
		blob("background", "png-bg"),
		blob("composite", "png-comp"),
		{Name: "effects", Group: true, Visible: true, Children: []*decoder.Node{
			blob("glow", "png-glow"),
		}},
		{Name: "hidden", Visible: false, Image: []byte("png-hidden")},
	}}

	outputRoot := t.TempDir()
	artifact := filepath.Join(t.TempDir(), "in.psd")
	testsupport.WriteFile(t, artifact, "source bytes")

	p := packager.New(outputRoot, staticTree(root), logging.NewNop())
	count, err := p.Package(context.Background(), artifact, "design.psd", false)
	if err != nil {
		t.Fatalf("Package failed: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 blobs written, got %d", count)
	}

	entries := readArchive(t, filepath.Join(outputRoot, "design.zip"))
	if entries["background.png"] != "png-bg" {
		t.Fatalf("background missing: %v", entries)
	}
	if entries["effects/glow.png"] != "png-glow" {
		t.Fatalf("nested blob missing: %v", entries)
	}
	if _, ok := entries["hidden.png"]; ok {
		t.Fatal("hidden layer must not be archived")
	}

	// The intermediate directory is removed after archiving.
	if _, err := os.Stat(filepath.Join(outputRoot, "design_layers")); !os.IsNotExist(err) {
		t.Fatal("layer directory should be removed on success")
	}
}

func TestPackageEmbedsSourceCopy(t *testing.T) {
	root := &decoder.Node{Group: true, Visible: true, Children: []*decoder.Node{blob("l1", "png")}}

	outputRoot := t.TempDir()
	artifact := filepath.Join(t.TempDir(), "in.psd")
	testsupport.WriteFile(t, artifact, "original artifact bytes")

	p := packager.New(outputRoot, staticTree(root), logging.NewNop())
	if _, err := p.Package(context.Background(), artifact, "design-1.psd", true); err != nil {
		t.Fatalf("Package failed: %v", err)
	}

	entries := readArchive(t, filepath.Join(outputRoot, "design-1.zip"))
	if entries["design-1.psd"] != "original artifact bytes" {
		t.Fatalf("embedded source missing: %v", entries)
	}
}

func TestPackageDisambiguatesSiblingNames(t *testing.T) {
	root := &decoder.Node{Group: true, Visible: true, Children: []*decoder.Node{
		blob("layer", "first"),
		blob("layer", "second"),
		blob("layer", "third"),
	}}

	outputRoot := t.TempDir()
	artifact := filepath.Join(t.TempDir(), "in.psd")
	testsupport.WriteFile(t, artifact, "x")

	p := packager.New(outputRoot, staticTree(root), logging.NewNop())
	count, err := p.Package(context.Background(), artifact, "dup.psd", false)
	if err != nil {
		t.Fatalf("Package failed: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 blobs, got %d", count)
	}

	entries := readArchive(t, filepath.Join(outputRoot, "dup.zip"))
	if entries["layer.png"] != "first" || entries["layer-1.png"] != "second" || entries["layer-2.png"] != "third" {
		t.Fatalf("sibling disambiguation wrong: %v", entries)
	}
}

func TestPackageSanitizesBlobNames(t *testing.T) {
	root := &decoder.Node{Group: true, Visible: true, Children: []*decoder.Node{
		blob(`shade/one:two`, "png"),
		blob("", "anon"),
	}}

	outputRoot := t.TempDir()
	artifact := filepath.Join(t.TempDir(), "in.psd")
	testsupport.WriteFile(t, artifact, "x")

	p := packager.New(outputRoot, staticTree(root), logging.NewNop())
	if _, err := p.Package(context.Background(), artifact, "weird.psd", false); err != nil {
		t.Fatalf("Package failed: %v", err)
	}

	entries := readArchive(t, filepath.Join(outputRoot, "weird.zip"))
	if entries["shade_one_two.png"] != "png" {
		t.Fatalf("reserved characters not replaced: %v", entries)
	}
	if entries["layer.png"] != "anon" {
		t.Fatalf("empty name not defaulted: %v", entries)
	}
}

func TestPackageClearsStaleLayerDirectory(t *testing.T) {
	root := &decoder.Node{Group: true, Visible: true, Children: []*decoder.Node{blob("fresh", "png")}}

	outputRoot := t.TempDir()
	stale := filepath.Join(outputRoot, "crash_layers", "leftover.png")
	testsupport.WriteFile(t, stale, "from an interrupted run")

	artifact := filepath.Join(t.TempDir(), "in.psd")
	testsupport.WriteFile(t, artifact, "x")

	p := packager.New(outputRoot, staticTree(root), logging.NewNop())
	if _, err := p.Package(context.Background(), artifact, "crash.psd", false); err != nil {
		t.Fatalf("Package failed: %v", err)
	}

	entries := readArchive(t, filepath.Join(outputRoot, "crash.zip"))
	if _, ok := entries["leftover.png"]; ok {
		t.Fatal("stale directory contents leaked into the archive")
	}
	if entries["fresh.png"] != "png" {
		t.Fatalf("fresh blob missing: %v", entries)
	}
}

func TestPackageDecodeFailure(t *testing.T) {
	failing := decodeFunc(func(context.Context, string) (*decoder.Node, error) {
		return nil, errors.New("corrupt artifact")
	})

	outputRoot := t.TempDir()
	artifact := filepath.Join(t.TempDir(), "in.psd")
	testsupport.WriteFile(t, artifact, "x")

	p := packager.New(outputRoot, failing, logging.NewNop())
	if _, err := p.Package(context.Background(), artifact, "bad.psd", false); err == nil {
		t.Fatal("expected decode error to propagate")
	}
	if _, err := os.Stat(filepath.Join(outputRoot, "bad.zip")); !os.IsNotExist(err) {
		t.Fatal("no archive should exist after decode failure")
	}
	if _, err := os.Stat(filepath.Join(outputRoot, "bad_layers")); !os.IsNotExist(err) {
		t.Fatal("layer directory should be cleaned up after decode failure")
	}
}

func TestPackageCompressionFailureKeepsDirectory(t *testing.T) {
	root := &decoder.Node{Group: true, Visible: true, Children: []*decoder.Node{blob("l1", "png")}}

	outputRoot := t.TempDir()
	// A directory squatting on the archive path makes os.Create fail.
	if err := os.MkdirAll(filepath.Join(outputRoot, "stuck.zip"), 0o755); err != nil {
		t.Fatalf("mkdir squatter: %v", err)
	}

	artifact := filepath.Join(t.TempDir(), "in.psd")
	testsupport.WriteFile(t, artifact, "x")

	p := packager.New(outputRoot, staticTree(root), logging.NewNop())
	if _, err := p.Package(context.Background(), artifact, "stuck.psd", false); err == nil {
		t.Fatal("expected compression failure")
	}

	// The uncompressed directory stays for inspection.
	if _, err := os.Stat(filepath.Join(outputRoot, "stuck_layers", "l1.png")); err != nil {
		t.Fatalf("layer directory should survive compression failure: %v", err)
	}
}
