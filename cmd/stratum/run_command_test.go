package main

import (
	"os"
	"path/filepath"
	"testing"

	"stratum/internal/testsupport"
)

const stubExtractorScript = `#!/bin/sh
printf 'png-bytes' > "$2/background.png"
`

func TestRunCommandProcessesArtifacts(t *testing.T) {
	isolateHome(t)
	testsupport.StubBinary(t, "psd-extract", stubExtractorScript)

	inputDir := t.TempDir()
	outputDir := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(inputDir, "poster.psd"), "artifact-one")
	testsupport.WriteFile(t, filepath.Join(inputDir, "nested", "banner.psd"), "artifact-two")

	out, err := runCLI(t, "run", inputDir, outputDir)
	if err != nil {
		t.Fatalf("run command failed: %v\n%s", err, out)
	}
	requireContains(t, out, "Succeeded")

	for _, want := range []string{"poster.zip", "banner.zip", "stratum_state.json", "allfiles.txt"} {
		if _, err := os.Stat(filepath.Join(outputDir, want)); err != nil {
			t.Fatalf("expected %s in output directory: %v", want, err)
		}
	}
}

func TestRunCommandIsResumable(t *testing.T) {
	isolateHome(t)
	testsupport.StubBinary(t, "psd-extract", stubExtractorScript)

	inputDir := t.TempDir()
	outputDir := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(inputDir, "a.psd"), "alpha")

	if out, err := runCLI(t, "run", inputDir, outputDir); err != nil {
		t.Fatalf("first run: %v\n%s", err, out)
	}

	archive := filepath.Join(outputDir, "a.zip")
	before, err := os.Stat(archive)
	if err != nil {
		t.Fatalf("archive missing after first run: %v", err)
	}

	if out, err := runCLI(t, "run", inputDir, outputDir); err != nil {
		t.Fatalf("second run: %v\n%s", err, out)
	}

	after, err := os.Stat(archive)
	if err != nil {
		t.Fatalf("archive missing after second run: %v", err)
	}
	if !after.ModTime().Equal(before.ModTime()) {
		t.Fatal("second run should have skipped the already-processed artifact")
	}
}

func TestRunCommandSingleWorkerKeepsSourceCopy(t *testing.T) {
	isolateHome(t)
	testsupport.StubBinary(t, "psd-extract", stubExtractorScript)

	inputDir := t.TempDir()
	outputDir := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(inputDir, "a.psd"), "alpha")

	if out, err := runCLI(t, "run", "--workers", "1", inputDir, outputDir); err != nil {
		t.Fatalf("run command failed: %v\n%s", err, out)
	}
	if _, err := os.Stat(filepath.Join(outputDir, "a.psd")); err != nil {
		t.Fatalf("expected source copy in output directory: %v", err)
	}
}

func TestRunCommandRejectsMissingInputDir(t *testing.T) {
	isolateHome(t)

	_, err := runCLI(t, "run", filepath.Join(t.TempDir(), "absent"), t.TempDir())
	if err == nil {
		t.Fatal("expected an error for a missing input directory")
	}
}

func TestRunCommandResetDiscardsState(t *testing.T) {
	isolateHome(t)
	testsupport.StubBinary(t, "psd-extract", stubExtractorScript)

	inputDir := t.TempDir()
	outputDir := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(inputDir, "a.psd"), "alpha")

	if out, err := runCLI(t, "run", inputDir, outputDir); err != nil {
		t.Fatalf("first run: %v\n%s", err, out)
	}

	if out, err := runCLI(t, "run", "--reset", inputDir, outputDir); err != nil {
		t.Fatalf("reset run: %v\n%s", err, out)
	}

	// With the state discarded the artifact is reprocessed, and the archive
	// from the first run still occupies the bare name.
	if _, err := os.Stat(filepath.Join(outputDir, "a-1.zip")); err != nil {
		t.Fatalf("reset run should have reprocessed under a fresh name: %v", err)
	}
}

func TestHistoryCommandListsRuns(t *testing.T) {
	isolateHome(t)
	testsupport.StubBinary(t, "psd-extract", stubExtractorScript)

	inputDir := t.TempDir()
	outputDir := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(inputDir, "a.psd"), "alpha")

	if out, err := runCLI(t, "run", inputDir, outputDir); err != nil {
		t.Fatalf("run command failed: %v\n%s", err, out)
	}

	out, err := runCLI(t, "history", outputDir)
	if err != nil {
		t.Fatalf("history command failed: %v\n%s", err, out)
	}
	requireContains(t, out, filepath.Base(inputDir))
}

func TestHistoryCommandEmptyJournal(t *testing.T) {
	isolateHome(t)

	out, err := runCLI(t, "history", t.TempDir())
	if err != nil {
		t.Fatalf("history command failed: %v\n%s", err, out)
	}
	requireContains(t, out, "No runs recorded yet")
}
