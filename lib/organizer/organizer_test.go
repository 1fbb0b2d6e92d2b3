// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package organizer

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"

	"github.com/bureau-foundation/buildcache/lib/pathremap"
	"github.com/bureau-foundation/buildcache/lib/testutil"
)

// buildArchive packs files (relative path -> content) into
// {dir}/{fileKey}.zip and returns the archive path.
func buildArchive(t *testing.T, dir, fileKey string, files map[string]string) string {
	t.Helper()
	source := t.TempDir()
	var entries []string
	for name, content := range files {
		testutil.WriteFile(t, filepath.Join(source, name), content)
		entries = append(entries, name)
	}
	archive := filepath.Join(dir, fileKey+ArchiveExtension)
	if err := PackArchive(source, entries, archive, CompressionZstd); err != nil {
		t.Fatalf("PackArchive: %v", err)
	}
	return archive
}

type countingProcessor struct {
	calls int
}

func (c *countingProcessor) Process(string) error {
	c.calls++
	return nil
}

func newTestOrganizer(t *testing.T, processors ...Processor) *ZipOrganizer {
	t.Helper()
	return NewZipOrganizer(filepath.Join(t.TempDir(), "buildcache"), slog.New(slog.DiscardHandler), processors...)
}

func TestPrepareAndActivate(t *testing.T) {
	counter := &countingProcessor{}
	organizer := newTestOrganizer(t, counter)

	location, err := organizer.PrepareLocation("key1")
	if err != nil {
		t.Fatalf("PrepareLocation: %v", err)
	}
	prepared, ok := location.(PreparedForArtifact)
	if !ok {
		t.Fatalf("PrepareLocation = %T, want PreparedForArtifact", location)
	}
	if filepath.Base(prepared.Archive) != "key1.zip" {
		t.Errorf("archive path = %s", prepared.Archive)
	}

	archive := buildArchive(t, organizer.Root(), "key1", map[string]string{
		"libApp.a":   "library",
		"key1.json":  "{}",
		"bin/helper": "helper",
	})
	dir, err := organizer.Prepare(archive)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if content := testutil.ReadFile(t, filepath.Join(dir, "bin", "helper")); content != "helper" {
		t.Errorf("extracted content = %q", content)
	}
	if counter.calls != 1 {
		t.Errorf("processor calls = %d, want 1", counter.calls)
	}

	location, err = organizer.PrepareLocation("key1")
	if err != nil {
		t.Fatalf("PrepareLocation: %v", err)
	}
	if exists, ok := location.(ArtifactExists); !ok || exists.Dir != dir {
		t.Fatalf("PrepareLocation after Prepare = %#v", location)
	}

	if _, err := organizer.ActiveLocation(); !errors.Is(err, ErrNoActiveArtifact) {
		t.Errorf("ActiveLocation before Activate: %v", err)
	}
	if err := organizer.Activate(dir); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	active, err := organizer.ActiveLocation()
	if err != nil || active != dir {
		t.Errorf("ActiveLocation = %q, %v; want %q", active, err, dir)
	}
	fileKey, err := organizer.ActiveFileKey()
	if err != nil || fileKey != "key1" {
		t.Errorf("ActiveFileKey = %q, %v", fileKey, err)
	}
}

func TestPrepareReusesAndReprocesses(t *testing.T) {
	counter := &countingProcessor{}
	organizer := newTestOrganizer(t, counter)
	archive := buildArchive(t, organizer.Root(), "key1", map[string]string{"product.o": "v1"})

	dir, err := organizer.Prepare(archive)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	marker := filepath.Join(dir, "product.o")
	before, err := os.Stat(marker)
	if err != nil {
		t.Fatal(err)
	}

	again, err := organizer.Prepare(archive)
	if err != nil {
		t.Fatalf("second Prepare: %v", err)
	}
	if again != dir {
		t.Errorf("second Prepare returned %s, want %s", again, dir)
	}
	after, err := os.Stat(marker)
	if err != nil {
		t.Fatal(err)
	}
	if !os.SameFile(before, after) {
		t.Error("second Prepare re-extracted the artifact")
	}
	if counter.calls != 2 {
		t.Errorf("processor calls = %d, want 2", counter.calls)
	}
}

func TestPrepareReplacesIncompleteDirectory(t *testing.T) {
	organizer := newTestOrganizer(t)
	archive := buildArchive(t, organizer.Root(), "key1", map[string]string{"product.o": "good"})

	corrupted := filepath.Join(organizer.Root(), "key1")
	testutil.WriteFile(t, filepath.Join(corrupted, "product.o"), "truncat")

	dir, err := organizer.Prepare(archive)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if content := testutil.ReadFile(t, filepath.Join(dir, "product.o")); content != "good" {
		t.Errorf("content = %q, want re-extracted %q", content, "good")
	}
}

func TestActivateSwapsLink(t *testing.T) {
	organizer := newTestOrganizer(t)
	first, err := organizer.Prepare(buildArchive(t, organizer.Root(), "key1", map[string]string{"a": "1"}))
	if err != nil {
		t.Fatal(err)
	}
	second, err := organizer.Prepare(buildArchive(t, organizer.Root(), "key2", map[string]string{"a": "2"}))
	if err != nil {
		t.Fatal(err)
	}
	if err := organizer.Activate(first); err != nil {
		t.Fatal(err)
	}
	if err := organizer.Activate(second); err != nil {
		t.Fatal(err)
	}
	if key, _ := organizer.ActiveFileKey(); key != "key2" {
		t.Errorf("active key = %q, want key2", key)
	}
	entries, err := filepath.Glob(filepath.Join(organizer.Root(), "active.tmp-*"))
	if err != nil || len(entries) != 0 {
		t.Errorf("leftover temporary links: %v", entries)
	}
	if err := organizer.Activate(filepath.Join(t.TempDir(), "key3")); err == nil {
		t.Error("Activate accepted a directory outside the cache root")
	}
}

func TestExtractRejectsEscapingEntries(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "evil.zip")
	var buffer bytes.Buffer
	writer := zip.NewWriter(&buffer)
	entry, err := writer.Create("../escape.txt")
	if err != nil {
		t.Fatal(err)
	}
	entry.Write([]byte("x"))
	if err := writer.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(archive, buffer.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := Extract(archive, filepath.Join(t.TempDir(), "out")); err == nil {
		t.Error("Extract accepted an entry outside the destination")
	}
}

func TestPackArchiveDeterministic(t *testing.T) {
	source := t.TempDir()
	testutil.WriteFile(t, filepath.Join(source, "include", "arm64", "A.h"), "header")
	testutil.WriteFile(t, filepath.Join(source, "libA.a"), "library")
	if err := os.Symlink("libA.a", filepath.Join(source, "libA-link.a")); err != nil {
		t.Fatal(err)
	}

	out := t.TempDir()
	first := filepath.Join(out, "first.zip")
	second := filepath.Join(out, "second.zip")
	if err := PackArchive(source, []string{"libA.a", "include", "libA-link.a"}, first, ""); err != nil {
		t.Fatalf("PackArchive: %v", err)
	}
	// Different entry order and a later mtime must not change the bytes.
	if err := os.Chtimes(filepath.Join(source, "libA.a"), archiveTime.AddDate(5, 0, 0), archiveTime.AddDate(5, 0, 0)); err != nil {
		t.Fatal(err)
	}
	if err := PackArchive(source, []string{"libA-link.a", "include", "libA.a"}, second, ""); err != nil {
		t.Fatalf("PackArchive: %v", err)
	}
	if testutil.ReadFile(t, first) != testutil.ReadFile(t, second) {
		t.Error("archives differ for identical content")
	}

	extracted := filepath.Join(t.TempDir(), "x")
	if err := Extract(first, extracted); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	target, err := os.Readlink(filepath.Join(extracted, "libA-link.a"))
	if err != nil || target != "libA.a" {
		t.Errorf("symlink = %q, %v", target, err)
	}
}

func TestPackArchiveCompressions(t *testing.T) {
	source := t.TempDir()
	content := strings.Repeat("object code ", 512)
	testutil.WriteFile(t, filepath.Join(source, "libA.a"), content)

	for _, name := range []string{"zstd", "lz4", "store"} {
		t.Run(name, func(t *testing.T) {
			compression, err := ParseCompression(name)
			if err != nil {
				t.Fatalf("ParseCompression: %v", err)
			}
			archive := filepath.Join(t.TempDir(), "a.zip")
			if err := PackArchive(source, []string{"libA.a"}, archive, compression); err != nil {
				t.Fatalf("PackArchive: %v", err)
			}
			extracted := filepath.Join(t.TempDir(), "x")
			if err := Extract(archive, extracted); err != nil {
				t.Fatalf("Extract: %v", err)
			}
			if got := testutil.ReadFile(t, filepath.Join(extracted, "libA.a")); got != content {
				t.Errorf("extracted %d bytes, want %d", len(got), len(content))
			}
		})
	}

	if _, err := ParseCompression("brotli"); err == nil {
		t.Error("ParseCompression accepted an unknown name")
	}
}

func TestPlaceholderProcessor(t *testing.T) {
	mapping, err := pathremap.NewMapping([]pathremap.Pair{{Token: "$(SRCROOT)", Value: "/Users/dev/app"}})
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	header := filepath.Join(dir, "include", "arm64", "App-Swift.h")
	testutil.WriteFile(t, header, "#include \"$(SRCROOT)/Sources/A.h\"\n\n")
	binary := filepath.Join(dir, "include", "arm64", "data.bin")
	testutil.WriteFile(t, binary, "$(SRCROOT)")

	processor := PlaceholderProcessor{Subdirectory: "include", Remapper: mapping}
	for i := 0; i < 2; i++ {
		if err := processor.Process(dir); err != nil {
			t.Fatalf("Process: %v", err)
		}
	}
	if content := testutil.ReadFile(t, header); content != "#include \"/Users/dev/app/Sources/A.h\"\n\n" {
		t.Errorf("header = %q", content)
	}
	if content := testutil.ReadFile(t, binary); content != "$(SRCROOT)" {
		t.Errorf("non-text file rewritten: %q", content)
	}
	if err := (PlaceholderProcessor{Subdirectory: "swiftmodule", Remapper: mapping}).Process(dir); err != nil {
		t.Errorf("missing subdirectory: %v", err)
	}
}

func TestPackProcessorsRoundTrip(t *testing.T) {
	mapping, err := pathremap.NewMapping([]pathremap.Pair{{Token: "$(SRCROOT)", Value: "/Users/dev/app"}})
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	original := "import \"/Users/dev/app/Sources/A.h\"\n"
	module := filepath.Join(dir, "swiftmodule", "arm64", "App.swiftinterface")
	testutil.WriteFile(t, module, original)

	for _, processor := range PackProcessors(mapping) {
		if err := processor.Process(dir); err != nil {
			t.Fatalf("Process: %v", err)
		}
	}
	if content := testutil.ReadFile(t, module); content != "import \"$(SRCROOT)/Sources/A.h\"\n" {
		t.Fatalf("generic content = %q", content)
	}
	for _, processor := range DefaultProcessors(mapping) {
		if err := processor.Process(dir); err != nil {
			t.Fatalf("Process: %v", err)
		}
	}
	if content := testutil.ReadFile(t, module); content != original {
		t.Errorf("round trip = %q, want %q", content, original)
	}
}
