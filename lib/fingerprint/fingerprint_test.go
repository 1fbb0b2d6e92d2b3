// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fingerprint

import (
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/bureau-foundation/buildcache/lib/testutil"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

var hexDigest = regexp.MustCompile(`^[0-9a-f]{64}$`)

func TestGenerateIsLowercaseHex(t *testing.T) {
	accumulator := New()
	accumulator.AppendString("hello")
	if raw := accumulator.Generate(); !hexDigest.MatchString(string(raw)) {
		t.Errorf("Generate() = %q, want 64 lowercase hex characters", raw)
	}
}

func TestSameContentSameFingerprint(t *testing.T) {
	directory := t.TempDir()
	first := filepath.Join(directory, "a.swift")
	second := filepath.Join(directory, "b.h")
	testutil.WriteFile(t, first, "struct A {}")
	testutil.WriteFile(t, second, "#define B 1")

	generate := func() Raw {
		accumulator := New()
		accumulator.AppendString("context")
		for _, path := range []string{first, second} {
			if err := accumulator.AppendFile(path); err != nil {
				t.Fatalf("AppendFile(%s): %v", path, err)
			}
		}
		return accumulator.Generate()
	}

	if a, b := generate(), generate(); a != b {
		t.Errorf("two accumulators over the same content disagree: %s != %s", a, b)
	}
}

func TestGenerateIsPure(t *testing.T) {
	accumulator := New()
	accumulator.AppendString("x")
	if a, b := accumulator.Generate(), accumulator.Generate(); a != b {
		t.Errorf("repeated Generate() changed: %s != %s", a, b)
	}
}

func TestOrderMatters(t *testing.T) {
	directory := t.TempDir()
	first := filepath.Join(directory, "first")
	second := filepath.Join(directory, "second")
	testutil.WriteFile(t, first, "one")
	testutil.WriteFile(t, second, "two")

	forward := New()
	forward.AppendFile(first)
	forward.AppendFile(second)

	reverse := New()
	reverse.AppendFile(second)
	reverse.AppendFile(first)

	if forward.Generate() == reverse.Generate() {
		t.Error("reordering appended files should change the fingerprint")
	}
}

func TestStringFramingIsUnambiguous(t *testing.T) {
	split := New()
	split.AppendString("ab")
	split.AppendString("c")

	other := New()
	other.AppendString("a")
	other.AppendString("bc")

	if split.Generate() == other.Generate() {
		t.Error(`"ab"+"c" and "a"+"bc" must not collide`)
	}
}

func TestFileAndStringDiffer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "content")
	testutil.WriteFile(t, path, "same")

	fromFile := New()
	if err := fromFile.AppendFile(path); err != nil {
		t.Fatalf("AppendFile: %v", err)
	}
	fromString := New()
	fromString.AppendString("same")

	if fromFile.Generate() == fromString.Generate() {
		t.Error("a file and a string with equal bytes should be distinguishable")
	}
}

func TestResetRestoresEmptyState(t *testing.T) {
	empty := New().Generate()

	accumulator := New()
	accumulator.AppendString("something")
	accumulator.Reset()
	if got := accumulator.Generate(); got != empty {
		t.Errorf("Generate after Reset = %s, want empty digest %s", got, empty)
	}
}

func TestAppendFileMissing(t *testing.T) {
	accumulator := New()
	before := accumulator.Generate()

	err := accumulator.AppendFile(filepath.Join(t.TempDir(), "gone.h"))
	if !errors.Is(err, ErrMissingFile) {
		t.Fatalf("AppendFile error = %v, want ErrMissingFile", err)
	}
	if after := accumulator.Generate(); after != before {
		t.Error("a failed AppendFile must leave the stream unchanged")
	}
}

func TestAppendDependenciesSkipsMissing(t *testing.T) {
	directory := t.TempDir()
	present := filepath.Join(directory, "present.h")
	testutil.WriteFile(t, present, "int x;")

	withMissing := New()
	if err := AppendDependencies(withMissing, []string{present, filepath.Join(directory, "gone.h")}, discardLogger); err != nil {
		t.Fatalf("AppendDependencies: %v", err)
	}

	withoutMissing := New()
	if err := withoutMissing.AppendFile(present); err != nil {
		t.Fatalf("AppendFile: %v", err)
	}

	if withMissing.Generate() != withoutMissing.Generate() {
		t.Error("a missing dependency should be fingerprinted as absent")
	}
}

func TestContextBinding(t *testing.T) {
	debug := NewEnvironment([]string{"App", "Debug"}, SchemaVersion)
	release := NewEnvironment([]string{"App", "Release"}, SchemaVersion)

	inDebug := NewContext(debug)
	inDebug.AppendString("source")
	inRelease := NewContext(release)
	inRelease.AppendString("source")

	debugPrint, releasePrint := inDebug.Generate(), inRelease.Generate()
	if debugPrint.Raw != releasePrint.Raw {
		t.Error("raw fingerprint must not depend on the environment")
	}
	if debugPrint.ContextSpecific == releasePrint.ContextSpecific {
		t.Error("context-specific fingerprint must change with the environment")
	}

	changed := NewContext(debug)
	changed.AppendString("edited source")
	changedPrint := changed.Generate()
	if changedPrint.Raw == debugPrint.Raw || changedPrint.ContextSpecific == debugPrint.ContextSpecific {
		t.Error("both fingerprints must change when content changes")
	}
}

func TestContextGenerateDoesNotDisturbStream(t *testing.T) {
	environment := NewEnvironment([]string{"x"}, SchemaVersion)
	withContext := NewContext(environment)
	withContext.AppendString("a")
	withContext.Generate()
	withContext.AppendString("b")

	plain := New()
	plain.AppendString("a")
	plain.AppendString("b")

	if withContext.Generate().Raw != plain.Generate() {
		t.Error("Generate on a context accumulator must not mutate the running digest")
	}
}

func TestEnvironmentFromLookup(t *testing.T) {
	values := map[string]string{"TARGET_NAME": "App", "CONFIGURATION": "Debug"}
	lookup := func(name string) (string, bool) {
		value, ok := values[name]
		return value, ok
	}

	got := EnvironmentFromLookup([]string{"TARGET_NAME", "UNSET", "CONFIGURATION"}, lookup)
	want := NewEnvironment([]string{"App", "", "Debug"}, SchemaVersion)
	if got != want {
		t.Errorf("EnvironmentFromLookup = %s, want %s", got, want)
	}

	if NewEnvironment([]string{"App"}, "1") == NewEnvironment([]string{"App"}, "2") {
		t.Error("schema version must be part of the environment fingerprint")
	}
}

func TestArtifactKeyDependsOnBothInputs(t *testing.T) {
	base := ArtifactKey("ctx", "content")
	if base == ArtifactKey("ctx2", "content") || base == ArtifactKey("ctx", "content2") {
		t.Error("ArtifactKey must depend on both the context fingerprint and the content")
	}
	if base != ArtifactKey("ctx", "content") {
		t.Error("ArtifactKey must be deterministic")
	}
}
