// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package artifactmeta

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bureau-foundation/buildcache/lib/atomicfile"
)

// ErrMissingFile is returned by ReadFromDirectory when no meta file is
// present.
var ErrMissingFile = errors.New("artifact meta file missing")

// Meta describes one published artifact.
type Meta struct {
	// FileKey names the archive. Equal keys mean byte-identical
	// archives.
	FileKey string `json:"fileKey"`

	// Dependencies are generic paths of every file the compilation
	// read, in fingerprint order.
	Dependencies []string `json:"dependencies"`

	// Inputs are generic paths of the compiled sources. A consumer
	// allows these (and only these) to be mocked by wrappers.
	Inputs []string `json:"inputs"`

	// RawFingerprint is the digest over Dependencies, in order.
	RawFingerprint string `json:"rawFingerprint"`

	GenerationCommit string `json:"generationCommit"`
	TargetName       string `json:"targetName"`
	Configuration    string `json:"configuration"`
	Platform         string `json:"platform"`
	Xcode            string `json:"xcode"`

	// PluginsKeys maps a plugin name to its opaque key. The keys take
	// part in meta comparison but not in the fingerprint.
	PluginsKeys map[string]string `json:"pluginsKeys"`
}

// FileName returns the name of the meta file for fileKey.
func FileName(fileKey string) string {
	return fileKey + ".json"
}

// Validate reports every missing required field.
func (m *Meta) Validate() error {
	var errs []error
	if m.FileKey == "" {
		errs = append(errs, errors.New("fileKey is required"))
	}
	if m.RawFingerprint == "" {
		errs = append(errs, errors.New("rawFingerprint is required"))
	}
	if m.TargetName == "" {
		errs = append(errs, errors.New("targetName is required"))
	}
	if strings.ContainsAny(m.FileKey, "/\\") {
		errs = append(errs, fmt.Errorf("fileKey %q contains a path separator", m.FileKey))
	}
	return errors.Join(errs...)
}

// Encode serializes meta as indented JSON. Nil slices and maps are
// written as empty arrays and objects so the output does not depend on
// how the meta was built.
func Encode(meta *Meta) ([]byte, error) {
	normalized := *meta
	if normalized.Dependencies == nil {
		normalized.Dependencies = []string{}
	}
	if normalized.Inputs == nil {
		normalized.Inputs = []string{}
	}
	if normalized.PluginsKeys == nil {
		normalized.PluginsKeys = map[string]string{}
	}
	data, err := json.MarshalIndent(&normalized, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding artifact meta: %w", err)
	}
	return append(data, '\n'), nil
}

// Decode parses and validates a meta document. Unknown fields are
// ignored so newer producers can add fields.
func Decode(data []byte) (*Meta, error) {
	var meta Meta
	decoder := json.NewDecoder(bytes.NewReader(data))
	if err := decoder.Decode(&meta); err != nil {
		return nil, fmt.Errorf("decoding artifact meta: %w", err)
	}
	if err := meta.Validate(); err != nil {
		return nil, fmt.Errorf("invalid artifact meta: %w", err)
	}
	return &meta, nil
}

// Read loads the meta file at path.
func Read(path string) (*Meta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading artifact meta %s: %w", path, err)
	}
	meta, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return meta, nil
}

// Write atomically stores meta as {directory}/{fileKey}.json and returns
// the written path.
func Write(meta *Meta, directory string) (string, error) {
	if err := meta.Validate(); err != nil {
		return "", fmt.Errorf("refusing to write invalid artifact meta: %w", err)
	}
	data, err := Encode(meta)
	if err != nil {
		return "", err
	}
	location := filepath.Join(directory, FileName(meta.FileKey))
	if err := atomicfile.WriteFile(location, data, 0o644); err != nil {
		return "", fmt.Errorf("writing artifact meta: %w", err)
	}
	return location, nil
}

// ReadFromDirectory loads the single meta file at the root of an
// extracted artifact directory.
func ReadFromDirectory(directory string) (*Meta, error) {
	matches, err := filepath.Glob(filepath.Join(directory, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", directory, err)
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w in %s", ErrMissingFile, directory)
	case 1:
		return Read(matches[0])
	default:
		return nil, fmt.Errorf("expected one meta file in %s, found %d", directory, len(matches))
	}
}
