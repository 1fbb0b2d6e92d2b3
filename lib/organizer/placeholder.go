// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package organizer

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bureau-foundation/buildcache/lib/pathremap"
)

// placeholderExtensions are the text files that may embed generic
// paths.
var placeholderExtensions = map[string]bool{
	".h":              true,
	".hpp":            true,
	".modulemap":      true,
	".swiftinterface": true,
	".json":           true,
}

// PlaceholderProcessor rewrites generic placeholders in the text files
// below Subdirectory into local paths.
type PlaceholderProcessor struct {
	// Subdirectory is relative to the artifact directory
	// ("include", "swiftmodule").
	Subdirectory string

	Remapper pathremap.Remapper

	// ToGeneric reverses the direction: local paths become
	// placeholders. Producers use it before packing.
	ToGeneric bool
}

// Process implements Processor. A missing subdirectory is not an
// error.
func (p PlaceholderProcessor) Process(dir string) error {
	root := filepath.Join(dir, p.Subdirectory)
	if _, err := os.Stat(root); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() || !placeholderExtensions[filepath.Ext(path)] {
			return nil
		}
		return p.rewrite(path)
	})
}

func (p PlaceholderProcessor) rewrite(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	remap := p.Remapper.Local
	if p.ToGeneric {
		remap = p.Remapper.Generic
	}
	var remapErr error
	rewritten := pathremap.RemapText(data, func(line string) string {
		mapped, err := remap([]string{line})
		if err != nil {
			remapErr = err
			return line
		}
		return mapped[0]
	})
	if remapErr != nil {
		return fmt.Errorf("remapping %s: %w", path, remapErr)
	}
	if string(rewritten) == string(data) {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, rewritten, info.Mode().Perm()); err != nil {
		return fmt.Errorf("rewriting %s: %w", path, err)
	}
	return nil
}

// DefaultProcessors returns the placeholder processors for headers and
// Swift module interfaces.
func DefaultProcessors(remapper pathremap.Remapper) []Processor {
	return []Processor{
		PlaceholderProcessor{Subdirectory: IncludeDirectory, Remapper: remapper},
		PlaceholderProcessor{Subdirectory: SwiftmoduleDirectory, Remapper: remapper},
	}
}

// PackProcessors returns the processors that turn local paths into
// placeholders before an artifact directory is packed.
func PackProcessors(remapper pathremap.Remapper) []Processor {
	return []Processor{
		PlaceholderProcessor{Subdirectory: IncludeDirectory, Remapper: remapper, ToGeneric: true},
		PlaceholderProcessor{Subdirectory: SwiftmoduleDirectory, Remapper: remapper, ToGeneric: true},
	}
}
