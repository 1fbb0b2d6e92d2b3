// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package counters keeps build statistics in a small binary file that
// many processes update concurrently.
//
// The file is a sequence of little-endian uint64 slots, one per named
// [Position]. Every update reads, increments and rewrites the file under
// an exclusive lock, so concurrent bumps from parallel wrappers are
// never lost. A file written by a version with fewer slots is padded
// with zeros on read; extra trailing slots are dropped.
package counters

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/bureau-foundation/buildcache/lib/filelock"
)

// Position names a counter slot.
type Position int

const (
	TargetHit Position = iota
	TargetMiss
	LocalFallback
	RemoteTimeout
	ArtifactDownload
	ArtifactReuse

	// Count is the number of slots in the current layout.
	Count
)

var positionNames = [Count]string{
	TargetHit:        "target_hit",
	TargetMiss:       "target_miss",
	LocalFallback:    "local_fallback",
	RemoteTimeout:    "remote_timeout",
	ArtifactDownload: "artifact_download",
	ArtifactReuse:    "artifact_reuse",
}

// String returns the snake_case name of the position.
func (p Position) String() string {
	if p < 0 || p >= Count {
		return fmt.Sprintf("position(%d)", int(p))
	}
	return positionNames[p]
}

// Positions returns every position in slot order.
func Positions() []Position {
	positions := make([]Position, Count)
	for i := range positions {
		positions[i] = Position(i)
	}
	return positions
}

const slotSize = 8

// File is a counters file with Size slots.
type File struct {
	Path string
	Size int
}

// New returns a File at path with the current layout.
func New(path string) *File {
	return &File{Path: path, Size: int(Count)}
}

// Bump increments every given position by one in a single locked
// update. A position may appear more than once.
func (f *File) Bump(positions ...Position) error {
	for _, position := range positions {
		if position < 0 || int(position) >= f.Size {
			return fmt.Errorf("counter position %d out of range [0, %d)", position, f.Size)
		}
	}
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o755); err != nil {
		return fmt.Errorf("creating counters directory: %w", err)
	}
	return filelock.WithExclusive(f.Path, os.O_CREATE, func(file *os.File) error {
		values, err := f.decode(file)
		if err != nil {
			return err
		}
		for _, position := range positions {
			values[position]++
		}
		return f.encode(file, values)
	})
}

// Read returns all slot values. A missing file reads as zeros.
func (f *File) Read() ([]uint64, error) {
	var values []uint64
	err := filelock.WithExclusive(f.Path, 0, func(file *os.File) error {
		var decodeErr error
		values, decodeErr = f.decode(file)
		return decodeErr
	})
	if errors.Is(err, os.ErrNotExist) || errors.Is(err, filelock.ErrFileVanished) {
		return make([]uint64, f.Size), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading counters %s: %w", f.Path, err)
	}
	return values, nil
}

// Reset sets every slot to zero.
func (f *File) Reset() error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o755); err != nil {
		return fmt.Errorf("creating counters directory: %w", err)
	}
	return filelock.WithExclusive(f.Path, os.O_CREATE, func(file *os.File) error {
		return f.encode(file, make([]uint64, f.Size))
	})
}

func (f *File) decode(file *os.File) ([]uint64, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", f.Path, err)
	}
	values := make([]uint64, f.Size)
	for i := range values {
		offset := i * slotSize
		if offset+slotSize > len(data) {
			break
		}
		values[i] = binary.LittleEndian.Uint64(data[offset:])
	}
	return values, nil
}

func (f *File) encode(file *os.File, values []uint64) error {
	data := make([]byte, len(values)*slotSize)
	for i, value := range values {
		binary.LittleEndian.PutUint64(data[i*slotSize:], value)
	}
	if err := file.Truncate(0); err != nil {
		return fmt.Errorf("truncating %s: %w", f.Path, err)
	}
	if _, err := file.WriteAt(data, 0); err != nil {
		return fmt.Errorf("writing %s: %w", f.Path, err)
	}
	return nil
}
