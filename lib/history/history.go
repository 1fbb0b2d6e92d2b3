// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package history records compiler invocations that were skipped
// because the cache supplied their outputs.
//
// When a wrapper mocks a compile step it appends the invocation to the
// target's history log. If the cache is later disabled for the target
// within the same build (a sibling process found a corrupted artifact
// and deleted the marker), the link step can no longer trust the
// mocked outputs: it consumes the log and replays every recorded
// invocation against the real tool before linking.
//
// The log is a CBOR sequence. Appends and the read-then-truncate of
// [Log.Consume] each happen under one exclusive lock, so an invocation
// is replayed at most once.
package history

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/bureau-foundation/buildcache/lib/codec"
	"github.com/bureau-foundation/buildcache/lib/filelock"
)

// Invocation is one recorded tool run.
type Invocation struct {
	// Tool is the wrapper name, used to select the real tool on
	// replay.
	Tool string `cbor:"tool"`

	// Args excludes the program name.
	Args []string `cbor:"args"`

	// Dir is the working directory of the original run.
	Dir string `cbor:"dir,omitempty"`
}

// Log is the history file of one target.
type Log struct {
	Path string
}

// Append adds invocation to the end of the log.
func (l *Log) Append(invocation Invocation) error {
	data, err := codec.Marshal(invocation)
	if err != nil {
		return fmt.Errorf("encoding invocation: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(l.Path), 0o755); err != nil {
		return fmt.Errorf("creating history directory: %w", err)
	}
	return filelock.WithExclusive(l.Path, os.O_CREATE, func(file *os.File) error {
		if _, err := file.Seek(0, io.SeekEnd); err != nil {
			return fmt.Errorf("seeking %s: %w", l.Path, err)
		}
		if _, err := file.Write(data); err != nil {
			return fmt.Errorf("appending to %s: %w", l.Path, err)
		}
		return nil
	})
}

// Consume returns every recorded invocation in append order and empties
// the log. A missing log yields no invocations.
func (l *Log) Consume() ([]Invocation, error) {
	var invocations []Invocation
	err := filelock.WithExclusive(l.Path, 0, func(file *os.File) error {
		data, err := io.ReadAll(file)
		if err != nil {
			return fmt.Errorf("reading %s: %w", l.Path, err)
		}
		invocations, err = codec.DecodeSequence[Invocation](data)
		if err != nil {
			return fmt.Errorf("decoding %s: %w", l.Path, err)
		}
		if err := file.Truncate(0); err != nil {
			return fmt.Errorf("truncating %s: %w", l.Path, err)
		}
		return nil
	})
	if errors.Is(err, os.ErrNotExist) || errors.Is(err, filelock.ErrFileVanished) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return invocations, nil
}

// Reset removes the log.
func (l *Log) Reset() error {
	if err := os.Remove(l.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing %s: %w", l.Path, err)
	}
	return nil
}
