// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package modecontrol

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bureau-foundation/buildcache/lib/atomicfile"
	"github.com/bureau-foundation/buildcache/lib/buildenv"
	"github.com/bureau-foundation/buildcache/lib/clock"
	"github.com/bureau-foundation/buildcache/lib/codec"
	"github.com/bureau-foundation/buildcache/lib/filelock"
	"github.com/bureau-foundation/buildcache/lib/remote"
)

// State is the cache mode of a target.
type State struct {
	Enabled bool

	// Allowed lists the local paths wrappers may mock, in marker order.
	Allowed []string
}

// Allows reports whether path is one of the allowed paths.
func (s State) Allows(path string) bool {
	for _, allowed := range s.Allowed {
		if allowed == path {
			return true
		}
	}
	return false
}

// DisableRecord notes that a commit is unusable for a target.
type DisableRecord struct {
	Commit string `cbor:"commit"`

	// PreparedAt is the commit file time the record was made under.
	// A later prepare rewrites the commit file and retires the record.
	PreparedAt time.Time `cbor:"prepared_at"`

	Reason     string    `cbor:"reason"`
	RecordedAt time.Time `cbor:"recorded_at"`
}

// Controller manages the mode files of one target.
type Controller struct {
	context    buildenv.Context
	markerPath string
	clock      clock.Clock
	logger     *slog.Logger
}

// New returns a controller for the target described by context.
func New(context buildenv.Context, markerName string, c clock.Clock, logger *slog.Logger) *Controller {
	return &Controller{
		context:    context,
		markerPath: context.MarkerPath(markerName),
		clock:      c,
		logger:     logger,
	}
}

// MarkerPath returns the marker location.
func (c *Controller) MarkerPath() string {
	return c.markerPath
}

// markerContent joins inputs then dependencies, dropping duplicates
// and empty entries.
func markerContent(allowedInputs, dependencies []string) []byte {
	seen := make(map[string]bool)
	var buffer bytes.Buffer
	for _, list := range [][]string{allowedInputs, dependencies} {
		for _, path := range list {
			if path == "" || seen[path] {
				continue
			}
			seen[path] = true
			buffer.WriteString(path)
			buffer.WriteByte('\n')
		}
	}
	return buffer.Bytes()
}

// Enable writes the marker. The file is left untouched when it already
// holds the same content.
func (c *Controller) Enable(allowedInputs, dependencies []string) error {
	content := markerContent(allowedInputs, dependencies)
	if err := os.MkdirAll(filepath.Dir(c.markerPath), 0o755); err != nil {
		return fmt.Errorf("creating marker directory: %w", err)
	}
	return filelock.WithExclusive(c.markerPath, os.O_CREATE, func(file *os.File) error {
		current, err := io.ReadAll(file)
		if err != nil {
			return fmt.Errorf("reading marker: %w", err)
		}
		if bytes.Equal(current, content) {
			c.logger.Debug("marker unchanged", "path", c.markerPath)
			return nil
		}
		if err := file.Truncate(0); err != nil {
			return fmt.Errorf("truncating marker: %w", err)
		}
		if _, err := file.WriteAt(content, 0); err != nil {
			return fmt.Errorf("writing marker: %w", err)
		}
		return nil
	})
}

// Disable removes the marker.
func (c *Controller) Disable() error {
	return c.remove()
}

// Delete removes the marker on behalf of a wrapper that could not use
// the cache. It is the only mutation wrappers perform.
func (c *Controller) Delete(reason string) error {
	c.logger.Info("disabling cache for target", "target", c.context.TargetName, "reason", reason)
	return c.remove()
}

func (c *Controller) remove() error {
	err := filelock.WithExclusive(c.markerPath, 0, func(*os.File) error {
		return os.Remove(c.markerPath)
	})
	if err == nil || errors.Is(err, os.ErrNotExist) || errors.Is(err, filelock.ErrFileVanished) {
		return nil
	}
	return fmt.Errorf("removing marker: %w", err)
}

// Read returns the current state.
func (c *Controller) Read() (State, error) {
	content, err := filelock.ReadAll(c.markerPath)
	if err != nil {
		return State{}, fmt.Errorf("reading marker: %w", err)
	}
	if len(content) == 0 {
		return State{}, nil
	}
	var allowed []string
	for _, line := range strings.Split(string(content), "\n") {
		if line != "" {
			allowed = append(allowed, line)
		}
	}
	return State{Enabled: true, Allowed: allowed}, nil
}

// RecordUnavailable stores a disable record for commit as selected by
// the prepare run that wrote the commit file at preparedAt.
func (c *Controller) RecordUnavailable(commit string, preparedAt time.Time, reason string) error {
	data, err := codec.Marshal(DisableRecord{
		Commit:     commit,
		PreparedAt: preparedAt.UTC(),
		Reason:     reason,
		RecordedAt: c.clock.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encoding disable record: %w", err)
	}
	if err := atomicfile.WriteFile(c.context.DisableRecordPath(), data, 0o644); err != nil {
		return fmt.Errorf("writing disable record: %w", err)
	}
	return nil
}

// DisableRecord returns the stored record, or nil when there is none.
func (c *Controller) DisableRecord() (*DisableRecord, error) {
	data, err := os.ReadFile(c.context.DisableRecordPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading disable record: %w", err)
	}
	var record DisableRecord
	if err := codec.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("decoding disable record: %w", err)
	}
	return &record, nil
}

// ShouldDisable reports whether the cache must stay off for info,
// read from a commit file written at preparedAt: the build-wide commit
// is unavailable or this target recorded the commit as unusable under
// the same commit file. An unreadable record is logged and ignored.
func (c *Controller) ShouldDisable(info remote.CommitInfo, preparedAt time.Time) bool {
	commit, ok := info.Commit()
	if !ok {
		return true
	}
	record, err := c.DisableRecord()
	if err != nil {
		c.logger.Warn("ignoring unreadable disable record", "error", err)
		return false
	}
	return record != nil && record.Commit == commit && record.PreparedAt.Equal(preparedAt)
}

// ResetDecisions truncates the module-emission decision files of every
// arch, so per-file compiles wait for a fresh decision.
func (c *Controller) ResetDecisions(archs []string) error {
	var errs []error
	for _, arch := range archs {
		path := c.context.DecisionPath(arch)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			errs = append(errs, err)
			continue
		}
		if err := filelock.Replace(path, nil); err != nil {
			errs = append(errs, fmt.Errorf("resetting decision for %s: %w", arch, err))
		}
	}
	return errors.Join(errs...)
}
