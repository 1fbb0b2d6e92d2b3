// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/bureau-foundation/buildcache/lib/atomicfile"
)

// CommitInfo is the build-wide decision about which commit to consume.
// The zero value is unavailable.
type CommitInfo struct {
	commit string
}

// Unavailable returns a CommitInfo that disables the cache.
func Unavailable() CommitInfo {
	return CommitInfo{}
}

// Available returns a CommitInfo naming commit.
func Available(commit string) CommitInfo {
	return CommitInfo{commit: commit}
}

// Commit returns the commit and whether the cache is available.
func (c CommitInfo) Commit() (string, bool) {
	return c.commit, c.commit != ""
}

// IsAvailable reports whether a commit is set.
func (c CommitInfo) IsAvailable() bool {
	return c.commit != ""
}

func (c CommitInfo) String() string {
	if c.commit == "" {
		return "unavailable"
	}
	return c.commit
}

// ReadCommitInfo reads the commit file. A missing or empty file means
// unavailable.
func ReadCommitInfo(path string) (CommitInfo, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Unavailable(), nil
	}
	if err != nil {
		return Unavailable(), fmt.Errorf("reading commit file: %w", err)
	}
	return Available(strings.TrimSpace(string(data))), nil
}

// PreparedAt returns the modification time of the commit file, which
// identifies the prepare run that wrote it. A missing file returns the
// zero time.
func PreparedAt(path string) (time.Time, error) {
	stat, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("reading commit file time: %w", err)
	}
	return stat.ModTime().UTC(), nil
}

// WriteCommitInfo atomically replaces the commit file.
func WriteCommitInfo(path string, info CommitInfo) error {
	content := ""
	if commit, ok := info.Commit(); ok {
		content = commit + "\n"
	}
	if err := atomicfile.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing commit file: %w", err)
	}
	return nil
}

// DisableGlobally marks the cache unavailable for the rest of the
// build.
func DisableGlobally(path string, reason string, logger *slog.Logger) error {
	logger.Warn("disabling cache for the rest of the build", "reason", reason)
	return WriteCommitInfo(path, Unavailable())
}
