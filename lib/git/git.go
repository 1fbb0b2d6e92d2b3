// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package git runs the git CLI against one repository to list the
// commits a build may consume. Every command targets the repository
// with "git -C <dir>".
package git

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Repository is a git working tree or bare repository.
type Repository struct {
	dir string
}

// NewRepository returns a Repository rooted at dir.
func NewRepository(dir string) *Repository {
	return &Repository{dir: dir}
}

// Run executes git with args and returns stdout. Stderr is folded into
// the error on failure.
func (r *Repository) Run(ctx context.Context, args ...string) (string, error) {
	var stdout, stderr bytes.Buffer
	command := exec.CommandContext(ctx, "git", append([]string{"-C", r.dir}, args...)...)
	command.Stdout = &stdout
	command.Stderr = &stderr
	if err := command.Run(); err != nil {
		return "", fmt.Errorf("git %s in %s: %w (stderr: %s)",
			strings.Join(args, " "), r.dir, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// Head returns the full hash of HEAD.
func (r *Repository) Head(ctx context.Context) (string, error) {
	output, err := r.Run(ctx, "rev-parse", "--verify", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(output), nil
}

// RecentCommits returns up to limit commit hashes reachable from ref,
// newest first. This is the candidate order a consumer build probes.
func (r *Repository) RecentCommits(ctx context.Context, ref string, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("commit limit must be positive, got %d", limit)
	}
	output, err := r.Run(ctx, "rev-list", "--max-count", strconv.Itoa(limit), ref, "--")
	if err != nil {
		return nil, err
	}
	return strings.Fields(output), nil
}
