// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the buildcache command tree.
//
// Xcode invokes "buildcache prebuild" and "buildcache postbuild" as
// build phases of every cached target; "buildcache prepare" runs once
// per build before any target, and "buildcache mark" once after a
// producer build succeeds. The per-tool wrappers live in separate
// binaries under cmd/bc-*.
package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/bureau-foundation/buildcache/cmd/buildcache/cli"
	"github.com/bureau-foundation/buildcache/lib/buildenv"
	"github.com/bureau-foundation/buildcache/lib/version"
)

// IO is the process surface commands read from and write to.
type IO struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Lookup reads build settings and fingerprinted environment
	// variables.
	Lookup buildenv.Lookup
}

// StandardIO returns the IO of the running process.
func StandardIO() IO {
	return IO{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Lookup: os.LookupEnv,
	}
}

// Root builds and returns the complete buildcache command tree.
func Root(streams IO) *cli.Command {
	return &cli.Command{
		Name: "buildcache",
		Description: `buildcache: remote artifact cache for Xcode builds.

Producer machines publish each target's products keyed by commit and
input fingerprint. Consumer machines fetch them in a prebuild phase and
let the bc-* tool wrappers link the cached outputs into place instead
of compiling.`,
		HelpOutput: streams.Stderr,
		Subcommands: []*cli.Command{
			prepareCommand(streams),
			prebuildCommand(streams),
			postbuildCommand(streams),
			markCommand(streams),
			statsCommand(streams),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(_ context.Context, _ []string) error {
					fmt.Fprintf(streams.Stdout, "buildcache %s\n", version.Full())
					return nil
				},
			},
		},
		Examples: []cli.Example{
			{
				Description: "Consume the newest commit with published artifacts",
				Command:     "git rev-list --max-count 20 HEAD | buildcache prepare",
			},
			{
				Description: "Start a producer build of the current commit",
				Command:     "buildcache prepare $(git rev-parse HEAD)",
			},
			{
				Description: "Publish the commit marker after a producer build",
				Command:     "buildcache mark",
			},
			{
				Description: "Show cache statistics for recent builds",
				Command:     "buildcache stats",
			},
		},
	}
}
