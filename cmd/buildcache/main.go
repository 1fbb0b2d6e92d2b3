// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/bureau-foundation/buildcache/cmd/buildcache/commands"
	"github.com/bureau-foundation/buildcache/lib/process"
)

func main() {
	if err := run(); err != nil {
		// Commands that print their own output (prepare --check) return
		// an error carrying the exit code. Don't print a redundant
		// "error:" line for those.
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		process.Fatal(err)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return commands.Root(commands.StandardIO()).Execute(ctx, os.Args[1:])
}
