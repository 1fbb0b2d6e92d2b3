// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
)

// Command describes a real tool invocation.
type Command struct {
	// Path is the executable. A bare name is resolved through PATH.
	Path string

	// Args are the arguments, excluding argv[0].
	Args []string

	// Dir is the working directory; empty means the current one.
	Dir string

	// Env is the child environment; nil inherits the current one.
	Env []string

	// Stdin, Stdout and Stderr default to the current process's
	// streams when nil.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Run executes the command and returns its exit status. The returned
// error is non-nil only when the tool could not be started or waited
// for; a tool that runs and fails reports that through the status.
// A child killed by a signal reports 128+signal, as a shell would.
func Run(ctx context.Context, command Command) (int, error) {
	path, err := exec.LookPath(command.Path)
	if err != nil {
		return 0, fmt.Errorf("resolving %s: %w", command.Path, err)
	}

	cmd := exec.CommandContext(ctx, path, command.Args...)
	cmd.Dir = command.Dir
	cmd.Env = command.Env
	cmd.Stdin = orReader(command.Stdin, os.Stdin)
	cmd.Stdout = orWriter(command.Stdout, os.Stdout)
	cmd.Stderr = orWriter(command.Stderr, os.Stderr)

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("starting %s: %w", path, err)
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)
	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case received := <-signals:
				_ = cmd.Process.Signal(received)
			case <-done:
				return
			}
		}
	}()

	err = cmd.Wait()
	if err == nil {
		return 0, nil
	}
	var exitError *exec.ExitError
	if errors.As(err, &exitError) {
		if status, ok := exitError.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			return 128 + int(status.Signal()), nil
		}
		return exitError.ExitCode(), nil
	}
	return 0, fmt.Errorf("waiting for %s: %w", path, err)
}

func orReader(r io.Reader, fallback io.Reader) io.Reader {
	if r != nil {
		return r
	}
	return fallback
}

func orWriter(w io.Writer, fallback io.Writer) io.Writer {
	if w != nil {
		return w
	}
	return fallback
}
