// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package filelock

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/buildcache/lib/clock"
)

var (
	// ErrFileVanished is returned when the locked file was removed or
	// replaced while waiting for the lock.
	ErrFileVanished = errors.New("locked file vanished")

	// ErrWaitTimeout is returned by WaitNonEmpty when the file stays
	// empty past the timeout.
	ErrWaitTimeout = errors.New("timed out waiting for file content")
)

// maxCreateAttempts bounds how often WithExclusive reopens a file
// that keeps being replaced under it.
const maxCreateAttempts = 5

// WithExclusive opens path with flag (os.O_RDWR is always added),
// takes an exclusive lock and runs fn with the locked file positioned at
// offset zero. The lock is released when fn returns.
//
// If flag includes os.O_CREATE and the file is replaced while waiting
// for the lock, the open is retried; otherwise ErrFileVanished is
// returned.
func WithExclusive(path string, flag int, fn func(*os.File) error) error {
	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		err := withExclusiveOnce(path, flag, fn)
		if errors.Is(err, ErrFileVanished) && flag&os.O_CREATE != 0 {
			continue
		}
		return err
	}
	return fmt.Errorf("locking %s: %w after %d attempts", path, ErrFileVanished, maxCreateAttempts)
}

func withExclusiveOnce(path string, flag int, fn func(*os.File) error) error {
	file, err := os.OpenFile(path, flag|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer file.Close()

	if err := lockVerified(file, path); err != nil {
		return err
	}
	return fn(file)
}

// lockVerified locks file and checks that path still names it.
func lockVerified(file *os.File, path string) error {
	if err := lock(file); err != nil {
		return fmt.Errorf("locking %s: %w", path, err)
	}
	locked, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat locked %s: %w", path, err)
	}
	current, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s: %w", path, ErrFileVanished)
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if !os.SameFile(locked, current) {
		return fmt.Errorf("%s: %w", path, ErrFileVanished)
	}
	return nil
}

func lock(file *os.File) error {
	for {
		err := unix.Flock(int(file.Fd()), unix.LOCK_EX)
		if !errors.Is(err, unix.EINTR) {
			return err
		}
	}
}

// ReadAll returns the content of the file at path under the lock. A
// missing file reads as empty.
func ReadAll(path string) ([]byte, error) {
	var content []byte
	err := WithExclusive(path, 0, func(file *os.File) error {
		var readErr error
		content, readErr = io.ReadAll(file)
		return readErr
	})
	if errors.Is(err, os.ErrNotExist) || errors.Is(err, ErrFileVanished) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return content, nil
}

// Replace overwrites the content of the file at path under the lock,
// creating it if needed.
func Replace(path string, content []byte) error {
	return WithExclusive(path, os.O_CREATE, func(file *os.File) error {
		if err := file.Truncate(0); err != nil {
			return fmt.Errorf("truncating %s: %w", path, err)
		}
		if _, err := file.WriteAt(content, 0); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		return nil
	})
}

// WaitNonEmpty polls path every interval until it has content and
// returns that content. A missing file counts as empty. It returns
// ErrWaitTimeout once timeout has elapsed on c, or the context error if
// ctx is cancelled first.
func WaitNonEmpty(ctx context.Context, c clock.Clock, path string, interval, timeout time.Duration) ([]byte, error) {
	deadline := c.Now().Add(timeout)
	for {
		content, err := ReadAll(path)
		if err != nil {
			return nil, err
		}
		if len(content) > 0 {
			return content, nil
		}
		remaining := deadline.Sub(c.Now())
		if remaining <= 0 {
			return nil, fmt.Errorf("%s: %w after %s", path, ErrWaitTimeout, timeout)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.After(min(interval, remaining)):
		}
	}
}
