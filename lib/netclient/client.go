// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package netclient

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/bureau-foundation/buildcache/lib/clock"
)

// Client performs cache operations against keys relative to a cache
// address. Keys use forward slashes ("meta/abc-App.json").
type Client interface {
	// FileExists reports whether key exists. A missing key is not an
	// error.
	FileExists(ctx context.Context, key string) (bool, error)

	// Fetch returns the content of key.
	Fetch(ctx context.Context, key string) ([]byte, error)

	// Download streams key into the file at destination, replacing it
	// only after the transfer completed.
	Download(ctx context.Context, key, destination string) error

	// Upload stores the file at source under key.
	Upload(ctx context.Context, source, key string) error

	// Create stores an empty object under key.
	Create(ctx context.Context, key string) error
}

// Options configures New.
type Options struct {
	// Address is the cache address; its scheme selects the backend.
	Address string

	// RequestTimeout bounds each operation. Zero means no timeout.
	RequestTimeout time.Duration

	// Retries is the number of additional attempts for transient
	// failures.
	Retries int

	// RetryDelay is the pause between attempts.
	RetryDelay time.Duration

	// ObjectStore holds credentials for s3:// addresses.
	ObjectStore ObjectStoreOptions

	Clock  clock.Clock
	Logger *slog.Logger
}

// New returns the client for options.Address wrapped in Retrying.
func New(options Options) (Client, error) {
	parsed, err := url.Parse(options.Address)
	if err != nil {
		return nil, fmt.Errorf("parsing cache address %q: %w", options.Address, err)
	}
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.DiscardHandler)
	}

	var client Client
	switch parsed.Scheme {
	case "http", "https":
		client, err = NewHTTPClient(HTTPConfig{
			BaseURL: options.Address,
			Timeout: options.RequestTimeout,
		})
	case "s3":
		objectStore := options.ObjectStore
		objectStore.Bucket = parsed.Host
		objectStore.Prefix = parsed.Path
		objectStore.Timeout = options.RequestTimeout
		client, err = NewObjectStoreClient(objectStore)
	case "file":
		client, err = NewDirectoryClient(parsed.Path)
	default:
		return nil, fmt.Errorf("unsupported cache address scheme %q in %s", parsed.Scheme, options.Address)
	}
	if err != nil {
		return nil, err
	}

	return &Retrying{
		Client:   client,
		Attempts: options.Retries + 1,
		Delay:    options.RetryDelay,
		Clock:    options.Clock,
		Logger:   options.Logger,
	}, nil
}

// writeStream copies reader into destination through a temporary file
// in the same directory.
func writeStream(key, destination string, reader io.Reader) error {
	directory := filepath.Dir(destination)
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return &Error{Kind: KindOther, Key: key, Err: err}
	}
	tmpFile, err := os.CreateTemp(directory, "."+filepath.Base(destination)+".download-*")
	if err != nil {
		return &Error{Kind: KindOther, Key: key, Err: err}
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmpFile, reader); err != nil {
		tmpFile.Close()
		return classifyTransport(key, err)
	}
	if err := tmpFile.Close(); err != nil {
		return &Error{Kind: KindOther, Key: key, Err: err}
	}
	if err := os.Rename(tmpPath, destination); err != nil {
		return &Error{Kind: KindOther, Key: key, Err: err}
	}
	success = true
	return nil
}

// withTimeout applies timeout to ctx when it is positive.
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
