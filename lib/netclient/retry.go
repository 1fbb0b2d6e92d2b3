// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package netclient

import (
	"context"
	"log/slog"
	"time"

	"github.com/bureau-foundation/buildcache/lib/clock"
)

// Retrying retries transient failures of the wrapped Client. Timeouts
// and non-transient failures are returned on the first attempt.
type Retrying struct {
	Client Client

	// Attempts is the total number of tries; values below one mean
	// one.
	Attempts int

	// Delay is the fixed pause between tries.
	Delay time.Duration

	Clock  clock.Clock
	Logger *slog.Logger
}

func (r *Retrying) run(ctx context.Context, operation, key string, fn func() error) error {
	attempts := max(r.Attempts, 1)
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn()
		if err == nil || !IsTransient(err) || attempt == attempts {
			return err
		}
		if r.Logger != nil {
			r.Logger.Debug("retrying cache request",
				"operation", operation,
				"key", key,
				"attempt", attempt,
				"error", err,
			)
		}
		select {
		case <-ctx.Done():
			return classifyTransport(key, ctx.Err())
		case <-r.Clock.After(r.Delay):
		}
	}
	return err
}

// FileExists implements Client.
func (r *Retrying) FileExists(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := r.run(ctx, "exists", key, func() error {
		var err error
		exists, err = r.Client.FileExists(ctx, key)
		return err
	})
	return exists, err
}

// Fetch implements Client.
func (r *Retrying) Fetch(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := r.run(ctx, "fetch", key, func() error {
		var err error
		data, err = r.Client.Fetch(ctx, key)
		return err
	})
	return data, err
}

// Download implements Client.
func (r *Retrying) Download(ctx context.Context, key, destination string) error {
	return r.run(ctx, "download", key, func() error {
		return r.Client.Download(ctx, key, destination)
	})
}

// Upload implements Client.
func (r *Retrying) Upload(ctx context.Context, source, key string) error {
	return r.run(ctx, "upload", key, func() error {
		return r.Client.Upload(ctx, source, key)
	})
}

// Create implements Client.
func (r *Retrying) Create(ctx context.Context, key string) error {
	return r.run(ctx, "create", key, func() error {
		return r.Client.Create(ctx, key)
	})
}
