// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time abstraction for the parts of
// buildcache that wait: network retries (fixed inter-retry delay) and the
// swift-frontend lock-wait loop (poll interval plus overall timeout).
//
// Production code accepts a [Clock] instead of calling time.Now or
// time.After directly. Wrappers and commands inject
// [Real]; tests inject [Fake] and drive time with Advance:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go func() { done <- retrying.Fetch(ctx, location) }()
//	c.WaitForTimers(1)     // the retry loop is waiting
//	c.Advance(time.Second) // release it deterministically
//
// WaitForTimers removes the race between a goroutine registering a timer
// and the test advancing the clock.
package clock
