// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"slices"
	"sync"
	"time"
)

// FakeClock is a manually driven Clock for tests. It is safe for
// concurrent use.
type FakeClock struct {
	mu      sync.Mutex
	changed *sync.Cond
	now     time.Time

	// pending is ordered by deadline; equal deadlines keep
	// registration order.
	pending []timer
}

type timer struct {
	deadline time.Time
	fire     chan time.Time
}

// Fake returns a FakeClock reading initial until Advance moves it.
func Fake(initial time.Time) *FakeClock {
	clock := &FakeClock{now: initial}
	clock.changed = sync.NewCond(&clock.mu)
	return clock
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	fire := make(chan time.Time, 1)
	if d <= 0 {
		fire <- c.now
		return fire
	}
	deadline := c.now.Add(d)
	position, _ := slices.BinarySearchFunc(c.pending, deadline, func(t timer, deadline time.Time) int {
		if t.deadline.After(deadline) {
			return 1
		}
		return -1
	})
	c.pending = slices.Insert(c.pending, position, timer{deadline: deadline, fire: fire})
	c.changed.Broadcast()
	return fire
}

// Advance moves the clock forward by d and fires, earliest first, every
// timer whose deadline is now due.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	due := 0
	for due < len(c.pending) && !c.pending[due].deadline.After(now) {
		due++
	}
	fired := slices.Clone(c.pending[:due])
	c.pending = slices.Delete(c.pending, 0, due)
	c.mu.Unlock()

	for _, t := range fired {
		t.fire <- now
	}
}

// WaitForTimers blocks until at least n timers are pending.
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.pending) < n {
		c.changed.Wait()
	}
}

// PendingCount reports how many timers have not fired.
func (c *FakeClock) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
