// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package workpool

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRunCollectsAllErrors(t *testing.T) {
	first := errors.New("first failure")
	second := errors.New("second failure")
	var completed atomic.Int32

	tasks := []Task{
		func(context.Context) error { return first },
		func(context.Context) error {
			time.Sleep(10 * time.Millisecond)
			completed.Add(1)
			return nil
		},
		func(context.Context) error { return second },
		func(context.Context) error {
			completed.Add(1)
			return nil
		},
	}
	err := Run(context.Background(), 2, tasks)
	if !errors.Is(err, first) || !errors.Is(err, second) {
		t.Errorf("Run error = %v, want both failures", err)
	}
	if completed.Load() != 2 {
		t.Errorf("completed = %d, want 2 (failures must not cancel siblings)", completed.Load())
	}
}

func TestRunRespectsLimit(t *testing.T) {
	const limit = 3
	var running, peak atomic.Int32
	tasks := make([]Task, 20)
	for i := range tasks {
		tasks[i] = func(context.Context) error {
			current := running.Add(1)
			for {
				observed := peak.Load()
				if current <= observed || peak.CompareAndSwap(observed, current) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			running.Add(-1)
			return nil
		}
	}
	if err := Run(context.Background(), limit, tasks); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if peak.Load() > limit {
		t.Errorf("peak concurrency = %d, limit %d", peak.Load(), limit)
	}
}

func TestRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ran := false
	err := Run(ctx, 1, []Task{func(context.Context) error {
		ran = true
		return nil
	}})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if ran {
		t.Error("task ran after cancellation")
	}
}

func TestMapPreservesOrder(t *testing.T) {
	inputs := []int{5, 1, 4, 2, 3}
	outputs, err := Map(context.Background(), 2, inputs, func(_ context.Context, n int) (string, error) {
		time.Sleep(time.Duration(n) * time.Millisecond)
		if n == 4 {
			return "", fmt.Errorf("input %d rejected", n)
		}
		return fmt.Sprint(n * 10), nil
	})
	if err == nil {
		t.Fatal("Map should report the failing input")
	}
	want := []string{"50", "10", "", "20", "30"}
	for i := range want {
		if outputs[i] != want[i] {
			t.Errorf("outputs[%d] = %q, want %q", i, outputs[i], want[i])
		}
	}
}
