// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package workpool runs independent tasks with bounded concurrency and
// reports every failure.
//
// Unlike a plain errgroup, a failing task does not cancel its siblings:
// when aggregating sub-target artifacts or probing candidate commits,
// each task's outcome matters on its own and callers need the full list
// of failures, not just the first one.
package workpool

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Task is one unit of work.
type Task func(ctx context.Context) error

// Run executes tasks with at most limit running at once (limit <= 0
// means unbounded) and waits for all of them. The returned error joins
// every task error in task order. Tasks not yet started when ctx is
// cancelled are skipped and report the context error.
func Run(ctx context.Context, limit int, tasks []Task) error {
	group := new(errgroup.Group)
	if limit > 0 {
		group.SetLimit(limit)
	}

	results := make([]error, len(tasks))
	for index, task := range tasks {
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[index] = fmt.Errorf("task %d not started: %w", index, err)
				return nil
			}
			results[index] = task(ctx)
			return nil
		})
	}
	group.Wait()

	return errors.Join(results...)
}

// Map runs fn over inputs with bounded concurrency and returns results
// in input order. Entries whose fn failed hold the zero value; their
// errors are joined into the returned error.
func Map[In, Out any](ctx context.Context, limit int, inputs []In, fn func(context.Context, In) (Out, error)) ([]Out, error) {
	outputs := make([]Out, len(inputs))
	tasks := make([]Task, len(inputs))
	for index, input := range inputs {
		tasks[index] = func(ctx context.Context) error {
			output, err := fn(ctx, input)
			if err != nil {
				return err
			}
			outputs[index] = output
			return nil
		}
	}
	err := Run(ctx, limit, tasks)
	return outputs, err
}
