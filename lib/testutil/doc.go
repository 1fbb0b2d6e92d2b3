// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for buildcache packages.
//
// [WriteFile] creates a file and its parent directories in one call,
// which most fixtures (dependency files, artifact trees, overlay files)
// need.
//
// [HelperCommand] and [HelperName] implement the re-exec pattern used to
// test cross-process behavior: counters bumped by unrelated processes,
// locks contended by separate PIDs, wrappers that exit with the real
// tool's status. The test binary re-runs itself with
// -test.run=^TestHelperProcess$ and an environment variable naming the
// role to play; the package's TestHelperProcess dispatches on
// [HelperName] and returns immediately when it is empty.
//
// [RequireReceive] encapsulates the select-with-timeout safety valve so
// tests never hang on a channel.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
package testutil
