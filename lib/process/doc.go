// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides binary entrypoint helpers for buildcache
// commands and compiler wrappers.
//
//   - [Fatal] reports an unrecoverable error to stderr and exits, for
//     main() paths where the structured logger may not exist yet.
//   - [Run] executes a real tool on behalf of a wrapper with the
//     wrapper's stdio attached and returns the tool's exit status.
//
// A wrapper that falls back calls Run and then exits with the returned
// status, which makes the fallback indistinguishable from the build
// system having invoked the real tool directly: same stdin, stdout,
// stderr and exit code. Interrupt and terminate signals received by the
// wrapper are forwarded to the child.
package process
