// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package filelock serializes access to small state files shared by
// independently started processes.
//
// Compiler wrappers, prebuild and postbuild run as separate processes
// with no common parent that could hold an in-memory lock. The only
// coordination point is the file itself: [WithExclusive] takes an
// advisory flock(2) on it for the duration of a callback. Locks are
// released when the descriptor closes, including when the process dies,
// so a crashed wrapper never leaves a stale lock behind.
//
// A file can be unlinked by another process while this one waits for
// the lock (a wrapper deleting the marker, for example). After the lock
// is acquired the path is re-checked: if it no longer names the locked
// inode, [ErrFileVanished] is returned, unless the caller asked for the
// file to be created, in which case the open is retried against the new
// file.
//
// [WaitNonEmpty] is the bounded lock-wait used when one process must
// wait for another to publish a decision: it polls the file under the
// lock until it has content or the timeout expires ([ErrWaitTimeout]).
package filelock
