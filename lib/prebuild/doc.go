// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package prebuild implements the consumer side of a target's build
// start: it decides whether the artifact published for the build-wide
// commit can be reused and, when it can, materializes and activates it
// and enables the target's marker for the compiler wrappers.
//
// Prebuild never fails a build over cache trouble. Network errors
// disable the target (a timeout may disable the whole build), a
// fingerprint mismatch is an ordinary miss, and local I/O failures are
// logged and leave the target disabled. Only configuration errors,
// raised while assembling the target, are returned to the caller.
//
// Thinned aggregation targets fetch every sub-target concurrently
// through a bounded worker pool; the aggregate is enabled only when
// every sub-target hit.
package prebuild
