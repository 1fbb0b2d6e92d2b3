// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package wrapper implements the compiler-wrapper processes that stand
// in for swiftc, swift-frontend, clang, libtool, ld, lipo and actool.
//
// Each wrapper scans its command line into a [Plan]: the outputs it
// would produce, the sources it compiles and the dependency records the
// build system expects. When the target's marker is enabled and every
// source is allowed by it, the plan is executed against the active
// artifact: products are hard-linked, objects touched and dependency
// files written, and the real tool never runs.
//
// Any failure degrades to running the real tool with the wrapper's
// stdio and returning its exit status. Failures after the marker was
// trusted also delete the marker, so sibling wrappers of the same
// target that have not read it yet fall back too. Link-type wrappers
// that fall back first replay every compile invocation earlier
// wrappers mocked, so the linker finds real objects.
//
// Per-file swift-frontend compiles cannot decide on their own: they
// lock-wait for the decision the module-emission process of the same
// arch publishes, bounded by frontend_wait_timeout.
package wrapper
