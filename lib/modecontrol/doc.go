// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package modecontrol owns the per-target cache mode: whether wrappers
// may reuse cached outputs for this build, and for which inputs.
//
// The state lives in the marker file next to the target's build
// intermediates. An existing, non-empty marker means enabled; its lines
// are the local paths wrappers may mock (the target's compiled inputs
// followed by its dependencies). An absent or empty marker means
// disabled.
//
// Only prebuild enables. Every other process can only move the target
// towards disabled by deleting the marker, so a wrapper that finds a
// corrupted artifact turns off the cache for all of its siblings
// without coordinating with them. Writes are lazy: enabling with the
// exact content already on disk leaves the file untouched, so its
// modification time does not trigger rebuilds in the build system.
//
// The controller also keeps the per-target disable record. When a
// commit is unusable for a target for network reasons (no meta, failed
// download), prebuild records it; later prebuilds of the same build skip
// the network round trip via [Controller.ShouldDisable]. The record is
// bound to the commit file it was made under, so the next prepare
// retires it. Fingerprint
// mismatches are not recorded, since local edits can make the same
// commit usable again.
package modecontrol
