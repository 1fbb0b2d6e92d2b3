// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package pathremap rewrites machine-specific absolute paths into
// generic paths with placeholder tokens, and back.
//
// Producers publish dependency lists and headers in generic form
// ("$(SRCROOT)/Sources/App.swift"); consumers turn them back into local
// paths before fingerprinting. For the fingerprint of a round-tripped
// path to match, reversal must be exact: Local(Generic(p)) == p.
//
// A [Mapping] is an ordered list of (token, local value) pairs.
// Replacement is substring based, so a path may contain several tokens
// and a text file may contain many paths per line. A mapping must be
// injective: the same token with two values, or the same value under two
// tokens, would make reversal ambiguous, so [NewMapping] rejects both
// with [ErrAmbiguousMapping].
//
// An [Overlay] resolves clang VFS overlay files, which present headers
// at virtual locations inside build products while the real file lives
// in the source tree.
//
// [Composite] chains remappers: for each path it uses the first
// remapper whose result differs from the input.
//
// [RemapText] applies a line mapping to a whole text file while keeping
// empty lines and trailing newlines byte-for-byte.
package pathremap
