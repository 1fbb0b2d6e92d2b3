// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package postbuild runs after a target finished building.
//
// In producer mode it publishes the target: the compiler-written .d
// files give the inputs and dependencies, their content gives the raw
// fingerprint, and the product, module files, generated headers and
// asset catalog outputs are packed into a deterministic archive named
// by a content-derived fileKey. The archive is uploaded only when no
// archive with that fileKey exists yet; the meta is always uploaded.
//
// In consumer mode it records whether the target ended the build with
// the cache still enabled.
package postbuild
