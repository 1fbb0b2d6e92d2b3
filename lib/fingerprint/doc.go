// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package fingerprint computes the content digests that decide whether a
// remote artifact may replace a local build.
//
// A [Raw] fingerprint is the lowercase hex BLAKE3 digest of an ordered
// stream of strings and file contents. Order is part of the contract:
// the same items appended in a different order produce a different
// fingerprint. Each item is framed with a kind byte and a length so that
// "ab"+"c" and "a"+"bc" never collide.
//
// A [Fingerprint] pairs the raw digest with a context-specific one,
// hash(raw ++ environment), binding the content to one build context
// (toolchain, configuration, platform, target) without re-hashing every
// source file per context. The context pass uses a fresh hasher and
// never disturbs the accumulator's running digest.
//
// Digests use BLAKE3 keyed mode with per-domain keys (content,
// context, environment, artifact), so a digest from one domain can never
// be mistaken for another. Fingerprints detect change; they are not a
// security boundary.
//
// Missing files: [Accumulator.AppendFile] fails with [ErrMissingFile],
// but [AppendDependencies] logs and skips missing dependencies. Producer
// dependency lists routinely name files that were pruned later, and a
// missing file must not abort the build. The fingerprint is then
// computed as if that file's content were absent, which favors
// availability over strictness.
package fingerprint
