// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package artifactmeta defines the metadata published alongside every
// cached artifact and its JSON encoding.
//
// A producer publishes one [Meta] per (commit, target, configuration,
// platform, toolchain, environment) combination. The meta records the
// generic paths of every input the target's compilation read, the raw
// fingerprint over those inputs, and the fileKey naming the archive
// that holds the products. Consumers recompute the fingerprint from
// their local files and reuse the archive only on an exact match.
//
// The JSON field names are camelCase and form the wire contract between
// producers and consumers, which may run different versions of this
// tool. A copy of the meta is also stored at the root of the archive
// as {fileKey}.json so an extracted artifact is self-describing.
package artifactmeta
