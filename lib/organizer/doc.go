// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package organizer materializes downloaded artifacts as local
// directories and selects the one a target's wrappers read from.
//
// Each target has a cache root ({TARGET_TEMP_DIR}/buildcache). An
// artifact with fileKey K is extracted to {root}/K and never modified
// afterwards except by post-processors; {root}/active is a symlink
// naming the directory wrappers should link products from.
//
// Extraction happens in a uniquely named sibling directory which is
// renamed into place only after the archive was fully written and every
// [Processor] ran, followed by a ".complete" sentinel. A directory
// without the sentinel is left over from an interrupted run and is
// replaced. Re-preparing an existing complete directory skips
// extraction but runs the processors again, so processors must be
// idempotent.
//
// [ZipOrganizer.Activate] swaps the active symlink with a rename, so a
// concurrently running wrapper sees either the previous or the new
// artifact, never a missing link.
//
// Archives are zip files whose entries use zstd, LZ4 or no compression
// (see [Compression]); readers accept all three. [PackArchive] writes them deterministically (sorted entries, fixed timestamps) so
// identical products yield byte-identical archives and therefore the
// same fileKey.
package organizer
