// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netclient is the boundary between the cache and its remote
// storage.
//
// The cache needs five operations against a flat key space: check that
// a key exists, fetch a small object into memory, download a large
// object to a file, upload a file, and create an empty marker object.
// [Client] captures exactly these; callers never see transport details.
//
// Three backends implement [Client], selected by the cache address
// scheme in [New]:
//
//   - http:// and https:// — [HTTPClient], plain HEAD/GET/PUT requests
//     relative to the address.
//   - s3:// — [ObjectStoreClient], an S3-compatible bucket (address
//     s3://bucket/prefix) reached through minio-go.
//   - file:// — [DirectoryClient], a local or network-mounted
//     directory, used for tests and shared-filesystem setups.
//
// Every failure is reported as an [*Error] with a [Kind]. Callers branch
// on the kind: a [KindTimeout] may trigger the build-wide kill switch,
// a 404 [KindUnsuccessful] is an ordinary cache miss, and everything else
// disables the cache for one target. [Retrying] wraps any client with a
// bounded number of retries for transient kinds.
package netclient
