// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides buildcache's CBOR encoding configuration.
//
// Two serialization formats are used with a clear boundary:
//
//   - JSON for everything a producer publishes or another tool reads:
//     artifact metadata ({fileKey}.json), swift output-file maps.
//   - CBOR for private on-disk state shared between buildcache
//     processes of one build: the invocation-history log and the
//     per-target disable record.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2), so the
// same record always produces identical bytes. The history log is a
// CBOR sequence: records are appended back to back and read with
// [DecodeSequence].
//
// Struct types may use json tags; fxamacker/cbor falls back to them.
package codec
