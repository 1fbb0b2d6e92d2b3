// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package remote defines the layout of the remote cache and the
// build-wide record of which commit the cache serves.
//
// The remote key space has three areas:
//
//	file/{fileKey}                        artifact archives
//	meta/{commit}-{suffix}.json           one meta per target context
//	marker/{commit}                       commit fully published
//
// where suffix is {target}-{configuration}-{platform}-{xcode}-{env}
// and env is the first twelve characters of the environment
// fingerprint. Artifacts are content-addressed and shared between
// commits; metas are per commit and per target context; the marker is
// written once a producer finished publishing every target of a commit,
// so consumers only pick commits whose metas are complete.
//
// [Service] wraps a [netclient.Client] with these operations.
//
// The commit file ([ReadCommitInfo], [WriteCommitInfo]) is written by
// "prepare" at the start of a build and read by every later step. It
// either names the commit to consume or says the cache is unavailable
// for the whole build. [DisableGlobally] is the kill switch: the first
// step that hits a network timeout rewrites the file to unavailable so
// the remaining targets do not each wait out their own timeout.
package remote
