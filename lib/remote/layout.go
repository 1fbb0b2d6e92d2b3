// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"strings"

	"github.com/bureau-foundation/buildcache/lib/fingerprint"
)

// environmentPrefixLength is the number of environment fingerprint
// characters used in meta keys.
const environmentPrefixLength = 12

// URLBuilder builds remote keys for one target context.
type URLBuilder struct {
	Target        string
	Configuration string
	Platform      string
	Xcode         string
	Environment   fingerprint.Environment
}

// Suffix identifies the target context within a commit.
func (b URLBuilder) Suffix() string {
	environment := string(b.Environment)
	if len(environment) > environmentPrefixLength {
		environment = environment[:environmentPrefixLength]
	}
	return strings.Join([]string{
		sanitize(b.Target),
		sanitize(b.Configuration),
		sanitize(b.Platform),
		sanitize(b.Xcode),
		environment,
	}, "-")
}

// ArtifactKey returns the key of an artifact archive.
func (b URLBuilder) ArtifactKey(fileKey string) string {
	return "file/" + fileKey
}

// MetaKey returns the key of this context's meta for commit.
func (b URLBuilder) MetaKey(commit string) string {
	return "meta/" + commit + "-" + b.Suffix() + ".json"
}

// MarkerKey returns the key of the commit marker. It does not depend on
// the target context.
func (b URLBuilder) MarkerKey(commit string) string {
	return MarkerKey(commit)
}

// MarkerKey returns the key of the commit marker.
func MarkerKey(commit string) string {
	return "marker/" + commit
}

// sanitize replaces characters that would change the key structure.
func sanitize(component string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ' ':
			return '_'
		}
		return r
	}, component)
}
