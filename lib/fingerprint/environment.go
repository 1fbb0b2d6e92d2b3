// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fingerprint

// Environment is the digest of one build context: an ordered list of
// environment values plus the schema version. Targets sharing the same
// context share the same Environment.
type Environment Raw

// DefaultEnvironmentVariables are the build settings that distinguish
// one build context from another. Order matters.
var DefaultEnvironmentVariables = []string{
	"TARGET_NAME",
	"CONFIGURATION",
	"PLATFORM_NAME",
	"XCODE_PRODUCT_BUILD_VERSION",
	"CURRENT_ARCH",
	"ARCHS",
	"SWIFT_VERSION",
	"SWIFT_ACTIVE_COMPILATION_CONDITIONS",
	"GCC_PREPROCESSOR_DEFINITIONS",
	"OTHER_SWIFT_FLAGS",
	"OTHER_CFLAGS",
	"CLANG_COVERAGE_MAPPING",
	"ENABLE_TESTABILITY",
	"IPHONEOS_DEPLOYMENT_TARGET",
	"MACOSX_DEPLOYMENT_TARGET",
}

// NewEnvironment hashes values in order together with schemaVersion.
func NewEnvironment(values []string, schemaVersion string) Environment {
	accumulator := newAccumulator(environmentDomain)
	accumulator.AppendString(schemaVersion)
	for _, value := range values {
		accumulator.AppendString(value)
	}
	return Environment(accumulator.Generate())
}

// EnvironmentFromLookup reads each named variable through lookup and
// hashes the values with SchemaVersion. Unset variables contribute an
// empty value so that their position still counts.
func EnvironmentFromLookup(names []string, lookup func(string) (string, bool)) Environment {
	values := make([]string, len(names))
	for i, name := range names {
		value, _ := lookup(name)
		values[i] = value
	}
	return NewEnvironment(values, SchemaVersion)
}
