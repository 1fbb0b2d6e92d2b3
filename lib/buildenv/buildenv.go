// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package buildenv reads the build-system context that every buildcache
// binary receives through environment variables: where the target's
// temporary files live, what it is called, and which configuration,
// platform and toolchain it is built with.
//
// Values are used verbatim as fingerprint and state-machine inputs.
// Missing required variables are configuration errors, which are fatal
// to the prebuild phase only (wrappers fall back instead).
package buildenv

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Context is the per-target build context.
type Context struct {
	TargetTempDir     string
	TargetName        string
	ModuleName        string
	Configuration     string
	Platform          string
	XcodeBuild        string
	SourceRoot        string
	ObjectRoot        string
	BuildDir          string
	BuiltProductsDir  string
	TargetBuildDir    string
	DerivedSourcesDir string
	ObjectFileDir     string
	Archs             []string
	FullProductName   string
	ExecutablePath    string
	DeveloperDir      string
	SDKRoot           string
}

// Lookup reads one variable; it has the signature of os.LookupEnv.
type Lookup func(name string) (string, bool)

// required lists the variables every phase depends on.
var required = []string{
	"TARGET_TEMP_DIR",
	"TARGET_NAME",
	"CONFIGURATION",
	"PLATFORM_NAME",
	"SRCROOT",
}

// FromEnvironment reads the context from the process environment.
func FromEnvironment() (Context, error) {
	return Read(os.LookupEnv)
}

// Read builds a Context through lookup. All missing required variables
// are reported together.
func Read(lookup Lookup) (Context, error) {
	var errs []error
	for _, name := range required {
		if value, ok := lookup(name); !ok || value == "" {
			errs = append(errs, fmt.Errorf("%s is not set", name))
		}
	}
	if len(errs) > 0 {
		return Context{}, fmt.Errorf("reading build environment: %w", errors.Join(errs...))
	}

	get := func(name string) string {
		value, _ := lookup(name)
		return value
	}

	result := Context{
		TargetTempDir:     get("TARGET_TEMP_DIR"),
		TargetName:        get("TARGET_NAME"),
		ModuleName:        get("PRODUCT_MODULE_NAME"),
		Configuration:     get("CONFIGURATION"),
		Platform:          get("PLATFORM_NAME"),
		XcodeBuild:        get("XCODE_PRODUCT_BUILD_VERSION"),
		SourceRoot:        get("SRCROOT"),
		ObjectRoot:        get("OBJROOT"),
		BuildDir:          get("BUILD_DIR"),
		BuiltProductsDir:  get("BUILT_PRODUCTS_DIR"),
		TargetBuildDir:    get("TARGET_BUILD_DIR"),
		DerivedSourcesDir: get("DERIVED_SOURCES_DIR"),
		ObjectFileDir:     get("OBJECT_FILE_DIR_normal"),
		Archs:             strings.Fields(get("ARCHS")),
		FullProductName:   get("FULL_PRODUCT_NAME"),
		ExecutablePath:    get("EXECUTABLE_PATH"),
		DeveloperDir:      get("DEVELOPER_DIR"),
		SDKRoot:           get("SDKROOT"),
	}
	if result.ModuleName == "" {
		result.ModuleName = result.TargetName
	}
	return result, nil
}

// CacheRoot is the per-target directory holding extracted artifacts and
// the active pointer.
func (c Context) CacheRoot() string {
	return filepath.Join(c.TargetTempDir, "buildcache")
}

// MarkerPath is the location of the target's marker file.
func (c Context) MarkerPath(markerName string) string {
	return filepath.Join(c.TargetTempDir, markerName)
}

// HistoryPath is the target's invocation-history log.
func (c Context) HistoryPath() string {
	return filepath.Join(c.CacheRoot(), "history.compile")
}

// DisableRecordPath is the target's per-commit disable record.
func (c Context) DisableRecordPath() string {
	return filepath.Join(c.CacheRoot(), "disabled.cbor")
}

// DecisionPath is the lock file through which the swift module-emission
// process publishes its decision for arch to the per-file compile
// processes.
func (c Context) DecisionPath(arch string) string {
	return filepath.Join(c.CacheRoot(), c.ModuleName+"-"+arch+".decision")
}

// WithTarget returns a copy of the context for a sub-target of a
// thinned aggregation target. The sub-target keeps its own cache root
// below the aggregate's.
func (c Context) WithTarget(name string) Context {
	sub := c
	sub.TargetName = name
	sub.ModuleName = name
	sub.TargetTempDir = filepath.Join(c.CacheRoot(), "thin", name)
	return sub
}
