// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wrapper

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bureau-foundation/buildcache/lib/target"
)

var clangArity = map[string]int{
	"-o":                      1,
	"-MF":                     1,
	"-MT":                     1,
	"-MQ":                     1,
	"-target":                 1,
	"-arch":                   1,
	"-isysroot":               1,
	"-I":                      1,
	"-F":                      1,
	"-D":                      1,
	"-U":                      1,
	"-include":                1,
	"-include-pch":            1,
	"-iquote":                 1,
	"-isystem":                1,
	"-idirafter":              1,
	"-iframework":             1,
	"-ivfsoverlay":            1,
	"-ivfsstatcache":          1,
	"-Xclang":                 1,
	"-x":                      1,
	"-index-store-path":       1,
	"-index-unit-output-path": 1,
	"--serialize-diagnostics": 1,
	"-working-directory":      1,
}

var clangSourceExtensions = []string{".c", ".m", ".mm", ".cc", ".cpp", ".cxx"}

// Clang wraps single-source clang compiles (-c).
type Clang struct{}

// Name implements Tool.
func (Clang) Name() string { return "clang" }

// Kind implements Tool.
func (Clang) Kind() Kind { return Compile }

// Plan implements Tool. The object and serialized diagnostics are
// touched and the dependency file written.
func (Clang) Plan(t *target.Target, args []string, dir string) (Plan, error) {
	scanned, err := scanArguments(args, clangArity)
	if err != nil {
		return Plan{}, err
	}
	if !scanned.flags["-c"] {
		return Plan{}, errors.New("not a compile invocation")
	}
	sources := scanned.withExtension(clangSourceExtensions...)
	if len(sources) != 1 {
		return Plan{}, fmt.Errorf("expected one source, found %d", len(sources))
	}
	object := absolute(dir, scanned.value("-o"))
	if object == "" {
		return Plan{}, errors.New("no output object")
	}

	arch := scanned.value("-arch")
	if arch == "" {
		arch = archFromTriple(scanned.value("-target"))
	}
	plan := Plan{
		Inputs: []string{absolute(dir, sources[0])},
		Touch:  []string{object},
		Arch:   arch,
	}

	dependencies := absolute(dir, scanned.value("-MF"))
	if dependencies == "" && (scanned.flags["-MD"] || scanned.flags["-MMD"]) {
		dependencies = strings.TrimSuffix(object, filepath.Ext(object)) + ".d"
	}
	if dependencies != "" {
		plan.DependencyFiles = append(plan.DependencyFiles, DependencyFile{Path: dependencies, Targets: []string{object}})
	}
	if diagnostics := scanned.value("--serialize-diagnostics"); diagnostics != "" {
		plan.Touch = append(plan.Touch, absolute(dir, diagnostics))
	}
	return plan, nil
}
