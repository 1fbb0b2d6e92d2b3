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

var libtoolArity = map[string]int{
	"-o":               1,
	"-filelist":        1,
	"-dependency_info": 1,
	"-arch_only":       1,
	"-syslibroot":      1,
	"-L":               1,
}

var ldArity = map[string]int{
	"-o":                     1,
	"-filelist":              1,
	"-dependency_info":       1,
	"-arch":                  1,
	"-target":                1,
	"-isysroot":              1,
	"-syslibroot":            1,
	"-L":                     1,
	"-F":                     1,
	"-framework":             1,
	"-weak_framework":        1,
	"-Xlinker":               1,
	"-install_name":          1,
	"-exported_symbols_list": 1,
	"-rpath":                 1,
	"-object_path_lto":       1,
	"-lto_library":           1,
	"-add_ast_path":          1,
	"-e":                     1,
	"-bundle_loader":         1,
	"-compatibility_version": 1,
	"-current_version":       1,
	"-order_file":            1,
	"-map":                   1,
	"-alias":                 2,
	"-platform_version":      3,
	"-sectcreate":            3,
}

// productPath is the artifact path of a linked output: relative to
// TARGET_BUILD_DIR when inside it, otherwise its base name.
func productPath(t *target.Target, output string) string {
	if buildDir := t.Context.TargetBuildDir; buildDir != "" {
		relative, err := filepath.Rel(buildDir, output)
		if err == nil && relative != "." && !strings.HasPrefix(relative, "..") {
			return relative
		}
	}
	return filepath.Base(output)
}

// linkerInputs returns the objects read through -filelist (whose value
// may carry a ",dir" suffix) and positional object arguments.
func linkerInputs(scanned arguments, dir string) ([]string, error) {
	var inputs []string
	for _, list := range scanned.values["-filelist"] {
		path, base, _ := strings.Cut(list, ",")
		entries, err := readList(absolute(dir, path))
		if err != nil {
			return nil, fmt.Errorf("reading file list: %w", err)
		}
		for _, entry := range entries {
			if base != "" {
				entry = absolute(base, entry)
			}
			inputs = append(inputs, absolute(dir, entry))
		}
	}
	inputs = append(inputs, absoluteAll(dir, scanned.withExtension(".o", ".a"))...)
	return inputs, nil
}

// linkPlan links the product for -o from the artifact and writes the
// dependency info the build system asked for.
func linkPlan(t *target.Target, args []string, dir string, arity map[string]int) (Plan, error) {
	scanned, err := scanArguments(args, arity)
	if err != nil {
		return Plan{}, err
	}
	output := absolute(dir, scanned.value("-o"))
	if output == "" {
		return Plan{}, errors.New("no output")
	}
	plan := Plan{
		Links: []ArtifactLink{{Artifact: productPath(t, output), Output: output}},
	}
	if info := scanned.value("-dependency_info"); info != "" {
		inputs, err := linkerInputs(scanned, dir)
		if err != nil {
			return Plan{}, err
		}
		plan.DependencyInfo = append(plan.DependencyInfo, DependencyInfoFile{
			Path:    absolute(dir, info),
			Inputs:  inputs,
			Outputs: []string{output},
		})
	}
	return plan, nil
}

// Libtool wraps static library creation.
type Libtool struct{}

// Name implements Tool.
func (Libtool) Name() string { return "libtool" }

// Kind implements Tool.
func (Libtool) Kind() Kind { return Link }

// Plan implements Tool.
func (Libtool) Plan(t *target.Target, args []string, dir string) (Plan, error) {
	return linkPlan(t, args, dir, libtoolArity)
}

// Ld wraps the linker.
type Ld struct{}

// Name implements Tool.
func (Ld) Name() string { return "ld" }

// Kind implements Tool.
func (Ld) Kind() Kind { return Link }

// Plan implements Tool.
func (Ld) Plan(t *target.Target, args []string, dir string) (Plan, error) {
	return linkPlan(t, args, dir, ldArity)
}

var lipoArity = map[string]int{
	"-output": 1,
	"-arch":   2,
}

// Lipo wraps universal binary creation.
type Lipo struct{}

// Name implements Tool.
func (Lipo) Name() string { return "lipo" }

// Kind implements Tool.
func (Lipo) Kind() Kind { return Link }

// Plan implements Tool. Only -create is mocked; the universal product
// comes from the artifact.
func (Lipo) Plan(t *target.Target, args []string, dir string) (Plan, error) {
	scanned, err := scanArguments(args, lipoArity)
	if err != nil {
		return Plan{}, err
	}
	if !scanned.flags["-create"] {
		return Plan{}, errors.New("only -create is supported")
	}
	output := absolute(dir, scanned.value("-output"))
	if output == "" {
		return Plan{}, errors.New("no output")
	}
	return Plan{Links: []ArtifactLink{{Artifact: productPath(t, output), Output: output}}}, nil
}
