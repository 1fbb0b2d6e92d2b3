// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wrapper

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tidwall/jsonc"

	"github.com/bureau-foundation/buildcache/lib/buildenv"
	"github.com/bureau-foundation/buildcache/lib/organizer"
	"github.com/bureau-foundation/buildcache/lib/target"
)

// swiftArity lists the swiftc and swift-frontend flags that take
// values.
var swiftArity = map[string]int{
	"-module-name":                      1,
	"-output-file-map":                  1,
	"-supplementary-output-file-map":    1,
	"-emit-module-path":                 1,
	"-emit-module-doc-path":             1,
	"-emit-module-source-info-path":     1,
	"-emit-module-interface-path":       1,
	"-emit-objc-header-path":            1,
	"-emit-dependencies-path":           1,
	"-emit-reference-dependencies-path": 1,
	"-emit-const-values-path":           1,
	"-serialize-diagnostics-path":       1,
	"-primary-file":                     1,
	"-o":                                1,
	"-target":                           1,
	"-target-variant":                   1,
	"-sdk":                              1,
	"-I":                                1,
	"-F":                                1,
	"-Fsystem":                          1,
	"-L":                                1,
	"-Xcc":                              1,
	"-Xfrontend":                        1,
	"-Xllvm":                            1,
	"-Xlinker":                          1,
	"-module-cache-path":                1,
	"-swift-version":                    1,
	"-j":                                1,
	"-num-threads":                      1,
	"-working-directory":                1,
	"-import-objc-header":               1,
	"-index-store-path":                 1,
	"-index-unit-output-path":           1,
	"-pch-output-dir":                   1,
	"-vfsoverlay":                       1,
	"-load-plugin-executable":           1,
	"-plugin-path":                      1,
	"-external-plugin-path":             1,
	"-package-name":                     1,
	"-debug-prefix-map":                 1,
	"-file-prefix-map":                  1,
	"-runtime-compatibility-version":    1,
	"-explicit-swift-module-map-file":   1,
	"-const-gather-protocols-file":      1,
	"-target-sdk-version":               1,
	"-target-sdk-name":                  1,
	"-resource-dir":                     1,
	"-enable-experimental-feature":      1,
	"-enable-upcoming-feature":          1,
	"-module-alias":                     1,
	"-D":                                1,
}

// outputFileMap is the per-source output description the swift driver
// reads. The empty key describes module-level outputs.
type outputFileMap map[string]map[string]string

func readOutputFileMap(path string) (outputFileMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading output file map: %w", err)
	}
	var entries outputFileMap
	if err := json.Unmarshal(jsonc.ToJSON(data), &entries); err != nil {
		return nil, fmt.Errorf("parsing output file map %s: %w", path, err)
	}
	return entries, nil
}

// swiftArch returns the compiled architecture: the -target triple's,
// or the only arch of the build context.
func swiftArch(scanned arguments, context buildenv.Context) (string, error) {
	if triple := scanned.value("-target"); triple != "" {
		return archFromTriple(triple), nil
	}
	if len(context.Archs) == 1 {
		return context.Archs[0], nil
	}
	return "", errors.New("cannot determine the compiled arch")
}

func moduleName(scanned arguments, context buildenv.Context) string {
	if name := scanned.value("-module-name"); name != "" {
		return name
	}
	return context.ModuleName
}

// moduleLinks links the emitted module, its companion files and the
// generated Objective-C header from the artifact.
func moduleLinks(scanned arguments, dir, arch, module string) []ArtifactLink {
	var links []ArtifactLink
	if path := scanned.value("-emit-module-path"); path != "" {
		path = absolute(dir, path)
		base := strings.TrimSuffix(path, organizer.SwiftmoduleExtensions[0])
		for i, extension := range organizer.SwiftmoduleExtensions {
			links = append(links, ArtifactLink{
				Artifact: organizer.ModuleFile(arch, module, extension),
				Output:   base + extension,
				Optional: i > 0,
			})
		}
	}
	if header := scanned.value("-emit-objc-header-path"); header != "" {
		links = append(links, ArtifactLink{
			Artifact: organizer.HeaderFile(arch, filepath.Base(header)),
			Output:   absolute(dir, header),
		})
	}
	return links
}

// Swiftc wraps the swift driver.
type Swiftc struct{}

// Name implements Tool.
func (Swiftc) Name() string { return "swiftc" }

// Kind implements Tool.
func (Swiftc) Kind() Kind { return Compile }

// Plan implements Tool. Objects and swiftdeps listed in the output file
// map are touched, dependency files written, and module outputs linked
// from the artifact.
func (Swiftc) Plan(t *target.Target, args []string, dir string) (Plan, error) {
	scanned, err := scanArguments(args, swiftArity)
	if err != nil {
		return Plan{}, err
	}
	sources := absoluteAll(dir, scanned.withExtension(".swift"))
	if len(sources) == 0 {
		return Plan{}, errors.New("no swift sources")
	}
	arch, err := swiftArch(scanned, t.Context)
	if err != nil {
		return Plan{}, err
	}

	plan := Plan{Inputs: sources, Arch: arch}
	if mapPath := scanned.value("-output-file-map"); mapPath != "" {
		entries, err := readOutputFileMap(absolute(dir, mapPath))
		if err != nil {
			return Plan{}, err
		}
		keys := make([]string, 0, len(entries))
		for key := range entries {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			outputs := entries[key]
			object := absolute(dir, outputs["object"])
			if object != "" {
				plan.Touch = append(plan.Touch, object)
			}
			if swiftDependencies := outputs["swift-dependencies"]; swiftDependencies != "" {
				plan.Touch = append(plan.Touch, absolute(dir, swiftDependencies))
			}
			if dependencies := outputs["dependencies"]; dependencies != "" {
				targets := []string{object}
				if object == "" {
					targets = []string{absolute(dir, key)}
				}
				plan.DependencyFiles = append(plan.DependencyFiles, DependencyFile{
					Path:    absolute(dir, dependencies),
					Targets: targets,
				})
			}
		}
	}
	plan.Links = moduleLinks(scanned, dir, arch, moduleName(scanned, t.Context))
	return plan, nil
}

// SwiftFrontend wraps the swift compiler frontend of an explicit
// pipeline: one module-emission process per arch and one compile
// process per primary file.
type SwiftFrontend struct{}

// Name implements Tool.
func (SwiftFrontend) Name() string { return "swift-frontend" }

// Kind implements Tool.
func (SwiftFrontend) Kind() Kind { return Compile }

// Plan implements Tool. The module-emission plan publishes the arch's
// decision; per-file compile plans await it.
func (SwiftFrontend) Plan(t *target.Target, args []string, dir string) (Plan, error) {
	scanned, err := scanArguments(args, swiftArity)
	if err != nil {
		return Plan{}, err
	}
	arch, err := swiftArch(scanned, t.Context)
	if err != nil {
		return Plan{}, err
	}
	primaries := absoluteAll(dir, scanned.values["-primary-file"])

	if len(primaries) == 0 && scanned.flags["-emit-module"] {
		plan := Plan{Role: Publish, Arch: arch}
		plan.Inputs = absoluteAll(dir, scanned.withExtension(".swift"))
		if len(plan.Inputs) == 0 {
			return plan, errors.New("no swift sources")
		}
		plan.Links = moduleLinks(scanned, dir, arch, moduleName(scanned, t.Context))
		modulePath := absolute(dir, scanned.value("-emit-module-path"))
		for _, path := range scanned.values["-emit-dependencies-path"] {
			plan.DependencyFiles = append(plan.DependencyFiles, DependencyFile{
				Path:    absolute(dir, path),
				Targets: []string{modulePath},
			})
		}
		return plan, nil
	}
	if len(primaries) == 0 {
		return Plan{}, errors.New("neither module emission nor a per-file compile")
	}

	plan := Plan{Role: Await, Arch: arch, Inputs: primaries}
	objects := absoluteAll(dir, scanned.values["-o"])
	plan.Touch = append(plan.Touch, objects...)
	for i, path := range scanned.values["-emit-dependencies-path"] {
		targets := []string{absolute(dir, path)}
		if i < len(objects) {
			targets = []string{objects[i]}
		}
		plan.DependencyFiles = append(plan.DependencyFiles, DependencyFile{
			Path:    absolute(dir, path),
			Targets: targets,
		})
	}
	plan.Touch = append(plan.Touch, absoluteAll(dir, scanned.values["-emit-reference-dependencies-path"])...)
	return plan, nil
}
