// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wrapper

import (
	"errors"
	"path/filepath"

	"github.com/bureau-foundation/buildcache/lib/organizer"
	"github.com/bureau-foundation/buildcache/lib/target"
)

var actoolArity = map[string]int{
	"--output-partial-info-plist":                1,
	"--compile":                                  1,
	"--platform":                                 1,
	"--minimum-deployment-target":                1,
	"--app-icon":                                 1,
	"--accent-color":                             1,
	"--target-device":                            1,
	"--output-format":                            1,
	"--generate-swift-asset-symbols":             1,
	"--generate-objc-asset-symbols":              1,
	"--development-region":                       1,
	"--bundle-identifier":                        1,
	"--enable-on-demand-resources":               1,
	"--filter-for-thinning-device-configuration": 1,
	"--filter-for-device-model":                  1,
	"--filter-for-device-os-version":             1,
	"--launch-image":                             1,
	"--product-type":                             1,
	"--export-dependency-info":                   1,
	"--sticker-pack-identifier-prefix":           1,
	"--asset-pack-output-specifications":         1,
	"--standalone-icon-behavior":                 1,
}

// Actool wraps the asset catalog compiler.
type Actool struct{}

// Name implements Tool.
func (Actool) Name() string { return "actool" }

// Kind implements Tool.
func (Actool) Kind() Kind { return Other }

// Plan implements Tool. The partial Info.plist and generated asset
// symbols come from the artifact; the compiled catalog is part of the
// product.
func (Actool) Plan(t *target.Target, args []string, dir string) (Plan, error) {
	scanned, err := scanArguments(args, actoolArity)
	if err != nil {
		return Plan{}, err
	}
	plist := absolute(dir, scanned.value("--output-partial-info-plist"))
	if plist == "" {
		return Plan{}, errors.New("no partial info plist output")
	}

	plan := Plan{
		Links: []ArtifactLink{{Artifact: organizer.AssetFile(filepath.Base(plist)), Output: plist}},
	}
	for _, flag := range []string{"--generate-swift-asset-symbols", "--generate-objc-asset-symbols"} {
		if path := absolute(dir, scanned.value(flag)); path != "" {
			plan.Links = append(plan.Links, ArtifactLink{Artifact: organizer.AssetFile(filepath.Base(path)), Output: path})
		}
	}
	if compile := scanned.value("--compile"); compile != "" {
		plan.Directories = append(plan.Directories, absolute(dir, compile))
	}
	if info := scanned.value("--export-dependency-info"); info != "" {
		plan.DependencyInfo = append(plan.DependencyInfo, DependencyInfoFile{
			Path:    absolute(dir, info),
			Inputs:  absoluteAll(dir, scanned.withExtension(".xcassets")),
			Outputs: []string{plist},
		})
	}
	return plan, nil
}
