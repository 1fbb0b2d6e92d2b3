// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package organizer

import "path/filepath"

// Artifact subdirectories. Products live at the artifact root.
const (
	IncludeDirectory     = "include"
	SwiftmoduleDirectory = "swiftmodule"
	AssetsDirectory      = "assets"
)

// SwiftmoduleExtensions are the per-arch module files an artifact
// carries.
var SwiftmoduleExtensions = []string{".swiftmodule", ".swiftdoc", ".swiftsourceinfo", ".abi.json"}

// ModuleFile is the artifact path of a module file of arch.
func ModuleFile(arch, module, extension string) string {
	return filepath.Join(SwiftmoduleDirectory, arch, module+extension)
}

// HeaderFile is the artifact path of a generated header of arch.
func HeaderFile(arch, name string) string {
	return filepath.Join(IncludeDirectory, arch, name)
}

// AssetFile is the artifact path of an asset catalog output.
func AssetFile(name string) string {
	return filepath.Join(AssetsDirectory, name)
}
