// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wrapper

import (
	"os"
	"os/exec"
	"path/filepath"

	"github.com/bureau-foundation/buildcache/lib/config"
)

// ResolveTool finds the real executable for tool. The configured tools
// map wins; then the default toolchain and the developer directory are
// searched; last, the bare name is looked up through PATH.
func ResolveTool(cfg *config.Config, developerDir, tool string) string {
	if cfg != nil {
		if path := cfg.ToolPath(tool); path != "" {
			return path
		}
	}
	if developerDir != "" {
		candidates := []string{
			filepath.Join(developerDir, "Toolchains", "XcodeDefault.xctoolchain", "usr", "bin", tool),
			filepath.Join(developerDir, "usr", "bin", tool),
		}
		for _, candidate := range candidates {
			if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
				return candidate
			}
		}
	}
	if path, err := exec.LookPath(tool); err == nil {
		return path
	}
	return tool
}
