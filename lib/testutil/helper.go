// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"os"
	"os/exec"
	"testing"
)

// helperEnvironment names the role a re-executed test binary plays.
const helperEnvironment = "BUILDCACHE_TEST_HELPER"

// HelperCommand returns a command that re-runs the current test binary
// as helper process name. Extra environment entries (KEY=value) are
// appended; helper arguments follow "--".
func HelperCommand(t testing.TB, name string, env []string, args ...string) *exec.Cmd {
	t.Helper()
	executable, err := os.Executable()
	if err != nil {
		t.Fatalf("resolving test executable: %v", err)
	}
	commandArgs := append([]string{"-test.run=^TestHelperProcess$", "--"}, args...)
	command := exec.Command(executable, commandArgs...)
	command.Env = append(os.Environ(), helperEnvironment+"="+name)
	command.Env = append(command.Env, env...)
	return command
}

// HelperName returns the helper role of this process, or "" when the
// binary runs as a normal test.
func HelperName() string {
	return os.Getenv(helperEnvironment)
}

// HelperArgs returns the arguments passed after "--" to a helper
// process.
func HelperArgs() []string {
	for i, argument := range os.Args {
		if argument == "--" {
			return os.Args[i+1:]
		}
	}
	return nil
}
