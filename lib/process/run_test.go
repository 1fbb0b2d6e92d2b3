// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"testing"

	"github.com/bureau-foundation/buildcache/lib/testutil"
)

func TestHelperProcess(t *testing.T) {
	switch testutil.HelperName() {
	case "exit-with":
		args := testutil.HelperArgs()
		code, _ := strconv.Atoi(args[0])
		fmt.Fprint(os.Stdout, "out:"+strings.Join(args[1:], ","))
		fmt.Fprint(os.Stderr, "err")
		os.Exit(code)
	case "fatal":
		Fatal(errors.New(strings.Join(testutil.HelperArgs(), " ")))
	}
}

func TestRunForwardsStatusAndOutput(t *testing.T) {
	for _, code := range []int{0, 1, 3} {
		t.Run(strconv.Itoa(code), func(t *testing.T) {
			helper := testutil.HelperCommand(t, "exit-with", nil, strconv.Itoa(code), "a", "b")
			var stdout, stderr bytes.Buffer
			status, err := Run(context.Background(), Command{
				Path:   helper.Path,
				Args:   helper.Args[1:],
				Env:    helper.Env,
				Stdout: &stdout,
				Stderr: &stderr,
			})
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if status != code {
				t.Errorf("status = %d, want %d", status, code)
			}
			if stdout.String() != "out:a,b" {
				t.Errorf("stdout = %q, want %q", stdout.String(), "out:a,b")
			}
			if stderr.String() != "err" {
				t.Errorf("stderr = %q, want %q", stderr.String(), "err")
			}
		})
	}
}

func TestRunMissingTool(t *testing.T) {
	_, err := Run(context.Background(), Command{Path: "buildcache-no-such-tool"})
	if err == nil {
		t.Fatal("Run should fail for a tool that is not on PATH")
	}
}

func TestFatalReportsAndExits(t *testing.T) {
	helper := testutil.HelperCommand(t, "fatal", nil, "no", "commit", "file")
	var stderr bytes.Buffer
	helper.Stderr = &stderr
	err := helper.Run()
	var exitError *exec.ExitError
	if !errors.As(err, &exitError) || exitError.ExitCode() != 1 {
		t.Fatalf("helper error = %v, want exit status 1", err)
	}
	if stderr.String() != "error: no commit file\n" {
		t.Errorf("stderr = %q, want %q", stderr.String(), "error: no commit file\n")
	}
}
