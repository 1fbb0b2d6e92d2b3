// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/buildcache/cmd/buildcache/cli"
	"github.com/bureau-foundation/buildcache/lib/config"
	"github.com/bureau-foundation/buildcache/lib/postbuild"
	"github.com/bureau-foundation/buildcache/lib/prebuild"
)

type prebuildParams struct {
	ConfigFlag
}

func prebuildCommand(streams IO) *cli.Command {
	var params prebuildParams

	return &cli.Command{
		Name:    "prebuild",
		Summary: "Fetch and activate the target's cached artifact",
		Usage:   "buildcache prebuild [flags]",
		Description: `Decide whether the current target builds from the cache.

Runs as the first build phase of a target with Xcode's build settings
in the environment. Fetches the target's metadata for the commit chosen
by "buildcache prepare", fingerprints the local copies of the recorded
dependencies, and on a match downloads and activates the artifact and
enables the target's marker so the bc-* wrappers reuse it.

Network and local failures only disable the cache for the target. An
invalid configuration disables it and fails the phase.`,
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("prebuild", &params)
		},
		Run: func(ctx context.Context, args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument %q", args[0])
			}
			s, err := params.load(streams, "prebuild")
			if err != nil {
				disableFromEnvironment(streams, "")
				return err
			}
			t, err := s.buildTarget()
			if err != nil {
				disableFromEnvironment(streams, s.config.MarkerName)
				return err
			}
			client, err := s.client()
			if err != nil {
				disableFromEnvironment(streams, s.config.MarkerName)
				return err
			}

			result, err := prebuild.New(t, client).Run(ctx)
			if err != nil {
				return err
			}
			printResult(streams, result, "")
			return nil
		},
	}
}

func printResult(streams IO, result prebuild.Result, indent string) {
	switch {
	case result.FileKey != "":
		fmt.Fprintf(streams.Stdout, "%s%s: %s %s\n", indent, result.Target, result.Outcome, result.FileKey)
	case result.Reason != "":
		fmt.Fprintf(streams.Stdout, "%s%s: %s (%s)\n", indent, result.Target, result.Outcome, result.Reason)
	default:
		fmt.Fprintf(streams.Stdout, "%s%s: %s\n", indent, result.Target, result.Outcome)
	}
	for _, sub := range result.Subtargets {
		printResult(streams, sub, indent+"  ")
	}
}

type postbuildParams struct {
	ConfigFlag
}

func postbuildCommand(streams IO) *cli.Command {
	var params postbuildParams

	return &cli.Command{
		Name:    "postbuild",
		Summary: "Publish the target's artifact or record the cache outcome",
		Usage:   "buildcache postbuild [flags]",
		Description: `Finish a target after its build phases ran.

In producer mode, collects the target's dependencies from the
compiler's .d files, packages the products, module interfaces,
generated headers and asset outputs, and uploads the artifact and its
metadata for the current commit. An artifact already present remotely
is not uploaded again.

In consumer mode, records whether the target was built from the cache.`,
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("postbuild", &params)
		},
		Run: func(ctx context.Context, args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument %q", args[0])
			}
			s, err := params.load(streams, "postbuild")
			if err != nil {
				return err
			}
			t, err := s.buildTarget()
			if err != nil {
				return err
			}
			client, err := s.client()
			if err != nil {
				return err
			}

			report, err := postbuild.New(t, client).Run(ctx)
			if err != nil {
				return fmt.Errorf("postbuild of %s: %w", t.Context.TargetName, err)
			}
			switch {
			case report.Mode == config.Consumer:
				fmt.Fprintf(streams.Stdout, "%s: %s\n", report.Target, report.Recorded)
			case report.Uploaded:
				fmt.Fprintf(streams.Stdout, "%s: published %s\n", report.Target, report.FileKey)
			default:
				fmt.Fprintf(streams.Stdout, "%s: %s already published\n", report.Target, report.FileKey)
			}
			return nil
		},
	}
}
