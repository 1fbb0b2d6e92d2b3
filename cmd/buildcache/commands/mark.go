// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/buildcache/cmd/buildcache/cli"
	"github.com/bureau-foundation/buildcache/lib/config"
	"github.com/bureau-foundation/buildcache/lib/remote"
)

type markParams struct {
	ConfigFlag
}

func markCommand(streams IO) *cli.Command {
	var params markParams

	return &cli.Command{
		Name:    "mark",
		Summary: "Publish the commit marker after a producer build",
		Usage:   "buildcache mark [flags] [commit]",
		Description: `Mark a commit as fully published.

Consumers only select commits that carry a marker, so run this once
after every target of a producer build has finished postbuild. The
commit defaults to the one recorded by "buildcache prepare".`,
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("mark", &params)
		},
		Run: func(ctx context.Context, args []string) error {
			if len(args) > 1 {
				return fmt.Errorf("expected at most one commit, got %d", len(args))
			}
			s, err := params.load(streams, "mark")
			if err != nil {
				return err
			}
			if s.config.Mode != config.Producer {
				return errors.New("mark requires producer mode")
			}

			var commit string
			if len(args) == 1 {
				commit = args[0]
			} else {
				info, err := remote.ReadCommitInfo(s.config.CommitFilePath())
				if err != nil {
					return err
				}
				var ok bool
				if commit, ok = info.Commit(); !ok {
					return errors.New("no commit recorded; run \"buildcache prepare <commit>\" first or pass the commit")
				}
			}

			client, err := s.client()
			if err != nil {
				return err
			}
			if err := remote.NewService(client, remote.URLBuilder{}, s.logger).CreateMarker(ctx, commit); err != nil {
				return err
			}
			fmt.Fprintf(streams.Stdout, "marked %s\n", commit)
			return nil
		},
	}
}
