// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/buildcache/cmd/buildcache/cli"
	"github.com/bureau-foundation/buildcache/lib/config"
	"github.com/bureau-foundation/buildcache/lib/counters"
	"github.com/bureau-foundation/buildcache/lib/git"
	"github.com/bureau-foundation/buildcache/lib/netclient"
	"github.com/bureau-foundation/buildcache/lib/remote"
	"github.com/bureau-foundation/buildcache/lib/workpool"
)

type prepareParams struct {
	ConfigFlag
	Check      bool   `flag:"check" desc:"exit with status 1 when no published commit is found (consumer)"`
	FromGit    int    `flag:"from-git" desc:"take candidates from the last N commits of the repository's HEAD instead of stdin"`
	Repository string `flag:"repository" desc:"git repository read by --from-git" default:"."`
}

func prepareCommand(streams IO) *cli.Command {
	var params prepareParams

	return &cli.Command{
		Name:    "prepare",
		Summary: "Select the commit this build consumes or produces",
		Usage:   "buildcache prepare [flags] [commit...]",
		Description: `Start a build by writing the build-wide commit file.

In consumer mode, candidate commits come from the arguments, from the
repository history with --from-git, or otherwise from stdin (one per
line, most recent first, as printed by "git rev-list"). Every candidate's commit marker is probed
concurrently and the first published one is selected. When none is
published the cache is disabled for the build.

In producer mode, the single commit being built is recorded as given.
With --from-git the repository's HEAD is recorded.

The selection replaces whatever a previous build left behind,
including a cache disabled after a network timeout.`,
		Examples: []cli.Example{
			{
				Description: "Consume the newest of the last 20 commits that has artifacts",
				Command:     "git rev-list --max-count 20 HEAD | buildcache prepare",
			},
			{
				Description: "Same, reading the history directly",
				Command:     "buildcache prepare --from-git 20",
			},
			{
				Description: "Record the commit a producer build publishes",
				Command:     "buildcache prepare $(git rev-parse HEAD)",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("prepare", &params)
		},
		Run: func(ctx context.Context, args []string) error {
			s, err := params.load(streams, "prepare")
			if err != nil {
				return err
			}

			candidates, err := params.candidates(ctx, streams, s.config.Mode, args)
			if err != nil {
				return err
			}

			var info remote.CommitInfo
			if s.config.Mode == config.Producer {
				if len(candidates) != 1 {
					return fmt.Errorf("producer mode needs exactly one commit, got %d", len(candidates))
				}
				info = remote.Available(candidates[0])
			} else {
				info = s.selectCommit(ctx, candidates)
			}

			if err := remote.WriteCommitInfo(s.config.CommitFilePath(), info); err != nil {
				return err
			}
			s.logger.Info("commit selected", "commit", info.String(), "candidates", len(candidates))
			fmt.Fprintln(streams.Stdout, info)

			if params.Check && !info.IsAvailable() {
				return &cli.ExitError{Code: 1}
			}
			return nil
		},
	}
}

// candidates returns the commits to consider, in preference order.
func (p *prepareParams) candidates(ctx context.Context, streams IO, mode config.Mode, args []string) ([]string, error) {
	switch {
	case len(args) > 0:
		return args, nil
	case p.FromGit > 0 && mode == config.Producer:
		head, err := git.NewRepository(p.Repository).Head(ctx)
		if err != nil {
			return nil, err
		}
		return []string{head}, nil
	case p.FromGit > 0:
		return git.NewRepository(p.Repository).RecentCommits(ctx, "HEAD", p.FromGit)
	default:
		return readCandidates(streams.Stdin)
	}
}

// readCandidates reads one commit per line, skipping blank lines.
func readCandidates(reader io.Reader) ([]string, error) {
	var candidates []string
	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			candidates = append(candidates, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading candidate commits: %w", err)
	}
	return candidates, nil
}

// selectCommit returns the first candidate with a published commit
// marker. A candidate whose probe failed is skipped; a timeout with
// disable_on_first_timeout makes the whole build unavailable.
func (s *session) selectCommit(ctx context.Context, candidates []string) remote.CommitInfo {
	if len(candidates) == 0 {
		return remote.Unavailable()
	}
	client, err := s.client()
	if err != nil {
		s.logger.Warn("cache client unavailable", "error", err)
		return remote.Unavailable()
	}
	service := remote.NewService(client, remote.URLBuilder{}, s.logger)

	published, err := workpool.Map(ctx, s.config.Concurrency, candidates, service.MarkerExists)
	if err != nil {
		s.logger.Warn("probing commit markers failed", "error", err)
		if netclient.AnyTimeout(err) {
			if bumpErr := counters.New(s.config.CountersPath()).Bump(counters.RemoteTimeout); bumpErr != nil {
				s.logger.Warn("updating build statistics failed", "error", bumpErr)
			}
			if s.config.DisableOnFirstTimeout {
				return remote.Unavailable()
			}
		}
		if errors.Is(err, context.Canceled) {
			return remote.Unavailable()
		}
	}

	for index, candidate := range candidates {
		if published[index] {
			return remote.Available(candidate)
		}
	}
	return remote.Unavailable()
}
