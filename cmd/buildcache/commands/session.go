// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/buildcache/cmd/buildcache/cli"
	"github.com/bureau-foundation/buildcache/lib/buildenv"
	"github.com/bureau-foundation/buildcache/lib/clock"
	"github.com/bureau-foundation/buildcache/lib/config"
	"github.com/bureau-foundation/buildcache/lib/modecontrol"
	"github.com/bureau-foundation/buildcache/lib/netclient"
	"github.com/bureau-foundation/buildcache/lib/target"
)

// ConfigFlag selects the configuration file. Embedded in every
// command's params.
type ConfigFlag struct {
	ConfigPath string `flag:"config" desc:"path to buildcache.yaml (default: $BUILDCACHE_CONFIG)"`
}

// session is the loaded configuration and logger of one command run.
type session struct {
	streams IO
	config  *config.Config
	logger  *slog.Logger
	clock   clock.Clock
}

// load reads and validates the configuration. The logger is scoped to
// command.
func (f ConfigFlag) load(streams IO, command string) (*session, error) {
	cfg, err := config.Resolve(f.ConfigPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &session{
		streams: streams,
		config:  cfg,
		logger:  cli.NewCommandLogger(streams.Stderr, cfg.SlogLevel()).With("command", command),
		clock:   clock.Real(),
	}, nil
}

func (s *session) client() (netclient.Client, error) {
	return target.NewClient(s.config, s.clock, s.logger)
}

// target assembles the target whose build settings are in the
// environment.
func (s *session) buildTarget() (*target.Target, error) {
	context, err := buildenv.Read(s.streams.Lookup)
	if err != nil {
		return nil, fmt.Errorf("reading build settings: %w", err)
	}
	return target.New(target.Options{
		Config:  s.config,
		Context: context,
		Lookup:  s.streams.Lookup,
		Clock:   s.clock,
		Logger:  s.logger,
	})
}

// disableFromEnvironment removes the marker of the target in the
// environment without a usable configuration. Failures are ignored:
// there is nothing left to fall back to.
func disableFromEnvironment(streams IO, markerName string) {
	context, err := buildenv.Read(streams.Lookup)
	if err != nil {
		return
	}
	if markerName == "" {
		markerName = config.Default().MarkerName
	}
	modecontrol.New(context, markerName, clock.Real(), slog.New(slog.DiscardHandler)).Disable()
}
