// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package target assembles the per-target collaborators shared by the
// prebuild and postbuild phases and the compiler wrappers: the path
// remapper, the mode controller, the artifact organizer, the counters
// and the invocation history.
package target

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bureau-foundation/buildcache/lib/buildenv"
	"github.com/bureau-foundation/buildcache/lib/clock"
	"github.com/bureau-foundation/buildcache/lib/config"
	"github.com/bureau-foundation/buildcache/lib/counters"
	"github.com/bureau-foundation/buildcache/lib/fingerprint"
	"github.com/bureau-foundation/buildcache/lib/history"
	"github.com/bureau-foundation/buildcache/lib/modecontrol"
	"github.com/bureau-foundation/buildcache/lib/netclient"
	"github.com/bureau-foundation/buildcache/lib/organizer"
	"github.com/bureau-foundation/buildcache/lib/pathremap"
	"github.com/bureau-foundation/buildcache/lib/remote"
)

// OverlayFileName is the clang VFS overlay Xcode writes next to the
// target temp directories of a project.
const OverlayFileName = "all-product-headers.yaml"

// Target is one build target with everything needed to operate on its
// cache state.
type Target struct {
	Config  *config.Config
	Context buildenv.Context

	// Mapping converts between local and generic paths with the
	// built-in and configured tokens.
	Mapping *pathremap.Mapping

	// Remapper is Mapping preceded by the VFS overlay, when one exists.
	Remapper pathremap.Remapper

	Environment fingerprint.Environment
	Controller  *modecontrol.Controller
	Organizer   *organizer.ZipOrganizer
	Counters    *counters.File
	History     *history.Log

	Clock  clock.Clock
	Logger *slog.Logger

	lookup buildenv.Lookup
}

// Options configures New.
type Options struct {
	Config  *config.Config
	Context buildenv.Context

	// Lookup reads environment variables for the environment
	// fingerprint. Defaults to os.LookupEnv.
	Lookup buildenv.Lookup

	Clock  clock.Clock
	Logger *slog.Logger
}

// New builds the Target for options.Context. A path mapping that cannot
// be built is a configuration error.
func New(options Options) (*Target, error) {
	if options.Lookup == nil {
		options.Lookup = os.LookupEnv
	}
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.DiscardHandler)
	}
	cfg := options.Config
	context := options.Context
	logger := options.Logger.With("target", context.TargetName)

	extra := make([]pathremap.Pair, len(cfg.PathMappings))
	for i, mapping := range cfg.PathMappings {
		extra[i] = pathremap.Pair{Token: mapping.Token, Value: mapping.Value}
	}
	mapping, err := pathremap.FromContext(context, extra)
	if err != nil {
		return nil, fmt.Errorf("building path mapping for %s: %w", context.TargetName, err)
	}

	remapper, err := withOverlay(context, mapping, logger)
	if err != nil {
		return nil, err
	}

	names := cfg.FingerprintEnv
	if len(names) == 0 {
		names = fingerprint.DefaultEnvironmentVariables
	}

	return &Target{
		Config:      cfg,
		Context:     context,
		Mapping:     mapping,
		Remapper:    remapper,
		Environment: fingerprint.EnvironmentFromLookup(names, options.Lookup),
		Controller:  modecontrol.New(context, cfg.MarkerName, options.Clock, logger),
		Organizer:   organizer.NewZipOrganizer(context.CacheRoot(), logger, organizer.DefaultProcessors(mapping)...),
		Counters:    counters.New(cfg.CountersPath()),
		History:     &history.Log{Path: context.HistoryPath()},
		Clock:       options.Clock,
		Logger:      logger,
		lookup:      options.Lookup,
	}, nil
}

// withOverlay prepends the project's VFS overlay to mapping when the
// overlay file exists.
func withOverlay(context buildenv.Context, mapping *pathremap.Mapping, logger *slog.Logger) (pathremap.Remapper, error) {
	path := filepath.Join(filepath.Dir(context.TargetTempDir), OverlayFileName)
	overlay, err := pathremap.LoadOverlay(path, mapping)
	if errors.Is(err, os.ErrNotExist) {
		return mapping, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading VFS overlay: %w", err)
	}
	logger.Debug("using VFS overlay", "path", path, "entries", overlay.Len())
	return pathremap.Composite{overlay, mapping}, nil
}

// Sub returns the Target of sub-target name of a thinned aggregation
// target. The sub-target sees the build settings of the aggregate
// except for its own name, which is what the producer building it saw.
func (t *Target) Sub(name string) (*Target, error) {
	return New(Options{
		Config:  t.Config,
		Context: t.Context.WithTarget(name),
		Lookup:  renamedLookup(t.lookup, name),
		Clock:   t.Clock,
		Logger:  t.Logger,
	})
}

func renamedLookup(lookup buildenv.Lookup, name string) buildenv.Lookup {
	return func(variable string) (string, bool) {
		switch variable {
		case "TARGET_NAME", "PRODUCT_MODULE_NAME":
			return name, true
		}
		return lookup(variable)
	}
}

// ThinTargets lists the sub-targets of this target, or nil when it is
// not a thinned aggregation target.
func (t *Target) ThinTargets() []string {
	return t.Config.ThinTargets[t.Context.TargetName]
}

// URLs returns the remote key builder of this target.
func (t *Target) URLs() remote.URLBuilder {
	return remote.URLBuilder{
		Target:        t.Context.TargetName,
		Configuration: t.Context.Configuration,
		Platform:      t.Context.Platform,
		Xcode:         t.Context.XcodeBuild,
		Environment:   t.Environment,
	}
}

// Service returns the remote service of this target over client.
func (t *Target) Service(client netclient.Client) *remote.Service {
	return remote.NewService(client, t.URLs(), t.Logger)
}

// NewClient builds the network client described by cfg.
func NewClient(cfg *config.Config, c clock.Clock, logger *slog.Logger) (netclient.Client, error) {
	accessKey, secretKey := cfg.ObjectStoreCredentials()
	return netclient.New(netclient.Options{
		Address:        cfg.Address(),
		RequestTimeout: cfg.RequestTimeout,
		Retries:        cfg.Retries,
		RetryDelay:     cfg.RetryDelay,
		ObjectStore: netclient.ObjectStoreOptions{
			Endpoint:  cfg.ObjectStore.Endpoint,
			Region:    cfg.ObjectStore.Region,
			AccessKey: accessKey,
			SecretKey: secretKey,
			Insecure:  cfg.ObjectStore.Insecure,
		},
		Clock:  c,
		Logger: logger,
	})
}

// BumpCounters records positions, logging instead of failing: counters
// never change a build's outcome.
func (t *Target) BumpCounters(positions ...counters.Position) {
	if err := t.Counters.Bump(positions...); err != nil {
		t.Logger.Warn("updating build statistics failed", "error", err)
	}
}
