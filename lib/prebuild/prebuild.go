// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package prebuild

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/bureau-foundation/buildcache/lib/config"
	"github.com/bureau-foundation/buildcache/lib/counters"
	"github.com/bureau-foundation/buildcache/lib/fingerprint"
	"github.com/bureau-foundation/buildcache/lib/netclient"
	"github.com/bureau-foundation/buildcache/lib/organizer"
	"github.com/bureau-foundation/buildcache/lib/remote"
	"github.com/bureau-foundation/buildcache/lib/target"
	"github.com/bureau-foundation/buildcache/lib/workpool"
)

// Outcome is the prebuild decision for a target.
type Outcome int

const (
	// Disabled means the cache was not consulted or could not be used.
	Disabled Outcome = iota
	// Miss means the local inputs differ from the published ones.
	Miss
	// Hit means the artifact is active and the marker is enabled.
	Hit
)

func (o Outcome) String() string {
	switch o {
	case Disabled:
		return "disabled"
	case Miss:
		return "miss"
	case Hit:
		return "hit"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Result reports what prebuild decided for one target.
type Result struct {
	Target  string
	Outcome Outcome

	// FileKey is the activated artifact on a hit.
	FileKey string

	// Reason explains a Disabled or Miss outcome.
	Reason string

	// Subtargets holds the per-sub-target results of a thinned
	// aggregation target, in configuration order.
	Subtargets []Result

	inputs       []string
	dependencies []string
}

// Prebuild runs the consumer prebuild phase.
type Prebuild struct {
	target *target.Target
	client netclient.Client
}

// New returns a Prebuild for t fetching through client.
func New(t *target.Target, client netclient.Client) *Prebuild {
	return &Prebuild{target: t, client: client}
}

// Run decides the cache mode of the target. The returned error is
// non-nil only for configuration errors; the marker is disabled in that
// case too.
func (p *Prebuild) Run(ctx context.Context) (Result, error) {
	t := p.target
	resetBuildState(t)
	if t.Config.Mode == config.Producer {
		return disable(t, Result{Target: t.Context.TargetName}, "producer builds compile locally"), nil
	}

	build := readBuild(t)
	names := t.ThinTargets()
	if len(names) == 0 {
		return p.runTarget(ctx, t, build), nil
	}
	return p.runThin(ctx, build, names)
}

// buildState is the build-wide commit decision and the time prepare
// recorded it.
type buildState struct {
	info       remote.CommitInfo
	preparedAt time.Time
}

func readBuild(t *target.Target) buildState {
	path := t.Config.CommitFilePath()
	info, err := remote.ReadCommitInfo(path)
	if err != nil {
		t.Logger.Warn("treating unreadable commit file as unavailable", "error", err)
		return buildState{info: remote.Unavailable()}
	}
	preparedAt, err := remote.PreparedAt(path)
	if err != nil {
		t.Logger.Warn("treating unreadable commit file as unavailable", "error", err)
		return buildState{info: remote.Unavailable()}
	}
	return buildState{info: info, preparedAt: preparedAt}
}

// resetBuildState clears per-build files a previous build may have left
// behind.
func resetBuildState(t *target.Target) {
	if err := t.Controller.ResetDecisions(t.Context.Archs); err != nil {
		t.Logger.Warn("resetting frontend decisions failed", "error", err)
	}
	if err := t.History.Reset(); err != nil {
		t.Logger.Warn("resetting invocation history failed", "error", err)
	}
}

// runTarget performs the full decision for a single target.
func (p *Prebuild) runTarget(ctx context.Context, t *target.Target, build buildState) Result {
	result := Result{Target: t.Context.TargetName}

	if t.Controller.ShouldDisable(build.info, build.preparedAt) {
		return disable(t, result, "commit "+build.info.String()+" is not usable")
	}
	commit, _ := build.info.Commit()
	service := t.Service(p.client)

	meta, err := service.FetchMeta(ctx, commit)
	if err != nil {
		return p.networkFailure(t, result, build, err)
	}

	dependencies, err := t.Remapper.Local(meta.Dependencies)
	if err != nil {
		return disable(t, result, fmt.Sprintf("remapping dependencies: %v", err))
	}
	inputs, err := t.Remapper.Local(meta.Inputs)
	if err != nil {
		return disable(t, result, fmt.Sprintf("remapping inputs: %v", err))
	}

	accumulator := fingerprint.New()
	if err := fingerprint.AppendDependencies(accumulator, dependencies, t.Logger); err != nil {
		return disable(t, result, fmt.Sprintf("fingerprinting dependencies: %v", err))
	}
	if local := accumulator.Generate(); string(local) != meta.RawFingerprint {
		t.Logger.Info("local inputs differ from published artifact",
			"commit", commit,
			"local", local,
			"published", meta.RawFingerprint,
		)
		result = disable(t, result, "fingerprint mismatch")
		result.Outcome = Miss
		return result
	}

	dir, err := p.materialize(ctx, t, service, meta.FileKey)
	if err != nil {
		var netErr *netclient.Error
		if errors.As(err, &netErr) {
			return p.networkFailure(t, result, build, err)
		}
		return disable(t, result, err.Error())
	}
	if err := t.Organizer.Activate(dir); err != nil {
		return disable(t, result, err.Error())
	}
	if err := t.Controller.Enable(inputs, dependencies); err != nil {
		return disable(t, result, err.Error())
	}

	t.Logger.Info("using cached artifact", "commit", commit, "file_key", meta.FileKey)
	result.Outcome = Hit
	result.FileKey = meta.FileKey
	result.inputs = inputs
	result.dependencies = dependencies
	return result
}

// materialize makes the artifact for fileKey available locally and
// returns its prepared directory.
func (p *Prebuild) materialize(ctx context.Context, t *target.Target, service *remote.Service, fileKey string) (string, error) {
	location, err := t.Organizer.PrepareLocation(fileKey)
	if err != nil {
		return "", err
	}
	switch location := location.(type) {
	case organizer.ArtifactExists:
		t.BumpCounters(counters.ArtifactReuse)
		return t.Organizer.Prepare(location.Dir)
	case organizer.PreparedForArtifact:
		if err := service.DownloadArtifact(ctx, fileKey, location.Archive); err != nil {
			return "", err
		}
		defer os.Remove(location.Archive)
		t.BumpCounters(counters.ArtifactDownload)
		return t.Organizer.Prepare(location.Archive)
	default:
		return "", fmt.Errorf("unexpected artifact location %T", location)
	}
}

// networkFailure applies the network error policy: a timeout may turn
// the cache off for the rest of the build, any other failure records
// the commit as unusable for this target.
func (p *Prebuild) networkFailure(t *target.Target, result Result, build buildState, err error) Result {
	if netclient.AnyTimeout(err) {
		t.BumpCounters(counters.RemoteTimeout)
		if t.Config.DisableOnFirstTimeout {
			if disableErr := remote.DisableGlobally(t.Config.CommitFilePath(), err.Error(), t.Logger); disableErr != nil {
				t.Logger.Error("disabling cache for the build failed", "error", disableErr)
			}
		}
		return disable(t, result, err.Error())
	}
	commit, _ := build.info.Commit()
	if recordErr := t.Controller.RecordUnavailable(commit, build.preparedAt, err.Error()); recordErr != nil {
		t.Logger.Warn("recording unusable commit failed", "error", recordErr)
	}
	return disable(t, result, err.Error())
}

// disable turns the target's marker off and returns result as Disabled.
func disable(t *target.Target, result Result, reason string) Result {
	t.Logger.Info("cache disabled for target", "reason", reason)
	if err := t.Controller.Disable(); err != nil {
		t.Logger.Warn("removing marker failed", "error", err)
	}
	result.Outcome = Disabled
	result.Reason = reason
	return result
}

// runThin fetches every sub-target of an aggregation target and enables
// the aggregate when all of them hit.
func (p *Prebuild) runThin(ctx context.Context, build buildState, names []string) (Result, error) {
	t := p.target
	result := Result{Target: t.Context.TargetName}

	subs := make([]*target.Target, len(names))
	for i, name := range names {
		sub, err := t.Sub(name)
		if err != nil {
			disable(t, result, err.Error())
			return result, err
		}
		resetBuildState(sub)
		subs[i] = sub
	}

	results, err := workpool.Map(ctx, t.Config.Concurrency, subs, func(ctx context.Context, sub *target.Target) (Result, error) {
		return p.runTarget(ctx, sub, build), nil
	})
	if err != nil {
		return disable(t, result, err.Error()), nil
	}
	result.Subtargets = results

	var inputs, dependencies []string
	for _, sub := range results {
		if sub.Outcome != Hit {
			result = disable(t, result, fmt.Sprintf("sub-target %s: %s", sub.Target, sub.Outcome))
			if sub.Outcome == Miss {
				result.Outcome = Miss
			}
			return result, nil
		}
		inputs = append(inputs, sub.inputs...)
		dependencies = append(dependencies, sub.dependencies...)
	}

	if err := t.Controller.Enable(inputs, dependencies); err != nil {
		return disable(t, result, err.Error()), nil
	}
	result.Outcome = Hit
	return result, nil
}
