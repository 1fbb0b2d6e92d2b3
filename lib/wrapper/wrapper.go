// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wrapper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/bureau-foundation/buildcache/lib/buildenv"
	"github.com/bureau-foundation/buildcache/lib/clock"
	"github.com/bureau-foundation/buildcache/lib/config"
	"github.com/bureau-foundation/buildcache/lib/counters"
	"github.com/bureau-foundation/buildcache/lib/depfile"
	"github.com/bureau-foundation/buildcache/lib/filelock"
	"github.com/bureau-foundation/buildcache/lib/history"
	"github.com/bureau-foundation/buildcache/lib/modecontrol"
	"github.com/bureau-foundation/buildcache/lib/organizer"
	"github.com/bureau-foundation/buildcache/lib/process"
	"github.com/bureau-foundation/buildcache/lib/target"
	"github.com/bureau-foundation/buildcache/lib/version"
)

// Kind classifies what a tool does in the build graph.
type Kind int

const (
	// Compile tools turn sources into objects; mocked compile
	// invocations are recorded in the history.
	Compile Kind = iota
	// Link tools consume objects; their fallback replays the history.
	Link
	// Other tools neither record nor replay.
	Other
)

// Role ties a plan to the per-arch module-emission decision.
type Role int

const (
	// Independent plans decide from the marker alone.
	Independent Role = iota
	// Publish plans decide and publish the decision.
	Publish
	// Await plans wait for the published decision.
	Await
)

// Decision file contents.
const (
	decisionMock    = "mock"
	decisionCompile = "compile"
)

// decisionPollInterval is how often an awaiting compile re-reads the
// decision file.
const decisionPollInterval = 50 * time.Millisecond

// Invocation is one wrapper call.
type Invocation struct {
	Args []string
	Dir  string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// ArtifactLink hard-links a file of the active artifact to an output.
type ArtifactLink struct {
	// Artifact is the path relative to the artifact directory.
	Artifact string
	Output   string

	// Optional links are skipped when the artifact lacks the file.
	Optional bool
}

// DependencyFile is a Makefile dependency file to write.
type DependencyFile struct {
	Path    string
	Targets []string

	// Prerequisites default to the marker's allowed paths when nil.
	Prerequisites []string
}

// DependencyInfoFile is a linker dependency-info file to write.
type DependencyInfoFile struct {
	Path    string
	Inputs  []string
	Outputs []string
}

// Plan is what a wrapper does instead of running the real tool.
type Plan struct {
	// Inputs must all be allowed by the marker.
	Inputs []string

	Links           []ArtifactLink
	Touch           []string
	Directories     []string
	DependencyFiles []DependencyFile
	DependencyInfo  []DependencyInfoFile

	Role Role
	Arch string
}

// Tool scans the command line of one real tool.
type Tool interface {
	// Name is the real tool's executable name.
	Name() string
	Kind() Kind

	// Plan returns the mock plan for args. An error means the
	// invocation is not understood and must run the real tool.
	Plan(t *target.Target, args []string, dir string) (Plan, error)
}

// RunFunc runs a real tool; process.Run in production.
type RunFunc func(ctx context.Context, command process.Command) (int, error)

// Wrapper runs one tool invocation.
type Wrapper struct {
	Tool Tool

	// Target is nil when the configuration or build context could not
	// be read; every invocation then runs the real tool.
	Target *target.Target

	Config       *config.Config
	DeveloperDir string

	Run    RunFunc
	Clock  clock.Clock
	Logger *slog.Logger
}

// New returns a wrapper for tool. t and cfg may be nil.
func New(tool Tool, t *target.Target, cfg *config.Config, logger *slog.Logger) *Wrapper {
	w := &Wrapper{
		Tool:   tool,
		Target: t,
		Config: cfg,
		Run:    process.Run,
		Clock:  clock.Real(),
		Logger: logger,
	}
	if t != nil {
		w.DeveloperDir = t.Context.DeveloperDir
		w.Clock = t.Clock
	} else {
		w.DeveloperDir = os.Getenv("DEVELOPER_DIR")
	}
	return w
}

// Execute handles invocation and returns the exit status to exit with.
func (w *Wrapper) Execute(ctx context.Context, invocation Invocation) int {
	t := w.Target
	if t == nil || t.Config.Mode == config.Producer {
		return w.fallback(ctx, invocation, false)
	}

	args, err := expandResponseFiles(invocation.Args, invocation.Dir)
	if err != nil {
		w.Logger.Debug("running real tool", "reason", err)
		return w.fallback(ctx, invocation, true)
	}
	plan, err := w.Tool.Plan(t, args, invocation.Dir)
	if err != nil {
		w.Logger.Debug("invocation not mockable", "error", err)
		w.publishDecision(plan, decisionCompile)
		if w.Tool.Kind() == Link {
			w.disable(fmt.Sprintf("%s invocation not mockable: %v", w.Tool.Name(), err))
		}
		return w.fallback(ctx, invocation, true)
	}

	state, err := t.Controller.Read()
	if err != nil {
		w.Logger.Warn("reading marker failed", "error", err)
		state = modecontrol.State{}
	}

	// A disabled marker never becomes enabled again within a build, so
	// an awaiting compile does not need the module decision.
	if !state.Enabled {
		w.publishDecision(plan, decisionCompile)
		return w.fallback(ctx, invocation, true)
	}

	if plan.Role == Await {
		decision, err := w.awaitDecision(ctx, plan.Arch)
		if err != nil {
			w.Logger.Warn("no module decision", "arch", plan.Arch, "error", err)
			t.BumpCounters(counters.LocalFallback)
			return w.fallback(ctx, invocation, true)
		}
		if decision != decisionMock {
			return w.fallback(ctx, invocation, true)
		}
	}

	for _, input := range plan.Inputs {
		if !state.Allows(input) {
			w.fail(plan, fmt.Sprintf("%s is not part of the cached artifact", input))
			return w.fallback(ctx, invocation, true)
		}
	}

	if err := w.executePlan(plan, state); err != nil {
		w.fail(plan, err.Error())
		return w.fallback(ctx, invocation, true)
	}
	w.publishDecision(plan, decisionMock)

	if w.Tool.Kind() == Compile {
		record := history.Invocation{Tool: w.Tool.Name(), Args: invocation.Args, Dir: invocation.Dir}
		if err := t.History.Append(record); err != nil {
			// An unrecorded compile could not be replayed by the linker.
			w.fail(plan, fmt.Sprintf("recording invocation: %v", err))
			return w.fallback(ctx, invocation, true)
		}
	}
	return 0
}

// fail deletes the marker after a mock attempt went wrong and counts
// the fallback.
func (w *Wrapper) fail(plan Plan, reason string) {
	w.disable(reason)
	w.publishDecision(plan, decisionCompile)
	w.Target.BumpCounters(counters.LocalFallback)
}

func (w *Wrapper) disable(reason string) {
	if err := w.Target.Controller.Delete(reason); err != nil {
		w.Logger.Warn("deleting marker failed", "error", err)
	}
}

func (w *Wrapper) publishDecision(plan Plan, decision string) {
	if plan.Role != Publish {
		return
	}
	path := w.Target.Context.DecisionPath(plan.Arch)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		w.Logger.Warn("publishing module decision failed", "error", err)
		return
	}
	if err := filelock.Replace(path, []byte(decision)); err != nil {
		w.Logger.Warn("publishing module decision failed", "error", err)
	}
}

func (w *Wrapper) awaitDecision(ctx context.Context, arch string) (string, error) {
	content, err := filelock.WaitNonEmpty(ctx, w.Clock, w.Target.Context.DecisionPath(arch),
		decisionPollInterval, w.Target.Config.FrontendWaitTimeout)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// fallback runs the real tool. Link tools in a cache-enabled setup
// first replay the compiles earlier wrappers mocked.
func (w *Wrapper) fallback(ctx context.Context, invocation Invocation, replay bool) int {
	if replay && w.Tool.Kind() == Link && w.Target != nil {
		if status := w.replay(ctx, invocation); status != 0 {
			return status
		}
	}
	return w.runReal(ctx, w.Tool.Name(), invocation.Args, invocation.Dir, invocation)
}

func (w *Wrapper) replay(ctx context.Context, invocation Invocation) int {
	recorded, err := w.Target.History.Consume()
	if err != nil {
		w.Logger.Error("reading invocation history failed", "error", err)
		return 1
	}
	for _, record := range recorded {
		w.Logger.Info("replaying mocked compile", "tool", record.Tool, "dir", record.Dir)
		if status := w.runReal(ctx, record.Tool, record.Args, record.Dir, invocation); status != 0 {
			return status
		}
	}
	return 0
}

func (w *Wrapper) runReal(ctx context.Context, tool string, args []string, dir string, stdio Invocation) int {
	status, err := w.Run(ctx, process.Command{
		Path:   ResolveTool(w.Config, w.DeveloperDir, tool),
		Args:   args,
		Dir:    dir,
		Stdin:  stdio.Stdin,
		Stdout: stdio.Stdout,
		Stderr: stdio.Stderr,
	})
	if err != nil {
		w.Logger.Error("running real tool failed", "tool", tool, "error", err)
		return 1
	}
	return status
}

// executePlan performs the plan against the active artifacts.
func (w *Wrapper) executePlan(plan Plan, state modecontrol.State) error {
	var directories []string
	if len(plan.Links) > 0 {
		var err error
		directories, err = artifactDirectories(w.Target)
		if err != nil {
			return err
		}
	}
	for _, link := range plan.Links {
		source, ok := findArtifact(directories, link.Artifact)
		if !ok {
			if link.Optional {
				continue
			}
			return fmt.Errorf("%s missing from cached artifact: %w", link.Artifact, os.ErrNotExist)
		}
		if err := linkTree(source, link.Output); err != nil {
			return fmt.Errorf("linking %s: %w", link.Output, err)
		}
	}
	for _, dir := range plan.Directories {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	now := w.Clock.Now()
	for _, path := range plan.Touch {
		if err := touch(path, now); err != nil {
			return err
		}
	}
	for _, file := range plan.DependencyFiles {
		prerequisites := file.Prerequisites
		if prerequisites == nil {
			prerequisites = state.Allowed
		}
		if err := os.MkdirAll(filepath.Dir(file.Path), 0o755); err != nil {
			return err
		}
		if err := depfile.WriteFile(file.Path, file.Targets, prerequisites); err != nil {
			return err
		}
	}
	for _, file := range plan.DependencyInfo {
		if err := os.MkdirAll(filepath.Dir(file.Path), 0o755); err != nil {
			return err
		}
		info := depfile.DependencyInfo{Version: version.ToolVersion(), Inputs: file.Inputs, Outputs: file.Outputs}
		if err := depfile.WriteDependencyInfoFile(file.Path, info); err != nil {
			return err
		}
	}
	return nil
}

// artifactDirectories lists the active artifact of the target followed
// by those of its thinned sub-targets.
func artifactDirectories(t *target.Target) ([]string, error) {
	var directories []string
	location, err := t.Organizer.ActiveLocation()
	switch {
	case err == nil:
		directories = append(directories, location)
	case !errors.Is(err, organizer.ErrNoActiveArtifact):
		return nil, err
	}
	for _, name := range t.ThinTargets() {
		sub, err := t.Sub(name)
		if err != nil {
			return nil, err
		}
		location, err := sub.Organizer.ActiveLocation()
		if err != nil {
			return nil, fmt.Errorf("sub-target %s: %w", name, err)
		}
		directories = append(directories, location)
	}
	if len(directories) == 0 {
		return nil, organizer.ErrNoActiveArtifact
	}
	return directories, nil
}

func findArtifact(directories []string, relative string) (string, bool) {
	for _, dir := range directories {
		candidate := filepath.Join(dir, relative)
		if _, err := os.Lstat(candidate); err == nil {
			return candidate, true
		}
	}
	return "", false
}

// linkTree hard-links source to destination, replacing destination.
// Directories are recreated and their files linked one by one.
func linkTree(source, destination string) error {
	info, err := os.Lstat(source)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(destination), 0o755); err != nil {
		return err
	}
	if info.IsDir() {
		if err := os.MkdirAll(destination, 0o755); err != nil {
			return err
		}
		children, err := os.ReadDir(source)
		if err != nil {
			return err
		}
		for _, child := range children {
			if err := linkTree(filepath.Join(source, child.Name()), filepath.Join(destination, child.Name())); err != nil {
				return err
			}
		}
		return nil
	}
	if err := os.Remove(destination); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if info.Mode()&os.ModeSymlink != 0 {
		link, err := os.Readlink(source)
		if err != nil {
			return err
		}
		return os.Symlink(link, destination)
	}
	return os.Link(source, destination)
}

func touch(path string, now time.Time) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}
	return os.Chtimes(path, now, now)
}

// Main is the entrypoint of a wrapper binary for tool. It never fails:
// an unreadable configuration or build context makes it run the real
// tool directly.
func Main(tool Tool) int {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	invocation := Invocation{
		Args:   os.Args[1:],
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
	if dir, err := os.Getwd(); err == nil {
		invocation.Dir = dir
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Debug("no configuration", "error", err)
		return New(tool, nil, nil, logger).Execute(context.Background(), invocation)
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})).
		With("tool", tool.Name())

	buildContext, err := buildenv.FromEnvironment()
	if err != nil {
		logger.Debug("no build context", "error", err)
		return New(tool, nil, cfg, logger).Execute(context.Background(), invocation)
	}
	t, err := target.New(target.Options{Config: cfg, Context: buildContext, Logger: logger})
	if err != nil {
		logger.Warn("cache unavailable for target", "error", err)
		return New(tool, nil, cfg, logger).Execute(context.Background(), invocation)
	}
	return New(tool, t, cfg, logger).Execute(context.Background(), invocation)
}

// Tools lists every wrapped tool by name.
func Tools() map[string]Tool {
	tools := []Tool{Swiftc{}, SwiftFrontend{}, Clang{}, Libtool{}, Ld{}, Lipo{}, Actool{}}
	byName := make(map[string]Tool, len(tools))
	for _, tool := range tools {
		byName[tool.Name()] = tool
	}
	return byName
}
