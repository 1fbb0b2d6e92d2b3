// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package projecttest builds on-disk fixtures of a single-target
// project for tests that exercise the prebuild and postbuild phases and
// the compiler wrappers end to end. A producer and a consumer project
// live under different roots and share a file:// remote, so every test
// also covers path remapping between machines.
package projecttest

import (
	"context"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/buildcache/lib/buildenv"
	"github.com/bureau-foundation/buildcache/lib/clock"
	"github.com/bureau-foundation/buildcache/lib/config"
	"github.com/bureau-foundation/buildcache/lib/depfile"
	"github.com/bureau-foundation/buildcache/lib/netclient"
	"github.com/bureau-foundation/buildcache/lib/postbuild"
	"github.com/bureau-foundation/buildcache/lib/remote"
	"github.com/bureau-foundation/buildcache/lib/target"
	"github.com/bureau-foundation/buildcache/lib/testutil"
)

// Fixture constants shared by producer and consumer.
const (
	TargetName  = "App"
	Arch        = "arm64"
	ProductName = "libApp.a"
	Product     = "static library"
	Module      = "swift module"
)

// DefaultSources are the sources every fixture starts with.
func DefaultSources() map[string]string {
	return map[string]string{
		"A.swift":    "struct A {}\n",
		"B.swift":    "struct B {}\n",
		"Bridging.h": "#import <Foundation/Foundation.h>\n",
	}
}

// Project is one checkout of the fixture project.
type Project struct {
	Root    string
	Remote  string
	Context buildenv.Context
	Config  *config.Config
	Clock   clock.Clock

	sources []string
}

// New returns a project rooted at root using the file:// remote at
// remoteDir. Sources are written immediately.
func New(t testing.TB, root, remoteDir string, mode config.Mode) *Project {
	t.Helper()
	build := filepath.Join(root, "build")
	tempDir := filepath.Join(build, "Intermediates", TargetName+".build")
	products := filepath.Join(build, "Products", "Debug-iphonesimulator")

	cfg := config.Default()
	cfg.Mode = mode
	cfg.CacheAddresses = []string{"file://" + remoteDir}
	cfg.StateDir = filepath.Join(root, "state")
	cfg.Retries = 0
	cfg.Concurrency = 2

	project := &Project{
		Root:   root,
		Remote: remoteDir,
		Clock:  clock.Real(),
		Config: cfg,
		Context: buildenv.Context{
			TargetTempDir:     tempDir,
			TargetName:        TargetName,
			ModuleName:        TargetName,
			Configuration:     "Debug",
			Platform:          "iphonesimulator",
			XcodeBuild:        "15A240d",
			SourceRoot:        filepath.Join(root, "src"),
			ObjectRoot:        filepath.Join(build, "Intermediates"),
			BuildDir:          build,
			BuiltProductsDir:  products,
			TargetBuildDir:    products,
			DerivedSourcesDir: filepath.Join(tempDir, "DerivedSources"),
			ObjectFileDir:     filepath.Join(tempDir, "Objects-normal"),
			Archs:             []string{Arch},
			FullProductName:   ProductName,
		},
	}
	for name, content := range DefaultSources() {
		project.WriteSource(t, name, content)
	}
	return project
}

// Rename turns the project into a build of target name, as another
// target of the same checkout would see it.
func (p *Project) Rename(name string) {
	p.Context.TargetName = name
	p.Context.ModuleName = name
	p.Context.TargetTempDir = filepath.Join(p.Context.ObjectRoot, name+".build")
}

// Source returns the local path of source name.
func (p *Project) Source(name string) string {
	return filepath.Join(p.Context.SourceRoot, name)
}

// WriteSource writes source name.
func (p *Project) WriteSource(t testing.TB, name, content string) {
	t.Helper()
	testutil.WriteFile(t, p.Source(name), content)
	for _, existing := range p.sources {
		if existing == name {
			return
		}
	}
	p.sources = append(p.sources, name)
	sort.Strings(p.sources)
}

// Sources returns the local paths of every source, sorted.
func (p *Project) Sources() []string {
	paths := make([]string, len(p.sources))
	for i, name := range p.sources {
		paths[i] = p.Source(name)
	}
	return paths
}

// ArchDir is the per-arch object directory.
func (p *Project) ArchDir() string {
	return filepath.Join(p.Context.ObjectFileDir, Arch)
}

// WriteBuildOutputs writes what a real build of the project leaves
// behind: the dependency file, the product, the module and the
// generated header (which embeds a source path).
func (p *Project) WriteBuildOutputs(t testing.TB) {
	t.Helper()
	testutil.WriteFile(t, filepath.Join(p.Context.TargetBuildDir, ProductName), Product)
	testutil.WriteFile(t, filepath.Join(p.ArchDir(), TargetName+".swiftmodule"), Module)
	testutil.WriteFile(t, filepath.Join(p.ArchDir(), TargetName+"-Swift.h"), p.HeaderContent())
	object := filepath.Join(p.ArchDir(), TargetName+".o")
	if err := depfile.WriteFile(filepath.Join(p.ArchDir(), TargetName+".d"), []string{object}, p.Sources()); err != nil {
		t.Fatalf("writing dependency file: %v", err)
	}
}

// HeaderContent is the generated header of this checkout.
func (p *Project) HeaderContent() string {
	return "#import \"" + p.Source("Bridging.h") + "\"\n"
}

// Environment returns the build settings Xcode exports to the
// target's build phases and tools.
func (p *Project) Environment() map[string]string {
	return map[string]string{
		"TARGET_TEMP_DIR":             p.Context.TargetTempDir,
		"TARGET_NAME":                 p.Context.TargetName,
		"PRODUCT_MODULE_NAME":         p.Context.ModuleName,
		"CONFIGURATION":               p.Context.Configuration,
		"PLATFORM_NAME":               p.Context.Platform,
		"XCODE_PRODUCT_BUILD_VERSION": p.Context.XcodeBuild,
		"SRCROOT":                     p.Context.SourceRoot,
		"OBJROOT":                     p.Context.ObjectRoot,
		"BUILD_DIR":                   p.Context.BuildDir,
		"BUILT_PRODUCTS_DIR":          p.Context.BuiltProductsDir,
		"TARGET_BUILD_DIR":            p.Context.TargetBuildDir,
		"DERIVED_SOURCES_DIR":         p.Context.DerivedSourcesDir,
		"OBJECT_FILE_DIR_normal":      p.Context.ObjectFileDir,
		"ARCHS":                       strings.Join(p.Context.Archs, " "),
		"FULL_PRODUCT_NAME":           p.Context.FullProductName,
	}
}

// Lookup reads Environment with the signature of os.LookupEnv.
func (p *Project) Lookup() buildenv.Lookup {
	environment := p.Environment()
	return func(name string) (string, bool) {
		value, ok := environment[name]
		return value, ok
	}
}

// WriteConfig writes p.Config as a YAML config file in the project root
// and returns its path.
func (p *Project) WriteConfig(t testing.TB) string {
	t.Helper()
	data, err := yaml.Marshal(p.Config)
	if err != nil {
		t.Fatalf("marshalling config: %v", err)
	}
	path := filepath.Join(p.Root, "buildcache.yaml")
	testutil.WriteFile(t, path, string(data))
	return path
}

// Target assembles the project's target with the build settings of
// Environment.
func (p *Project) Target(t testing.TB) *target.Target {
	t.Helper()
	tgt, err := target.New(target.Options{
		Config:  p.Config,
		Context: p.Context,
		Lookup:  p.Lookup(),
		Clock:   p.Clock,
		Logger:  slog.New(slog.DiscardHandler),
	})
	if err != nil {
		t.Fatalf("target.New: %v", err)
	}
	return tgt
}

// Client returns a client for the shared remote.
func (p *Project) Client(t testing.TB) netclient.Client {
	t.Helper()
	client, err := netclient.NewDirectoryClient(p.Remote)
	if err != nil {
		t.Fatalf("NewDirectoryClient: %v", err)
	}
	return client
}

// SetCommit writes the build-wide commit file.
func (p *Project) SetCommit(t testing.TB, info remote.CommitInfo) {
	t.Helper()
	if err := remote.WriteCommitInfo(p.Config.CommitFilePath(), info); err != nil {
		t.Fatalf("WriteCommitInfo: %v", err)
	}
}

// CommitInfo reads the build-wide commit file.
func (p *Project) CommitInfo(t testing.TB) remote.CommitInfo {
	t.Helper()
	info, err := remote.ReadCommitInfo(p.Config.CommitFilePath())
	if err != nil {
		t.Fatalf("ReadCommitInfo: %v", err)
	}
	return info
}

// Publish builds and publishes the project for commit.
func (p *Project) Publish(t testing.TB, commit string) postbuild.Report {
	t.Helper()
	p.WriteBuildOutputs(t)
	p.SetCommit(t, remote.Available(commit))
	report, err := postbuild.New(p.Target(t), p.Client(t)).Run(context.Background())
	if err != nil {
		t.Fatalf("publishing: %v", err)
	}
	return report
}
