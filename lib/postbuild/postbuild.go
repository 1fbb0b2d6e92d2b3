// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package postbuild

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bureau-foundation/buildcache/lib/artifactmeta"
	"github.com/bureau-foundation/buildcache/lib/config"
	"github.com/bureau-foundation/buildcache/lib/counters"
	"github.com/bureau-foundation/buildcache/lib/depfile"
	"github.com/bureau-foundation/buildcache/lib/fingerprint"
	"github.com/bureau-foundation/buildcache/lib/netclient"
	"github.com/bureau-foundation/buildcache/lib/organizer"
	"github.com/bureau-foundation/buildcache/lib/remote"
	"github.com/bureau-foundation/buildcache/lib/target"
)

// AssetInfoPlist is the partial Info.plist actool writes into
// TARGET_TEMP_DIR.
const AssetInfoPlist = "assetcatalog_generated_info.plist"

// AssetSymbolFiles are the asset symbol sources actool generates into
// DERIVED_SOURCES_DIR.
var AssetSymbolFiles = []string{"GeneratedAssetSymbols.swift", "GeneratedAssetSymbols.h"}

// sourceExtensions identify compiled sources among dependencies.
var sourceExtensions = map[string]bool{
	".swift": true,
	".c":     true,
	".m":     true,
	".mm":    true,
	".cc":    true,
	".cpp":   true,
	".cxx":   true,
}

// Report describes what postbuild did.
type Report struct {
	Target string
	Mode   config.Mode

	// FileKey and Uploaded describe the published artifact (producer).
	FileKey  string
	Uploaded bool

	// Recorded is the counter bumped (consumer).
	Recorded counters.Position
}

// Postbuild runs the postbuild phase of one target.
type Postbuild struct {
	target *target.Target
	client netclient.Client
}

// New returns a Postbuild for t publishing through client. client may
// be nil in consumer mode.
func New(t *target.Target, client netclient.Client) *Postbuild {
	return &Postbuild{target: t, client: client}
}

// Run performs the phase selected by the configured mode.
func (p *Postbuild) Run(ctx context.Context) (Report, error) {
	if p.target.Config.Mode == config.Producer {
		return p.publish(ctx)
	}
	return p.recordOutcome()
}

// recordOutcome counts the target as a hit when its marker survived the
// build.
func (p *Postbuild) recordOutcome() (Report, error) {
	t := p.target
	report := Report{Target: t.Context.TargetName, Mode: config.Consumer, Recorded: counters.TargetMiss}
	state, err := t.Controller.Read()
	if err != nil {
		return report, err
	}
	if state.Enabled {
		report.Recorded = counters.TargetHit
	}
	t.BumpCounters(report.Recorded)
	return report, nil
}

func (p *Postbuild) publish(ctx context.Context) (Report, error) {
	t := p.target
	report := Report{Target: t.Context.TargetName, Mode: config.Producer}

	info, err := remote.ReadCommitInfo(t.Config.CommitFilePath())
	if err != nil {
		return report, err
	}
	commit, ok := info.Commit()
	if !ok {
		return report, errors.New("no commit to publish for: run prepare with the built commit first")
	}

	dependencies, inputs, err := CollectDependencies(t)
	if err != nil {
		return report, err
	}
	genericDependencies, err := t.Remapper.Generic(dependencies)
	if err != nil {
		return report, fmt.Errorf("remapping dependencies: %w", err)
	}
	genericInputs, err := t.Remapper.Generic(inputs)
	if err != nil {
		return report, fmt.Errorf("remapping inputs: %w", err)
	}

	// Fingerprint exactly the paths a consumer will read: the local
	// form of the published generic paths.
	fingerprintPaths, err := t.Mapping.Local(genericDependencies)
	if err != nil {
		return report, fmt.Errorf("remapping dependencies: %w", err)
	}
	accumulator := fingerprint.NewContext(t.Environment)
	if err := fingerprint.AppendDependencies(accumulator.Accumulator, fingerprintPaths, t.Logger); err != nil {
		return report, fmt.Errorf("fingerprinting dependencies: %w", err)
	}
	digest := accumulator.Generate()

	if err := os.MkdirAll(t.Context.CacheRoot(), 0o755); err != nil {
		return report, fmt.Errorf("creating cache root: %w", err)
	}
	staging, err := os.MkdirTemp(t.Context.CacheRoot(), "publish-")
	if err != nil {
		return report, fmt.Errorf("creating staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	entries, err := Stage(t, staging)
	if err != nil {
		return report, err
	}
	for _, processor := range organizer.PackProcessors(t.Mapping) {
		if err := processor.Process(staging); err != nil {
			return report, fmt.Errorf("replacing local paths: %w", err)
		}
	}
	packaged, err := ContentDigest(staging)
	if err != nil {
		return report, err
	}

	meta := &artifactmeta.Meta{
		FileKey:          fingerprint.ArtifactKey(digest.ContextSpecific, packaged),
		Dependencies:     genericDependencies,
		Inputs:           genericInputs,
		RawFingerprint:   string(digest.Raw),
		GenerationCommit: commit,
		TargetName:       t.Context.TargetName,
		Configuration:    t.Context.Configuration,
		Platform:         t.Context.Platform,
		Xcode:            t.Context.XcodeBuild,
	}
	if _, err := artifactmeta.Write(meta, staging); err != nil {
		return report, err
	}
	entries = append(entries, artifactmeta.FileName(meta.FileKey))

	compression, err := organizer.ParseCompression(t.Config.ArchiveCompression)
	if err != nil {
		return report, err
	}
	archive := filepath.Join(t.Context.CacheRoot(), meta.FileKey+organizer.ArchiveExtension)
	if err := organizer.PackArchive(staging, entries, archive, compression); err != nil {
		return report, err
	}
	defer os.Remove(archive)

	service := t.Service(p.client)
	uploaded, err := service.UploadArtifact(ctx, meta.FileKey, archive)
	if err != nil {
		return report, err
	}
	if err := service.UploadMeta(ctx, commit, meta); err != nil {
		return report, err
	}

	t.Logger.Info("published artifact",
		"commit", commit,
		"file_key", meta.FileKey,
		"uploaded", uploaded,
		"dependencies", len(genericDependencies),
	)
	report.FileKey = meta.FileKey
	report.Uploaded = uploaded
	return report, nil
}

// CollectDependencies reads every .d file the compilers wrote for the
// target's archs. Dependencies are sorted; inputs are the dependencies
// that are compiled sources.
func CollectDependencies(t *target.Target) (dependencies, inputs []string, err error) {
	var rules []depfile.Rule
	found := 0
	for _, arch := range t.Context.Archs {
		matches, err := filepath.Glob(filepath.Join(t.Context.ObjectFileDir, arch, "*.d"))
		if err != nil {
			return nil, nil, fmt.Errorf("listing dependency files: %w", err)
		}
		for _, path := range matches {
			parsed, err := depfile.ParseFile(path)
			if err != nil {
				return nil, nil, err
			}
			rules = append(rules, parsed...)
			found++
		}
	}
	if found == 0 {
		return nil, nil, fmt.Errorf("no dependency files below %s", t.Context.ObjectFileDir)
	}

	dependencies = depfile.Prerequisites(rules)
	sort.Strings(dependencies)
	for _, path := range dependencies {
		if sourceExtensions[filepath.Ext(path)] {
			inputs = append(inputs, path)
		}
	}
	return dependencies, inputs, nil
}

// Stage copies the target's outputs into staging in artifact layout
// and returns the top-level entries to pack. The product is required;
// module files, headers and asset outputs are taken when present.
func Stage(t *target.Target, staging string) ([]string, error) {
	build := t.Context
	if build.FullProductName == "" {
		return nil, errors.New("FULL_PRODUCT_NAME is not set")
	}
	product := filepath.Join(build.TargetBuildDir, build.FullProductName)
	if err := copyTree(product, filepath.Join(staging, build.FullProductName)); err != nil {
		return nil, fmt.Errorf("staging product: %w", err)
	}
	entries := []string{build.FullProductName}

	optional := make(map[string]string)
	for _, arch := range build.Archs {
		archDir := filepath.Join(build.ObjectFileDir, arch)
		for _, extension := range organizer.SwiftmoduleExtensions {
			optional[organizer.ModuleFile(arch, build.ModuleName, extension)] = filepath.Join(archDir, build.ModuleName+extension)
		}
		header := build.ModuleName + "-Swift.h"
		optional[organizer.HeaderFile(arch, header)] = filepath.Join(archDir, header)
	}
	optional[organizer.AssetFile(AssetInfoPlist)] = filepath.Join(build.TargetTempDir, AssetInfoPlist)
	for _, name := range AssetSymbolFiles {
		optional[organizer.AssetFile(name)] = filepath.Join(build.DerivedSourcesDir, name)
	}

	topLevel := make(map[string]bool)
	for relative, source := range optional {
		err := copyTree(source, filepath.Join(staging, relative))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("staging %s: %w", relative, err)
		}
		topLevel[strings.SplitN(relative, string(filepath.Separator), 2)[0]] = true
	}
	for name := range topLevel {
		entries = append(entries, name)
	}
	sort.Strings(entries[1:])
	return entries, nil
}

// copyTree copies a file, symlink or directory tree. Files are copied,
// not linked, so that staging can rewrite them.
func copyTree(source, destination string) error {
	info, err := os.Lstat(source)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(destination), 0o755); err != nil {
		return err
	}
	switch {
	case info.Mode()&fs.ModeSymlink != 0:
		link, err := os.Readlink(source)
		if err != nil {
			return err
		}
		return os.Symlink(link, destination)
	case info.IsDir():
		if err := os.MkdirAll(destination, 0o755); err != nil {
			return err
		}
		children, err := os.ReadDir(source)
		if err != nil {
			return err
		}
		for _, child := range children {
			if err := copyTree(filepath.Join(source, child.Name()), filepath.Join(destination, child.Name())); err != nil {
				return err
			}
		}
		return nil
	default:
		return copyFile(source, destination, info.Mode().Perm())
	}
}

func copyFile(source, destination string, perm fs.FileMode) error {
	in, err := os.Open(source)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(destination, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// ContentDigest fingerprints a staged artifact: every file's relative
// path and content (or link target) in lexical order.
func ContentDigest(dir string) (fingerprint.Raw, error) {
	accumulator := fingerprint.New()
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		relative, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		accumulator.AppendString(filepath.ToSlash(relative))
		if d.Type()&fs.ModeSymlink != 0 {
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			accumulator.AppendString(link)
			return nil
		}
		return accumulator.AppendFile(path)
	})
	if err != nil {
		return "", fmt.Errorf("digesting staged artifact: %w", err)
	}
	return accumulator.Generate(), nil
}
