// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package postbuild_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bureau-foundation/buildcache/lib/artifactmeta"
	"github.com/bureau-foundation/buildcache/lib/config"
	"github.com/bureau-foundation/buildcache/lib/counters"
	"github.com/bureau-foundation/buildcache/lib/organizer"
	"github.com/bureau-foundation/buildcache/lib/postbuild"
	"github.com/bureau-foundation/buildcache/lib/projecttest"
	"github.com/bureau-foundation/buildcache/lib/remote"
	"github.com/bureau-foundation/buildcache/lib/testutil"
)

const commit = "5f2c9e1"

func TestPublish(t *testing.T) {
	root := t.TempDir()
	remoteDir := filepath.Join(root, "remote")
	producer := projecttest.New(t, filepath.Join(root, "producer"), remoteDir, config.Producer)

	report := producer.Publish(t, commit)
	if report.FileKey == "" || !report.Uploaded {
		t.Fatalf("report = %+v, want an uploaded artifact", report)
	}

	urls := producer.Target(t).URLs()
	meta, err := artifactmeta.Read(filepath.Join(remoteDir, urls.MetaKey(commit)))
	if err != nil {
		t.Fatalf("reading published meta: %v", err)
	}
	if meta.FileKey != report.FileKey || meta.GenerationCommit != commit || meta.TargetName != projecttest.TargetName {
		t.Errorf("meta = %+v", meta)
	}
	wantDependencies := []string{"$(SRCROOT)/A.swift", "$(SRCROOT)/B.swift", "$(SRCROOT)/Bridging.h"}
	if strings.Join(meta.Dependencies, ",") != strings.Join(wantDependencies, ",") {
		t.Errorf("dependencies = %v, want %v", meta.Dependencies, wantDependencies)
	}
	wantInputs := []string{"$(SRCROOT)/A.swift", "$(SRCROOT)/B.swift"}
	if strings.Join(meta.Inputs, ",") != strings.Join(wantInputs, ",") {
		t.Errorf("inputs = %v, want %v", meta.Inputs, wantInputs)
	}

	extracted := filepath.Join(t.TempDir(), "artifact")
	if err := organizer.Extract(filepath.Join(remoteDir, urls.ArtifactKey(report.FileKey)), extracted); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if content := testutil.ReadFile(t, filepath.Join(extracted, projecttest.ProductName)); content != projecttest.Product {
		t.Errorf("product = %q", content)
	}
	module := filepath.Join(extracted, organizer.ModuleFile(projecttest.Arch, projecttest.TargetName, ".swiftmodule"))
	if content := testutil.ReadFile(t, module); content != projecttest.Module {
		t.Errorf("module = %q", content)
	}
	header := filepath.Join(extracted, organizer.HeaderFile(projecttest.Arch, projecttest.TargetName+"-Swift.h"))
	if content := testutil.ReadFile(t, header); content != "#import \"$(SRCROOT)/Bridging.h\"\n" {
		t.Errorf("header = %q, want placeholders", content)
	}
	embedded, err := artifactmeta.ReadFromDirectory(extracted)
	if err != nil {
		t.Fatalf("ReadFromDirectory: %v", err)
	}
	if embedded.FileKey != report.FileKey {
		t.Errorf("embedded fileKey = %q", embedded.FileKey)
	}
}

func TestPublishSkipsExistingArtifact(t *testing.T) {
	root := t.TempDir()
	remoteDir := filepath.Join(root, "remote")
	first := projecttest.New(t, filepath.Join(root, "first"), remoteDir, config.Producer)
	second := projecttest.New(t, filepath.Join(root, "second"), remoteDir, config.Producer)

	published := first.Publish(t, commit)
	republished := second.Publish(t, "7a41d03")
	if republished.FileKey != published.FileKey {
		t.Fatalf("fileKey differs between checkouts: %s vs %s", published.FileKey, republished.FileKey)
	}
	if republished.Uploaded {
		t.Error("identical artifact uploaded twice")
	}
	if _, err := artifactmeta.Read(filepath.Join(remoteDir, second.Target(t).URLs().MetaKey("7a41d03"))); err != nil {
		t.Errorf("meta for second commit: %v", err)
	}
}

func TestPublishChangedSourceChangesFileKey(t *testing.T) {
	root := t.TempDir()
	remoteDir := filepath.Join(root, "remote")
	producer := projecttest.New(t, filepath.Join(root, "producer"), remoteDir, config.Producer)

	before := producer.Publish(t, commit)
	producer.WriteSource(t, "A.swift", "struct A { let x = 1 }\n")
	after := producer.Publish(t, "8b52e14")
	if before.FileKey == after.FileKey {
		t.Error("fileKey unchanged after a source change")
	}
}

func TestPublishRequiresCommit(t *testing.T) {
	root := t.TempDir()
	producer := projecttest.New(t, filepath.Join(root, "producer"), filepath.Join(root, "remote"), config.Producer)
	producer.WriteBuildOutputs(t)
	producer.SetCommit(t, remote.Unavailable())

	if _, err := postbuild.New(producer.Target(t), producer.Client(t)).Run(context.Background()); err == nil {
		t.Fatal("expected error without a commit")
	}
}

func TestCollectDependencies_NoFiles(t *testing.T) {
	root := t.TempDir()
	producer := projecttest.New(t, filepath.Join(root, "producer"), filepath.Join(root, "remote"), config.Producer)
	if _, _, err := postbuild.CollectDependencies(producer.Target(t)); err == nil {
		t.Fatal("expected error when no dependency files exist")
	}
}

func TestConsumerRecordsOutcome(t *testing.T) {
	root := t.TempDir()
	consumer := projecttest.New(t, filepath.Join(root, "consumer"), filepath.Join(root, "remote"), config.Consumer)
	tgt := consumer.Target(t)

	if err := tgt.Controller.Enable(consumer.Sources(), nil); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	report, err := postbuild.New(tgt, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Recorded != counters.TargetHit {
		t.Errorf("recorded %s, want %s", report.Recorded, counters.TargetHit)
	}

	if err := tgt.Controller.Delete("test"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := postbuild.New(tgt, nil).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	values, err := tgt.Counters.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if values[counters.TargetHit] != 1 || values[counters.TargetMiss] != 1 {
		t.Errorf("counters = %v, want one hit and one miss", values)
	}
}
