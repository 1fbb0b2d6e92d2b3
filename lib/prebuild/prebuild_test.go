// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package prebuild_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bureau-foundation/buildcache/lib/artifactmeta"
	"github.com/bureau-foundation/buildcache/lib/config"
	"github.com/bureau-foundation/buildcache/lib/counters"
	"github.com/bureau-foundation/buildcache/lib/fingerprint"
	"github.com/bureau-foundation/buildcache/lib/netclient"
	"github.com/bureau-foundation/buildcache/lib/organizer"
	"github.com/bureau-foundation/buildcache/lib/prebuild"
	"github.com/bureau-foundation/buildcache/lib/projecttest"
	"github.com/bureau-foundation/buildcache/lib/remote"
	"github.com/bureau-foundation/buildcache/lib/target"
	"github.com/bureau-foundation/buildcache/lib/testutil"
)

const commit = "9d1e0b7"

// publishedPair returns a producer that published commit and a
// consumer checkout of the same sources under another root.
func publishedPair(t *testing.T) (producer, consumer *projecttest.Project, report string) {
	t.Helper()
	root := t.TempDir()
	remoteDir := filepath.Join(root, "remote")
	producer = projecttest.New(t, filepath.Join(root, "producer"), remoteDir, config.Producer)
	published := producer.Publish(t, commit)
	consumer = projecttest.New(t, filepath.Join(root, "consumer"), remoteDir, config.Consumer)
	consumer.SetCommit(t, remote.Available(commit))
	return producer, consumer, published.FileKey
}

func run(t *testing.T, tgt *target.Target, client netclient.Client) prebuild.Result {
	t.Helper()
	result, err := prebuild.New(tgt, client).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return result
}

func readCounters(t *testing.T, tgt *target.Target) []uint64 {
	t.Helper()
	values, err := tgt.Counters.Read()
	if err != nil {
		t.Fatalf("reading counters: %v", err)
	}
	return values
}

func TestCacheHit(t *testing.T) {
	_, consumer, fileKey := publishedPair(t)
	tgt := consumer.Target(t)

	result := run(t, tgt, consumer.Client(t))
	if result.Outcome != prebuild.Hit || result.FileKey != fileKey {
		t.Fatalf("result = %+v, want hit on %s", result, fileKey)
	}

	state, err := tgt.Controller.Read()
	if err != nil {
		t.Fatalf("reading marker: %v", err)
	}
	if !state.Enabled {
		t.Fatal("marker not enabled after a hit")
	}
	for _, source := range []string{consumer.Source("A.swift"), consumer.Source("B.swift"), consumer.Source("Bridging.h")} {
		if !state.Allows(source) {
			t.Errorf("marker does not allow %s: %v", source, state.Allowed)
		}
	}

	active, err := tgt.Organizer.ActiveFileKey()
	if err != nil || active != fileKey {
		t.Fatalf("active fileKey = %q, %v", active, err)
	}
	location, err := tgt.Organizer.ActiveLocation()
	if err != nil {
		t.Fatal(err)
	}
	header := filepath.Join(location, organizer.HeaderFile(projecttest.Arch, projecttest.TargetName+"-Swift.h"))
	if content := testutil.ReadFile(t, header); content != consumer.HeaderContent() {
		t.Errorf("header = %q, want consumer paths %q", content, consumer.HeaderContent())
	}

	if values := readCounters(t, tgt); values[counters.ArtifactDownload] != 1 {
		t.Errorf("counters = %v, want one download", values)
	}
}

func TestCacheHitReusesExtractedArtifact(t *testing.T) {
	_, consumer, _ := publishedPair(t)
	tgt := consumer.Target(t)

	for i := 0; i < 2; i++ {
		if result := run(t, tgt, consumer.Client(t)); result.Outcome != prebuild.Hit {
			t.Fatalf("run %d: outcome = %s", i, result.Outcome)
		}
	}
	values := readCounters(t, tgt)
	if values[counters.ArtifactDownload] != 1 || values[counters.ArtifactReuse] != 1 {
		t.Errorf("counters = %v, want one download and one reuse", values)
	}
}

func TestCacheMiss(t *testing.T) {
	_, consumer, _ := publishedPair(t)
	consumer.WriteSource(t, "B.swift", "struct B { var changed = true }\n")
	tgt := consumer.Target(t)

	result := run(t, tgt, consumer.Client(t))
	if result.Outcome != prebuild.Miss {
		t.Fatalf("outcome = %s, want miss", result.Outcome)
	}
	state, err := tgt.Controller.Read()
	if err != nil {
		t.Fatal(err)
	}
	if state.Enabled {
		t.Error("marker enabled after a miss")
	}
	if _, err := tgt.Organizer.ActiveLocation(); !errors.Is(err, organizer.ErrNoActiveArtifact) {
		t.Errorf("ActiveLocation after miss = %v, want ErrNoActiveArtifact", err)
	}
	if record, _ := tgt.Controller.DisableRecord(); record != nil {
		t.Errorf("a miss must not record the commit as unusable: %+v", record)
	}
}

func TestMissAfterHitDisablesMarker(t *testing.T) {
	_, consumer, _ := publishedPair(t)
	tgt := consumer.Target(t)
	if result := run(t, tgt, consumer.Client(t)); result.Outcome != prebuild.Hit {
		t.Fatalf("outcome = %s, want hit", result.Outcome)
	}

	consumer.WriteSource(t, "A.swift", "struct A { let edited = 1 }\n")
	if result := run(t, tgt, consumer.Client(t)); result.Outcome != prebuild.Miss {
		t.Fatalf("outcome = %s, want miss", result.Outcome)
	}
	if state, _ := tgt.Controller.Read(); state.Enabled {
		t.Error("stale marker left enabled")
	}
}

func TestUnavailableCommit(t *testing.T) {
	_, consumer, _ := publishedPair(t)
	consumer.SetCommit(t, remote.Unavailable())
	tgt := consumer.Target(t)

	result := run(t, tgt, &failingClient{err: errors.New("must not be called")})
	if result.Outcome != prebuild.Disabled {
		t.Fatalf("outcome = %s, want disabled", result.Outcome)
	}
}

func TestProducerNeverConsumes(t *testing.T) {
	producer, _, _ := publishedPair(t)
	tgt := producer.Target(t)

	result := run(t, tgt, &failingClient{err: errors.New("must not be called")})
	if result.Outcome != prebuild.Disabled {
		t.Fatalf("outcome = %s, want disabled", result.Outcome)
	}
	if _, err := os.Stat(tgt.Controller.MarkerPath()); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("producer marker stat = %v, want no marker", err)
	}
}

func TestMissingMetaRecordsUnusableCommit(t *testing.T) {
	_, consumer, _ := publishedPair(t)
	consumer.SetCommit(t, remote.Available("unpublished"))
	tgt := consumer.Target(t)

	if result := run(t, tgt, consumer.Client(t)); result.Outcome != prebuild.Disabled {
		t.Fatalf("outcome = %s, want disabled", result.Outcome)
	}
	record, err := tgt.Controller.DisableRecord()
	if err != nil || record == nil || record.Commit != "unpublished" {
		t.Fatalf("disable record = %+v, %v", record, err)
	}
	if !consumer.CommitInfo(t).IsAvailable() {
		t.Error("a missing meta must not disable the whole build")
	}

	// The record short-circuits the next prebuild without a request.
	result := run(t, tgt, &failingClient{err: errors.New("must not be called")})
	if result.Outcome != prebuild.Disabled {
		t.Errorf("second run outcome = %s", result.Outcome)
	}
}

func TestUnusableRecordLastsOneBuild(t *testing.T) {
	producer, consumer, _ := publishedPair(t)
	late := testutil.UniqueID("late")
	consumer.SetCommit(t, remote.Available(late))
	// Backdate the commit file so the next prepare gets a distinct time.
	earlier := time.Now().Add(-time.Hour)
	if err := os.Chtimes(consumer.Config.CommitFilePath(), earlier, earlier); err != nil {
		t.Fatal(err)
	}
	tgt := consumer.Target(t)

	if result := run(t, tgt, consumer.Client(t)); result.Outcome != prebuild.Disabled {
		t.Fatalf("outcome = %s, want disabled before the commit is published", result.Outcome)
	}
	producer.Publish(t, late)

	// Same build: the record still short-circuits.
	if result := run(t, tgt, consumer.Client(t)); result.Outcome != prebuild.Disabled {
		t.Fatalf("outcome = %s, want disabled within the same build", result.Outcome)
	}

	// The next build's prepare rewrites the commit file.
	consumer.SetCommit(t, remote.Available(late))
	if result := run(t, tgt, consumer.Client(t)); result.Outcome != prebuild.Hit {
		t.Fatalf("outcome = %s (%s), want hit after a new prepare", result.Outcome, result.Reason)
	}
}

func TestTimeoutDisablesBuild(t *testing.T) {
	_, consumer, _ := publishedPair(t)
	tgt := consumer.Target(t)
	timeout := &netclient.Error{Kind: netclient.KindTimeout, Key: "meta", Err: context.DeadlineExceeded}

	result := run(t, tgt, &failingClient{err: timeout})
	if result.Outcome != prebuild.Disabled {
		t.Fatalf("outcome = %s, want disabled", result.Outcome)
	}
	if consumer.CommitInfo(t).IsAvailable() {
		t.Error("commit file still available after a timeout")
	}
	if values := readCounters(t, tgt); values[counters.RemoteTimeout] != 1 {
		t.Errorf("counters = %v, want one timeout", values)
	}
	if record, _ := tgt.Controller.DisableRecord(); record != nil {
		t.Errorf("timeout recorded a per-target record: %+v", record)
	}

	// Another target of the same build reads the rewritten commit file
	// and stays off without touching the network.
	consumer.Rename("Other")
	other := consumer.Target(t)
	testutil.WriteFile(t, other.Controller.MarkerPath(), "stale\n")
	client := &failingClient{err: errors.New("unexpected request")}
	result = run(t, other, client)
	if result.Outcome != prebuild.Disabled || result.Reason != "commit unavailable is not usable" {
		t.Errorf("second target result = %+v, want disabled for the unavailable commit", result)
	}
	if requests := client.requests.Load(); requests != 0 {
		t.Errorf("second target sent %d requests, want none", requests)
	}
	if _, err := os.Stat(other.Controller.MarkerPath()); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("second target marker stat = %v, want removed", err)
	}
}

func TestTimeoutWithoutKillSwitch(t *testing.T) {
	_, consumer, _ := publishedPair(t)
	consumer.Config.DisableOnFirstTimeout = false
	tgt := consumer.Target(t)
	timeout := &netclient.Error{Kind: netclient.KindTimeout, Key: "meta"}

	if result := run(t, tgt, &failingClient{err: timeout}); result.Outcome != prebuild.Disabled {
		t.Fatalf("outcome = %s, want disabled", result.Outcome)
	}
	if !consumer.CommitInfo(t).IsAvailable() {
		t.Error("commit file disabled although disable_on_first_timeout is off")
	}
}

func TestCorruptedArtifactDirectoryIsReplaced(t *testing.T) {
	_, consumer, fileKey := publishedPair(t)
	tgt := consumer.Target(t)

	// A directory without the completion sentinel, as left by a crash.
	testutil.WriteFile(t, filepath.Join(tgt.Organizer.Root(), fileKey, "partial"), "x")

	if result := run(t, tgt, consumer.Client(t)); result.Outcome != prebuild.Hit {
		t.Fatalf("outcome = %s, want hit", result.Outcome)
	}
	location, _ := tgt.Organizer.ActiveLocation()
	if _, err := os.Stat(filepath.Join(location, "partial")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("leftover from the incomplete directory survived: %v", err)
	}
}

func TestThinnedAggregation(t *testing.T) {
	root := t.TempDir()
	remoteDir := filepath.Join(root, "remote")
	consumer := projecttest.New(t, filepath.Join(root, "consumer"), remoteDir, config.Consumer)
	consumer.Config.ThinTargets = map[string][]string{projecttest.TargetName: {"Core", "UI"}}
	consumer.SetCommit(t, remote.Available(commit))
	tgt := consumer.Target(t)

	for _, name := range []string{"Core", "UI"} {
		publishSubTarget(t, root, remoteDir, consumer, name)
	}

	result := run(t, tgt, consumer.Client(t))
	if result.Outcome != prebuild.Hit {
		t.Fatalf("outcome = %s (%s), want hit", result.Outcome, result.Reason)
	}
	if len(result.Subtargets) != 2 || result.Subtargets[0].Target != "Core" || result.Subtargets[1].Target != "UI" {
		t.Fatalf("subtargets = %+v", result.Subtargets)
	}
	for _, name := range []string{"Core", "UI"} {
		sub, _ := tgt.Sub(name)
		key, err := sub.Organizer.ActiveFileKey()
		if err != nil || key != "key-"+name {
			t.Errorf("%s active = %q, %v", name, key, err)
		}
	}
	if state, _ := tgt.Controller.Read(); !state.Enabled || !state.Allows(consumer.Source("A.swift")) {
		t.Errorf("aggregate marker = %+v", state)
	}
}

func TestThinnedAggregationPartialFailure(t *testing.T) {
	root := t.TempDir()
	remoteDir := filepath.Join(root, "remote")
	consumer := projecttest.New(t, filepath.Join(root, "consumer"), remoteDir, config.Consumer)
	consumer.Config.ThinTargets = map[string][]string{projecttest.TargetName: {"Core", "UI"}}
	consumer.SetCommit(t, remote.Available(commit))
	tgt := consumer.Target(t)

	publishSubTarget(t, root, remoteDir, consumer, "Core")

	result := run(t, tgt, consumer.Client(t))
	if result.Outcome != prebuild.Disabled {
		t.Fatalf("outcome = %s, want disabled", result.Outcome)
	}
	if result.Subtargets[0].Outcome != prebuild.Hit || result.Subtargets[1].Outcome != prebuild.Disabled {
		t.Errorf("subtargets = %+v", result.Subtargets)
	}
	if state, _ := tgt.Controller.Read(); state.Enabled {
		t.Error("aggregate enabled with a failed sub-target")
	}
}

// publishSubTarget publishes target name from a producer checkout that
// builds it as a target of its own, with an artifact whose fingerprint
// covers the consumer's A.swift.
func publishSubTarget(t *testing.T, root, remoteDir string, consumer *projecttest.Project, name string) {
	t.Helper()
	producer := projecttest.New(t, filepath.Join(root, "producer-"+name), remoteDir, config.Producer)
	producer.Rename(name)
	publishDirect(t, remoteDir, producer.Target(t), consumer, name)
}

// publishDirect publishes a one-file artifact under the remote keys of
// tgt whose fingerprint covers the consumer's A.swift.
func publishDirect(t *testing.T, remoteDir string, tgt *target.Target, consumer *projecttest.Project, name string) {
	t.Helper()
	accumulator := fingerprint.New()
	if err := accumulator.AppendFile(consumer.Source("A.swift")); err != nil {
		t.Fatal(err)
	}
	meta := &artifactmeta.Meta{
		FileKey:        "key-" + name,
		Dependencies:   []string{"$(SRCROOT)/A.swift"},
		Inputs:         []string{"$(SRCROOT)/A.swift"},
		RawFingerprint: string(accumulator.Generate()),
		TargetName:     name,
	}

	staging := t.TempDir()
	testutil.WriteFile(t, filepath.Join(staging, "lib"+name+".a"), name)
	if _, err := artifactmeta.Write(meta, staging); err != nil {
		t.Fatal(err)
	}
	urls := tgt.URLs()
	entries := []string{"lib" + name + ".a", artifactmeta.FileName(meta.FileKey)}
	if err := organizer.PackArchive(staging, entries, filepath.Join(remoteDir, urls.ArtifactKey(meta.FileKey)), organizer.CompressionLZ4); err != nil {
		t.Fatal(err)
	}
	encoded, err := artifactmeta.Encode(meta)
	if err != nil {
		t.Fatal(err)
	}
	testutil.WriteFile(t, filepath.Join(remoteDir, urls.MetaKey(commit)), string(encoded))
}

// failingClient fails every request with err and counts them.
type failingClient struct {
	err      error
	requests atomic.Int32
}

func (c *failingClient) FileExists(context.Context, string) (bool, error) {
	c.requests.Add(1)
	return false, c.err
}

func (c *failingClient) Fetch(context.Context, string) ([]byte, error) {
	c.requests.Add(1)
	return nil, c.err
}

func (c *failingClient) Download(context.Context, string, string) error {
	c.requests.Add(1)
	return c.err
}

func (c *failingClient) Upload(context.Context, string, string) error {
	c.requests.Add(1)
	return c.err
}

func (c *failingClient) Create(context.Context, string) error {
	c.requests.Add(1)
	return c.err
}
