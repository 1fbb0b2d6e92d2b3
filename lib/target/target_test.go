// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package target_test

import (
	"path/filepath"
	"testing"

	"github.com/bureau-foundation/buildcache/lib/config"
	"github.com/bureau-foundation/buildcache/lib/projecttest"
)

func TestSubMatchesProducerOfSubTarget(t *testing.T) {
	root := t.TempDir()
	remoteDir := filepath.Join(root, "remote")

	consumer := projecttest.New(t, filepath.Join(root, "consumer"), remoteDir, config.Consumer)
	sub, err := consumer.Target(t).Sub("Core")
	if err != nil {
		t.Fatalf("Sub: %v", err)
	}

	producer := projecttest.New(t, filepath.Join(root, "producer"), remoteDir, config.Producer)
	producer.Rename("Core")
	built := producer.Target(t)

	if sub.Environment != built.Environment {
		t.Errorf("sub-target environment %s, producer of Core has %s", sub.Environment, built.Environment)
	}
	if got, want := sub.URLs().MetaKey("c1"), built.URLs().MetaKey("c1"); got != want {
		t.Errorf("sub-target fetches %s, producer publishes %s", got, want)
	}
	if sub.Context.TargetTempDir == consumer.Context.TargetTempDir {
		t.Error("sub-target shares the aggregate's temp directory")
	}
}

func TestSubKeepsOtherSettings(t *testing.T) {
	root := t.TempDir()
	consumer := projecttest.New(t, filepath.Join(root, "consumer"), filepath.Join(root, "remote"), config.Consumer)
	aggregate := consumer.Target(t)
	sub, err := aggregate.Sub("Core")
	if err != nil {
		t.Fatalf("Sub: %v", err)
	}

	other := projecttest.New(t, filepath.Join(root, "other"), filepath.Join(root, "remote"), config.Consumer)
	other.Context.Configuration = "Release"
	other.Rename("Core")
	if release := other.Target(t); release.Environment == sub.Environment {
		t.Error("Release build of Core shares the Debug sub-target's environment")
	}
}
