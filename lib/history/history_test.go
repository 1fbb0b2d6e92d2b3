// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package history

import (
	"path/filepath"
	"slices"
	"testing"
)

func TestAppendConsume(t *testing.T) {
	log := &Log{Path: filepath.Join(t.TempDir(), "history.compile")}
	recorded := []Invocation{
		{Tool: "swiftc", Args: []string{"-c", "A.swift"}, Dir: "/src"},
		{Tool: "clang", Args: []string{"-c", "b.m", "-o", "b.o"}},
	}
	for _, invocation := range recorded {
		if err := log.Append(invocation); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	consumed, err := log.Consume()
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if len(consumed) != len(recorded) {
		t.Fatalf("consumed %d invocations, want %d", len(consumed), len(recorded))
	}
	for i := range recorded {
		if consumed[i].Tool != recorded[i].Tool || consumed[i].Dir != recorded[i].Dir ||
			!slices.Equal(consumed[i].Args, recorded[i].Args) {
			t.Errorf("invocation %d = %+v, want %+v", i, consumed[i], recorded[i])
		}
	}

	again, err := log.Consume()
	if err != nil {
		t.Fatalf("second Consume: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("second Consume returned %d invocations, want 0", len(again))
	}
}

func TestConsumeMissingLog(t *testing.T) {
	log := &Log{Path: filepath.Join(t.TempDir(), "absent")}
	invocations, err := log.Consume()
	if err != nil || invocations != nil {
		t.Errorf("Consume = %v, %v; want nil, nil", invocations, err)
	}
	if err := log.Reset(); err != nil {
		t.Errorf("Reset of missing log: %v", err)
	}
}
