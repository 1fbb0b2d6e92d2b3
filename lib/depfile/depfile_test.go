// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package depfile

import (
	"bytes"
	"slices"
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name          string
		input         string
		targets       [][]string
		prerequisites [][]string
	}{
		{
			name:          "single line",
			input:         "out.o: a.c b.h\n",
			targets:       [][]string{{"out.o"}},
			prerequisites: [][]string{{"a.c", "b.h"}},
		},
		{
			name:          "continuations",
			input:         "/build/out.o: /src/a.c \\\n  /src/b.h \\\n  /src/c.h\n",
			targets:       [][]string{{"/build/out.o"}},
			prerequisites: [][]string{{"/src/a.c", "/src/b.h", "/src/c.h"}},
		},
		{
			name:          "escaped spaces",
			input:         "out.o: /My\\ Project/a.c /path/cost$$.h\n",
			targets:       [][]string{{"out.o"}},
			prerequisites: [][]string{{"/My Project/a.c", "/path/cost$.h"}},
		},
		{
			name:          "swift style separated colon",
			input:         "/build/A.o /build/A.swiftmodule : /src/A.swift /src/B.swift\n",
			targets:       [][]string{{"/build/A.o", "/build/A.swiftmodule"}},
			prerequisites: [][]string{{"/src/A.swift", "/src/B.swift"}},
		},
		{
			name:          "multiple rules and comments",
			input:         "# generated\na.o: a.c\n\nb.o: b.c common.h\n",
			targets:       [][]string{{"a.o"}, {"b.o"}},
			prerequisites: [][]string{{"a.c"}, {"b.c", "common.h"}},
		},
		{
			name:          "no prerequisites",
			input:         "empty.o:\n",
			targets:       [][]string{{"empty.o"}},
			prerequisites: [][]string{nil},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			rules, err := Parse([]byte(test.input))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if len(rules) != len(test.targets) {
				t.Fatalf("got %d rules, want %d: %+v", len(rules), len(test.targets), rules)
			}
			for i, rule := range rules {
				if !slices.Equal(rule.Targets, test.targets[i]) {
					t.Errorf("rule %d targets = %q, want %q", i, rule.Targets, test.targets[i])
				}
				if !slices.Equal(rule.Prerequisites, test.prerequisites[i]) {
					t.Errorf("rule %d prerequisites = %q, want %q", i, rule.Prerequisites, test.prerequisites[i])
				}
			}
		})
	}
}

func TestParseMissingColon(t *testing.T) {
	if _, err := Parse([]byte("just some words\n")); err == nil {
		t.Error("Parse accepted a line without ':'")
	}
}

func TestWriteParseRoundTrip(t *testing.T) {
	targets := []string{"/build/My App/a.o"}
	prerequisites := []string{"/src/a.c", "/src/with space.h", "/src/dollar$.h"}
	var buffer strings.Builder
	if err := Write(&buffer, targets, prerequisites); err != nil {
		t.Fatalf("Write: %v", err)
	}
	rules, err := Parse([]byte(buffer.String()))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(rules) != 1 {
		t.Fatalf("got %d rules", len(rules))
	}
	if !slices.Equal(rules[0].Targets, targets) || !slices.Equal(rules[0].Prerequisites, prerequisites) {
		t.Errorf("round trip = %+v", rules[0])
	}
}

func TestPrerequisitesDeduplicates(t *testing.T) {
	rules := []Rule{
		{Targets: []string{"a.o"}, Prerequisites: []string{"a.c", "common.h"}},
		{Targets: []string{"b.o"}, Prerequisites: []string{"b.c", "common.h"}},
	}
	want := []string{"a.c", "common.h", "b.c"}
	if got := Prerequisites(rules); !slices.Equal(got, want) {
		t.Errorf("Prerequisites = %q, want %q", got, want)
	}
}

func TestWriteDependencyInfoBytes(t *testing.T) {
	var buffer bytes.Buffer
	err := WriteDependencyInfo(&buffer, DependencyInfo{
		Version: "buildcache-1.0",
		Inputs:  []string{"/a.o", "/b.o"},
		Outputs: []string{"/lib.a"},
	})
	if err != nil {
		t.Fatalf("WriteDependencyInfo: %v", err)
	}
	want := "\x00buildcache-1.0\x00\x10/a.o\x00\x10/b.o\x00\x40/lib.a\x00"
	if buffer.String() != want {
		t.Errorf("bytes = %q, want %q", buffer.String(), want)
	}

	info, err := ParseDependencyInfo(buffer.Bytes())
	if err != nil {
		t.Fatalf("ParseDependencyInfo: %v", err)
	}
	if info.Version != "buildcache-1.0" || len(info.Inputs) != 2 || len(info.Outputs) != 1 {
		t.Errorf("parsed = %+v", info)
	}
}

func TestParseDependencyInfoTruncated(t *testing.T) {
	if _, err := ParseDependencyInfo([]byte("\x10/a.o")); err == nil {
		t.Error("ParseDependencyInfo accepted an unterminated record")
	}
}
