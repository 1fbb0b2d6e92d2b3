// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"testing"

	"github.com/spf13/pflag"
)

func TestLevenshtein(t *testing.T) {
	distances := map[[2]string]int{
		{"", ""}:                     0,
		{"", "mark"}:                 4,
		{"stats", "stats"}:           0,
		{"stats", "stat"}:            1,
		{"mark", "park"}:             1,
		{"prepare", "perpare"}:       2,
		{"kitten", "sitting"}:        3,
		{"postbuild", "prebuild"}:    3,
		{"swiftc", "swift-frontend"}: 9,
	}
	for pair, want := range distances {
		if got := levenshtein(pair[0], pair[1]); got != want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", pair[0], pair[1], got, want)
		}
		if got := levenshtein(pair[1], pair[0]); got != want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d (not symmetric)", pair[1], pair[0], got, want)
		}
	}
}

func TestClosestPrefersEarlierOnTie(t *testing.T) {
	if got := closest("pre", []string{"prex", "prey"}); got != "prex" {
		t.Errorf("closest = %q, want %q", got, "prex")
	}
	if got := closest("anything", nil); got != "" {
		t.Errorf("closest with no candidates = %q, want empty", got)
	}
}

func TestSuggestCommand(t *testing.T) {
	var commands []*Command
	for _, name := range []string{"prepare", "prebuild", "postbuild", "mark", "stats", "version"} {
		commands = append(commands, &Command{Name: name})
	}

	for input, want := range map[string]string{
		"perpare":    "prepare",
		"prebuil":    "prebuild",
		"postbuildd": "postbuild",
		"makr":       "mark",
		"verison":    "version",
		"zzzzzzzzz":  "",
	} {
		if got := suggestCommand(input, commands); got != want {
			t.Errorf("suggestCommand(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestSuggestFlag(t *testing.T) {
	newFlagSet := func() *pflag.FlagSet {
		flagSet := pflag.NewFlagSet("stats", pflag.ContinueOnError)
		flagSet.StringP("config", "c", "", "")
		flagSet.Bool("reset", false, "")
		flagSet.Bool("json", false, "")
		flagSet.Bool("no-color", false, "")
		return flagSet
	}

	tests := []struct {
		args []string
		want string
	}{
		{[]string{"--confg"}, "--config"},
		{[]string{"-rset"}, "--reset"},
		{[]string{"--jsn=true"}, "--json"},
		{[]string{"-c", "x.yaml", "--no-colour"}, "--no-color"},
		{[]string{"--json", "--rest"}, "--reset"},
		{[]string{"--zzzzzzzzz"}, ""},
		{[]string{"positional"}, ""},
		{[]string{"--", "--confg"}, ""},
	}
	for _, test := range tests {
		if got := suggestFlag(test.args, newFlagSet()); got != test.want {
			t.Errorf("suggestFlag(%q) = %q, want %q", test.args, got, test.want)
		}
	}
}
