// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/buildcache/cmd/buildcache/cli"
	"github.com/bureau-foundation/buildcache/lib/counters"
)

type statsParams struct {
	ConfigFlag
	cli.JSONOutput
	Reset   bool `flag:"reset" desc:"zero all counters after printing them"`
	NoColor bool `flag:"no-color" desc:"disable colored output"`
}

// statsEntry is one counter in --json output.
type statsEntry struct {
	Name  string `json:"name"`
	Value uint64 `json:"value"`
}

func statsCommand(streams IO) *cli.Command {
	var params statsParams

	return &cli.Command{
		Name:    "stats",
		Summary: "Print cache statistics",
		Usage:   "buildcache stats [flags]",
		Description: `Print the counters accumulated by every buildcache process since
the last reset: targets built from the cache, targets that missed,
wrapper invocations that fell back to the real tool, network timeouts,
and artifacts downloaded or reused from the local cache.`,
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("stats", &params)
		},
		Run: func(_ context.Context, args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument %q", args[0])
			}
			s, err := params.load(streams, "stats")
			if err != nil {
				return err
			}
			file := counters.New(s.config.CountersPath())
			values, err := file.Read()
			if err != nil {
				return err
			}

			entries := make([]statsEntry, 0, len(values))
			for _, position := range counters.Positions() {
				entries = append(entries, statsEntry{Name: position.String(), Value: values[position]})
			}
			if done, err := params.EmitJSON(streams.Stdout, entries); done {
				if err != nil {
					return err
				}
			} else {
				renderer := lipgloss.NewRenderer(streams.Stdout)
				if params.NoColor {
					renderer.SetColorProfile(termenv.Ascii)
				}
				renderStats(streams.Stdout, renderer, entries, values[counters.TargetHit], values[counters.TargetMiss])
			}

			if params.Reset {
				return file.Reset()
			}
			return nil
		},
	}
}

// renderStats prints one aligned line per counter, then the target hit
// rate when any target was decided.
func renderStats(w io.Writer, renderer *lipgloss.Renderer, entries []statsEntry, hits, misses uint64) {
	nameWidth := len("hit_rate")
	for _, entry := range entries {
		nameWidth = max(nameWidth, len(entry.Name))
	}
	nameStyle := renderer.NewStyle().Width(nameWidth + 3).Faint(true)
	valueStyle := renderer.NewStyle().Bold(true)

	for _, entry := range entries {
		fmt.Fprintln(w, nameStyle.Render(entry.Name)+valueStyle.Render(strconv.FormatUint(entry.Value, 10)))
	}

	total := hits + misses
	if total == 0 {
		return
	}
	rate := 100 * float64(hits) / float64(total)
	color := lipgloss.Color("1")
	switch {
	case rate >= 80:
		color = lipgloss.Color("2")
	case rate >= 50:
		color = lipgloss.Color("3")
	}
	fmt.Fprintln(w, nameStyle.Render("hit_rate")+valueStyle.Foreground(color).Render(fmt.Sprintf("%.1f%%", rate)))
}
