// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"
)

// Command is one node of the buildcache command tree. Leaf commands set
// Run; group commands set Subcommands.
type Command struct {
	// Name is the word the user types to select this command.
	Name string

	// Summary is the one-line text listed in the parent's help.
	Summary string

	// Description replaces Summary at the top of the command's own
	// help page.
	Description string

	// Usage overrides the synthesized usage line.
	Usage string

	// Examples are appended to the help page.
	Examples []Example

	// Flags builds a fresh flag set. It may be called more than once
	// per invocation (parsing, suggestions, help), so it must not
	// carry state between calls beyond the bound destinations.
	Flags func() *pflag.FlagSet

	Subcommands []*Command

	// Run receives the positional arguments left after flag parsing.
	// When Subcommands is also set, Run handles invocations that do
	// not name a subcommand.
	Run func(ctx context.Context, args []string) error

	// HelpOutput receives help text. Unset commands inherit from
	// their parent; the root falls back to os.Stderr.
	HelpOutput io.Writer

	parent *Command
}

// Example is one entry in the Examples section of a help page.
type Example struct {
	Description string
	Command     string
}

// UsageError reports a command line the tree could not dispatch. The
// message ends with a pointer to the failing command's help page.
type UsageError struct {
	// Command is the full path of the command that rejected the input.
	Command string

	// Problem describes what was wrong, without the help pointer.
	Problem string

	// Suggestion is the closest valid spelling, if any was close
	// enough to offer.
	Suggestion string
}

func (e *UsageError) Error() string {
	var message strings.Builder
	message.WriteString(e.Problem)
	if e.Suggestion != "" {
		fmt.Fprintf(&message, " (did you mean %s?)", e.Suggestion)
	}
	fmt.Fprintf(&message, "\n\nRun '%s --help' for usage.", e.Command)
	return message.String()
}

// Execute dispatches args through the tree rooted at c.
func (c *Command) Execute(ctx context.Context, args []string) error {
	if len(args) > 0 && isHelpFlag(args[0]) {
		c.PrintHelp(c.helpOutput())
		return nil
	}

	if len(c.Subcommands) > 0 && len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		sub := c.find(args[0])
		if sub == nil {
			usage := &UsageError{Command: c.fullName(), Problem: fmt.Sprintf("unknown command %q", args[0])}
			if suggestion := suggestCommand(args[0], c.Subcommands); suggestion != "" {
				usage.Suggestion = fmt.Sprintf("%q", suggestion)
			}
			return usage
		}
		sub.parent = c
		return sub.Execute(ctx, args[1:])
	}

	if c.Run == nil {
		c.PrintHelp(c.helpOutput())
		switch {
		case len(c.Subcommands) == 0:
			return fmt.Errorf("no action defined for %q", c.fullName())
		case len(args) == 0:
			return fmt.Errorf("subcommand required")
		default:
			return fmt.Errorf("subcommand required (got flag %q)", args[0])
		}
	}

	positional, err := c.parseFlags(args)
	if err != nil {
		return err
	}
	return c.Run(ctx, positional)
}

// parseFlags applies args to a fresh flag set and returns what is left.
func (c *Command) parseFlags(args []string) ([]string, error) {
	if c.Flags == nil {
		return args, nil
	}
	flagSet := c.Flags()
	flagSet.SetOutput(io.Discard)
	if err := flagSet.Parse(args); err != nil {
		usage := &UsageError{Command: c.fullName(), Problem: err.Error()}
		if strings.Contains(usage.Problem, "unknown flag") || strings.Contains(usage.Problem, "unknown shorthand flag") {
			usage.Suggestion = suggestFlag(args, c.Flags())
		}
		return nil, usage
	}
	return flagSet.Args(), nil
}

func (c *Command) find(name string) *Command {
	for _, sub := range c.Subcommands {
		if sub.Name == name {
			return sub
		}
	}
	return nil
}

// PrintHelp writes c's help page to w.
func (c *Command) PrintHelp(w io.Writer) {
	name := c.fullName()

	switch {
	case c.Description != "":
		fmt.Fprintf(w, "%s\n\n", c.Description)
	case c.Summary != "":
		fmt.Fprintf(w, "%s\n\n", c.Summary)
	}
	fmt.Fprintf(w, "Usage:\n  %s\n", c.usageLine())

	if len(c.Subcommands) > 0 {
		fmt.Fprintf(w, "\nCommands:\n")
		table := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
		for _, sub := range c.Subcommands {
			fmt.Fprintf(table, "  %s\t%s\n", sub.Name, sub.Summary)
		}
		table.Flush()
	}

	if c.Flags != nil {
		if defaults := c.Flags().FlagUsages(); defaults != "" {
			fmt.Fprintf(w, "\nFlags:\n%s", defaults)
		}
	}

	if len(c.Examples) > 0 {
		fmt.Fprintf(w, "\nExamples:\n")
		for _, example := range c.Examples {
			if example.Description == "" {
				fmt.Fprintf(w, "  %s\n", example.Command)
				continue
			}
			fmt.Fprintf(w, "  # %s\n  %s\n\n", example.Description, example.Command)
		}
	}

	if len(c.Subcommands) > 0 {
		fmt.Fprintf(w, "\nRun '%s <command> --help' for more information on a command.\n", name)
	}
}

func (c *Command) usageLine() string {
	switch {
	case c.Usage != "":
		return c.Usage
	case len(c.Subcommands) > 0:
		return c.fullName() + " <command> [flags]"
	default:
		return c.fullName() + " [flags]"
	}
}

func (c *Command) helpOutput() io.Writer {
	for command := c; command != nil; command = command.parent {
		if command.HelpOutput != nil {
			return command.HelpOutput
		}
	}
	return os.Stderr
}

// fullName is the space-separated path from the root, e.g.
// "buildcache stats".
func (c *Command) fullName() string {
	if c.parent == nil {
		return c.Name
	}
	return c.parent.fullName() + " " + c.Name
}

func isHelpFlag(arg string) bool {
	switch arg {
	case "-h", "--help", "help":
		return true
	}
	return false
}
