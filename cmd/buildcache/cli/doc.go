// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the command-line framework for the buildcache
// command.
//
// The central type is [Command], which represents a named subcommand with
// optional nested [Command.Subcommands], a [pflag.FlagSet] factory, and a
// Run function. Commands are assembled into a tree in
// cmd/buildcache/commands and dispatched via [Command.Execute], which
// handles flag parsing, subcommand routing, and help output.
//
// Flags are usually declared on a params struct with flag, desc and
// default tags and bound with [FlagsFromParams]. When a user types an
// unknown subcommand or flag, the framework suggests the closest known
// name by edit distance (suggest.go).
package cli
