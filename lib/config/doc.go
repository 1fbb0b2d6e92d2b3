// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for buildcache
// commands and compiler wrappers.
//
// Configuration is loaded from a single file specified by either the
// BUILDCACHE_CONFIG environment variable (via [Load]) or a --config
// flag (via [LoadFile]). Wrappers are started by the build system and
// cannot take flags, so the environment variable is the usual route;
// it is normally set as a build setting of the project. There are no
// fallbacks and no automatic file search.
//
// The file may contain mode-specific sections (consumer, producer)
// that override base values when [Config].Mode matches, so one file
// can serve both CI producers and developer machines.
//
// Variable expansion is performed on path-like fields after loading:
// ${HOME}, ${VAR} and ${VAR:-default} patterns are expanded. Relative
// paths are resolved against the directory holding the config file.
//
// Key exports:
//
//   - [Config] -- the configuration with per-mode overrides
//   - [Default] -- a Config with consumer defaults
//   - [Load], [LoadFile] and [Resolve] -- the entry points for loading
package config
