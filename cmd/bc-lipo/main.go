// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// bc-lipo stands in for lipo in builds using the remote cache.
// Point LIPO at it.
// When the target's cache is enabled it links the cached outputs into
// place; otherwise it runs the real lipo.
package main

import (
	"os"

	"github.com/bureau-foundation/buildcache/lib/wrapper"
)

func main() {
	os.Exit(wrapper.Main(wrapper.Lipo{}))
}
