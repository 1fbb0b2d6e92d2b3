// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// bc-clang stands in for clang in builds using the remote cache.
// Point CC at it.
// When the target's cache is enabled it links the cached outputs into
// place; otherwise it runs the real clang.
package main

import (
	"os"

	"github.com/bureau-foundation/buildcache/lib/wrapper"
)

func main() {
	os.Exit(wrapper.Main(wrapper.Clang{}))
}
