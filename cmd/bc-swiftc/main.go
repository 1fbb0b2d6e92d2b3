// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// bc-swiftc stands in for swiftc in builds using the remote cache.
// Point SWIFT_EXEC at it.
// When the target's cache is enabled it links the cached outputs into
// place; otherwise it runs the real swiftc.
package main

import (
	"os"

	"github.com/bureau-foundation/buildcache/lib/wrapper"
)

func main() {
	os.Exit(wrapper.Main(wrapper.Swiftc{}))
}
