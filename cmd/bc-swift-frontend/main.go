// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// bc-swift-frontend stands in for swift-frontend in builds using the remote cache.
// Pass it to the swift driver with -driver-use-frontend-path.
// When the target's cache is enabled it links the cached outputs into
// place; otherwise it runs the real swift-frontend.
package main

import (
	"os"

	"github.com/bureau-foundation/buildcache/lib/wrapper"
)

func main() {
	os.Exit(wrapper.Main(wrapper.SwiftFrontend{}))
}
