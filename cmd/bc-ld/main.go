// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// bc-ld stands in for ld in builds using the remote cache.
// Point LD and LDPLUSPLUS at it.
// When the target's cache is enabled it links the cached outputs into
// place; otherwise it runs the real ld.
package main

import (
	"os"

	"github.com/bureau-foundation/buildcache/lib/wrapper"
)

func main() {
	os.Exit(wrapper.Main(wrapper.Ld{}))
}
