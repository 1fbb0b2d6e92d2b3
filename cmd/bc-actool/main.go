// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// bc-actool stands in for actool in builds using the remote cache.
// Point ACTOOL at it.
// When the target's cache is enabled it links the cached outputs into
// place; otherwise it runs the real actool.
package main

import (
	"os"

	"github.com/bureau-foundation/buildcache/lib/wrapper"
)

func main() {
	os.Exit(wrapper.Main(wrapper.Actool{}))
}
