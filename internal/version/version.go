// Copyright 2025 The flareprox Authors. All rights reserved.
// Use of this source code is governed by a MPL
// license that can be found in the LICENSE file.

package version

// These values are set at build time with -ldflags.
var (
	Version = "devel"
	Time    = "unknown"
	Commit  = "unknown"
)
