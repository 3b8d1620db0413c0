// Copyright (c) 2021 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package version provides the build version of the daemon.  The defaults
// describe a development build; release builds override the suffix and
// commit through -ldflags.
package version

import "fmt"

var (
	major  = 0
	minor  = 3
	patch  = 0
	suffix = "dev"

	// commit is the short hash of the git revision the binary was built
	// from, injected at link time.
	commit = ""
)

// GetVersion returns the semantic version string of this build.
func GetVersion() string {
	v := fmt.Sprintf("%d.%d.%d", major, minor, patch)
	if suffix != "" {
		v += "-" + suffix
	}
	if commit != "" {
		v += "+" + commit
	}
	return v
}
