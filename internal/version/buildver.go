// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

// Package version provides access to build version variables and a
// formatted version string for cmd/certtool and cmd/tsaserver, grounded
// on src/version/buildver.go and the PrintVersion half of src/utils.go,
// narrowed to just the version concern.
package version

import (
	"fmt"
	"log"
	"os"
)

var (
	// The following variables are meant to be set by the build system
	// via linker -X flags. Any variable name changes need to be
	// replicated in the build target.

	// BuildHost contains the build hostname.
	BuildHost = "unknown"

	// BuildUser contains the build user.
	BuildUser = "unknown"

	// BuildTimestamp contains the build timestamp.
	BuildTimestamp = "0"

	// BuildSCMRevision contains the repository release tag or commit
	// hash.
	BuildSCMRevision = "unknown"

	// BuildSCMStatus contains the status of the repository ("clean" or
	// "dirty") at build time.
	BuildSCMStatus = "unknown"
)

// FormattedStr returns a formatted string identifying the build this
// binary came from.
func FormattedStr() string {
	return fmt.Sprintf("Version: %s-%s Host: %q User: %q Timestamp: %s",
		BuildSCMRevision, BuildSCMStatus, BuildHost, BuildUser, BuildTimestamp)
}

// Print writes the formatted version string to stderr and, when exit
// is true, terminates the process immediately afterwards; cmd/certtool
// and cmd/tsaserver both call this from a -version flag.
func Print(exit bool) string {
	ver := FormattedStr()
	if exit {
		fmt.Fprintln(os.Stderr, ver)
		os.Exit(0)
	}
	log.Print(ver)
	return ver
}
