/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package version carries build metadata.
package version

import "fmt"

// Version is set at build time via ldflags:
//
//	-X github.com/friendsincode/taskslot/internal/version.Version=X.Y.Z
var Version = "0.1.0"

// Commit is the VCS revision, also set via ldflags.
var Commit = "dev"

// String renders version and commit for logs and the CLI.
func String() string {
	return fmt.Sprintf("%s (%s)", Version, Commit)
}
