// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Patchman - Patchman curates upstream commits into a reviewable, re-appliable patch set for downstream forks.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

// Package vcs wraps the git binary. Every call blocks until the subprocess
// exits and reports its exit status together with the captured streams.
package vcs

import (
	"context"
	"strings"
)

// Result is the outcome of a single git invocation.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// OK reports whether the command exited with status 0.
func (r Result) OK() bool { return r.ExitCode == 0 }

// Diagnostic returns the most useful captured stream for an error message:
// stderr when present, stdout otherwise.
func (r Result) Diagnostic() string {
	if s := strings.TrimSpace(r.Stderr); s != "" {
		return s
	}
	return strings.TrimSpace(r.Stdout)
}

// Gateway is the set of version-control operations patchman needs.
//
// A non-nil error means the command could not be started at all; a command
// that ran and failed returns a nil error and a non-zero Result.ExitCode.
type Gateway interface {
	// Log runs `git log <args...>`.
	Log(ctx context.Context, args []string) (Result, error)
	// FormatPatch writes commit as a single-commit patch to outPath.
	FormatPatch(ctx context.Context, commit, outPath string) (Result, error)
	// CreateBranch creates and checks out a new branch at the current HEAD.
	CreateBranch(ctx context.Context, name string) (Result, error)
	// ApplyPatch replays a patch file onto the checked out branch as a commit.
	ApplyPatch(ctx context.Context, patchPath string, threeWay bool) (Result, error)
	// Fetch updates remote-tracking refs from remote.
	Fetch(ctx context.Context, remote string) (Result, error)
	// Status lists staged and unstaged changes to tracked files in
	// porcelain format. Empty output means a clean worktree.
	Status(ctx context.Context) (Result, error)
}
