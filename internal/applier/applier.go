// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Patchman - Patchman curates upstream commits into a reviewable, re-appliable patch set for downstream forks.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

// Package applier replays a manifest's patches onto a new branch.
//
// A run moves through idle -> checked -> branch-created -> applying and ends
// in succeeded or aborted. It is fail-stop: the first patch that does not
// apply halts the run and leaves the branch checked out, partially patched,
// for inspection. Nothing is rolled back.
package applier

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/bartekus/patchman/internal/log"
	"github.com/bartekus/patchman/internal/manifest"
	"github.com/bartekus/patchman/internal/vcs"
)

// State is a point in the apply state machine.
type State string

const (
	StateIdle          State = "idle"
	StateChecked       State = "checked"
	StateBranchCreated State = "branch-created"
	StateApplying      State = "applying"
	StateSucceeded     State = "succeeded"
	StateAborted       State = "aborted"
)

// Inspector answers read-only questions about the repository's refs.
type Inspector interface {
	BranchExists(name string) (bool, error)
	CurrentBranch() (string, error)
}

// Options describe one apply run.
type Options struct {
	ManifestPath string
	PatchDir     string
	Branch       string
	ThreeWay     bool
	// ResumeAfter continues an aborted run on the existing Branch with the
	// entries that follow this commit in application order.
	ResumeAfter string
	// ResumeFrom continues an aborted run on the existing Branch starting
	// with this commit. It is used when the failed commit never reached git.
	ResumeFrom string
}

func (o Options) resuming() bool { return o.ResumeAfter != "" || o.ResumeFrom != "" }

// Action is what a step does to the branch.
type Action string

const (
	ActionCreateBranch Action = "create-branch"
	ActionApply        Action = "apply"
	ActionSkip         Action = "skip"
)

// Step is one planned or executed transition.
type Step struct {
	// Index is the entry's position in application order; -1 for branch creation.
	Index     int    `json:"index"`
	Action    Action `json:"action"`
	Commit    string `json:"commit,omitempty"`
	Summary   string `json:"summary,omitempty"`
	PatchPath string `json:"patch_path,omitempty"`
}

// Outcome summarizes a run. For a dry run, Steps is the full plan and
// Problems lists every pre-flight check that would stop a real run.
type Outcome struct {
	State    State
	Branch   string
	DryRun   bool
	Steps    []Step
	Applied  []string
	Skipped  []string
	Failed   string
	// Retry is set when Failed was never handed to git, so no am session
	// is waiting and a resume must start with Failed again.
	Retry    bool
	Result   vcs.Result
	Problems []error
}

// Applier runs the apply state machine against a gateway and inspector.
type Applier struct {
	gw      vcs.Gateway
	inspect Inspector
	stat    func(string) (os.FileInfo, error)
}

func New(gw vcs.Gateway, inspect Inspector) *Applier {
	return &Applier{gw: gw, inspect: inspect, stat: os.Stat}
}

// Apply replays the manifest onto a new branch. On failure the returned
// outcome still describes how far the run got.
func (a *Applier) Apply(ctx context.Context, opts Options) (*Outcome, error) {
	out := &Outcome{State: StateIdle, Branch: opts.Branch}

	order, err := a.load(opts)
	if err != nil {
		out.State = StateAborted
		return out, err
	}

	if problems := a.preflight(ctx, opts, order); len(problems) > 0 {
		out.State = StateAborted
		return out, problems[0]
	}
	out.State = StateChecked

	if !opts.resuming() {
		out.Steps = append(out.Steps, Step{Index: -1, Action: ActionCreateBranch})
		res, err := a.gw.CreateBranch(ctx, opts.Branch)
		if err != nil || !res.OK() {
			out.State = StateAborted
			out.Result = res
			log.Warn(log.CatApply, "branch creation failed", "branch", opts.Branch, "detail", res.Diagnostic())
			return out, &ApplyError{Kind: KindBranchCreation, Branch: opts.Branch, Result: res, Err: err}
		}
		log.Info(log.CatApply, "branch created", "branch", opts.Branch)
	} else {
		log.Info(log.CatApply, "resuming", "branch", opts.Branch, "after", opts.ResumeAfter, "from", opts.ResumeFrom)
	}
	out.State = StateBranchCreated

	for i, e := range order {
		out.State = StateApplying
		step := stepFor(i, e, opts.PatchDir)
		out.Steps = append(out.Steps, step)

		if !e.Apply {
			out.Skipped = append(out.Skipped, e.Commit)
			log.Info(log.CatApply, "skipped", "commit", e.Commit)
			continue
		}

		if _, err := a.stat(step.PatchPath); err != nil {
			out.State = StateAborted
			out.Failed = e.Commit
			out.Retry = true
			log.Warn(log.CatApply, "patch file vanished", "commit", e.Commit, "path", step.PatchPath)
			return out, &ApplyError{Kind: KindMissingPatches, Branch: opts.Branch, Commit: e.Commit, Missing: []string{e.Commit}, Err: err}
		}

		res, err := a.gw.ApplyPatch(ctx, step.PatchPath, opts.ThreeWay)
		if err != nil || !res.OK() {
			out.State = StateAborted
			out.Failed = e.Commit
			out.Retry = err != nil
			out.Result = res
			log.Warn(log.CatApply, "patch failed", "commit", e.Commit, "exit", res.ExitCode)
			return out, &ApplyError{Kind: KindPatchFailed, Branch: opts.Branch, Commit: e.Commit, Result: res, Err: err}
		}
		out.Applied = append(out.Applied, e.Commit)
		log.Info(log.CatApply, "applied", "commit", e.Commit, "summary", e.Summary)
	}

	out.State = StateSucceeded
	return out, nil
}

// DryRun walks the same transitions as Apply without creating the branch or
// applying anything. The returned error joins every problem found.
func (a *Applier) DryRun(ctx context.Context, opts Options) (*Outcome, error) {
	out := &Outcome{State: StateIdle, Branch: opts.Branch, DryRun: true}

	order, err := a.load(opts)
	if err != nil {
		out.State = StateAborted
		out.Problems = []error{err}
		return out, err
	}

	out.Problems = a.preflight(ctx, opts, order)
	if !opts.resuming() {
		out.Steps = append(out.Steps, Step{Index: -1, Action: ActionCreateBranch})
	}
	for i, e := range order {
		step := stepFor(i, e, opts.PatchDir)
		out.Steps = append(out.Steps, step)
		if e.Apply {
			out.Applied = append(out.Applied, e.Commit)
		} else {
			out.Skipped = append(out.Skipped, e.Commit)
		}
	}

	if len(out.Problems) > 0 {
		out.State = StateAborted
		return out, errors.Join(out.Problems...)
	}
	out.State = StateSucceeded
	return out, nil
}

// load reads the manifest and derives the entries to process, in application order.
func (a *Applier) load(opts Options) ([]manifest.Entry, error) {
	if opts.Branch == "" {
		return nil, &ApplyError{Kind: KindBranchCreation, Detail: "empty branch name"}
	}

	m, err := manifest.Read(opts.ManifestPath)
	if err != nil {
		return nil, &ApplyError{Kind: KindManifest, Err: err}
	}

	order := GenerationToApplicationOrder(m)
	switch {
	case opts.ResumeFrom != "":
		return remainingFrom(order, opts.ResumeFrom)
	case opts.ResumeAfter != "":
		return remainingAfter(order, opts.ResumeAfter)
	}
	return order, nil
}

// preflight runs every check that must pass before the branch is touched,
// in the order a real run would hit them.
func (a *Applier) preflight(ctx context.Context, opts Options, order []manifest.Entry) []error {
	var problems []error

	clean, err := a.worktreeClean(ctx)
	switch {
	case err != nil:
		problems = append(problems, &ApplyError{Kind: KindDirtyWorktree, Err: err})
	case !clean:
		problems = append(problems, &ApplyError{Kind: KindDirtyWorktree})
	}

	if !opts.resuming() {
		exists, err := a.inspect.BranchExists(opts.Branch)
		switch {
		case err != nil:
			problems = append(problems, &ApplyError{Kind: KindBranchCreation, Branch: opts.Branch, Err: err})
		case exists:
			problems = append(problems, &ApplyError{Kind: KindBranchCreation, Branch: opts.Branch, Detail: "branch already exists"})
		}
	} else {
		current, err := a.inspect.CurrentBranch()
		switch {
		case err != nil:
			problems = append(problems, &ApplyError{Kind: KindResume, Branch: opts.Branch, Err: err})
		case current != opts.Branch:
			problems = append(problems, &ApplyError{
				Kind:   KindResume,
				Branch: opts.Branch,
				Detail: "expected branch " + opts.Branch + " to be checked out, found " + displayBranch(current),
			})
		}
	}

	if err := validatePatches(order, opts.PatchDir, a.stat); err != nil {
		problems = append(problems, err)
	}
	return problems
}

// worktreeClean reports whether tracked files have no staged or unstaged
// changes. Untracked files are ignored so a patch directory inside the
// repository does not count.
func (a *Applier) worktreeClean(ctx context.Context) (bool, error) {
	res, err := a.gw.Status(ctx)
	if err != nil {
		return false, err
	}
	if !res.OK() {
		return false, fmt.Errorf("git status: exit %d: %s", res.ExitCode, res.Diagnostic())
	}
	return strings.TrimSpace(res.Stdout) == "", nil
}

func stepFor(i int, e manifest.Entry, patchDir string) Step {
	s := Step{Index: i, Action: ActionApply, Commit: e.Commit, Summary: e.Summary}
	if !e.Apply {
		s.Action = ActionSkip
		return s
	}
	s.PatchPath = manifest.PatchPath(patchDir, e.Commit)
	return s
}

func displayBranch(name string) string {
	if name == "" {
		return "detached HEAD"
	}
	return name
}
