package applier

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bartekus/patchman/internal/vcs"
)

// Kind classifies why an apply run stopped.
type Kind string

const (
	KindManifest       Kind = "manifest"
	KindDirtyWorktree  Kind = "dirty-worktree"
	KindBranchCreation Kind = "branch-creation"
	KindMissingPatches Kind = "missing-patches"
	KindPatchFailed    Kind = "patch-failed"
	KindResume         Kind = "resume"
)

// Sentinels matched by errors.Is against an *ApplyError of the same kind.
var (
	ErrManifest       = errors.New("manifest unusable")
	ErrDirtyWorktree  = errors.New("working tree has uncommitted changes")
	ErrBranchCreation = errors.New("branch creation failed")
	ErrMissingPatches = errors.New("missing patch files")
	ErrPatchFailed    = errors.New("patch failed to apply")
	ErrResume         = errors.New("cannot resume")
)

var sentinels = map[Kind]error{
	KindManifest:       ErrManifest,
	KindDirtyWorktree:  ErrDirtyWorktree,
	KindBranchCreation: ErrBranchCreation,
	KindMissingPatches: ErrMissingPatches,
	KindPatchFailed:    ErrPatchFailed,
	KindResume:         ErrResume,
}

// ApplyError reports a failed apply run. Result holds the captured streams of
// the failing git command, when there was one.
type ApplyError struct {
	Kind    Kind
	Branch  string
	Commit  string
	Missing []string
	Detail  string
	Result  vcs.Result
	Err     error
}

func (e *ApplyError) Error() string {
	var msg string
	switch e.Kind {
	case KindDirtyWorktree:
		msg = "working tree has uncommitted changes; commit or stash them first"
	case KindBranchCreation:
		msg = fmt.Sprintf("creating branch %q", e.Branch)
	case KindMissingPatches:
		msg = fmt.Sprintf("missing patch files for %d commit(s): %s", len(e.Missing), strings.Join(e.Missing, ", "))
	case KindPatchFailed:
		msg = fmt.Sprintf("applying %s", e.Commit)
	case KindResume:
		msg = "cannot resume"
	default:
		msg = "reading manifest"
	}
	if d := e.detail(); d != "" {
		msg += ": " + d
	}
	return msg
}

func (e *ApplyError) detail() string {
	switch {
	case e.Detail != "":
		return e.Detail
	case e.Err != nil:
		return e.Err.Error()
	case e.Result.ExitCode != 0:
		return fmt.Sprintf("exit %d: %s", e.Result.ExitCode, e.Result.Diagnostic())
	default:
		return ""
	}
}

func (e *ApplyError) Unwrap() error { return e.Err }

// Is matches the sentinel for e.Kind.
func (e *ApplyError) Is(target error) bool {
	return target == sentinels[e.Kind]
}
