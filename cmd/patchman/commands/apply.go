package commands

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/bartekus/patchman/cmd/patchman/internal/clierr"
	"github.com/bartekus/patchman/internal/applier"
	"github.com/bartekus/patchman/internal/log"
	"github.com/bartekus/patchman/internal/manifest"
	"github.com/bartekus/patchman/internal/runstate"
)

// NewApplyCommand returns the `patchman apply` command.
func NewApplyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "apply",
		Aliases: []string{"apply-patches"},
		Short:   "Replay the manifest's patches onto a new branch",
		Long: `Create a new branch at HEAD and apply every manifest entry with "apply": true,
oldest commit first. The run stops at the first patch that fails and leaves the
branch checked out at that point.

After resolving the failure (git am --continue, or git am --skip), run
apply --resume to continue with the remaining entries.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(cmd, false)
		},
	}
	addApplyFlags(cmd)
	cmd.Flags().Bool("resume", false, "continue the last aborted run after the failed commit")
	return cmd
}

// NewDryRunCommand returns the `patchman dry-run` command.
func NewDryRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "dry-run",
		Aliases: []string{"apply-dry-run"},
		Short:   "Show what apply would do without touching the repository",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(cmd, true)
		},
	}
	addApplyFlags(cmd)
	return cmd
}

func addApplyFlags(cmd *cobra.Command) {
	cmd.Flags().String("patch-dir", "", "directory holding the manifest and patch files")
	cmd.Flags().String("branch", "", "branch to create (default: patchman/<patch-dir name>)")
	cmd.Flags().String("manifest", "", "manifest path (default: Patch_Manifest.* inside --patch-dir)")
	_ = cmd.MarkFlagRequired("patch-dir")
}

func runApply(cmd *cobra.Command, dryRun bool) error {
	e, err := setupEnv(cmd, true)
	if err != nil {
		return err
	}

	opts, err := applyOptions(cmd, e)
	if err != nil {
		return err
	}

	store := runstate.NewStore(opts.PatchDir)
	var previous *runstate.Record
	resolvedApplied := false
	if resume, _ := cmd.Flags().GetBool("resume"); resume {
		previous, err = store.Read()
		if err != nil {
			return clierr.Wrap(clierr.ExitFailure, "reading run state", err)
		}
		if !previous.Resumable() {
			return clierr.Usage("no aborted run to resume in %s", opts.PatchDir)
		}
		if cmd.Flags().Changed("branch") && opts.Branch != previous.Branch {
			return clierr.Usage("--branch %s does not match the aborted run's branch %s", opts.Branch, previous.Branch)
		}
		opts.Branch = previous.Branch
		if previous.Retry {
			opts.ResumeFrom = previous.Failed
		} else {
			opts.ResumeAfter = previous.Failed
			resolvedApplied, err = headMoved(e, previous.Tip)
			if err != nil {
				return clierr.Wrap(clierr.ExitFailure, "reading branch head", err)
			}
		}
	}

	a := applier.New(e.gw, e.repo)
	w := cmd.OutOrStdout()

	if dryRun {
		out, err := a.DryRun(cmd.Context(), opts)
		printOutcome(w, out)
		for _, p := range out.Problems {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "problem: %v\n", p)
		}
		if err != nil {
			return clierr.Wrap(clierr.ExitApply, "dry run found problems", err)
		}
		return nil
	}

	out, err := a.Apply(cmd.Context(), opts)
	printOutcome(w, out)
	if out.State == applier.StateSucceeded || out.Failed != "" {
		rec := newRecord(out, opts, previous, resolvedApplied, err)
		if tip, herr := e.repo.HeadCommit(); herr == nil {
			rec.Tip = tip
		} else {
			log.ErrorErr(log.CatApply, "failed to read branch head", herr)
		}
		if serr := store.Write(rec); serr != nil {
			log.ErrorErr(log.CatApply, "failed to record run state", serr, "path", store.Path())
		}
	}
	if err != nil {
		printFailure(cmd.ErrOrStderr(), err, out, opts)
		return clierr.Wrap(clierr.ExitApply, "applying patches", err)
	}
	return nil
}

func applyOptions(cmd *cobra.Command, e *env) (applier.Options, error) {
	patchDir, err := patchDirFlag(cmd)
	if err != nil {
		return applier.Options{}, err
	}
	branch, _ := cmd.Flags().GetString("branch")
	manifestPath, _ := cmd.Flags().GetString("manifest")

	if manifestPath == "" {
		manifestPath, err = manifest.Locate(patchDir)
		if err != nil {
			return applier.Options{}, clierr.Wrap(clierr.ExitUsage, "locating manifest", err)
		}
	}
	if branch == "" {
		branch = "patchman/" + filepath.Base(patchDir)
	}

	return applier.Options{
		ManifestPath: manifestPath,
		PatchDir:     patchDir,
		Branch:       branch,
		ThreeWay:     e.cfg.Apply.ThreeWay,
	}, nil
}

// headMoved reports whether the branch head differs from tip, meaning the
// user committed the failed patch (git am --continue) rather than dropping it
// (git am --skip or --abort). A record without a tip counts as moved.
func headMoved(e *env, tip string) (bool, error) {
	if tip == "" {
		return true, nil
	}
	head, err := e.repo.HeadCommit()
	if err != nil {
		return false, err
	}
	return head != tip, nil
}

// newRecord summarizes a run for the state file. A resumed run carries the
// previous run's commits, with the failed one filed under applied or skipped
// depending on how the user resolved it.
func newRecord(out *applier.Outcome, opts applier.Options, previous *runstate.Record, resolvedApplied bool, err error) runstate.Record {
	applied := []string{}
	skipped := []string{}
	if previous != nil {
		applied = append(applied, previous.Applied...)
		skipped = append(skipped, previous.Skipped...)
		switch {
		case previous.Retry:
			// The failed commit is part of this run's outcome.
		case resolvedApplied:
			applied = append(applied, previous.Failed)
		default:
			skipped = append(skipped, previous.Failed)
		}
	}
	applied = append(applied, out.Applied...)
	skipped = append(skipped, out.Skipped...)

	rec := runstate.Record{
		Status:     runstate.StatusSucceeded,
		Branch:     out.Branch,
		Manifest:   opts.ManifestPath,
		Applied:    applied,
		Skipped:    skipped,
		FinishedAt: time.Now().UTC(),
	}
	if err != nil {
		rec.Status = runstate.StatusAborted
		rec.Failed = out.Failed
		rec.Retry = out.Retry
		rec.Detail = err.Error()
	}
	return rec
}

func printOutcome(w io.Writer, out *applier.Outcome) {
	if out == nil {
		return
	}
	for _, s := range out.Steps {
		switch {
		case s.Action == applier.ActionCreateBranch:
			_, _ = fmt.Fprintf(w, "BRANCH: %s\n", out.Branch)
		case s.Action == applier.ActionSkip:
			_, _ = fmt.Fprintf(w, "SKIP:   %s %s\n", s.Commit, s.Summary)
		case s.Commit == out.Failed:
			_, _ = fmt.Fprintf(w, "FAIL:   %s %s\n", s.Commit, s.Summary)
		default:
			_, _ = fmt.Fprintf(w, "APPLY:  %s %s\n", s.Commit, s.Summary)
		}
	}

	verb := "applied"
	if out.DryRun {
		verb = "would apply"
	}
	_, _ = fmt.Fprintf(w, "%s %d, skipped %d on branch %s (%s)\n",
		verb, len(out.Applied), len(out.Skipped), out.Branch, out.State)
}

// printFailure prints the failing commit and the captured git streams.
func printFailure(w io.Writer, err error, out *applier.Outcome, opts applier.Options) {
	var ae *applier.ApplyError
	if !errors.As(err, &ae) {
		return
	}
	if ae.Commit != "" {
		_, _ = fmt.Fprintf(w, "failed commit: %s\n", ae.Commit)
	}
	if s := strings.TrimSpace(ae.Result.Stdout); s != "" {
		_, _ = fmt.Fprintf(w, "--- git stdout ---\n%s\n", s)
	}
	if s := strings.TrimSpace(ae.Result.Stderr); s != "" {
		_, _ = fmt.Fprintf(w, "--- git stderr ---\n%s\n", s)
	}
	if out == nil || out.Failed == "" {
		return
	}
	if out.Retry {
		_, _ = fmt.Fprintf(w, "branch %s is left at the failure point; %s was not applied. Fix the cause, then run:\n  patchman apply --patch-dir %s --resume\n",
			opts.Branch, out.Failed, opts.PatchDir)
		return
	}
	_, _ = fmt.Fprintf(w, "branch %s is left at the failure point; resolve with git am --continue or git am --skip, then run:\n  patchman apply --patch-dir %s --resume\n",
		opts.Branch, opts.PatchDir)
}
