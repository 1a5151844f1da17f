package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/bartekus/patchman/cmd/patchman/internal/clierr"
	"github.com/bartekus/patchman/internal/exporter"
	"github.com/bartekus/patchman/internal/filter"
	"github.com/bartekus/patchman/internal/log"
	"github.com/bartekus/patchman/internal/manifest"
	"github.com/bartekus/patchman/internal/selector"
)

// NewGenCommand returns the `patchman gen` command.
func NewGenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "gen",
		Aliases: []string{"gen-patches", "generate", "select"},
		Short:   "Select commits and write a manifest plus one patch file per commit",
		Long: `Select commits with git log filters, write Patch_Manifest.json (or .yaml)
into the patch directory, and export every selected commit as <commit>.patch.

Filters use the form "name:pattern;name:pattern", each becoming --name pattern
on the git log command line, e.g. "author:jane;since:2023-01-01". Without a
filter, or with a malformed one, the most recent select.default_limit commits
are selected.`,
		Args: cobra.NoArgs,
		RunE: runGen,
	}

	cmd.Flags().String("patch-dir", "", "output directory (default: ./patches-<random>)")
	cmd.Flags().String("filter", "", `git log filters as "name:pattern;name:pattern"`)
	cmd.Flags().String("repo-src", "", "remote branch or ref to select commits from (default: HEAD)")
	cmd.Flags().String("fetch", "", "remote to fetch before selecting")
	cmd.Flags().String("format", "", "manifest format: json or yaml (default: manifest.format from config)")
	cmd.Flags().Bool("force", false, "write into a non-empty patch directory, overwriting existing files")

	return cmd
}

func runGen(cmd *cobra.Command, args []string) error {
	e, err := setupEnv(cmd, true)
	if err != nil {
		return err
	}

	patchDir, err := patchDirFlag(cmd)
	if err != nil {
		return err
	}
	filterSpec, _ := cmd.Flags().GetString("filter")
	repoSrc, _ := cmd.Flags().GetString("repo-src")
	remote, _ := cmd.Flags().GetString("fetch")
	formatFlag, _ := cmd.Flags().GetString("format")
	force, _ := cmd.Flags().GetBool("force")

	if formatFlag == "" {
		formatFlag = e.cfg.Manifest.Format
	}
	format, err := manifest.ParseFormat(formatFlag)
	if err != nil {
		return clierr.Wrap(clierr.ExitUsage, "invalid --format", err)
	}

	set, ferr := filter.Parse(filterSpec)
	if ferr != nil {
		log.Warn(log.CatSelect, "ignoring malformed filter, selecting most recent commits",
			"err", ferr, "limit", e.cfg.Select.DefaultLimit)
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v; selecting the last %d commits instead\n",
			ferr, e.cfg.Select.DefaultLimit)
	}

	ctx := cmd.Context()
	sel := selector.New(e.gw)

	if remote != "" {
		if err := sel.Fetch(ctx, remote); err != nil {
			return clierr.Wrap(clierr.ExitSelection, "fetching upstream", err)
		}
	}

	records, err := sel.Select(ctx, selector.Options{
		SourceRef:  repoSrc,
		Args:       filter.ArgsOrDefault(set, e.cfg.Select.DefaultLimit),
		DateFormat: e.cfg.Select.DateFormat,
	})
	if err != nil {
		return clierr.Wrap(clierr.ExitSelection, "selecting commits", err)
	}

	if patchDir == "" {
		patchDir, err = filepath.Abs("patches-" + uuid.NewString()[:7])
		if err != nil {
			return err
		}
	}
	if err := prepareOutDir(patchDir, force); err != nil {
		return err
	}

	m, manifestPath, err := manifest.Build(records, patchDir, format)
	if err != nil {
		return clierr.Wrap(clierr.ExitFailure, "writing manifest", err)
	}

	warnings := exporter.New(e.gw).Export(ctx, m, patchDir)

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "The patch directory is located at: %s\n", patchDir)
	_, _ = fmt.Fprintf(out, "Selected %d commit(s); manifest: %s\n", len(m), manifestPath)
	for _, w := range warnings {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", w)
	}
	if len(warnings) > 0 {
		_, _ = fmt.Fprintf(out, "%d patch(es) could not be exported; set \"apply\": false for them or re-run gen\n", len(warnings))
	}
	return nil
}

// prepareOutDir creates dir, refusing to reuse a non-empty one unless force is set.
func prepareOutDir(dir string, force bool) error {
	entries, err := os.ReadDir(dir)
	switch {
	case os.IsNotExist(err):
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return clierr.Wrap(clierr.ExitFailure, "creating patch directory", err)
		}
		return nil
	case err != nil:
		return clierr.Wrap(clierr.ExitUsage, "reading patch directory", err)
	case len(entries) > 0 && !force:
		return clierr.Usage("patch directory %s is not empty; use --force to overwrite it", dir)
	default:
		return nil
	}
}
