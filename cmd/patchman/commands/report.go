package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bartekus/patchman/cmd/patchman/internal/clierr"
	"github.com/bartekus/patchman/internal/manifest"
	"github.com/bartekus/patchman/internal/report"
)

// NewReportCommand returns the `patchman report` command.
func NewReportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "report",
		Aliases: []string{"report-export"},
		Short:   "Export the manifest as a CSV or Markdown review sheet",
		Long: `Write one row per manifest entry with its commit id, date, summary and a link
built from report.base_url (or --base-url) followed by the commit id.`,
		Args: cobra.NoArgs,
		RunE: runReport,
	}

	// Flags in alphabetical order for deterministic help output
	cmd.Flags().String("base-url", "", "link prefix for commit ids (default: report.base_url from config)")
	cmd.Flags().String("format", "csv", "output format: csv or md")
	cmd.Flags().String("manifest", "", "manifest path (default: Patch_Manifest.* inside --patch-dir)")
	cmd.Flags().String("output", "", "report path (default: <patch-dir>/Patch_Report.<format>)")
	cmd.Flags().String("patch-dir", "", "directory holding the manifest")
	_ = cmd.MarkFlagRequired("patch-dir")

	return cmd
}

func runReport(cmd *cobra.Command, args []string) error {
	e, err := setupEnv(cmd, false)
	if err != nil {
		return err
	}

	patchDir, err := patchDirFlag(cmd)
	if err != nil {
		return err
	}
	baseURL, _ := cmd.Flags().GetString("base-url")
	formatFlag, _ := cmd.Flags().GetString("format")
	manifestPath, _ := cmd.Flags().GetString("manifest")
	output, _ := cmd.Flags().GetString("output")

	format, err := report.ParseFormat(formatFlag)
	if err != nil {
		return clierr.Wrap(clierr.ExitUsage, "invalid --format", err)
	}
	if baseURL == "" {
		baseURL = e.cfg.Report.BaseURL
	}
	if manifestPath == "" {
		manifestPath, err = manifest.Locate(patchDir)
		if err != nil {
			return clierr.Wrap(clierr.ExitUsage, "locating manifest", err)
		}
	}
	if output == "" {
		output = filepath.Join(patchDir, "Patch_Report."+string(format))
	}

	m, err := manifest.Read(manifestPath)
	if err != nil {
		return clierr.Wrap(clierr.ExitFailure, "reading manifest", err)
	}
	if err := report.Export(m, output, baseURL, format); err != nil {
		return clierr.Wrap(clierr.ExitFailure, "writing report", err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Report with %d row(s) written to %s\n", len(m), output)
	return nil
}
