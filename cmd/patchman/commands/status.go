package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bartekus/patchman/cmd/patchman/internal/clierr"
	"github.com/bartekus/patchman/internal/runstate"
)

// NewStatusCommand returns the `patchman status` command.
func NewStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the last apply run recorded for a patch directory",
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	}

	cmd.Flags().Bool("clear", false, "forget the recorded run")
	cmd.Flags().Bool("json", false, "output the record as JSON")
	cmd.Flags().String("patch-dir", "", "directory holding the manifest and patch files")
	_ = cmd.MarkFlagRequired("patch-dir")

	return cmd
}

func runStatus(cmd *cobra.Command, args []string) error {
	patchDir, err := patchDirFlag(cmd)
	if err != nil {
		return err
	}
	reset, _ := cmd.Flags().GetBool("clear")
	asJSON, _ := cmd.Flags().GetBool("json")

	store := runstate.NewStore(patchDir)
	w := cmd.OutOrStdout()

	if reset {
		if err := store.Reset(); err != nil {
			return clierr.Wrap(clierr.ExitFailure, "clearing run state", err)
		}
		_, _ = fmt.Fprintln(w, "Run state cleared.")
		return nil
	}

	last, err := store.Read()
	if err != nil {
		return clierr.Wrap(clierr.ExitFailure, "reading run state", err)
	}

	if asJSON {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(last)
	}

	if last == nil {
		_, _ = fmt.Fprintln(w, "No apply run recorded.")
		return nil
	}

	_, _ = fmt.Fprintf(w, "Status:  %s\n", last.Status)
	_, _ = fmt.Fprintf(w, "Branch:  %s\n", last.Branch)
	_, _ = fmt.Fprintf(w, "Applied: %d\n", len(last.Applied))
	_, _ = fmt.Fprintf(w, "Skipped: %d\n", len(last.Skipped))
	if last.Failed != "" {
		_, _ = fmt.Fprintf(w, "Failed:  %s\n", last.Failed)
		_, _ = fmt.Fprintf(w, "Detail:  %s\n", last.Detail)
	}
	return nil
}
