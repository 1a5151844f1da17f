package commands

import (
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bartekus/patchman/cmd/patchman/internal/clierr"
	"github.com/bartekus/patchman/internal/config"
	"github.com/bartekus/patchman/internal/log"
	"github.com/bartekus/patchman/internal/repo"
	"github.com/bartekus/patchman/internal/vcs"
)

// env bundles what a command needs: configuration and, when the command
// touches git, the repository and its gateway.
type env struct {
	cfg  config.Config
	repo *repo.Repo
	gw   vcs.Gateway
}

// setupEnv resolves the repository, loads config and initializes logging.
func setupEnv(cmd *cobra.Command, needRepo bool) (*env, error) {
	repoDir, _ := cmd.Flags().GetString("repo")
	configPath, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")

	e := &env{}
	searchDir := repoDir
	r, err := repo.Open(repoDir)
	switch {
	case err == nil:
		e.repo = r
		e.gw = vcs.NewExecGateway(r.Root())
		searchDir = r.Root()
	case needRepo:
		return nil, clierr.Wrap(clierr.ExitUsage, "opening repository", err)
	}

	cfg, err := config.Load(configPath, searchDir)
	if err != nil {
		return nil, clierr.Wrap(clierr.ExitUsage, "loading config", err)
	}
	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, clierr.Wrap(clierr.ExitUsage, "loading config", err)
	}
	if verbose {
		level = slog.LevelDebug
	}
	log.Init(cmd.ErrOrStderr(), level)

	e.cfg = cfg
	return e, nil
}

// patchDirFlag returns the --patch-dir flag as an absolute path; git runs in
// the repository root, not the caller's working directory.
func patchDirFlag(cmd *cobra.Command) (string, error) {
	dir, _ := cmd.Flags().GetString("patch-dir")
	if dir == "" {
		return "", nil
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", clierr.Wrap(clierr.ExitUsage, "resolving --patch-dir", err)
	}
	return abs, nil
}
