package vcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/bartekus/patchman/internal/log"
)

// ExecGateway implements Gateway by running the git binary in Dir.
type ExecGateway struct {
	dir    string
	binary string
}

// NewExecGateway returns a gateway that runs git inside dir.
func NewExecGateway(dir string) *ExecGateway {
	return &ExecGateway{dir: dir, binary: "git"}
}

func (g *ExecGateway) Log(ctx context.Context, args []string) (Result, error) {
	return g.run(ctx, append([]string{"log"}, args...)...)
}

func (g *ExecGateway) FormatPatch(ctx context.Context, commit, outPath string) (Result, error) {
	return g.run(ctx, "format-patch", "-1", "--output", outPath, commit)
}

func (g *ExecGateway) CreateBranch(ctx context.Context, name string) (Result, error) {
	return g.run(ctx, "checkout", "-b", name)
}

func (g *ExecGateway) ApplyPatch(ctx context.Context, patchPath string, threeWay bool) (Result, error) {
	args := []string{"am"}
	if threeWay {
		args = append(args, "--3way")
	}
	return g.run(ctx, append(args, patchPath)...)
}

func (g *ExecGateway) Fetch(ctx context.Context, remote string) (Result, error) {
	return g.run(ctx, "fetch", remote)
}

func (g *ExecGateway) Status(ctx context.Context) (Result, error) {
	return g.run(ctx, "status", "--porcelain", "--untracked-files=no")
}

func (g *ExecGateway) run(ctx context.Context, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, g.binary, args...)
	cmd.Dir = g.dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.Debug(log.CatVCS, "running git", "args", strings.Join(args, " "), "dir", g.dir)

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return res, fmt.Errorf("running git %s: %w", args[0], err)
		}
		res.ExitCode = exitErr.ExitCode()
		log.Debug(log.CatVCS, "git exited non-zero", "args", strings.Join(args, " "), "exit", res.ExitCode)
	}
	return res, nil
}
