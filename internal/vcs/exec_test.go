package vcs

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResult_Diagnostic(t *testing.T) {
	assert.Equal(t, "fatal: bad", Result{ExitCode: 128, Stdout: "out", Stderr: " fatal: bad\n"}.Diagnostic())
	assert.Equal(t, "out", Result{ExitCode: 1, Stdout: "out\n"}.Diagnostic())
	assert.True(t, Result{}.OK())
}

func TestExecGateway(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()
	ctx := context.Background()

	runGit(t, dir, "init", "-b", "main")
	runGit(t, dir, "config", "user.email", "test@example.com")
	runGit(t, dir, "config", "user.name", "Test User")
	createFile(t, dir, "a.txt", "one\n")
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-m", "first")

	g := NewExecGateway(dir)

	res, err := g.Log(ctx, []string{"--pretty=format:%s"})
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Equal(t, "first", strings.TrimSpace(res.Stdout))

	// A failing command is reported through the result, not the error.
	res, err = g.Log(ctx, []string{"no-such-ref"})
	require.NoError(t, err)
	assert.False(t, res.OK())
	assert.NotEmpty(t, res.Diagnostic())

	out := filepath.Join(t.TempDir(), "head.patch")
	res, err = g.FormatPatch(ctx, "HEAD", out)
	require.NoError(t, err)
	require.True(t, res.OK(), res.Diagnostic())
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Subject: [PATCH] first")

	res, err = g.CreateBranch(ctx, "replay")
	require.NoError(t, err)
	assert.True(t, res.OK(), res.Diagnostic())

	res, err = g.CreateBranch(ctx, "replay")
	require.NoError(t, err)
	assert.False(t, res.OK(), "creating an existing branch must fail")
}

func TestExecGateway_Status(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()
	ctx := context.Background()

	runGit(t, dir, "init", "-b", "main")
	runGit(t, dir, "config", "user.email", "test@example.com")
	runGit(t, dir, "config", "user.name", "Test User")
	createFile(t, dir, "a.txt", "one\n")
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-m", "first")

	g := NewExecGateway(dir)

	res, err := g.Status(ctx)
	require.NoError(t, err)
	require.True(t, res.OK(), res.Diagnostic())
	assert.Empty(t, strings.TrimSpace(res.Stdout))

	// Untracked files are not listed.
	createFile(t, dir, "patches/x.patch", "x")
	res, err = g.Status(ctx)
	require.NoError(t, err)
	assert.Empty(t, strings.TrimSpace(res.Stdout))

	createFile(t, dir, "a.txt", "two\n")
	res, err = g.Status(ctx)
	require.NoError(t, err)
	assert.Contains(t, res.Stdout, "a.txt")
}

func TestExecGateway_MissingBinary(t *testing.T) {
	g := &ExecGateway{dir: t.TempDir(), binary: "patchman-no-such-git"}
	_, err := g.Fetch(context.Background(), "origin")
	assert.Error(t, err)
}

func runGit(t *testing.T, dir string, args ...string) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git %v failed: %v\nOutput: %s", args, err, out)
	}
}

func createFile(t *testing.T, dir, path, content string) {
	fullPath := filepath.Join(dir, path)
	require.NoError(t, os.MkdirAll(filepath.Dir(fullPath), 0755))
	require.NoError(t, os.WriteFile(fullPath, []byte(content), 0644))
}
