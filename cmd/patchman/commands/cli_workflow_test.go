package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bartekus/patchman/cmd/patchman/internal/clierr"
	"github.com/bartekus/patchman/internal/manifest"
	"github.com/bartekus/patchman/internal/runstate"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
}

func runGit(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %v failed: %v\n%s", args, err, out)
	}
	return string(out)
}

func createFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func commitFile(t *testing.T, dir, name, content, msg string) {
	t.Helper()
	createFile(t, dir, name, content)
	runGit(t, dir, "add", name)
	runGit(t, dir, "commit", "-m", msg)
}

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	runGit(t, dir, "init", "-b", "main")
	runGit(t, dir, "config", "user.email", "test@example.com")
	runGit(t, dir, "config", "user.name", "Test User")
	runGit(t, dir, "config", "commit.gpgsign", "false")
	commitFile(t, dir, "a.txt", "base\n", "base")
	return dir
}

// execute runs a fresh root command and returns its captured streams.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func subjects(t *testing.T, dir, ref string) []string {
	t.Helper()
	out := strings.TrimSpace(runGit(t, dir, "log", "--pretty=format:%s", ref))
	return strings.Split(out, "\n")
}

func TestWorkflow_GenReportApply(t *testing.T) {
	requireGit(t)
	dir := initRepo(t)

	runGit(t, dir, "checkout", "-b", "upstream")
	commitFile(t, dir, "one.txt", "one\n", "feat: one")
	commitFile(t, dir, "two.txt", "two\n", "chore: two")
	commitFile(t, dir, "three.txt", "three\n", "feat: three")
	runGit(t, dir, "checkout", "main")

	patchDir := filepath.Join(t.TempDir(), "patches")

	out, _, err := execute(t, "gen", "--repo", dir, "--repo-src", "upstream",
		"--filter", "grep:feat", "--patch-dir", patchDir)
	require.NoError(t, err)
	assert.Contains(t, out, "The patch directory is located at: "+patchDir)
	assert.Contains(t, out, "Selected 2 commit(s)")

	manifestPath, err := manifest.Locate(patchDir)
	require.NoError(t, err)
	assert.Equal(t, "Patch_Manifest.json", filepath.Base(manifestPath))

	m, err := manifest.Read(manifestPath)
	require.NoError(t, err)
	require.Len(t, m, 2)
	assert.Equal(t, "feat: three", m[0].Summary)
	assert.Equal(t, "feat: one", m[1].Summary)
	for _, e := range m {
		assert.True(t, e.Apply)
		assert.FileExists(t, manifest.PatchPath(patchDir, e.Commit))
	}

	// Regenerating into the same directory needs --force.
	_, _, err = execute(t, "gen", "--repo", dir, "--repo-src", "upstream", "--patch-dir", patchDir)
	require.Error(t, err)
	assert.Equal(t, clierr.ExitUsage, clierr.ExitCodeOf(err))

	out, _, err = execute(t, "report", "--repo", dir, "--patch-dir", patchDir, "--format", "md")
	require.NoError(t, err)
	assert.Contains(t, out, "Report with 2 row(s)")
	data, err := os.ReadFile(filepath.Join(patchDir, "Patch_Report.md"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "feat: three")

	out, _, err = execute(t, "dry-run", "--repo", dir, "--patch-dir", patchDir)
	require.NoError(t, err)
	assert.Contains(t, out, "would apply 2, skipped 0 on branch patchman/patches")
	assert.Equal(t, "main", strings.TrimSpace(runGit(t, dir, "branch", "--show-current")))

	out, _, err = execute(t, "apply", "--repo", dir, "--patch-dir", patchDir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "applied 2, skipped 0 on branch patchman/patches (succeeded)")
	assert.Equal(t, []string{"feat: three", "feat: one", "base"}, subjects(t, dir, "patchman/patches"))

	out, _, err = execute(t, "status", "--patch-dir", patchDir, "--json")
	require.NoError(t, err)
	var rec runstate.Record
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	assert.Equal(t, runstate.StatusSucceeded, rec.Status)
	assert.Equal(t, []string{m[1].Commit, m[0].Commit}, rec.Applied)

	// The branch now exists, so a second run stops in pre-flight.
	_, _, err = execute(t, "apply", "--repo", dir, "--patch-dir", patchDir)
	require.Error(t, err)
	assert.Equal(t, clierr.ExitApply, clierr.ExitCodeOf(err))
}

func TestWorkflow_SkipEntries(t *testing.T) {
	requireGit(t)
	dir := initRepo(t)

	runGit(t, dir, "checkout", "-b", "upstream")
	commitFile(t, dir, "one.txt", "one\n", "one")
	commitFile(t, dir, "two.txt", "two\n", "two")
	runGit(t, dir, "checkout", "main")

	patchDir := filepath.Join(t.TempDir(), "patches")
	_, _, err := execute(t, "gen", "--repo", dir, "--repo-src", "upstream",
		"--filter", "max-count:2", "--patch-dir", patchDir, "--format", "yaml")
	require.NoError(t, err)

	manifestPath := filepath.Join(patchDir, "Patch_Manifest.yaml")
	m, err := manifest.Read(manifestPath)
	require.NoError(t, err)
	require.Len(t, m, 2)
	m[0].Apply = false
	require.NoError(t, manifest.Write(manifestPath, m, manifest.FormatYAML))

	out, _, err := execute(t, "apply", "--repo", dir, "--patch-dir", patchDir, "--branch", "replay")
	require.NoError(t, err, out)
	assert.Contains(t, out, "SKIP:   "+m[0].Commit)
	assert.Equal(t, []string{"one", "base"}, subjects(t, dir, "replay"))
}

func TestWorkflow_MalformedFilterFallsBack(t *testing.T) {
	requireGit(t)
	dir := initRepo(t)
	commitFile(t, dir, "b.txt", "b\n", "second")

	patchDir := filepath.Join(t.TempDir(), "patches")
	out, stderr, err := execute(t, "gen", "--repo", dir, "--filter", "no-colon-here", "--patch-dir", patchDir)
	require.NoError(t, err)
	assert.Contains(t, stderr, "selecting the last 10 commits instead")
	assert.Contains(t, out, "Selected 2 commit(s)")
}

func readRecord(t *testing.T, patchDir string) runstate.Record {
	t.Helper()
	out, _, err := execute(t, "status", "--patch-dir", patchDir, "--json")
	require.NoError(t, err)
	var rec runstate.Record
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	return rec
}

// conflictRepo builds main and upstream branches whose first upstream commit
// conflicts with main, and generates patches for both upstream commits.
func conflictRepo(t *testing.T) (dir, patchDir string, m manifest.Manifest) {
	t.Helper()
	dir = initRepo(t)

	runGit(t, dir, "checkout", "-b", "upstream")
	commitFile(t, dir, "a.txt", "upstream\n", "rewrite a")
	commitFile(t, dir, "b.txt", "b\n", "add b")
	runGit(t, dir, "checkout", "main")
	commitFile(t, dir, "a.txt", "local\n", "local a")

	patchDir = filepath.Join(t.TempDir(), "patches")
	_, _, err := execute(t, "gen", "--repo", dir, "--repo-src", "upstream",
		"--filter", "max-count:2", "--patch-dir", patchDir)
	require.NoError(t, err)

	m, err = manifest.Read(filepath.Join(patchDir, "Patch_Manifest.json"))
	require.NoError(t, err)
	require.Len(t, m, 2)
	return dir, patchDir, m
}

func TestWorkflow_ResumeAfterContinue(t *testing.T) {
	requireGit(t)
	dir, patchDir, m := conflictRepo(t)

	_, _, err := execute(t, "apply", "--repo", dir, "--patch-dir", patchDir)
	require.Error(t, err)

	rec := readRecord(t, patchDir)
	assert.Equal(t, runstate.StatusAborted, rec.Status)
	assert.Equal(t, m[1].Commit, rec.Failed)
	assert.NotEmpty(t, rec.Tip)

	createFile(t, dir, "a.txt", "merged\n")
	runGit(t, dir, "add", "a.txt")
	runGit(t, dir, "-c", "core.editor=true", "am", "--continue")

	out, _, err := execute(t, "apply", "--repo", dir, "--patch-dir", patchDir, "--resume")
	require.NoError(t, err, out)
	assert.Equal(t, []string{"add b", "rewrite a", "local a", "base"}, subjects(t, dir, "patchman/patches"))

	rec = readRecord(t, patchDir)
	assert.Equal(t, runstate.StatusSucceeded, rec.Status)
	assert.Equal(t, []string{m[1].Commit, m[0].Commit}, rec.Applied)
	assert.Empty(t, rec.Skipped)
}

func TestWorkflow_ResumeAfterConflict(t *testing.T) {
	requireGit(t)
	dir := initRepo(t)

	runGit(t, dir, "checkout", "-b", "upstream")
	commitFile(t, dir, "a.txt", "upstream\n", "rewrite a")
	commitFile(t, dir, "b.txt", "b\n", "add b")
	runGit(t, dir, "checkout", "main")
	commitFile(t, dir, "a.txt", "local\n", "local a")

	patchDir := filepath.Join(t.TempDir(), "patches")
	_, _, err := execute(t, "gen", "--repo", dir, "--repo-src", "upstream",
		"--filter", "max-count:2", "--patch-dir", patchDir)
	require.NoError(t, err)

	m, err := manifest.Read(filepath.Join(patchDir, "Patch_Manifest.json"))
	require.NoError(t, err)
	require.Len(t, m, 2)
	conflicting := m[1].Commit

	out, stderr, err := execute(t, "apply", "--repo", dir, "--patch-dir", patchDir)
	require.Error(t, err)
	assert.Equal(t, clierr.ExitApply, clierr.ExitCodeOf(err))
	assert.Contains(t, out, "FAIL:   "+conflicting)
	assert.Contains(t, stderr, "failed commit: "+conflicting)
	assert.Contains(t, stderr, "--resume")

	out, _, err = execute(t, "status", "--patch-dir", patchDir)
	require.NoError(t, err)
	assert.Contains(t, out, "Status:  aborted")
	assert.Contains(t, out, "Failed:  "+conflicting)

	runGit(t, dir, "am", "--skip")

	out, _, err = execute(t, "apply", "--repo", dir, "--patch-dir", patchDir, "--resume")
	require.NoError(t, err, out)
	assert.Contains(t, out, "applied 1, skipped 0 on branch patchman/patches (succeeded)")
	assert.Equal(t, []string{"add b", "local a", "base"}, subjects(t, dir, "patchman/patches"))

	// The skipped commit is not on the branch and must not be recorded as applied.
	rec := readRecord(t, patchDir)
	assert.Equal(t, runstate.StatusSucceeded, rec.Status)
	assert.Equal(t, []string{m[0].Commit}, rec.Applied)
	assert.Equal(t, []string{conflicting}, rec.Skipped)

	// Nothing left to resume.
	_, _, err = execute(t, "apply", "--repo", dir, "--patch-dir", patchDir, "--resume")
	require.Error(t, err)
	assert.Equal(t, clierr.ExitUsage, clierr.ExitCodeOf(err))

	out, _, err = execute(t, "status", "--patch-dir", patchDir, "--clear")
	require.NoError(t, err)
	assert.Contains(t, out, "Run state cleared.")
	out, _, err = execute(t, "status", "--patch-dir", patchDir)
	require.NoError(t, err)
	assert.Contains(t, out, "No apply run recorded.")
}
