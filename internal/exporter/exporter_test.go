package exporter

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bartekus/patchman/internal/manifest"
	"github.com/bartekus/patchman/internal/vcs"
)

// fakeGateway writes a stub patch file per FormatPatch call, failing for the
// commits listed in fail.
type fakeGateway struct {
	vcs.Gateway

	fail  map[string]bool
	calls []string
}

func (f *fakeGateway) FormatPatch(_ context.Context, commit, outPath string) (vcs.Result, error) {
	f.calls = append(f.calls, commit)
	if f.fail[commit] {
		return vcs.Result{ExitCode: 128, Stderr: "fatal: bad object " + commit}, nil
	}
	if err := os.WriteFile(outPath, []byte("Subject: [PATCH] "+commit+"\n"), 0o644); err != nil {
		return vcs.Result{}, err
	}
	return vcs.Result{}, nil
}

func testManifest() manifest.Manifest {
	return manifest.Manifest{
		{Commit: "c3", Summary: "three", Apply: true},
		{Commit: "b2", Summary: "two", Apply: false},
		{Commit: "a1", Summary: "one", Apply: true},
	}
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func TestExport_AllEntriesRegardlessOfApply(t *testing.T) {
	dir := t.TempDir()
	gw := &fakeGateway{}

	warnings := New(gw).Export(context.Background(), testManifest(), dir)

	assert.Empty(t, warnings)
	assert.Equal(t, []string{"c3", "b2", "a1"}, gw.calls)
	assert.Equal(t, []string{"a1.patch", "b2.patch", "c3.patch"}, listDir(t, dir))
}

func TestExport_FailuresAreNonFatal(t *testing.T) {
	dir := t.TempDir()
	gw := &fakeGateway{fail: map[string]bool{"b2": true}}

	warnings := New(gw).Export(context.Background(), testManifest(), dir)

	require.Len(t, warnings, 1)
	assert.Equal(t, "b2", warnings[0].Commit)
	assert.Equal(t, filepath.Join(dir, "b2.patch"), warnings[0].Path)
	assert.Contains(t, warnings[0].Error(), "bad object b2")
	assert.Equal(t, []string{"c3", "b2", "a1"}, gw.calls, "export continues after a failure")
	assert.Equal(t, []string{"a1.patch", "c3.patch"}, listDir(t, dir))
}

func TestExport_LaunchErrorIsWarning(t *testing.T) {
	cause := errors.New("exec failed")
	gw := &erroringGateway{err: cause}

	warnings := New(gw).Export(context.Background(), testManifest()[:1], t.TempDir())
	require.Len(t, warnings, 1)
	assert.ErrorIs(t, warnings[0], cause)
}

func TestExport_IdempotentNaming(t *testing.T) {
	dir := t.TempDir()
	m := testManifest()

	require.Empty(t, New(&fakeGateway{}).Export(context.Background(), m, dir))
	first := listDir(t, dir)
	require.Empty(t, New(&fakeGateway{}).Export(context.Background(), m, dir))

	assert.Equal(t, first, listDir(t, dir))
	assert.Len(t, first, len(m))
}

type erroringGateway struct {
	vcs.Gateway
	err error
}

func (g *erroringGateway) FormatPatch(context.Context, string, string) (vcs.Result, error) {
	return vcs.Result{}, g.err
}
