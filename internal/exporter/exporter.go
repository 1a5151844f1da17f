// Package exporter materializes manifest entries as patch files.
package exporter

import (
	"context"
	"fmt"

	"github.com/bartekus/patchman/internal/log"
	"github.com/bartekus/patchman/internal/manifest"
	"github.com/bartekus/patchman/internal/vcs"
)

// Warning records a patch that could not be exported. Exports continue past
// warnings, so the manifest may reference a patch file that does not exist.
type Warning struct {
	Commit string
	Path   string
	Result vcs.Result
	Err    error
}

func (w Warning) Error() string {
	if w.Err != nil {
		return fmt.Sprintf("exporting %s: %v", w.Commit, w.Err)
	}
	return fmt.Sprintf("exporting %s: exit %d: %s", w.Commit, w.Result.ExitCode, w.Result.Diagnostic())
}

func (w Warning) Unwrap() error { return w.Err }

// Exporter writes one <commit>.patch per manifest entry.
type Exporter struct {
	gw vcs.Gateway
}

func New(gw vcs.Gateway) *Exporter {
	return &Exporter{gw: gw}
}

// Export writes a patch for every entry, regardless of its apply flag, since
// export happens before anyone edits the manifest. Existing files with the
// same name are overwritten.
func (e *Exporter) Export(ctx context.Context, m manifest.Manifest, outDir string) []Warning {
	var warnings []Warning
	for _, entry := range m {
		path := manifest.PatchPath(outDir, entry.Commit)

		res, err := e.gw.FormatPatch(ctx, entry.Commit, path)
		if err != nil || !res.OK() {
			w := Warning{Commit: entry.Commit, Path: path, Result: res, Err: err}
			log.Warn(log.CatExport, "patch export failed", "commit", entry.Commit, "detail", w.Error())
			warnings = append(warnings, w)
			continue
		}
		log.Debug(log.CatExport, "patch exported", "commit", entry.Commit, "path", path)
	}
	log.Info(log.CatExport, "patches exported", "total", len(m), "failed", len(warnings), "dir", outDir)
	return warnings
}
