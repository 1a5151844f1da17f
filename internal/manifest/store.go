package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bartekus/patchman/internal/log"
	"github.com/bartekus/patchman/internal/projection"
	"github.com/bartekus/patchman/internal/selector"
)

// Build converts records into a manifest and persists it in outDir, which
// must already exist. It returns the manifest and the path it was written to.
func Build(records []selector.CommitRecord, outDir string, format Format) (Manifest, string, error) {
	info, err := os.Stat(outDir)
	if err != nil {
		return nil, "", &IOError{Op: "write", Path: outDir, Err: err}
	}
	if !info.IsDir() {
		return nil, "", &IOError{Op: "write", Path: outDir, Err: errors.New("not a directory")}
	}

	m := FromRecords(records)
	path := filepath.Join(outDir, FileName(format))
	if err := Write(path, m, format); err != nil {
		return nil, "", err
	}
	log.Info(log.CatManifest, "manifest written", "path", path, "entries", len(m))
	return m, path, nil
}

// Write encodes m and atomically replaces path.
func Write(path string, m Manifest, format Format) error {
	data, err := Marshal(m, format)
	if err != nil {
		return &IOError{Op: "encode", Path: path, Err: err}
	}
	if err := projection.AtomicWrite(path, data); err != nil {
		return &IOError{Op: "write", Path: path, Err: err}
	}
	return nil
}

// Read loads a manifest, inferring the format from the extension.
func Read(path string) (Manifest, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: manifest path comes from the command line
	if err != nil {
		return nil, &IOError{Op: "read", Path: path, Err: err}
	}
	m, err := Unmarshal(data, FormatOf(path))
	if err != nil {
		return nil, &IOError{Op: "parse", Path: path, Err: err}
	}
	log.Debug(log.CatManifest, "manifest loaded", "path", path, "entries", len(m))
	return m, nil
}

// Locate finds the manifest file inside dir.
func Locate(dir string) (string, error) {
	for _, name := range []string{FileName(FormatJSON), FileName(FormatYAML), FileBase + ".yml"} {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", &IOError{
		Op:   "locate",
		Path: dir,
		Err:  fmt.Errorf("no %s.{json,yaml} found: %w", FileBase, os.ErrNotExist),
	}
}
