// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Patchman - Patchman curates upstream commits into a reviewable, re-appliable patch set for downstream forks.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

// Package manifest persists the editable list of selected commits.
//
// A manifest is stored most-recent-first, exactly as the commits were
// selected. It is the only input of the apply phase; commits are never
// re-queried once it exists.
package manifest

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/bartekus/patchman/internal/selector"
)

// FileBase is the manifest file name without extension.
const FileBase = "Patch_Manifest"

// Header is the notice written as the first line of every manifest.
const Header = "This file is auto generated, but feel free to modify it according to your needs"

// Format selects the manifest encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

var (
	ErrDuplicateCommit = errors.New("duplicate commit")
	ErrEmptyCommit     = errors.New("entry without commit id")
	ErrUnknownFormat   = errors.New("unknown manifest format")
)

// Entry is one selected commit. Apply is the only field users are expected to edit.
type Entry struct {
	Commit  string `json:"commit" yaml:"commit"`
	Summary string `json:"summary" yaml:"summary"`
	Date    string `json:"date" yaml:"date"`
	Apply   bool   `json:"apply" yaml:"apply"`
}

// Manifest is an ordered list of entries, most recent commit first.
type Manifest []Entry

// IOError reports a manifest that could not be read, written or parsed.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("manifest %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// FromRecords converts selected commits to entries, all marked for apply.
func FromRecords(records []selector.CommitRecord) Manifest {
	m := make(Manifest, 0, len(records))
	for _, r := range records {
		m = append(m, Entry{
			Commit:  r.ID,
			Summary: r.Summary,
			Date:    r.Date,
			Apply:   true,
		})
	}
	return m
}

// Commits returns the commit ids in stored order.
func (m Manifest) Commits() []string {
	ids := make([]string, 0, len(m))
	for _, e := range m {
		ids = append(ids, e.Commit)
	}
	return ids
}

// Validate checks that every entry has a commit id and that ids are unique.
func (m Manifest) Validate() error {
	seen := make(map[string]int, len(m))
	for i, e := range m {
		if e.Commit == "" {
			return fmt.Errorf("entry %d: %w", i, ErrEmptyCommit)
		}
		if prev, ok := seen[e.Commit]; ok {
			return fmt.Errorf("entries %d and %d: %w %s", prev, i, ErrDuplicateCommit, e.Commit)
		}
		seen[e.Commit] = i
	}
	return nil
}

// FileName returns the manifest file name for format.
func FileName(format Format) string {
	return FileBase + "." + string(format)
}

// FormatOf infers the format from a manifest path's extension.
func FormatOf(path string) Format {
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatJSON, FormatYAML:
		return Format(s), nil
	default:
		return "", fmt.Errorf("%w %q (must be json or yaml)", ErrUnknownFormat, s)
	}
}

// PatchPath is where the patch file for commit lives inside dir.
func PatchPath(dir, commit string) string {
	return filepath.Join(dir, commit+".patch")
}
