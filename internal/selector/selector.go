// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Patchman - Patchman curates upstream commits into a reviewable, re-appliable patch set for downstream forks.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

// Package selector turns git log filters into an ordered list of commit
// records. Order is exactly what git log returns: most recent first.
package selector

import (
	"context"
	"fmt"
	"strings"

	"github.com/bartekus/patchman/internal/log"
	"github.com/bartekus/patchman/internal/vcs"
)

// FieldSeparator joins the fields of one formatted log line.
const FieldSeparator = "@@@"

// logFormat renders one commit per line as: hash @@@ subject @@@ date.
const logFormat = "%h " + FieldSeparator + " %s " + FieldSeparator + " %ad"

// CommitRecord is one selected commit.
type CommitRecord struct {
	ID      string
	Summary string
	Date    string
}

// Options scope a selection.
type Options struct {
	// SourceRef limits the log to a remote or ref. Empty means HEAD.
	SourceRef string
	// Args are git log options, typically from filter.ArgsOrDefault.
	Args []string
	// DateFormat is passed as --date=<fmt> when set.
	DateFormat string
}

// SelectionError reports a failed or unparsable log query.
type SelectionError struct {
	Op     string
	Line   int
	Detail string
	Result vcs.Result
	Err    error
}

func (e *SelectionError) Error() string {
	msg := "selecting commits: " + e.Op
	if e.Line > 0 {
		msg += fmt.Sprintf(" (line %d)", e.Line)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SelectionError) Unwrap() error { return e.Err }

// Selector queries commits through a vcs.Gateway.
type Selector struct {
	gw vcs.Gateway
}

func New(gw vcs.Gateway) *Selector {
	return &Selector{gw: gw}
}

// LogArgs builds the git log argument list for opts.
func LogArgs(opts Options) []string {
	var args []string
	if opts.SourceRef != "" {
		args = append(args, opts.SourceRef)
	}
	args = append(args, opts.Args...)
	if opts.DateFormat != "" {
		args = append(args, "--date="+opts.DateFormat)
	}
	return append(args, "--pretty=format:"+logFormat)
}

// Select runs the log query and parses its output.
func (s *Selector) Select(ctx context.Context, opts Options) ([]CommitRecord, error) {
	args := LogArgs(opts)
	log.Debug(log.CatSelect, "querying log", "args", strings.Join(args, " "))

	res, err := s.gw.Log(ctx, args)
	if err != nil {
		return nil, &SelectionError{Op: "git log", Err: err}
	}
	if !res.OK() {
		return nil, &SelectionError{
			Op:     "git log",
			Detail: fmt.Sprintf("exit %d: %s", res.ExitCode, res.Diagnostic()),
			Result: res,
		}
	}

	records, err := ParseLog(res.Stdout)
	if err != nil {
		return nil, err
	}
	log.Info(log.CatSelect, "selected commits", "count", len(records), "ref", opts.SourceRef)
	return records, nil
}

// Fetch updates remote before selection.
func (s *Selector) Fetch(ctx context.Context, remote string) error {
	res, err := s.gw.Fetch(ctx, remote)
	if err != nil {
		return &SelectionError{Op: "git fetch " + remote, Err: err}
	}
	if !res.OK() {
		return &SelectionError{
			Op:     "git fetch " + remote,
			Detail: fmt.Sprintf("exit %d: %s", res.ExitCode, res.Diagnostic()),
			Result: res,
		}
	}
	return nil
}

// ParseLog parses formatted git log output. Blank lines are ignored; any
// other line that does not hold exactly three fields fails the parse.
func ParseLog(out string) ([]CommitRecord, error) {
	records := []CommitRecord{}
	for i, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		line = unquote(strings.TrimSpace(line))

		fields := strings.Split(line, FieldSeparator)
		if len(fields) != 3 {
			return nil, &SelectionError{
				Op:     "parsing log",
				Line:   i + 1,
				Detail: fmt.Sprintf("expected 3 fields, got %d in %q", len(fields), line),
			}
		}
		rec := CommitRecord{
			ID:      strings.TrimSpace(fields[0]),
			Summary: strings.TrimSpace(fields[1]),
			Date:    strings.TrimSpace(fields[2]),
		}
		if rec.ID == "" {
			return nil, &SelectionError{Op: "parsing log", Line: i + 1, Detail: "empty commit id"}
		}
		records = append(records, rec)
	}
	return records, nil
}

// unquote drops one pair of double quotes wrapping the whole line, as emitted
// when the pretty format itself is quoted.
func unquote(line string) string {
	if len(line) >= 2 && line[0] == '"' && line[len(line)-1] == '"' {
		return line[1 : len(line)-1]
	}
	return line
}
