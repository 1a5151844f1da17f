// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Patchman - Patchman curates upstream commits into a reviewable, re-appliable patch set for downstream forks.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

// Package filter parses `name:pattern;name:pattern` commit filter specs into
// git log options.
package filter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Filter is a single git log option, rendered as `--<Name> <Pattern>`.
type Filter struct {
	Name    string
	Pattern string
}

// Set is an ordered list of filters. The zero value is an empty set.
type Set []Filter

var nameRE = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9-]*$`)

// ParseError reports a malformed filter spec.
type ParseError struct {
	Spec    string
	Segment string
	Reason  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid filter %q: segment %q: %s", e.Spec, e.Segment, e.Reason)
}

// Parse splits spec on ';' and each segment on its first ':'.
//
// An empty spec yields an empty set. Any malformed segment rejects the whole
// spec: the result is an empty set and a *ParseError, and the caller chooses
// the fallback.
func Parse(spec string) (Set, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return Set{}, nil
	}

	var set Set
	for _, seg := range strings.Split(spec, ";") {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			// Tolerate a trailing or doubled separator.
			continue
		}
		name, pattern, ok := strings.Cut(seg, ":")
		if !ok {
			return Set{}, &ParseError{Spec: spec, Segment: seg, Reason: "missing ':' separator"}
		}
		name = strings.TrimSpace(name)
		pattern = strings.TrimSpace(pattern)
		if !nameRE.MatchString(name) {
			return Set{}, &ParseError{Spec: spec, Segment: seg, Reason: "filter name must be a git log option name"}
		}
		if pattern == "" {
			return Set{}, &ParseError{Spec: spec, Segment: seg, Reason: "empty pattern"}
		}
		set = append(set, Filter{Name: name, Pattern: pattern})
	}
	if set == nil {
		return Set{}, nil
	}
	return set, nil
}

// Args renders the set as git log arguments.
func (s Set) Args() []string {
	args := make([]string, 0, 2*len(s))
	for _, f := range s {
		args = append(args, "--"+f.Name, f.Pattern)
	}
	return args
}

// ArgsOrDefault renders s, or limits the log to the most recent limit commits
// when s is empty.
func ArgsOrDefault(s Set, limit int) []string {
	if len(s) == 0 {
		return []string{"-" + strconv.Itoa(limit)}
	}
	return s.Args()
}
