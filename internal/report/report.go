// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Patchman - Patchman curates upstream commits into a reviewable, re-appliable patch set for downstream forks.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

// Package report renders a manifest for human review, one row per entry,
// in manifest order and regardless of apply flags.
package report

import (
	"fmt"
	"strings"

	"github.com/bartekus/patchman/internal/log"
	"github.com/bartekus/patchman/internal/manifest"
	"github.com/bartekus/patchman/internal/projection"
)

// Format selects the report encoding.
type Format string

const (
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "md"
)

// Row is one manifest entry as shown in a report.
type Row struct {
	Commit  string
	Date    string
	Summary string
	Link    string
	Apply   bool
}

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatCSV, FormatMarkdown:
		return Format(s), nil
	default:
		return "", fmt.Errorf("unknown report format %q (must be csv or md)", s)
	}
}

// Rows builds report rows; Link is baseURL followed by the commit id.
func Rows(m manifest.Manifest, baseURL string) []Row {
	rows := make([]Row, 0, len(m))
	for _, e := range m {
		rows = append(rows, Row{
			Commit:  e.Commit,
			Date:    e.Date,
			Summary: e.Summary,
			Link:    baseURL + e.Commit,
			Apply:   e.Apply,
		})
	}
	return rows
}

// RenderCSV renders rows with a `Commit,Date,Summary,Link` header. Summary and
// Link are always quoted.
func RenderCSV(rows []Row) string {
	var b strings.Builder
	b.WriteString("Commit,Date,Summary,Link\n")
	for _, r := range rows {
		b.WriteString(projection.CSVField(r.Commit))
		b.WriteString(",")
		b.WriteString(projection.CSVField(r.Date))
		b.WriteString(",")
		b.WriteString(projection.QuoteCSV(r.Summary))
		b.WriteString(",")
		b.WriteString(projection.QuoteCSV(r.Link))
		b.WriteString("\n")
	}
	return b.String()
}

// RenderMarkdown renders rows as a Markdown table with linked commit ids.
func RenderMarkdown(rows []Row) string {
	table := make([][]string, 0, len(rows))
	for _, r := range rows {
		apply := "yes"
		if !r.Apply {
			apply = "no"
		}
		table = append(table, []string{
			fmt.Sprintf("[%s](%s)", r.Commit, r.Link),
			r.Date,
			strings.ReplaceAll(r.Summary, "\n", " "),
			apply,
		})
	}

	var b strings.Builder
	b.WriteString(projection.RenderHeader(1, "Patch Manifest"))
	b.WriteString(projection.RenderTable([]string{"Commit", "Date", "Summary", "Apply"}, table))
	return b.String()
}

// Export renders m in format and writes it to path.
func Export(m manifest.Manifest, path, baseURL string, format Format) error {
	rows := Rows(m, baseURL)

	var content string
	switch format {
	case FormatCSV:
		content = RenderCSV(rows)
	case FormatMarkdown:
		content = RenderMarkdown(rows)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}

	if err := projection.AtomicWrite(path, []byte(content)); err != nil {
		return &manifest.IOError{Op: "write report", Path: path, Err: err}
	}
	log.Info(log.CatReport, "report written", "path", path, "rows", len(rows), "format", string(format))
	return nil
}
