// Package output provides formatters for CLI output.
package output

import (
	"fmt"
	"io"
	"strings"

	"reqdash/internal/service"
)

const (
	// TimeLayout is the layout of creation times. Times are printed in UTC.
	TimeLayout = "2006-01-02 15:04 UTC"

	// ShortIDLen is the number of id characters shown in list output.
	ShortIDLen = 8

	noDescription = "(no description)"
)

// FormatCounters formats the per-status counters line.
// Format: "NEW {n}  IN_PROGRESS {n}  DONE {n}\n"
func FormatCounters(w io.Writer, c service.Counters) {
	parts := make([]string, 0, len(service.Statuses))
	for _, s := range service.Statuses {
		parts = append(parts, fmt.Sprintf("%s %d", s, c.Get(s)))
	}
	fmt.Fprintln(w, strings.Join(parts, "  "))
}

// FormatRequest formats a request as two lines: a summary line and the
// indented description.
// Format: "{N:>4}  {ID:<8}  {STATUS:<11}  P{PRIORITY}  {CREATED}  {TITLE}\n      {DESCRIPTION}\n"
func FormatRequest(w io.Writer, num int, r service.Request) {
	fmt.Fprintf(w, "%4d  %-8s  %-11s  P%d  %s  %s\n",
		num, ShortID(r.ID), r.Status, r.Priority, r.CreatedAt.UTC().Format(TimeLayout), normalizeTitle(r.Title))
	fmt.Fprintf(w, "      %s\n", Description(r.Description))
}

// ShortID returns the leading characters of id used as a reference.
func ShortID(id string) string {
	if len(id) <= ShortIDLen {
		return id
	}
	return id[:ShortIDLen]
}

// Description renders an optional description on one line.
// Absent and blank descriptions become "(no description)".
func Description(desc *string) string {
	if desc == nil || strings.TrimSpace(*desc) == "" {
		return noDescription
	}
	return flatten(*desc)
}

// normalizeTitle normalizes a request title for display.
// - Empty or whitespace-only titles become "(untitled)"
// - Newlines are replaced with spaces
func normalizeTitle(title string) string {
	title = flatten(title)
	if strings.TrimSpace(title) == "" {
		return "(untitled)"
	}
	return title
}

func flatten(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	return strings.ReplaceAll(s, "\n", " ")
}
