// Package markup translates Trac wiki text into GitHub-flavored
// Markdown. The translation is a pure, ordered rewrite pipeline:
// later rules' patterns can be created or destroyed by earlier ones,
// so the step order is part of the contract.
package markup

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// step is one (pattern, rewrite) pair of the pipeline.
type step struct {
	pattern *regexp.Regexp
	replace string
}

// pipeline is the ordered rewrite sequence. Inline code spans run
// before fenced blocks so a one-line {{{...}}} never opens a fence;
// headings run longest marker first so "==" never matches inside
// "====".
var pipeline = []step{
	// Inline code spans, single line only.
	{regexp.MustCompile(`\{\{\{([^\n]+?)\}\}\}`), "`$1`"},
	// Multi-line code blocks become fenced blocks.
	{regexp.MustCompile(`(?s)\{\{\{\n?(.*?)\n?\}\}\}`), "```\n$1\n```"},
	// Headings, longest marker to shortest.
	{regexp.MustCompile(`(?m)^====\s+(.*?)\s+====\s*$`), "#### $1"},
	{regexp.MustCompile(`(?m)^===\s+(.*?)\s+===\s*$`), "### $1"},
	{regexp.MustCompile(`(?m)^==\s+(.*?)\s+==\s*$`), "## $1"},
	{regexp.MustCompile(`(?m)^=\s+(.*?)\s+=\s*$`), "# $1"},
	// [url label] hyperlinks.
	{regexp.MustCompile(`\[(\w+://[^\s\]]+)\s+([^\]]+)\]`), "[$2]($1)"},
	// CamelCase wiki references: GitHub has no auto-linking, so the
	// "!" escape marker is simply dropped.
	{regexp.MustCompile(`!((?:[A-Z][a-z0-9]+){2,})`), "$1"},
	// Bold before italic: "'''" contains "''".
	{regexp.MustCompile(`'''(.+?)'''`), "**$1**"},
	{regexp.MustCompile(`''(.+?)''`), "*$1*"},
	// List markers: Trac indents lists by one leading space.
	{regexp.MustCompile(`(?m)^ ([ ]*)(\*|-|\d+\.)( )`), "$1$2$3"},
}

// Translate rewrites Trac wiki text into GitHub Markdown. It is a
// pure function: same input, same output.
func Translate(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	for _, st := range pipeline {
		s = st.pattern.ReplaceAllString(s, st.replace)
	}
	return s
}

// Header describes the authorship/date preamble prepended to migrated
// descriptions and comments whose author has no API identity of its
// own. Prepending happens after translation so the header lines are
// never subject to the body rewrites.
type Header struct {
	// Author is the raw legacy author string. Empty means no
	// reporter line.
	Author string

	// ProfileURL links the author to a target-system profile when a
	// user mapping exists; empty renders the author as plain text.
	ProfileURL string

	// Date is the original timestamp; the zero value means no date
	// line.
	Date time.Time
}

// WithHeader prepends the date and original-reporter lines to an
// already-translated body.
func WithHeader(body string, h Header) string {
	var b strings.Builder

	if !h.Date.IsZero() {
		fmt.Fprintf(&b, "Date: %s\n", h.Date.UTC().Format("2006-01-02 15:04:05 MST"))
	}
	if h.Author != "" {
		if h.ProfileURL != "" {
			fmt.Fprintf(&b, "Original reporter: [%s](%s)\n", h.Author, h.ProfileURL)
		} else {
			fmt.Fprintf(&b, "Original reporter: %s\n", h.Author)
		}
	}

	if b.Len() == 0 {
		return body
	}
	b.WriteString("\n")
	b.WriteString(body)
	return b.String()
}
