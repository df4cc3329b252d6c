package application

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/ericfisherdev/repopulse/internal/domain/model"
)

var (
	reportMarkdown = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
	)
	reportSanitizer = bluemonday.UGCPolicy()
)

// RenderReportEmail builds the plain-text and HTML bodies for a report
// email. The text body is the markdown source itself; the HTML body is the
// rendered and sanitized version of it.
func RenderReportEmail(report model.Report) (text, html string, err error) {
	text = reportBody(report)

	var buf bytes.Buffer
	if err := reportMarkdown.Convert([]byte(text), &buf); err != nil {
		return "", "", fmt.Errorf("render report markdown: %w", err)
	}

	return text, reportSanitizer.Sanitize(buf.String()), nil
}

func reportBody(report model.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s %s report\n\n", report.RepoFullName, report.Type)
	fmt.Fprintf(&b, "Period: %s to %s\n\n",
		report.StartDate.Format("2006-01-02"),
		report.EndDate.Format("2006-01-02"),
	)

	m := report.Data
	fmt.Fprintf(&b, "| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Total commits | %d |\n", m.CommitsTotal)
	if latest, ok := m.LatestWeek(); ok {
		fmt.Fprintf(&b, "| Commits (latest week) | %d |\n", latest)
	}
	fmt.Fprintf(&b, "| Open pull requests | %d |\n", m.OpenPRs)
	fmt.Fprintf(&b, "| Merged pull requests | %d |\n", m.MergedPRs)
	fmt.Fprintf(&b, "| Closed without merge | %d |\n", m.ClosedPRs)
	fmt.Fprintf(&b, "| Open issues | %d |\n", m.OpenIssues)
	fmt.Fprintf(&b, "| Closed issues | %d |\n", m.ClosedIssues)
	fmt.Fprintf(&b, "| Contributors | %d |\n", m.Contributors)
	if m.MergeTimeHours > 0 {
		fmt.Fprintf(&b, "| Mean time to merge | %.1f hours |\n", m.MergeTimeHours)
	}

	return b.String()
}
