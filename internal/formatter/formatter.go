// package formatter writes sync reports to JSON, Markdown and plain text, and unmatched tracks to CSV
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/desertthunder/d2t/internal/models"
	"github.com/desertthunder/d2t/internal/shared"
)

// Format is a report document format.
type Format string

const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
)

// ParseFormat accepts "json", "markdown" (or "md") and "text" (or "txt").
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "text", "txt":
		return FormatText, nil
	default:
		return "", fmt.Errorf("%w: unknown report format %q (json, markdown, text)", shared.ErrInvalidArgument, s)
	}
}

// Extension returns the file extension for f, including the dot.
func (f Format) Extension() string {
	switch f {
	case FormatMarkdown:
		return ".md"
	case FormatText:
		return ".txt"
	default:
		return ".json"
	}
}

// Render encodes report in format f.
func Render(report *models.SyncReport, f Format) ([]byte, error) {
	switch f {
	case FormatJSON:
		return ReportToJSON(report)
	case FormatMarkdown:
		return ReportToMarkdown(report)
	case FormatText:
		return ReportToText(report)
	default:
		return nil, fmt.Errorf("%w: unknown report format %q", shared.ErrInvalidArgument, f)
	}
}

// Write renders report in format f to w.
func Write(w io.Writer, report *models.SyncReport, f Format) error {
	data, err := Render(report, f)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// ReportToJSON encodes the complete report, indented.
func ReportToJSON(report *models.SyncReport) ([]byte, error) {
	return shared.MarshalJSON(report, true)
}

func title(report *models.SyncReport) string {
	t := "Sync report"
	if report.Mode == models.ModeStyleSync {
		t = "Style sync report"
	}
	if report.DryRun {
		t += " (dry run)"
	}
	return t
}

// ReportToMarkdown renders the report with a summary, one row per playlist and the unmatched tracks
func ReportToMarkdown(report *models.SyncReport) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s: %s\n\n", title(report), report.BaseName)
	fmt.Fprintf(&buf, "**Run**: %s\n", report.RunID)
	fmt.Fprintf(&buf, "**Started**: %s\n", report.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&buf, "**Duration**: %s\n\n", report.Duration().Round(1e9))

	buf.WriteString("## Summary\n\n")
	buf.WriteString("| Releases | Tracks | Distinct | Matched | Unmatched | Added | Present | Failed |\n")
	buf.WriteString("|---:|---:|---:|---:|---:|---:|---:|---:|\n")
	fmt.Fprintf(&buf, "| %d | %d | %d | %d | %d | %d | %d | %d |\n\n",
		report.ReleasesProcessed, report.TracksTotal, report.TracksDistinct, report.TracksMatched,
		report.TracksUnmatched, report.TracksAdded(), report.TracksSkipped(), report.TracksFailed())

	buf.WriteString("## Playlists\n\n")
	if len(report.Outcomes) == 0 {
		buf.WriteString("No playlists.\n\n")
	} else {
		buf.WriteString("| Playlist | Style | Status | Added | Present | Failed |\n")
		buf.WriteString("|---|---|---|---:|---:|---:|\n")
		for _, o := range report.Outcomes {
			fmt.Fprintf(&buf, "| %s | %s | %s | %d | %d | %d |\n",
				escapeCell(o.PlaylistName), escapeCell(o.Style), outcomeStatus(o, report.DryRun), o.Added, o.Skipped, o.Failed())
		}
		buf.WriteString("\n")
	}

	if report.TracksFailed() > 0 {
		buf.WriteString("## Failures\n\n")
		for _, o := range report.Outcomes {
			for _, f := range o.Failures {
				fmt.Fprintf(&buf, "- %s: `%s` %s\n", o.PlaylistName, f.TrackID, f.Reason)
			}
		}
		buf.WriteString("\n")
	}

	if len(report.Unmatched) > 0 {
		buf.WriteString("## Unmatched\n\n")
		for i, u := range report.Unmatched {
			fmt.Fprintf(&buf, "%d. %s - %s", i+1, u.Artist, u.Title)
			if u.Error != "" {
				fmt.Fprintf(&buf, " (%s)", u.Error)
			}
			buf.WriteString("\n")
		}
	}

	return buf.Bytes(), nil
}

// ReportToText renders the report as plain text
func ReportToText(report *models.SyncReport) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "%s: %s\n", title(report), report.BaseName)
	fmt.Fprintf(&buf, "Run: %s (%s)\n", report.RunID, report.Duration().Round(1e9))
	fmt.Fprintf(&buf, "Releases: %d\n", report.ReleasesProcessed)
	fmt.Fprintf(&buf, "Tracks: %d (%d distinct)\n", report.TracksTotal, report.TracksDistinct)
	fmt.Fprintf(&buf, "Matched: %d, unmatched: %d\n", report.TracksMatched, report.TracksUnmatched)
	fmt.Fprintf(&buf, "Added: %d, already present: %d, failed: %d\n\n", report.TracksAdded(), report.TracksSkipped(), report.TracksFailed())

	for _, o := range report.Outcomes {
		fmt.Fprintf(&buf, "%s [%s] +%d =%d !%d\n", o.PlaylistName, outcomeStatus(o, report.DryRun), o.Added, o.Skipped, o.Failed())
	}

	if len(report.Unmatched) > 0 {
		buf.WriteString("\nUnmatched:\n")
		for i, u := range report.Unmatched {
			fmt.Fprintf(&buf, "%d. %s - %s\n", i+1, u.Artist, u.Title)
		}
	}

	return buf.Bytes(), nil
}

// UnmatchedToCSV converts unmatched tracks to CSV with columns: Artist, Title, Fingerprint, Error
func UnmatchedToCSV(report *models.SyncReport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"Artist", "Title", "Fingerprint", "Error"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, u := range report.Unmatched {
		if err := writer.Write([]string{u.Artist, u.Title, u.Fingerprint, u.Error}); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

func outcomeStatus(o models.PlaylistOutcome, dryRun bool) string {
	switch {
	case o.Error != "":
		return "failed"
	case o.Created && dryRun:
		return "would create"
	case o.Created:
		return "created"
	case o.Failed() > 0:
		return "partial"
	default:
		return "updated"
	}
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// ReportFiles contains the paths of files created by WriteReport
type ReportFiles struct {
	Report    string
	Unmatched string // empty when every track matched
}

// DefaultReportPath names a report file after the run: {dir}/d2t-{mode}-{started}{ext}
func DefaultReportPath(dir string, report *models.SyncReport, f Format) string {
	name := fmt.Sprintf("d2t-%s-%s%s", report.Mode, report.StartedAt.Format("20060102-150405"), f.Extension())
	return filepath.Join(dir, name)
}

// WriteReport writes the report to path in format f, plus {path without ext}_unmatched.csv when tracks went unmatched.
//
// Parent directories are created as needed.
func WriteReport(report *models.SyncReport, path string, f Format) (*ReportFiles, error) {
	data, err := Render(report, f)
	if err != nil {
		return nil, fmt.Errorf("failed to render report: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write report: %w", err)
	}

	files := &ReportFiles{Report: path}
	if len(report.Unmatched) == 0 {
		return files, nil
	}

	csvData, err := UnmatchedToCSV(report)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSV: %w", err)
	}

	files.Unmatched = strings.TrimSuffix(path, filepath.Ext(path)) + "_unmatched.csv"
	if err := os.WriteFile(files.Unmatched, csvData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write CSV file: %w", err)
	}

	return files, nil
}
