package formatter

import (
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/desertthunder/d2t/internal/models"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

// FoldersTable lists collection folders.
func FoldersTable(folders []models.Folder) string {
	rows := make([][]string, 0, len(folders))
	for _, f := range folders {
		rows = append(rows, []string{strconv.Itoa(f.ID), f.Name, strconv.Itoa(f.Count)})
	}
	return renderTable([]string{"ID", "Name", "Items"}, rows, []columnAlignment{alignRight, alignLeft, alignRight})
}

// OutcomesTable lists one row per playlist of a report.
func OutcomesTable(report *models.SyncReport) string {
	rows := make([][]string, 0, len(report.Outcomes)+1)
	for _, o := range report.Outcomes {
		rows = append(rows, []string{
			o.PlaylistName,
			outcomeStatus(o, report.DryRun),
			strconv.Itoa(o.Added),
			strconv.Itoa(o.Skipped),
			strconv.Itoa(o.Failed()),
		})
	}
	rows = append(rows, []string{
		"Total", "",
		strconv.Itoa(report.TracksAdded()),
		strconv.Itoa(report.TracksSkipped()),
		strconv.Itoa(report.TracksFailed()),
	})

	added := "Added"
	if report.DryRun {
		added = "To add"
	}
	return renderTable(
		[]string{"Playlist", "Status", added, "Present", "Failed"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight},
	)
}

// SummaryTable shows the matching counts of a report.
func SummaryTable(report *models.SyncReport) string {
	rows := [][]string{
		{"Releases", strconv.Itoa(report.ReleasesProcessed)},
		{"Tracks", strconv.Itoa(report.TracksTotal)},
		{"Distinct tracks", strconv.Itoa(report.TracksDistinct)},
		{"Matched", strconv.Itoa(report.TracksMatched)},
	}
	for _, s := range models.Strategies {
		if n := report.Strategies[s]; n > 0 {
			rows = append(rows, []string{"  " + string(s), strconv.Itoa(n)})
		}
	}
	rows = append(rows, []string{"Unmatched", strconv.Itoa(report.TracksUnmatched)})
	if n := report.SearchErrors(); n > 0 {
		rows = append(rows, []string{"  search errors", strconv.Itoa(n)})
	}
	return renderTable([]string{"", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
}

// HistoryTable lists recorded runs.
func HistoryTable(runs []*models.SyncRun) string {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		mode := string(r.Mode)
		if r.DryRun {
			mode += " (dry)"
		}
		duration := "-"
		if r.FinishedAt != nil {
			duration = r.FinishedAt.Sub(r.StartedAt).Round(1e9).String()
		}
		rows = append(rows, []string{
			strconv.Itoa(r.Sequence()),
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			mode,
			r.BaseName,
			strconv.Itoa(r.TracksMatched),
			strconv.Itoa(r.TracksUnmatched),
			strconv.Itoa(r.TracksAdded),
			strconv.Itoa(r.TracksFailed),
			duration,
		})
	}
	return renderTable(
		[]string{"#", "Started", "Mode", "Name", "Matched", "Unmatched", "Added", "Failed", "Took"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight},
	)
}
