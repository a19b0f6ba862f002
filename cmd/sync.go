package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/d2t/internal/formatter"
	"github.com/desertthunder/d2t/internal/models"
	"github.com/desertthunder/d2t/internal/shared"
	"github.com/desertthunder/d2t/internal/tasks"
)

// Sync writes every matched track of a folder into one playlist.
func (r *Runner) Sync(ctx context.Context, cmd *cli.Command) error {
	name := cmd.String("playlist-name")
	if name == "" {
		name = r.config.Sync.PlaylistName
	}
	return r.runSync(ctx, cmd, models.ModeSync, name)
}

// StyleSync writes matched tracks into one playlist per release style.
func (r *Runner) StyleSync(ctx context.Context, cmd *cli.Command) error {
	name := cmd.String("base-name")
	if name == "" {
		name = r.config.Sync.BaseName
	}
	return r.runSync(ctx, cmd, models.ModeStyleSync, name)
}

func (r *Runner) runSync(ctx context.Context, cmd *cli.Command, mode models.Mode, name string) error {
	if err := r.config.Validate(); err != nil {
		return err
	}

	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	limit := r.config.Sync.MaxTracks
	if cmd.IsSet("limit") {
		limit = cmd.Int("limit")
	}

	opts := tasks.RunOptions{
		FolderID: cmd.Int("folder-id"),
		Limit:    limit,
		Mode:     mode,
		Name:     name,
		DryRun:   cmd.Bool("dry-run"),
	}

	unlock, err := r.lock()
	if err != nil {
		return err
	}
	defer unlock()

	engine, err := r.syncEngine(ctx)
	if err != nil {
		return err
	}

	r.logger.Info("starting sync", "mode", mode, "name", name, "folder", opts.FolderID, "limit", limit, "dry_run", opts.DryRun)
	if opts.DryRun {
		r.writePlain("Dry run: Tidal will not be modified\n")
	}

	progress := make(chan tasks.ProgressUpdate, 100)
	done := make(chan struct{})
	go func() {
		r.showProgress(progress)
		close(done)
	}()

	report, err := engine.Run(ctx, opts, progress)
	close(progress)
	<-done

	if err != nil {
		return err
	}

	r.printReport(report)

	if path := r.reportPath(cmd.String("report"), report, format); path != "" {
		files, err := formatter.WriteReport(report, path, format)
		if err != nil {
			return err
		}
		r.writePlain("Report saved to %s\n", files.Report)
		if files.Unmatched != "" {
			r.writePlain("Unmatched tracks saved to %s\n", files.Unmatched)
		}
	}

	if report.HasFailures() {
		return fmt.Errorf("%w: %d tracks could not be added", shared.ErrSyncIncomplete, report.TracksFailed())
	}
	return nil
}

// reportPath resolves --report: a path ending in a separator or naming an existing directory gets a generated
// file name, and no flag falls back to sync.report_dir.
func (r *Runner) reportPath(flag string, report *models.SyncReport, format formatter.Format) string {
	if flag == "" {
		if r.config.Sync.ReportDir == "" {
			return ""
		}
		return formatter.DefaultReportPath(r.config.Sync.ReportDir, report, format)
	}

	if strings.HasSuffix(flag, "/") || strings.HasSuffix(flag, string(filepath.Separator)) {
		return formatter.DefaultReportPath(flag, report, format)
	}
	if info, err := os.Stat(flag); err == nil && info.IsDir() {
		return formatter.DefaultReportPath(flag, report, format)
	}
	return flag
}

// lock takes an exclusive lock next to the database so only one sync runs against it.
func (r *Runner) lock() (func(), error) {
	path := r.config.Database.Path
	if path == "" || path == ":memory:" {
		return func() {}, nil
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	fl := flock.New(path + ".lock")
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire sync lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s is locked", shared.ErrSyncInProgress, fl.Path())
	}

	return func() {
		if err := fl.Unlock(); err != nil {
			r.logger.Warn("failed to release sync lock", "error", err)
		}
	}, nil
}

// showProgress prints updates until the channel closes.
//
// On a terminal the current step is redrawn in place; otherwise only phase changes are printed.
func (r *Runner) showProgress(progress <-chan tasks.ProgressUpdate) {
	last := tasks.Phase(-1)
	redrawing := false

	for update := range progress {
		if r.tty && update.Total > 0 && update.Phase != tasks.Complete {
			r.writePlain("\r\033[K[%s %d/%d] %s", update.Phase, update.Step, update.Total, truncate(update.Message, 60))
			redrawing = true
			last = update.Phase
			continue
		}
		if update.Phase == last {
			continue
		}
		if redrawing {
			r.writePlain("\n")
			redrawing = false
		}
		last = update.Phase
		r.writePlain("→ %s\n", update.Message)
	}

	if redrawing {
		r.writePlain("\n")
	}
}

func (r *Runner) printReport(report *models.SyncReport) {
	title := "Sync Complete"
	if report.DryRun {
		title = "Dry Run Complete"
	}
	r.writePlain("\n")
	r.writePlainHeader(title)
	r.writeTable(formatter.SummaryTable(report))
	if len(report.Outcomes) > 0 {
		r.writeTable(formatter.OutcomesTable(report))
	} else {
		r.writePlain("No playlists to update.\n")
	}

	for _, o := range report.Outcomes {
		if o.Error != "" {
			r.writePlain("✗ %s: %s\n", o.PlaylistName, o.Error)
			continue
		}
		for _, f := range o.Failures {
			r.writePlain("✗ %s: track %s: %s\n", o.PlaylistName, f.TrackID, f.Reason)
		}
	}

	if n := len(report.Unmatched); n > 0 {
		r.writePlain("\n%d tracks had no Tidal match", n)
		if errs := report.SearchErrors(); errs > 0 {
			r.writePlain(" (%d after search errors)", errs)
		}
		r.writePlain("\n")
	}
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
