package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/d2t/internal/formatter"
	"github.com/desertthunder/d2t/internal/repositories"
)

// History lists recorded runs, newest first. With --id it prints one run's stored report.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	db, err := r.database()
	if err != nil {
		return err
	}
	repo := repositories.NewRunRepository(db)

	if id := cmd.String("id"); id != "" {
		run, err := repo.Get(id)
		if err != nil {
			return err
		}
		report, err := run.DecodeReport()
		if err != nil {
			return err
		}

		if cmd.Bool("json") {
			return r.writeJSON(report, true)
		}

		format, err := formatter.ParseFormat(cmd.String("format"))
		if err != nil {
			return err
		}
		out, err := formatter.Render(report, format)
		if err != nil {
			return err
		}
		return r.writePlain("%s", out)
	}

	runs, err := repo.List(map[string]any{"limit": cmd.Int("limit")})
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(runs, true)
	}

	if len(runs) == 0 {
		return r.writePlain("No runs recorded yet.\n")
	}

	r.writePlainHeader("Sync History")
	return r.writeTable(formatter.HistoryTable(runs))
}
