package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/d2t/internal/shared"
	"github.com/desertthunder/d2t/internal/ui"
)

// TUI launches the interactive terminal UI: pick a folder, preview with a dry run, then apply.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	if err := r.config.Validate(); err != nil {
		return err
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(r.config.Paths.LogFile)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	shared.SetLogLevel(fileLogger, r.logger.GetLevel())
	r.SetLogger(fileLogger)

	unlock, err := r.lock()
	if err != nil {
		return err
	}
	defer unlock()

	engine, err := r.syncEngine(ctx)
	if err != nil {
		return err
	}
	catalog, err := r.discogs()
	if err != nil {
		return err
	}

	model := ui.NewModel(ctx, catalog, engine, ui.Settings{
		PlaylistName: r.config.Sync.PlaylistName,
		BaseName:     r.config.Sync.BaseName,
		Limit:        r.config.Sync.MaxTracks,
	})
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
