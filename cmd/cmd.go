// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// globalFlags are accepted before any command.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file",
			Value:   "config.toml",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Log at info level or lower",
		},
		&cli.BoolFlag{
			Name:  "debug",
			Usage: "Log at debug level with callers",
		},
	}
}

// runFlags are shared by sync and style-sync.
func runFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:    "folder-id",
			Aliases: []string{"f"},
			Usage:   "Discogs collection folder (0 is All)",
			Value:   0,
		},
		&cli.IntFlag{
			Name:    "limit",
			Aliases: []string{"l"},
			Usage:   "Maximum number of tracks to process (default: sync.max_tracks)",
		},
		&cli.BoolFlag{
			Name:  "dry-run",
			Usage: "Show what would change without modifying Tidal",
		},
		&cli.StringFlag{
			Name:    "report",
			Aliases: []string{"r"},
			Usage:   "Write the run report to a file, or into a directory when the path ends in /",
		},
		&cli.StringFlag{
			Name:  "format",
			Usage: "Report format: json, markdown or text",
			Value: "json",
		},
	}
}

// syncCommand syncs the collection into a single playlist
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Sync a collection folder into one Tidal playlist",
		Flags: append(runFlags(),
			&cli.StringFlag{
				Name:    "playlist-name",
				Aliases: []string{"p"},
				Usage:   "Tidal playlist name (default: sync.playlist_name)",
			},
		),
		Action: r.Sync,
	}
}

// styleSyncCommand syncs the collection into one playlist per style
func styleSyncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "style-sync",
		Aliases: []string{"styles"},
		Usage:   "Sync a collection folder into one Tidal playlist per Discogs style",
		Flags: append(runFlags(),
			&cli.StringFlag{
				Name:    "base-name",
				Aliases: []string{"b"},
				Usage:   "Playlist name prefix, playlists are named '<base> - <style>' (default: sync.base_name)",
			},
		),
		Action: r.StyleSync,
	}
}

// listFoldersCommand lists Discogs collection folders
func listFoldersCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "list-folders",
		Aliases: []string{"folders"},
		Usage:   "List Discogs collection folders",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.ListFolders,
	}
}

// historyCommand lists recorded runs
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show past sync runs",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"l"},
				Usage:   "Maximum number of runs to show",
				Value:   20,
			},
			&cli.StringFlag{
				Name:  "id",
				Usage: "Show the full report of one run",
			},
			&cli.StringFlag{
				Name:  "format",
				Usage: "Report format for --id: json, markdown or text",
				Value: "text",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.History,
	}
}

// tidalAuthCommand authorizes d2t with Tidal
func tidalAuthCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "tidal-auth",
		Usage: "Authenticate with Tidal using OAuth2",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "device",
				Usage: "Use the device code flow instead of a browser redirect",
			},
		},
		Action: r.TidalAuth,
	}
}

// discogsAuthCommand stores a Discogs personal access token
func discogsAuthCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "discogs-auth",
		Usage: "Validate and store a Discogs personal access token",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "token",
				Usage: "Personal access token (read from stdin when omitted)",
			},
		},
		Action: r.DiscogsAuth,
	}
}

// testAuthCommand checks both services' credentials
func testAuthCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "test-auth",
		Usage:  "Check Discogs and Tidal credentials",
		Action: r.TestAuth,
	}
}

// setupCommand creates the config file and database
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create config.toml if missing, then initialize the database and run migrations",
		Action: r.Setup,
	}
}

// configInfoCommand shows the effective configuration
func configInfoCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "config-info",
		Usage:  "Show the effective configuration and where credentials come from",
		Action: r.ConfigInfo,
	}
}

// tuiCommand returns the top-level TUI command for interactive syncs.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch interactive TUI to pick a folder, preview and sync",
		Action:  r.TUI,
	}
}
