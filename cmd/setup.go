package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/d2t/internal/shared"
)

// Setup creates config.toml from the template when it is missing, then initializes the database and runs
// migrations.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if _, err := os.Stat(configPath); err == nil {
		r.logger.Info("using existing config file", "path", configPath)
	} else {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			return err
		}
		r.writePlain("✓ Created %s\n", configPath)

		config, err := shared.LoadOrDefault(configPath)
		if err != nil {
			return err
		}
		if err := config.ResolveDiscogsToken(r.store); err != nil {
			r.logger.Warn("failed to read stored discogs token", "error", err)
		}
		r.config = config
	}

	r.logger.Info("initializing database", "path", r.config.Database.Path)
	db, err := r.database()
	if err != nil {
		return err
	}

	status, err := shared.Status(db)
	if err != nil {
		return fmt.Errorf("failed to read migration status: %w", err)
	}
	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)

	r.writePlain("✓ Database ready at %s (schema version %d, %d pending)\n", r.config.Database.Path, status.Current, status.Pending)
	r.writePlainln("Next steps:")
	r.writePlain("1. Set DISCOGS_TOKEN in .env or run 'd2t discogs-auth'\n")
	r.writePlain("2. Set credentials.tidal.client_id in %s and run 'd2t tidal-auth'\n", configPath)
	r.writePlain("3. Run 'd2t test-auth', then 'd2t style-sync --dry-run'\n")
	return nil
}

// ConfigInfo prints the effective configuration with secrets masked, and where credentials were loaded from.
func (r *Runner) ConfigInfo(ctx context.Context, cmd *cli.Command) error {
	c := r.config
	configPath := cmd.String("config")

	fileState := "not found, using defaults"
	if _, err := os.Stat(configPath); err == nil {
		fileState = "loaded"
	}
	envState := "not found"
	if _, err := os.Stat(".env"); err == nil {
		envState = "loaded"
	}

	rows := [][2]string{
		{"config file", fmt.Sprintf("%s (%s)", configPath, fileState)},
		{".env", envState},
		{"log level", c.App.LogLevel},
		{"dev mode", fmt.Sprint(c.App.DevMode)},
		{"discogs token", fmt.Sprintf("%s (%s)", mask(c.Credentials.Discogs.Token), c.Source("discogs_token"))},
		{"discogs user agent", c.Credentials.Discogs.UserAgent},
		{"tidal client id", fmt.Sprintf("%s (%s)", c.Credentials.Tidal.ClientID, c.Source("tidal_client_id"))},
		{"tidal client secret", mask(c.Credentials.Tidal.ClientSecret)},
		{"tidal redirect uri", c.Credentials.Tidal.RedirectURI},
		{"tidal country", c.Credentials.Tidal.CountryCode},
		{"database", c.Database.Path},
		{"callback server", c.Server.Addr()},
		{"playlist name", c.Sync.PlaylistName},
		{"style base name", c.Sync.BaseName},
		{"max tracks", limitLabel(c.Sync.MaxTracks)},
		{"search timeout", c.Sync.Timeout().String()},
		{"search retries", fmt.Sprint(c.Sync.SearchRetryCount)},
		{"workers", fmt.Sprint(c.Sync.Workers)},
		{"rate limit", fmt.Sprintf("%g req/s", c.Sync.RateLimit)},
		{"report dir", c.Sync.ReportDir},
		{"tokens dir", c.Paths.TokensDir},
		{"log file", c.Paths.LogFile},
	}

	r.writePlainHeader("Configuration")
	for _, row := range rows {
		r.writePlain("%-20s %s\n", row[0], row[1])
	}

	if err := c.Validate(); err != nil {
		r.writePlain("\n✗ %v\n", err)
	}
	return nil
}

// mask hides all but the last four characters of a secret.
func mask(secret string) string {
	switch {
	case secret == "":
		return "(not set)"
	case len(secret) <= 4:
		return strings.Repeat("*", len(secret))
	default:
		return strings.Repeat("*", 8) + secret[len(secret)-4:]
	}
}

func limitLabel(n int) string {
	if n == 0 {
		return "unlimited"
	}
	return fmt.Sprint(n)
}
