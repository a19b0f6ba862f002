package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/d2t/internal/formatter"
	"github.com/desertthunder/d2t/internal/shared"
)

// ListFolders prints the Discogs collection folders with their release counts.
func (r *Runner) ListFolders(ctx context.Context, cmd *cli.Command) error {
	catalog, err := r.discogs()
	if err != nil {
		return err
	}

	r.logger.Debug("fetching folders", "service", catalog.Name())
	folders, err := catalog.Folders(ctx)
	if err != nil {
		return fmt.Errorf("failed to list folders: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(folders, true)
	}

	r.writePlainHeader("Discogs Collection Folders")
	return r.writeTable(formatter.FoldersTable(folders))
}

// DiscogsAuth validates a personal access token against the identity endpoint and stores it.
func (r *Runner) DiscogsAuth(ctx context.Context, cmd *cli.Command) error {
	token := strings.TrimSpace(cmd.String("token"))
	if token == "" {
		r.writePlain("Create a token at https://www.discogs.com/settings/developers\n")
		r.writePlain("Discogs personal access token: ")

		line, err := bufio.NewReader(r.input).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("%w: no token provided", shared.ErrMissingArgument)
		}
		token = strings.TrimSpace(line)
	}
	if token == "" {
		return fmt.Errorf("%w: no token provided", shared.ErrMissingArgument)
	}

	cfg := r.config.Credentials.Discogs
	cfg.Token = token

	catalog, err := r.newCatalog(cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to create Discogs service: %w", err)
	}

	username, err := catalog.Identity(ctx)
	if err != nil {
		return err
	}

	if err := r.store.SaveDiscogsToken(token, username); err != nil {
		return fmt.Errorf("failed to store discogs token: %w", err)
	}

	r.config.Credentials.Discogs.Token = token
	r.catalog = catalog
	r.logger.Info("stored discogs token", "username", username, "dir", r.store.Dir())
	return r.writePlain("✓ Authenticated with Discogs as %s\n", username)
}
