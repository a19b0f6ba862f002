package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/d2t/internal/services"
)

// sessionChecker is implemented by targets that can describe the authenticated session.
type sessionChecker interface {
	Session(ctx context.Context) (services.TidalSession, error)
}

// TestAuth checks the credentials of both services and reports each one.
//
// Both checks always run; the returned error joins every failure.
func (r *Runner) TestAuth(ctx context.Context, cmd *cli.Command) error {
	var errs []error

	if err := r.checkDiscogs(ctx); err != nil {
		r.writePlain("Discogs: ✗ %v\n", err)
		errs = append(errs, fmt.Errorf("discogs: %w", err))
	}
	if err := r.checkTidal(ctx); err != nil {
		r.writePlain("Tidal:   ✗ %v\n", err)
		errs = append(errs, fmt.Errorf("tidal: %w", err))
	}

	return errors.Join(errs...)
}

func (r *Runner) checkDiscogs(ctx context.Context) error {
	catalog, err := r.discogs()
	if err != nil {
		return err
	}

	username, err := catalog.Identity(ctx)
	if err != nil {
		return err
	}

	r.writePlain("Discogs: ✓ authenticated as %s (token from %s)\n", username, r.config.Source("discogs_token"))
	return nil
}

func (r *Runner) checkTidal(ctx context.Context) error {
	target, err := r.tidal(ctx)
	if err != nil {
		return err
	}

	if checker, ok := target.(sessionChecker); ok {
		session, err := checker.Session(ctx)
		if err != nil {
			return err
		}
		r.writePlain("Tidal:   ✓ authenticated as user %d (country %s)\n", session.UserID, session.CountryCode)
		return nil
	}

	playlists, err := target.GetPlaylists(ctx)
	if err != nil {
		return err
	}
	r.writePlain("Tidal:   ✓ authenticated (%d playlists)\n", len(playlists))
	return nil
}
