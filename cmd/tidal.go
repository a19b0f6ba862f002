package main

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"

	"github.com/desertthunder/d2t/internal/server"
	"github.com/desertthunder/d2t/internal/services"
	"github.com/desertthunder/d2t/internal/shared"
)

const authTimeout = 2 * time.Minute

// TidalAuth runs an OAuth2 flow and stores the resulting token.
//
// The default flow opens the browser and receives the code on the local callback server. --device prints a code
// to enter on another device instead, for headless machines.
func (r *Runner) TidalAuth(ctx context.Context, cmd *cli.Command) error {
	if err := r.config.RequireTidal(); err != nil {
		return err
	}

	auth := r.tidalAuth()

	var (
		token *oauth2.Token
		err   error
	)
	if cmd.Bool("device") {
		token, err = r.deviceAuth(ctx, auth)
	} else {
		token, err = r.browserAuth(ctx, auth)
	}
	if err != nil {
		return err
	}

	r.writePlain("✓ Authenticated with Tidal\n")
	if !token.Expiry.IsZero() {
		r.writePlain("Token expires %s\n", token.Expiry.Local().Format(time.DateTime))
	}
	return nil
}

func (r *Runner) deviceAuth(ctx context.Context, auth *services.TidalAuth) (*oauth2.Token, error) {
	da, err := auth.StartDevice(ctx)
	if err != nil {
		return nil, err
	}

	link := da.VerificationURIComplete
	if link == "" {
		link = da.VerificationURI
	}

	r.writePlain("Visit %s and enter code %s\n", link, da.UserCode)
	if err := shared.OpenBrowser(link); err != nil {
		r.logger.Debug("could not open browser", "error", err)
	}
	r.writePlain("Waiting for authorization...\n")

	return auth.AwaitDevice(ctx, da)
}

func (r *Runner) browserAuth(ctx context.Context, auth *services.TidalAuth) (*oauth2.Token, error) {
	state, err := shared.GenerateState()
	if err != nil {
		return nil, err
	}
	verifier := oauth2.GenerateVerifier()

	redirect, err := url.Parse(r.config.Credentials.Tidal.RedirectURI)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid redirect_uri: %v", shared.ErrConfiguration, err)
	}

	handler := server.NewOAuthHandler("Tidal", redirect.Path, state, func(ctx context.Context, code string) (*oauth2.Token, error) {
		return auth.Exchange(ctx, code, verifier)
	})

	router := server.NewBasicRouter()
	router.Use(server.RequestLogger(r.logger))
	router.Handler(handler)

	srv, err := server.StartCallbackServer(r.config.Server.Addr(), router, r.logger)
	if err != nil {
		return nil, err
	}

	link := auth.AuthCodeURL(state, verifier)
	r.writePlain("Opening browser to authorize d2t with Tidal...\n")
	if err := shared.OpenBrowser(link); err != nil {
		r.logger.Debug("could not open browser", "error", err)
	}
	r.writePlain("If the browser did not open, visit:\n%s\n", link)

	waitCtx, cancel := context.WithTimeout(ctx, authTimeout)
	defer cancel()
	return srv.Wait(waitCtx, handler)
}
