package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/drivecast/internal/auth"
	"github.com/desertthunder/drivecast/internal/shared"
	"github.com/urfave/cli/v3"
)

// AuthLogin runs the browser consent flow and caches the signed-in user's profile.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	s, err := r.newSession(sessionOpts{})
	if err != nil {
		return err
	}

	r.logger.Info("starting sign-in", "callback", r.config.Server.CallbackAddr())
	if err := s.SignIn(ctx); err != nil {
		if s.AuthState() != auth.SignedIn {
			return err
		}
		r.logger.Warn("signed in but the library could not be opened", "error", err)
	}

	r.writePlain("✓ Signed in\n")
	if u, ok := s.User(); ok {
		r.writePlain("User: %s <%s>\n", u.Name, u.Email)
	}
	return nil
}

// AuthLogout revokes the credential and clears the saved session, history and cached user.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	s, err := r.newSession(sessionOpts{})
	if err != nil {
		return err
	}
	if err := s.SignOut(ctx); err != nil {
		return err
	}
	return r.writePlain("✓ Signed out\n")
}

// AuthStatus reports the credential state and, when signed in, its expiry.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}

	state := r.auth.State()
	status := struct {
		State        string `json:"state"`
		User         string `json:"user,omitempty"`
		Email        string `json:"email,omitempty"`
		ExpiresAt    string `json:"expires_at,omitempty"`
		PublicFolder string `json:"public_folder,omitempty"`
	}{State: state.String()}

	if c, ok := r.auth.Credential(); ok {
		status.ExpiresAt = c.ExpiresAt().Format(time.RFC3339)
	}
	if u, ok := r.progress.User(); ok {
		status.User, status.Email = u.Name, u.Email
	}
	if ref, ok := r.progress.PublicFolder(); ok {
		status.PublicFolder = fmt.Sprintf("%s (%s)", ref.Name, ref.ID)
	}

	if cmd.Bool("json") {
		return r.writeJSON(status, true)
	}

	r.writePlainHeader("Authentication")
	switch state {
	case auth.SignedIn:
		r.writePlain("State: ✓ %s\n", state)
	case auth.Expired:
		r.writePlain("State: ! %s (run 'drivecast auth login')\n", state)
	default:
		r.writePlain("State: ✗ %s\n", state)
	}
	if status.User != "" {
		r.writePlain("User: %s <%s>\n", status.User, status.Email)
	}
	if status.ExpiresAt != "" {
		r.writePlain("Token expires: %s\n", status.ExpiresAt)
	}
	if status.PublicFolder != "" {
		r.writePlain("Public folder: %s\n", status.PublicFolder)
	}
	if r.config.Credentials.Google.ClientID == "" {
		r.writePlainln("%v: set [credentials.google] in config.toml to sign in", shared.ErrMissingCredentials)
	}
	return nil
}
