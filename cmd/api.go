package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/drivecast/internal/services"
	"github.com/desertthunder/drivecast/internal/shared"
	"github.com/urfave/cli/v3"
)

// APIGet makes a direct GET request to the Drive API and prints the response.
func (r *Runner) APIGet(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")
	if path == "" {
		return fmt.Errorf("%w: path", shared.ErrMissingArgument)
	}
	if err := r.open(); err != nil {
		return err
	}

	mode := r.auth.Mode()
	if cmd.Bool("public") {
		mode = services.Public
	}

	r.logger.Info("GET request", "path", path, "mode", mode)

	resp, err := r.drive.Raw(ctx, path, mode)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrRemoteRequest, err)
	}

	if resp.IsJSON {
		return r.writeJSON(resp.JSONData, !cmd.Bool("compact"))
	}

	r.output.Write(resp.Body)
	r.output.Write([]byte("\n"))
	return nil
}
