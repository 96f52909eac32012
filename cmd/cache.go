package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/desertthunder/drivecast/internal/shared"
	"github.com/urfave/cli/v3"
)

// CacheList shows the files of a story recorded as downloaded.
func (r *Runner) CacheList(ctx context.Context, cmd *cli.Command) error {
	storyID := cmd.StringArg("story")
	if storyID == "" {
		return fmt.Errorf("%w: story id", shared.ErrMissingArgument)
	}
	if err := r.open(); err != nil {
		return err
	}

	downloads, err := r.downloads.ListByStory(storyID)
	if err != nil {
		return fmt.Errorf("failed to list downloads: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(downloads, true)
	}
	if len(downloads) == 0 {
		return r.writePlain("Nothing downloaded for %s\n", storyID)
	}

	rows := make([][]string, 0, len(downloads))
	for _, d := range downloads {
		state := "ok"
		if _, err := os.Stat(d.Path); err != nil {
			state = "missing"
		}
		rows = append(rows, []string{d.Name, shared.FormatSize(d.SizeBytes), d.Path, state})
	}
	return r.writePlain("%s\n", renderTable(r.output,
		[]string{"Name", "Size", "Path", "State"}, rows, []columnAlignment{alignLeft, alignRight}))
}

// CacheClear forgets the download records of a story, removing the files too with --files.
func (r *Runner) CacheClear(ctx context.Context, cmd *cli.Command) error {
	storyID := cmd.StringArg("story")
	if storyID == "" {
		return fmt.Errorf("%w: story id", shared.ErrMissingArgument)
	}
	if err := r.open(); err != nil {
		return err
	}

	if cmd.Bool("files") {
		downloads, err := r.downloads.ListByStory(storyID)
		if err != nil {
			return fmt.Errorf("failed to list downloads: %w", err)
		}
		for _, d := range downloads {
			if err := os.Remove(d.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
				r.logger.Warn("failed to remove file", "path", d.Path, "error", err)
			}
		}
	}

	n, err := r.downloads.DeleteStory(storyID)
	if err != nil {
		return fmt.Errorf("failed to clear downloads: %w", err)
	}
	r.logger.Info("cleared downloads", "story", storyID, "records", n)
	return r.writePlain("✓ Cleared %d download records for %s\n", n, storyID)
}
