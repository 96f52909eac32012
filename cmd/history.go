package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/drivecast/internal/formatter"
	"github.com/desertthunder/drivecast/internal/shared"
	"github.com/urfave/cli/v3"
)

// HistoryList prints the saved stories, most recent first.
func (r *Runner) HistoryList(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}

	history := r.progress.History()
	if cmd.Bool("json") {
		data, err := formatter.HistoryToJSON(history)
		if err != nil {
			return err
		}
		return r.writePlain("%s\n", data)
	}

	if len(history) == 0 {
		return r.writePlain("No saved stories yet.\n")
	}

	rows := make([][]string, 0, len(history))
	for _, p := range history {
		rows = append(rows, []string{
			p.StoryID,
			p.StoryName,
			string(p.Mode),
			formatter.Position(p),
			string(p.Access),
			shared.FormatEpochMs(p.LastAccessedEpochMs),
		})
	}
	return r.writePlain("%s\n", renderTable(r.output,
		[]string{"ID", "Story", "Mode", "Where", "Access", "Last Accessed"}, rows, nil))
}

// HistoryRemove forgets one story.
func (r *Runner) HistoryRemove(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: story id", shared.ErrMissingArgument)
	}
	if err := r.open(); err != nil {
		return err
	}

	removed, err := r.progress.RemoveFromHistory(id)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("%w: no saved progress for %s", shared.ErrInvalidArgument, id)
	}
	return r.writePlain("✓ Removed %s from history\n", id)
}

// HistoryExport writes the history to a file in the chosen format.
func (r *Runner) HistoryExport(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}

	history := r.progress.History()
	path, err := formatter.WriteHistoryExport(history, cmd.String("format"), cmd.String("output"))
	if err != nil {
		return err
	}

	r.logger.Info("history exported", "stories", len(history), "path", path)
	return r.writePlain("✓ Exported %d stories to %s\n", len(history), path)
}
