package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/desertthunder/drivecast/internal/shared"
	"github.com/desertthunder/drivecast/internal/tasks"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
)

const progressBuffer = 100

// Download copies the audio files and chapters of a story folder to local disk.
func (r *Runner) Download(ctx context.Context, cmd *cli.Command) error {
	s, err := r.newSession(sessionOpts{})
	if err != nil {
		return err
	}
	if err := r.openFolder(ctx, s, cmd.String("link"), cmd.String("path")); err != nil {
		return err
	}
	story := s.Listing().Folder

	opts := tasks.DownloadOpts{
		OutputDir:  shared.ExpandHome(cmd.String("output")),
		NumWorkers: r.config.Download.Workers,
		RateLimit:  r.config.Download.RateLimit,
		Mode:       s.Access(),
		Force:      cmd.Bool("force"),
		TagAudio:   cmd.Bool("tag"),
	}
	if cmd.IsSet("workers") {
		opts.NumWorkers = int(cmd.Int("workers"))
	}
	if cmd.IsSet("rate") {
		opts.RateLimit = cmd.Float("rate")
	}

	r.logger.Info("downloading story", "story", story.Name, "id", story.ID, "access", opts.Mode)

	downloader := tasks.NewDownloader(r.drive, r.downloads, shared.WithLogger(r.logger, "component", "download"))
	progress := make(chan tasks.ProgressUpdate, progressBuffer)
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.renderProgress(os.Stderr, progress)
	}()

	result, err := downloader.Download(ctx, progress, story, opts)
	close(progress)
	<-done

	if result != nil {
		r.writeDownloadSummary(result)
	}
	return err
}

// renderProgress draws a bar for the file phase and logs the other phases.
func (r *Runner) renderProgress(w io.Writer, updates <-chan tasks.ProgressUpdate) {
	var bar *progressbar.ProgressBar
	for u := range updates {
		switch u.Phase {
		case tasks.DownloadFiles:
			if bar == nil {
				bar = progressbar.NewOptions(u.Total,
					progressbar.OptionSetDescription("Downloading"),
					progressbar.OptionSetWriter(w),
					progressbar.OptionSetWidth(40),
					progressbar.OptionShowCount(),
					progressbar.OptionThrottle(65*time.Millisecond),
					progressbar.OptionOnCompletion(func() {
						fmt.Fprint(w, "\n")
					}),
					progressbar.OptionSetRenderBlankState(true),
				)
			}
			if res, ok := u.Data.(tasks.FileResult); ok && !res.Success() {
				r.logger.Warn(u.Message)
			} else {
				r.logger.Debug(u.Message)
			}
			_ = bar.Set(u.Step)
		default:
			r.logger.Info(u.Message, "phase", u.Phase)
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}
}

func (r *Runner) writeDownloadSummary(res *tasks.DownloadResult) {
	r.writePlainHeader(fmt.Sprintf("Downloaded %s", res.Story.Name))
	r.writePlain("Directory:  %s\n", res.OutputDirectory)
	r.writePlain("Files:      %d\n", res.Total)
	r.writePlain("Downloaded: %d\n", res.Downloaded)
	r.writePlain("Skipped:    %d\n", res.Skipped)
	r.writePlain("Failed:     %d\n", res.Failed)
	if res.ManifestPath != "" {
		r.writePlain("Manifest:   %s\n", res.ManifestPath)
	}

	if res.Failed == 0 {
		return
	}
	rows := [][]string{}
	for _, f := range res.Results {
		if !f.Success() {
			rows = append(rows, []string{f.Name, f.Err.Error()})
		}
	}
	r.writePlain("\n%s\n", renderTable(r.output, []string{"File", "Error"}, rows, nil))
}
