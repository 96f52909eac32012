package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/desertthunder/drivecast/internal/formatter"
	"github.com/desertthunder/drivecast/internal/models"
	"github.com/desertthunder/drivecast/internal/player"
	"github.com/desertthunder/drivecast/internal/services"
	"github.com/desertthunder/drivecast/internal/shared"
	"golang.org/x/time/rate"
)

const (
	defaultWorkers   = 4
	maxWorkers       = 8
	defaultRateLimit = 5.0
	manifestName     = "manifest.json"
)

// DownloadOpts contains configuration for story downloads.
type DownloadOpts struct {
	OutputDir  string            // Base output directory; the story gets its own subdirectory (default: drivecast_{epoch})
	NumWorkers int               // Concurrent workers (default: 4, max 8)
	RateLimit  float64           // Requests per second (default: 5)
	Mode       services.AuthMode // Access mode for listing and fetching
	Force      bool              // Re-download files already recorded with a copy on disk
	TagAudio   bool              // Write title and album tags into downloaded mp3 files
}

// FileResult is the outcome of downloading one file.
type FileResult struct {
	FileID    string
	Name      string
	Path      string
	SizeBytes int64
	Skipped   bool
	Err       error
}

// Success reports whether the file is present on disk after the run.
func (r FileResult) Success() bool { return r.Err == nil }

// DownloadResult summarizes a story download.
type DownloadResult struct {
	RunID           string
	Story           models.FolderRef
	OutputDirectory string
	Total           int
	Downloaded      int
	Skipped         int
	Failed          int
	Results         []FileResult
	ManifestPath    string
}

type downloadJob struct {
	entry models.RemoteEntry
	path  string
}

// Download copies every audio file and text chapter of story into its own directory under opts.OutputDir.
//
// Files are fetched concurrently by a rate-limited worker pool. Per-file failures are collected in the
// result; the returned error is reserved for failures that stop the run as a whole.
func (d *Downloader) Download(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	story models.FolderRef,
	opts DownloadOpts,
) (*DownloadResult, error) {
	if d.store == nil {
		return nil, fmt.Errorf("%w: remote store not initialized", shared.ErrMissingConfig)
	}
	if story.ID == "" {
		return nil, fmt.Errorf("%w: story id", shared.ErrMissingArgument)
	}

	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("drivecast_%d", d.now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = defaultWorkers
	}
	if opts.NumWorkers > maxWorkers {
		opts.NumWorkers = maxWorkers
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = defaultRateLimit
	}

	d.sendProgress(prog, listingStoryUpdate(story.Name))
	entries, err := d.store.ListChildren(ctx, story.ID, opts.Mode)
	if err != nil {
		return nil, fmt.Errorf("failed to list story: %w", err)
	}

	files := append(models.Audio(entries), models.Texts(entries)...)
	models.SortNatural(files)
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s has no audio or text files", shared.ErrNothingToPlay, story.Name)
	}

	dir := filepath.Join(opts.OutputDir, safeName(story.Name, story.ID))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	result := &DownloadResult{
		RunID:           shared.GenerateID(),
		Story:           story,
		OutputDirectory: dir,
		Total:           len(files),
		Results:         make([]FileResult, 0, len(files)),
	}
	logger := d.logger.With("run", result.RunID, "story", story.Name)
	logger.Info("starting download", "files", len(files), "workers", opts.NumWorkers)

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)

	jobs := make(chan downloadJob, len(files))
	results := make(chan FileResult, len(files))

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go d.downloadWorker(ctx, &wg, jobs, results, result, opts)
	}

	go func() {
		defer close(jobs)
		for _, entry := range files {
			select {
			case <-ctx.Done():
				return
			default:
			}

			path := filepath.Join(dir, safeName(entry.Name, entry.ID))
			if !opts.Force && d.alreadyDownloaded(story.ID, entry, path) {
				results <- FileResult{FileID: entry.ID, Name: entry.Name, Path: path, SizeBytes: entry.SizeBytes, Skipped: true}
				continue
			}

			if err := limiter.Wait(ctx); err != nil {
				return
			}
			jobs <- downloadJob{entry: entry, path: path}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		result.Results = append(result.Results, res)

		switch {
		case res.Err != nil:
			result.Failed++
			logger.Warn("file download failed", "file", res.Name, "error", res.Err)
			d.sendProgress(prog, fileFailedUpdate(completed, len(files), res))
		case res.Skipped:
			result.Skipped++
			d.sendProgress(prog, fileCompletedUpdate(completed, len(files), res))
		default:
			result.Downloaded++
			d.sendProgress(prog, fileCompletedUpdate(completed, len(files), res))
		}
	}

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("download interrupted: %w", err)
	}

	manifestPath := filepath.Join(dir, manifestName)
	d.sendProgress(prog, manifestUpdate(manifestPath))
	if err := formatter.WriteDownloadManifest(result.manifest(d.now()), manifestPath); err != nil {
		return result, fmt.Errorf("download completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath

	logger.Info("download finished", "downloaded", result.Downloaded, "skipped", result.Skipped, "failed", result.Failed)
	return result, nil
}

// downloadWorker is a worker goroutine that downloads files from the jobs channel.
func (d *Downloader) downloadWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	jobs <-chan downloadJob,
	results chan<- FileResult,
	run *DownloadResult,
	opts DownloadOpts,
) {
	defer wg.Done()

	for job := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}
		results <- d.downloadFile(ctx, job, run, opts)
	}
}

// downloadFile fetches a single entry, writes it to disk, tags it and records it.
func (d *Downloader) downloadFile(ctx context.Context, j downloadJob, run *DownloadResult, opts DownloadOpts) FileResult {
	res := FileResult{FileID: j.entry.ID, Name: j.entry.Name, Path: j.path}

	data, err := d.store.FetchContent(ctx, j.entry.ID, opts.Mode)
	if err != nil {
		res.Err = fmt.Errorf("%w: %w", shared.ErrPlaybackFetch, err)
		return res
	}

	if err := os.WriteFile(j.path, data, 0644); err != nil {
		res.Err = fmt.Errorf("failed to write file: %w", err)
		return res
	}
	res.SizeBytes = int64(len(data))

	if opts.TagAudio && player.IsMP3(j.entry.Name) {
		if err := player.WriteTags(j.path, models.DisplayName(j.entry.Name), run.Story.Name); err != nil {
			d.logger.Warn("failed to tag audio file", "file", j.entry.Name, "error", err)
		}
	}

	if d.recorder != nil {
		rec := &models.Download{
			RunID:     run.RunID,
			StoryID:   run.Story.ID,
			FileID:    j.entry.ID,
			Name:      j.entry.Name,
			Path:      j.path,
			SizeBytes: res.SizeBytes,
			CreatedAt: d.now().UTC(),
		}
		if err := d.recorder.Record(rec); err != nil {
			d.logger.Warn("failed to record download", "file", j.entry.Name, "error", err)
		}
	}
	return res
}

// alreadyDownloaded reports whether entry was recorded at path and the copy on disk is still there.
func (d *Downloader) alreadyDownloaded(storyID string, entry models.RemoteEntry, path string) bool {
	if d.recorder == nil {
		return false
	}
	rec, err := d.recorder.Get(storyID, entry.ID)
	if err != nil || rec.Path != path {
		return false
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return entry.SizeBytes == 0 || info.Size() >= entry.SizeBytes
}

func (r *DownloadResult) manifest(now time.Time) formatter.DownloadManifest {
	m := formatter.DownloadManifest{
		RunID:           r.RunID,
		StoryID:         r.Story.ID,
		StoryName:       r.Story.Name,
		OutputDirectory: r.OutputDirectory,
		CreatedAtEpoch:  now.Unix(),
		Total:           r.Total,
		Downloaded:      r.Downloaded,
		Skipped:         r.Skipped,
		Failed:          r.Failed,
		Files:           make([]formatter.ManifestFile, 0, len(r.Results)),
	}
	for _, res := range r.Results {
		f := formatter.ManifestFile{
			FileID:    res.FileID,
			Name:      res.Name,
			Path:      res.Path,
			SizeBytes: res.SizeBytes,
			Status:    "downloaded",
		}
		switch {
		case res.Err != nil:
			f.Status = "failed"
			f.Error = res.Err.Error()
		case res.Skipped:
			f.Status = "skipped"
		}
		m.Files = append(m.Files, f)
	}
	slices.SortStableFunc(m.Files, func(a, b formatter.ManifestFile) int { return models.NaturalCompare(a.Name, b.Name) })
	return m
}

// safeName returns name with path separators replaced, or fallback when nothing usable remains.
func safeName(name, fallback string) string {
	name = strings.TrimSpace(strings.NewReplacer("/", "_", "\\", "_", "\x00", "").Replace(name))
	if name == "" || name == "." || name == ".." {
		return fallback
	}
	return name
}
