package tasks

import (
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/drivecast/internal/models"
	"github.com/desertthunder/drivecast/internal/services"
)

// Recorder persists downloaded files. Implemented by [repositories.DownloadRepository].
type Recorder interface {
	Record(d *models.Download) error
	Get(storyID, fileID string) (*models.Download, error)
}

// Downloader copies stories from the remote store to local disk.
type Downloader struct {
	store    services.Store
	recorder Recorder
	logger   *log.Logger
	now      func() time.Time
}

// NewDownloader creates a [Downloader]. A nil recorder disables download bookkeeping and skipping.
func NewDownloader(store services.Store, recorder Recorder, logger *log.Logger) *Downloader {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Downloader{store: store, recorder: recorder, logger: logger, now: time.Now}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (d *Downloader) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}
