package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/drivecast/internal/auth"
	"github.com/desertthunder/drivecast/internal/models"
	"github.com/desertthunder/drivecast/internal/player"
	"github.com/desertthunder/drivecast/internal/progress"
	"github.com/desertthunder/drivecast/internal/repositories"
	"github.com/desertthunder/drivecast/internal/services"
	"github.com/desertthunder/drivecast/internal/session"
	"github.com/desertthunder/drivecast/internal/shared"
	"github.com/urfave/cli/v3"
)

// KV is the key-value persistence shared by the credential manager and the progress store.
type KV interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Remove(key string) error
}

// DownloadStore records downloaded files. Implemented by [repositories.DownloadRepository].
type DownloadStore interface {
	Record(d *models.Download) error
	Get(storyID, fileID string) (*models.Download, error)
	ListByStory(storyID string) ([]*models.Download, error)
	DeleteStory(storyID string) (int64, error)
}

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Persistence, credentials and the Drive client are opened on first use so commands that
// never touch them (config init, help) work without a database.
type Runner struct {
	config     *shared.Config
	configPath string
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer

	once      sync.Once
	openErr   error
	db        *sql.DB
	kv        KV
	downloads DownloadStore
	auth      *auth.Manager
	drive     *services.DriveService
	progress  *progress.Store
}

// RunnerOpts contains configuration options for creating a Runner.
//
// KV, Downloads, Auth and Drive are optional; when nil they are built from Config on first use.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	KV         KV
	Downloads  DownloadStore
	Auth       *auth.Manager
	Drive      *services.DriveService
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		kv:         opts.KV,
		downloads:  opts.Downloads,
		auth:       opts.Auth,
		drive:      opts.Drive,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, browseCommand, playCommand, readCommand, publicCommand,
		historyCommand, downloadCommand, cacheCommand, apiCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger replaces the logger used by the runner and everything it builds afterwards.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

// open builds the persistence, credential and remote layers once.
func (r *Runner) open() error {
	r.once.Do(func() {
		r.openErr = r.build()
	})
	return r.openErr
}

func (r *Runner) build() error {
	if r.kv == nil || r.downloads == nil {
		db, err := shared.OpenStore(r.config.Database)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		r.db = db
		if r.kv == nil {
			r.kv = repositories.NewKVRepository(db)
		}
		if r.downloads == nil {
			r.downloads = repositories.NewDownloadRepository(db)
		}
	}

	if r.auth == nil {
		var provider auth.TokenProvider
		p, err := auth.NewOAuthProvider(auth.OAuthProviderOpts{
			Google:       r.config.Credentials.Google,
			CallbackAddr: r.config.Server.CallbackAddr(),
			Prompt:       os.Stderr,
			OpenBrowser:  shared.OpenBrowser,
			Logger:       shared.WithLogger(r.logger, "component", "oauth"),
		})
		if err != nil {
			r.logger.Debug("sign-in unavailable", "error", err)
		} else {
			provider = p
		}

		r.auth = auth.NewManager(auth.ManagerOpts{
			Provider:   provider,
			KV:         r.kv,
			HTTPClient: r.httpClient,
			Config:     r.config.Auth,
			Logger:     shared.WithLogger(r.logger, "component", "auth"),
		})
	}

	if r.drive == nil {
		r.drive = services.NewDriveService(services.DriveOpts{
			APIKey:     r.config.Credentials.Google.APIKey,
			HTTPClient: r.httpClient,
			Fetcher:    r.auth,
			Logger:     shared.WithLogger(r.logger, "component", "drive"),
		})
	}

	r.progress = progress.New(r.kv, shared.WithLogger(r.logger, "component", "progress"))
	return nil
}

// Close releases the database opened by the runner.
func (r *Runner) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// sessionOpts selects the surfaces a command session needs.
type sessionOpts struct {
	audio    bool
	narrator bool
}

// newSession wires a [session.Session] over the runner's layers.
func (r *Runner) newSession(o sessionOpts) (*session.Session, error) {
	if err := r.open(); err != nil {
		return nil, err
	}

	opts := session.Opts{
		Store:     r.drive,
		Folders:   r.drive,
		Profiles:  r.drive,
		Auth:      r.auth,
		Progress:  r.progress,
		Library:   r.config.Library,
		Playback:  r.config.Player,
		Narration: r.config.Narration,
		Logger:    shared.WithLogger(r.logger, "component", "session"),
	}
	if o.audio {
		opts.Player = player.NewExecPlayer(player.Opts{
			Command: r.config.Player.Command,
			FFProbe: r.config.Player.FFProbe,
			Rate:    r.progress.Speed(r.config.Player.DefaultRate),
			Logger:  shared.WithLogger(r.logger, "component", "player"),
		})
	}
	if o.narrator {
		opts.Narrator = player.NewExecNarrator(r.config.Narration.Command, shared.WithLogger(r.logger, "component", "narrator"))
	}
	return session.New(opts), nil
}

// lock takes the single-instance lock next to the database.
func (r *Runner) lock() (*shared.InstanceLock, error) {
	l, err := shared.AcquireInstanceLock(r.config.Database.Path)
	if errors.Is(err, shared.ErrAlreadyRunning) {
		return nil, fmt.Errorf("%w: another drivecast player holds %s", err, r.config.Database.Path)
	}
	return l, err
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
