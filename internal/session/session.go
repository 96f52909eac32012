package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/drivecast/internal/auth"
	"github.com/desertthunder/drivecast/internal/models"
	"github.com/desertthunder/drivecast/internal/navigation"
	"github.com/desertthunder/drivecast/internal/player"
	"github.com/desertthunder/drivecast/internal/playlist"
	"github.com/desertthunder/drivecast/internal/progress"
	"github.com/desertthunder/drivecast/internal/reader"
	"github.com/desertthunder/drivecast/internal/services"
	"github.com/desertthunder/drivecast/internal/shared"
)

const (
	eventBuffer  = 64
	tickInterval = time.Second
)

// Folders resolves folder metadata on the remote store.
type Folders interface {
	FolderInfo(ctx context.Context, folderID string, mode services.AuthMode) (models.FolderRef, error)
	FindFolderByName(ctx context.Context, name string, mode services.AuthMode) (models.FolderRef, error)
}

// Profiles fetches the signed-in user's profile.
type Profiles interface {
	UserInfo(ctx context.Context) (*models.UserProfile, error)
}

type progressLister interface {
	ListChildrenProgress(ctx context.Context, folderID string, mode services.AuthMode, onPage func(int)) ([]models.RemoteEntry, error)
}

// Credentials is the credential lifecycle the session drives.
type Credentials interface {
	State() auth.State
	Subscribe() <-chan auth.StateChange
	RegisterClearer(fn auth.Clearer)
	EnterPublic() auth.State
	Credential() (auth.Credential, bool)
	RenewSilently(ctx context.Context) (auth.Credential, error)
	SignIn(ctx context.Context) (auth.Credential, error)
	SignOut(ctx context.Context) error
	Start(ctx context.Context)
}

// Opts configures a [Session].
type Opts struct {
	Store     services.Store
	Folders   Folders
	Profiles  Profiles // optional
	Auth      Credentials
	Progress  *progress.Store
	Player    player.Player
	Narrator  reader.Narrator
	Library   shared.LibraryConfig
	Playback  shared.PlayerConfig
	Narration shared.NarrationConfig
	Logger    *log.Logger
	Now       func() time.Time
}

// story is the folder an engine was built from and the navigation path that leads to it.
type story struct {
	ref models.FolderRef
	nav []models.FolderRef
}

// Session is the state of one running player.
type Session struct {
	op sync.Mutex // serializes actions
	mu sync.Mutex // guards the fields below

	store     services.Store
	folders   Folders
	profiles  Profiles
	creds     Credentials
	progress  *progress.Store
	player    player.Player
	playlist  *playlist.Engine
	reader    *reader.Engine
	library   shared.LibraryConfig
	saveEvery time.Duration
	logger    *log.Logger
	now       func() time.Time

	baseCtx     context.Context
	authCh      <-chan auth.StateChange
	events      chan Event
	nav         *navigation.Stack
	listing     Listing
	mode        models.Mode
	public      bool
	audioStory  story
	readStory   story
	loadedID    string
	autoAdvance bool
	lastSave    time.Time
}

// New wires a session. Sign-out through opts.Auth clears the progress store.
func New(opts Opts) *Session {
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Session{
		store:     opts.Store,
		folders:   opts.Folders,
		profiles:  opts.Profiles,
		creds:     opts.Auth,
		progress:  opts.Progress,
		player:    opts.Player,
		library:   opts.Library,
		saveEvery: opts.Playback.SaveInterval(),
		logger:    opts.Logger,
		now:       opts.Now,
		events:    make(chan Event, eventBuffer),
		mode:      models.ModeAudio,
	}

	rate := opts.Progress.Speed(opts.Playback.DefaultRate)
	s.autoAdvance = opts.Progress.AutoAdvance(opts.Playback.AutoAdvance)
	narration := opts.Progress.Narration(progress.Narration{Rate: opts.Narration.Rate, Voice: opts.Narration.Voice})

	s.playlist = playlist.New(playlist.Opts{
		Store:          opts.Store,
		PrefetchWindow: opts.Playback.PrefetchWindow(),
		Rate:           rate,
		Logger:         shared.WithLogger(opts.Logger, "component", "playlist"),
	})
	s.reader = reader.New(reader.Opts{
		Store:      opts.Store,
		Narrator:   opts.Narrator,
		TitleIndex: opts.Library.TitleIndex,
		Rate:       narration.Rate,
		Voice:      narration.Voice,
		Logger:     shared.WithLogger(opts.Logger, "component", "reader"),
		OnProgress: s.onReaderProgress,
		OnStop:     s.onNarrationStop,
	})
	s.reader.SetAutoAdvance(s.autoAdvance)

	if s.creds != nil {
		s.authCh = s.creds.Subscribe()
		s.creds.RegisterClearer(s.progress.Clear)
	}
	return s
}

// Events delivers state changes and failures. Delivery never blocks the session; a reader that falls
// behind misses events.
func (s *Session) Events() <-chan Event {
	return s.events
}

func (s *Session) emit(e Event) {
	if e.Kind == EventError {
		s.logger.Warn(e.Message)
	}
	select {
	case s.events <- e:
	default:
	}
}

func (s *Session) fail(action string, err error) error {
	s.emit(errorEvent(action, err))
	return err
}

// Start starts the credential refresher and replays the last session, falling back to the library
// root when there is none or it cannot be replayed.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()

	if s.creds != nil {
		s.creds.Start(ctx)
		s.renewExpired(ctx)
	}

	if s.resumeLast(ctx) {
		return nil
	}
	return s.OpenRoot(ctx)
}

// renewExpired renews a credential that expired while the player was closed, when it carries a
// refresh token.
func (s *Session) renewExpired(ctx context.Context) {
	if s.creds.State() != auth.Expired {
		return
	}
	cred, ok := s.creds.Credential()
	if !ok || cred.Token == nil || cred.Token.RefreshToken == "" {
		return
	}
	if _, err := s.creds.RenewSilently(ctx); err != nil {
		s.logger.Warn("failed to renew stored credential", "error", err)
	}
}

// resumeLast replays the saved session and reports whether it succeeded.
func (s *Session) resumeLast(ctx context.Context) bool {
	snapshot, err := s.progress.RestoreSession()
	if err != nil {
		s.logger.Warn("failed to read last session", "error", err)
		return false
	}
	if snapshot == nil {
		return false
	}
	return s.Restore(ctx, *snapshot) == nil
}

// Run processes playback ticks, natural track ends and credential changes until ctx is done.
func (s *Session) Run(ctx context.Context) error {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	authCh := s.authCh
	var ended <-chan player.Ended
	if s.player != nil {
		ended = s.player.Ended()
	}

	for {
		select {
		case <-ctx.Done():
			s.Shutdown()
			return ctx.Err()
		case <-ticker.C:
			s.Tick(ctx)
		case e := <-ended:
			s.handleEnded(ctx, e)
		case change, ok := <-authCh:
			if !ok {
				authCh = nil
				continue
			}
			s.handleAuth(change)
		}
	}
}

// Shutdown saves progress and releases the playback surface.
func (s *Session) Shutdown() {
	s.op.Lock()
	defer s.op.Unlock()

	if s.Mode() == models.ModeAudio && s.player != nil {
		_ = s.player.Pause()
	}
	s.saveLocked()
	s.reader.Cancel()
	if s.player != nil {
		if err := s.player.Stop(); err != nil {
			s.logger.Warn("failed to stop player", "error", err)
		}
	}
}

func (s *Session) handleAuth(change auth.StateChange) {
	s.emit(authEvent(change))
	switch change.To {
	case auth.Expired:
		s.emit(errorEvent("session expired, sign in again to continue", shared.ErrCredentialExpired))
	case auth.SignedOut:
		if change.Err != nil {
			s.emit(errorEvent("credential renewal", change.Err))
		}
	}
}

// Mode is the active engine.
func (s *Session) Mode() models.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Access is the credential mode remote calls use for the current folder.
func (s *Session) Access() services.AuthMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessLocked()
}

func (s *Session) accessLocked() services.AuthMode {
	if s.public {
		return services.Public
	}
	return services.Authenticated
}

func (s *Session) playCtx(ctx context.Context) context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.baseCtx != nil {
		return s.baseCtx
	}
	return ctx
}

// SwitchMode activates engine m. The other engine is stopped first: audio is paused and narration
// cancelled.
func (s *Session) SwitchMode(ctx context.Context, m models.Mode) error {
	if m != models.ModeAudio && m != models.ModeReader {
		return fmt.Errorf("%w: mode %q", shared.ErrInvalidArgument, m)
	}
	s.op.Lock()
	defer s.op.Unlock()
	s.switchModeLocked(m)
	return nil
}

func (s *Session) switchModeLocked(m models.Mode) {
	if s.Mode() == m {
		return
	}

	s.saveLocked()
	switch m {
	case models.ModeReader:
		if s.player != nil && s.player.Playing() {
			if err := s.player.Pause(); err != nil {
				s.logger.Warn("failed to pause player", "error", err)
			}
			s.playlist.Seek(s.player.Position())
		}
	case models.ModeAudio:
		s.reader.Cancel()
	}

	s.mu.Lock()
	s.mode = m
	s.mu.Unlock()
	s.emit(playbackEvent("Switched to " + string(m)))
}

// stopEngines halts both engines and forgets their stories.
func (s *Session) stopEngines() {
	s.reader.Cancel()
	if s.player != nil {
		if err := s.player.Stop(); err != nil {
			s.logger.Warn("failed to stop player", "error", err)
		}
	}
	s.playlist.Clear()

	s.mu.Lock()
	s.loadedID = ""
	s.audioStory = story{}
	s.readStory = story{}
	s.mu.Unlock()
}

// ErrNoFolder is returned by actions that need an open folder before one is open.
var ErrNoFolder = errors.New("no folder open")
