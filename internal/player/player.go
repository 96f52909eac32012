package player

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/drivecast/internal/models"
	"github.com/desertthunder/drivecast/internal/shared"
)

var commandContext = exec.CommandContext

const (
	DefaultCommand = "mpv"

	MinRate = 0.5
	MaxRate = 3.0
)

// Track is one loaded audio item.
type Track struct {
	ID   string
	Name string
	Data []byte
}

// Info describes a loaded track.
type Info struct {
	Title    string
	Duration float64 // seconds, 0 when unknown
}

// Ended reports that a play run finished on its own.
type Ended struct {
	TrackID string
	Err     error
}

// Player is an audio output surface.
type Player interface {
	Load(ctx context.Context, t Track) (Info, error)
	Play(ctx context.Context) error
	Pause() error
	Seek(seconds float64) error
	SetRate(rate float64) error
	Position() float64
	Duration() float64
	Playing() bool
	Ended() <-chan Ended
	Stop() error
}

// Opts configures an [ExecPlayer].
type Opts struct {
	Command string
	FFProbe string
	Dir     string // where loaded tracks are written
	Rate    float64
	Logger  *log.Logger
	Now     func() time.Time
}

// ExecPlayer plays tracks through an external command.
type ExecPlayer struct {
	mu      sync.Mutex
	command string
	ffprobe string
	dir     string
	logger  *log.Logger
	now     func() time.Time

	track    Track
	path     string
	info     Info
	position float64
	rate     float64

	playing   bool
	startedAt time.Time
	parent    context.Context
	cancel    context.CancelFunc
	gen       int
	ended     chan Ended
}

var _ Player = (*ExecPlayer)(nil)

func NewExecPlayer(opts Opts) *ExecPlayer {
	if opts.Command == "" {
		opts.Command = DefaultCommand
	}
	if opts.Dir == "" {
		opts.Dir = filepath.Join(os.TempDir(), "drivecast")
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Rate == 0 {
		opts.Rate = 1
	}
	return &ExecPlayer{
		command: opts.Command,
		ffprobe: opts.FFProbe,
		dir:     opts.Dir,
		logger:  opts.Logger,
		now:     opts.Now,
		rate:    clampRate(opts.Rate),
		ended:   make(chan Ended, 1),
	}
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// Load stops the current track, writes t to disk and reads its duration and title.
func (p *ExecPlayer) Load(ctx context.Context, t Track) (Info, error) {
	if err := p.Stop(); err != nil {
		p.logger.Warn("failed to release previous track", "error", err)
	}

	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return Info{}, fmt.Errorf("failed to create player directory: %w", err)
	}
	path := filepath.Join(p.dir, unsafeChars.ReplaceAllString(t.ID, "_")+filepath.Ext(t.Name))
	if err := os.WriteFile(path, t.Data, 0o644); err != nil {
		return Info{}, fmt.Errorf("failed to write track: %w", err)
	}

	info := Info{Title: models.DisplayName(t.Name)}
	if IsMP3(t.Name) {
		if title, err := ReadTitle(path); err != nil {
			p.logger.Debug("failed to read tags", "track", t.Name, "error", err)
		} else if title != "" {
			info.Title = title
		}
	}
	if probe, err := Probe(ctx, p.ffprobe, path); err != nil {
		p.logger.Warn("duration unavailable", "track", t.Name, "error", err)
	} else {
		info.Duration = probe.DurationSeconds()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.track = Track{ID: t.ID, Name: t.Name}
	p.path = path
	p.info = info
	p.position = 0
	return info, nil
}

// Play starts the loaded track from the current position.
func (p *ExecPlayer) Play(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.path == "" {
		return fmt.Errorf("%w: no track loaded", shared.ErrNothingToPlay)
	}
	if p.playing {
		return nil
	}
	p.parent = ctx
	return p.startLocked()
}

func (p *ExecPlayer) startLocked() error {
	runCtx, cancel := context.WithCancel(p.parent)
	cmd := commandContext(runCtx, p.command, playerArgs(p.command, p.path, p.position, p.rate)...)
	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("failed to start %s: %w", p.command, err)
	}

	p.gen++
	p.cancel = cancel
	p.playing = true
	p.startedAt = p.now()

	p.logger.Debug("player started", "track", p.track.Name, "position", p.position, "rate", p.rate)
	go p.wait(cmd, p.gen)
	return nil
}

func (p *ExecPlayer) wait(cmd *exec.Cmd, gen int) {
	err := cmd.Wait()

	p.mu.Lock()
	if gen != p.gen || !p.playing {
		p.mu.Unlock()
		return
	}
	p.cancel()
	p.cancel = nil
	p.playing = false
	if p.info.Duration > 0 {
		p.position = p.info.Duration
	}
	id := p.track.ID
	p.mu.Unlock()

	if err != nil {
		p.logger.Error("player exited", "track", id, "error", err)
		err = fmt.Errorf("%s: %w", p.command, err)
	}
	select {
	case p.ended <- Ended{TrackID: id, Err: err}:
	default:
	}
}

func (p *ExecPlayer) haltLocked() {
	if !p.playing {
		return
	}
	p.position = p.positionLocked()
	p.playing = false
	p.gen++
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

// Pause stops the process and keeps the position.
func (p *ExecPlayer) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.haltLocked()
	return nil
}

// Seek moves to seconds, clamped to the track; a playing track restarts there.
func (p *ExecPlayer) Seek(seconds float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	wasPlaying := p.playing
	p.haltLocked()
	p.position = p.clampLocked(seconds)
	if wasPlaying {
		return p.startLocked()
	}
	return nil
}

// SetRate changes the speed multiplier; a playing track restarts at its current position.
func (p *ExecPlayer) SetRate(rate float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	wasPlaying := p.playing
	p.haltLocked()
	p.rate = clampRate(rate)
	if wasPlaying {
		return p.startLocked()
	}
	return nil
}

// Position is the elapsed track time in seconds.
func (p *ExecPlayer) Position() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.positionLocked()
}

func (p *ExecPlayer) positionLocked() float64 {
	if !p.playing {
		return p.position
	}
	elapsed := p.now().Sub(p.startedAt).Seconds() * p.rate
	return p.clampLocked(p.position + elapsed)
}

func (p *ExecPlayer) clampLocked(s float64) float64 {
	if s < 0 {
		return 0
	}
	if p.info.Duration > 0 && s > p.info.Duration {
		return p.info.Duration
	}
	return s
}

func (p *ExecPlayer) Duration() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.info.Duration
}

func (p *ExecPlayer) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

func (p *ExecPlayer) Rate() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rate
}

// Ended delivers a notification whenever a play run finishes without being paused or stopped.
func (p *ExecPlayer) Ended() <-chan Ended {
	return p.ended
}

// Stop halts playback and removes the loaded track from disk.
func (p *ExecPlayer) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.haltLocked()
	path := p.path
	p.path = ""
	p.track = Track{}
	p.info = Info{}
	p.position = 0

	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func playerArgs(command, path string, start, rate float64) []string {
	pos := strconv.FormatFloat(start, 'f', 3, 64)
	speed := strconv.FormatFloat(rate, 'f', 2, 64)

	switch filepath.Base(command) {
	case "ffplay":
		return []string{"-nodisp", "-autoexit", "-loglevel", "error", "-ss", pos, "-af", "atempo=" + speed, path}
	default:
		return []string{"--no-video", "--really-quiet", "--start=" + pos, "--speed=" + speed, path}
	}
}

func clampRate(r float64) float64 {
	switch {
	case r < MinRate:
		return MinRate
	case r > MaxRate:
		return MaxRate
	default:
		return r
	}
}
