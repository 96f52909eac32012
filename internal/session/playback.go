package session

import (
	"context"
	"fmt"

	"github.com/desertthunder/drivecast/internal/models"
	"github.com/desertthunder/drivecast/internal/player"
	"github.com/desertthunder/drivecast/internal/playlist"
	"github.com/desertthunder/drivecast/internal/shared"
)

// PlaybackStatus is a snapshot of the audio engine.
type PlaybackStatus struct {
	Story       models.FolderRef
	Item        playlist.Item
	Index       int
	Total       int
	Position    float64
	Duration    float64
	Rate        float64
	Playing     bool
	AutoAdvance bool
}

// Playback returns the audio engine snapshot.
func (s *Session) Playback() PlaybackStatus {
	s.mu.Lock()
	st := PlaybackStatus{Story: s.audioStory.ref, AutoAdvance: s.autoAdvance}
	loaded := s.loadedID
	s.mu.Unlock()

	st.Item, _ = s.playlist.Current()
	st.Index = s.playlist.Index()
	st.Total = s.playlist.Len()
	st.Rate = s.playlist.Rate()
	st.Position = s.playlist.Position()
	if s.player != nil && loaded != "" && loaded == st.Item.ID {
		st.Position = s.player.Position()
		st.Duration = s.player.Duration()
		st.Playing = s.player.Playing()
	}
	return st
}

// Items returns the playlist.
func (s *Session) Items() []playlist.Item {
	return s.playlist.Items()
}

// PlayItem starts the i-th audio entry of the current folder, rebuilding the playlist when it was
// built from another folder. An index outside the playlist is ignored.
func (s *Session) PlayItem(ctx context.Context, i int) error {
	s.op.Lock()
	defer s.op.Unlock()

	if err := s.ensureAudioLocked(); err != nil {
		return s.fail("play", err)
	}
	if _, ok := s.playlist.Select(i); !ok {
		return nil
	}
	return s.startCurrentLocked(ctx, 0)
}

// ensureAudioLocked activates the audio engine and builds the playlist from the current folder unless
// it already holds it.
func (s *Session) ensureAudioLocked() error {
	st, l, access, err := s.storyHere()
	if err != nil {
		return err
	}

	source, mode := s.playlist.Source()
	if source == st.ref.ID && mode == access && s.playlist.Len() > 0 {
		s.switchModeLocked(models.ModeAudio)
		return nil
	}
	// The live playlist stays untouched when this folder has nothing to replace it with.
	if len(models.Audio(l.entries)) == 0 {
		return fmt.Errorf("%w: %s has no audio", shared.ErrNothingToPlay, st.ref.Name)
	}
	s.switchModeLocked(models.ModeAudio)
	s.playlist.BuildFrom(st.ref.ID, access, l.entries)

	s.mu.Lock()
	s.audioStory = st
	s.loadedID = ""
	s.mu.Unlock()
	return nil
}

// startCurrentLocked loads the current item into the player and plays it from position.
// A fetch failure halts playback; it is reported, not retried.
func (s *Session) startCurrentLocked(ctx context.Context, position float64) error {
	item, ok := s.playlist.Current()
	if !ok {
		return s.fail("play", shared.ErrNothingToPlay)
	}
	if s.player == nil {
		return s.fail("play", fmt.Errorf("%w: no audio output configured", shared.ErrNotImplemented))
	}

	data, err := s.playlist.CurrentContent(ctx)
	if err != nil {
		_ = s.player.Stop()
		s.mu.Lock()
		s.loadedID = ""
		s.mu.Unlock()
		return s.fail("play "+item.DisplayName, err)
	}

	info, err := s.player.Load(ctx, player.Track{ID: item.ID, Name: item.Name, Data: data})
	if err != nil {
		return s.fail("play "+item.DisplayName, err)
	}
	s.mu.Lock()
	s.loadedID = item.ID
	s.mu.Unlock()

	if err := s.player.SetRate(s.playlist.Rate()); err != nil {
		return s.fail("play "+item.DisplayName, err)
	}
	if err := s.player.Seek(position); err != nil {
		return s.fail("play "+item.DisplayName, err)
	}
	s.playlist.Seek(position)
	if err := s.player.Play(s.playCtx(ctx)); err != nil {
		return s.fail("play "+item.DisplayName, err)
	}

	s.saveLocked()
	s.emit(trackEvent(s.playlist.Index(), s.playlist.Len(), info.Title))
	return nil
}

// Play resumes the current item, loading it first when the player holds something else.
func (s *Session) Play(ctx context.Context) error {
	s.op.Lock()
	defer s.op.Unlock()

	if s.Mode() != models.ModeAudio {
		s.switchModeLocked(models.ModeAudio)
	}
	item, ok := s.playlist.Current()
	if !ok {
		return s.fail("play", shared.ErrNothingToPlay)
	}

	s.mu.Lock()
	loaded := s.loadedID == item.ID
	s.mu.Unlock()

	if !loaded {
		return s.startCurrentLocked(ctx, s.playlist.Position())
	}
	if err := s.player.Play(s.playCtx(ctx)); err != nil {
		return s.fail("play "+item.DisplayName, err)
	}
	s.emit(playbackEvent("Playing " + item.DisplayName))
	return nil
}

// Pause pauses audio and saves the position.
func (s *Session) Pause(ctx context.Context) error {
	s.op.Lock()
	defer s.op.Unlock()

	if s.player == nil || !s.player.Playing() {
		return nil
	}
	if err := s.player.Pause(); err != nil {
		return s.fail("pause", err)
	}
	s.playlist.Seek(s.player.Position())
	s.saveLocked()
	s.emit(playbackEvent("Paused"))
	return nil
}

// TogglePlay pauses when playing and plays otherwise.
func (s *Session) TogglePlay(ctx context.Context) error {
	if s.player != nil && s.player.Playing() {
		return s.Pause(ctx)
	}
	return s.Play(ctx)
}

// Next plays the following item; a no-op at the last item.
func (s *Session) Next(ctx context.Context) error {
	s.op.Lock()
	defer s.op.Unlock()

	if !s.playlist.Advance() {
		return nil
	}
	return s.startCurrentLocked(ctx, 0)
}

// Prev plays the preceding item; a no-op at the first item.
func (s *Session) Prev(ctx context.Context) error {
	s.op.Lock()
	defer s.op.Unlock()

	if !s.playlist.Retreat() {
		return nil
	}
	return s.startCurrentLocked(ctx, 0)
}

// Seek moves within the current item.
func (s *Session) Seek(ctx context.Context, seconds float64) error {
	s.op.Lock()
	defer s.op.Unlock()

	s.playlist.Seek(seconds)
	s.mu.Lock()
	loaded := s.loadedID != ""
	s.mu.Unlock()
	if loaded {
		if err := s.player.Seek(seconds); err != nil {
			return s.fail("seek", err)
		}
	}
	s.saveLocked()
	return nil
}

// SetSpeed changes and persists the playback speed. Returns the clamped rate.
func (s *Session) SetSpeed(ctx context.Context, rate float64) (float64, error) {
	s.op.Lock()
	defer s.op.Unlock()

	rate = s.playlist.SetRate(rate)
	if s.player != nil {
		if err := s.player.SetRate(rate); err != nil {
			return rate, s.fail("set speed", err)
		}
	}
	if err := s.progress.SetSpeed(rate); err != nil {
		s.logger.Warn("failed to persist speed", "error", err)
	}
	s.emit(playbackEvent(fmt.Sprintf("Speed %.2fx", rate)))
	return rate, nil
}

// ToggleAutoAdvance flips and persists auto-advance for both engines. Returns the new value.
func (s *Session) ToggleAutoAdvance() bool {
	s.op.Lock()
	defer s.op.Unlock()

	s.mu.Lock()
	s.autoAdvance = !s.autoAdvance
	on := s.autoAdvance
	s.mu.Unlock()

	s.reader.SetAutoAdvance(on)
	if err := s.progress.SetAutoAdvance(on); err != nil {
		s.logger.Warn("failed to persist auto-advance", "error", err)
	}
	if on {
		s.emit(playbackEvent("Auto-advance on"))
	} else {
		s.emit(playbackEvent("Auto-advance off"))
	}
	return on
}

// Tick feeds the player position to the prefetcher and saves at most every save interval.
func (s *Session) Tick(ctx context.Context) {
	s.op.Lock()
	defer s.op.Unlock()

	if s.Mode() != models.ModeAudio || s.player == nil || !s.player.Playing() {
		return
	}

	s.mu.Lock()
	auto := s.autoAdvance
	due := s.now().Sub(s.lastSave) >= s.saveEvery
	s.mu.Unlock()

	s.playlist.Tick(ctx, s.player.Position(), s.player.Duration(), auto)
	if due {
		s.saveLocked()
	}
}

func (s *Session) handleEnded(ctx context.Context, e player.Ended) {
	s.op.Lock()
	defer s.op.Unlock()

	s.mu.Lock()
	current := s.loadedID == e.TrackID
	auto := s.autoAdvance
	s.mu.Unlock()
	if !current {
		return
	}

	if e.Err != nil {
		s.playlist.Seek(s.player.Position())
		s.saveLocked()
		s.emit(errorEvent("playback", e.Err))
		return
	}

	item, _ := s.playlist.Current()
	if auto && s.playlist.Advance() {
		_ = s.startCurrentLocked(ctx, 0)
		return
	}

	s.playlist.Seek(s.player.Position())
	s.saveLocked()
	s.emit(endedEvent(item.DisplayName))
}
