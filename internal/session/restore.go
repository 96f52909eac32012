package session

import (
	"context"
	"fmt"

	"github.com/desertthunder/drivecast/internal/auth"
	"github.com/desertthunder/drivecast/internal/models"
	"github.com/desertthunder/drivecast/internal/navigation"
	"github.com/desertthunder/drivecast/internal/services"
	"github.com/desertthunder/drivecast/internal/shared"
)

// Snapshot returns the progress of the active engine's story, or false when nothing is open.
func (s *Session) Snapshot() (models.StoryProgress, bool) {
	s.mu.Lock()
	mode, access := s.mode, s.accessLocked()
	audio, read, loaded := s.audioStory, s.readStory, s.loadedID
	s.mu.Unlock()

	p := models.StoryProgress{
		Mode:                mode,
		Access:              access.Access(),
		LastAccessedEpochMs: s.now().UnixMilli(),
	}

	switch mode {
	case models.ModeReader:
		pos := s.reader.Position()
		ch, ok := s.reader.Current()
		if read.ref.ID == "" || !ok {
			return models.StoryProgress{}, false
		}
		p.StoryID, p.StoryName, p.Navigation = read.ref.ID, read.ref.Name, read.nav
		p.CurrentIndex = pos.Chapter
		p.ParagraphIndex = pos.Paragraph
		p.TotalItems = s.reader.Len()
		p.CurrentItemName = ch.Title
	default:
		item, ok := s.playlist.Current()
		if audio.ref.ID == "" || !ok {
			return models.StoryProgress{}, false
		}
		p.StoryID, p.StoryName, p.Navigation = audio.ref.ID, audio.ref.Name, audio.nav
		p.CurrentIndex = s.playlist.Index()
		p.TotalItems = s.playlist.Len()
		p.CurrentItemName = item.DisplayName
		p.PositionSeconds = s.playlist.Position()
		if s.player != nil && loaded == item.ID {
			p.PositionSeconds = s.player.Position()
		}
	}
	return p, true
}

// Save persists the active story to the session slot and the history.
func (s *Session) Save() error {
	p, ok := s.Snapshot()
	if !ok {
		return nil
	}
	if err := s.progress.Save(p); err != nil {
		return s.fail("save progress", err)
	}
	s.mu.Lock()
	s.lastSave = s.now()
	s.mu.Unlock()
	return nil
}

// saveLocked is Save for callers that already serialize; failures are reported as events.
func (s *Session) saveLocked() {
	_ = s.Save()
}

// Restore rebuilds navigation, the folder listing and the active engine from p.
//
// Every component is rebuilt from p and fresh remote listings, so restoring the same snapshot twice
// gives the same state. Audio is positioned but not started.
func (s *Session) Restore(ctx context.Context, p models.StoryProgress) error {
	s.op.Lock()
	defer s.op.Unlock()

	if err := s.restoreLocked(ctx, p); err != nil {
		return s.fail("resume "+p.StoryName, err)
	}
	s.emit(restoredEvent(p))
	return nil
}

func (s *Session) restoreLocked(ctx context.Context, p models.StoryProgress) error {
	if !p.Valid() {
		return fmt.Errorf("%w: incomplete progress snapshot", shared.ErrInvalidArgument)
	}

	access := services.ModeFor(p.Access)
	public := access == services.Public
	if !public && (s.creds == nil || s.creds.State() != auth.SignedIn) {
		return fmt.Errorf("%w: %s needs a signed-in account", shared.ErrNotAuthenticated, p.StoryName)
	}

	nav := navigation.New(p.Navigation[0])
	if err := nav.Restore(p.Navigation); err != nil {
		return err
	}
	current := nav.Current()

	entries, err := s.list(ctx, current, access)
	if err != nil {
		return err
	}

	s.reader.Cancel()
	if s.player != nil {
		if err := s.player.Stop(); err != nil {
			s.logger.Warn("failed to stop player", "error", err)
		}
	}
	if public && s.creds != nil {
		s.creds.EnterPublic()
	}

	here := story{ref: current, nav: nav.Path()}
	s.mu.Lock()
	s.nav = nav
	s.public = public
	s.listing = newListing(nav, entries)
	s.loadedID = ""
	l := s.listing
	s.mu.Unlock()
	s.emit(listingEvent(l))

	switch p.Mode {
	case models.ModeReader:
		s.reader.BuildFrom(ctx, current.ID, access, entries)
		s.mu.Lock()
		s.mode = models.ModeReader
		s.readStory = here
		s.mu.Unlock()
		if _, err := s.reader.Restore(ctx, p.CurrentIndex, p.ParagraphIndex); err != nil {
			return err
		}
	default:
		s.playlist.BuildFrom(current.ID, access, entries)
		if _, ok := s.playlist.Select(p.CurrentIndex); !ok {
			s.logger.Warn("saved item no longer present", "story", p.StoryName, "index", p.CurrentIndex)
		} else {
			s.playlist.Seek(p.PositionSeconds)
		}
		s.mu.Lock()
		s.mode = models.ModeAudio
		s.audioStory = here
		s.mu.Unlock()
	}
	return nil
}

// History returns the saved stories, most recent first.
func (s *Session) History() []models.StoryProgress {
	return s.progress.History()
}

// Continue resumes storyID from the history.
func (s *Session) Continue(ctx context.Context, storyID string) error {
	p := s.progress.RestoreFromHistory(storyID)
	if p == nil {
		return s.fail("continue", fmt.Errorf("%w: no saved progress for %s", shared.ErrInvalidArgument, storyID))
	}
	return s.Restore(ctx, *p)
}

// Forget removes storyID from the history.
func (s *Session) Forget(storyID string) (bool, error) {
	return s.progress.RemoveFromHistory(storyID)
}
