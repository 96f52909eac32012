package session

import (
	"context"
	"fmt"

	"github.com/desertthunder/drivecast/internal/models"
	"github.com/desertthunder/drivecast/internal/progress"
	"github.com/desertthunder/drivecast/internal/reader"
	"github.com/desertthunder/drivecast/internal/shared"
)

// ReaderStatus is a snapshot of the text engine.
type ReaderStatus struct {
	Story     models.FolderRef
	Chapter   reader.Chapter
	Loaded    bool
	Chapters  int
	Paragraph int
	Text      string
	Narrating bool
}

// Reading returns the text engine snapshot.
func (s *Session) Reading() ReaderStatus {
	s.mu.Lock()
	st := ReaderStatus{Story: s.readStory.ref}
	s.mu.Unlock()

	st.Chapter, st.Loaded = s.reader.Current()
	st.Chapters = s.reader.Len()
	st.Paragraph = s.reader.ParagraphIndex()
	st.Text, _ = s.reader.Paragraph()
	st.Narrating = s.reader.Narrating()
	return st
}

// Chapters returns the chapter list of the text engine.
func (s *Session) Chapters() []reader.Chapter {
	return s.reader.Chapters()
}

// ReadChapter opens the i-th chapter of the current folder in the text engine, building the chapter
// list when it was built from another folder.
func (s *Session) ReadChapter(ctx context.Context, i int) error {
	s.op.Lock()
	defer s.op.Unlock()

	if err := s.ensureReaderLocked(ctx); err != nil {
		return s.fail("read", err)
	}
	return s.loadChapterLocked(ctx, i, 0)
}

func (s *Session) ensureReaderLocked(ctx context.Context) error {
	st, l, access, err := s.storyHere()
	if err != nil {
		return err
	}
	if len(models.Texts(l.entries)) == 0 {
		return fmt.Errorf("%w: %s has no chapters", shared.ErrNothingToPlay, st.ref.Name)
	}
	s.switchModeLocked(models.ModeReader)

	if s.reader.Source() == st.ref.ID && s.reader.Len() > 0 {
		return nil
	}
	if s.reader.BuildFrom(ctx, st.ref.ID, access, l.entries) == 0 {
		return fmt.Errorf("%w: %s has no chapters", shared.ErrNothingToPlay, st.ref.Name)
	}

	s.mu.Lock()
	s.readStory = st
	s.mu.Unlock()
	return nil
}

func (s *Session) loadChapterLocked(ctx context.Context, i, paragraph int) error {
	ch, err := s.reader.Restore(ctx, i, paragraph)
	if err != nil {
		return s.fail("read chapter", err)
	}
	s.saveLocked()
	s.emit(chapterEvent(ch.Index, s.reader.Len(), ch.Title, ch.Content.Malformed()))
	return nil
}

// NextParagraph moves forward, crossing into the next chapter at the end of the current one.
func (s *Session) NextParagraph(ctx context.Context) error {
	s.op.Lock()
	defer s.op.Unlock()

	if _, err := s.reader.Advance(ctx); err != nil {
		return s.fail("next paragraph", err)
	}
	return nil
}

// PrevParagraph moves back, crossing into the previous chapter at the start of the current one.
func (s *Session) PrevParagraph(ctx context.Context) error {
	s.op.Lock()
	defer s.op.Unlock()

	if _, err := s.reader.Retreat(ctx); err != nil {
		return s.fail("previous paragraph", err)
	}
	return nil
}

// NextChapter opens the following chapter at its first paragraph.
func (s *Session) NextChapter(ctx context.Context) error {
	s.op.Lock()
	defer s.op.Unlock()

	if !s.reader.HasNextChapter() {
		return nil
	}
	return s.loadChapterLocked(ctx, s.reader.Position().Chapter+1, 0)
}

// PrevChapter opens the preceding chapter at its first paragraph.
func (s *Session) PrevChapter(ctx context.Context) error {
	s.op.Lock()
	defer s.op.Unlock()

	prev := s.reader.Position().Chapter - 1
	if prev < 0 {
		return nil
	}
	return s.loadChapterLocked(ctx, prev, 0)
}

// Narrate speaks the loaded chapter from the current paragraph.
func (s *Session) Narrate(ctx context.Context) error {
	s.op.Lock()
	defer s.op.Unlock()

	if s.Mode() != models.ModeReader {
		s.switchModeLocked(models.ModeReader)
	}
	if err := s.reader.Narrate(s.playCtx(ctx)); err != nil {
		return s.fail("narrate", err)
	}
	s.emit(narrationEvent(true))
	return nil
}

// StopNarration cancels narration and saves the paragraph position.
func (s *Session) StopNarration() {
	s.op.Lock()
	defer s.op.Unlock()

	if !s.reader.Narrating() {
		return
	}
	s.reader.Cancel()
	s.saveLocked()
	s.emit(narrationEvent(false))
}

// SetNarration changes and persists the narration speed and voice.
func (s *Session) SetNarration(rate float64, voice string) {
	s.op.Lock()
	defer s.op.Unlock()

	s.reader.SetNarration(rate, voice)
	if err := s.progress.SetNarration(progress.Narration{Rate: s.reader.Rate(), Voice: voice}); err != nil {
		s.logger.Warn("failed to persist narration settings", "error", err)
	}
}

// onReaderProgress runs on every paragraph or chapter change, possibly on the narration goroutine.
// It must not take the action lock.
func (s *Session) onReaderProgress(pos reader.Position) {
	if s.Mode() != models.ModeReader {
		return
	}
	s.saveLocked()
	s.emit(paragraphEvent(pos.Chapter, pos.Paragraph))
}

func (s *Session) onNarrationStop(err error) {
	if err != nil {
		s.emit(errorEvent("narration", err))
	}
	s.emit(narrationEvent(false))
}
