package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/drivecast/internal/models"
	"github.com/desertthunder/drivecast/internal/session"
	"github.com/desertthunder/drivecast/internal/shared"
	"github.com/urfave/cli/v3"
)

// Play plays a story headlessly until interrupted or the story stops.
//
// With no folder flags it resumes the last session.
func (r *Runner) Play(ctx context.Context, cmd *cli.Command) error {
	lock, err := r.lock()
	if err != nil {
		return err
	}
	defer lock.Release()

	s, err := r.newSession(sessionOpts{audio: true})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go r.followEvents(ctx, s, cancel, func(e session.Event) bool { return e.Kind == session.EventEnded })

	if err := s.Start(ctx); err != nil {
		r.logger.Debug("no library opened at start", "error", err)
	}

	if rate := cmd.Float("speed"); rate > 0 {
		if _, err := s.SetSpeed(ctx, rate); err != nil {
			return err
		}
	}

	link, path, story := cmd.String("link"), cmd.String("path"), cmd.String("continue")
	switch {
	case story != "":
		if err := s.Continue(ctx, story); err != nil {
			return err
		}
		err = s.Play(ctx)
	case link != "" || path != "" || cmd.IsSet("item"):
		if err := r.openFolder(ctx, s, link, path); err != nil {
			return err
		}
		err = s.PlayItem(ctx, int(cmd.Int("item"))-1)
	default:
		if s.Playback().Total == 0 {
			return fmt.Errorf("%w: no saved session, pass --path, --link or --continue", shared.ErrNothingToPlay)
		}
		err = s.Play(ctx)
	}
	if err != nil {
		s.Shutdown()
		return err
	}

	if err := s.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Read prints a chapter from the saved paragraph onward, or narrates it with --narrate.
func (r *Runner) Read(ctx context.Context, cmd *cli.Command) error {
	narrate := cmd.Bool("narrate")

	lock, err := r.lock()
	if err != nil {
		return err
	}
	defer lock.Release()

	s, err := r.newSession(sessionOpts{narrator: narrate})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go r.followEvents(ctx, s, cancel, func(e session.Event) bool {
		active, ok := e.Data.(bool)
		return e.Kind == session.EventNarration && ok && !active
	})

	if err := s.Start(ctx); err != nil {
		r.logger.Debug("no library opened at start", "error", err)
	}

	link, path, story := cmd.String("link"), cmd.String("path"), cmd.String("continue")
	switch {
	case story != "":
		err = s.Continue(ctx, story)
	case link != "" || path != "" || cmd.IsSet("chapter"):
		if err = r.openFolder(ctx, s, link, path); err == nil {
			err = s.ReadChapter(ctx, int(cmd.Int("chapter"))-1)
		}
	default:
		if s.Mode() != models.ModeReader || !s.Reading().Loaded {
			err = fmt.Errorf("%w: no saved chapter, pass --path, --link or --continue", shared.ErrNothingToPlay)
		}
	}
	if err != nil {
		return err
	}

	if !narrate {
		defer s.Shutdown()
		return r.writeChapter(s.Reading())
	}

	if err := s.Narrate(ctx); err != nil {
		s.Shutdown()
		return err
	}
	if err := s.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (r *Runner) writeChapter(st session.ReaderStatus) error {
	if !st.Loaded {
		return fmt.Errorf("%w: no chapter open", shared.ErrNothingToPlay)
	}

	r.writePlainHeader(fmt.Sprintf("%s • %s (%d/%d)", st.Story.Name, st.Chapter.Title, st.Chapter.Index+1, st.Chapters))
	paragraphs := st.Chapter.Content.Paragraphs
	if len(paragraphs) == 0 {
		return r.writePlain("This chapter has no readable text.\n")
	}
	for i := st.Paragraph; i < len(paragraphs); i++ {
		if err := r.writePlain("\n%s\n", paragraphs[i]); err != nil {
			return err
		}
	}
	return nil
}

// followEvents logs session events until ctx is done, calling stop once done reports true.
func (r *Runner) followEvents(ctx context.Context, s *session.Session, stop context.CancelFunc, done func(session.Event) bool) {
	for {
		var e session.Event
		select {
		case <-ctx.Done():
			return
		case e = <-s.Events():
		}

		switch e.Kind {
		case session.EventError:
			r.logger.Error(e.Message)
		case session.EventTrack, session.EventChapter, session.EventRestored, session.EventEnded, session.EventAuth:
			r.logger.Info(e.Message)
		default:
			r.logger.Debug(e.Message, "event", e.Kind)
		}
		if done(e) {
			stop()
			return
		}
	}
}
