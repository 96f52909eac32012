package reader

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/drivecast/internal/models"
	"github.com/desertthunder/drivecast/internal/services"
	"github.com/desertthunder/drivecast/internal/shared"
)

const (
	DefaultTitleIndex = "titles.json"

	MinRate     = 0.5
	MaxRate     = 3.0
	DefaultRate = 1.0
)

// Narrator speaks a single paragraph and returns when it is done or ctx is cancelled.
type Narrator interface {
	Speak(ctx context.Context, text string, rate float64, voice string) error
}

// Chapter is one text entry of the current folder.
type Chapter struct {
	Index   int
	ID      string
	Name    string
	Title   string
	Content Content
}

// Position locates the reader within the chapter list.
type Position struct {
	Chapter   int
	Paragraph int
}

// Opts configures an [Engine].
type Opts struct {
	Store      services.Store
	Narrator   Narrator
	TitleIndex string // filename of the title index document
	Rate       float64
	Voice      string
	Logger     *log.Logger

	// OnProgress is called after every paragraph or chapter change. It runs on the narration goroutine
	// while narrating and must not call [Engine.Cancel].
	OnProgress func(Position)
	// OnStop is called when a narration run ends; err is nil when it ran to the end.
	OnStop func(err error)
}

// Engine paginates the text chapters of one folder.
type Engine struct {
	mu         sync.Mutex
	store      services.Store
	narrator   Narrator
	titleIndex string
	logger     *log.Logger
	onProgress func(Position)
	onStop     func(error)

	sourceID    string
	mode        services.AuthMode
	chapters    []Chapter
	titles      map[int]string
	current     *Chapter
	paragraph   int
	autoAdvance bool
	rate        float64
	voice       string

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates an empty engine.
func New(opts Opts) *Engine {
	if opts.TitleIndex == "" {
		opts.TitleIndex = DefaultTitleIndex
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Rate == 0 {
		opts.Rate = DefaultRate
	}
	return &Engine{
		store:      opts.Store,
		narrator:   opts.Narrator,
		titleIndex: opts.TitleIndex,
		logger:     opts.Logger,
		onProgress: opts.OnProgress,
		onStop:     opts.OnStop,
		rate:       clampRate(opts.Rate),
		voice:      opts.Voice,
		titles:     map[int]string{},
	}
}

// BuildFrom replaces the chapter list with the text entries of sourceID.
//
// The title index document, when present, is fetched and applied; a failure to read it only loses
// the titles. Returns the number of chapters.
func (e *Engine) BuildFrom(ctx context.Context, sourceID string, mode services.AuthMode, entries []models.RemoteEntry) int {
	var index *models.RemoteEntry
	texts := make([]models.RemoteEntry, 0, len(entries))
	for _, t := range models.Texts(entries) {
		if strings.EqualFold(t.Name, e.titleIndex) {
			index = &t
			continue
		}
		texts = append(texts, t)
	}
	models.SortNatural(texts)

	titles := map[int]string{}
	if index != nil && e.store != nil {
		data, err := e.store.FetchContent(ctx, index.ID, mode)
		if err != nil {
			e.logger.Warn("failed to fetch title index", "folder", sourceID, "error", err)
		} else if titles, err = ParseTitleIndex(data); err != nil {
			e.logger.Warn("ignoring title index", "folder", sourceID, "error", err)
			titles = map[int]string{}
		}
	}

	chapters := make([]Chapter, len(texts))
	for i, t := range texts {
		chapters[i] = Chapter{Index: i, ID: t.ID, Name: t.Name, Title: chapterTitle(t.Name, titles)}
	}

	e.Cancel()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.sourceID = sourceID
	e.mode = mode
	e.chapters = chapters
	e.titles = titles
	e.current = nil
	e.paragraph = 0

	e.logger.Debug("chapters built", "source", sourceID, "chapters", len(chapters), "titles", len(titles))
	return len(chapters)
}

func chapterTitle(name string, titles map[int]string) string {
	if n, ok := ChapterNumber(name); ok {
		if t, ok := titles[n]; ok {
			return t
		}
	}
	return baseTitle(name)
}

// Source returns the folder the chapters were built from.
func (e *Engine) Source() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sourceID
}

// Chapters returns a copy of the chapter list without content.
func (e *Engine) Chapters() []Chapter {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Chapter(nil), e.chapters...)
}

func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.chapters)
}

// Current returns the loaded chapter.
func (e *Engine) Current() (Chapter, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return Chapter{}, false
	}
	return *e.current, true
}

// Position returns the current chapter and paragraph index.
func (e *Engine) Position() Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.positionLocked()
}

// ParagraphIndex is the index of the current paragraph within the loaded chapter.
func (e *Engine) ParagraphIndex() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paragraph
}

func (e *Engine) positionLocked() Position {
	p := Position{Chapter: -1, Paragraph: e.paragraph}
	if e.current != nil {
		p.Chapter = e.current.Index
	}
	return p
}

// LoadChapter fetches and parses chapter i and moves to its first paragraph.
//
// A document without usable content loads as an empty chapter; it is logged, not returned as an error.
func (e *Engine) LoadChapter(ctx context.Context, i int) (Chapter, error) {
	e.mu.Lock()
	if i < 0 || i >= len(e.chapters) {
		n := len(e.chapters)
		e.mu.Unlock()
		return Chapter{}, fmt.Errorf("%w: chapter %d out of range [0,%d)", shared.ErrInvalidArgument, i, n)
	}
	ch := e.chapters[i]
	mode := e.mode
	e.mu.Unlock()

	data, err := e.store.FetchContent(ctx, ch.ID, mode)
	if err != nil {
		return Chapter{}, fmt.Errorf("%w: %s: %w", shared.ErrPlaybackFetch, ch.Name, err)
	}

	ch.Content = ParseContent(data)
	if ch.Content.Malformed() {
		e.logger.Warn("chapter has no readable content", "chapter", ch.Name, "error", shared.ErrMalformedContent)
	}

	e.mu.Lock()
	if i >= len(e.chapters) || e.chapters[i].ID != ch.ID {
		e.mu.Unlock()
		return Chapter{}, fmt.Errorf("%w: chapter list changed while loading %s", shared.ErrInvalidArgument, ch.Name)
	}
	e.current = &ch
	e.paragraph = 0
	pos := e.positionLocked()
	e.mu.Unlock()

	e.notify(pos)
	return ch, nil
}

// Restore loads chapter i and seeks to paragraph p.
func (e *Engine) Restore(ctx context.Context, i, p int) (Chapter, error) {
	ch, err := e.LoadChapter(ctx, i)
	if err != nil {
		return Chapter{}, err
	}
	e.SeekParagraph(p)
	return ch, nil
}

// SeekParagraph moves to paragraph p, clamped to the loaded chapter.
func (e *Engine) SeekParagraph(p int) {
	e.mu.Lock()
	if e.current == nil {
		e.mu.Unlock()
		return
	}
	e.paragraph = clampParagraph(p, e.current.Content.Len())
	pos := e.positionLocked()
	e.mu.Unlock()

	e.notify(pos)
}

func clampParagraph(p, n int) int {
	if p >= n {
		p = n - 1
	}
	if p < 0 {
		p = 0
	}
	return p
}

// Paragraph returns the text of the current paragraph.
func (e *Engine) Paragraph() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil || e.paragraph >= e.current.Content.Len() {
		return "", false
	}
	return e.current.Content.Paragraphs[e.paragraph], true
}

// HasNextChapter reports whether a chapter follows the loaded one.
func (e *Engine) HasNextChapter() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current != nil && e.current.Index+1 < len(e.chapters)
}

// NextParagraph moves within the loaded chapter; it returns false at the last paragraph.
func (e *Engine) NextParagraph() bool {
	e.mu.Lock()
	if e.current == nil || e.paragraph+1 >= e.current.Content.Len() {
		e.mu.Unlock()
		return false
	}
	e.paragraph++
	pos := e.positionLocked()
	e.mu.Unlock()

	e.notify(pos)
	return true
}

// PrevParagraph moves back within the loaded chapter; it returns false at the first paragraph.
func (e *Engine) PrevParagraph() bool {
	e.mu.Lock()
	if e.current == nil || e.paragraph == 0 {
		e.mu.Unlock()
		return false
	}
	e.paragraph--
	pos := e.positionLocked()
	e.mu.Unlock()

	e.notify(pos)
	return true
}

// Advance moves to the next paragraph, or to the first paragraph of the next chapter at the end of
// the loaded one. It returns false when there is nowhere to go.
func (e *Engine) Advance(ctx context.Context) (bool, error) {
	if e.NextParagraph() {
		return true, nil
	}
	if !e.HasNextChapter() {
		return false, nil
	}
	next := e.Position().Chapter + 1
	if _, err := e.LoadChapter(ctx, next); err != nil {
		return false, err
	}
	return true, nil
}

// Retreat moves to the previous paragraph, or to the last paragraph of the previous chapter.
func (e *Engine) Retreat(ctx context.Context) (bool, error) {
	if e.PrevParagraph() {
		return true, nil
	}
	prev := e.Position().Chapter - 1
	if prev < 0 {
		return false, nil
	}
	ch, err := e.LoadChapter(ctx, prev)
	if err != nil {
		return false, err
	}
	e.SeekParagraph(ch.Content.Len() - 1)
	return true, nil
}

func (e *Engine) AutoAdvance() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.autoAdvance
}

func (e *Engine) SetAutoAdvance(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.autoAdvance = on
}

// Rate is the narration speed multiplier.
func (e *Engine) Rate() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rate
}

// SetNarration updates the speed and voice used from the next paragraph on.
func (e *Engine) SetNarration(rate float64, voice string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rate = clampRate(rate)
	e.voice = voice
}

// Narrating reports whether a narration run is active.
func (e *Engine) Narrating() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancel != nil
}

// Narrate starts speaking from the current paragraph. A running narration is cancelled first.
func (e *Engine) Narrate(ctx context.Context) error {
	if e.narrator == nil {
		return fmt.Errorf("%w: no narration engine configured", shared.ErrNotImplemented)
	}
	e.Cancel()

	e.mu.Lock()
	if e.current == nil {
		e.mu.Unlock()
		return fmt.Errorf("%w: no chapter loaded", shared.ErrNothingToPlay)
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	e.cancel = cancel
	e.done = done
	e.mu.Unlock()

	go e.narrate(runCtx, done)
	return nil
}

// Cancel stops narration and waits for the run to exit.
func (e *Engine) Cancel() {
	e.mu.Lock()
	cancel, done := e.cancel, e.done
	e.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (e *Engine) narrate(ctx context.Context, done chan struct{}) {
	err := e.narrateLoop(ctx)
	cancelled := ctx.Err() != nil

	e.mu.Lock()
	if e.done == done {
		e.cancel()
		e.cancel = nil
		e.done = nil
	}
	e.mu.Unlock()
	close(done)

	if cancelled {
		return
	}
	if e.onStop != nil {
		e.onStop(err)
	}
}

func (e *Engine) narrateLoop(ctx context.Context) error {
	for {
		if text, ok := e.Paragraph(); ok {
			e.mu.Lock()
			rate, voice := e.rate, e.voice
			e.mu.Unlock()

			if err := e.narrator.Speak(ctx, text, rate, voice); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				e.logger.Error("narration failed", "error", err)
				return err
			}
		}
		if ctx.Err() != nil {
			return nil
		}

		if e.NextParagraph() {
			continue
		}
		if !e.AutoAdvance() || !e.HasNextChapter() {
			return nil
		}
		if _, err := e.Advance(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			e.logger.Error("failed to load next chapter", "error", err)
			return err
		}
	}
}

func (e *Engine) notify(pos Position) {
	if e.onProgress != nil {
		e.onProgress(pos)
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
