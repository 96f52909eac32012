package reader

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/drivecast/internal/services"
	"github.com/desertthunder/drivecast/internal/shared"
	tu "github.com/desertthunder/drivecast/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNarrator struct {
	mu     sync.Mutex
	spoken []string
	rates  []float64
	block  chan struct{}
	err    error
}

func (n *recordingNarrator) Speak(ctx context.Context, text string, rate float64, voice string) error {
	n.mu.Lock()
	n.spoken = append(n.spoken, text)
	n.rates = append(n.rates, rate)
	block, err := n.block, n.err
	n.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (n *recordingNarrator) Spoken() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.spoken...)
}

func bookStore() *tu.FakeStore {
	store := tu.NewFakeStore()
	store.AddFile("book", "c10", "chapter10.json", "application/json", []byte(`{"content":["ten a"]}`))
	store.AddFile("book", "c2", "chapter2.json", "application/json", []byte(`{"text":"two a\n\n  two b  \n"}`))
	store.AddFile("book", "c1", "chapter1.json", "application/json", []byte(`{"content":["one a","one b"]}`))
	store.AddFile("book", "bad", "chapter3.json", "application/json", []byte(`{"pages":1}`))
	store.AddFile("book", "idx", "titles.json", "application/json", []byte(`{"1":"The Beginning","10":"The End"}`))
	store.AddFile("book", "a1", "1.mp3", "audio/mpeg", []byte("audio"))
	return store
}

func buildBook(t *testing.T, store *tu.FakeStore, opts Opts) *Engine {
	t.Helper()
	ctx := context.Background()
	entries, err := store.ListChildren(ctx, "book", services.Authenticated)
	require.NoError(t, err)

	opts.Store = store
	e := New(opts)
	require.Equal(t, 4, e.BuildFrom(ctx, "book", services.Authenticated, entries))
	return e
}

func TestParseContent(t *testing.T) {
	tests := []struct {
		name string
		data string
		kind ContentKind
		want []string
	}{
		{"paragraph array", `{"content":["a"," b ",""]}`, Paragraphs, []string{"a", "b"}},
		{"content string", `{"content":"a\n\nb\n"}`, Text, []string{"a", "b"}},
		{"text string", `{"title":"T","text":" x \n y"}`, Text, []string{"x", "y"}},
		{"content wins over text", `{"content":["a"],"text":"b"}`, Paragraphs, []string{"a"}},
		{"numeric content", `{"content":42}`, Empty, nil},
		{"no known field", `{"body":"x"}`, Empty, nil},
		{"invalid json", `{not json`, Empty, nil},
		{"top level array", `["a","b"]`, Empty, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := ParseContent([]byte(tt.data))
			assert.Equal(t, tt.kind, c.Kind)
			assert.Equal(t, len(tt.want), c.Len())
			if len(tt.want) > 0 {
				assert.Equal(t, tt.want, c.Paragraphs)
			}
			assert.Equal(t, tt.kind == Empty, c.Malformed())
		})
	}
}

func TestParseTitleIndex(t *testing.T) {
	t.Run("object form", func(t *testing.T) {
		titles, err := ParseTitleIndex([]byte(`{"1":"One"," 2 ":"Two","x":"skip"}`))
		require.NoError(t, err)
		assert.Equal(t, map[int]string{1: "One", 2: "Two"}, titles)
	})

	t.Run("array form", func(t *testing.T) {
		titles, err := ParseTitleIndex([]byte(`[{"chapter":1,"title":"One"},{"chapter":"ch-3","title":"Three"},{"chapter":4}]`))
		require.NoError(t, err)
		assert.Equal(t, map[int]string{1: "One", 3: "Three"}, titles)
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := ParseTitleIndex([]byte(`"nope"`))
		assert.ErrorIs(t, err, shared.ErrMalformedContent)
	})
}

func TestChapterNumber(t *testing.T) {
	n, ok := ChapterNumber("part 07 - 12.json")
	assert.True(t, ok)
	assert.Equal(t, 7, n)

	_, ok = ChapterNumber("prologue.json")
	assert.False(t, ok)
}

func TestBuildFrom(t *testing.T) {
	e := buildBook(t, bookStore(), Opts{})

	chapters := e.Chapters()
	ids := make([]string, len(chapters))
	titles := make([]string, len(chapters))
	for i, c := range chapters {
		ids[i] = c.ID
		titles[i] = c.Title
	}

	assert.Equal(t, []string{"c1", "c2", "bad", "c10"}, ids, "title index excluded, natural order")
	assert.Equal(t, []string{"The Beginning", "chapter2", "chapter3", "The End"}, titles)
	assert.Equal(t, -1, e.Position().Chapter)

	t.Run("unreadable title index keeps filenames", func(t *testing.T) {
		store := bookStore()
		store.FailOn("idx", errors.New("boom"))
		e := buildBook(t, store, Opts{})
		assert.Equal(t, "chapter1", e.Chapters()[0].Title)
	})
}

func TestLoadChapter(t *testing.T) {
	ctx := context.Background()

	t.Run("loads and resets paragraph", func(t *testing.T) {
		var positions []Position
		e := buildBook(t, bookStore(), Opts{OnProgress: func(p Position) { positions = append(positions, p) }})

		ch, err := e.LoadChapter(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"one a", "one b"}, ch.Content.Paragraphs)
		assert.Equal(t, 0, e.ParagraphIndex())

		text, ok := e.Paragraph()
		assert.True(t, ok)
		assert.Equal(t, "one a", text)
		assert.Equal(t, []Position{{Chapter: 0, Paragraph: 0}}, positions)
	})

	t.Run("malformed chapter is empty without error", func(t *testing.T) {
		e := buildBook(t, bookStore(), Opts{})
		ch, err := e.LoadChapter(ctx, 2)
		require.NoError(t, err)
		assert.True(t, ch.Content.Malformed())
		assert.Equal(t, 0, ch.Content.Len())

		_, ok := e.Paragraph()
		assert.False(t, ok)
	})

	t.Run("out of range", func(t *testing.T) {
		e := buildBook(t, bookStore(), Opts{})
		_, err := e.LoadChapter(ctx, 4)
		assert.ErrorIs(t, err, shared.ErrInvalidArgument)
	})

	t.Run("fetch failure", func(t *testing.T) {
		store := bookStore()
		store.FailOn("c1", errors.New("network down"))
		e := buildBook(t, store, Opts{})

		_, err := e.LoadChapter(ctx, 0)
		assert.ErrorIs(t, err, shared.ErrPlaybackFetch)
		_, loaded := e.Current()
		assert.False(t, loaded)
	})
}

func TestParagraphNavigation(t *testing.T) {
	ctx := context.Background()
	e := buildBook(t, bookStore(), Opts{})

	_, err := e.Restore(ctx, 0, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, e.ParagraphIndex(), "seek clamps to last paragraph")

	assert.False(t, e.NextParagraph())
	assert.True(t, e.PrevParagraph())
	assert.False(t, e.PrevParagraph())

	t.Run("advance crosses chapters", func(t *testing.T) {
		e.SeekParagraph(1)
		ok, err := e.Advance(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, Position{Chapter: 1, Paragraph: 0}, e.Position())
	})

	t.Run("retreat lands on last paragraph", func(t *testing.T) {
		ok, err := e.Retreat(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, Position{Chapter: 0, Paragraph: 1}, e.Position())
	})

	t.Run("advance stops at the end", func(t *testing.T) {
		_, err := e.LoadChapter(ctx, 3)
		require.NoError(t, err)
		ok, err := e.Advance(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestNarrate(t *testing.T) {
	ctx := context.Background()

	t.Run("requires a narrator", func(t *testing.T) {
		e := buildBook(t, bookStore(), Opts{})
		assert.ErrorIs(t, e.Narrate(ctx), shared.ErrNotImplemented)
	})

	t.Run("requires a chapter", func(t *testing.T) {
		e := buildBook(t, bookStore(), Opts{Narrator: &recordingNarrator{}})
		assert.ErrorIs(t, e.Narrate(ctx), shared.ErrNothingToPlay)
	})

	t.Run("stops at chapter end without auto-advance", func(t *testing.T) {
		n := &recordingNarrator{}
		stopped := make(chan error, 1)
		e := buildBook(t, bookStore(), Opts{Narrator: n, Rate: 1.5, OnStop: func(err error) { stopped <- err }})
		_, err := e.LoadChapter(ctx, 0)
		require.NoError(t, err)

		require.NoError(t, e.Narrate(ctx))
		select {
		case err := <-stopped:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("narration did not finish")
		}

		assert.Equal(t, []string{"one a", "one b"}, n.Spoken())
		assert.Equal(t, 0, e.Position().Chapter)
		assert.False(t, e.Narrating())
	})

	t.Run("auto-advance continues into next chapters", func(t *testing.T) {
		n := &recordingNarrator{}
		stopped := make(chan error, 1)
		e := buildBook(t, bookStore(), Opts{Narrator: n, OnStop: func(err error) { stopped <- err }})
		e.SetAutoAdvance(true)
		_, err := e.LoadChapter(ctx, 0)
		require.NoError(t, err)

		require.NoError(t, e.Narrate(ctx))
		select {
		case err := <-stopped:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("narration did not finish")
		}

		assert.Equal(t, []string{"one a", "one b", "two a", "two b", "ten a"}, n.Spoken())
		assert.Equal(t, 3, e.Position().Chapter)
	})

	t.Run("cancel stops a blocked paragraph", func(t *testing.T) {
		n := &recordingNarrator{block: make(chan struct{})}
		called := false
		e := buildBook(t, bookStore(), Opts{Narrator: n, OnStop: func(error) { called = true }})
		_, err := e.LoadChapter(ctx, 0)
		require.NoError(t, err)

		require.NoError(t, e.Narrate(ctx))
		assert.True(t, e.Narrating())
		e.Cancel()

		assert.False(t, e.Narrating())
		assert.Equal(t, 0, e.ParagraphIndex())
		assert.False(t, called, "cancelled runs do not report a stop")
	})

	t.Run("narrator error is reported", func(t *testing.T) {
		n := &recordingNarrator{err: errors.New("tts missing")}
		stopped := make(chan error, 1)
		e := buildBook(t, bookStore(), Opts{Narrator: n, OnStop: func(err error) { stopped <- err }})
		_, err := e.LoadChapter(ctx, 0)
		require.NoError(t, err)

		require.NoError(t, e.Narrate(ctx))
		select {
		case err := <-stopped:
			assert.EqualError(t, err, "tts missing")
		case <-time.After(2 * time.Second):
			t.Fatal("narration did not stop")
		}
	})
}

func TestSetNarrationClampsRate(t *testing.T) {
	e := New(Opts{})
	e.SetNarration(9, "en")
	assert.Equal(t, MaxRate, e.Rate())
	e.SetNarration(0.1, "en")
	assert.Equal(t, MinRate, e.Rate())
}
