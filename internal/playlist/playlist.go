package playlist

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/drivecast/internal/models"
	"github.com/desertthunder/drivecast/internal/services"
	"github.com/desertthunder/drivecast/internal/shared"
)

const (
	DefaultPrefetchWindow = 10 * time.Second

	MinRate = 0.5
	MaxRate = 3.0
)

// Item is one playable entry.
type Item struct {
	ID          string
	Name        string
	DisplayName string
	SizeBytes   int64
}

// Opts configures an [Engine].
type Opts struct {
	Store          services.Store
	PrefetchWindow time.Duration // remaining time at which the next item is prefetched
	Rate           float64
	Logger         *log.Logger
}

type call struct {
	done chan struct{}
	data []byte
	err  error
}

// Engine holds the ordered items of one folder, the current position and the content cache.
type Engine struct {
	mu     sync.Mutex
	store  services.Store
	logger *log.Logger
	window time.Duration

	sourceID string
	mode     services.AuthMode
	items    []Item
	index    int
	position float64
	rate     float64

	cache     map[string][]byte
	attempted map[string]bool
	inflight  map[string]*call
	prefetch  sync.WaitGroup
}

// New creates an empty engine.
func New(opts Opts) *Engine {
	if opts.PrefetchWindow <= 0 {
		opts.PrefetchWindow = DefaultPrefetchWindow
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	return &Engine{
		store:     opts.Store,
		logger:    opts.Logger,
		window:    opts.PrefetchWindow,
		rate:      clampRate(opts.Rate),
		cache:     make(map[string][]byte),
		attempted: make(map[string]bool),
		inflight:  make(map[string]*call),
	}
}

// BuildFrom replaces the playlist with the audio entries of sourceID, sorted naturally.
//
// The index resets to 0. Cached content survives only when the playlist is rebuilt from the same
// source in the same mode, and only for items that are still present. Prefetch flags always reset.
// Returns the number of items.
func (e *Engine) BuildFrom(sourceID string, mode services.AuthMode, entries []models.RemoteEntry) int {
	audio := models.Audio(entries)
	models.SortNatural(audio)

	items := make([]Item, len(audio))
	for i, a := range audio {
		items[i] = Item{ID: a.ID, Name: a.Name, DisplayName: models.DisplayName(a.Name), SizeBytes: a.SizeBytes}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	sameSource := sourceID == e.sourceID && mode == e.mode
	e.sourceID = sourceID
	e.mode = mode
	e.items = items
	e.index = 0
	e.position = 0
	e.attempted = make(map[string]bool)

	if !sameSource {
		e.cache = make(map[string][]byte)
	}
	for id := range e.cache {
		if !e.containsLocked(id) {
			delete(e.cache, id)
		}
	}

	e.logger.Debug("playlist built", "source", sourceID, "items", len(items), "kept_cache", len(e.cache))
	return len(items)
}

// Clear empties the playlist and drops all cached content.
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sourceID = ""
	e.items = nil
	e.index = 0
	e.position = 0
	e.cache = make(map[string][]byte)
	e.attempted = make(map[string]bool)
}

// Source returns the folder the playlist was built from and its access mode.
func (e *Engine) Source() (string, services.AuthMode) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sourceID, e.mode
}

// Items returns a copy of the ordered items.
func (e *Engine) Items() []Item {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Item(nil), e.items...)
}

// Len is the number of items.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.items)
}

// Index is the current item index; meaningless when the playlist is empty.
func (e *Engine) Index() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.index
}

// Current returns the current item.
func (e *Engine) Current() (Item, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.items) == 0 {
		return Item{}, false
	}
	return e.items[e.index], true
}

// HasNext reports whether an item follows the current one.
func (e *Engine) HasNext() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.index+1 < len(e.items)
}

// Select makes item i current and rewinds to its start. Out of range is a no-op.
func (e *Engine) Select(i int) (Item, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i < 0 || i >= len(e.items) {
		return Item{}, false
	}
	e.index = i
	e.position = 0
	e.pruneLocked()
	return e.items[i], true
}

// Advance moves to the next item. It reports false at the last item; there is no wraparound.
func (e *Engine) Advance() bool {
	e.mu.Lock()
	next := e.index + 1
	e.mu.Unlock()
	_, ok := e.Select(next)
	return ok
}

// Retreat moves to the previous item. It reports false at the first item.
func (e *Engine) Retreat() bool {
	e.mu.Lock()
	prev := e.index - 1
	e.mu.Unlock()
	_, ok := e.Select(prev)
	return ok
}

// Position returns the last recorded position of the current item, in seconds.
func (e *Engine) Position() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.position
}

// Seek records position without touching prefetch state.
func (e *Engine) Seek(position float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if position < 0 {
		position = 0
	}
	e.position = position
}

// Rate returns the playback speed multiplier.
func (e *Engine) Rate() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rate
}

// SetRate sets the playback speed multiplier, clamped to [MinRate, MaxRate].
func (e *Engine) SetRate(r float64) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rate = clampRate(r)
	return e.rate
}

func clampRate(r float64) float64 {
	switch {
	case r <= 0:
		return 1.0
	case r < MinRate:
		return MinRate
	case r > MaxRate:
		return MaxRate
	default:
		return r
	}
}

// CurrentContent returns the bytes of the current item.
//
// Cached content is returned immediately. If a prefetch of the same item is in flight, the call waits
// for it. Otherwise the content is fetched once; failures are returned as [*PlaybackFetchError] and
// not retried.
func (e *Engine) CurrentContent(ctx context.Context) ([]byte, error) {
	item, ok := e.Current()
	if !ok {
		return nil, &PlaybackFetchError{ItemName: "empty playlist", Err: shared.ErrNothingToPlay}
	}

	data, err := e.load(ctx, item.ID)
	if err != nil {
		return nil, &PlaybackFetchError{ItemID: item.ID, ItemName: item.Name, Err: err}
	}
	return data, nil
}

// Tick records position and, inside the prefetch window with auto-advance on and a next item present,
// starts the next item's prefetch. Each item is attempted once until a failure clears its flag.
// Reports whether a prefetch was started.
func (e *Engine) Tick(ctx context.Context, position, duration float64, autoAdvance bool) bool {
	e.mu.Lock()
	e.position = position

	if !autoAdvance || duration <= 0 || e.index+1 >= len(e.items) {
		e.mu.Unlock()
		return false
	}
	remaining := time.Duration((duration - position) * float64(time.Second))
	if remaining > e.window {
		e.mu.Unlock()
		return false
	}

	next := e.items[e.index+1]
	_, cached := e.cache[next.ID]
	_, running := e.inflight[next.ID]
	if e.attempted[next.ID] || cached || running {
		e.mu.Unlock()
		return false
	}
	e.attempted[next.ID] = true
	source := e.sourceID
	e.prefetch.Add(1)
	e.mu.Unlock()

	go func() {
		defer e.prefetch.Done()
		e.runPrefetch(context.WithoutCancel(ctx), source, next)
	}()
	return true
}

func (e *Engine) runPrefetch(ctx context.Context, source string, item Item) {
	e.logger.Debug("prefetching", "item", item.Name)
	if _, err := e.load(ctx, item.ID); err != nil {
		e.logger.Warn("prefetch failed", "item", item.Name, "error", err)
		e.mu.Lock()
		if e.sourceID == source {
			delete(e.attempted, item.ID)
		}
		e.mu.Unlock()
	}
}

// WaitPrefetch blocks until every started prefetch has finished.
func (e *Engine) WaitPrefetch() {
	e.prefetch.Wait()
}

// Cached reports whether id's content is held in the cache.
func (e *Engine) Cached(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.cache[id]
	return ok
}

func (e *Engine) load(ctx context.Context, id string) ([]byte, error) {
	e.mu.Lock()
	if data, ok := e.cache[id]; ok {
		e.mu.Unlock()
		return data, nil
	}
	if c, ok := e.inflight[id]; ok {
		e.mu.Unlock()
		select {
		case <-c.done:
			return c.data, c.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	c := &call{done: make(chan struct{})}
	e.inflight[id] = c
	mode := e.mode
	e.mu.Unlock()

	c.data, c.err = e.store.FetchContent(ctx, id, mode)

	e.mu.Lock()
	delete(e.inflight, id)
	if c.err == nil && e.containsLocked(id) {
		e.cache[id] = c.data
		e.pruneLocked()
	}
	e.mu.Unlock()
	close(c.done)

	return c.data, c.err
}

func (e *Engine) containsLocked(id string) bool {
	for _, it := range e.items {
		if it.ID == id {
			return true
		}
	}
	return false
}

// pruneLocked keeps cached content for the current and next item only.
func (e *Engine) pruneLocked() {
	keep := make(map[string]bool, 2)
	for i := e.index; i <= e.index+1 && i < len(e.items); i++ {
		keep[e.items[i].ID] = true
	}
	for id := range e.cache {
		if !keep[id] {
			delete(e.cache, id)
		}
	}
}
