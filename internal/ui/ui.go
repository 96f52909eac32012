package ui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/drivecast/internal/models"
	"github.com/desertthunder/drivecast/internal/session"
)

const (
	refreshInterval = time.Second
	seekStep        = 15.0
	speedStep       = 0.25
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	BrowserView ViewState = iota
	PlayerView
	ReaderView
	HistoryView
	LinkView
)

// Model represents the TUI application state.
type Model struct {
	ctx      context.Context
	session  *session.Session
	view     ViewState
	previous ViewState
	width    int
	height   int
	browser  list.Model
	history  list.Model
	link     textinput.Model
	status   string
	loading  string
	err      error
	help     help.Model
	keys     keyMap
}

// NewModel creates a new TUI model over s. The caller runs [session.Session.Run] alongside the program.
func NewModel(ctx context.Context, s *session.Session) *Model {
	browser := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	browser.Title = "Library"
	browser.SetShowHelp(false)

	history := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	history.Title = "Continue a story"
	history.SetShowHelp(false)

	link := textinput.New()
	link.Placeholder = "https://drive.google.com/drive/folders/..."
	link.CharLimit = 512

	return &Model{
		ctx:     ctx,
		session: s,
		view:    BrowserView,
		browser: browser,
		history: history,
		link:    link,
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Init starts the session, subscribes to its events and schedules the first refresh.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.do("start", m.session.Start),
		m.waitForEvent(),
		tick(),
	)
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.browser.SetSize(msg.Width-4, msg.Height-8)
		m.history.SetSize(msg.Width-4, msg.Height-8)
		m.link.Width = msg.Width - 8
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch m.view {
		case BrowserView:
			return m.handleBrowserKeys(msg)
		case PlayerView:
			return m.handlePlayerKeys(msg)
		case ReaderView:
			return m.handleReaderKeys(msg)
		case HistoryView:
			return m.handleHistoryKeys(msg)
		case LinkView:
			return m.handleLinkKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateLists(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgSessionEvent:
		m.applyEvent(msg.data.(session.Event))
		return m, m.waitForEvent()

	case MsgEventsClosed:
		return m, nil

	case MsgActionDone:
		res := msg.data.(actionResult)
		if res.err != nil {
			m.err = res.err
			m.status = fmt.Sprintf("%s failed", res.action)
		}
		return m, nil

	case MsgTick:
		return m, tick()
	}
	return m, nil
}

// applyEvent folds a session event into the view state.
func (m *Model) applyEvent(e session.Event) {
	switch e.Kind {
	case session.EventListing:
		l, ok := e.Data.(session.Listing)
		if !ok {
			return
		}
		m.loading = ""
		m.err = nil
		m.browser.Title = l.Breadcrumb
		m.browser.ResetFilter()
		m.browser.SetItems(listingItems(l))
		m.browser.Select(0)
	case session.EventLoading:
		m.loading = e.Message
	case session.EventError:
		m.err = e.Err
		m.loading = ""
		m.status = e.Message
	case session.EventRestored:
		m.err = nil
		m.status = e.Message
		if m.session.Mode() == models.ModeReader {
			m.view = ReaderView
		} else {
			m.view = PlayerView
		}
	case session.EventTrack, session.EventChapter:
		m.err = nil
		m.status = e.Message
	default:
		m.status = e.Message
	}
}

func (m *Model) handleBrowserKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.browser.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.browser, cmd = m.browser.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.enter):
		return m, m.openSelected()
	case key.Matches(msg, m.keys.back):
		return m, m.do("back", m.session.Back)
	case key.Matches(msg, m.keys.refresh):
		return m, m.do("refresh", m.session.Refresh)
	case key.Matches(msg, m.keys.history):
		m.history.SetItems(historyItems(m.session.History()))
		m.view = HistoryView
		return m, nil
	case key.Matches(msg, m.keys.link):
		m.previous = m.view
		m.view = LinkView
		m.link.SetValue("")
		return m, m.link.Focus()
	case key.Matches(msg, m.keys.signIn):
		m.status = "Signing in..."
		return m, m.do("sign in", m.session.SignIn)
	case key.Matches(msg, m.keys.signOut):
		return m, m.do("sign out", m.session.SignOut)
	case key.Matches(msg, m.keys.player):
		m.view = PlayerView
		return m, nil
	case key.Matches(msg, m.keys.reader):
		m.view = ReaderView
		return m, nil
	}

	var cmd tea.Cmd
	m.browser, cmd = m.browser.Update(msg)
	return m, cmd
}

// openSelected navigates into a folder, plays an audio file or reads a chapter.
func (m *Model) openSelected() tea.Cmd {
	item, ok := m.browser.SelectedItem().(entryItem)
	if !ok {
		return nil
	}

	switch item.entry.Kind {
	case models.KindFolder:
		ref := item.entry.Ref()
		m.loading = "Loading " + ref.Name + "..."
		return m.do("open "+ref.Name, func(ctx context.Context) error { return m.session.Navigate(ctx, ref) })
	case models.KindAudio:
		m.view = PlayerView
		return m.do("play", func(ctx context.Context) error { return m.session.PlayItem(ctx, item.index) })
	case models.KindText:
		m.view = ReaderView
		return m.do("read", func(ctx context.Context) error { return m.session.ReadChapter(ctx, item.index) })
	}
	return nil
}

func (m *Model) handlePlayerKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	st := m.session.Playback()

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = BrowserView
	case key.Matches(msg, m.keys.play):
		return m, m.do("play", m.session.TogglePlay)
	case key.Matches(msg, m.keys.next):
		return m, m.do("next", m.session.Next)
	case key.Matches(msg, m.keys.prev):
		return m, m.do("previous", m.session.Prev)
	case key.Matches(msg, m.keys.forward):
		return m, m.seek(st.Position + seekStep)
	case key.Matches(msg, m.keys.rewind):
		return m, m.seek(st.Position - seekStep)
	case key.Matches(msg, m.keys.faster):
		return m, m.setSpeed(st.Rate + speedStep)
	case key.Matches(msg, m.keys.slower):
		return m, m.setSpeed(st.Rate - speedStep)
	case key.Matches(msg, m.keys.autoNext):
		m.session.ToggleAutoAdvance()
	case key.Matches(msg, m.keys.reader):
		m.view = ReaderView
		return m, m.do("switch mode", func(ctx context.Context) error { return m.session.SwitchMode(ctx, models.ModeReader) })
	case key.Matches(msg, m.keys.history):
		m.history.SetItems(historyItems(m.session.History()))
		m.view = HistoryView
	}
	return m, nil
}

func (m *Model) handleReaderKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = BrowserView
	case key.Matches(msg, m.keys.forward):
		return m, m.do("next paragraph", m.session.NextParagraph)
	case key.Matches(msg, m.keys.rewind):
		return m, m.do("previous paragraph", m.session.PrevParagraph)
	case key.Matches(msg, m.keys.next):
		return m, m.do("next chapter", m.session.NextChapter)
	case key.Matches(msg, m.keys.prev):
		return m, m.do("previous chapter", m.session.PrevChapter)
	case key.Matches(msg, m.keys.play):
		if m.session.Reading().Narrating {
			m.session.StopNarration()
			return m, nil
		}
		return m, m.do("narrate", m.session.Narrate)
	case key.Matches(msg, m.keys.autoNext):
		m.session.ToggleAutoAdvance()
	case key.Matches(msg, m.keys.player):
		m.view = PlayerView
		return m, m.do("switch mode", func(ctx context.Context) error { return m.session.SwitchMode(ctx, models.ModeAudio) })
	case key.Matches(msg, m.keys.history):
		m.history.SetItems(historyItems(m.session.History()))
		m.view = HistoryView
	}
	return m, nil
}

func (m *Model) handleHistoryKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.history.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.history, cmd = m.history.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = BrowserView
		return m, nil
	case key.Matches(msg, m.keys.enter):
		item, ok := m.history.SelectedItem().(historyItem)
		if !ok {
			return m, nil
		}
		m.status = "Resuming " + item.progress.StoryName + "..."
		id := item.progress.StoryID
		return m, m.do("continue", func(ctx context.Context) error { return m.session.Continue(ctx, id) })
	case key.Matches(msg, m.keys.forget):
		item, ok := m.history.SelectedItem().(historyItem)
		if !ok {
			return m, nil
		}
		if _, err := m.session.Forget(item.progress.StoryID); err != nil {
			m.err = err
		}
		m.history.SetItems(historyItems(m.session.History()))
		return m, nil
	}

	var cmd tea.Cmd
	m.history, cmd = m.history.Update(msg)
	return m, cmd
}

func (m *Model) handleLinkKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.link.Blur()
		m.view = m.previous
		return m, nil
	case "enter":
		link := m.link.Value()
		m.link.Blur()
		m.view = BrowserView
		m.loading = "Opening shared folder..."
		return m, m.do("open link", func(ctx context.Context) error { return m.session.OpenPublicLink(ctx, link) })
	}

	var cmd tea.Cmd
	m.link, cmd = m.link.Update(msg)
	return m, cmd
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case BrowserView:
		m.browser, cmd = m.browser.Update(msg)
	case HistoryView:
		m.history, cmd = m.history.Update(msg)
	case LinkView:
		m.link, cmd = m.link.Update(msg)
	}
	return m, cmd
}

func (m *Model) seek(seconds float64) tea.Cmd {
	if seconds < 0 {
		seconds = 0
	}
	return m.do("seek", func(ctx context.Context) error { return m.session.Seek(ctx, seconds) })
}

func (m *Model) setSpeed(rate float64) tea.Cmd {
	return m.do("set speed", func(ctx context.Context) error {
		_, err := m.session.SetSpeed(ctx, rate)
		return err
	})
}

// do runs a session action off the update loop and reports its outcome.
func (m *Model) do(action string, fn func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg(action, fn(m.ctx))
	}
}

func (m *Model) waitForEvent() tea.Cmd {
	events := m.session.Events()
	return func() tea.Msg {
		select {
		case e, ok := <-events:
			if !ok {
				return eventsClosedMsg()
			}
			return sessionEventMsg(e)
		case <-m.ctx.Done():
			return eventsClosedMsg()
		}
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}
