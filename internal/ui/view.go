package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/drivecast/internal/auth"
	"github.com/desertthunder/drivecast/internal/shared"
)

const barWidth = 30

// View renders the UI based on the current view state.
func (m *Model) View() string {
	var body string
	switch m.view {
	case BrowserView:
		body = m.renderBrowser()
	case PlayerView:
		body = m.renderPlayer()
	case ReaderView:
		body = m.renderReader()
	case HistoryView:
		body = m.renderHistory()
	case LinkView:
		body = m.renderLink()
	}
	return fmt.Sprintf("%s\n%s\n%s", m.renderHeader(), body, m.renderStatus())
}

func (m *Model) renderHeader() string {
	state := m.session.AuthState()
	who := state.String()
	if state == auth.SignedIn {
		if u, ok := m.session.User(); ok && u.Name != "" {
			who = u.Name
		}
	}

	var badge string
	switch state {
	case auth.SignedIn:
		badge = styles.ok.Render("● " + who)
	case auth.Expired:
		badge = styles.warn.Render("● session expired")
	case auth.Public:
		badge = styles.warn.Render("● public")
	default:
		badge = styles.help.Render("○ signed out")
	}
	return fmt.Sprintf("%s  %s", styles.title.Render("drivecast"), badge)
}

func (m *Model) renderStatus() string {
	switch {
	case m.loading != "":
		return styles.help.Render(m.loading)
	case m.err != nil:
		return styles.err.Render(m.status)
	case m.status != "":
		return styles.help.Render(m.status)
	default:
		return ""
	}
}

func (m *Model) renderBrowser() string {
	helpKeys := []key.Binding{m.keys.enter, m.keys.back, m.keys.history, m.keys.link}
	switch m.session.AuthState() {
	case auth.SignedIn:
		helpKeys = append(helpKeys, m.keys.signOut)
	default:
		helpKeys = append(helpKeys, m.keys.signIn)
	}
	helpKeys = append(helpKeys, m.keys.quit)
	return fmt.Sprintf("%s\n\n%s", m.browser.View(), m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderPlayer() string {
	st := m.session.Playback()
	if st.Total == 0 {
		return styles.help.Render("Nothing queued. Pick an audio file in the library.\n\n") +
			m.help.ShortHelpView([]key.Binding{m.keys.back, m.keys.quit})
	}

	title := styles.title.Render(st.Story.Name)

	icon := "⏸"
	if st.Playing {
		icon = "▶"
	}
	track := fmt.Sprintf("[%d/%d] %s", st.Index+1, st.Total, st.Item.DisplayName)

	timing := shared.FormatDuration(st.Position)
	if st.Duration > 0 {
		timing = fmt.Sprintf("%s / %s", timing, shared.FormatDuration(st.Duration))
	}

	auto := "auto-next off"
	if st.AutoAdvance {
		auto = "auto-next on"
	}

	info := fmt.Sprintf("%s %s\n\n%s %s\n%.2fx • %s",
		icon, track,
		progressBar(st.Position, st.Duration, barWidth), timing,
		st.Rate, auto,
	)

	helpKeys := []key.Binding{m.keys.play, m.keys.next, m.keys.prev, m.keys.forward, m.keys.rewind, m.keys.faster, m.keys.slower, m.keys.autoNext, m.keys.back}
	return fmt.Sprintf("%s\n%s\n\n%s", title, styles.text.Render(info), m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderReader() string {
	st := m.session.Reading()
	if !st.Loaded {
		return styles.help.Render("No chapter open. Pick a text chapter in the library.\n\n") +
			m.help.ShortHelpView([]key.Binding{m.keys.back, m.keys.quit})
	}

	title := styles.title.Render(fmt.Sprintf("%s • %s", st.Story.Name, st.Chapter.Title))

	count := st.Chapter.Content.Len()
	where := fmt.Sprintf("Chapter %d/%d", st.Chapter.Index+1, st.Chapters)
	if count > 0 {
		where = fmt.Sprintf("%s • paragraph %d/%d", where, st.Paragraph+1, count)
	}
	if st.Narrating {
		where += " • " + styles.ok.Render("narrating")
	}

	text := st.Text
	if count == 0 {
		text = styles.warn.Render("This chapter has no readable text.")
	}
	width := m.width - 6
	if width < 20 {
		width = 60
	}
	paragraph := lipgloss.NewStyle().Width(width).PaddingLeft(2).Render(text)

	narrate := key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "narrate"))
	helpKeys := []key.Binding{m.keys.forward, m.keys.rewind, m.keys.next, m.keys.prev, narrate, m.keys.back}
	return fmt.Sprintf("%s\n%s\n\n%s\n\n%s", title, styles.help.Render(where), paragraph, m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderHistory() string {
	if len(m.history.Items()) == 0 {
		return styles.help.Render("No saved stories yet.\n\n") + m.help.ShortHelpView([]key.Binding{m.keys.back, m.keys.quit})
	}
	resume := key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "continue"))
	helpKeys := []key.Binding{resume, m.keys.forget, m.keys.back, m.keys.quit}
	return fmt.Sprintf("%s\n\n%s", m.history.View(), m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderLink() string {
	title := styles.title.Render("Open a shared folder")
	hint := styles.help.Render("Paste a folder link or folder ID. Public folders open without signing in.")
	confirm := key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open"))
	cancel := key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel"))
	return fmt.Sprintf("%s\n%s\n\n%s\n\n%s", title, hint, m.link.View(), m.help.ShortHelpView([]key.Binding{confirm, cancel}))
}

// progressBar renders position within duration as a fixed-width bar. An unknown duration renders empty.
func progressBar(position, duration float64, width int) string {
	if width <= 0 {
		return ""
	}
	filled := 0
	if duration > 0 {
		ratio := position / duration
		if ratio < 0 {
			ratio = 0
		}
		if ratio > 1 {
			ratio = 1
		}
		filled = int(ratio * float64(width))
	}
	return strings.Repeat("━", filled) + strings.Repeat("─", width-filled)
}
