// Package ui implements an interactive terminal player using bubbletea's Elm architecture.
//
// The TUI drives a [session.Session] through four views:
//  1. [BrowserView] : Browse the library; folders, audio files and text chapters of the open folder
//  2. [PlayerView] : Control the audio engine (play/pause, skip, seek, speed, auto-advance)
//  3. [ReaderView] : Page through a text chapter and toggle narration
//  4. [HistoryView] : Continue or forget a saved story
//
// A fifth view, [LinkView], prompts for a public folder link.
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Session events flow through a channel and are re-armed after each delivery; actions run as commands so the
// view never blocks on the remote store or the player.
//
// Keyboard navigation uses vim-style bindings with contextual help displayed via charmbracelet/bubbles/help.
package ui
